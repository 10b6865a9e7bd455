// Package seeding projects business entities into the index idempotently:
// only entities without an active document are mapped and indexed, so a
// repeated run over the same input writes nothing.
package seeding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/collabhub/matching/internal/indexer"
	"github.com/collabhub/matching/internal/mapping"
	"github.com/collabhub/matching/internal/models"
	"github.com/collabhub/matching/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gateway is the part of the index gateway the seeder needs.
type Gateway interface {
	GetExistingSourceEntityIDs(ctx context.Context, ids []string, typ models.ItemType) (map[string]struct{}, error)
	IndexDocuments(ctx context.Context, docs []*models.SearchDocument) (*indexer.BulkReport, error)
}

// Seeder runs sync passes and records them in an optional ledger.
type Seeder struct {
	gateway Gateway
	ledger  storage.Ledger
	logger  *zap.Logger
	now     func() time.Time
}

// SeederOption configures a Seeder.
type SeederOption func(*Seeder)

// WithLogger sets a logger for skipped entities and run summaries.
func WithLogger(l *zap.Logger) SeederOption {
	return func(s *Seeder) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLedger records every run in l.
func WithLedger(l storage.Ledger) SeederOption {
	return func(s *Seeder) { s.ledger = l }
}

// NewSeeder creates a seeder writing through gateway.
func NewSeeder(gateway Gateway, opts ...SeederOption) *Seeder {
	s := &Seeder{gateway: gateway, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync indexes the entities of itemType that have no active document yet.
// mapFn may be nil, in which case the registered mapper for itemType is used.
// The returned run is non-nil whenever the pass got as far as the existence
// check, even if the error is non-nil.
func (s *Seeder) Sync(ctx context.Context, itemType models.ItemType, entities []mapping.Entity, mapFn mapping.Mapper) (*models.SyncRun, error) {
	if mapFn == nil {
		m, err := mapping.Dispatch(itemType)
		if err != nil {
			return nil, err
		}
		mapFn = m
	}

	run := &models.SyncRun{
		ID:         uuid.New().String(),
		ItemType:   itemType,
		StartedAt:  s.now().UTC(),
		Candidates: len(entities),
	}
	log := s.logger.With(zap.String("run_id", run.ID), zap.String("type", string(itemType)))

	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		if e == nil {
			continue
		}
		if id := strings.TrimSpace(e.SourceEntityID()); id != "" {
			ids = append(ids, id)
		}
	}
	existing, err := s.gateway.GetExistingSourceEntityIDs(ctx, ids, itemType)
	if err != nil {
		return s.finish(ctx, log, run, fmt.Errorf("existence check: %w", err))
	}

	// Duplicates within one input are mapped once.
	seen := make(map[string]struct{}, len(entities))
	docs := make([]*models.SearchDocument, 0, len(entities))
	for _, e := range entities {
		if e == nil {
			run.MappingFailures++
			continue
		}
		id := strings.TrimSpace(e.SourceEntityID())
		if _, ok := existing[id]; ok {
			run.Skipped++
			continue
		}
		if _, ok := seen[id]; ok {
			run.Skipped++
			continue
		}
		seen[id] = struct{}{}

		doc, err := mapFn(e)
		if err != nil {
			run.MappingFailures++
			log.Warn("entity not mapped", zap.String("source_entity_id", id), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		return s.finish(ctx, log, run, nil)
	}
	report, err := s.gateway.IndexDocuments(ctx, docs)
	if report != nil {
		run.Indexed = report.Indexed
		run.ItemFailures = len(report.Failures)
		run.FailedBatches = append([]int(nil), report.FailedBatches...)
	}
	return s.finish(ctx, log, run, err)
}

func (s *Seeder) finish(ctx context.Context, log *zap.Logger, run *models.SyncRun, err error) (*models.SyncRun, error) {
	run.FinishedAt = s.now().UTC()
	switch {
	case err == nil && run.MappingFailures == 0:
		run.Status = models.SyncCompleted
	case run.Indexed > 0:
		run.Status = models.SyncPartial
	default:
		run.Status = models.SyncFailed
	}
	if err != nil {
		run.Error = err.Error()
	}
	if indexer.IsCanceled(err) {
		return run, err
	}

	if s.ledger != nil {
		if lerr := s.ledger.RecordRun(ctx, run); lerr != nil {
			log.Error("failed to record sync run", zap.Error(lerr))
			err = errors.Join(err, fmt.Errorf("record sync run: %w", lerr))
		}
	}
	log.Info("sync run finished",
		zap.String("status", string(run.Status)),
		zap.Int("candidates", run.Candidates),
		zap.Int("skipped", run.Skipped),
		zap.Int("indexed", run.Indexed),
		zap.Int("mapping_failures", run.MappingFailures),
		zap.Int("item_failures", run.ItemFailures),
		zap.Ints("failed_batches", run.FailedBatches))
	return run, err
}

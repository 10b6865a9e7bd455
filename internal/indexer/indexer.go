// Package indexer is the write gateway to the search index: single and bulk
// upserts, removals, soft lifecycle transitions and existence checks.
package indexer

import (
	"context"
	"sort"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/collabhub/matching/internal/config"
	"github.com/collabhub/matching/internal/keyword"
	"github.com/collabhub/matching/internal/metrics"
	"github.com/collabhub/matching/internal/models"
	"github.com/collabhub/matching/pkg/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("matching/indexer")

// Indexer writes SearchDocuments to the engine. It holds no mutable state of
// its own and is safe for concurrent use.
type Indexer struct {
	engine    keyword.Engine
	batchSize int
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for batch faults and lifecycle events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// NewIndexer creates a gateway over engine. cfg may be nil.
func NewIndexer(engine keyword.Engine, cfg *config.IndexConfig, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		engine:    engine,
		batchSize: config.DefaultBatchSize,
		logger:    zap.NewNop(),
	}
	if cfg != nil && cfg.BatchSize > 0 {
		idx.batchSize = cfg.BatchSize
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// ItemFailure describes one document a bulk call could not index.
type ItemFailure struct {
	Position int    `json:"position"`
	ID       string `json:"id,omitempty"`
	Reason   string `json:"reason"`
}

// BulkReport summarizes a bulk index call.
type BulkReport struct {
	Indexed       int           `json:"indexed"`
	Failures      []ItemFailure `json:"failures,omitempty"`
	FailedBatches []int         `json:"failedBatches,omitempty"`
}

func (idx *Indexer) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, op, trace.WithAttributes(attrs...))
}

// finish records the outcome of op on the span and in metrics.
func (idx *Indexer) finish(span trace.Span, op string, err error) {
	metrics.IndexOperationsTotal.WithLabelValues(op, metrics.Status(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
		return
	}
	span.SetStatus(codes.Ok, "")
}

func sourceAttrs(sourceEntityID string, typ models.ItemType) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("source_entity_id", sourceEntityID),
		attribute.String("type", string(typ)),
	}
}

// IndexDocument upserts one document.
func (idx *Indexer) IndexDocument(ctx context.Context, doc *models.SearchDocument) (err error) {
	ctx, span := idx.startSpan(ctx, "IndexDocument")
	defer span.End()
	defer func() { idx.finish(span, "index", err) }()

	if verr := doc.Validate(); verr != nil {
		return &Error{Code: CodeIndexFailed, Message: "document rejected", Err: verr}
	}
	span.SetAttributes(attribute.String("doc_id", doc.ID))
	return idx.upsertOne(ctx, doc, CodeIndexFailed, CodeIndexError)
}

// UpdateDocument replaces a document with the same id.
func (idx *Indexer) UpdateDocument(ctx context.Context, doc *models.SearchDocument) (err error) {
	ctx, span := idx.startSpan(ctx, "UpdateDocument")
	defer span.End()
	defer func() { idx.finish(span, "update", err) }()

	if verr := doc.Validate(); verr != nil {
		return &Error{Code: CodeUpdateFailed, Message: "document rejected", Err: verr}
	}
	span.SetAttributes(attribute.String("doc_id", doc.ID))
	return idx.upsertOne(ctx, doc, CodeUpdateFailed, CodeUpdateFailed)
}

// upsertOne reports a mapping rejection as rejected and a commit fault as faulted.
func (idx *Indexer) upsertOne(ctx context.Context, doc *models.SearchDocument, rejected, faulted Code) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	itemErrs, err := idx.engine.IndexBatch(ctx, []*models.SearchDocument{doc})
	if itemErr, ok := itemErrs[0]; ok {
		idx.logger.Warn("document rejected by engine", zap.String("doc_id", doc.ID), zap.Error(itemErr))
		return fail(ctx, rejected, itemErr, "document %s rejected", doc.ID)
	}
	if err != nil {
		idx.logger.Error("index write failed", zap.String("doc_id", doc.ID), zap.Error(err))
		return fail(ctx, faulted, err, "document %s", doc.ID)
	}
	metrics.IndexDocumentsTotal.WithLabelValues("index", metrics.StatusOK).Inc()
	idx.logger.Debug("document indexed", zap.String("doc_id", doc.ID),
		zap.String("source_entity_id", doc.SourceEntityID), zap.String("type", string(doc.Type)))
	return nil
}

// IndexDocuments upserts docs in batches of the configured size. A failed
// document or batch never stops the rest. The report is always returned.
func (idx *Indexer) IndexDocuments(ctx context.Context, docs []*models.SearchDocument) (report *BulkReport, err error) {
	ctx, span := idx.startSpan(ctx, "IndexDocuments", attribute.Int("documents", len(docs)))
	defer span.End()
	defer func() { idx.finish(span, "bulk_index", err) }()

	report = &BulkReport{}
	if len(docs) == 0 {
		return report, nil
	}

	for batch, start := 0, 0; start < len(docs); batch, start = batch+1, start+idx.batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		end := start + idx.batchSize
		if end > len(docs) {
			end = len(docs)
		}

		valid := make([]*models.SearchDocument, 0, end-start)
		positions := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			if verr := docs[i].Validate(); verr != nil {
				report.Failures = append(report.Failures, ItemFailure{Position: i, ID: docID(docs[i]), Reason: verr.Error()})
				continue
			}
			valid = append(valid, docs[i])
			positions = append(positions, i)
		}
		if len(valid) == 0 {
			continue
		}

		itemErrs, berr := idx.engine.IndexBatch(ctx, valid)
		if IsCanceled(berr) {
			return report, berr
		}
		for i, itemErr := range itemErrs {
			report.Failures = append(report.Failures, ItemFailure{Position: positions[i], ID: valid[i].ID, Reason: itemErr.Error()})
		}
		if berr != nil {
			report.FailedBatches = append(report.FailedBatches, batch)
			idx.logger.Error("bulk index batch failed", zap.Int("batch", batch),
				zap.Int("documents", len(valid)), zap.Error(berr))
			span.AddEvent("batch failed", trace.WithAttributes(attribute.Int("batch", batch)))
			continue
		}
		report.Indexed += len(valid) - len(itemErrs)
	}

	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].Position < report.Failures[j].Position })
	for _, f := range report.Failures {
		idx.logger.Warn("document not indexed", zap.Int("position", f.Position), zap.String("doc_id", f.ID), zap.String("reason", f.Reason))
	}
	metrics.IndexDocumentsTotal.WithLabelValues("index", metrics.StatusOK).Add(float64(report.Indexed))
	metrics.IndexDocumentsTotal.WithLabelValues("index", metrics.StatusFailed).Add(float64(len(docs) - report.Indexed))
	span.SetAttributes(attribute.Int("indexed", report.Indexed))

	switch {
	case len(report.FailedBatches) > 0:
		return report, &Error{Code: CodeBulkIndexError,
			Message: utils.Pluralize(len(report.FailedBatches), "batch", "batches") + " failed"}
	case len(report.Failures) > 0:
		return report, &Error{Code: CodeBulkIndexFailed,
			Message: utils.Pluralize(len(report.Failures), "document", "documents") + " rejected"}
	}
	return report, nil
}

// RemoveDocument deletes one document by id.
func (idx *Indexer) RemoveDocument(ctx context.Context, id string) (err error) {
	ctx, span := idx.startSpan(ctx, "RemoveDocument", attribute.String("doc_id", id))
	defer span.End()
	defer func() { idx.finish(span, "remove", err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	if derr := idx.engine.Delete(ctx, id); derr != nil {
		idx.logger.Error("remove failed", zap.String("doc_id", id), zap.Error(derr))
		return fail(ctx, CodeRemoveFailed, derr, "document %s", id)
	}
	metrics.IndexDocumentsTotal.WithLabelValues("remove", metrics.StatusOK).Inc()
	return nil
}

// RemoveDocuments deletes ids in batches.
func (idx *Indexer) RemoveDocuments(ctx context.Context, ids []string) (err error) {
	ctx, span := idx.startSpan(ctx, "RemoveDocuments", attribute.Int("documents", len(ids)))
	defer span.End()
	defer func() { idx.finish(span, "bulk_remove", err) }()

	for batch, start := 0, 0; start < len(ids); batch, start = batch+1, start+idx.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + idx.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		if derr := idx.engine.DeleteBatch(ctx, ids[start:end]); derr != nil {
			idx.logger.Error("bulk remove batch failed", zap.Int("batch", batch), zap.Error(derr))
			return fail(ctx, CodeBulkRemoveFailed, derr, "batch %d", batch)
		}
		metrics.IndexDocumentsTotal.WithLabelValues("remove", metrics.StatusOK).Add(float64(end - start))
	}
	return nil
}

// RemoveDocumentsBySourceEntity deletes every document of the pair and
// refreshes so that following reads see the removal.
func (idx *Indexer) RemoveDocumentsBySourceEntity(ctx context.Context, sourceEntityID string, typ models.ItemType) (n int, err error) {
	ctx, span := idx.startSpan(ctx, "RemoveDocumentsBySourceEntity", sourceAttrs(sourceEntityID, typ)...)
	defer span.End()
	defer func() { idx.finish(span, "remove_by_source", err) }()

	var ids []string
	err = idx.collect(ctx, sourceEntityQuery(sourceEntityID, typ), nil, func(hit *search.DocumentMatch) error {
		ids = append(ids, hit.ID)
		return nil
	})
	if err != nil {
		idx.logSourceFailure("remove by source entity failed", sourceEntityID, typ, err)
		return 0, fail(ctx, CodeRemoveBySourceEntityFailed, err, "%s %s", typ, sourceEntityID)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if derr := idx.engine.DeleteBatch(ctx, ids); derr != nil {
		idx.logSourceFailure("remove by source entity failed", sourceEntityID, typ, derr)
		return 0, fail(ctx, CodeRemoveBySourceEntityFailed, derr, "%s %s", typ, sourceEntityID)
	}
	if rerr := idx.engine.Refresh(ctx); rerr != nil {
		return len(ids), fail(ctx, CodeRemoveBySourceEntityFailed, rerr, "refresh after removing %s %s", typ, sourceEntityID)
	}
	metrics.IndexDocumentsTotal.WithLabelValues("remove", metrics.StatusOK).Add(float64(len(ids)))
	idx.logger.Debug("removed documents by source entity", zap.String("source_entity_id", sourceEntityID),
		zap.String("type", string(typ)), zap.Int("documents", len(ids)))
	return len(ids), nil
}

// ActivateDocumentsBySourceEntity makes the newest document of the pair active
// and returns the number of documents written.
func (idx *Indexer) ActivateDocumentsBySourceEntity(ctx context.Context, sourceEntityID string, typ models.ItemType) (n int, err error) {
	ctx, span := idx.startSpan(ctx, "ActivateDocumentsBySourceEntity", sourceAttrs(sourceEntityID, typ)...)
	defer span.End()
	defer func() { idx.finish(span, "activate", err) }()
	return idx.setActive(ctx, sourceEntityID, typ, true, CodeActivateBySourceEntityFailed)
}

// DeactivateDocumentsBySourceEntity hides every document of the pair from
// active-only searches while keeping its content indexed.
func (idx *Indexer) DeactivateDocumentsBySourceEntity(ctx context.Context, sourceEntityID string, typ models.ItemType) (n int, err error) {
	ctx, span := idx.startSpan(ctx, "DeactivateDocumentsBySourceEntity", sourceAttrs(sourceEntityID, typ)...)
	defer span.End()
	defer func() { idx.finish(span, "deactivate", err) }()
	return idx.setActive(ctx, sourceEntityID, typ, false, CodeDeactivateBySourceEntityFailed)
}

// setActive re-indexes the stored documents of the pair with isActive and
// lastUpdated patched. Everything else is written back unchanged. A pair has
// at most one active document, so activating picks the most recently updated
// one and deactivates any other that is still active.
func (idx *Indexer) setActive(ctx context.Context, sourceEntityID string, typ models.ItemType, active bool, code Code) (int, error) {
	var docs []*models.SearchDocument
	err := idx.collect(ctx, sourceEntityQuery(sourceEntityID, typ), []string{"*"}, func(hit *search.DocumentMatch) error {
		doc, derr := keyword.DecodeHit(hit)
		if derr != nil {
			return derr
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		idx.logSourceFailure("lifecycle lookup failed", sourceEntityID, typ, err)
		return 0, fail(ctx, code, err, "%s %s", typ, sourceEntityID)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	if active {
		docs = activation(docs)
	} else {
		for _, doc := range docs {
			doc.IsActive = false
		}
	}
	now := time.Now().UTC()
	for _, doc := range docs {
		doc.LastUpdated = now
	}
	updated := 0
	for start := 0; start < len(docs); start += idx.batchSize {
		end := start + idx.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		itemErrs, berr := idx.engine.IndexBatch(ctx, docs[start:end])
		if berr == nil && len(itemErrs) > 0 {
			for _, itemErr := range itemErrs {
				berr = itemErr
				break
			}
		}
		if berr != nil {
			idx.logSourceFailure("lifecycle write failed", sourceEntityID, typ, berr)
			return updated, fail(ctx, code, berr, "%s %s", typ, sourceEntityID)
		}
		updated += end - start
	}
	if rerr := idx.engine.Refresh(ctx); rerr != nil {
		return updated, fail(ctx, code, rerr, "refresh after updating %s %s", typ, sourceEntityID)
	}
	idx.logger.Debug("updated document lifecycle", zap.String("source_entity_id", sourceEntityID),
		zap.String("type", string(typ)), zap.Bool("active", active), zap.Int("documents", updated))
	return updated, nil
}

// activation returns the documents to write when activating a pair: the
// newest one set active, followed by the other active ones set inactive.
func activation(docs []*models.SearchDocument) []*models.SearchDocument {
	newest := 0
	for i, doc := range docs {
		cur := docs[newest]
		if doc.LastUpdated.After(cur.LastUpdated) || (doc.LastUpdated.Equal(cur.LastUpdated) && doc.ID > cur.ID) {
			newest = i
		}
	}
	out := []*models.SearchDocument{docs[newest]}
	docs[newest].IsActive = true
	for i, doc := range docs {
		if i != newest && doc.IsActive {
			doc.IsActive = false
			out = append(out, doc)
		}
	}
	return out
}

// Refresh makes all previous writes visible to searches.
func (idx *Indexer) Refresh(ctx context.Context) (err error) {
	ctx, span := idx.startSpan(ctx, "Refresh")
	defer span.End()
	defer func() { idx.finish(span, "refresh", err) }()

	if rerr := idx.engine.Refresh(ctx); rerr != nil {
		idx.logger.Error("refresh failed", zap.Error(rerr))
		return fail(ctx, CodeRefreshFailed, rerr, "refresh")
	}
	return nil
}

// DocumentExists reports whether a document with id is indexed. Any engine
// error is reported as false.
func (idx *Indexer) DocumentExists(ctx context.Context, id string) bool {
	if ctx.Err() != nil || id == "" {
		return false
	}
	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery([]string{id}), 0, 0, false)
	res, err := idx.engine.Search(ctx, req)
	if err != nil {
		idx.logger.Debug("exists check failed", zap.String("doc_id", id), zap.Error(err))
		return false
	}
	return res.Total > 0
}

// GetExistingSourceEntityIDs returns the subset of ids that already have an
// active document of typ. An empty input never reaches the engine.
func (idx *Indexer) GetExistingSourceEntityIDs(ctx context.Context, ids []string, typ models.ItemType) (existing map[string]struct{}, err error) {
	existing = make(map[string]struct{})
	candidates := dedupe(ids)
	if len(candidates) == 0 {
		return existing, nil
	}

	ctx, span := idx.startSpan(ctx, "GetExistingSourceEntityIDs",
		attribute.String("type", string(typ)), attribute.Int("candidates", len(candidates)))
	defer span.End()
	defer func() { idx.finish(span, "existing_ids", err) }()

	for start := 0; start < len(candidates); start += idx.batchSize {
		end := start + idx.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		q := existingQuery(candidates[start:end], typ)
		cerr := idx.collect(ctx, q, []string{keyword.FieldSourceEntityID}, func(hit *search.DocumentMatch) error {
			if s, ok := hit.Fields[keyword.FieldSourceEntityID].(string); ok {
				existing[s] = struct{}{}
			}
			return nil
		})
		if cerr != nil {
			idx.logger.Error("existence check failed", zap.String("type", string(typ)), zap.Error(cerr))
			return nil, fail(ctx, CodeExistenceCheckFailed, cerr, "%s", typ)
		}
	}
	return existing, nil
}

// collect pages through every hit of q in id order.
func (idx *Indexer) collect(ctx context.Context, q query.Query, fields []string, visit func(*search.DocumentMatch) error) error {
	for from := 0; ; from += idx.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := bleve.NewSearchRequestOptions(q, idx.batchSize, from, false)
		req.Fields = fields
		req.SortBy([]string{"_id"})
		res, err := idx.engine.Search(ctx, req)
		if err != nil {
			return err
		}
		for _, hit := range res.Hits {
			if err := visit(hit); err != nil {
				return err
			}
		}
		if len(res.Hits) < idx.batchSize {
			return nil
		}
	}
}

func (idx *Indexer) logSourceFailure(msg, sourceEntityID string, typ models.ItemType, err error) {
	if IsCanceled(err) {
		return
	}
	idx.logger.Error(msg, zap.String("source_entity_id", sourceEntityID), zap.String("type", string(typ)), zap.Error(err))
}

func termQuery(field, value string) *query.TermQuery {
	q := bleve.NewTermQuery(value)
	q.SetField(field)
	return q
}

func sourceEntityQuery(sourceEntityID string, typ models.ItemType) query.Query {
	return bleve.NewConjunctionQuery(
		termQuery(keyword.FieldSourceEntityID, sourceEntityID),
		termQuery(keyword.FieldType, string(typ)),
	)
}

func existingQuery(ids []string, typ models.ItemType) query.Query {
	idQueries := make([]query.Query, 0, len(ids))
	for _, id := range ids {
		idQueries = append(idQueries, termQuery(keyword.FieldSourceEntityID, id))
	}
	active := bleve.NewBoolFieldQuery(true)
	active.SetField(keyword.FieldIsActive)
	return bleve.NewConjunctionQuery(
		termQuery(keyword.FieldType, string(typ)),
		active,
		bleve.NewDisjunctionQuery(idQueries...),
	)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func docID(doc *models.SearchDocument) string {
	if doc == nil {
		return ""
	}
	return doc.ID
}

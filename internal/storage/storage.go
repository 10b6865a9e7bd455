// Package storage persists the seeding ledger: one row per sync run plus the
// ordinals of batches whose commit faulted, so callers can decide on retries.
package storage

import (
	"context"
	"errors"

	"github.com/collabhub/matching/internal/models"
)

// ErrRunNotFound is returned when a sync run id is unknown.
var ErrRunNotFound = errors.New("sync run not found")

// Ledger records sync runs.
type Ledger interface {
	RecordRun(ctx context.Context, run *models.SyncRun) error
	GetRun(ctx context.Context, id string) (*models.SyncRun, error)
	// ListRuns returns the newest runs first. An empty itemType lists every type.
	ListRuns(ctx context.Context, itemType models.ItemType, limit int) ([]*models.SyncRun, error)
	LastRun(ctx context.Context, itemType models.ItemType) (*models.SyncRun, error)
	CountRuns(ctx context.Context) (int64, error)

	Close() error
}

// Package keywordtest provides a fault-injecting keyword.Engine for tests.
package keywordtest

import (
	"context"
	"sync"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/collabhub/matching/internal/keyword"
	"github.com/collabhub/matching/internal/models"
)

// NewMemoryIndex returns an in-memory Bleve index closed at test cleanup.
func NewMemoryIndex(t testing.TB) *keyword.BleveIndex {
	t.Helper()
	idx, err := keyword.NewMemoryIndex()
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

// Engine wraps a real engine and fails selected calls.
// A nil inner engine is allowed as long as every called method has a fault set.
type Engine struct {
	keyword.Engine

	// SearchErr fails every Search call.
	SearchErr error
	// BatchErr decides per IndexBatch call (0-based) whether the commit fails.
	BatchErr func(call int) error
	// DeleteErr fails Delete and DeleteBatch.
	DeleteErr  error
	RefreshErr error

	mu       sync.Mutex
	searches int
	batches  int
}

// Wrap returns an Engine delegating to inner.
func Wrap(inner keyword.Engine) *Engine {
	return &Engine{Engine: inner}
}

// Searches returns how many Search calls reached the engine.
func (e *Engine) Searches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.searches
}

func (e *Engine) Search(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	e.mu.Lock()
	e.searches++
	e.mu.Unlock()
	if e.SearchErr != nil {
		return nil, e.SearchErr
	}
	return e.Engine.Search(ctx, req)
}

func (e *Engine) IndexBatch(ctx context.Context, docs []*models.SearchDocument) (map[int]error, error) {
	e.mu.Lock()
	call := e.batches
	e.batches++
	e.mu.Unlock()
	if e.BatchErr != nil {
		if err := e.BatchErr(call); err != nil {
			return nil, err
		}
	}
	return e.Engine.IndexBatch(ctx, docs)
}

func (e *Engine) Delete(ctx context.Context, id string) error {
	if e.DeleteErr != nil {
		return e.DeleteErr
	}
	return e.Engine.Delete(ctx, id)
}

func (e *Engine) DeleteBatch(ctx context.Context, ids []string) error {
	if e.DeleteErr != nil {
		return e.DeleteErr
	}
	return e.Engine.DeleteBatch(ctx, ids)
}

func (e *Engine) Refresh(ctx context.Context) error {
	if e.RefreshErr != nil {
		return e.RefreshErr
	}
	return e.Engine.Refresh(ctx)
}

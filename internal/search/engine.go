// Package search is the read side of the matching layer: full-text search,
// similar-item search and title suggestions over the keyword engine.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/collabhub/matching/internal/config"
	"github.com/collabhub/matching/internal/keyword"
	"github.com/collabhub/matching/internal/metrics"
	"github.com/collabhub/matching/internal/models"
	"go.uber.org/zap"
)

// ErrInvalidQuery wraps query validation failures.
var ErrInvalidQuery = errors.New("invalid query")

// Engine runs read queries. Engine faults never reach the caller: they are
// logged, counted and answered with an empty page. Only context errors and
// invalid input are returned.
type Engine struct {
	engine keyword.Engine
	tuning atomic.Pointer[tuning]
	logger *zap.Logger
}

type tuning struct {
	cfg   config.SearchConfig
	style string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for degraded queries and dropped hits.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a query engine over engine. cfg may be nil for defaults.
func NewEngine(engine keyword.Engine, cfg *config.SearchConfig, opts ...EngineOption) (*Engine, error) {
	e := &Engine{engine: engine, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	sc := config.DefaultSearchConfig()
	if cfg != nil {
		sc = *cfg
	}
	if err := e.SetTuning(sc); err != nil {
		return nil, err
	}
	return e, nil
}

// SetTuning swaps the search tuning used by subsequent queries.
func (e *Engine) SetTuning(cfg config.SearchConfig) error {
	config.ApplySearchDefaults(&cfg)
	style, err := keyword.RegisterHighlightStyle(keyword.HighlightConfig{
		FragmentSize: cfg.FragmentSize,
		PreTag:       cfg.PreTag,
		PostTag:      cfg.PostTag,
	})
	if err != nil {
		return fmt.Errorf("failed to register highlighter: %w", err)
	}
	e.tuning.Store(&tuning{cfg: cfg, style: style})
	return nil
}

// Tuning returns the search tuning currently in effect.
func (e *Engine) Tuning() config.SearchConfig {
	return e.tuning.Load().cfg
}

// degrade answers a failed query. Context errors are returned; everything
// else becomes an empty page.
func (e *Engine) degrade(ctx context.Context, kind string, err error, page models.Pagination, text string, fields ...zap.Field) (*models.SearchResponse, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	metrics.QueryDegradedTotal.WithLabelValues(kind).Inc()
	e.logger.Error("query degraded to empty result", append(fields, zap.String("query", kind), zap.Error(err))...)
	return models.EmptyResponse(page, text), nil
}

// pastWindow answers a page that starts beyond the result window.
func (e *Engine) pastWindow(page models.Pagination, text string) *models.SearchResponse {
	e.logger.Debug("page past result window", zap.Int("page", page.Page), zap.Int("size", page.Size))
	return models.EmptyResponse(page, text)
}

func observe(kind string, start time.Time) {
	metrics.QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

type fieldSpec struct {
	field string
	boost float64
}

func (t *tuning) fields() []fieldSpec {
	return []fieldSpec{
		{keyword.FieldTitle, t.cfg.TitleBoost},
		{keyword.FieldContent, t.cfg.ContentBoost},
		{keyword.FieldTags, t.cfg.TagsBoost},
	}
}

func fieldMatch(text, field string, fuzziness int) query.Query {
	q := bleve.NewMatchQuery(text)
	q.SetField(field)
	if fuzziness > 0 {
		q.SetFuzziness(fuzziness)
	}
	return q
}

type scored struct {
	id    string
	score float64
}

// Search runs a full-text query. A blank text browses every document that
// passes the filters, newest first.
func (e *Engine) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	defer observe("search", start)

	t := e.tuning.Load()
	if err := q.Validate(t.cfg.DefaultPageSize, t.cfg.MaxPageSize); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !q.InWindow() {
		return e.pastWindow(q.Pagination, q.Text), nil
	}

	var (
		resp *models.SearchResponse
		err  error
	)
	mustNot := exclusions(q.Filters, q.ItemTypes)
	if q.Text == "" {
		resp, err = e.browse(ctx, t, q, mustNot)
	} else {
		resp, err = e.bestField(ctx, t, q, mustNot)
	}
	if err != nil {
		return e.degrade(ctx, "search", err, q.Pagination, q.Text, zap.Int("page", q.Page))
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}

func (e *Engine) browse(ctx context.Context, t *tuning, q *models.SearchQuery, mustNot []query.Query) (*models.SearchResponse, error) {
	req := bleve.NewSearchRequestOptions(restrict(nil, mustNot), q.Size, q.Offset(), false)
	req.Fields = []string{"*"}
	req.SortBy([]string{"-" + keyword.FieldLastUpdated, "_id"})
	res, err := e.engine.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	resp := models.EmptyResponse(q.Pagination, q.Text)
	resp.Total = int64(res.Total)
	for i, hit := range res.Hits {
		r, err := toResult(hit, hit.Score, q.Offset()+i+1, t.cfg.MaxFragments)
		if err != nil {
			e.logger.Warn("dropping undecodable hit", zap.String("doc_id", hit.ID), zap.Error(err))
			continue
		}
		resp.Results = append(resp.Results, r)
	}
	return resp, nil
}

// bestField scores each document by its best matching field. Each field is
// queried separately for the top offset+size hits, so the merged ranking is
// exact for the requested page.
func (e *Engine) bestField(ctx context.Context, t *tuning, q *models.SearchQuery, mustNot []query.Query) (*models.SearchResponse, error) {
	specs := t.fields()
	window := q.Offset() + q.Size

	var (
		scores  = make(map[string]float64)
		total   uint64
		mu      sync.Mutex
		wg      sync.WaitGroup
		errChan = make(chan error, len(specs)+1)
	)
	fieldQueries := make([]query.Query, 0, len(specs))
	for _, spec := range specs {
		fieldQueries = append(fieldQueries, fieldMatch(q.Text, spec.field, q.FuzzyDistance))
	}

	for i, spec := range specs {
		wg.Add(1)
		go func(fq query.Query, spec fieldSpec) {
			defer wg.Done()
			req := bleve.NewSearchRequestOptions(restrict(fq, mustNot), window, 0, false)
			res, err := e.engine.Search(ctx, req)
			if err != nil {
				errChan <- fmt.Errorf("%s search failed: %w", spec.field, err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			// Boosts are applied here: Bleve normalizes a lone query's boost away.
			for _, hit := range res.Hits {
				if s := hit.Score * spec.boost; s > scores[hit.ID] {
					scores[hit.ID] = s
				}
			}
		}(fieldQueries[i], spec)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		req := bleve.NewSearchRequestOptions(restrict(bleve.NewDisjunctionQuery(fieldQueries...), mustNot), 0, 0, false)
		res, err := e.engine.Search(ctx, req)
		if err != nil {
			errChan <- fmt.Errorf("count failed: %w", err)
			return
		}
		total = res.Total
	}()

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	merged := make([]scored, 0, len(scores))
	for id, s := range scores {
		merged = append(merged, scored{id: id, score: s})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}
		return merged[i].id < merged[j].id
	})

	resp := models.EmptyResponse(q.Pagination, q.Text)
	resp.Total = int64(total)
	from := q.Offset()
	if from >= len(merged) {
		return resp, nil
	}
	end := from + q.Size
	if end > len(merged) {
		end = len(merged)
	}
	page := merged[from:end]

	ids := make([]string, len(page))
	for i, s := range page {
		ids[i] = s.id
	}
	hydrate := bleve.NewConjunctionQuery(bleve.NewDocIDQuery(ids), bleve.NewDisjunctionQuery(fieldQueries...))
	req := bleve.NewSearchRequestOptions(hydrate, len(ids), 0, false)
	withHighlight(req, t.style)
	res, err := e.engine.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("hydrate failed: %w", err)
	}
	hits := make(map[string]int, len(res.Hits))
	for i, hit := range res.Hits {
		hits[hit.ID] = i
	}
	for i, s := range page {
		idx, ok := hits[s.id]
		if !ok {
			continue
		}
		hit := res.Hits[idx]
		r, err := toResult(hit, s.score, from+i+1, t.cfg.MaxFragments)
		if err != nil {
			e.logger.Warn("dropping undecodable hit", zap.String("doc_id", hit.ID), zap.Error(err))
			continue
		}
		resp.Results = append(resp.Results, r)
	}
	return resp, nil
}

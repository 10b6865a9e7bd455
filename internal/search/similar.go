package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/collabhub/matching/internal/config"
	"github.com/collabhub/matching/internal/keyword"
	"github.com/collabhub/matching/internal/models"
	"github.com/collabhub/matching/pkg/utils"
	"go.uber.org/zap"
)

// SearchSimilar finds documents sharing distinctive terms with the seed
// document of (SourceEntityID, SourceType). The seed itself is never
// returned. Without explicit item types the seed's type is used.
func (e *Engine) SearchSimilar(ctx context.Context, q *models.SimilarQuery) (*models.SearchResponse, error) {
	start := time.Now()
	defer observe("similar", start)

	t := e.tuning.Load()
	if err := q.Validate(t.cfg.DefaultPageSize, t.cfg.MaxPageSize); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !q.InWindow() {
		return e.pastWindow(q.Pagination, ""), nil
	}

	resp, err := e.similar(ctx, t, q)
	if err != nil {
		return e.degrade(ctx, "similar", err, q.Pagination, "",
			zap.String("source_entity_id", q.SourceEntityID), zap.String("type", string(q.SourceType)))
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}

func (e *Engine) similar(ctx context.Context, t *tuning, q *models.SimilarQuery) (*models.SearchResponse, error) {
	empty := models.EmptyResponse(q.Pagination, "")

	seed, err := e.seed(ctx, q.SourceEntityID, q.SourceType)
	if err != nil {
		return nil, err
	}
	if seed == nil {
		e.logger.Debug("similar seed not found",
			zap.String("source_entity_id", q.SourceEntityID), zap.String("type", string(q.SourceType)))
		return empty, nil
	}

	terms, err := e.interestingTerms(seed, t.cfg.Similarity)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return empty, nil
	}

	clauses := make([]query.Query, 0, len(terms))
	for _, term := range terms {
		perField := make([]query.Query, 0, len(keyword.TextFields))
		for _, field := range keyword.TextFields {
			perField = append(perField, termQuery(field, term))
		}
		clauses = append(clauses, bleve.NewDisjunctionQuery(perField...))
	}
	like := bleve.NewDisjunctionQuery(clauses...)
	like.SetMin(float64(utils.FloorFraction(len(clauses), t.cfg.Similarity.MinShouldMatch)))

	types := q.ItemTypes
	if len(types) == 0 {
		types = []models.ItemType{seed.Type}
	}
	mustNot := append(exclusions(q.Filters, types), termQuery(keyword.FieldSourceEntityID, seed.SourceEntityID))

	req := bleve.NewSearchRequestOptions(restrict(like, mustNot), q.Size, q.Offset(), false)
	withHighlight(req, t.style)
	res, err := e.engine.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := empty
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

// seed returns the document of the pair, or nil when none is indexed.
func (e *Engine) seed(ctx context.Context, sourceEntityID string, typ models.ItemType) (*models.SearchDocument, error) {
	q := bleve.NewConjunctionQuery(
		termQuery(keyword.FieldSourceEntityID, sourceEntityID),
		termQuery(keyword.FieldType, string(typ)),
	)
	req := bleve.NewSearchRequestOptions(q, 1, 0, false)
	req.Fields = []string{"*"}
	res, err := e.engine.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("seed lookup failed: %w", err)
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}
	return keyword.DecodeHit(res.Hits[0])
}

type weightedTerm struct {
	term  string
	score float64
}

// interestingTerms picks the seed terms with the highest tf-idf across the
// text fields, best field per term.
func (e *Engine) interestingTerms(seed *models.SearchDocument, cfg config.SimilarityConfig) ([]string, error) {
	numDocs, err := e.engine.DocCount()
	if err != nil {
		return nil, fmt.Errorf("doc count failed: %w", err)
	}
	texts := map[string]string{
		keyword.FieldTitle:   seed.Title,
		keyword.FieldContent: seed.Content,
		keyword.FieldTags:    strings.Join(seed.Tags, " "),
	}

	best := make(map[string]float64)
	for _, field := range keyword.TextFields {
		tf := make(map[string]int)
		for _, term := range e.engine.AnalyzeText(texts[field]) {
			if utf8.RuneCountInString(term) < cfg.MinWordLength {
				continue
			}
			tf[term]++
		}
		for term, freq := range tf {
			if freq < cfg.MinTermFreq {
				continue
			}
			df, err := e.engine.DocFrequency(field, term)
			if err != nil {
				return nil, err
			}
			if df < uint64(cfg.MinDocFreq) {
				continue
			}
			idf := 1 + math.Log(float64(numDocs)/float64(df+1))
			if s := float64(freq) * idf; s > best[term] {
				best[term] = s
			}
		}
	}

	ranked := make([]weightedTerm, 0, len(best))
	for term, s := range best {
		ranked = append(ranked, weightedTerm{term: term, score: s})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].term < ranked[j].term
	})
	if cfg.MaxQueryTerms > 0 && len(ranked) > cfg.MaxQueryTerms {
		ranked = ranked[:cfg.MaxQueryTerms]
	}
	terms := make([]string, len(ranked))
	for i, w := range ranked {
		terms[i] = w.term
	}
	return terms, nil
}

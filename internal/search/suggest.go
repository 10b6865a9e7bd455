package search

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/collabhub/matching/internal/keyword"
	"github.com/collabhub/matching/internal/models"
)

// suggestOverfetch is how many hits are requested per wanted suggestion, so
// duplicate titles do not starve the list.
const suggestOverfetch = 4

// GetSuggestions returns distinct titles that start with or contain partial,
// in relevance order. An empty itemType matches every type; max <= 0 uses the
// configured default. Inactive documents are never suggested.
func (e *Engine) GetSuggestions(ctx context.Context, partial string, itemType models.ItemType, max int) ([]string, error) {
	start := time.Now()
	defer observe("suggest", start)

	t := e.tuning.Load()
	partial = strings.TrimSpace(partial)
	if utf8.RuneCountInString(partial) < t.cfg.SuggestionMinLength {
		return []string{}, nil
	}
	if max <= 0 {
		max = t.cfg.DefaultSuggestions
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	term := strings.NewReplacer("*", "", "?", "").Replace(strings.ToLower(partial))
	if term == "" {
		return []string{}, nil
	}
	prefix := bleve.NewPrefixQuery(term)
	prefix.SetField(keyword.FieldTitleSuggest)
	contains := bleve.NewWildcardQuery("*" + term + "*")
	contains.SetField(keyword.FieldTitleSuggest)

	var types []models.ItemType
	if itemType != "" {
		types = []models.ItemType{itemType}
	}
	q := restrict(bleve.NewDisjunctionQuery(prefix, contains), exclusions(models.Filters{}, types))

	req := bleve.NewSearchRequestOptions(q, max*suggestOverfetch, 0, false)
	req.Fields = []string{keyword.FieldTitle}
	res, err := e.engine.Search(ctx, req)
	if err != nil {
		if _, derr := e.degrade(ctx, "suggest", err, models.Pagination{}, partial); derr != nil {
			return nil, derr
		}
		return []string{}, nil
	}
	return distinctTitles(res, max), nil
}

func distinctTitles(res *bleve.SearchResult, max int) []string {
	seen := make(map[string]struct{}, len(res.Hits))
	out := make([]string, 0, max)
	for _, hit := range res.Hits {
		title, _ := hit.Fields[keyword.FieldTitle].(string)
		if title == "" {
			continue
		}
		key := strings.ToLower(title)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, title)
		if len(out) == max {
			break
		}
	}
	return out
}

package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/collabhub/matching/internal/keyword"
	"github.com/collabhub/matching/internal/models"
)

// withHighlight asks for stored fields and highlighted text fields.
func withHighlight(req *bleve.SearchRequest, style string) {
	req.Fields = []string{"*"}
	if style == "" {
		req.Highlight = bleve.NewHighlight()
	} else {
		req.Highlight = bleve.NewHighlightWithStyle(style)
	}
	for _, f := range keyword.TextFields {
		req.Highlight.AddField(f)
	}
}

// capFragments keeps at most max fragments per field and drops empty fields.
func capFragments(fragments map[string][]string, max int) map[string][]string {
	if len(fragments) == 0 {
		return nil
	}
	out := make(map[string][]string, len(fragments))
	for field, frags := range fragments {
		if len(frags) == 0 {
			continue
		}
		if max > 0 && len(frags) > max {
			frags = frags[:max]
		}
		out[field] = append([]string(nil), frags...)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// toResult maps a hit into a ranked result. score overrides the hit score.
func toResult(hit *search.DocumentMatch, score float64, rank, maxFragments int) (*models.SearchResult, error) {
	doc, err := keyword.DecodeHit(hit)
	if err != nil {
		return nil, err
	}
	return &models.SearchResult{
		SourceEntityID: doc.SourceEntityID,
		Type:           doc.Type,
		Title:          doc.Title,
		Score:          score,
		Highlights:     capFragments(hit.Fragments, maxFragments),
		Metadata:       doc.Metadata,
		Rank:           rank,
	}, nil
}

package search

import (
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/collabhub/matching/internal/keyword"
	"github.com/collabhub/matching/internal/models"
)

// exclusions turns filters into must-not clauses. They constrain the result
// set without contributing to scores.
func exclusions(f models.Filters, types []models.ItemType) []query.Query {
	var out []query.Query
	if len(types) > 0 {
		wanted := make(map[models.ItemType]bool, len(types))
		for _, t := range types {
			wanted[t] = true
		}
		for _, t := range models.AllItemTypes() {
			if !wanted[t] {
				out = append(out, termQuery(keyword.FieldType, string(t)))
			}
		}
	}
	if f.ActiveOnly() {
		inactive := bleve.NewBoolFieldQuery(false)
		inactive.SetField(keyword.FieldIsActive)
		out = append(out, inactive)
	}
	exclusive := false
	if f.CreatedAfter != nil {
		before := bleve.NewDateRangeInclusiveQuery(time.Time{}, f.CreatedAfter.UTC(), nil, &exclusive)
		before.SetField(keyword.FieldLastUpdated)
		out = append(out, before)
	}
	if f.CreatedBefore != nil {
		after := bleve.NewDateRangeInclusiveQuery(f.CreatedBefore.UTC(), time.Time{}, &exclusive, nil)
		after.SetField(keyword.FieldLastUpdated)
		out = append(out, after)
	}
	return out
}

// restrict applies must-not clauses to q. A nil q matches every document.
func restrict(q query.Query, mustNot []query.Query) query.Query {
	if len(mustNot) == 0 {
		if q == nil {
			return bleve.NewMatchAllQuery()
		}
		return q
	}
	var must []query.Query
	if q != nil {
		must = []query.Query{q}
	}
	return query.NewBooleanQuery(must, nil, mustNot)
}

func termQuery(field, value string) *query.TermQuery {
	q := bleve.NewTermQuery(value)
	q.SetField(field)
	return q
}

package search

import (
	"testing"

	"github.com/blevesearch/bleve/v2/search"
	"github.com/collabhub/matching/internal/keyword"
	"github.com/collabhub/matching/internal/models"
)

func TestCapFragments(t *testing.T) {
	got := capFragments(map[string][]string{
		"content": {"a", "b", "c", "d"},
		"title":   {"t"},
		"tags":    {},
	}, 3)
	if len(got["content"]) != 3 {
		t.Errorf("content fragments = %v, want 3", got["content"])
	}
	if len(got["title"]) != 1 {
		t.Errorf("title fragments = %v", got["title"])
	}
	if _, ok := got["tags"]; ok {
		t.Error("empty field should be dropped")
	}
	if capFragments(nil, 3) != nil {
		t.Error("nil fragments should stay nil")
	}
	if got := capFragments(map[string][]string{"content": {"a", "b"}}, 0); len(got["content"]) != 2 {
		t.Errorf("max 0 should not cap, got %v", got)
	}
}

func TestToResult(t *testing.T) {
	hit := &search.DocumentMatch{
		ID:    "d1",
		Score: 0.4,
		Fields: map[string]interface{}{
			keyword.FieldSourceEntityID: "B1",
			keyword.FieldType:           "Blogger",
			keyword.FieldTitle:          "Anna",
			keyword.FieldContent:        "travel",
			keyword.FieldIsActive:       true,
			keyword.FieldMetadata:       `{"city":"Lisbon"}`,
		},
		Fragments: map[string][]string{"content": {"<em>travel</em>"}},
	}
	r, err := toResult(hit, 1.5, 4, 3)
	if err != nil {
		t.Fatalf("toResult: %v", err)
	}
	if r.SourceEntityID != "B1" || r.Type != models.ItemTypeBlogger || r.Title != "Anna" {
		t.Errorf("result = %+v", r)
	}
	if r.Score != 1.5 || r.Rank != 4 {
		t.Errorf("score/rank = %v/%d", r.Score, r.Rank)
	}
	if city, _ := r.Metadata["city"].AsString(); city != "Lisbon" {
		t.Errorf("metadata = %v", r.Metadata)
	}
	if r.Highlights["content"][0] != "<em>travel</em>" {
		t.Errorf("highlights = %v", r.Highlights)
	}
}

package search

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/collabhub/matching/internal/models"
)

func seedCorpus(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.add(t, "B1", models.ItemTypeBlogger, "Anna Travel", "travel food photography across asia", "travel")
	f.add(t, "B2", models.ItemTypeBlogger, "Mark", "street food and travel vlogs", "food")
	f.add(t, "B3", models.ItemTypeBlogger, "Lena", "knitting patterns and yarn")
	f.add(t, "O1", models.ItemTypeOffer, "Travel offer", "food travel photography package")
	return f
}

func mustSimilar(t *testing.T, e *Engine, q *models.SimilarQuery) *models.SearchResponse {
	t.Helper()
	resp, err := e.SearchSimilar(context.Background(), q)
	if err != nil {
		t.Fatalf("SearchSimilar(%s %s): %v", q.SourceType, q.SourceEntityID, err)
	}
	return resp
}

func TestSearchSimilar_ExcludesSeedAndDefaultsToSeedType(t *testing.T) {
	f := seedCorpus(t)

	resp := mustSimilar(t, f.engine, &models.SimilarQuery{SourceEntityID: "B1", SourceType: models.ItemTypeBlogger})
	if got := sources(resp); !reflect.DeepEqual(got, []string{"B2"}) {
		t.Fatalf("sources = %v, want [B2]", got)
	}
	if resp.Total != 1 || resp.Results[0].Rank != 1 {
		t.Errorf("total = %d, rank = %d", resp.Total, resp.Results[0].Rank)
	}
}

func TestSearchSimilar_ExplicitTypes(t *testing.T) {
	f := seedCorpus(t)

	resp := mustSimilar(t, f.engine, &models.SimilarQuery{
		SourceEntityID: "B1",
		SourceType:     models.ItemTypeBlogger,
		Filters:        models.Filters{ItemTypes: []models.ItemType{models.ItemTypeOffer}},
	})
	if got := sources(resp); !reflect.DeepEqual(got, []string{"O1"}) {
		t.Errorf("sources = %v, want [O1]", got)
	}
}

func TestSearchSimilar_MinShouldMatchRoundsDown(t *testing.T) {
	f := seedCorpus(t)
	q := &models.SimilarQuery{SourceEntityID: "B1", SourceType: models.ItemTypeBlogger}

	// B1 yields six terms and B2 shares two of them.
	cfg := f.engine.Tuning()
	cfg.Similarity.MinShouldMatch = 0.34
	if err := f.engine.SetTuning(cfg); err != nil {
		t.Fatal(err)
	}
	if got := sources(mustSimilar(t, f.engine, q)); !reflect.DeepEqual(got, []string{"B2"}) {
		t.Errorf("6 terms at 34%% = %v, want [B2] (two terms required)", got)
	}

	cfg.Similarity.MinShouldMatch = 0.5
	if err := f.engine.SetTuning(cfg); err != nil {
		t.Fatal(err)
	}
	if got := sources(mustSimilar(t, f.engine, q)); len(got) != 0 {
		t.Errorf("6 terms at 50%% = %v, want none (three terms required)", got)
	}
}

func TestSearchSimilar_SkipsInactive(t *testing.T) {
	f := seedCorpus(t)
	if _, err := f.indexer.DeactivateDocumentsBySourceEntity(context.Background(), "B2", models.ItemTypeBlogger); err != nil {
		t.Fatal(err)
	}

	resp := mustSimilar(t, f.engine, &models.SimilarQuery{SourceEntityID: "B1", SourceType: models.ItemTypeBlogger})
	if len(resp.Results) != 0 {
		t.Errorf("results = %v, want none", sources(resp))
	}
}

func TestSearchSimilar_MissingSeed(t *testing.T) {
	f := seedCorpus(t)

	resp := mustSimilar(t, f.engine, &models.SimilarQuery{
		SourceEntityID: "nope",
		SourceType:     models.ItemTypeBlogger,
		Pagination:     models.Pagination{Page: 2, Size: 5},
	})
	if len(resp.Results) != 0 || resp.Page != 2 || resp.Size != 5 {
		t.Errorf("resp = %+v, want an empty page 2 of size 5", resp)
	}
}

func TestSearchSimilar_PagePastResultWindow(t *testing.T) {
	f := seedCorpus(t)
	for _, page := range []int{184467440737095516, math.MaxInt} {
		before := f.kw.Searches()
		resp := mustSimilar(t, f.engine, &models.SimilarQuery{
			SourceEntityID: "B1",
			SourceType:     models.ItemTypeBlogger,
			Pagination:     models.Pagination{Page: page, Size: 100},
		})
		if len(resp.Results) != 0 || resp.Size != 100 || resp.Page < 1 {
			t.Errorf("page %d: resp = %+v, want an empty page", page, resp)
		}
		if f.kw.Searches() != before {
			t.Errorf("page %d: engine queried for a page past the window", page)
		}
	}
}

func TestSearchSimilar_Degrades(t *testing.T) {
	f := seedCorpus(t)
	f.kw.SearchErr = errors.New("boom")

	resp := mustSimilar(t, f.engine, &models.SimilarQuery{SourceEntityID: "B1", SourceType: models.ItemTypeBlogger})
	if len(resp.Results) != 0 {
		t.Errorf("results = %v, want none", sources(resp))
	}
}

func TestSearchSimilar_Invalid(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.SearchSimilar(context.Background(), &models.SimilarQuery{SourceType: models.ItemTypeBlogger})
	if !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("err = %v, want ErrInvalidQuery", err)
	}
}

func contains(terms []string, term string) bool {
	for _, t := range terms {
		if t == term {
			return true
		}
	}
	return false
}

func TestInterestingTerms(t *testing.T) {
	f := seedCorpus(t)
	seed, err := f.engine.seed(context.Background(), "B1", models.ItemTypeBlogger)
	if err != nil || seed == nil {
		t.Fatalf("seed = %v, %v", seed, err)
	}

	cfg := f.engine.Tuning().Similarity
	terms, err := f.engine.interestingTerms(seed, cfg)
	if err != nil {
		t.Fatal(err)
	}
	// Rare terms first, ties alphabetical. "travel" is rare among tags.
	want := []string{"across", "anna", "asia", "travel", "photography", "food"}
	if !reflect.DeepEqual(terms, want) {
		t.Errorf("terms = %v, want %v", terms, want)
	}

	cfg.MaxQueryTerms = 5
	if terms, err = f.engine.interestingTerms(seed, cfg); err != nil || contains(terms, "food") {
		t.Errorf("max 5 terms = %v, %v; want food dropped", terms, err)
	}

	cfg.MinWordLength = 5
	if terms, err = f.engine.interestingTerms(seed, cfg); err != nil || contains(terms, "anna") || contains(terms, "asia") {
		t.Errorf("min length 5 terms = %v, %v", terms, err)
	}
}

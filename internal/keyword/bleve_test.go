package keyword

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/collabhub/matching/internal/models"
)

func testDoc(id, source string, typ models.ItemType, title, content string, tags ...string) *models.SearchDocument {
	return &models.SearchDocument{
		ID:             id,
		SourceEntityID: source,
		Type:           typ,
		Title:          title,
		Content:        content,
		Tags:           tags,
		IsActive:       true,
		LastUpdated:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewMemoryIndex()
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func matchIDs(t *testing.T, idx *BleveIndex, field, text string) []string {
	t.Helper()
	q := bleve.NewMatchQuery(text)
	q.SetField(field)
	res, err := idx.Search(context.Background(), bleve.NewSearchRequest(q))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids
}

func TestBleveIndex_SearchFindsContent(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	doc := testDoc("d1", "B1", models.ItemTypeBlogger, "Anna Smith", "Travel and Omnisyan food reviews.")
	if err := idx.Index(ctx, doc); err != nil {
		t.Fatalf("Index: %v", err)
	}

	ids := matchIDs(t, idx, FieldContent, "omnisyan")
	if len(ids) != 1 || ids[0] != "d1" {
		t.Fatalf("content match = %v, want [d1]", ids)
	}
	// Standard analyzer (no stemming) so "reviews" does not match "review".
	if ids := matchIDs(t, idx, FieldContent, "review"); len(ids) != 0 {
		t.Errorf("unexpected stemmed match: %v", ids)
	}
}

func TestBleveIndex_DecodeHitRoundTrip(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	doc := testDoc("d1", "B1", models.ItemTypeBlogger, "Anna Smith", "travel blogger", "food", "travel")
	doc.Metadata = models.Metadata{"followers": models.Int(1200)}
	single := testDoc("d2", "B2", models.ItemTypeBlogger, "Bob", "cooking", "food")
	single.IsActive = false
	for _, d := range []*models.SearchDocument{doc, single} {
		if err := idx.Index(ctx, d); err != nil {
			t.Fatalf("Index: %v", err)
		}
	}

	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{"d1", "d2"}))
	req.Fields = []string{"*"}
	res, err := idx.Search(ctx, req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(res.Hits))
	}
	got := map[string]*models.SearchDocument{}
	for _, hit := range res.Hits {
		d, err := DecodeHit(hit)
		if err != nil {
			t.Fatalf("DecodeHit: %v", err)
		}
		got[d.ID] = d
	}

	d1 := got["d1"]
	if d1.SourceEntityID != "B1" || d1.Type != models.ItemTypeBlogger || d1.Title != "Anna Smith" {
		t.Errorf("decoded d1 = %+v", d1)
	}
	if len(d1.Tags) != 2 {
		t.Errorf("d1 tags = %v, want 2", d1.Tags)
	}
	if !d1.IsActive {
		t.Error("d1 should be active")
	}
	if d1.LastUpdated.Unix() != doc.LastUpdated.Unix() {
		t.Errorf("lastUpdated = %v, want %v", d1.LastUpdated, doc.LastUpdated)
	}
	if n, ok := d1.Metadata["followers"].AsNumber(); !ok || n != 1200 {
		t.Errorf("metadata followers = %v", d1.Metadata["followers"])
	}

	d2 := got["d2"]
	if len(d2.Tags) != 1 || d2.Tags[0] != "food" {
		t.Errorf("d2 tags = %v, want [food]", d2.Tags)
	}
	if d2.IsActive {
		t.Error("d2 should be inactive")
	}
}

func TestBleveIndex_IndexBatchReportsInvalidItems(t *testing.T) {
	idx := newTestIndex(t)
	docs := []*models.SearchDocument{
		testDoc("d1", "B1", models.ItemTypeBlogger, "One", "first"),
		testDoc("d2", "B2", models.ItemTypeBlogger, "", "no title"),
		testDoc("d3", "B3", models.ItemTypeBlogger, "Three", "third"),
	}
	itemErrs, err := idx.IndexBatch(context.Background(), docs)
	if err != nil {
		t.Fatalf("IndexBatch: %v", err)
	}
	if len(itemErrs) != 1 {
		t.Fatalf("itemErrs = %v, want one failure", itemErrs)
	}
	if !errors.Is(itemErrs[1], models.ErrInvalidDocument) {
		t.Errorf("itemErrs[1] = %v, want ErrInvalidDocument", itemErrs[1])
	}
	count, _ := idx.DocCount()
	if count != 2 {
		t.Errorf("DocCount = %d, want 2", count)
	}
}

func TestBleveIndex_IndexBatchHonoursCancel(t *testing.T) {
	idx := newTestIndex(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := idx.IndexBatch(ctx, []*models.SearchDocument{testDoc("d1", "B1", models.ItemTypeBlogger, "One", "first")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBleveIndex_DocFrequency(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	_ = idx.Index(ctx, testDoc("d1", "B1", models.ItemTypeBlogger, "A", "travel food"))
	_ = idx.Index(ctx, testDoc("d2", "B2", models.ItemTypeBlogger, "B", "travel"))
	_ = idx.Index(ctx, testDoc("d3", "B3", models.ItemTypeBlogger, "C", "travelling"))

	df, err := idx.DocFrequency(FieldContent, "travel")
	if err != nil {
		t.Fatalf("DocFrequency: %v", err)
	}
	if df != 2 {
		t.Errorf("df(travel) = %d, want 2", df)
	}
	df, _ = idx.DocFrequency(FieldContent, "absent")
	if df != 0 {
		t.Errorf("df(absent) = %d, want 0", df)
	}
}

func TestBleveIndex_AnalyzeText(t *testing.T) {
	idx := newTestIndex(t)
	terms := idx.AnalyzeText("Travel, FOOD and the sea")
	joined := strings.Join(terms, " ")
	if !strings.Contains(joined, "travel") || !strings.Contains(joined, "food") {
		t.Errorf("AnalyzeText = %v", terms)
	}
	for _, term := range terms {
		if term != strings.ToLower(term) {
			t.Errorf("term %q not lowercased", term)
		}
	}
}

func TestBleveIndex_Highlight(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	_ = idx.Index(ctx, testDoc("d1", "B1", models.ItemTypeBlogger, "Anna", "a blogger who loves travel photography"))

	style, err := RegisterHighlightStyle(DefaultHighlightConfig())
	if err != nil {
		t.Fatalf("RegisterHighlightStyle: %v", err)
	}
	q := bleve.NewMatchQuery("travel")
	q.SetField(FieldContent)
	req := bleve.NewSearchRequest(q)
	req.Highlight = bleve.NewHighlightWithStyle(style)
	req.Highlight.AddField(FieldContent)
	res, err := idx.Search(ctx, req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(res.Hits))
	}
	frags := res.Hits[0].Fragments[FieldContent]
	if len(frags) == 0 || !strings.Contains(frags[0], "<em>travel</em>") {
		t.Errorf("fragments = %v, want <em>travel</em>", frags)
	}
}

func TestRegisterHighlightStyle_Idempotent(t *testing.T) {
	cfg := HighlightConfig{FragmentSize: 80, PreTag: "[", PostTag: "]"}
	a, err := RegisterHighlightStyle(cfg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	b, err := RegisterHighlightStyle(cfg)
	if err != nil {
		t.Fatalf("register again: %v", err)
	}
	if a != b {
		t.Errorf("style names differ: %q vs %q", a, b)
	}
}

func TestBleveIndex_Delete(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	_ = idx.Index(ctx, testDoc("d1", "B1", models.ItemTypeBlogger, "T", "onlyindoc1"))
	_ = idx.Index(ctx, testDoc("d2", "B2", models.ItemTypeBlogger, "T", "onlyindoc2"))

	if err := idx.Delete(ctx, "d1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ids := matchIDs(t, idx, FieldContent, "onlyindoc1"); len(ids) != 0 {
		t.Errorf("expected 0 results after delete, got %v", ids)
	}
	if err := idx.DeleteBatch(ctx, []string{"d2", "missing"}); err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	count, _ := idx.DocCount()
	if count != 0 {
		t.Errorf("DocCount = %d, want 0", count)
	}
}

func TestBleveIndex_OpenExistingKeepsDocuments(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "bleve")

	idx1, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	ctx := context.Background()
	if err := idx1.Index(ctx, testDoc("d1", "B1", models.ItemTypeBlogger, "T", "uniqueword")); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := idx1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx2, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex (open existing): %v", err)
	}
	defer func() {
		_ = idx2.Close()
	}()
	if ids := matchIDs(t, idx2, FieldContent, "uniqueword"); len(ids) != 1 {
		t.Errorf("after reopen got %d results, want 1", len(ids))
	}
}

func TestNewBleveIndex_createsDir(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "sub", "bleve")

	idx, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	_ = idx.Close()

	if _, err := os.Stat(indexPath); err != nil {
		t.Errorf("index path should exist: %v", err)
	}
}

func TestNewBleveIndex_MemoryPath(t *testing.T) {
	idx, err := NewBleveIndex(MemoryPath)
	if err != nil {
		t.Fatalf("NewBleveIndex(:memory:): %v", err)
	}
	defer func() { _ = idx.Close() }()
	if _, err := os.Stat(MemoryPath); err == nil {
		t.Error("memory index must not create a directory")
	}
}

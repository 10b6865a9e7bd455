package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/collabhub/matching/internal/config"
	"github.com/collabhub/matching/internal/indexer"
	"github.com/collabhub/matching/internal/keyword/keywordtest"
	"github.com/collabhub/matching/internal/models"
	"github.com/collabhub/matching/internal/search"
	"github.com/collabhub/matching/internal/seeding"
	"github.com/collabhub/matching/internal/storage"
)

type testServer struct {
	handler http.Handler
	srv     *Server
	kw      *keywordtest.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	kw := keywordtest.Wrap(keywordtest.NewMemoryIndex(t))
	ledger, err := storage.NewSQLiteLedger(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ledger.Close() })

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.BleveIndexPath = config.MemoryPath
	cfg.Storage.LedgerPath = ""

	engine, err := search.NewEngine(kw, &cfg.Search)
	if err != nil {
		t.Fatal(err)
	}
	idx := indexer.NewIndexer(kw, &cfg.Index)
	srv := NewServer(engine, idx, kw, cfg, nil, WithSeeder(seeding.NewSeeder(idx, seeding.WithLedger(ledger)), ledger))
	return &testServer{handler: srv.Router(), srv: srv, kw: kw}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func blogger(source, title, content string) map[string]interface{} {
	return map[string]interface{}{
		"sourceEntityId": source,
		"type":           "Blogger",
		"title":          title,
		"content":        content,
		"tags":           []string{"travel"},
	}
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestHandleIndexAndSearch(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/documents", blogger("B1", "Anna Travel", "travel food photography"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("index status = %d: %s", rec.Code, rec.Body.String())
	}
	var created map[string]string
	decode(t, rec, &created)
	if created["id"] == "" {
		t.Fatal("expected generated id")
	}

	if rec := ts.do(t, http.MethodPost, "/api/v1/index/refresh", nil); rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/search", map[string]interface{}{"text": "travel"})
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.SearchResponse
	decode(t, rec, &resp)
	if resp.Total != 1 || len(resp.Results) != 1 || resp.Results[0].SourceEntityID != "B1" {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.Results[0].Highlights) == 0 {
		t.Error("expected highlights")
	}
}

func TestHandleIndexDocument_Invalid(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/documents", blogger("B1", "Anna", ""))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body errorResponse
	decode(t, rec, &body)
	if body.Code != string(indexer.CodeIndexFailed) {
		t.Errorf("code = %q", body.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/documents", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", rec.Code)
	}
}

func TestHandleIndexDocument_EngineFault(t *testing.T) {
	ts := newTestServer(t)
	ts.kw.BatchErr = func(int) error { return errors.New("disk full") }
	rec := ts.do(t, http.MethodPost, "/api/v1/documents", blogger("B1", "Anna", "travel"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var body errorResponse
	decode(t, rec, &body)
	if body.Code != string(indexer.CodeIndexError) {
		t.Errorf("code = %q", body.Code)
	}
}

func TestHandleBulkIndex_PartialFailure(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/documents/bulk", map[string]interface{}{
		"documents": []interface{}{
			blogger("B1", "Anna", "travel"),
			blogger("B2", "", "no title"),
			blogger("B3", "Mark", "food"),
		},
	})
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body bulkIndexResponse
	decode(t, rec, &body)
	if body.BulkReport == nil || body.Indexed != 2 || len(body.Failures) != 1 || body.Failures[0].Position != 1 {
		t.Errorf("report = %+v", body.BulkReport)
	}
	if body.Code != string(indexer.CodeBulkIndexFailed) {
		t.Errorf("code = %q", body.Code)
	}
}

func TestHandleDocumentLifecycle(t *testing.T) {
	ts := newTestServer(t)
	doc := blogger("B1", "Anna", "travel")
	doc["id"] = "doc-1"
	if rec := ts.do(t, http.MethodPost, "/api/v1/documents", doc); rec.Code != http.StatusCreated {
		t.Fatalf("index status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodHead, "/api/v1/documents/doc-1", nil); rec.Code != http.StatusOK {
		t.Errorf("HEAD status = %d, want 200", rec.Code)
	}

	doc["title"] = "Anna Updated"
	if rec := ts.do(t, http.MethodPut, "/api/v1/documents/doc-1", doc); rec.Code != http.StatusOK {
		t.Errorf("PUT status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := ts.do(t, http.MethodDelete, "/api/v1/documents/doc-1", nil); rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodHead, "/api/v1/documents/doc-1", nil); rec.Code != http.StatusNotFound {
		t.Errorf("HEAD after delete = %d, want 404", rec.Code)
	}
}

func TestHandleBulkDelete(t *testing.T) {
	ts := newTestServer(t)
	for _, id := range []string{"d1", "d2"} {
		doc := blogger("B-"+id, "Anna", "travel")
		doc["id"] = id
		ts.do(t, http.MethodPost, "/api/v1/documents", doc)
	}
	rec := ts.do(t, http.MethodPost, "/api/v1/documents/bulk-delete", map[string][]string{"ids": {"d1", "d2"}})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if n, _ := ts.kw.DocCount(); n != 0 {
		t.Errorf("doc count = %d, want 0", n)
	}
}

func TestHandleSourceLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/documents", blogger("B1", "Anna", "travel"))

	rec := ts.do(t, http.MethodPost, "/api/v1/sources/Blogger/existing", map[string][]string{"ids": {"B1", "B9"}})
	var existing map[string][]string
	decode(t, rec, &existing)
	if len(existing["existing"]) != 1 || existing["existing"][0] != "B1" {
		t.Errorf("existing = %v", existing)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/sources/Blogger/B1/deactivate", nil)
	var updated map[string]int
	decode(t, rec, &updated)
	if updated["updated"] != 1 {
		t.Errorf("deactivate = %v", updated)
	}
	rec = ts.do(t, http.MethodPost, "/api/v1/search", map[string]interface{}{"text": "travel"})
	var resp models.SearchResponse
	decode(t, rec, &resp)
	if resp.Total != 0 {
		t.Errorf("deactivated document still found: %+v", resp)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/sources/Blogger/B1/activate", nil)
	decode(t, rec, &updated)
	if updated["updated"] != 1 {
		t.Errorf("activate = %v", updated)
	}

	rec = ts.do(t, http.MethodDelete, "/api/v1/sources/Blogger/B1", nil)
	var removed map[string]int
	decode(t, rec, &removed)
	if removed["removed"] != 1 {
		t.Errorf("remove = %v", removed)
	}

	if rec := ts.do(t, http.MethodDelete, "/api/v1/sources/Podcast/B1", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d", rec.Code)
	}
}

func TestHandleSearch_InvalidAndDegraded(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/search", map[string]interface{}{"text": "x", "itemTypes": []string{"Podcast"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid query status = %d", rec.Code)
	}

	ts.kw.SearchErr = errors.New("engine down")
	rec = ts.do(t, http.MethodPost, "/api/v1/search", map[string]interface{}{"text": "travel"})
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded status = %d", rec.Code)
	}
	var resp models.SearchResponse
	decode(t, rec, &resp)
	if resp.Total != 0 || len(resp.Results) != 0 {
		t.Errorf("degraded response = %+v", resp)
	}
}

func TestHandleSearch_PagePastResultWindow(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/documents", blogger("B1", "Anna Travel", "travel food photography"))

	for _, path := range []string{"/api/v1/search", "/api/v1/search/similar"} {
		body := map[string]interface{}{"text": "travel", "page": 184467440737095516, "size": 100}
		if path == "/api/v1/search/similar" {
			body = map[string]interface{}{"sourceEntityId": "B1", "sourceType": "Blogger", "page": 184467440737095516, "size": 100}
		}
		rec := ts.do(t, http.MethodPost, path, body)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d: %s", path, rec.Code, rec.Body.String())
		}
		var resp models.SearchResponse
		decode(t, rec, &resp)
		if len(resp.Results) != 0 {
			t.Errorf("%s results = %+v, want none", path, resp.Results)
		}
		if want := models.MaxResultWindow/100 + 1; resp.Page != want || resp.Size != 100 {
			t.Errorf("%s page = %d size = %d, want %d and 100", path, resp.Page, resp.Size, want)
		}
	}
}

func TestHandleSimilar(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/documents", blogger("B1", "Anna Travel", "travel food photography asia"))
	ts.do(t, http.MethodPost, "/api/v1/documents", blogger("B2", "Mark", "street food travel photography"))

	rec := ts.do(t, http.MethodPost, "/api/v1/search/similar", map[string]interface{}{"sourceEntityId": "B1", "sourceType": "Blogger"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.SearchResponse
	decode(t, rec, &resp)
	for _, r := range resp.Results {
		if r.SourceEntityID == "B1" {
			t.Error("seed returned as its own neighbour")
		}
	}
	if len(resp.Results) != 1 {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestHandleSuggestions(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/documents", blogger("B1", "Anna Travel", "travel"))

	rec := ts.do(t, http.MethodGet, "/api/v1/suggestions?q=ann&type=Blogger&max=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string][]string
	decode(t, rec, &body)
	if len(body["suggestions"]) != 1 || body["suggestions"][0] != "Anna Travel" {
		t.Errorf("suggestions = %v", body)
	}

	if rec := ts.do(t, http.MethodGet, "/api/v1/suggestions?q=ann&type=Podcast", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad type status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/v1/suggestions?q=ann&max=lots", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad max status = %d", rec.Code)
	}
}

func TestHandleSyncAndRuns(t *testing.T) {
	ts := newTestServer(t)
	entities := `[
		{"id": "B1", "firstName": "Anna", "lastName": "Lee", "bio": "travel"},
		{"id": "B2", "firstName": "Mark", "lastName": "Stone", "bio": "food"}
	]`
	rec := ts.do(t, http.MethodPost, "/api/v1/sources/Blogger/sync", entities)
	if rec.Code != http.StatusOK {
		t.Fatalf("sync status = %d: %s", rec.Code, rec.Body.String())
	}
	var run models.SyncRun
	decode(t, rec, &run)
	if run.Indexed != 2 || run.Status != models.SyncCompleted {
		t.Errorf("run = %+v", run)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/sources/Blogger/sync", entities)
	decode(t, rec, &run)
	if run.Indexed != 0 || run.Skipped != 2 {
		t.Errorf("second run = %+v", run)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/sync/runs?type=Blogger", nil)
	var runs struct {
		Runs []*models.SyncRun `json:"runs"`
	}
	decode(t, rec, &runs)
	if len(runs.Runs) != 2 {
		t.Errorf("runs = %d, want 2", len(runs.Runs))
	}

	if rec := ts.do(t, http.MethodPost, "/api/v1/sources/Blogger/sync", "{}"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad entities status = %d", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/documents", blogger("B1", "Anna", "travel"))
	rec := ts.do(t, http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body statusResponse
	decode(t, rec, &body)
	if body.Documents != 1 || body.BatchSize != config.DefaultBatchSize {
		t.Errorf("status = %+v", body)
	}
}

func TestHandleMetrics(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/health", nil)
	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("matching_http_requests_total")) {
		t.Error("expected http request metrics")
	}
}

func TestReloadConfig(t *testing.T) {
	ts := newTestServer(t)
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("search:\n  title_boost: 7\n  pre_tag: \"[\"\n  post_tag: \"]\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := ts.srv.ReloadConfig(path); err != nil {
		t.Fatal(err)
	}
	if got := ts.srv.engine.Tuning().TitleBoost; got != 7 {
		t.Errorf("title boost = %v, want 7", got)
	}

	if err := os.WriteFile(path, []byte("search: [oops"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := ts.srv.ReloadConfig(path); err == nil {
		t.Error("expected error for malformed config")
	}
	if got := ts.srv.engine.Tuning().TitleBoost; got != 7 {
		t.Errorf("title boost after failed reload = %v, want 7", got)
	}
}

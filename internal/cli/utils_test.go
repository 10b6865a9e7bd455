package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/collabhub/matching/internal/indexer"
	"github.com/collabhub/matching/internal/models"
)

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Query:     "travel",
		QueryTime: 42,
		Total:     1,
		Page:      1,
		Size:      10,
		Results: []*models.SearchResult{
			{
				Rank:           1,
				Score:          0.9,
				SourceEntityID: "B1",
				Type:           models.ItemTypeBlogger,
				Title:          "Anna Travel",
				Highlights:     map[string][]string{"content": {"<em>travel</em> and food"}},
				Metadata:       models.Metadata{"followers": models.Int(1200), "city": models.String("Lisbon")},
			},
		},
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	response := sampleResponse()
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded models.SearchResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != response.Query || decoded.QueryTime != response.QueryTime || decoded.Total != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
	if len(decoded.Results) != 1 || decoded.Results[0].SourceEntityID != "B1" {
		t.Errorf("decoded results = %+v", decoded.Results)
	}
	if n, ok := decoded.Results[0].Metadata["followers"].AsNumber(); !ok || n != 1200 {
		t.Errorf("followers = %v, %v", n, ok)
	}
}

func TestWriteSearchResults_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatalf("WriteSearchResults(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"Found 1 result in 42ms", "Rank: 1", "Blogger B1", "Title: Anna Travel",
		"content: <em>travel</em> and food", "Metadata: city=Lisbon, followers=1200"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteSearchResults_unknownFormatTreatedAsText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, models.EmptyResponse(models.Pagination{Page: 1, Size: 10}, "x"), OutputFormat("unknown")); err != nil {
		t.Fatalf("WriteSearchResults(unknown): %v", err)
	}
	if !strings.Contains(buf.String(), "Found 0 results") {
		t.Errorf("unknown format should fall back to text; got %q", buf.String())
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{" JSON ", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteSuggestions(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSuggestions(&buf, []string{"Travel Diaries", "Urban Travel"}, OutputText); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "Travel Diaries\nUrban Travel\n" {
		t.Errorf("text = %q", buf.String())
	}

	buf.Reset()
	if err := WriteSuggestions(&buf, []string{}, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No suggestions") {
		t.Errorf("empty text = %q", buf.String())
	}

	buf.Reset()
	if err := WriteSuggestions(&buf, []string{"a"}, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded map[string][]string
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil || len(decoded["suggestions"]) != 1 {
		t.Errorf("json = %q, %v", buf.String(), err)
	}
}

func TestWriteBulkReport(t *testing.T) {
	report := &indexer.BulkReport{
		Indexed:       3,
		Failures:      []indexer.ItemFailure{{Position: 1, ID: "d2", Reason: "empty title"}},
		FailedBatches: []int{2},
	}
	var buf bytes.Buffer
	if err := WriteBulkReport(&buf, report, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Indexed 3 documents", "position 1 (d2): empty title", "Failed batches: [2]"} {
		if !strings.Contains(out, sub) {
			t.Errorf("output missing %q:\n%s", sub, out)
		}
	}

	buf.Reset()
	if err := WriteBulkReport(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Indexed 0 documents") {
		t.Errorf("nil report = %q", buf.String())
	}
}

func TestWriteSyncRun(t *testing.T) {
	run := &models.SyncRun{
		ID:            "run-1",
		ItemType:      models.ItemTypeOffer,
		Status:        models.SyncPartial,
		Candidates:    5,
		Skipped:       1,
		Indexed:       3,
		FailedBatches: []int{1},
		Error:         "BulkIndexError: 1 batch failed",
	}
	var buf bytes.Buffer
	if err := WriteSyncRun(&buf, run, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Sync run-1 of Offer: partial", "indexed 3", "failed batches: [1]", "error: BulkIndexError"} {
		if !strings.Contains(out, sub) {
			t.Errorf("output missing %q:\n%s", sub, out)
		}
	}
}

func TestPrintSearchResults(t *testing.T) {
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = oldStdout
		_ = w.Close()
	}()
	PrintSearchResults(models.EmptyResponse(models.Pagination{Page: 1, Size: 10}, "q"))
	_ = w.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	if !strings.Contains(buf.String(), "Found 0 results") {
		t.Errorf("PrintSearchResults should write to stdout; got %q", buf.String())
	}
}

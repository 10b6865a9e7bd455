// Package cli provides output helpers for the matching command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/collabhub/matching/internal/indexer"
	"github.com/collabhub/matching/internal/keyword"
	"github.com/collabhub/matching/internal/models"
	"github.com/collabhub/matching/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json"; anything else is an error.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes one page of results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, response)
	}
	writeSearchResultsText(w, response)
	return nil
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %s in %dms (page %d, size %d)\n\n",
		utils.Pluralize(int(response.Total), "result", "results"), response.QueryTime, response.Page, response.Size)
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
}

func writeOneResult(w io.Writer, result *models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f | %s %s\n", result.Rank, result.Score, result.Type, result.SourceEntityID)
	fmt.Fprintf(w, "Title: %s\n", result.Title)
	for _, field := range keyword.TextFields {
		for _, fragment := range result.Highlights[field] {
			fmt.Fprintf(w, "  %s: %s\n", field, utils.Truncate(fragment, 200))
		}
	}
	if len(result.Metadata) > 0 {
		keys := make([]string, 0, len(result.Metadata))
		for k := range result.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + "=" + result.Metadata[k].String()
		}
		fmt.Fprintf(w, "Metadata: %s\n", strings.Join(pairs, ", "))
	}
	fmt.Fprintln(w)
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// WriteSuggestions writes title completions one per line, or as a JSON array.
func WriteSuggestions(w io.Writer, suggestions []string, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, map[string][]string{"suggestions": suggestions})
	}
	if len(suggestions) == 0 {
		fmt.Fprintln(w, "No suggestions")
		return nil
	}
	for _, s := range suggestions {
		fmt.Fprintln(w, s)
	}
	return nil
}

// WriteBulkReport summarizes a bulk index call.
func WriteBulkReport(w io.Writer, report *indexer.BulkReport, format OutputFormat) error {
	if report == nil {
		report = &indexer.BulkReport{}
	}
	if format == OutputJSON {
		return WriteJSON(w, report)
	}
	fmt.Fprintf(w, "Indexed %s\n", utils.Pluralize(report.Indexed, "document", "documents"))
	for _, f := range report.Failures {
		fmt.Fprintf(w, "  position %d (%s): %s\n", f.Position, f.ID, f.Reason)
	}
	if len(report.FailedBatches) > 0 {
		fmt.Fprintf(w, "Failed batches: %v\n", report.FailedBatches)
	}
	return nil
}

// WriteSyncRun summarizes one seeding run.
func WriteSyncRun(w io.Writer, run *models.SyncRun, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, run)
	}
	fmt.Fprintf(w, "Sync %s of %s: %s\n", run.ID, run.ItemType, run.Status)
	fmt.Fprintf(w, "  candidates %d, skipped %d, indexed %d, mapping failures %d, item failures %d\n",
		run.Candidates, run.Skipped, run.Indexed, run.MappingFailures, run.ItemFailures)
	if len(run.FailedBatches) > 0 {
		fmt.Fprintf(w, "  failed batches: %v\n", run.FailedBatches)
	}
	if run.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", run.Error)
	}
	return nil
}

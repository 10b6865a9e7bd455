package keyword

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2/search"
	"github.com/collabhub/matching/internal/models"
)

// storedDocument is the shape handed to the Bleve mapper. Field names come
// from the json tags.
type storedDocument struct {
	ID             string    `json:"id"`
	SourceEntityID string    `json:"sourceEntityId"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	TitleSuggest   string    `json:"titleSuggest"`
	Content        string    `json:"content"`
	Tags           []string  `json:"tags"`
	Metadata       string    `json:"metadata"`
	IsActive       bool      `json:"isActive"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

func encodeDocument(doc *models.SearchDocument) (*storedDocument, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	stored := &storedDocument{
		ID:             doc.ID,
		SourceEntityID: doc.SourceEntityID,
		Type:           string(doc.Type),
		Title:          doc.Title,
		TitleSuggest:   doc.Title,
		Content:        doc.Content,
		Tags:           doc.Tags,
		IsActive:       doc.IsActive,
		LastUpdated:    doc.LastUpdated.UTC(),
	}
	if len(doc.Metadata) > 0 {
		data, err := json.Marshal(doc.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: document %s metadata: %v", models.ErrInvalidDocument, doc.ID, err)
		}
		stored.Metadata = string(data)
	}
	return stored, nil
}

// DecodeHit rebuilds a document from the stored fields of a hit.
// The request must have asked for all fields.
func DecodeHit(hit *search.DocumentMatch) (*models.SearchDocument, error) {
	if hit == nil {
		return nil, fmt.Errorf("nil hit")
	}
	doc := &models.SearchDocument{
		ID:             hit.ID,
		SourceEntityID: fieldString(hit.Fields, FieldSourceEntityID),
		Type:           models.ItemType(fieldString(hit.Fields, FieldType)),
		Title:          fieldString(hit.Fields, FieldTitle),
		Content:        fieldString(hit.Fields, FieldContent),
		Tags:           fieldStrings(hit.Fields, FieldTags),
	}
	if id := fieldString(hit.Fields, FieldID); id != "" {
		doc.ID = id
	}
	if v, ok := hit.Fields[FieldIsActive].(bool); ok {
		doc.IsActive = v
	}
	if raw := fieldString(hit.Fields, FieldLastUpdated); raw != "" {
		ts, err := parseStoredTime(raw)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", hit.ID, err)
		}
		doc.LastUpdated = ts
	}
	if raw := fieldString(hit.Fields, FieldMetadata); raw != "" {
		var md models.Metadata
		if err := json.Unmarshal([]byte(raw), &md); err != nil {
			return nil, fmt.Errorf("document %s metadata: %w", hit.ID, err)
		}
		doc.Metadata = md
	}
	return doc, nil
}

// fieldString returns the first stored value of name as a string.
func fieldString(fields map[string]interface{}, name string) string {
	switch v := fields[name].(type) {
	case string:
		return v
	case []interface{}:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

// fieldStrings returns every stored value of name. Bleve returns a single
// value as a scalar and repeated values as a slice.
func fieldStrings(fields map[string]interface{}, name string) []string {
	switch v := fields[name].(type) {
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []string:
		return v
	}
	return nil
}

func parseStoredTime(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts.UTC(), nil
	}
	if nanos, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(0, nanos).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable lastUpdated %q", raw)
}

// tokenizeQuery splits query into lowercase terms, filtering out empty strings.
func tokenizeQuery(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?\"'()[]{}")
		if w != "" {
			terms = append(terms, w)
		}
	}
	return terms
}

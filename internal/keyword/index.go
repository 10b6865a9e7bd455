// Package keyword wraps the full-text engine (bleve) behind the Engine port
// used by the indexer and the search engine.
package keyword

import (
	"context"

	"github.com/blevesearch/bleve/v2"
	"github.com/collabhub/matching/internal/models"
)

// Stored and indexed field names.
const (
	FieldID             = "id"
	FieldSourceEntityID = "sourceEntityId"
	FieldType           = "type"
	FieldTitle          = "title"
	FieldTitleSuggest   = "titleSuggest"
	FieldContent        = "content"
	FieldTags           = "tags"
	FieldMetadata       = "metadata"
	FieldIsActive       = "isActive"
	FieldLastUpdated    = "lastUpdated"
)

// TextFields are the analyzed fields scored by free-text and similarity queries.
var TextFields = []string{FieldTitle, FieldContent, FieldTags}

// Engine defines the full-text engine operations the matching layer relies on.
// Implementations must be safe for concurrent use.
type Engine interface {
	// Index upserts one document by id.
	Index(ctx context.Context, doc *models.SearchDocument) error
	// IndexBatch upserts docs in one engine batch. Documents the engine cannot
	// map are left out and reported in itemErrs by position; err is set only
	// when the batch commit itself fails.
	IndexBatch(ctx context.Context, docs []*models.SearchDocument) (itemErrs map[int]error, err error)
	Delete(ctx context.Context, id string) error
	DeleteBatch(ctx context.Context, ids []string) error
	Search(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error)
	// Refresh makes previous writes visible to searches.
	Refresh(ctx context.Context) error
	// DocFrequency returns the number of documents whose field contains term.
	DocFrequency(field, term string) (uint64, error)
	// AnalyzeText splits text into index terms using the text field analyzer.
	AnalyzeText(text string) []string
	DocCount() (uint64, error)
	Close() error
}

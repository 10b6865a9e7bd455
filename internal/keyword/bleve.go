package keyword

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/collabhub/matching/internal/models"
)

// MemoryPath selects an in-memory index instead of an on-disk one.
const MemoryPath = ":memory:"

const suggestAnalyzer = "lowercase_keyword"

// BleveIndex implements Engine using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// If the path already exists, the existing index is opened and reused so that
// re-seeding only writes the documents that are missing.
// If you change the index mapping in code, remove the index directory to force a full re-index.
// A path of MemoryPath creates an in-memory index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == MemoryPath {
		return NewMemoryIndex()
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	im, err := buildMapping()
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}
	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemoryIndex creates an index that lives only in memory.
func NewMemoryIndex() (*BleveIndex, error) {
	im, err := buildMapping()
	if err != nil {
		return nil, err
	}
	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func buildMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(suggestAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register suggest analyzer: %w", err)
	}

	docMapping := bleve.NewDocumentMapping()
	docMapping.Dynamic = false

	// Use standard analyzer (lowercase + tokenize, no stemming) so a query matches
	// the exact word the entity was described with.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(FieldTitle, textFieldMapping)
	docMapping.AddFieldMappingsAt(FieldContent, textFieldMapping)
	docMapping.AddFieldMappingsAt(FieldTags, textFieldMapping)

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	keywordFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt(FieldID, keywordFieldMapping)
	docMapping.AddFieldMappingsAt(FieldSourceEntityID, keywordFieldMapping)
	docMapping.AddFieldMappingsAt(FieldType, keywordFieldMapping)

	// Whole title as one lowercase term so prefix and contains matching see multi-word titles.
	suggestFieldMapping := bleve.NewTextFieldMapping()
	suggestFieldMapping.Analyzer = suggestAnalyzer
	suggestFieldMapping.Store = false
	suggestFieldMapping.IncludeInAll = false
	suggestFieldMapping.IncludeTermVectors = false
	docMapping.AddFieldMappingsAt(FieldTitleSuggest, suggestFieldMapping)

	metadataFieldMapping := bleve.NewTextFieldMapping()
	metadataFieldMapping.Index = false
	metadataFieldMapping.IncludeInAll = false
	metadataFieldMapping.IncludeTermVectors = false
	metadataFieldMapping.DocValues = false
	docMapping.AddFieldMappingsAt(FieldMetadata, metadataFieldMapping)

	activeFieldMapping := bleve.NewBooleanFieldMapping()
	activeFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt(FieldIsActive, activeFieldMapping)

	updatedFieldMapping := bleve.NewDateTimeFieldMapping()
	updatedFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt(FieldLastUpdated, updatedFieldMapping)

	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping
	return im, nil
}

// Index upserts a document by id.
func (b *BleveIndex) Index(ctx context.Context, doc *models.SearchDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if err := b.index.Index(doc.ID, stored); err != nil {
		return fmt.Errorf("index document %q: %w", doc.ID, err)
	}
	return nil
}

// IndexBatch adds every mappable document to one batch and commits it.
func (b *BleveIndex) IndexBatch(ctx context.Context, docs []*models.SearchDocument) (map[int]error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	itemErrs := make(map[int]error)
	batch := b.index.NewBatch()
	for i, doc := range docs {
		stored, err := encodeDocument(doc)
		if err != nil {
			itemErrs[i] = err
			continue
		}
		if err := batch.Index(doc.ID, stored); err != nil {
			itemErrs[i] = fmt.Errorf("map document %q: %w", doc.ID, err)
		}
	}
	if batch.Size() == 0 {
		return itemErrs, nil
	}
	if err := ctx.Err(); err != nil {
		return itemErrs, err
	}
	if err := b.index.Batch(batch); err != nil {
		return itemErrs, fmt.Errorf("commit batch: %w", err)
	}
	return itemErrs, nil
}

// Delete removes a document from the index. Deleting a missing id is not an error.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.index.Delete(id)
}

// DeleteBatch removes ids in one batch.
func (b *BleveIndex) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("commit delete batch: %w", err)
	}
	return nil
}

// Search runs req and honours ctx cancellation.
func (b *BleveIndex) Search(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	return res, nil
}

// Refresh checks that the index is open. Bleve batches are visible to readers
// as soon as Batch returns, so there is nothing to flush.
func (b *BleveIndex) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.index.DocCount(); err != nil {
		return fmt.Errorf("refresh index: %w", err)
	}
	return nil
}

// DocFrequency returns the number of documents in which field contains term.
func (b *BleveIndex) DocFrequency(field, term string) (uint64, error) {
	dict, err := b.index.FieldDictPrefix(field, []byte(term))
	if err != nil {
		return 0, fmt.Errorf("failed to open field dictionary %q: %w", field, err)
	}
	defer dict.Close()
	for {
		entry, err := dict.Next()
		if err != nil {
			return 0, fmt.Errorf("failed to read field dictionary %q: %w", field, err)
		}
		if entry == nil {
			return 0, nil
		}
		if entry.Term == term {
			return entry.Count, nil
		}
	}
}

// AnalyzeText returns the terms the standard analyzer produces for text.
func (b *BleveIndex) AnalyzeText(text string) []string {
	analyzer := b.index.Mapping().AnalyzerNamed(standard.Name)
	if analyzer == nil {
		return tokenizeQuery(text)
	}
	tokens := analyzer.Analyze([]byte(text))
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		terms = append(terms, string(tok.Term))
	}
	return terms
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

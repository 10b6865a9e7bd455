package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultPageSize  = 10
	MaxPageSize      = 100
	MaxFuzzyDistance = 2
	// MaxResultWindow bounds offset+size for any page request.
	MaxResultWindow = 10000
)

// Filters are the hard constraints shared by full-text and similarity search.
type Filters struct {
	ItemTypes []ItemType `json:"itemTypes,omitempty"`
	// OnlyActive restricts results to active documents; defaults to true when unset.
	OnlyActive    *bool      `json:"onlyActive,omitempty"`
	CreatedAfter  *time.Time `json:"createdAfter,omitempty"`
	CreatedBefore *time.Time `json:"createdBefore,omitempty"`
}

// ActiveOnly returns whether to restrict to active documents; defaults to true when unset.
func (f *Filters) ActiveOnly() bool {
	if f.OnlyActive != nil {
		return *f.OnlyActive
	}
	return true
}

func (f *Filters) validate() error {
	for _, t := range f.ItemTypes {
		if !t.Valid() {
			return fmt.Errorf("unknown item type %q", t)
		}
	}
	if f.CreatedAfter != nil && f.CreatedBefore != nil && f.CreatedAfter.After(*f.CreatedBefore) {
		return fmt.Errorf("createdAfter must not be after createdBefore")
	}
	return nil
}

// Pagination is a 1-based page request.
type Pagination struct {
	Page int `json:"page,omitempty"`
	Size int `json:"size,omitempty"`
}

// Offset returns the number of hits to skip.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Size
}

// InWindow reports whether the page ends within MaxResultWindow. Pages past
// it are answered with an empty result without querying the index.
func (p Pagination) InWindow() bool {
	return p.Size > 0 && p.Page >= 1 && p.Page-1 <= (MaxResultWindow-p.Size)/p.Size
}

// normalize sets defaults: page below 1 becomes 1, size falls back to
// defaultSize and is capped at maxSize. Page is capped one past the last page
// of the result window so Offset cannot overflow.
func (p *Pagination) normalize(defaultSize, maxSize int) {
	if defaultSize <= 0 {
		defaultSize = DefaultPageSize
	}
	if maxSize <= 0 {
		maxSize = MaxPageSize
	}
	if maxSize > MaxResultWindow {
		maxSize = MaxResultWindow
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size <= 0 {
		p.Size = defaultSize
	}
	if p.Size > maxSize {
		p.Size = maxSize
	}
	if last := MaxResultWindow/p.Size + 1; p.Page > last {
		p.Page = last
	}
}

// SearchQuery is a full-text search request.
type SearchQuery struct {
	Text string `json:"text"`
	Pagination
	Filters
	// FuzzyDistance is the edit distance tolerated per term (0 disables fuzzy matching).
	FuzzyDistance int `json:"fuzzyDistance,omitempty"`
}

// Validate normalizes pagination and fuzziness and rejects unknown item types.
// A blank text is valid: it browses everything that passes the filters.
func (q *SearchQuery) Validate(defaultSize, maxSize int) error {
	q.Text = strings.TrimSpace(q.Text)
	q.Pagination.normalize(defaultSize, maxSize)
	if q.FuzzyDistance < 0 {
		q.FuzzyDistance = 0
	}
	if q.FuzzyDistance > MaxFuzzyDistance {
		q.FuzzyDistance = MaxFuzzyDistance
	}
	return q.Filters.validate()
}

// SimilarQuery asks for documents sharing terms with a seed document.
type SimilarQuery struct {
	SourceEntityID string   `json:"sourceEntityId"`
	SourceType     ItemType `json:"sourceType"`
	Pagination
	Filters
}

// Validate normalizes pagination and checks the seed reference.
func (q *SimilarQuery) Validate(defaultSize, maxSize int) error {
	q.SourceEntityID = strings.TrimSpace(q.SourceEntityID)
	if q.SourceEntityID == "" {
		return fmt.Errorf("sourceEntityId cannot be empty")
	}
	if !q.SourceType.Valid() {
		return fmt.Errorf("unknown source type %q", q.SourceType)
	}
	q.Pagination.normalize(defaultSize, maxSize)
	return q.Filters.validate()
}

// Package models defines the search document, query and result types shared by
// the indexer, the search engine and the HTTP API.
package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidDocument is returned when a document cannot be indexed as built.
var ErrInvalidDocument = errors.New("invalid search document")

// documentNamespace scopes the name-based ids of DocumentID.
var documentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:collabhub:matching:document"))

// DocumentID is the default id of the document projecting (typ, sourceEntityID).
// Writing the same entity again upserts that document instead of adding one.
func DocumentID(typ ItemType, sourceEntityID string) string {
	return uuid.NewSHA1(documentNamespace, []byte(string(typ)+"/"+strings.TrimSpace(sourceEntityID))).String()
}

// ItemType is the kind of business entity a document represents.
type ItemType string

const (
	ItemTypeBlogger          ItemType = "Blogger"
	ItemTypeInstagramAccount ItemType = "InstagramAccount"
	ItemTypePact             ItemType = "Pact"
	ItemTypeOffer            ItemType = "Offer"
	ItemTypeCampaign         ItemType = "Campaign"
	ItemTypeReview           ItemType = "Review"
)

var allItemTypes = []ItemType{
	ItemTypeBlogger,
	ItemTypeInstagramAccount,
	ItemTypePact,
	ItemTypeOffer,
	ItemTypeCampaign,
	ItemTypeReview,
}

// AllItemTypes returns every known item type.
func AllItemTypes() []ItemType {
	return append([]ItemType(nil), allItemTypes...)
}

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	for _, known := range allItemTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseItemType resolves s case-insensitively to an item type.
func ParseItemType(s string) (ItemType, error) {
	s = strings.TrimSpace(s)
	for _, known := range allItemTypes {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown item type %q", s)
}

// SearchDocument is the denormalized projection of one business entity.
type SearchDocument struct {
	ID             string    `json:"id"`
	SourceEntityID string    `json:"sourceEntityId"`
	Type           ItemType  `json:"type"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Tags           []string  `json:"tags,omitempty"`
	Metadata       Metadata  `json:"metadata,omitempty"`
	IsActive       bool      `json:"isActive"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

// DocumentInput is the input for building a new search document.
type DocumentInput struct {
	SourceEntityID string   `json:"sourceEntityId"`
	Type           ItemType `json:"type"`
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Tags           []string `json:"tags,omitempty"`
	Metadata       Metadata `json:"metadata,omitempty"`
}

// NewSearchDocument builds an active document with the DocumentID of its
// source entity. It fails rather than return a document with blank searchable text.
func NewSearchDocument(input DocumentInput) (*SearchDocument, error) {
	doc := &SearchDocument{
		ID:             DocumentID(input.Type, input.SourceEntityID),
		SourceEntityID: strings.TrimSpace(input.SourceEntityID),
		Type:           input.Type,
		Title:          strings.TrimSpace(input.Title),
		Content:        strings.TrimSpace(input.Content),
		Tags:           NormalizeTags(input.Tags),
		Metadata:       input.Metadata,
		IsActive:       true,
		LastUpdated:    time.Now().UTC(),
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate checks the invariants every indexed document must hold.
func (d *SearchDocument) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidDocument)
	}
	if strings.TrimSpace(d.SourceEntityID) == "" {
		return fmt.Errorf("%w: document %s has empty source entity id", ErrInvalidDocument, d.ID)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: document %s has unknown type %q", ErrInvalidDocument, d.ID, d.Type)
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: document %s has empty title", ErrInvalidDocument, d.ID)
	}
	if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("%w: document %s has empty content", ErrInvalidDocument, d.ID)
	}
	return nil
}

// NormalizeTags trims, drops blanks, dedupes case-insensitively and sorts.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

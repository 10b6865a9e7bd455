// Package mapping turns business-entity DTOs into search documents. Each item
// type has one pure mapper; Dispatch selects it by type.
package mapping

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/collabhub/matching/internal/models"
	"github.com/collabhub/matching/pkg/utils"
)

// Entity is a business entity that can be projected into the index.
type Entity interface {
	SourceEntityID() string
}

// Mapper builds a search document from one entity.
type Mapper func(Entity) (*models.SearchDocument, error)

var mappers = map[models.ItemType]Mapper{
	models.ItemTypeBlogger:          typed(BloggerDocument),
	models.ItemTypeInstagramAccount: typed(InstagramAccountDocument),
	models.ItemTypePact:             typed(PactDocument),
	models.ItemTypeOffer:            typed(OfferDocument),
	models.ItemTypeCampaign:         typed(CampaignDocument),
	models.ItemTypeReview:           typed(ReviewDocument),
}

// Dispatch returns the mapper for t.
func Dispatch(t models.ItemType) (Mapper, error) {
	m, ok := mappers[t]
	if !ok {
		return nil, fmt.Errorf("no mapper for item type %q", t)
	}
	return m, nil
}

func typed[E Entity](fn func(E) (*models.SearchDocument, error)) Mapper {
	return func(e Entity) (*models.SearchDocument, error) {
		v, ok := e.(E)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected entity %T", models.ErrInvalidDocument, e)
		}
		return fn(v)
	}
}

// Decode parses a JSON array of entities of type t.
func Decode(t models.ItemType, data []byte) ([]Entity, error) {
	switch t {
	case models.ItemTypeBlogger:
		return decodeAll[Blogger](data)
	case models.ItemTypeInstagramAccount:
		return decodeAll[InstagramAccount](data)
	case models.ItemTypePact:
		return decodeAll[Pact](data)
	case models.ItemTypeOffer:
		return decodeAll[Offer](data)
	case models.ItemTypeCampaign:
		return decodeAll[Campaign](data)
	case models.ItemTypeReview:
		return decodeAll[Review](data)
	}
	return nil, fmt.Errorf("no mapper for item type %q", t)
}

func decodeAll[E Entity](data []byte) ([]Entity, error) {
	var items []E
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode entities: %w", err)
	}
	out := make([]Entity, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out, nil
}

// join concatenates the non-blank parts with sep.
func join(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = utils.CollapseWhitespace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// build assembles the document. A blank content falls back to the title so
// entities with no description stay searchable by name.
func build(t models.ItemType, id, title, content string, tags []string, md models.Metadata) (*models.SearchDocument, error) {
	if strings.TrimSpace(content) == "" {
		content = title
	}
	if len(md) == 0 {
		md = nil
	}
	return models.NewSearchDocument(models.DocumentInput{
		SourceEntityID: id,
		Type:           t,
		Title:          title,
		Content:        content,
		Tags:           tags,
		Metadata:       md,
	})
}

// metadata collects the set values. Zero strings are skipped.
type metadata models.Metadata

func (m metadata) str(key, v string) metadata {
	if v = strings.TrimSpace(v); v != "" {
		m[key] = models.String(v)
	}
	return m
}

func (m metadata) num(key string, v float64) metadata {
	m[key] = models.Number(v)
	return m
}

func (m metadata) count(key string, v int64) metadata {
	m[key] = models.Int(v)
	return m
}

func (m metadata) flag(key string, v bool) metadata {
	m[key] = models.Bool(v)
	return m
}

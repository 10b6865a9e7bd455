package keyword

import (
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/blevesearch/bleve/v2"
	htmlformat "github.com/blevesearch/bleve/v2/search/highlight/format/html"
	simplefragmenter "github.com/blevesearch/bleve/v2/search/highlight/fragmenter/simple"
	simplehighlighter "github.com/blevesearch/bleve/v2/search/highlight/highlighter/simple"
)

// HighlightConfig controls the fragments returned with hits.
type HighlightConfig struct {
	FragmentSize int
	PreTag       string
	PostTag      string
}

// DefaultHighlightConfig returns 150-character fragments wrapped in <em>.
func DefaultHighlightConfig() HighlightConfig {
	return HighlightConfig{FragmentSize: 150, PreTag: "<em>", PostTag: "</em>"}
}

var highlightMu sync.Mutex

// RegisterHighlightStyle defines a highlighter for cfg in the global Bleve
// registry and returns its name for bleve.NewHighlightWithStyle. Equal configs
// share one highlighter.
func RegisterHighlightStyle(cfg HighlightConfig) (string, error) {
	def := DefaultHighlightConfig()
	if cfg.FragmentSize <= 0 {
		cfg.FragmentSize = def.FragmentSize
	}
	if cfg.PreTag == "" && cfg.PostTag == "" {
		cfg.PreTag, cfg.PostTag = def.PreTag, def.PostTag
	}

	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%d|%s|%s", cfg.FragmentSize, cfg.PreTag, cfg.PostTag)
	name := fmt.Sprintf("matching_%08x", h.Sum32())

	highlightMu.Lock()
	defer highlightMu.Unlock()

	cache := bleve.Config.Cache
	if _, err := cache.HighlighterNamed(name); err == nil {
		return name, nil
	}
	if _, err := cache.DefineFragmentFormatter(name, map[string]interface{}{
		"type":   htmlformat.Name,
		"before": cfg.PreTag,
		"after":  cfg.PostTag,
	}); err != nil {
		return "", fmt.Errorf("define fragment formatter: %w", err)
	}
	if _, err := cache.DefineFragmenter(name, map[string]interface{}{
		"type": simplefragmenter.Name,
		"size": float64(cfg.FragmentSize),
	}); err != nil {
		return "", fmt.Errorf("define fragmenter: %w", err)
	}
	if _, err := cache.DefineHighlighter(name, map[string]interface{}{
		"type":       simplehighlighter.Name,
		"fragmenter": name,
		"formatter":  name,
	}); err != nil {
		return "", fmt.Errorf("define highlighter: %w", err)
	}
	return name, nil
}

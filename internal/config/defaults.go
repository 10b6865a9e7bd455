package config

// DefaultBatchSize is the number of documents sent to the engine per batch.
const DefaultBatchSize = 1000

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/matching/data/indices/bleve"
	}
	if cfg.Storage.LedgerPath == "" {
		cfg.Storage.LedgerPath = "/usr/local/var/matching/data/db/ledger.db"
	}
	if cfg.Index.BatchSize <= 0 {
		cfg.Index.BatchSize = DefaultBatchSize
	}
	ApplySearchDefaults(&cfg.Search)
}

// ApplySearchDefaults fills zero search tuning values.
func ApplySearchDefaults(s *SearchConfig) {
	if s.DefaultPageSize <= 0 {
		s.DefaultPageSize = 10
	}
	if s.MaxPageSize <= 0 {
		s.MaxPageSize = 100
	}
	if s.TitleBoost <= 0 {
		s.TitleBoost = 2.0
	}
	if s.ContentBoost <= 0 {
		s.ContentBoost = 1.0
	}
	if s.TagsBoost <= 0 {
		s.TagsBoost = 1.0
	}
	if s.FragmentSize <= 0 {
		s.FragmentSize = 150
	}
	if s.MaxFragments <= 0 {
		s.MaxFragments = 3
	}
	if s.PreTag == "" && s.PostTag == "" {
		s.PreTag = "<em>"
		s.PostTag = "</em>"
	}
	if s.SuggestionMinLength <= 0 {
		s.SuggestionMinLength = 2
	}
	if s.DefaultSuggestions <= 0 {
		s.DefaultSuggestions = 10
	}
	sim := &s.Similarity
	if sim.MinTermFreq <= 0 {
		sim.MinTermFreq = 1
	}
	if sim.MinDocFreq <= 0 {
		sim.MinDocFreq = 1
	}
	if sim.MinWordLength <= 0 {
		sim.MinWordLength = 2
	}
	if sim.MaxQueryTerms <= 0 {
		sim.MaxQueryTerms = 12
	}
	if sim.MinShouldMatch == 0 {
		sim.MinShouldMatch = 0.3
	}
}

// DefaultSearchConfig returns the search tuning used when no config file is given.
func DefaultSearchConfig() SearchConfig {
	var s SearchConfig
	ApplySearchDefaults(&s)
	return s
}

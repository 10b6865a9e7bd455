package models

// SearchResult is a single ranked hit.
type SearchResult struct {
	SourceEntityID string              `json:"sourceEntityId"`
	Type           ItemType            `json:"type"`
	Title          string              `json:"title"`
	Score          float64             `json:"score"`
	Highlights     map[string][]string `json:"highlights,omitempty"`
	Metadata       Metadata            `json:"metadata,omitempty"`
	Rank           int                 `json:"rank"`
}

// SearchResponse is one page of results.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int64           `json:"total"`
	Page      int             `json:"page"`
	Size      int             `json:"size"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query,omitempty"`
}

// EmptyResponse returns a well-formed page with no results.
func EmptyResponse(page Pagination, query string) *SearchResponse {
	return &SearchResponse{
		Results: []*SearchResult{},
		Page:    page.Page,
		Size:    page.Size,
		Query:   query,
	}
}

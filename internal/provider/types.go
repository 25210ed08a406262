package provider

// SearchRequest is the body for POST /search
type SearchRequest struct {
	Objective     string   `json:"objective"`
	SearchQueries []string `json:"search_queries,omitempty"`
	MaxResults    int      `json:"max_results,omitempty"`
}

// SearchResult is one hit returned by the search provider
type SearchResult struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	PublishDate string   `json:"publish_date,omitempty"`
	Excerpts    []string `json:"excerpts,omitempty"`
}

// SearchResponse is the response from POST /search
type SearchResponse struct {
	SearchID string         `json:"search_id"`
	Results  []SearchResult `json:"results"`
	Warnings []string       `json:"warnings,omitempty"`
}

// ExtractRequest is the body for POST /extract
type ExtractRequest struct {
	URLs        []string `json:"urls"`
	Objective   string   `json:"objective,omitempty"`
	Excerpts    bool     `json:"excerpts,omitempty"`
	FullContent bool     `json:"full_content,omitempty"`
}

// ExtractResult is the extraction outcome for one URL
type ExtractResult struct {
	URL      string   `json:"url"`
	Content  string   `json:"content"`
	Markdown string   `json:"markdown,omitempty"`
	Excerpts []string `json:"excerpts,omitempty"`
}

// ExtractResponse is the response from POST /extract
type ExtractResponse struct {
	Results []ExtractResult `json:"results"`
}

package model

import (
	"net/url"
	"strings"
	"time"
)

// SourceType records how a source was discovered during research
type SourceType string

const (
	SourceTypeSearch  SourceType = "search"  // Returned by a search_web tool call
	SourceTypeExtract SourceType = "extract" // Requested by an extract_url tool call
)

// Source represents a URL discovered during one research run.
// Sources are deduplicated by URL; the first occurrence wins.
type Source struct {
	URL          string     `json:"url"`
	Title        string     `json:"title,omitempty"`
	Type         SourceType `json:"type"`
	DiscoveredAt time.Time  `json:"discovered_at"`
}

// Domain extracts the bare host name from a URL, without a www. prefix.
// Returns "" when the URL does not parse.
func Domain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
}

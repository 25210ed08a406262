package model

import (
	"math"
	"strings"
	"time"
)

// ConfidenceLevel is a coarse rating of how well a claim is supported
// by its sources
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// ParseConfidence coerces an arbitrary string to a recognized level.
// Anything unrecognized becomes low.
func ParseConfidence(s string) ConfidenceLevel {
	switch ConfidenceLevel(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Weight returns the scoring weight of a confidence level
func (c ConfidenceLevel) Weight() int {
	switch c {
	case ConfidenceHigh:
		return 100
	case ConfidenceMedium:
		return 60
	default:
		return 20
	}
}

// Excerpt is a short verbatim quotation located in a source page,
// supporting one claim
type Excerpt struct {
	Text       string          `json:"text"`
	Confidence ConfidenceLevel `json:"confidence"`
	FetchedAt  time.Time       `json:"fetched_at"`
	Failed     bool            `json:"failed,omitempty"` // Placeholder, not a located quotation
}

// SourcePosition points into one source page supporting a claim.
// StartText/EndText are approximate boundary markers suggested by the
// analysis model; Excerpt is populated lazily and is commonly absent.
type SourcePosition struct {
	URL       string   `json:"url"`
	Title     string   `json:"title,omitempty"`
	Domain    string   `json:"domain,omitempty"`
	Relevance string   `json:"relevance,omitempty"`
	StartText string   `json:"start_text,omitempty"`
	EndText   string   `json:"end_text,omitempty"`
	Excerpt   *Excerpt `json:"excerpt,omitempty"`
}

// Basis is a rich, confidence-scored citation for one claim. It is
// created once per claim and thereafter only mutated to attach
// excerpts or toggle the UI flags; the claim binding never changes.
type Basis struct {
	ID         string           `json:"id"`
	ClaimText  string           `json:"claim_text"`
	ClaimStart int              `json:"claim_start"`
	ClaimEnd   int              `json:"claim_end"`
	Confidence ConfidenceLevel  `json:"confidence"`
	Reasoning  string           `json:"reasoning"`
	Sources    []SourcePosition `json:"sources"`

	// Presentation-only flags, never affect validity
	IsExpanded bool `json:"is_expanded,omitempty"`
	IsRemoved  bool `json:"is_removed,omitempty"`
}

// AggregateScore computes the weighted quality score (0-100) over a
// set of bases: the rounded mean of the confidence weights.
func AggregateScore(bases []Basis) int {
	if len(bases) == 0 {
		return 0
	}
	total := 0
	for _, b := range bases {
		total += b.Confidence.Weight()
	}
	return int(math.Round(float64(total) / float64(len(bases))))
}

// ScoreConfidence bands an aggregate score back to a coarse level
func ScoreConfidence(score int) ConfidenceLevel {
	switch {
	case score >= 80:
		return ConfidenceHigh
	case score >= 50:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Package cite implements the citation-analysis pipeline: stripping
// inline markdown citations from a finished answer, re-identifying
// factual claims, and rebuilding each claim's citation as a rich,
// confidence-scored basis with lazily fetched supporting excerpts.
package cite

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/factrail/internal/model"
)

// StripMode selects what replaces a stripped citation link
type StripMode int

const (
	// StripModeRemove deletes the whole link, leaving room for a badge
	StripModeRemove StripMode = iota
	// StripModeKeepText replaces the link with its visible text only
	StripModeKeepText
)

// linkPattern matches inline markdown links [text](target). Targets
// with whitespace or a nested closing paren are not citation links.
var linkPattern = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)

// StripCitations locates every markdown link whose target is a valid
// http(s) URL, left to right, and returns the rewritten text plus the
// extracted citations with offsets into the original text. Text with
// no qualifying links comes back unchanged with an empty citation list.
func StripCitations(text string, mode StripMode) (string, []model.ExtractedCitation) {
	matches := linkPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var out strings.Builder
	var citations []model.ExtractedCitation
	last := 0
	delta := 0 // Cumulative length removed by earlier replacements

	for _, m := range matches {
		start, end := m[0], m[1]
		title := text[m[2]:m[3]]
		target := text[m[4]:m[5]]

		if !isHTTPURL(target) {
			continue
		}

		out.WriteString(text[last:start])
		if mode == StripModeKeepText {
			out.WriteString(title)
		}
		last = end

		citations = append(citations, model.ExtractedCitation{
			Title:            title,
			URL:              target,
			Text:             text[start:end],
			Position:         start,
			StrippedPosition: start - delta,
		})

		removed := end - start
		if mode == StripModeKeepText {
			removed -= len(title)
		}
		delta += removed
	}

	if len(citations) == 0 {
		return text, nil
	}
	out.WriteString(text[last:])
	return out.String(), citations
}

// isHTTPURL reports whether a link target parses as an absolute
// http or https URL.
func isHTTPURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

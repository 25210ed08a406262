package cite

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/factrail/internal/llm"
	"github.com/ppiankov/factrail/internal/model"
)

const claimSystemPrompt = `You identify factual claims in text. A claim is a contiguous span asserting a verifiable fact: a statistic, a date, an attribution, a stated property of a thing. Opinions, transitions, and rhetorical framing are not claims.

Respond with a JSON array only, no prose. Each element:
{"id": "c1", "text": "<exact substring copied verbatim from the input>", "start": <0-based byte offset>, "end": <exclusive end offset>}

The text field must be copied character-for-character from the input.`

func claimUserPrompt(text string) string {
	return fmt.Sprintf("Identify the factual claims in the following text:\n\n%s", text)
}

// ClaimExtractor asks the analysis model to enumerate factual claims
// and then validates or repairs every offset before returning.
type ClaimExtractor struct {
	llm    llm.Analyzer
	cfg    model.CiteConfig
	logger *zap.Logger
}

// NewClaimExtractor creates a claim extractor
func NewClaimExtractor(a llm.Analyzer, cfg model.CiteConfig, logger *zap.Logger) *ClaimExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaimExtractor{llm: a, cfg: cfg, logger: logger}
}

// rawClaim is one element of the model's response before validation
type rawClaim struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Extract enumerates the claims of the stripped answer text. A
// response that is not a JSON array is fatal to the citation run;
// individually broken claims are repaired or silently discarded.
func (e *ClaimExtractor) Extract(ctx context.Context, text string) ([]model.Claim, error) {
	raw, err := e.llm.CompleteJSON(ctx, claimSystemPrompt, claimUserPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("cite: claim extraction: %w", err)
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elements); err != nil {
		return nil, fmt.Errorf("cite: claim extraction returned invalid JSON: %w", err)
	}

	claims := make([]model.Claim, 0, len(elements))
	for i, el := range elements {
		var rc rawClaim
		if err := json.Unmarshal(el, &rc); err != nil {
			e.logger.Debug("claim element rejected", zap.Int("index", i), zap.Error(err))
			continue
		}
		claim, ok := repairClaim(text, rc)
		if !ok {
			e.logger.Debug("claim discarded, no repair found",
				zap.Int("index", i), zap.String("text", truncate(rc.Text, 80)))
			continue
		}
		if claim.ID == "" {
			claim.ID = fmt.Sprintf("c%d", i+1)
		}
		claims = append(claims, claim)
	}

	claims = filterClaims(claims, e.cfg.MinClaimLength)
	merged := MergeClaims(claims, e.cfg.MergeGap)

	e.logger.Info("claims extracted",
		zap.Int("raw", len(elements)),
		zap.Int("valid", len(claims)),
		zap.Int("merged", len(merged)))
	return merged, nil
}

// repairClaim validates one raw claim against the source text,
// relocating it exactly or fuzzily when its offsets do not hold.
// A wrong offset is worse than a missing claim, so claims that resist
// repair are dropped.
func repairClaim(source string, rc rawClaim) (model.Claim, bool) {
	if rc.Text == "" || rc.Start < 0 || rc.End > len(source) || rc.Start >= rc.End {
		return model.Claim{}, false
	}

	// Exact offsets already hold.
	if source[rc.Start:rc.End] == rc.Text {
		return model.Claim{ID: rc.ID, Text: rc.Text, Start: rc.Start, End: rc.End}, true
	}

	// Exact relocation by substring search.
	if idx := strings.Index(source, rc.Text); idx >= 0 {
		return model.Claim{ID: rc.ID, Text: rc.Text, Start: idx, End: idx + len(rc.Text)}, true
	}

	// Fuzzy relocation: shrinking word-prefix match, extended to the
	// nearest sentence terminator. Best effort, not a guarantee.
	if start, end, ok := fuzzyRelocate(source, rc.Text); ok {
		return model.Claim{ID: rc.ID, Text: source[start:end], Start: start, End: end}, true
	}

	return model.Claim{}, false
}

// wordSpan is one whitespace-delimited token with its byte range
type wordSpan struct {
	start, end int
	folded     string
}

// tokenizeWords splits text into spans, folding each token for
// comparison (lowercased, stripped of surrounding punctuation).
func tokenizeWords(text string) []wordSpan {
	var spans []wordSpan
	i := 0
	for i < len(text) {
		for i < len(text) && isSpace(text[i]) {
			i++
		}
		if i >= len(text) {
			break
		}
		start := i
		for i < len(text) && !isSpace(text[i]) {
			i++
		}
		spans = append(spans, wordSpan{start: start, end: i, folded: foldWord(text[start:i])})
	}
	return spans
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func foldWord(w string) string {
	return strings.ToLower(strings.Trim(w, `.,;:!?()"'`))
}

// fuzzyRelocate slides a shrinking word window (full word count down
// to wordCount-2, minimum 1) of the claim over the source looking for
// a prefix match, then extends the hit to the following sentence
// terminator.
func fuzzyRelocate(source, claim string) (int, int, bool) {
	sourceWords := tokenizeWords(source)
	claimWords := tokenizeWords(claim)
	if len(sourceWords) == 0 || len(claimWords) == 0 {
		return 0, 0, false
	}

	minWindow := len(claimWords) - 2
	if minWindow < 1 {
		minWindow = 1
	}

	for n := len(claimWords); n >= minWindow; n-- {
		if n > len(sourceWords) {
			continue
		}
		for i := 0; i+n <= len(sourceWords); i++ {
			if !wordsMatch(sourceWords[i:i+n], claimWords[:n]) {
				continue
			}
			start := sourceWords[i].start
			end := extendToSentenceEnd(source, sourceWords[i+n-1].end)
			if start >= end {
				continue
			}
			return start, end, true
		}
	}
	return 0, 0, false
}

func wordsMatch(window []wordSpan, prefix []wordSpan) bool {
	for i := range prefix {
		if window[i].folded != prefix[i].folded {
			return false
		}
	}
	return true
}

// extendToSentenceEnd returns the offset just past the nearest
// following sentence terminator, or the end of the text.
func extendToSentenceEnd(text string, from int) int {
	for i := from; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			return i + 1
		case '\n':
			return i
		}
	}
	return len(text)
}

var (
	wordCharPattern = regexp.MustCompile(`\w`)
	numericPattern  = regexp.MustCompile(`^[\d\s.,%$+-]+$`)
)

// filterClaims drops claims too short to verify, claims with no word
// character, and purely numeric claims.
func filterClaims(claims []model.Claim, minLength int) []model.Claim {
	if minLength <= 0 {
		minLength = 15
	}
	out := claims[:0]
	for _, c := range claims {
		if len(c.Text) < minLength {
			continue
		}
		if !wordCharPattern.MatchString(c.Text) {
			continue
		}
		if numericPattern.MatchString(c.Text) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// MergeClaims collapses claims artificially split around punctuation:
// a claim starting within gap characters of its predecessor's end is
// folded into it, keeping the earlier text as representative and
// extending the range. Idempotent.
func MergeClaims(claims []model.Claim, gap int) []model.Claim {
	if len(claims) <= 1 {
		return claims
	}
	if gap <= 0 {
		gap = 10
	}

	sorted := make([]model.Claim, len(claims))
	copy(sorted, claims)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []model.Claim{sorted[0]}
	for _, c := range sorted[1:] {
		prev := &merged[len(merged)-1]
		if c.Start <= prev.End+gap {
			if c.End > prev.End {
				prev.End = c.End
			}
			continue
		}
		merged = append(merged, c)
	}
	return merged
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package cite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/factrail/internal/llm"
	"github.com/ppiankov/factrail/internal/model"
)

const basisSystemPrompt = `You assess how well factual claims are supported by a set of research sources. For each claim, judge the support the listed sources provide.

Respond with a JSON array only, no prose. One element per claim:
{
  "claim_id": "<id>",
  "confidence": "low" | "medium" | "high",
  "reasoning": "<one or two sentences on the support quality>",
  "sources": [{"url": "<supporting url>", "relevance": "<why it supports the claim>", "start_text": "<first words of the supporting passage>", "end_text": "<last words of the supporting passage>"}]
}

Only list sources that genuinely support the claim. An empty sources array with low confidence is a valid answer.`

// fallbackReasoning marks a basis synthesized without model analysis
const fallbackReasoning = "Automatic source analysis was unavailable for this claim; manual review recommended."

// BasisBuilder produces one confidence-scored Basis per claim, in
// fixed-size batches with graceful per-claim degradation.
type BasisBuilder struct {
	llm    llm.Analyzer
	cfg    model.CiteConfig
	logger *zap.Logger
	newID  func() string
}

// NewBasisBuilder creates a basis builder
func NewBasisBuilder(a llm.Analyzer, cfg model.CiteConfig, logger *zap.Logger) *BasisBuilder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BasisBuilder{llm: a, cfg: cfg, logger: logger, newID: uuid.NewString}
}

// basisResponse is the model's judgment for one claim
type basisResponse struct {
	ClaimID    string             `json:"claim_id"`
	Confidence string             `json:"confidence"`
	Reasoning  string             `json:"reasoning"`
	Sources    []basisSourceEntry `json:"sources"`
}

type basisSourceEntry struct {
	URL       string `json:"url"`
	Relevance string `json:"relevance"`
	StartText string `json:"start_text"`
	EndText   string `json:"end_text"`
}

// Build produces exactly one Basis per claim, batch by batch in claim
// order. A failed batch call degrades to one call per claim; a failed
// individual call degrades to a synthesized low-confidence basis.
// onProgress, when non-nil, is invoked once per finished batch with
// the running claim count.
func (b *BasisBuilder) Build(ctx context.Context, claims []model.Claim, sources []model.Source, onProgress func(done, total int)) []model.Basis {
	total := len(claims)
	bases := make([]model.Basis, 0, total)

	for start := 0; start < total; start += b.cfg.BatchSize {
		end := start + b.cfg.BatchSize
		if end > total {
			end = total
		}
		batch := claims[start:end]

		judged, err := b.analyzeBatch(ctx, batch, sources)
		if err != nil {
			b.logger.Warn("basis batch call failed, falling back per claim",
				zap.Int("batch_start", start), zap.Error(err))
			judged = b.analyzeIndividually(ctx, batch, sources)
		}

		for _, claim := range batch {
			resp, ok := judged[claim.ID]
			if !ok {
				bases = append(bases, b.fallbackBasis(claim, sources))
				continue
			}
			bases = append(bases, b.newBasis(claim, resp, sources))
		}

		if onProgress != nil {
			onProgress(len(bases), total)
		}
	}
	return bases
}

// analyzeBatch judges one batch of claims with a single model call.
// Results are remapped by claim id, never taken positionally.
func (b *BasisBuilder) analyzeBatch(ctx context.Context, claims []model.Claim, sources []model.Source) (map[string]basisResponse, error) {
	raw, err := b.llm.CompleteJSON(ctx, basisSystemPrompt, basisUserPrompt(claims, sources))
	if err != nil {
		return nil, fmt.Errorf("cite: basis batch: %w", err)
	}

	var responses []basisResponse
	if err := json.Unmarshal([]byte(raw), &responses); err != nil {
		return nil, fmt.Errorf("cite: basis batch returned invalid JSON: %w", err)
	}

	judged := make(map[string]basisResponse, len(responses))
	for _, r := range responses {
		if r.ClaimID == "" {
			continue
		}
		judged[r.ClaimID] = r
	}
	return judged, nil
}

// analyzeIndividually retries a failed batch claim by claim. Claims
// whose individual call also fails are left out; the caller
// synthesizes their fallback.
func (b *BasisBuilder) analyzeIndividually(ctx context.Context, claims []model.Claim, sources []model.Source) map[string]basisResponse {
	judged := make(map[string]basisResponse, len(claims))
	for _, claim := range claims {
		resp, err := b.analyzeBatch(ctx, []model.Claim{claim}, sources)
		if err != nil {
			b.logger.Warn("individual basis call failed",
				zap.String("claim_id", claim.ID), zap.Error(err))
			continue
		}
		if r, ok := resp[claim.ID]; ok {
			judged[claim.ID] = r
		}
	}
	return judged
}

// newBasis materializes one model judgment into a Basis
func (b *BasisBuilder) newBasis(claim model.Claim, resp basisResponse, sources []model.Source) model.Basis {
	titleByURL := make(map[string]string, len(sources))
	for _, s := range sources {
		titleByURL[s.URL] = s.Title
	}

	positions := make([]model.SourcePosition, 0, len(resp.Sources))
	for _, entry := range resp.Sources {
		if entry.URL == "" {
			continue
		}
		// An unmatched URL is kept; its domain comes from the URL
		// itself rather than the discovered-source list.
		positions = append(positions, model.SourcePosition{
			URL:       entry.URL,
			Title:     titleByURL[entry.URL],
			Domain:    model.Domain(entry.URL),
			Relevance: entry.Relevance,
			StartText: entry.StartText,
			EndText:   entry.EndText,
		})
	}

	return model.Basis{
		ID:         b.newID(),
		ClaimText:  claim.Text,
		ClaimStart: claim.Start,
		ClaimEnd:   claim.End,
		Confidence: model.ParseConfidence(resp.Confidence),
		Reasoning:  strings.TrimSpace(resp.Reasoning),
		Sources:    positions,
	}
}

// fallbackBasis guarantees a Basis even under total analysis failure
func (b *BasisBuilder) fallbackBasis(claim model.Claim, sources []model.Source) model.Basis {
	var positions []model.SourcePosition
	if len(sources) > 0 {
		first := sources[0]
		positions = append(positions, model.SourcePosition{
			URL:    first.URL,
			Title:  first.Title,
			Domain: model.Domain(first.URL),
		})
	}
	return model.Basis{
		ID:         b.newID(),
		ClaimText:  claim.Text,
		ClaimStart: claim.Start,
		ClaimEnd:   claim.End,
		Confidence: model.ConfidenceLow,
		Reasoning:  fallbackReasoning,
		Sources:    positions,
	}
}

// Reanalyze re-judges an existing basis's claim, preferring sources
// not yet attached to it, for the "find a better source" action. The
// claim binding and id are preserved; on failure the original basis
// is returned unchanged alongside the error.
func (b *BasisBuilder) Reanalyze(ctx context.Context, basis model.Basis, sources []model.Source) (model.Basis, error) {
	attached := make(map[string]struct{}, len(basis.Sources))
	for _, s := range basis.Sources {
		attached[s.URL] = struct{}{}
	}

	ordered := make([]model.Source, 0, len(sources))
	var used []model.Source
	for _, s := range sources {
		if _, ok := attached[s.URL]; ok {
			used = append(used, s)
			continue
		}
		ordered = append(ordered, s)
	}
	ordered = append(ordered, used...)

	claim := model.Claim{
		ID:    basis.ID,
		Text:  basis.ClaimText,
		Start: basis.ClaimStart,
		End:   basis.ClaimEnd,
	}
	judged, err := b.analyzeBatch(ctx, []model.Claim{claim}, ordered)
	if err != nil {
		return basis, err
	}
	resp, ok := judged[claim.ID]
	if !ok {
		return basis, fmt.Errorf("cite: reanalysis returned no judgment for claim")
	}

	updated := b.newBasis(claim, resp, ordered)
	updated.ID = basis.ID
	return updated, nil
}

// basisUserPrompt renders the claims and the available sources
func basisUserPrompt(claims []model.Claim, sources []model.Source) string {
	var sb strings.Builder
	sb.WriteString("Claims:\n")
	for _, c := range claims {
		fmt.Fprintf(&sb, "- id=%s: %s\n", c.ID, c.Text)
	}
	sb.WriteString("\nAvailable sources:\n")
	if len(sources) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, s := range sources {
		if s.Title != "" {
			fmt.Fprintf(&sb, "- %s (%s)\n", s.URL, s.Title)
		} else {
			fmt.Fprintf(&sb, "- %s\n", s.URL)
		}
	}
	return sb.String()
}

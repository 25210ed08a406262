package cite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/factrail/internal/llm"
	"github.com/ppiankov/factrail/internal/model"
)

// Pipeline runs citation mode over a finished answer: strip inline
// citations, re-identify claims, and build one Basis per claim.
type Pipeline struct {
	extractor *ClaimExtractor
	builder   *BasisBuilder
	logger    *zap.Logger
}

// NewPipeline wires the citation pipeline around one analysis client
func NewPipeline(a llm.Analyzer, cfg model.CiteConfig, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		extractor: NewClaimExtractor(a, cfg, logger),
		builder:   NewBasisBuilder(a, cfg, logger),
		logger:    logger,
	}
}

// Result is the citation-mode output for one answer
type Result struct {
	Stripped  string                    `json:"stripped"`
	Citations []model.ExtractedCitation `json:"citations"`
	Claims    []model.Claim             `json:"claims"`
	Bases     []model.Basis             `json:"bases"`
	Score     int                       `json:"score"`
	ScoreBand model.ConfidenceLevel     `json:"score_band"`
}

// Run executes one citation-mode pass. Progress snapshots are
// delivered in order on the channel when it is non-nil; the channel is
// not closed by Run. Claim extraction failure is fatal; basis building
// degrades per claim and never fails the run.
func (p *Pipeline) Run(ctx context.Context, answer string, sources []model.Source, mode StripMode, progress chan<- model.Progress) (*Result, error) {
	cur := model.Progress{Phase: model.PhaseIdle}

	advance := func(to model.Phase, step, total int, msg string) error {
		next, err := cur.Transition(to, step, total, msg)
		if err != nil {
			return err
		}
		cur = next
		p.emit(ctx, progress, cur)
		return nil
	}

	if err := advance(model.PhaseStripping, 1, 3, "Removing inline citations"); err != nil {
		return nil, err
	}
	stripped, citations := StripCitations(answer, mode)

	if err := advance(model.PhaseAnalyzing, 2, 3, "Identifying factual claims"); err != nil {
		return nil, err
	}
	claims, err := p.extractor.Extract(ctx, stripped)
	if err != nil {
		if next, terr := cur.Transition(model.PhaseError, cur.Step, cur.Total, err.Error()); terr == nil {
			p.emit(ctx, progress, next)
		}
		return nil, fmt.Errorf("cite: %w", err)
	}

	if err := advance(model.PhaseResearching, 0, len(claims), "Building claim bases"); err != nil {
		return nil, err
	}
	bases := p.builder.Build(ctx, claims, sources, func(done, total int) {
		cur = cur.Advance(done, fmt.Sprintf("Analyzed %d of %d claims", done, total))
		p.emit(ctx, progress, cur)
	})

	score := model.AggregateScore(bases)
	if err := advance(model.PhaseComplete, len(claims), len(claims), "Citation analysis complete"); err != nil {
		return nil, err
	}

	p.logger.Info("citation mode finished",
		zap.Int("citations", len(citations)),
		zap.Int("claims", len(claims)),
		zap.Int("bases", len(bases)),
		zap.Int("score", score))

	return &Result{
		Stripped:  stripped,
		Citations: citations,
		Claims:    claims,
		Bases:     bases,
		Score:     score,
		ScoreBand: model.ScoreConfidence(score),
	}, nil
}

func (p *Pipeline) emit(ctx context.Context, progress chan<- model.Progress, snapshot model.Progress) {
	if progress == nil {
		return
	}
	select {
	case progress <- snapshot:
	case <-ctx.Done():
	}
}

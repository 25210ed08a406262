package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/factrail/internal/cache"
	"github.com/ppiankov/factrail/internal/cite"
	"github.com/ppiankov/factrail/internal/llm"
	"github.com/ppiankov/factrail/internal/model"
	"github.com/ppiankov/factrail/internal/provider"
	"github.com/ppiankov/factrail/internal/research"
)

var (
	citeOut      string
	citeKeepText bool
	citeExcerpts bool
	citeTimeout  time.Duration
)

// citedArtifact is the citation-mode output written next to the run
// artifact: the original run identity plus the full citation result.
type citedArtifact struct {
	RunID     string                    `json:"run_id"`
	Query     string                    `json:"query"`
	Answer    string                    `json:"answer"`
	Stripped  string                    `json:"stripped"`
	Citations []model.ExtractedCitation `json:"citations"`
	Claims    []model.Claim             `json:"claims"`
	Bases     []model.Basis             `json:"bases"`
	Score     int                       `json:"score"`
	ScoreBand model.ConfidenceLevel     `json:"score_band"`
	CitedAt   time.Time                 `json:"cited_at"`
}

// citeCmd represents the cite command
var citeCmd = &cobra.Command{
	Use:   "cite <run-artifact.json>",
	Short: "Rebuild a research answer's citations as scored bases",
	Long: `Cite re-reads a finished research run:
- Strips the answer's inline markdown citations
- Asks the analysis model to enumerate the answer's factual claims
- Grades how well the run's discovered sources support each claim
- Writes a cited-answer artifact with per-claim bases and an
  aggregate quality score

Example:
  factrail cite research.json
  factrail cite research.json --json cited.json --keep-text
  factrail cite research.json --excerpts`,
	Args: cobra.ExactArgs(1),
	RunE: runCite,
}

func init() {
	rootCmd.AddCommand(citeCmd)

	citeCmd.Flags().StringVar(&citeOut, "json", "cited.json", "output path for the cited artifact")
	citeCmd.Flags().BoolVar(&citeKeepText, "keep-text", false, "keep citation link text in the stripped answer")
	citeCmd.Flags().BoolVar(&citeExcerpts, "excerpts", false, "fetch supporting excerpts for every basis source")
	citeCmd.Flags().DurationVar(&citeTimeout, "timeout", 10*time.Minute, "overall citation timeout")
}

func runCite(cmd *cobra.Command, args []string) error {
	run, err := readRunArtifact(args[0])
	if err != nil {
		return err
	}
	if run.Answer == "" {
		return fmt.Errorf("run artifact %s has no answer to cite", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := initLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	analyzer, err := llm.NewClient(cfg.LLM, logger,
		llm.WithHTTPClient(newHTTPClient(cfg.HTTP, time.Duration(cfg.LLM.Timeout)*time.Second)))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), citeTimeout)
	defer cancel()

	mode := cite.StripModeRemove
	if citeKeepText {
		mode = cite.StripModeKeepText
	}

	progress := make(chan model.Progress, 16)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for snap := range progress {
			if snap.Total > 0 {
				fmt.Fprintf(os.Stderr, "⚙️  [%d/%d] %s\n", snap.Step, snap.Total, snap.Message)
			} else {
				fmt.Fprintf(os.Stderr, "⚙️  %s\n", snap.Message)
			}
		}
	}()

	pipeline := cite.NewPipeline(analyzer, cfg.Cite, logger)
	result, runErr := pipeline.Run(ctx, run.Answer, run.Sources, mode, progress)
	close(progress)
	<-progressDone
	if runErr != nil {
		return fmt.Errorf("citation analysis failed: %w", runErr)
	}

	if citeExcerpts {
		if err := attachExcerpts(ctx, cfg, analyzer, logger, result.Bases); err != nil {
			return err
		}
	}

	artifact := citedArtifact{
		RunID:     run.ID,
		Query:     run.Query,
		Answer:    run.Answer,
		Stripped:  result.Stripped,
		Citations: result.Citations,
		Claims:    result.Claims,
		Bases:     result.Bases,
		Score:     result.Score,
		ScoreBand: result.ScoreBand,
		CitedAt:   time.Now().UTC(),
	}
	if err := writeArtifact(citeOut, artifact); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "✓ %d claims, %d bases\n", len(result.Claims), len(result.Bases))
	fmt.Fprintf(os.Stderr, "✓ Support score: %d/100 (%s)\n", result.Score, result.ScoreBand)
	fmt.Fprintf(os.Stderr, "✓ Cited artifact: %s\n", citeOut)
	return nil
}

// attachExcerpts eagerly resolves the supporting excerpt for every
// basis source. Normally excerpts stay lazy; the --excerpts flag
// front-loads them so the artifact is self-contained.
func attachExcerpts(ctx context.Context, cfg *model.Config, analyzer llm.Analyzer, logger *zap.Logger, bases []model.Basis) error {
	if cfg.Search.APIKey == "" {
		return fmt.Errorf("no search API key configured (set PARALLEL_API_KEY or search.api_key)")
	}
	searchClient, err := provider.NewClient(cfg.Search.APIKey,
		provider.WithBaseURL(cfg.Search.BaseURL),
		provider.WithHTTPClient(newHTTPClient(cfg.HTTP, time.Duration(cfg.Search.Timeout)*time.Second)),
		provider.WithRateLimit(cfg.Search.RatePerSec, cfg.Search.RateBurst),
		provider.WithLogger(logger))
	if err != nil {
		return err
	}

	excerptCache := cache.NewMemoryCache(cfg.Cite.CacheTTL, 10*time.Minute, cfg.Cite.CacheMaxItems)
	fetcher := cite.NewExcerptFetcher(searchClient, analyzer, excerptCache, cfg.Cite, logger)

	// One request per (basis, source) pair, mapped back by flat index.
	type slot struct{ basis, source int }
	var slots []slot
	var requests []cite.ExcerptRequest
	for bi := range bases {
		for si, pos := range bases[bi].Sources {
			slots = append(slots, slot{bi, si})
			requests = append(requests, cite.ExcerptRequest{
				Position:  pos,
				ClaimText: bases[bi].ClaimText,
			})
		}
	}
	if len(requests) == 0 {
		return nil
	}

	fmt.Fprintf(os.Stderr, "⚙️  Fetching %d excerpts...\n", len(requests))
	excerpts := fetcher.FetchBatch(ctx, requests)
	for i, ex := range excerpts {
		e := ex
		bases[slots[i].basis].Sources[slots[i].source].Excerpt = &e
	}
	return nil
}

// readRunArtifact loads and validates a research run artifact
func readRunArtifact(path string) (*research.RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run artifact: %w", err)
	}
	var run research.RunResult
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parse run artifact %s: %w", path, err)
	}
	return &run, nil
}

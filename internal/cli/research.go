package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/factrail/internal/chat"
	"github.com/ppiankov/factrail/internal/model"
	"github.com/ppiankov/factrail/internal/provider"
	"github.com/ppiankov/factrail/internal/research"
	"github.com/ppiankov/factrail/internal/util"
)

var (
	researchOut     string
	researchModel   string
	researchMaxIter int
	researchTimeout time.Duration
)

// researchCmd represents the research command
var researchCmd = &cobra.Command{
	Use:   "research <query>",
	Short: "Answer a research question with tool-assisted web research",
	Long: `Research drives the model through a bounded tool-calling loop:
- The model requests web searches and page extractions as it needs them
- Every consulted URL is recorded as a source
- The final answer streams to stdout as it is produced
- The full run (answer, sources, token usage) is written as a JSON
  artifact for later citation analysis

Example:
  factrail research "When did the Eiffel Tower open?"
  factrail research "Current state of fusion energy" --json run.json
  factrail research "..." --model gpt-4o --max-iterations 20`,
	Args: cobra.ExactArgs(1),
	RunE: runResearch,
}

func init() {
	rootCmd.AddCommand(researchCmd)

	researchCmd.Flags().StringVar(&researchOut, "json", "research.json", "output path for the run artifact")
	researchCmd.Flags().StringVar(&researchModel, "model", "", "override the research model")
	researchCmd.Flags().IntVar(&researchMaxIter, "max-iterations", 0, "override the tool-loop iteration ceiling")
	researchCmd.Flags().DurationVar(&researchTimeout, "timeout", 10*time.Minute, "overall run timeout")
}

func runResearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(args[0])
	if query == "" {
		return fmt.Errorf("query must not be empty")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if researchModel != "" {
		cfg.LLM.Model = researchModel
	}
	if researchMaxIter > 0 {
		cfg.Research.MaxIterations = researchMaxIter
	}

	logger, err := initLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("no LLM API key configured (set OPENAI_API_KEY or llm.api_key)")
	}
	if cfg.Search.APIKey == "" {
		return fmt.Errorf("no search API key configured (set PARALLEL_API_KEY or search.api_key)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), researchTimeout)
	defer cancel()

	chatClient, err := chat.NewClient(cfg.LLM.APIKey,
		chat.WithBaseURL(cfg.LLM.BaseURL),
		chat.WithHTTPClient(newHTTPClient(cfg.HTTP, time.Duration(cfg.LLM.Timeout)*time.Second)),
		chat.WithLogger(logger))
	if err != nil {
		return err
	}
	searchClient, err := provider.NewClient(cfg.Search.APIKey,
		provider.WithBaseURL(cfg.Search.BaseURL),
		provider.WithHTTPClient(newHTTPClient(cfg.HTTP, time.Duration(cfg.Search.Timeout)*time.Second)),
		provider.WithRateLimit(cfg.Search.RatePerSec, cfg.Search.RateBurst),
		provider.WithLogger(logger))
	if err != nil {
		return err
	}

	registry := research.NewSourceRegistry(logger)
	dispatcher := research.NewDispatcher(searchClient, registry, cfg.Search.MaxResults, logger)
	orch := research.NewOrchestrator(chatClient, dispatcher, registry, cfg.LLM.Model, cfg.Research, logger)

	events := make(chan research.Event, 64)
	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		renderEvents(events)
	}()

	result, runErr := orch.Run(ctx, query, events)
	close(events)
	<-renderDone
	fmt.Println()

	if runErr != nil {
		return fmt.Errorf("research failed: %w", runErr)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "✓ %d iterations, %d sources\n", result.Iterations, len(result.Sources))
		fmt.Fprintf(os.Stderr, "✓ Tokens: %d prompt + %d completion = %d total\n",
			result.Usage.PromptTokens, result.Usage.CompletionTokens, result.Usage.TotalTokens)
	}

	if err := writeArtifact(researchOut, result); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ Run artifact: %s\n", researchOut)
	return nil
}

// renderEvents prints a running research session: answer text to
// stdout, tool activity and state changes to stderr.
func renderEvents(events <-chan research.Event) {
	for ev := range events {
		switch ev.Type {
		case research.EventContent:
			fmt.Print(ev.Text)
		case research.EventReasoning:
			// Reasoning is kept in the artifact, not echoed live.
		case research.EventToolCall:
			switch ev.ToolCallStatus {
			case research.ToolCallExecuting:
				fmt.Fprintf(os.Stderr, "⚙️  %s...\n", ev.ToolName)
			case research.ToolCallError:
				fmt.Fprintf(os.Stderr, "✗ %s failed\n", ev.ToolName)
			}
		case research.EventState:
			if verbose {
				fmt.Fprintf(os.Stderr, "· %s\n", ev.State)
			}
		}
	}
}

// newHTTPClient builds the outbound client both providers share:
// per-call timeout from config, optional proxy routing.
func newHTTPClient(cfg model.HTTPConfig, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// writeArtifact persists a JSON artifact with an atomic rename so a
// crashed run never leaves a truncated file behind.
func writeArtifact(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/factrail/internal/chat"
	"github.com/ppiankov/factrail/internal/model"
	"github.com/ppiankov/factrail/internal/provider"
)

// Tool names exposed to the model
const (
	ToolSearchWeb  = "search_web"
	ToolExtractURL = "extract_url"
)

// ToolSchema returns the function declarations for the research tools
func ToolSchema() []chat.Tool {
	return []chat.Tool{
		{
			Type: "function",
			Function: chat.FunctionDef{
				Name:        ToolSearchWeb,
				Description: "Search the web for pages relevant to a research objective. Returns result URLs with titles and short excerpts.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"objective": {"type": "string", "description": "What the search should accomplish, in natural language"},
						"search_queries": {"type": "array", "items": {"type": "string"}, "description": "Optional explicit search queries"},
						"max_results": {"type": "number", "description": "Maximum number of results to return"}
					},
					"required": ["objective"]
				}`),
			},
		},
		{
			Type: "function",
			Function: chat.FunctionDef{
				Name:        ToolExtractURL,
				Description: "Extract the content of one or more web pages. Use after search_web to read promising pages in full.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"urls": {"type": "array", "items": {"type": "string"}, "description": "Pages to extract"},
						"objective": {"type": "string", "description": "What information to look for"},
						"excerpts": {"type": "boolean", "description": "Return focused excerpts instead of full content"}
					},
					"required": ["urls", "objective"]
				}`),
			},
		},
	}
}

// searchExtractor is the provider surface the dispatcher consumes
type searchExtractor interface {
	Search(ctx context.Context, req provider.SearchRequest) (*provider.SearchResponse, error)
	Extract(ctx context.Context, req provider.ExtractRequest) (*provider.ExtractResponse, error)
}

// Dispatcher maps a model-requested tool call to exactly one provider
// invocation and records discovered sources along the way.
type Dispatcher struct {
	provider   searchExtractor
	sources    *SourceRegistry
	maxResults int
	logger     *zap.Logger
}

// NewDispatcher creates a tool dispatcher bound to one run's registry
func NewDispatcher(p searchExtractor, sources *SourceRegistry, maxResults int, logger *zap.Logger) *Dispatcher {
	if maxResults <= 0 {
		maxResults = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		provider:   p,
		sources:    sources,
		maxResults: maxResults,
		logger:     logger,
	}
}

type searchArgs struct {
	Objective     string   `json:"objective"`
	SearchQueries []string `json:"search_queries"`
	MaxResults    int      `json:"max_results"`
}

type extractArgs struct {
	URLs      []string `json:"urls"`
	Objective string   `json:"objective"`
	Excerpts  bool     `json:"excerpts"`
}

// searchHit is the reduced result shape fed back to the model, keeping
// its context compact.
type searchHit struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	PublishDate string   `json:"publish_date,omitempty"`
	Excerpts    []string `json:"excerpts,omitempty"`
}

// pageContent is the per-URL extraction result fed back to the model
type pageContent struct {
	URL     string `json:"url"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// Dispatch executes one tool call and returns a JSON-serializable
// result for re-injection into the conversation.
func (d *Dispatcher) Dispatch(ctx context.Context, call chat.ToolCall) (any, error) {
	switch call.Function.Name {
	case ToolSearchWeb:
		return d.searchWeb(ctx, call.Function.Arguments)
	case ToolExtractURL:
		return d.extractURL(ctx, call.Function.Arguments)
	default:
		return nil, fmt.Errorf("unknown tool: %s", call.Function.Name)
	}
}

func (d *Dispatcher) searchWeb(ctx context.Context, rawArgs string) (any, error) {
	var args searchArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return nil, fmt.Errorf("parse %s arguments %q: %w", ToolSearchWeb, rawArgs, err)
	}

	maxResults := args.MaxResults
	if maxResults <= 0 || maxResults > d.maxResults {
		maxResults = d.maxResults
	}

	resp, err := d.provider.Search(ctx, provider.SearchRequest{
		Objective:     args.Objective,
		SearchQueries: args.SearchQueries,
		MaxResults:    maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ToolSearchWeb, err)
	}

	hits := make([]searchHit, 0, len(resp.Results))
	for _, r := range resp.Results {
		d.sources.Add(r.URL, r.Title, model.SourceTypeSearch)
		hits = append(hits, searchHit{
			URL:         r.URL,
			Title:       r.Title,
			PublishDate: r.PublishDate,
			Excerpts:    r.Excerpts,
		})
	}

	d.logger.Info("search_web executed",
		zap.String("objective", args.Objective),
		zap.Int("results", len(hits)))
	return hits, nil
}

func (d *Dispatcher) extractURL(ctx context.Context, rawArgs string) (any, error) {
	var args extractArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return nil, fmt.Errorf("parse %s arguments %q: %w", ToolExtractURL, rawArgs, err)
	}
	if len(args.URLs) == 0 {
		return nil, fmt.Errorf("%s: no urls given", ToolExtractURL)
	}

	// Every requested URL becomes a discovered source, whether or not
	// its extraction succeeds.
	for _, u := range args.URLs {
		d.sources.Add(u, "", model.SourceTypeExtract)
	}

	resp, err := d.provider.Extract(ctx, provider.ExtractRequest{
		URLs:        args.URLs,
		Objective:   args.Objective,
		Excerpts:    args.Excerpts,
		FullContent: !args.Excerpts,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ToolExtractURL, err)
	}

	byURL := make(map[string]provider.ExtractResult, len(resp.Results))
	for _, r := range resp.Results {
		byURL[r.URL] = r
	}

	pages := make([]pageContent, 0, len(args.URLs))
	for _, u := range args.URLs {
		r, ok := byURL[u]
		if !ok {
			pages = append(pages, pageContent{URL: u, Error: "no content returned"})
			continue
		}
		pages = append(pages, pageContent{URL: u, Content: extractedContent(r, args.Excerpts)})
	}

	d.logger.Info("extract_url executed", zap.Int("urls", len(args.URLs)))
	return pages, nil
}

// extractedContent picks excerpts or full content per the tool flag
func extractedContent(r provider.ExtractResult, excerpts bool) string {
	if excerpts && len(r.Excerpts) > 0 {
		return strings.Join(r.Excerpts, "\n...\n")
	}
	if r.Markdown != "" {
		return r.Markdown
	}
	return r.Content
}

package cite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/ppiankov/factrail/internal/cache"
	"github.com/ppiankov/factrail/internal/llm"
	"github.com/ppiankov/factrail/internal/model"
	"github.com/ppiankov/factrail/internal/provider"
	"github.com/ppiankov/factrail/internal/worker"
)

const excerptSystemPrompt = `You locate the passage in a source page that supports a given claim. Return the passage verbatim, 1 to 4 sentences, copied exactly from the page text. Do not paraphrase.

Respond with JSON only:
{"excerpt": "<verbatim passage>", "confidence": "low" | "medium" | "high"}

If no passage in the page supports the claim, return an empty excerpt with low confidence.`

// unableToLoadText is the placeholder for failed excerpt fetches
const unableToLoadText = "Unable to load a supporting excerpt from this source."

const (
	claimKeyPrefixLen = 64    // Claim-text prefix bound for cache keys
	maxPageChars      = 12000 // Page content bound sent to the model
)

// pageExtractor is the provider surface the fetcher consumes
type pageExtractor interface {
	Extract(ctx context.Context, req provider.ExtractRequest) (*provider.ExtractResponse, error)
}

// ExcerptFetcher locates supporting passages on demand, caching
// results process-wide keyed by URL and claim-text prefix.
type ExcerptFetcher struct {
	provider pageExtractor
	llm      llm.Analyzer
	cache    cache.Cache
	cfg      model.CiteConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewExcerptFetcher creates an excerpt fetcher around a shared cache
func NewExcerptFetcher(p pageExtractor, a llm.Analyzer, c cache.Cache, cfg model.CiteConfig, logger *zap.Logger) *ExcerptFetcher {
	if cfg.ExcerptWorkers <= 0 {
		cfg.ExcerptWorkers = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExcerptFetcher{
		provider: p,
		llm:      a,
		cache:    c,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// excerptCacheKey derives the process-wide cache key from the source
// URL and a bounded prefix of the claim text.
func excerptCacheKey(url, claimText string) string {
	prefix := claimText
	if len(prefix) > claimKeyPrefixLen {
		prefix = prefix[:claimKeyPrefixLen]
	}
	return cache.Key(url + "|" + prefix)
}

// ExcerptRequest pairs a source position with the claim it supports
type ExcerptRequest struct {
	Position  model.SourcePosition
	ClaimText string
}

// Fetch returns a short verbatim quotation from the source page
// supporting the claim, or a low-confidence placeholder on failure.
// Cache hits are never refetched.
func (f *ExcerptFetcher) Fetch(ctx context.Context, pos model.SourcePosition, claimText string) model.Excerpt {
	key := excerptCacheKey(pos.URL, claimText)
	if data, ok := f.cache.Get(key); ok {
		var cached model.Excerpt
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached
		}
		_ = f.cache.Delete(key)
	}

	content := f.pageContent(ctx, pos.URL)
	if content == "" {
		// Extraction failure is transient; do not cache so a retry can
		// succeed once the page loads.
		return f.placeholder()
	}
	if len(content) > maxPageChars {
		content = content[:maxPageChars]
	}

	raw, err := f.llm.CompleteJSON(ctx, excerptSystemPrompt, excerptUserPrompt(claimText, pos, content))
	if err != nil {
		f.logger.Warn("excerpt analysis failed", zap.String("url", pos.URL), zap.Error(err))
		excerpt := f.placeholder()
		f.store(key, excerpt)
		return excerpt
	}

	var located struct {
		Excerpt    string `json:"excerpt"`
		Confidence string `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &located); err != nil || strings.TrimSpace(located.Excerpt) == "" {
		excerpt := f.placeholder()
		f.store(key, excerpt)
		return excerpt
	}

	excerpt := model.Excerpt{
		Text:       strings.TrimSpace(located.Excerpt),
		Confidence: model.ParseConfidence(located.Confidence),
		FetchedAt:  f.now().UTC(),
	}
	f.store(key, excerpt)
	return excerpt
}

// FetchBatch resolves many excerpt requests through a fixed pool of
// workers, bounding concurrent provider and model calls regardless of
// batch size. Completion order across pairs is unspecified; results
// keep the input ordering.
func (f *ExcerptFetcher) FetchBatch(ctx context.Context, requests []ExcerptRequest) []model.Excerpt {
	return worker.Map(ctx, f.cfg.ExcerptWorkers, requests, func(ctx context.Context, req ExcerptRequest) model.Excerpt {
		return f.Fetch(ctx, req.Position, req.ClaimText)
	})
}

// pageContent extracts the page's textual content, preferring
// markdown, falling back to visible text for raw HTML payloads.
func (f *ExcerptFetcher) pageContent(ctx context.Context, url string) string {
	resp, err := f.provider.Extract(ctx, provider.ExtractRequest{
		URLs:        []string{url},
		FullContent: true,
	})
	if err != nil {
		f.logger.Warn("page extraction failed", zap.String("url", url), zap.Error(err))
		return ""
	}
	if len(resp.Results) == 0 {
		return ""
	}

	r := resp.Results[0]
	if r.Markdown != "" {
		return r.Markdown
	}
	if looksLikeHTML(r.Content) {
		return htmlToText(r.Content)
	}
	return r.Content
}

func (f *ExcerptFetcher) placeholder() model.Excerpt {
	return model.Excerpt{
		Text:       unableToLoadText,
		Confidence: model.ConfidenceLow,
		FetchedAt:  f.now().UTC(),
		Failed:     true,
	}
}

func (f *ExcerptFetcher) store(key string, excerpt model.Excerpt) {
	data, err := json.Marshal(excerpt)
	if err != nil {
		return
	}
	if err := f.cache.Set(key, data, f.cfg.CacheTTL); err != nil {
		f.logger.Debug("excerpt cache store failed", zap.Error(err))
	}
}

func excerptUserPrompt(claimText string, pos model.SourcePosition, content string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Claim: %s\n", claimText)
	if pos.StartText != "" || pos.EndText != "" {
		fmt.Fprintf(&sb, "Approximate passage boundaries: %q ... %q\n", pos.StartText, pos.EndText)
	}
	fmt.Fprintf(&sb, "\nPage content:\n%s", content)
	return sb.String()
}

func looksLikeHTML(content string) bool {
	trimmed := strings.TrimSpace(content)
	return strings.HasPrefix(trimmed, "<") && strings.Contains(trimmed, "</")
}

// htmlToText extracts visible text nodes, skipping script-like tags
func htmlToText(content string) string {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return content
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(buf.String())
}

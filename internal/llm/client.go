// Package llm wraps the chat-completion provider for the analysis
// calls of citation mode: claim enumeration, basis building, and
// excerpt location. These are plain request/response completions; the
// research orchestrator's streaming protocol lives in internal/chat.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ppiankov/factrail/internal/model"
)

// Analyzer is the completion surface the citation pipeline consumes
type Analyzer interface {
	// CompleteJSON runs one completion and returns the response body
	// with any surrounding markdown code fence removed.
	CompleteJSON(ctx context.Context, system, user string) (string, error)
}

// Client implements Analyzer over an OpenAI-compatible API
type Client struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    *zap.Logger
}

// Option configures the client
type Option func(*openai.ClientConfig)

// WithHTTPClient overrides the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(cc *openai.ClientConfig) {
		if hc != nil {
			cc.HTTPClient = hc
		}
	}
}

// NewClient creates an analysis client. The API key is validated here,
// before any network call.
func NewClient(cfg model.LLMConfig, logger *zap.Logger, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	for _, o := range opts {
		o(&clientConfig)
	}

	m := cfg.AnalysisModel
	if m == "" {
		m = openai.GPT4oMini
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     m,
		maxTokens: cfg.MaxTokens,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

// CompleteJSON runs one completion expected to return JSON
func (c *Client) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   c.maxTokens,
		Temperature: 0.2,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty completion response")
	}

	c.logger.Debug("analysis completion",
		zap.String("model", c.model),
		zap.Int("tokens", resp.Usage.TotalTokens))

	return StripCodeFence(resp.Choices[0].Message.Content), nil
}

// StripCodeFence removes a surrounding markdown code fence, with or
// without a language tag, from a model response.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// Drop the language tag line (e.g. "json")
		first := strings.TrimSpace(s[:idx])
		if len(first) <= 10 && !strings.ContainsAny(first, "{[") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

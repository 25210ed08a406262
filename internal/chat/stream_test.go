package chat

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func testClient() *Client {
	return &Client{logger: zap.NewNop()}
}

func TestReadStream_ContentAccumulation(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"Hello"}}]}`,
		`data: {"choices":[{"delta":{"content":", world"}}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		`data: [DONE]`,
		"",
	}, "\n")

	var forwarded []string
	result, err := testClient().readStream(strings.NewReader(stream), StreamHandler{
		OnContent: func(text string) { forwarded = append(forwarded, text) },
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Content != "Hello, world" {
		t.Errorf("content = %q, want %q", result.Content, "Hello, world")
	}
	if result.FinishReason != "stop" {
		t.Errorf("finish reason = %q, want stop", result.FinishReason)
	}
	if len(forwarded) != 2 || forwarded[0] != "Hello" || forwarded[1] != ", world" {
		t.Errorf("forwarded deltas = %v", forwarded)
	}
}

func TestReadStream_ToolCallDeltaAccumulation(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"search_web","arguments":"{\"obj"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"ective\":\"x\"}"}}]}}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		`data: [DONE]`,
		"",
	}, "\n")

	result, err := testClient().readStream(strings.NewReader(stream), StreamHandler{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(result.ToolCalls))
	}
	tc := result.ToolCalls[0]
	if tc.Function.Name != "search_web" {
		t.Errorf("name = %q, want search_web", tc.Function.Name)
	}
	if tc.Function.Arguments != `{"objective":"x"}` {
		t.Errorf("arguments = %q, want %q", tc.Function.Arguments, `{"objective":"x"}`)
	}
	if tc.ID != "call_1" {
		t.Errorf("id = %q, want call_1", tc.ID)
	}
	if result.FinishReason != FinishToolCalls {
		t.Errorf("finish reason = %q, want %q", result.FinishReason, FinishToolCalls)
	}
}

func TestReadStream_MultipleToolCallsOrderedByIndex(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"tool_calls":[{"index":1,"id":"b","function":{"name":"extract_url","arguments":"{}"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"a","function":{"name":"search_web","arguments":"{}"}}]}}]}`,
		`data: [DONE]`,
		"",
	}, "\n")

	result, err := testClient().readStream(strings.NewReader(stream), StreamHandler{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(result.ToolCalls))
	}
	if result.ToolCalls[0].ID != "a" || result.ToolCalls[1].ID != "b" {
		t.Errorf("tool calls out of index order: %q then %q", result.ToolCalls[0].ID, result.ToolCalls[1].ID)
	}
}

func TestReadStream_MalformedFrameSkipped(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"keep"}}]}`,
		`data: {not json at all`,
		`data: {"choices":[{"delta":{"content":" going"}}]}`,
		`data: [DONE]`,
		"",
	}, "\n")

	result, err := testClient().readStream(strings.NewReader(stream), StreamHandler{})
	if err != nil {
		t.Fatalf("malformed frame should not be fatal, got %v", err)
	}
	if result.Content != "keep going" {
		t.Errorf("content = %q, want %q", result.Content, "keep going")
	}
}

func TestReadStream_ProviderErrorFrameIsFatal(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"partial"}}]}`,
		`data: {"error":{"message":"rate limited","code":429}}`,
		`data: {"choices":[{"delta":{"content":"never seen"}}]}`,
		`data: [DONE]`,
		"",
	}, "\n")

	_, err := testClient().readStream(strings.NewReader(stream), StreamHandler{})
	if err == nil {
		t.Fatal("expected provider error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Message != "rate limited" {
		t.Errorf("message = %q", apiErr.Message)
	}
	if !strings.Contains(apiErr.Error(), "429") {
		t.Errorf("error string should carry the code: %s", apiErr.Error())
	}
}

func TestReadStream_IgnoresNonDataLines(t *testing.T) {
	stream := strings.Join([]string{
		`: keep-alive comment`,
		`event: message`,
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		``,
		`data: [DONE]`,
		"",
	}, "\n")

	result, err := testClient().readStream(strings.NewReader(stream), StreamHandler{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Content != "ok" {
		t.Errorf("content = %q, want ok", result.Content)
	}
}

func TestReadStream_ReasoningVariants(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"reasoning":"thinking "}}]}`,
		`data: {"choices":[{"delta":{"reasoning_content":"harder"}}]}`,
		`data: [DONE]`,
		"",
	}, "\n")

	var forwarded strings.Builder
	result, err := testClient().readStream(strings.NewReader(stream), StreamHandler{
		OnReasoning: func(text string) { forwarded.WriteString(text) },
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Reasoning != "thinking harder" {
		t.Errorf("reasoning = %q", result.Reasoning)
	}
	if forwarded.String() != "thinking harder" {
		t.Errorf("forwarded reasoning = %q", forwarded.String())
	}
}

func TestReadStream_UsageFrame(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"x"}}]}`,
		`data: {"choices":[],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`,
		`data: [DONE]`,
		"",
	}, "\n")

	result, err := testClient().readStream(strings.NewReader(stream), StreamHandler{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Usage.TotalTokens != 15 {
		t.Errorf("usage total = %d, want 15", result.Usage.TotalTokens)
	}
}

func TestReadStream_EndsWithoutDoneSentinel(t *testing.T) {
	stream := `data: {"choices":[{"delta":{"content":"abrupt"}}]}` + "\n"

	result, err := testClient().readStream(strings.NewReader(stream), StreamHandler{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Content != "abrupt" {
		t.Errorf("content = %q", result.Content)
	}
}

package chat

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const (
	dataPrefix     = "data: "
	doneSentinel   = "[DONE]"
	maxFrameLength = 1 << 20 // 1 MiB per SSE line
)

// readStream consumes a text/event-stream body frame by frame.
// Lines without the data prefix are ignored; the [DONE] sentinel ends
// iteration; a frame embedding a provider error aborts the call; a
// malformed frame is logged and skipped.
func (c *Client) readStream(body io.Reader, handler StreamHandler) (*StreamResult, error) {
	var (
		content      strings.Builder
		reasoning    strings.Builder
		calls        = make(map[int]*ToolCall)
		finishReason string
		usage        Usage
	)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxFrameLength)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimPrefix(line, dataPrefix)
		if payload == doneSentinel {
			break
		}

		var frame streamFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			c.logger.Debug("skipping malformed stream frame",
				zap.Error(err),
				zap.String("payload", truncate(payload, 256)))
			continue
		}

		if frame.Error != nil {
			return nil, frame.Error
		}
		if frame.Usage != nil {
			usage = *frame.Usage
		}
		if len(frame.Choices) == 0 {
			continue
		}

		choice := frame.Choices[0]
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			finishReason = *choice.FinishReason
		}

		d := choice.Delta
		if d.Content != "" {
			content.WriteString(d.Content)
			if handler.OnContent != nil {
				handler.OnContent(d.Content)
			}
		}
		if text := reasoningText(d); text != "" {
			reasoning.WriteString(text)
			if handler.OnReasoning != nil {
				handler.OnReasoning(text)
			}
		}
		if len(d.ToolCalls) > 0 {
			mergeToolCallDeltas(calls, d.ToolCalls)
			if handler.OnToolCalls != nil {
				handler.OnToolCalls(d.ToolCalls)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("chat: read stream: %w", err)
	}

	return &StreamResult{
		Content:      content.String(),
		Reasoning:    reasoning.String(),
		ToolCalls:    orderedToolCalls(calls),
		FinishReason: finishReason,
		Usage:        usage,
	}, nil
}

// reasoningText picks whichever reasoning field variant the provider
// populated for this frame.
func reasoningText(d delta) string {
	if d.Reasoning != "" {
		return d.Reasoning
	}
	return d.ReasoningContent
}

// mergeToolCallDeltas folds streamed fragments into the per-index
// accumulation map. A new index seeds the entry with id and name; an
// existing index appends its argument fragment. The id and name are
// fixed by the first fragment seen for an index.
func mergeToolCallDeltas(calls map[int]*ToolCall, deltas []ToolCallDelta) {
	for _, d := range deltas {
		existing, ok := calls[d.Index]
		if !ok {
			tc := &ToolCall{
				ID:   d.ID,
				Type: d.Type,
				Function: FunctionCall{
					Name:      d.Function.Name,
					Arguments: d.Function.Arguments,
				},
			}
			if tc.Type == "" {
				tc.Type = "function"
			}
			calls[d.Index] = tc
			continue
		}
		existing.Function.Arguments += d.Function.Arguments
	}
}

// orderedToolCalls returns accumulated calls in stream-index order
func orderedToolCalls(calls map[int]*ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	indices := make([]int, 0, len(calls))
	for i := range calls {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	ordered := make([]ToolCall, 0, len(calls))
	for _, i := range indices {
		ordered = append(ordered, *calls[i])
	}
	return ordered
}

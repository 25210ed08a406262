package research

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/factrail/internal/chat"
	"github.com/ppiankov/factrail/internal/model"
)

// State of one orchestration run
type State string

const (
	StateGathering  State = "gathering"
	StateFinalizing State = "finalizing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// EventType discriminates orchestration events
type EventType string

const (
	EventState     EventType = "state"     // Run entered a new state
	EventContent   EventType = "content"   // Answer text delta
	EventReasoning EventType = "reasoning" // Model reasoning delta
	EventToolCall  EventType = "tool_call" // Tool call status change
	EventUsage     EventType = "usage"     // Updated running token totals
)

// ToolCallStatus values carried by tool_call events
const (
	ToolCallExecuting = "executing"
	ToolCallComplete  = "complete"
	ToolCallError     = "error"
)

// Event is one progress notification from a running orchestration.
// Only the fields relevant to its Type are set.
type Event struct {
	Type           EventType
	State          State
	Text           string
	ToolCallID     string
	ToolName       string
	ToolCallStatus string
	Usage          chat.Usage
}

// RunResult is the outcome of one research run
type RunResult struct {
	ID         string         `json:"id"`
	Query      string         `json:"query"`
	Answer     string         `json:"answer"`
	Reasoning  string         `json:"reasoning,omitempty"`
	Sources    []model.Source `json:"sources"`
	Usage      chat.Usage     `json:"usage"`
	Iterations int            `json:"iterations"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// chatCompleter is the protocol surface the orchestrator consumes
type chatCompleter interface {
	Complete(ctx context.Context, req chat.Request) (*chat.Response, error)
	Stream(ctx context.Context, req chat.Request, handler chat.StreamHandler) (*chat.StreamResult, error)
}

// Orchestrator drives the bounded tool-calling loop for one query at a
// time and finalizes the answer as a uniform delta stream.
type Orchestrator struct {
	chat       chatCompleter
	dispatcher *Dispatcher
	sources    *SourceRegistry
	model      string
	cfg        model.ResearchConfig
	now        func() time.Time
	logger     *zap.Logger
}

// NewOrchestrator wires an orchestrator for one run. The dispatcher
// and registry must belong to the same run.
func NewOrchestrator(c chatCompleter, d *Dispatcher, sources *SourceRegistry, chatModel string, cfg model.ResearchConfig, logger *zap.Logger) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 50
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		chat:       c,
		dispatcher: d,
		sources:    sources,
		model:      chatModel,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger,
	}
}

// Run executes the research loop for one query. Events are delivered
// in order on the provided channel when it is non-nil; the channel is
// not closed by Run. Failures propagate as the returned error with no
// internal retry.
func (o *Orchestrator) Run(ctx context.Context, query string, events chan<- Event) (*RunResult, error) {
	started := o.now()
	result := &RunResult{
		ID:        uuid.NewString(),
		Query:     query,
		StartedAt: started.UTC(),
	}

	o.emit(ctx, events, Event{Type: EventState, State: StateGathering})
	o.logger.Info("research run started", zap.String("run_id", result.ID), zap.String("query", query))

	messages := []chat.Message{
		{Role: chat.RoleSystem, Content: systemPrompt(started)},
		{Role: chat.RoleUser, Content: query},
	}

	var usage chat.Usage
	var final *chat.Choice

	for i := 0; i < o.cfg.MaxIterations; i++ {
		result.Iterations = i + 1

		resp, err := o.chat.Complete(ctx, chat.Request{
			Model:      o.model,
			Messages:   messages,
			Tools:      ToolSchema(),
			ToolChoice: "auto",
		})
		if err != nil {
			o.emit(ctx, events, Event{Type: EventState, State: StateFailed})
			return nil, fmt.Errorf("research: chat turn %d: %w", i+1, err)
		}
		if len(resp.Choices) == 0 {
			o.emit(ctx, events, Event{Type: EventState, State: StateFailed})
			return nil, fmt.Errorf("research: chat turn %d: empty choices", i+1)
		}

		usage.Add(resp.Usage)
		o.emit(ctx, events, Event{Type: EventUsage, Usage: usage})

		choice := resp.Choices[0]
		if choice.FinishReason != chat.FinishToolCalls || len(choice.Message.ToolCalls) == 0 {
			// Candidate final answer. Not appended to history: it may
			// be replaced by a separately streamed finalization turn.
			final = &choice
			break
		}

		messages = append(messages, choice.Message)
		messages = append(messages, o.executeToolCalls(ctx, choice.Message.ToolCalls, events)...)
	}

	o.emit(ctx, events, Event{Type: EventState, State: StateFinalizing})

	answer, reasoning, err := o.finalize(ctx, messages, final, &usage, events)
	if err != nil {
		o.emit(ctx, events, Event{Type: EventState, State: StateFailed})
		return nil, err
	}

	result.Answer = answer
	result.Reasoning = reasoning
	result.Usage = usage
	result.Sources = o.sources.Sources()
	result.FinishedAt = o.now().UTC()

	o.emit(ctx, events, Event{Type: EventState, State: StateDone})
	o.logger.Info("research run finished",
		zap.String("run_id", result.ID),
		zap.Int("iterations", result.Iterations),
		zap.Int("sources", len(result.Sources)),
		zap.Int("total_tokens", usage.TotalTokens))
	return result, nil
}

// executeToolCalls runs the turn's tool calls strictly sequentially,
// in the order the model requested them, and returns the tool messages
// in that same order. A failing tool never aborts the loop: its error
// is fed back so the model can adapt.
func (o *Orchestrator) executeToolCalls(ctx context.Context, calls []chat.ToolCall, events chan<- Event) []chat.Message {
	out := make([]chat.Message, 0, len(calls))
	for _, tc := range calls {
		o.emit(ctx, events, Event{
			Type: EventToolCall, ToolCallID: tc.ID,
			ToolName: tc.Function.Name, ToolCallStatus: ToolCallExecuting,
		})

		status := ToolCallComplete
		var content string
		result, err := o.dispatcher.Dispatch(ctx, tc)
		if err != nil {
			o.logger.Warn("tool call failed",
				zap.String("tool", tc.Function.Name), zap.Error(err))
			status = ToolCallError
			content = toolErrorJSON(err)
		} else if encoded, merr := json.Marshal(result); merr != nil {
			status = ToolCallError
			content = toolErrorJSON(fmt.Errorf("encode result: %w", merr))
		} else {
			content = string(encoded)
		}

		out = append(out, chat.Message{
			Role:       chat.RoleTool,
			Content:    content,
			ToolCallID: tc.ID,
		})
		o.emit(ctx, events, Event{
			Type: EventToolCall, ToolCallID: tc.ID,
			ToolName: tc.Function.Name, ToolCallStatus: status,
		})
	}
	return out
}

// finalize produces the answer stream. A turn that already carried
// text is re-chunked so callers see one uniform delta stream; a turn
// that stopped without text triggers one genuine streaming request
// over the gathered history.
func (o *Orchestrator) finalize(ctx context.Context, messages []chat.Message, final *chat.Choice, usage *chat.Usage, events chan<- Event) (answer, reasoning string, err error) {
	if final != nil && final.Message.Content != "" {
		if err := o.emitChunks(ctx, final.Message.Content, events); err != nil {
			return "", "", err
		}
		return final.Message.Content, final.Message.Reasoning, nil
	}

	// Either the iteration ceiling was reached or the last turn ended
	// for a non-content reason; stream one closing turn.
	result, err := o.chat.Stream(ctx, chat.Request{
		Model:    o.model,
		Messages: messages,
	}, chat.StreamHandler{
		OnContent: func(text string) {
			o.emit(ctx, events, Event{Type: EventContent, Text: text})
		},
		OnReasoning: func(text string) {
			o.emit(ctx, events, Event{Type: EventReasoning, Text: text})
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("research: finalize stream: %w", err)
	}
	usage.Add(result.Usage)
	o.emit(ctx, events, Event{Type: EventUsage, Usage: *usage})
	return result.Content, result.Reasoning, nil
}

// emitChunks re-streams already-complete text in fixed-size chunks
// with a small delay, interruptible between chunks via ctx.
func (o *Orchestrator) emitChunks(ctx context.Context, text string, events chan<- Event) error {
	if events == nil {
		return ctx.Err()
	}
	runes := []rune(text)
	for start := 0; start < len(runes); start += o.cfg.ChunkSize {
		end := start + o.cfg.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if !o.emit(ctx, events, Event{Type: EventContent, Text: string(runes[start:end])}) {
			return ctx.Err()
		}
		if o.cfg.ChunkDelay > 0 && end < len(runes) {
			select {
			case <-time.After(o.cfg.ChunkDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// emit delivers one event, giving up on context cancellation. Returns
// false when the event was not delivered.
func (o *Orchestrator) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	if events == nil {
		return true
	}
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func toolErrorJSON(err error) string {
	encoded, merr := json.Marshal(map[string]string{"error": err.Error()})
	if merr != nil {
		return `{"error":"tool execution failed"}`
	}
	return string(encoded)
}

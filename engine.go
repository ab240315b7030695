// Package toolstream extracts structured tool-call invocations from the
// streaming text output of language models that embed them inside prose,
// delimited by model-specific markers such as <tool_call>...</tool_call>.
// It separates prose (emitted live), reasoning content, and tool calls, and
// produces a deterministic final result when the stream ends.
//
// CONCURRENCY SUMMARY:
//   - Engine: thread-safe, can be shared across goroutines
//   - ProcessingState: NOT thread-safe, one per streaming session
//   - StreamAdapter: NOT thread-safe, single-consumer design
package toolstream

import (
	"io"
	"log/slog"

	"github.com/google/uuid"
)

const functionType = "function"

// Engine orchestrates boundary scanning, tool-call extraction, and
// finalization for one marker flavor.
//
// THREAD SAFETY: Engine instances are safe for concurrent use. All fields
// are immutable after New returns; every per-response mutable value lives in
// the ProcessingState the caller owns.
type Engine struct {
	flavor          Flavor
	logger          *slog.Logger
	metricsCallback func(MetricEventData)

	// maxToolCalls caps extracted calls per response (0 = no cap).
	maxToolCalls int

	// streamBufferLimit caps how large an open control region may grow
	// before it is abandoned and surfaced as literal prose.
	streamBufferLimit int
}

// New creates an engine with the default <tool_call> flavor and optional
// configuration.
func New(opts ...Option) *Engine {
	e := &Engine{
		flavor: ToolTagFlavor(),
		logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.LevelError + 1, // Effectively disable all logging by default
		})),
		maxToolCalls:      8,
		streamBufferLimit: 10 * 1024 * 1024,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// InitState creates a fresh ProcessingState for one streaming response.
func (e *Engine) InitState() *ProcessingState {
	return &ProcessingState{
		pendingRegionStart: -1,
		streamingArgs:      make(map[string]string),
	}
}

// ProcessChunk consumes one decoded delta and returns the prose, reasoning,
// and tool-call updates that became available with it.
//
// Calling ProcessChunk after Finalize is a caller contract violation; the
// engine guards it as a logged no-op rather than corrupting state.
func (e *Engine) ProcessChunk(state *ProcessingState, delta ChunkDelta) StreamChunkResult {
	if state.phase == phaseFinalized {
		e.logger.Warn("ProcessChunk called after Finalize, ignoring chunk",
			"content_length", len(delta.Content),
			"reasoning_length", len(delta.Reasoning))
		return StreamChunkResult{}
	}
	state.phase = phaseStreaming

	if delta.FinishReason != FinishReasonNone {
		state.finishReason = delta.FinishReason
	}

	result := StreamChunkResult{ReasoningContent: delta.Reasoning}
	if delta.Reasoning != "" {
		state.reasoningBuffer.WriteString(delta.Reasoning)
	}

	if delta.Content != "" {
		state.contentBuffer.WriteString(delta.Content)
	}

	prose, completed, preamble := e.scan(state)
	result.Content = prose
	if preamble != "" {
		result.ReasoningContent += preamble
	}
	if len(completed) > 0 {
		result.ToolCallUpdates = completed
		result.HasToolCallUpdate = true
		return result
	}

	// No region closed this step; if one is open, probe its partial payload
	// so consumers can render the in-flight call.
	if partial, ok := e.partialUpdate(state); ok {
		result.ToolCallUpdates = []ToolCallRecord{partial}
		result.HasToolCallUpdate = true
	}

	return result
}

// emitMetric safely emits a metric event if a callback is configured.
// Panics in user callbacks are recovered and logged so that metrics
// collection can never take down the stream processing path.
func (e *Engine) emitMetric(data MetricEventData) {
	if e.metricsCallback == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Metrics callback panicked - metrics collection failed but operation continues",
				"panic", r,
				"event_type", data.EventType())
		}
	}()

	e.metricsCallback(data)
}

// GenerateToolCallID generates a unique ID for a tool call using UUIDv7.
// The timestamp-based prefix keeps IDs naturally sortable while remaining
// RFC 4122 compliant.
//
// THREAD SAFETY: safe for concurrent use by multiple goroutines.
func (e *Engine) GenerateToolCallID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Entropy or clock failure; extremely unlikely, but keep serving IDs.
		e.logger.Error("UUIDv7 generation failed, falling back to UUIDv4",
			"error", err)
		id = uuid.New()
	}
	return "call_" + id.String()
}

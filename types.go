package toolstream

import "strings"

// FinishReason describes why a model stopped generating.
type FinishReason string

const (
	// FinishReasonNone means the stream has not signaled a finish yet.
	FinishReasonNone FinishReason = ""

	// FinishReasonStop is a normal end of generation.
	FinishReasonStop FinishReason = "stop"

	// FinishReasonToolCalls means generation ended because the model
	// requested one or more tool invocations.
	FinishReasonToolCalls FinishReason = "tool_calls"

	// FinishReasonOther covers provider-specific reasons (length, content
	// filter, ...) that this engine does not interpret further.
	FinishReasonOther FinishReason = "other"
)

// ParseFinishReason maps a provider finish_reason string onto the engine's
// enum. Empty and "null" map to FinishReasonNone.
func ParseFinishReason(s string) FinishReason {
	switch s {
	case "", "null":
		return FinishReasonNone
	case "stop":
		return FinishReasonStop
	case "tool_calls", "function_call":
		return FinishReasonToolCalls
	default:
		return FinishReasonOther
	}
}

// ChunkDelta is the atomic unit the engine consumes: one decoded frame of a
// streaming chat completion. Transport decoding (SSE/WebSocket framing) is
// the caller's job; see ParseChunkDelta for the common JSON frame shape.
type ChunkDelta struct {
	// Content is the content-channel text fragment, possibly empty.
	Content string

	// Reasoning is the separate thinking-channel fragment, possibly empty.
	Reasoning string

	// FinishReason is FinishReasonNone until the provider signals an end.
	FinishReason FinishReason
}

// ToolCallRecord is one structured tool invocation extracted from a control
// region of the model output.
type ToolCallRecord struct {
	// ID uniquely identifies this call across the process lifetime.
	ID string `json:"id"`

	// FunctionName is the name of the function to invoke.
	FunctionName string `json:"function_name"`

	// ArgumentsJSON is the call arguments as syntactically valid JSON text.
	ArgumentsJSON string `json:"arguments_json"`

	// IsComplete is true once the region's closing marker was observed.
	// Streaming updates for a still-open region carry false.
	IsComplete bool `json:"is_complete"`
}

// StreamChunkResult is the output of one ProcessChunk call.
type StreamChunkResult struct {
	// Content is the prose fragment that is safe to render now. It never
	// re-emits previously emitted prose and never contains control-region
	// text for regions that closed cleanly.
	Content string

	// ReasoningContent is the reasoning fragment for this step, including
	// any free-text preamble recovered from a control region that closed
	// during this call.
	ReasoningContent string

	// HasToolCallUpdate is true when ToolCallUpdates is non-empty.
	HasToolCallUpdate bool

	// ToolCallUpdates carries completed records for regions that closed
	// during this call, or a single partial record (IsComplete false) when
	// an open region's payload grew and remained parseable enough to probe.
	ToolCallUpdates []ToolCallRecord
}

// FinalResult is the authoritative end-of-stream result produced by
// Finalize, derived from a full re-scan of the accumulated buffer.
type FinalResult struct {
	// Content is the prose with all control regions excised, boundary
	// whitespace collapsed to a single space, and the whole trimmed.
	Content string

	// RawContent is the untouched accumulated content buffer, kept for
	// callers that need to re-serialize the original model output.
	RawContent string

	// ReasoningContent is the full accumulated reasoning text, trimmed.
	ReasoningContent string

	// ToolCalls lists extracted calls in closing-marker order, nil when
	// none were extracted.
	ToolCalls []ToolCallRecord

	// FinishReason is FinishReasonToolCalls whenever ToolCalls is
	// non-empty, otherwise whatever the stream signaled (FinishReasonStop
	// when nothing was signaled).
	FinishReason FinishReason
}

// lifecyclePhase tracks the session lifecycle: Idle -> Streaming -> Finalized.
type lifecyclePhase int

const (
	phaseIdle lifecyclePhase = iota
	phaseStreaming
	phaseFinalized
)

// ProcessingState is the mutable accumulator for one streaming session.
// One LLM response owns exactly one ProcessingState; the engine never shares
// state between sessions, so independent sessions can run on separate
// goroutines without locking as long as each session's chunks stay ordered.
//
// THREAD SAFETY: a ProcessingState is NOT safe for concurrent use. It is a
// single-consumer object, same as the stream that feeds it.
type ProcessingState struct {
	contentBuffer   strings.Builder
	reasoningBuffer strings.Builder

	toolCalls    []ToolCallRecord
	finishReason FinishReason

	// scanCursor marks how much of contentBuffer has been classified.
	// Invariant: 0 <= scanCursor <= contentBuffer.Len().
	scanCursor int

	// pendingRegionStart is the buffer offset of an unterminated opening
	// marker, or -1 when no region is open. Text at and beyond this offset
	// has not been emitted and must not be double-emitted later.
	pendingRegionStart int

	// pendingCallID is the provisional ID handed out with partial updates
	// for the currently open region; reused for the first record once the
	// region closes so streaming consumers see a stable ID.
	pendingCallID string

	// streamingArgs caches accumulated, repaired argument text per call ID
	// while a region is open. Entries are removed once a call completes.
	streamingArgs map[string]string

	// literalSpans lists [start, end) buffer ranges that were force-emitted
	// as prose (buffer-limit abandonment). Opening markers inside these
	// spans are ignored by the finalize re-scan.
	literalSpans [][2]int

	phase lifecyclePhase

	// final caches the Finalize output so repeated calls are byte-identical.
	final *FinalResult
}

// StreamingArguments returns the most recent repaired argument text observed
// for an in-flight call ID. It reports false for unknown IDs and for calls
// that have completed or been abandoned; completed calls carry their
// authoritative arguments in the extraction records instead.
func (s *ProcessingState) StreamingArguments(id string) (string, bool) {
	args, ok := s.streamingArgs[id]
	return args, ok
}

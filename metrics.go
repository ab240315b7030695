package toolstream

import "time"

// MetricEvent represents the type of metric event being emitted.
type MetricEvent string

const (
	// MetricEventToolCallExtraction fires when tool calls are parsed out of
	// a closed control region (during streaming or at finalize).
	MetricEventToolCallExtraction MetricEvent = "tool_call_extraction"

	// MetricEventMalformedRegion fires when a closed region's payload could
	// not be parsed even after structural repair and was absorbed.
	MetricEventMalformedRegion MetricEvent = "malformed_region"

	// MetricEventStreamFinalize fires once per session when the terminal
	// result is derived.
	MetricEventStreamFinalize MetricEvent = "stream_finalize"
)

// MetricEventData is implemented by all metric event data structures,
// enabling type-safe handling behind a single callback signature.
type MetricEventData interface {
	EventType() MetricEvent
}

// PerformanceMetrics contains timing information for an operation.
// Instances are immutable after creation and safe for concurrent reads.
type PerformanceMetrics struct {
	// ProcessingDuration is the total time spent processing the operation.
	ProcessingDuration time.Duration `json:"processing_duration"`

	// SubOperations provides timing breakdowns for composite operations.
	SubOperations map[string]time.Duration `json:"sub_operations,omitempty"`
}

// ToolCallExtractionData describes one successful control-region extraction.
type ToolCallExtractionData struct {
	// CallCount is the number of calls extracted from the region.
	CallCount int `json:"call_count"`

	// FunctionNames lists the extracted function names in source order.
	FunctionNames []string `json:"function_names"`

	// PayloadLength is the region payload length in bytes.
	PayloadLength int `json:"payload_length"`

	// Streaming is true when the region closed mid-stream, false for the
	// finalize re-scan.
	Streaming bool `json:"streaming"`

	// Performance contains timing metrics for this extraction.
	Performance PerformanceMetrics `json:"performance"`
}

func (d ToolCallExtractionData) EventType() MetricEvent {
	return MetricEventToolCallExtraction
}

// MalformedRegionData describes a region payload that was absorbed because
// it stayed unparseable after repair.
type MalformedRegionData struct {
	// PayloadLength is the unparseable payload's length in bytes.
	PayloadLength int `json:"payload_length"`

	// Streaming is true when detected mid-stream, false at finalize.
	Streaming bool `json:"streaming"`
}

func (d MalformedRegionData) EventType() MetricEvent {
	return MetricEventMalformedRegion
}

// StreamFinalizeData summarizes one session's terminal result.
type StreamFinalizeData struct {
	// ContentLength is the final prose length in bytes.
	ContentLength int `json:"content_length"`

	// ReasoningLength is the final reasoning text length in bytes.
	ReasoningLength int `json:"reasoning_length"`

	// ToolCallCount is the number of extracted calls.
	ToolCallCount int `json:"tool_call_count"`

	// RegionCount is the number of closed control regions found by the
	// finalize re-scan.
	RegionCount int `json:"region_count"`

	// FinishReason is the terminal finish reason.
	FinishReason string `json:"finish_reason"`

	// Performance contains timing metrics for the finalize pass.
	Performance PerformanceMetrics `json:"performance"`
}

func (d StreamFinalizeData) EventType() MetricEvent {
	return MetricEventStreamFinalize
}

package toolstream

import (
	"io"
	"log/slog"
)

// Option is a function that configures the Engine.
// The functional options pattern keeps construction backwards compatible:
// new options never break existing callers, and each option validates its
// own input.
type Option func(*Engine)

// WithFlavor selects the marker flavor for this engine instance. Exactly
// one flavor is active per engine; streams that mix delimiter families need
// one engine per family.
//
// Default: ToolTagFlavor (<tool_call>...</tool_call>).
func WithFlavor(flavor Flavor) Option {
	return func(e *Engine) {
		if flavor == nil {
			e.logger.Warn("Nil flavor provided, keeping default tool_tag flavor")
			return
		}
		if flavor.OpenMarker() == "" || flavor.CloseMarker() == "" {
			e.logger.Warn("Flavor with empty marker provided, keeping default tool_tag flavor",
				"flavor", flavor.Name())
			return
		}
		e.flavor = flavor
	}
}

// WithLogger sets a custom slog.Logger for the engine.
//
// Logging strategy:
// - INFO: extraction events (tool calls detected and converted)
// - DEBUG: scanner and finalize detail
// - WARN: degraded paths (malformed payloads, buffer limits, contract violations)
// - ERROR: failures that affect functionality
//
// If no logger is provided, a no-op logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger == nil {
			e.logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
				Level: slog.LevelError + 1, // Effectively disable all logging
			}))
			return
		}
		e.logger = logger
	}
}

// WithLogLevel sets the logging level for the default logger. This is a
// convenience for tests; production callers should use WithLogger with a
// properly configured handler.
func WithLogLevel(level slog.Level) Option {
	return func(e *Engine) {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: level,
		}))
	}
}

// WithMetricsCallback sets a callback that receives typed metric events
// (extraction, malformed region, finalize). The callback runs synchronously
// on the processing path, so it must be fast; panics inside it are recovered
// and logged without affecting stream processing.
func WithMetricsCallback(callback func(MetricEventData)) Option {
	return func(e *Engine) {
		e.metricsCallback = callback
	}
}

// WithMaxToolCalls caps the number of tool calls extracted per response
// across all control regions. Set to 0 for no limit (not recommended for
// production).
//
// Default: 8
func WithMaxToolCalls(maxCalls int) Option {
	return func(e *Engine) {
		if maxCalls < 0 {
			e.logger.Warn("Negative value not allowed for MaxToolCalls",
				"supplied_maxCalls", maxCalls,
				"updated_maxCalls", 0,
				"implication", "No limit will be applied to the number of tool calls")
			maxCalls = 0
		}
		e.maxToolCalls = maxCalls
	}
}

// WithStreamBufferLimit caps how large an open control region may grow
// before the engine gives up on it and surfaces the withheld text as
// literal prose. This bounds memory held back from the UI when a model
// emits an opening marker and never closes it.
//
// Default: 10MB (10 * 1024 * 1024 bytes)
func WithStreamBufferLimit(limitBytes int) Option {
	return func(e *Engine) {
		if limitBytes > 0 {
			e.streamBufferLimit = limitBytes
		}
	}
}

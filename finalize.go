package toolstream

import (
	"strings"
	"time"
)

// Finalize produces the authoritative end-of-stream result. It re-scans the
// full content buffer from offset 0 exactly as the boundary scanner would,
// in one pass, so the result is independent of how the stream was chunked.
//
// Finalize is idempotent: the result is computed once, cached on the state,
// and returned byte-identical on repeated calls. The state is terminal
// afterwards; ProcessChunk calls are ignored.
func (e *Engine) Finalize(state *ProcessingState) FinalResult {
	if state.final != nil {
		return *state.final
	}
	start := time.Now()

	raw := state.contentBuffer.String()
	segments, payloads := e.splitRegions(raw, state.literalSpans)

	var calls []ToolCallRecord
	preambles := make([]string, 0, len(payloads))
	for _, payload := range payloads {
		records, pre := e.recordsFromPayload(payload, false)
		if pre != "" {
			preambles = append(preambles, pre)
		}
		calls = append(calls, records...)
	}
	if e.maxToolCalls > 0 && len(calls) > e.maxToolCalls {
		calls = calls[:e.maxToolCalls]
	}

	// Reuse streaming-assigned IDs by position so consumers that tracked
	// partial updates can correlate; regions never completed during
	// streaming get fresh IDs here.
	for i := range calls {
		if i < len(state.toolCalls) && state.toolCalls[i].FunctionName == calls[i].FunctionName {
			calls[i].ID = state.toolCalls[i].ID
		} else {
			calls[i].ID = e.GenerateToolCallID()
		}
	}

	content := joinProse(segments)

	reasoning := state.reasoningBuffer.String()
	for _, pre := range preambles {
		if strings.TrimSpace(reasoning) != "" {
			reasoning += "\n"
		}
		reasoning += pre
	}
	reasoning = strings.TrimSpace(reasoning)

	finishReason := state.finishReason
	if len(calls) > 0 {
		// Tool-call presence takes precedence over the provider signal.
		finishReason = FinishReasonToolCalls
	} else if finishReason == FinishReasonNone {
		finishReason = FinishReasonStop
	}

	var toolCalls []ToolCallRecord
	if len(calls) > 0 {
		toolCalls = calls
	}

	result := FinalResult{
		Content:          content,
		RawContent:       raw,
		ReasoningContent: reasoning,
		ToolCalls:        toolCalls,
		FinishReason:     finishReason,
	}
	state.final = &result
	state.phase = phaseFinalized

	e.logger.Debug("Finalized stream processing",
		"content_length", len(content),
		"reasoning_length", len(reasoning),
		"tool_call_count", len(calls),
		"region_count", len(payloads),
		"finish_reason", string(finishReason))
	e.emitMetric(StreamFinalizeData{
		ContentLength:   len(content),
		ReasoningLength: len(reasoning),
		ToolCallCount:   len(calls),
		RegionCount:     len(payloads),
		FinishReason:    string(finishReason),
		Performance: PerformanceMetrics{
			ProcessingDuration: time.Since(start),
		},
	})

	return result
}

// splitRegions walks the raw buffer and separates prose segments from closed
// control-region payloads. An opening marker with no closing marker is a
// cut-off response; its trailing text stays in the prose so the user still
// sees what the model produced. Markers inside recorded literal spans
// (abandoned oversized regions) are ignored.
func (e *Engine) splitRegions(raw string, literalSpans [][2]int) (segments, payloads []string) {
	openMarker := e.flavor.OpenMarker()
	closeMarker := e.flavor.CloseMarker()

	pos := 0
	for pos < len(raw) {
		idx := nextMarker(raw, openMarker, pos, literalSpans)
		if idx < 0 {
			segments = append(segments, raw[pos:])
			return segments, payloads
		}

		payloadStart := idx + len(openMarker)
		rel := strings.Index(raw[payloadStart:], closeMarker)
		if rel < 0 {
			segments = append(segments, raw[pos:])
			return segments, payloads
		}

		segments = append(segments, raw[pos:idx])
		payloads = append(payloads, raw[payloadStart:payloadStart+rel])
		pos = payloadStart + rel + len(closeMarker)
	}
	return segments, payloads
}

// nextMarker finds the leftmost occurrence of marker at or after from,
// skipping occurrences inside literal spans.
func nextMarker(raw, marker string, from int, literalSpans [][2]int) int {
	pos := from
	for {
		idx := strings.Index(raw[pos:], marker)
		if idx < 0 {
			return -1
		}
		abs := pos + idx
		if inLiteralSpan(abs, literalSpans) {
			pos = abs + 1
			continue
		}
		return abs
	}
}

func inLiteralSpan(offset int, spans [][2]int) bool {
	for _, span := range spans {
		if offset >= span[0] && offset < span[1] {
			return true
		}
	}
	return false
}

// joinProse stitches the prose segments surrounding excised regions back
// together: non-empty neighbors are joined with exactly one space so words
// never run together, and the whole is trimmed.
func joinProse(segments []string) string {
	var parts []string
	for _, seg := range segments {
		if strings.TrimSpace(seg) != "" {
			parts = append(parts, seg)
		}
	}

	content := ""
	for i, p := range parts {
		if i == 0 {
			content = p
			continue
		}
		content = strings.TrimRight(content, " \t\r\n") + " " + strings.TrimLeft(p, " \t\r\n")
	}
	return strings.TrimSpace(content)
}

package toolstream

import "strings"

// scan classifies everything between the scan cursor and the end of the
// content buffer into prose (returned for immediate emission) and control
// regions (extracted when their closing marker has arrived, withheld
// otherwise). It returns the prose decided emittable by this call, records
// for regions that closed, and any reasoning preamble those regions carried.
//
// Marker matching is literal, case- and whitespace-sensitive; the leftmost
// occurrence wins. An opening marker seen while a region is already open is
// ordinary payload text (no nesting).
func (e *Engine) scan(state *ProcessingState) (string, []ToolCallRecord, string) {
	buf := state.contentBuffer.String()
	openMarker := e.flavor.OpenMarker()
	closeMarker := e.flavor.CloseMarker()

	var prose strings.Builder
	var completed []ToolCallRecord
	var reasoning strings.Builder

	for {
		if state.pendingRegionStart >= 0 {
			payloadStart := state.pendingRegionStart + len(openMarker)
			rel := strings.Index(buf[payloadStart:], closeMarker)
			if rel < 0 {
				// Region still open. If it has outgrown the configured
				// limit, give up on it and surface the span as literal
				// prose; the finalize re-scan skips recorded spans so both
				// passes agree on what was prose.
				if e.streamBufferLimit > 0 && len(buf)-state.pendingRegionStart > e.streamBufferLimit {
					e.logger.Warn("Open control region exceeded buffer limit, emitting as literal content",
						"region_length", len(buf)-state.pendingRegionStart,
						"limit", e.streamBufferLimit)
					state.literalSpans = append(state.literalSpans, [2]int{state.pendingRegionStart, len(buf)})
					prose.WriteString(buf[state.pendingRegionStart:])
					state.scanCursor = len(buf)
					state.pendingRegionStart = -1
					if state.pendingCallID != "" {
						delete(state.streamingArgs, state.pendingCallID)
						state.pendingCallID = ""
					}
				}
				break
			}

			payload := buf[payloadStart : payloadStart+rel]
			regionEnd := payloadStart + rel + len(closeMarker)

			records, pre := e.extractRegion(state, payload)
			completed = append(completed, records...)
			reasoning.WriteString(pre)

			state.pendingRegionStart = -1
			state.scanCursor = regionEnd
			continue
		}

		rest := buf[state.scanCursor:]
		if rest == "" {
			break
		}

		if idx := strings.Index(rest, openMarker); idx >= 0 {
			prose.WriteString(rest[:idx])
			state.pendingRegionStart = state.scanCursor + idx
			state.scanCursor = state.pendingRegionStart
			continue
		}

		// No full marker. Withhold a trailing proper prefix of the opening
		// marker; more characters may complete it into a real marker.
		hold := trailingMarkerPrefix(rest, openMarker)
		emitEnd := len(rest) - hold
		prose.WriteString(rest[:emitEnd])
		state.scanCursor += emitEnd
		break
	}

	return prose.String(), completed, reasoning.String()
}

// trailingMarkerPrefix returns the length of the longest proper, non-empty
// prefix of marker that ends s, or 0 when s cannot be extended into marker.
func trailingMarkerPrefix(s, marker string) int {
	max := len(marker) - 1
	if len(s) < max {
		max = len(s)
	}
	for l := max; l > 0; l-- {
		if strings.HasSuffix(s, marker[:l]) {
			return l
		}
	}
	return 0
}

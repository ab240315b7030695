package toolstream

import "strings"

// Flavor parameterizes the engine for one model family's way of embedding
// tool calls in text: the marker literals that delimit a control region and
// the parsing of a closed region's payload. The boundary scanner and the
// finalizer are flavor-agnostic; an engine instance uses exactly one flavor.
type Flavor interface {
	// Name identifies the flavor in logs and metrics.
	Name() string

	// OpenMarker returns the literal opening delimiter of a control region.
	OpenMarker() string

	// CloseMarker returns the literal closing delimiter of a control region.
	CloseMarker() string

	// ParsePayload parses one fully-closed region payload. It returns the
	// raw calls, any free-text reasoning preamble the payload carried, and
	// whether the payload was structurally parseable (after repair).
	ParsePayload(payload string) (calls []RawToolCall, reasoning string, ok bool)

	// ProbePartial best-effort probes a still-open region's payload for the
	// in-flight call's name and argument text. ok is false whenever the
	// fragment is not yet coherent enough to repair.
	ProbePartial(payload string) (name string, argsJSON string, ok bool)
}

// markerFlavor is the shared implementation: a fixed marker pair around an
// object-or-array JSON payload.
type markerFlavor struct {
	name       string
	openMarker string
	closeMark  string
}

func (f *markerFlavor) Name() string        { return f.name }
func (f *markerFlavor) OpenMarker() string  { return f.openMarker }
func (f *markerFlavor) CloseMarker() string { return f.closeMark }

func (f *markerFlavor) ParsePayload(payload string) ([]RawToolCall, string, bool) {
	calls, ok := decodeRawCallsRepaired(strings.TrimSpace(payload))
	return calls, "", ok
}

func (f *markerFlavor) ProbePartial(payload string) (string, string, bool) {
	return probePartialCalls(payload)
}

// ToolTagFlavor is the default flavor: <tool_call>...</tool_call> regions
// containing a single {"name": ..., "parameters": {...}} object or an array
// of such objects, as emitted by Hermes- and Qwen-style chat templates.
func ToolTagFlavor() Flavor {
	return &markerFlavor{
		name:       "tool_tag",
		openMarker: "<tool_call>",
		closeMark:  "</tool_call>",
	}
}

// NewMarkerFlavor builds a flavor with a custom marker pair and the default
// object-or-array payload parsing. Both markers must be non-empty literals.
func NewMarkerFlavor(name, open, close string) Flavor {
	return &markerFlavor{
		name:       name,
		openMarker: open,
		closeMark:  close,
	}
}

// functionCallFlavor handles wrapper-token formats where the region starts
// with free text (treated as reasoning) followed by the call JSON.
type functionCallFlavor struct {
	markerFlavor
}

// FunctionCallFlavor parses <function_call_begin>...<function_call_end>
// regions. Free text before the JSON is reasoning content, not discarded.
func FunctionCallFlavor() Flavor {
	return &functionCallFlavor{markerFlavor{
		name:       "function_call",
		openMarker: "<function_call_begin>",
		closeMark:  "<function_call_end>",
	}}
}

func (f *functionCallFlavor) ParsePayload(payload string) ([]RawToolCall, string, bool) {
	pre, body, found := splitPreamble(payload)
	if !found {
		return nil, "", false
	}
	calls, ok := decodeRawCallsRepaired(strings.TrimSpace(body))
	if !ok {
		return nil, "", false
	}
	return calls, strings.TrimSpace(pre), true
}

func (f *functionCallFlavor) ProbePartial(payload string) (string, string, bool) {
	_, body, found := splitPreamble(payload)
	if !found {
		return "", "", false
	}
	return probePartialCalls(body)
}

// splitPreamble splits a payload at the first JSON structure start.
func splitPreamble(payload string) (pre, body string, found bool) {
	idx := strings.IndexAny(payload, "[{")
	if idx < 0 {
		return "", "", false
	}
	return payload[:idx], payload[idx:], true
}

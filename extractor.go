package toolstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// RawToolCall is one parsed entry of a control-region payload before
// validation and ID assignment. Models disagree on the argument key, so both
// "parameters" and "arguments" are accepted.
type RawToolCall struct {
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
}

// argumentsJSON returns the entry's argument text, defaulting to "{}" when
// the payload carried none (or an explicit null).
func (rc RawToolCall) argumentsJSON() string {
	raw := rc.Parameters
	if len(raw) == 0 || string(raw) == "null" {
		raw = rc.Arguments
	}
	if len(raw) == 0 || string(raw) == "null" {
		return "{}"
	}
	return string(raw)
}

// Function name validation constants.
const (
	MaxFunctionNameLength = 64
	MaxPrefixLength       = 64
)

// decodeRawCalls parses payload JSON as an array of calls first, then as a
// single call object. Strict parse only; repair is the caller's concern.
// A valid empty array parses successfully with zero calls, which is distinct
// from an unparseable payload.
func decodeRawCalls(s string) ([]RawToolCall, bool) {
	if s == "" {
		return nil, false
	}
	switch s[0] {
	case '[':
		var arr []RawToolCall
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			return arr, true
		}
	case '{':
		var one RawToolCall
		if err := json.Unmarshal([]byte(s), &one); err == nil {
			return []RawToolCall{one}, true
		}
	}
	return nil, false
}

// decodeRawCallsRepaired runs the strict parse and falls back to a repaired
// re-parse when the payload is structurally truncated.
func decodeRawCallsRepaired(s string) ([]RawToolCall, bool) {
	if calls, ok := decodeRawCalls(s); ok {
		return calls, true
	}
	repaired, ok := RepairJSON(s)
	if !ok {
		return nil, false
	}
	return decodeRawCalls(repaired)
}

// probePartialCalls inspects a still-growing payload fragment: repair it,
// then read the first call's name and argument text. Used only for live
// partial updates; the closing marker triggers the authoritative parse.
func probePartialCalls(fragment string) (string, string, bool) {
	repaired, ok := RepairJSON(fragment)
	if !ok {
		return "", "", false
	}
	root := gjson.Parse(repaired)
	if root.IsArray() {
		arr := root.Array()
		if len(arr) == 0 {
			return "", "", false
		}
		root = arr[0]
	}
	name := root.Get("name").String()
	if name == "" {
		return "", "", false
	}
	args := root.Get("parameters")
	if !args.Exists() {
		args = root.Get("arguments")
	}
	argsJSON := "{}"
	if args.Exists() && args.Raw != "" && args.Raw != "null" {
		argsJSON = args.Raw
	}
	return name, argsJSON, true
}

// recordsFromPayload turns one closed region payload into completed records
// with IDs unassigned. Entries without a valid name are dropped
// individually; a structurally unparseable payload yields zero records.
func (e *Engine) recordsFromPayload(payload string, streaming bool) ([]ToolCallRecord, string) {
	start := time.Now()

	rawCalls, reasoning, ok := e.flavor.ParsePayload(payload)
	if !ok {
		e.logger.Warn("Control region payload unparseable after repair, absorbing region",
			"flavor", e.flavor.Name(),
			"payload_length", len(payload),
			"streaming", streaming)
		e.emitMetric(MalformedRegionData{
			PayloadLength: len(payload),
			Streaming:     streaming,
		})
		return nil, reasoning
	}

	records := make([]ToolCallRecord, 0, len(rawCalls))
	for i, rc := range rawCalls {
		if err := ValidateFunctionName(rc.Name); err != nil {
			e.logger.Warn("Dropping tool call entry with invalid function name",
				"entry_index", i,
				"error", err)
			continue
		}
		records = append(records, ToolCallRecord{
			FunctionName:  rc.Name,
			ArgumentsJSON: rc.argumentsJSON(),
			IsComplete:    true,
		})
	}

	if len(records) > 0 {
		names := make([]string, len(records))
		for i, r := range records {
			names[i] = r.FunctionName
		}
		e.logger.Info("Extracted tool calls from control region",
			"flavor", e.flavor.Name(),
			"function_count", len(records),
			"function_names", names,
			"payload_length", len(payload),
			"streaming", streaming)
		e.emitMetric(ToolCallExtractionData{
			CallCount:     len(records),
			FunctionNames: names,
			PayloadLength: len(payload),
			Streaming:     streaming,
			Performance: PerformanceMetrics{
				ProcessingDuration: time.Since(start),
			},
		})
	}

	return records, reasoning
}

// extractRegion processes a region that closed during streaming: parse the
// payload, assign IDs, enforce the per-response cap, and append to the
// state's call list.
func (e *Engine) extractRegion(state *ProcessingState, payload string) ([]ToolCallRecord, string) {
	records, reasoning := e.recordsFromPayload(payload, true)

	if e.maxToolCalls > 0 {
		remaining := e.maxToolCalls - len(state.toolCalls)
		if remaining < 0 {
			remaining = 0
		}
		if len(records) > remaining {
			e.logger.Warn("Tool call cap reached, truncating region's calls",
				"cap", e.maxToolCalls,
				"dropped", len(records)-remaining)
			records = records[:remaining]
		}
	}

	for i := range records {
		if i == 0 && state.pendingCallID != "" {
			records[i].ID = state.pendingCallID
		} else {
			records[i].ID = e.GenerateToolCallID()
		}
	}

	// The region is closed either way; release the partial-update cache.
	if state.pendingCallID != "" {
		delete(state.streamingArgs, state.pendingCallID)
		state.pendingCallID = ""
	}

	state.toolCalls = append(state.toolCalls, records...)
	return records, reasoning
}

// partialUpdate probes the open region (if any) for a live partial record.
func (e *Engine) partialUpdate(state *ProcessingState) (ToolCallRecord, bool) {
	if state.pendingRegionStart < 0 {
		return ToolCallRecord{}, false
	}
	buf := state.contentBuffer.String()
	payload := buf[state.pendingRegionStart+len(e.flavor.OpenMarker()):]

	name, argsJSON, ok := e.flavor.ProbePartial(payload)
	if !ok {
		return ToolCallRecord{}, false
	}
	if state.pendingCallID == "" {
		state.pendingCallID = e.GenerateToolCallID()
	}
	state.streamingArgs[state.pendingCallID] = argsJSON

	return ToolCallRecord{
		ID:            state.pendingCallID,
		FunctionName:  name,
		ArgumentsJSON: argsJSON,
		IsComplete:    false,
	}, true
}

// isAlphaNumeric checks if a rune is a letter or digit.
func isAlphaNumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// isFunctionNameChar checks if a rune is valid for function names.
func isFunctionNameChar(r rune) bool {
	return isAlphaNumeric(r) || r == '_' || r == '-'
}

// validateCharacters validates all characters in a string against a predicate.
func validateCharacters(s string, isValid func(rune) bool, context, pattern string) error {
	for _, r := range s {
		if !isValid(r) {
			return fmt.Errorf("function name validation failed: %s %q contains invalid characters, must match pattern %s", context, s, pattern)
		}
	}
	return nil
}

// validateMCPFormat validates MCP format names (prefix.function_name).
func validateMCPFormat(name string, dotIndex int) error {
	if len(name) > MaxFunctionNameLength {
		return fmt.Errorf("function name validation failed: MCP format name %q is %d characters long but maximum allowed is %d", name, len(name), MaxFunctionNameLength)
	}

	prefix := name[:dotIndex]
	funcName := name[dotIndex+1:]

	if prefix == "" {
		return fmt.Errorf("function name validation failed: MCP server prefix cannot be empty in %q", name)
	}
	if funcName == "" {
		return fmt.Errorf("function name validation failed: function name part cannot be empty in %q", name)
	}

	if len(prefix) > MaxPrefixLength {
		return fmt.Errorf("function name validation failed: MCP server prefix %q is %d characters long but maximum allowed is %d", prefix, len(prefix), MaxPrefixLength)
	}
	if len(funcName) > MaxFunctionNameLength {
		return fmt.Errorf("function name validation failed: function name part %q is %d characters long but maximum allowed is %d", funcName, len(funcName), MaxFunctionNameLength)
	}

	for _, r := range prefix {
		if !isAlphaNumeric(r) {
			return fmt.Errorf("function name validation failed: MCP server prefix %q contains invalid characters, must only contain letters and numbers (a-zA-Z0-9)", prefix)
		}
	}
	return validateCharacters(funcName, isFunctionNameChar, "function name part", "^[a-zA-Z0-9_-]{1,64}$")
}

// validateStandardFormat validates standard format names (no prefix).
func validateStandardFormat(name string) error {
	if len(name) > MaxFunctionNameLength {
		return fmt.Errorf("function name validation failed: name %q is %d characters long but maximum allowed is %d", name, len(name), MaxFunctionNameLength)
	}
	return validateCharacters(name, isFunctionNameChar, "name", "^[a-zA-Z0-9_-]{1,64}$")
}

// ValidateFunctionName validates function names manually for performance.
// This function is thread-safe and can be called concurrently.
func ValidateFunctionName(name string) error {
	if name == "" {
		return errors.New("function name validation failed: name cannot be empty")
	}

	// Find dots to determine format
	dotCount := 0
	dotIndex := -1
	for i, r := range name {
		if r == '.' {
			dotCount++
			dotIndex = i
		}
	}

	if dotCount > 1 {
		return fmt.Errorf("function name validation failed: name %q contains %d periods but only one is allowed for MCP server prefixes", name, dotCount)
	}

	if dotIndex != -1 {
		return validateMCPFormat(name, dotIndex)
	}
	return validateStandardFormat(name)
}

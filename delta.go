package toolstream

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ParseChunkDelta decodes one provider streaming frame (the JSON payload of
// an SSE data line) into a ChunkDelta. It follows the common chat-completion
// convention:
//
//	{"choices":[{"delta":{"content":"...","reasoning_content":"..."},"finish_reason":null}]}
//
// Decoding is tolerant: unknown fields are ignored, a bare
// {"delta":{...},"finish_reason":...} object is accepted, and both
// "reasoning_content" and "reasoning" are recognized for the thinking
// channel. Returns false only when data is not valid JSON.
func ParseChunkDelta(data string) (ChunkDelta, bool) {
	if !gjson.Valid(data) {
		return ChunkDelta{}, false
	}
	root := gjson.Parse(data)

	choice := root.Get("choices.0")
	if !choice.Exists() {
		choice = root
	}

	delta := choice.Get("delta")
	reasoning := delta.Get("reasoning_content")
	if !reasoning.Exists() {
		reasoning = delta.Get("reasoning")
	}

	return ChunkDelta{
		Content:      delta.Get("content").String(),
		Reasoning:    reasoning.String(),
		FinishReason: ParseFinishReason(choice.Get("finish_reason").String()),
	}, true
}

// ProviderMessageJSON re-serializes the final result as a provider-shaped
// assistant message, the record UIs and history builders persist:
//
//	{"role":"assistant","content":"...","tool_calls":[{"id":...,"type":"function","function":{"name":...,"arguments":"..."}}]}
//
// Arguments are carried as a JSON-encoded string, matching the chat
// completion convention. reasoning_content and tool_calls are omitted when
// empty.
func (r FinalResult) ProviderMessageJSON() (string, error) {
	msg := `{"role":"assistant"}`

	msg, err := sjson.Set(msg, "content", r.Content)
	if err != nil {
		return "", fmt.Errorf("serializing content: %w", err)
	}

	if r.ReasoningContent != "" {
		msg, err = sjson.Set(msg, "reasoning_content", r.ReasoningContent)
		if err != nil {
			return "", fmt.Errorf("serializing reasoning_content: %w", err)
		}
	}

	for i, call := range r.ToolCalls {
		base := fmt.Sprintf("tool_calls.%d", i)
		if msg, err = sjson.Set(msg, base+".id", call.ID); err != nil {
			return "", fmt.Errorf("serializing tool call %d: %w", i, err)
		}
		if msg, err = sjson.Set(msg, base+".type", functionType); err != nil {
			return "", fmt.Errorf("serializing tool call %d: %w", i, err)
		}
		if msg, err = sjson.Set(msg, base+".function.name", call.FunctionName); err != nil {
			return "", fmt.Errorf("serializing tool call %d: %w", i, err)
		}
		if msg, err = sjson.Set(msg, base+".function.arguments", call.ArgumentsJSON); err != nil {
			return "", fmt.Errorf("serializing tool call %d: %w", i, err)
		}
	}

	return msg, nil
}

package toolstream

import (
	"testing"

	"github.com/tidwall/gjson"
)

// FuzzFeedGranularity fuzzes the invariant that chunking never changes the
// final result: feeding a text in two arbitrary pieces must finalize
// identically to feeding it whole.
func FuzzFeedGranularity(f *testing.F) {
	f.Add(`Hello world`, 3)
	f.Add(`A <tool_call>{"name": "t", "parameters": {}}</tool_call> B`, 10)
	f.Add(`<tool_call>[{"name": "x"}, {"name": "y"}]</tool_call>`, 20)
	f.Add(`cut <tool_call>{"name": "z"`, 5)
	f.Add(`a < b and <tool_callX`, 1)
	f.Add(`<tool_call>not json</tool_call>`, 15)
	f.Add(``, 0)
	f.Add(`</tool_call>`, 4)

	f.Fuzz(func(t *testing.T, text string, split int) {
		if split < 0 || split > len(text) {
			return
		}

		engine := New()

		whole := engine.InitState()
		engine.ProcessChunk(whole, ChunkDelta{Content: text})
		reference := engine.Finalize(whole)

		state := engine.InitState()
		engine.ProcessChunk(state, ChunkDelta{Content: text[:split]})
		engine.ProcessChunk(state, ChunkDelta{Content: text[split:]})
		got := engine.Finalize(state)

		if got.Content != reference.Content {
			t.Errorf("content diverged for split %d of %q: %q vs %q",
				split, text, got.Content, reference.Content)
		}
		if got.RawContent != reference.RawContent {
			t.Errorf("raw content diverged for split %d of %q", split, text)
		}
		if len(got.ToolCalls) != len(reference.ToolCalls) {
			t.Fatalf("tool call count diverged for split %d of %q: %d vs %d",
				split, text, len(got.ToolCalls), len(reference.ToolCalls))
		}
		for i := range got.ToolCalls {
			if got.ToolCalls[i].FunctionName != reference.ToolCalls[i].FunctionName {
				t.Errorf("tool call %d name diverged for split %d of %q", i, split, text)
			}
			if got.ToolCalls[i].ArgumentsJSON != reference.ToolCalls[i].ArgumentsJSON {
				t.Errorf("tool call %d arguments diverged for split %d of %q", i, split, text)
			}
		}
	})
}

// FuzzRepairJSON fuzzes the structural repairer: it must never panic and
// must only report success for output that actually validates.
func FuzzRepairJSON(f *testing.F) {
	f.Add(`{"name": "test"`)
	f.Add(`[{"name": "a"}, {"name": "b"`)
	f.Add(`{"a": "unterminated`)
	f.Add(`{"a": "esc\`)
	f.Add(`{"a":`)
	f.Add(`{"a": 1,`)
	f.Add(`{`)
	f.Add(`[`)
	f.Add(`{]`)
	f.Add(``)
	f.Add(`plain text`)
	f.Add("{\"a\": \"é世界")

	f.Fuzz(func(t *testing.T, input string) {
		repaired, ok := RepairJSON(input)
		if ok && !gjson.Valid(repaired) {
			t.Errorf("RepairJSON reported success but output is invalid JSON: %q -> %q", input, repaired)
		}
		if !ok && repaired != "" {
			t.Errorf("RepairJSON reported failure but returned non-empty output for %q", input)
		}
	})
}

package toolstream_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	toolstream "github.com/yangjun101/UI-TARS-desktop-sub006"
)

// feed pushes text into a fresh session using the given chunk sizes and
// returns the state plus the concatenation of all incrementally emitted
// prose. A chunk size of 1 exercises the worst-case boundary splits.
func feed(e *toolstream.Engine, text string, chunkSize int) (*toolstream.ProcessingState, string) {
	state := e.InitState()
	var emitted strings.Builder
	for i := 0; i < len(text); i += chunkSize {
		end := i + chunkSize
		if end > len(text) {
			end = len(text)
		}
		result := e.ProcessChunk(state, toolstream.ChunkDelta{Content: text[i:end]})
		emitted.WriteString(result.Content)
	}
	return state, emitted.String()
}

func TestProcessChunk_SimpleContent(t *testing.T) {
	engine := toolstream.New()
	state := engine.InitState()

	r1 := engine.ProcessChunk(state, toolstream.ChunkDelta{Content: "Hello "})
	r2 := engine.ProcessChunk(state, toolstream.ChunkDelta{Content: "world", FinishReason: toolstream.FinishReasonStop})

	assert.Equal(t, "Hello ", r1.Content)
	assert.Equal(t, "world", r2.Content)
	assert.False(t, r1.HasToolCallUpdate)

	final := engine.Finalize(state)
	assert.Equal(t, "Hello world", final.Content)
	assert.Nil(t, final.ToolCalls)
	assert.Equal(t, toolstream.FinishReasonStop, final.FinishReason)
}

func TestProcessChunk_SingleToolCallAcrossChunkBoundaries(t *testing.T) {
	const text = "I will help you. <tool_call>\n{\"name\": \"testTool\", \"parameters\": {}}\n</tool_call>"

	for _, chunkSize := range []int{1, 3, 7, len(text)} {
		engine := toolstream.New()
		state, emitted := feed(engine, text, chunkSize)

		final := engine.Finalize(state)
		assert.Equal(t, "I will help you. ", emitted, "chunk size %d", chunkSize)
		assert.Equal(t, "I will help you.", final.Content, "chunk size %d", chunkSize)
		require.Len(t, final.ToolCalls, 1, "chunk size %d", chunkSize)
		assert.Equal(t, "testTool", final.ToolCalls[0].FunctionName)
		assert.JSONEq(t, "{}", final.ToolCalls[0].ArgumentsJSON)
		assert.True(t, final.ToolCalls[0].IsComplete)
		assert.Equal(t, toolstream.FinishReasonToolCalls, final.FinishReason)
	}
}

func TestProcessChunk_ContentBeforeAndAfterRegion(t *testing.T) {
	engine := toolstream.New()
	state, emitted := feed(engine, `Before. <tool_call>{"name": "t", "parameters": {}}</tool_call> After.`, 5)

	final := engine.Finalize(state)
	assert.Equal(t, "Before. After.", final.Content, "single collapsing space at the excised boundary")
	assert.Equal(t, "Before.  After.", emitted, "incremental emission keeps the raw surrounding whitespace")
	require.Len(t, final.ToolCalls, 1)
}

func TestProcessChunk_IncompleteRegionAtStreamEnd(t *testing.T) {
	engine := toolstream.New()
	state, emitted := feed(engine, "Processing... <tool_call>\n{\"name\": \"incomplete\"", 4)

	assert.Equal(t, "Processing... ", emitted, "withheld region text must not stream")

	final := engine.Finalize(state)
	assert.Nil(t, final.ToolCalls, "cut-off region never becomes a tool call")
	assert.Equal(t, "Processing... <tool_call>\n{\"name\": \"incomplete\"", final.Content,
		"cut-off text surfaces as prose rather than vanishing")
	assert.Equal(t, toolstream.FinishReasonStop, final.FinishReason)
}

func TestProcessChunk_MalformedRegionAbsorbed(t *testing.T) {
	engine := toolstream.New()
	state, emitted := feed(engine, "<tool_call>\n{\"name\": \"x\", invalid\n</tool_call>", 1)

	final := engine.Finalize(state)
	assert.Empty(t, emitted)
	assert.Empty(t, final.Content)
	assert.Nil(t, final.ToolCalls)
	assert.Contains(t, final.RawContent, "invalid", "raw buffer still carries the malformed region")
}

func TestProcessChunk_ToolCallArrayPreservesOrder(t *testing.T) {
	payload := `[
		{"name": "first", "parameters": {"n": 1}},
		{"name": "second", "parameters": {"n": 2}},
		{"name": "third", "parameters": {"n": 3}}
	]`
	engine := toolstream.New()
	state, _ := feed(engine, "<tool_call>"+payload+"</tool_call>", 9)

	final := engine.Finalize(state)
	require.Len(t, final.ToolCalls, 3)
	assert.Equal(t, "first", final.ToolCalls[0].FunctionName)
	assert.Equal(t, "second", final.ToolCalls[1].FunctionName)
	assert.Equal(t, "third", final.ToolCalls[2].FunctionName)
}

func TestProcessChunk_ReasoningChannel(t *testing.T) {
	engine := toolstream.New()
	state := engine.InitState()

	r1 := engine.ProcessChunk(state, toolstream.ChunkDelta{Reasoning: "thinking "})
	r2 := engine.ProcessChunk(state, toolstream.ChunkDelta{Reasoning: "hard", Content: "Answer."})

	assert.Equal(t, "thinking ", r1.ReasoningContent)
	assert.Equal(t, "hard", r2.ReasoningContent)

	final := engine.Finalize(state)
	assert.Equal(t, "thinking hard", final.ReasoningContent)
	assert.Equal(t, "Answer.", final.Content)
}

func TestProcessChunk_StreamingPartialUpdates(t *testing.T) {
	engine := toolstream.New()
	state := engine.InitState()

	engine.ProcessChunk(state, toolstream.ChunkDelta{Content: `<tool_call>{"name": "search", "parameters": {"q": "go`})
	result := engine.ProcessChunk(state, toolstream.ChunkDelta{Content: `lang`})

	require.True(t, result.HasToolCallUpdate)
	require.Len(t, result.ToolCallUpdates, 1)
	partial := result.ToolCallUpdates[0]
	assert.Equal(t, "search", partial.FunctionName)
	assert.False(t, partial.IsComplete)
	assert.JSONEq(t, `{"q": "golang"}`, partial.ArgumentsJSON)
	partialID := partial.ID

	done := engine.ProcessChunk(state, toolstream.ChunkDelta{Content: `"}}</tool_call>`})
	require.True(t, done.HasToolCallUpdate)
	require.Len(t, done.ToolCallUpdates, 1)
	assert.True(t, done.ToolCallUpdates[0].IsComplete)
	assert.Equal(t, partialID, done.ToolCallUpdates[0].ID, "completed record keeps the streaming ID")

	final := engine.Finalize(state)
	require.Len(t, final.ToolCalls, 1)
	assert.Equal(t, partialID, final.ToolCalls[0].ID, "finalize keeps the streaming ID")
}

func TestStreamingArguments_QueryableWhileRegionOpen(t *testing.T) {
	engine := toolstream.New()
	state := engine.InitState()

	result := engine.ProcessChunk(state, toolstream.ChunkDelta{Content: `<tool_call>{"name": "search", "parameters": {"q": "go`})
	require.True(t, result.HasToolCallUpdate)
	id := result.ToolCallUpdates[0].ID

	args, ok := state.StreamingArguments(id)
	require.True(t, ok)
	assert.JSONEq(t, `{"q": "go"}`, args)

	engine.ProcessChunk(state, toolstream.ChunkDelta{Content: `lang`})
	args, ok = state.StreamingArguments(id)
	require.True(t, ok, "cache tracks the growing payload")
	assert.JSONEq(t, `{"q": "golang"}`, args)

	engine.ProcessChunk(state, toolstream.ChunkDelta{Content: `"}}</tool_call>`})
	_, ok = state.StreamingArguments(id)
	assert.False(t, ok, "completed calls leave the in-flight cache")

	_, ok = state.StreamingArguments("call_unknown")
	assert.False(t, ok)
}

func TestFinalize_Idempotent(t *testing.T) {
	engine := toolstream.New()
	state, _ := feed(engine, `One. <tool_call>{"name": "t"}</tool_call> Two.`, 3)

	first := engine.Finalize(state)
	second := engine.Finalize(state)
	assert.Equal(t, first, second)
}

func TestProcessChunk_AfterFinalizeIsIgnored(t *testing.T) {
	engine := toolstream.New()
	state := engine.InitState()
	engine.ProcessChunk(state, toolstream.ChunkDelta{Content: "hello"})

	before := engine.Finalize(state)
	result := engine.ProcessChunk(state, toolstream.ChunkDelta{Content: " more"})
	after := engine.Finalize(state)

	assert.Equal(t, toolstream.StreamChunkResult{}, result)
	assert.Equal(t, before, after, "late chunks must not corrupt the terminal result")
}

func TestFinalize_FinishReasonForcedByToolCalls(t *testing.T) {
	engine := toolstream.New()
	state := engine.InitState()
	engine.ProcessChunk(state, toolstream.ChunkDelta{
		Content:      `<tool_call>{"name": "t"}</tool_call>`,
		FinishReason: toolstream.FinishReasonStop,
	})

	final := engine.Finalize(state)
	assert.Equal(t, toolstream.FinishReasonToolCalls, final.FinishReason,
		"tool-call presence overrides the provider's stop signal")
}

func TestFinalize_MultipleRegions(t *testing.T) {
	engine := toolstream.New()
	text := `A <tool_call>{"name": "one"}</tool_call> B <tool_call>{"name": "two"}</tool_call> C`
	state, _ := feed(engine, text, 6)

	final := engine.Finalize(state)
	assert.Equal(t, "A B C", final.Content)
	require.Len(t, final.ToolCalls, 2)
	assert.Equal(t, "one", final.ToolCalls[0].FunctionName)
	assert.Equal(t, "two", final.ToolCalls[1].FunctionName)
	assert.NotEqual(t, final.ToolCalls[0].ID, final.ToolCalls[1].ID)
}

func TestFinalize_NestedOpenMarkerIsLiteralPayload(t *testing.T) {
	engine := toolstream.New()
	// A second opening marker inside an open region is payload text, not a
	// nested region; this payload is unparseable, so the region is absorbed.
	state, emitted := feed(engine, `X <tool_call>abc <tool_call> def</tool_call> Y`, 2)

	final := engine.Finalize(state)
	assert.Equal(t, "X  Y", emitted, "absorbed region text never streams, surrounding prose does")
	assert.Equal(t, "X Y", final.Content)
	assert.Nil(t, final.ToolCalls)
}

func TestProcessChunk_MissingNameEntrySkipped(t *testing.T) {
	engine := toolstream.New()
	payload := `[{"name": "good", "parameters": {}}, {"parameters": {"orphan": true}}, {"name": "also_good"}]`
	state, _ := feed(engine, "<tool_call>"+payload+"</tool_call>", len(payload))

	final := engine.Finalize(state)
	require.Len(t, final.ToolCalls, 2, "entries without a name drop, siblings survive")
	assert.Equal(t, "good", final.ToolCalls[0].FunctionName)
	assert.Equal(t, "also_good", final.ToolCalls[1].FunctionName)
}

func TestEngine_MaxToolCallsCap(t *testing.T) {
	engine := toolstream.New(toolstream.WithMaxToolCalls(2))
	payload := `[{"name": "a"}, {"name": "b"}, {"name": "c"}]`
	state, _ := feed(engine, "<tool_call>"+payload+"</tool_call>", 10)

	final := engine.Finalize(state)
	require.Len(t, final.ToolCalls, 2)
	assert.Equal(t, "a", final.ToolCalls[0].FunctionName)
	assert.Equal(t, "b", final.ToolCalls[1].FunctionName)
}

func TestEngine_MetricsCallback(t *testing.T) {
	var events []toolstream.MetricEvent
	engine := toolstream.New(toolstream.WithMetricsCallback(func(data toolstream.MetricEventData) {
		events = append(events, data.EventType())
	}))

	state, _ := feed(engine, `<tool_call>{"name": "t"}</tool_call>`, 8)
	engine.Finalize(state)

	assert.Contains(t, events, toolstream.MetricEventToolCallExtraction)
	assert.Contains(t, events, toolstream.MetricEventStreamFinalize)
}

func TestEngine_EmptyCallArrayIsNotMalformed(t *testing.T) {
	var events []toolstream.MetricEvent
	engine := toolstream.New(toolstream.WithMetricsCallback(func(data toolstream.MetricEventData) {
		events = append(events, data.EventType())
	}))

	state, _ := feed(engine, "A <tool_call>[]</tool_call> B", 6)
	final := engine.Finalize(state)

	assert.Equal(t, "A B", final.Content, "region with zero entries is still excised")
	assert.Nil(t, final.ToolCalls)
	assert.NotContains(t, events, toolstream.MetricEventMalformedRegion,
		"valid JSON with no calls is not a malformed payload")
	assert.NotContains(t, events, toolstream.MetricEventToolCallExtraction)
}

func TestEngine_MetricsCallbackPanicRecovered(t *testing.T) {
	engine := toolstream.New(toolstream.WithMetricsCallback(func(toolstream.MetricEventData) {
		panic("metrics backend exploded")
	}))

	state, _ := feed(engine, `<tool_call>{"name": "t"}</tool_call>`, 8)
	final := engine.Finalize(state)
	require.Len(t, final.ToolCalls, 1, "processing survives a panicking callback")
}

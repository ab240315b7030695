package toolstream_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	toolstream "github.com/yangjun101/UI-TARS-desktop-sub006"
)

func TestWithFlavor_InvalidFallsBackToDefault(t *testing.T) {
	t.Run("nil flavor", func(t *testing.T) {
		engine := toolstream.New(toolstream.WithFlavor(nil))
		state, _ := feed(engine, `<tool_call>{"name": "t"}</tool_call>`, 6)
		require.Len(t, engine.Finalize(state).ToolCalls, 1, "default markers still active")
	})

	t.Run("empty marker flavor", func(t *testing.T) {
		engine := toolstream.New(toolstream.WithFlavor(toolstream.NewMarkerFlavor("broken", "", "")))
		state, _ := feed(engine, `<tool_call>{"name": "t"}</tool_call>`, 6)
		require.Len(t, engine.Finalize(state).ToolCalls, 1)
	})
}

func TestWithLogger(t *testing.T) {
	t.Run("custom logger receives extraction events", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
		engine := toolstream.New(toolstream.WithLogger(logger))

		state, _ := feed(engine, `<tool_call>{"name": "logged_tool"}</tool_call>`, 10)
		engine.Finalize(state)

		assert.Contains(t, buf.String(), "logged_tool")
	})

	t.Run("nil logger is safe", func(t *testing.T) {
		engine := toolstream.New(toolstream.WithLogger(nil))
		state, _ := feed(engine, `<tool_call>{"name": "t"}</tool_call>`, 6)
		require.Len(t, engine.Finalize(state).ToolCalls, 1)
	})
}

func TestWithMaxToolCalls_NegativeMeansUnlimited(t *testing.T) {
	engine := toolstream.New(toolstream.WithMaxToolCalls(-5))
	payload := `[{"name": "a"}, {"name": "b"}, {"name": "c"}]`
	state, _ := feed(engine, "<tool_call>"+payload+"</tool_call>", 12)

	final := engine.Finalize(state)
	require.Len(t, final.ToolCalls, 3, "negative cap degrades to no limit")
}

func TestWithStreamBufferLimit_NonPositiveIgnored(t *testing.T) {
	// A zero limit would abandon every open region immediately if applied;
	// the option must keep the default instead.
	engine := toolstream.New(toolstream.WithStreamBufferLimit(0))
	state := engine.InitState()

	engine.ProcessChunk(state, toolstream.ChunkDelta{Content: `<tool_call>{"name": "t"}`})
	result := engine.ProcessChunk(state, toolstream.ChunkDelta{Content: `</tool_call>`})
	require.True(t, result.HasToolCallUpdate)
	assert.True(t, result.ToolCallUpdates[0].IsComplete)
}

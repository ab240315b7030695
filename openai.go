package toolstream

import (
	"context"
	"sync"

	"github.com/openai/openai-go/v3"
)

// ChatCompletionStreamInterface matches the streaming interface returned by
// the OpenAI SDK's client.Chat.Completions.NewStreaming().
type ChatCompletionStreamInterface interface {
	Next() bool
	Current() openai.ChatCompletionChunk
	Err() error
	Close() error
}

// DeltaFromChunk converts an SDK streaming chunk into the engine's delta
// shape. Only the first choice is consulted, matching how streaming chat
// completions are consumed in practice.
func DeltaFromChunk(chunk openai.ChatCompletionChunk) ChunkDelta {
	if len(chunk.Choices) == 0 {
		return ChunkDelta{}
	}
	choice := chunk.Choices[0]
	return ChunkDelta{
		Content:      choice.Delta.Content,
		FinishReason: ParseFinishReason(string(choice.FinishReason)),
	}
}

// ToChatCompletionMessage converts the final result into an SDK assistant
// message, ready to append to a conversation history.
func (r FinalResult) ToChatCompletionMessage() openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Content: r.Content,
	}
	if len(r.ToolCalls) == 0 {
		return msg
	}

	toolCalls := make([]openai.ChatCompletionMessageToolCallUnion, 0, len(r.ToolCalls))
	for _, call := range r.ToolCalls {
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallUnion{
			ID:   call.ID,
			Type: functionType,
			Function: openai.ChatCompletionMessageFunctionToolCallFunction{
				Name:      call.FunctionName,
				Arguments: call.ArgumentsJSON,
			},
		})
	}
	msg.ToolCalls = toolCalls
	return msg
}

// StreamAdapter wraps an OpenAI streaming response and re-emits it with
// control regions stripped from live content and extracted tool calls
// delivered as a terminal tool_calls chunk.
//
// THREAD SAFETY: StreamAdapter instances are NOT thread-safe and designed
// for single-consumer use, same as the underlying SDK stream. The internal
// mutex only keeps Close() safe to call from another goroutine.
//
// Usage pattern:
//
//	stream := engine.TransformStream(ctx, sourceStream)
//	defer stream.Close()
//	for stream.Next() {
//	    chunk := stream.Current()
//	    // render chunk
//	}
type StreamAdapter struct {
	source ChatCompletionStreamInterface
	engine *Engine
	state  *ProcessingState

	mu           sync.Mutex
	currentChunk openai.ChatCompletionChunk
	pending      []openai.ChatCompletionChunk
	finished     bool
	done         bool
	err          error
	ctx          context.Context
	cancel       context.CancelFunc
}

// TransformStream creates a stream adapter that processes tool calls with
// context support for cancellation.
func (e *Engine) TransformStream(ctx context.Context, stream ChatCompletionStreamInterface) *StreamAdapter {
	streamCtx, cancel := context.WithCancel(ctx)
	return &StreamAdapter{
		source: stream,
		engine: e,
		state:  e.InitState(),
		ctx:    streamCtx,
		cancel: cancel,
	}
}

// Next advances the adapted stream to the next chunk.
func (s *StreamAdapter) Next() bool {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return false
	}
	if s.popPendingLocked() {
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()

	for {
		if s.ctx.Err() != nil {
			s.mu.Lock()
			s.err = s.ctx.Err()
			s.done = true
			s.mu.Unlock()
			return false
		}

		// Block for the next chunk without holding the mutex so Close()
		// cannot deadlock against a stalled upstream.
		hasNext := s.source.Next()

		s.mu.Lock()
		if !hasNext {
			if !s.finished {
				s.queueFinalLocked()
			}
			if s.popPendingLocked() {
				s.mu.Unlock()
				return true
			}
			s.done = true
			s.err = s.source.Err()
			s.mu.Unlock()
			return false
		}

		if s.finished {
			// Terminal chunks already queued; drain the upstream remainder.
			s.mu.Unlock()
			continue
		}

		chunk := s.source.Current()
		delta := DeltaFromChunk(chunk)
		result := s.engine.ProcessChunk(s.state, delta)

		if result.Content != "" {
			s.pending = append(s.pending, contentChunk(result.Content))
		}
		if delta.FinishReason != FinishReasonNone {
			s.queueFinalLocked()
		}
		if s.popPendingLocked() {
			s.mu.Unlock()
			return true
		}
		s.mu.Unlock()
	}
}

// popPendingLocked shifts the next queued chunk into currentChunk.
func (s *StreamAdapter) popPendingLocked() bool {
	if len(s.pending) == 0 {
		return false
	}
	s.currentChunk = s.pending[0]
	s.pending = s.pending[1:]
	return true
}

// queueFinalLocked finalizes the session and queues the terminal chunks:
// any withheld trailing text (an unterminated region or a dangling partial
// marker prefix, surfaced as prose), then either a tool_calls chunk or a
// plain finish chunk.
func (s *StreamAdapter) queueFinalLocked() {
	s.finished = true

	// Everything past the scan cursor was withheld, whether for an open
	// region or for a marker prefix that never completed. At stream end it
	// is prose per the finalizer's cut-off policy; live consumers need it
	// emitted too.
	if tail := s.state.contentBuffer.String()[s.state.scanCursor:]; tail != "" {
		s.pending = append(s.pending, contentChunk(tail))
	}

	final := s.engine.Finalize(s.state)
	if len(final.ToolCalls) > 0 {
		s.pending = append(s.pending, toolCallChunk(final.ToolCalls))
		s.engine.logger.Debug("Emitted streaming tool call chunk",
			"tool_call_count", len(final.ToolCalls))
	} else {
		s.pending = append(s.pending, finishChunk(final.FinishReason))
	}
}

// Current returns the current chunk in the adapted stream.
func (s *StreamAdapter) Current() openai.ChatCompletionChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentChunk
}

// Err returns any error from the stream.
func (s *StreamAdapter) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return s.source.Err()
}

// Close closes the underlying stream and cancels the context.
func (s *StreamAdapter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return s.source.Close()
}

// contentChunk builds a plain content delta chunk.
func contentChunk(content string) openai.ChatCompletionChunk {
	return openai.ChatCompletionChunk{
		Choices: []openai.ChatCompletionChunkChoice{
			{
				Delta: openai.ChatCompletionChunkChoiceDelta{
					Content: content,
					Role:    "assistant",
				},
			},
		},
	}
}

// finishChunk builds a terminal chunk carrying only a finish reason.
func finishChunk(reason FinishReason) openai.ChatCompletionChunk {
	return openai.ChatCompletionChunk{
		Choices: []openai.ChatCompletionChunkChoice{
			{
				Delta: openai.ChatCompletionChunkChoiceDelta{
					Role: "assistant",
				},
				FinishReason: string(reason),
			},
		},
	}
}

// toolCallChunk builds the terminal tool_calls chunk.
func toolCallChunk(calls []ToolCallRecord) openai.ChatCompletionChunk {
	toolCalls := make([]openai.ChatCompletionChunkChoiceDeltaToolCall, 0, len(calls))
	for i, call := range calls {
		toolCalls = append(toolCalls, openai.ChatCompletionChunkChoiceDeltaToolCall{
			Index: int64(i),
			ID:    call.ID,
			Type:  functionType,
			Function: openai.ChatCompletionChunkChoiceDeltaToolCallFunction{
				Name:      call.FunctionName,
				Arguments: call.ArgumentsJSON,
			},
		})
	}

	return openai.ChatCompletionChunk{
		Choices: []openai.ChatCompletionChunkChoice{
			{
				Delta: openai.ChatCompletionChunkChoiceDelta{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
				FinishReason: "tool_calls",
			},
		},
	}
}

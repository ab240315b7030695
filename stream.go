package toolstream

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// DeltaStreamReader yields the decoded frames of one streaming response.
// Implementations wrap whatever transport delivers the frames (SSE bodies,
// WebSocket messages, test fixtures); the engine never touches the
// transport itself.
type DeltaStreamReader interface {
	// Next advances to the next frame, returning false when done.
	Next() bool

	// Data returns the current frame's JSON payload.
	Data() string

	// Err returns any error encountered during reading.
	Err() error

	// Close releases resources associated with the reader.
	Close() error
}

// sseDeltaReader reads "data:" lines from an SSE response body.
type sseDeltaReader struct {
	body    io.ReadCloser
	reader  *bufio.Reader
	current string
	err     error
	done    bool
}

// NewSSEDeltaReader wraps an SSE response body (e.g. http.Response.Body) as
// a DeltaStreamReader. Comment lines and non-data fields are skipped; the
// "[DONE]" sentinel ends the stream.
func NewSSEDeltaReader(body io.ReadCloser) DeltaStreamReader {
	return &sseDeltaReader{
		body:   body,
		reader: bufio.NewReader(body),
	}
}

func (s *sseDeltaReader) Next() bool {
	if s.done || s.err != nil {
		return false
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				s.err = err
			}
			// A final line without a trailing newline is still a frame.
			if data, ok := sseDataLine(line); ok && data != "[DONE]" {
				s.current = data
				return true
			}
			s.done = true
			return false
		}

		data, ok := sseDataLine(line)
		if !ok {
			continue
		}
		if data == "[DONE]" {
			s.done = true
			return false
		}
		s.current = data
		return true
	}
}

func (s *sseDeltaReader) Data() string { return s.current }
func (s *sseDeltaReader) Err() error   { return s.err }

func (s *sseDeltaReader) Close() error {
	if s.body != nil {
		return s.body.Close()
	}
	return nil
}

// sseDataLine extracts the payload of an SSE "data:" line, tolerating the
// optional space after the colon. Empty lines, comments, and other SSE
// fields (event:, id:, retry:) report false.
func sseDataLine(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" || line[0] == ':' {
		return "", false
	}
	data, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(data, " "), true
}

// ProcessDeltaStream drives a full session from a frame reader: each frame
// is decoded with ParseChunkDelta, processed, and handed to onChunk (when
// non-nil) if it produced anything renderable. The terminal result comes
// from Finalize, so a stream that errors or is cancelled partway still
// surfaces whatever arrived before the cut-off.
func (e *Engine) ProcessDeltaStream(ctx context.Context, reader DeltaStreamReader, onChunk func(StreamChunkResult)) (FinalResult, error) {
	state := e.InitState()

	for reader.Next() {
		select {
		case <-ctx.Done():
			return e.Finalize(state), ctx.Err()
		default:
		}

		delta, ok := ParseChunkDelta(reader.Data())
		if !ok {
			e.logger.Debug("Skipping undecodable stream frame",
				"data_length", len(reader.Data()))
			continue
		}

		result := e.ProcessChunk(state, delta)
		if onChunk != nil && (result.Content != "" || result.ReasoningContent != "" || result.HasToolCallUpdate) {
			onChunk(result)
		}
	}

	return e.Finalize(state), reader.Err()
}

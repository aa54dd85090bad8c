package opencode

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/deepnoodle-ai/autocompact"
)

// EventStream reads host events from a server-sent events response.
type EventStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	err    error
}

func newEventStream(body io.ReadCloser) *EventStream {
	return &EventStream{
		body:   body,
		reader: bufio.NewReader(body),
	}
}

// Err returns the error that ended the stream, if any. A stream closed by the
// server ends with a nil error.
func (s *EventStream) Err() error {
	return s.err
}

// Close releases the underlying response.
func (s *EventStream) Close() error {
	return s.body.Close()
}

// Next returns the next event. It returns false once the stream ends.
func (s *EventStream) Next() (autocompact.Event, bool) {
	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				s.err = err
			}
			return autocompact.Event{}, false
		}

		line = bytes.TrimSpace(line)
		if !bytes.HasPrefix(line, []byte("data:")) {
			// Blank separators, comments and "event:" or "id:" fields.
			continue
		}
		line = bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
		if !bytes.HasPrefix(line, []byte("{")) {
			continue
		}

		var event autocompact.Event
		if err := json.Unmarshal(line, &event); err != nil {
			s.err = err
			return autocompact.Event{}, false
		}
		return event, true
	}
}

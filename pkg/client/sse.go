package client

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/empfang-dev/empfang/pkg/api"
	"github.com/empfang-dev/empfang/pkg/debug"
	"github.com/tidwall/gjson"
)

// maxEventBytes caps the accumulated data of one logical SSE event.
const maxEventBytes = 1 << 20

// errDone is returned by sseReader.next when the [DONE] sentinel arrives.
var errDone = fmt.Errorf("sse: done sentinel")

// sseFrame is one assembled logical SSE event: the event name (may be
// empty) and the concatenated data payload.
type sseFrame struct {
	event string
	data  []byte
}

// sseReader assembles logical SSE events from a line stream. Comment,
// id and retry lines are ignored per the SSE convention; a blank line
// terminates the frame.
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEventBytes)
	return &sseReader{scanner: scanner}
}

// next returns the next complete frame. It returns errDone on the [DONE]
// sentinel, io.EOF at end of input, and a FramingError on oversized
// frames or transport read failures.
func (r *sseReader) next() (*sseFrame, error) {
	var frame sseFrame
	var data [][]byte
	size := 0
	seen := false

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			if !seen {
				// Blank lines between frames carry nothing.
				continue
			}
			frame.data = bytes.Join(data, []byte("\n"))
			if string(frame.data) == "[DONE]" {
				return nil, errDone
			}
			return &frame, nil
		}

		switch {
		case strings.HasPrefix(line, ":"):
			// Comment line, used by servers as keep-alive.
		case strings.HasPrefix(line, "event:"):
			frame.event = strings.TrimPrefix(strings.TrimPrefix(line, "event:"), " ")
			seen = true
		case strings.HasPrefix(line, "data:"):
			d := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
			size += len(d)
			if size > maxEventBytes {
				return nil, &FramingError{Message: fmt.Sprintf("event exceeds %d bytes", maxEventBytes)}
			}
			data = append(data, []byte(d))
			seen = true
		case strings.HasPrefix(line, "id:"), strings.HasPrefix(line, "retry:"):
			// Not used by this protocol.
			seen = true
		default:
			debug.Log("streaming", "ignoring unrecognized sse line", "line", line)
		}
	}

	if err := r.scanner.Err(); err != nil {
		if err == bufio.ErrTooLong {
			return nil, &FramingError{Message: fmt.Sprintf("event exceeds %d bytes", maxEventBytes)}
		}
		return nil, &FramingError{Message: "stream read failed", Cause: err}
	}

	// End of input. A dangling unterminated frame is still delivered so a
	// server that omits the final blank line does not lose its last event.
	if seen && len(data) > 0 {
		frame.data = bytes.Join(data, []byte("\n"))
		if string(frame.data) == "[DONE]" {
			return nil, errDone
		}
		return &frame, nil
	}
	return nil, io.EOF
}

// decodeFrame turns an assembled frame into a typed stream event. The
// payload's type field is authoritative; when absent, the event name from
// the framing layer is injected. A name that contradicts the payload is a
// FramingError.
func decodeFrame(frame *sseFrame) (*api.StreamEvent, error) {
	data := frame.data
	if !gjson.ValidBytes(data) {
		return nil, &FramingError{Message: "event data is not valid JSON"}
	}

	payloadType := gjson.GetBytes(data, "type").String()
	switch {
	case payloadType == "" && frame.event != "":
		injected, err := injectType(data, frame.event)
		if err != nil {
			return nil, err
		}
		data = injected
	case payloadType == "" && frame.event == "":
		return nil, &FramingError{Message: "event carries no type"}
	case frame.event != "" && frame.event != payloadType:
		return nil, &FramingError{Message: fmt.Sprintf("event name %q contradicts payload type %q", frame.event, payloadType)}
	}

	var ev api.StreamEvent
	if err := ev.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &ev, nil
}

// injectType splices a type field into the front of a JSON object.
func injectType(data []byte, eventType string) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) < 2 || trimmed[0] != '{' {
		return nil, &FramingError{Message: "event data is not a JSON object"}
	}
	typeField, err := json.Marshal(eventType)
	if err != nil {
		return nil, err
	}
	inner := bytes.TrimSpace(trimmed[1 : len(trimmed)-1])

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(typeField)
	if len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

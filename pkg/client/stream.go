package client

import (
	"errors"
	"io"

	"github.com/empfang-dev/empfang/pkg/api"
	"github.com/empfang-dev/empfang/pkg/debug"
	"github.com/empfang-dev/empfang/pkg/observability"
)

// Outcome classifies how a stream ended.
type Outcome int

const (
	// OutcomeNone means the stream has not ended yet.
	OutcomeNone Outcome = iota
	// OutcomeCompleted means the server reported a terminal state.
	OutcomeCompleted
	// OutcomeFailed means the server reported a failure.
	OutcomeFailed
	// OutcomeDisconnected means the transport ended without a terminal
	// event. A retry is meaningful for this outcome only.
	OutcomeDisconnected
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeDisconnected:
		return "disconnected"
	}
	return "none"
}

// ResponseStream iterates over the events of one streaming response and
// folds them into a snapshot as it goes. The usage pattern follows
// bufio.Scanner:
//
//	stream, err := c.StreamResponse(ctx, req)
//	if err != nil { ... }
//	defer stream.Close()
//	for stream.Next() {
//	    ev := stream.Event()
//	    ...
//	}
//	if err := stream.Err(); err != nil { ... }
//	final := stream.Snapshot()
//
// A ResponseStream is not safe for concurrent use.
type ResponseStream struct {
	body    io.ReadCloser
	reader  *sseReader
	accum   *Accumulator
	model   string
	current *api.StreamEvent
	err     error
	outcome Outcome
	closed  bool
}

func newResponseStream(body io.ReadCloser, model string) *ResponseStream {
	return &ResponseStream{
		body:   body,
		reader: newSSEReader(body),
		accum:  NewAccumulator(),
		model:  model,
	}
}

// Next advances to the next event. It returns false when the stream ends,
// by sentinel, terminal event followed by end of input, or error; check
// Err and Outcome afterwards.
//
// Events of unrecognized kinds are returned like any other so callers can
// observe raw payloads; the accumulator skips them.
func (s *ResponseStream) Next() bool {
	if s.err != nil || s.outcome != OutcomeNone {
		return false
	}

	frame, err := s.reader.next()
	switch {
	case err == nil:
	case errors.Is(err, errDone):
		s.finish(nil)
		return false
	case errors.Is(err, io.EOF):
		s.finish(nil)
		return false
	default:
		s.finish(err)
		return false
	}

	ev, err := decodeFrame(frame)
	if err != nil {
		var fe *FramingError
		if errors.As(err, &fe) {
			s.finish(err)
			return false
		}
		// Schema error on a known event kind.
		s.err = err
		s.current = nil
		return false
	}

	s.current = ev
	if applyErr := s.accum.Apply(ev); applyErr != nil {
		s.err = applyErr
		return false
	}
	return true
}

// finish classifies the end of the stream and records the outcome.
func (s *ResponseStream) finish(cause error) {
	switch s.accum.State() {
	case StateCompleted:
		s.outcome = OutcomeCompleted
	case StateFailed:
		s.outcome = OutcomeFailed
	default:
		s.outcome = OutcomeDisconnected
		s.err = &DisconnectedError{Cause: cause}
	}
	if cause != nil && s.outcome != OutcomeDisconnected {
		s.err = cause
	}
	observability.StreamOutcomesTotal.WithLabelValues(s.outcome.String()).Inc()
	recordUsage(s.accum.Snapshot())
	debug.Log("streaming", "stream finished", "outcome", s.outcome.String(), "model", s.model)
}

// Event returns the event produced by the last successful Next call.
func (s *ResponseStream) Event() *api.StreamEvent { return s.current }

// Err returns the first error encountered, if any. A DisconnectedError
// marks a stream that ended without a terminal event.
func (s *ResponseStream) Err() error { return s.err }

// Outcome reports how the stream ended, or OutcomeNone while it is live.
func (s *ResponseStream) Outcome() Outcome { return s.outcome }

// Snapshot returns a read-only deep copy of the resource accumulated so
// far. It is safe to call mid-stream for live display.
func (s *ResponseStream) Snapshot() *api.Response { return s.accum.Snapshot() }

// Close releases the underlying connection. Abandoning a stream early is
// safe; the snapshot keeps whatever was applied.
func (s *ResponseStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

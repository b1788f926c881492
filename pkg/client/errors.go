package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/empfang-dev/empfang/pkg/api"
)

// FramingError reports malformed SSE framing: a data block that is not
// valid JSON, an event name that contradicts the payload's type field, an
// oversized frame, or a response that is not an event stream at all. It is
// fatal to the stream it occurred on.
type FramingError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *FramingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("sse framing: %s: %v", e.Message, e.Cause)
	}
	return "sse framing: " + e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *FramingError) Unwrap() error { return e.Cause }

// ProtocolViolation reports an event that is inconsistent with the stream
// state: an event after a terminal lifecycle event, or a completion marker
// referencing an item the stream never introduced. It is surfaced per
// event; the accumulator stays usable for subsequent events.
type ProtocolViolation struct {
	Message string
}

// Error implements the error interface.
func (e *ProtocolViolation) Error() string {
	return "protocol violation: " + e.Message
}

// DisconnectedError reports a stream that ended without a terminal
// lifecycle event. It is distinct from a server-reported failure so
// callers can decide that a retry is meaningful.
type DisconnectedError struct {
	Cause error
}

// Error implements the error interface.
func (e *DisconnectedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("stream disconnected before completion: %v", e.Cause)
	}
	return "stream disconnected before completion"
}

// Unwrap returns the underlying cause, if any.
func (e *DisconnectedError) Unwrap() error { return e.Cause }

// mapHTTPError converts a non-2xx response into an APIError, parsing the
// body as an error envelope when possible.
func mapHTTPError(resp *http.Response) *api.APIError {
	apiErr := extractError(resp.Body)
	if apiErr != nil {
		return apiErr
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return api.NewInvalidRequestError("", "invalid request")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return api.NewServerError("authentication failed")
	case resp.StatusCode == http.StatusNotFound:
		return api.NewNotFoundError("resource not found")
	case resp.StatusCode == http.StatusTooManyRequests:
		e := api.NewTooManyRequestsError("rate limit exceeded")
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			e.Headers = map[string]string{"Retry-After": ra}
		}
		return e
	default:
		return api.NewServerError(fmt.Sprintf("server error (HTTP %d)", resp.StatusCode))
	}
}

// extractError tries to parse the response body as an error envelope.
func extractError(body io.Reader) *api.APIError {
	if body == nil {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return nil
	}
	var envelope api.ErrorResponse
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return envelope.Error
	}
	return nil
}

// mapNetworkError converts a transport-level error into an APIError.
func mapNetworkError(err error) *api.APIError {
	return api.NewServerError(fmt.Sprintf("connection error: %s", err.Error()))
}

package observability

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Transport is an http.RoundTripper that records request metrics for every
// outgoing API call. Wrap the client's transport with NewTransport to
// capture:
//   - empfang_requests_total (counter): per request with operation, model, and status class labels
//   - empfang_request_duration_seconds (histogram): request duration with operation and model labels
//   - empfang_streams_active (gauge): incremented while an SSE stream body is open
type Transport struct {
	next http.RoundTripper
}

// NewTransport wraps next with metrics recording. A nil next uses
// http.DefaultTransport.
func NewTransport(next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{next: next}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	operation := operationLabel(req)

	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start).Seconds()

	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode/100) + "xx"
	}

	// The model is not known at the transport layer; callers that want
	// per-model token counts record TokensTotal from the response usage.
	RequestsTotal.WithLabelValues(operation, "", status).Inc()
	RequestDuration.WithLabelValues(operation, "").Observe(duration)

	if err == nil && strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		StreamsActive.Inc()
		resp.Body = &gaugedBody{ReadCloser: resp.Body}
	}
	return resp, err
}

// operationLabel derives a low-cardinality operation name from the method
// and path shape, keeping resource ids out of the label set.
func operationLabel(req *http.Request) string {
	path := req.URL.Path
	switch {
	case req.Method == http.MethodPost && strings.HasSuffix(path, "/responses"):
		if req.Header.Get("Accept") == "text/event-stream" {
			return "stream_response"
		}
		return "create_response"
	case req.Method == http.MethodPost && strings.HasSuffix(path, "/cancel"):
		return "cancel_response"
	case req.Method == http.MethodGet:
		return "get_response"
	case req.Method == http.MethodDelete:
		return "delete_response"
	}
	return strings.ToLower(req.Method)
}

// gaugedBody decrements the active-streams gauge when the stream body is
// closed.
type gaugedBody struct {
	io.ReadCloser
	closed bool
}

func (b *gaugedBody) Close() error {
	if !b.closed {
		b.closed = true
		StreamsActive.Dec()
	}
	return b.ReadCloser.Close()
}

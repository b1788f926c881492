package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestMetricsRegistered verifies that all metrics are registered in the
// default registry without panicking.
func TestMetricsRegistered(t *testing.T) {
	expected := map[string]bool{
		"empfang_requests_total":           false,
		"empfang_request_duration_seconds": false,
		"empfang_streams_active":           false,
		"empfang_stream_events_total":      false,
		"empfang_stream_outcomes_total":    false,
		"empfang_tokens_total":             false,
		"empfang_tool_executions_total":    false,
	}

	// Counter vecs with no observations yet do not appear in Gather
	// output, so touch each metric first.
	RequestsTotal.WithLabelValues("create_response", "", "2xx").Add(0)
	RequestDuration.WithLabelValues("create_response", "").Observe(0)
	StreamEventsTotal.WithLabelValues("response.created").Add(0)
	StreamOutcomesTotal.WithLabelValues("completed").Add(0)
	TokensTotal.WithLabelValues("m", "input").Add(0)
	ToolExecutionsTotal.WithLabelValues("t", "ok").Add(0)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}
	for _, f := range families {
		if _, ok := expected[f.GetName()]; ok {
			expected[f.GetName()] = true
		}
	}
	for name, seen := range expected {
		if !seen {
			t.Errorf("metric %s not registered", name)
		}
	}
}

// TestTransportRecordsRequests verifies the instrumented round tripper
// increments the request counter with the derived operation label.
func TestTransportRecordsRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	before := counterValue(t, RequestsTotal, "create_response", "", "2xx")

	c := &http.Client{Transport: NewTransport(nil)}
	resp, err := c.Post(srv.URL+"/v1/responses", "application/json", nil)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	resp.Body.Close()

	after := counterValue(t, RequestsTotal, "create_response", "", "2xx")
	if after-before != 1 {
		t.Errorf("expected request count to increase by 1, got delta=%f", after-before)
	}
}

// TestTransportTracksStreamGauge verifies the active-streams gauge stays
// up while an event-stream body is open and drops on close.
func TestTransportTracksStreamGauge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	baseline := gaugeValue(t, StreamsActive)

	c := &http.Client{Transport: NewTransport(nil)}
	resp, err := c.Get(srv.URL + "/v1/responses/resp_123")
	if err != nil {
		t.Fatalf("request error: %v", err)
	}

	during := gaugeValue(t, StreamsActive)
	if during != baseline+1 {
		t.Errorf("expected gauge=%f while body open, got %f", baseline+1, during)
	}

	resp.Body.Close()
	resp.Body.Close() // double close must not double-decrement

	after := gaugeValue(t, StreamsActive)
	if after != baseline {
		t.Errorf("expected gauge=%f after close, got %f", baseline, after)
	}
}

func TestOperationLabel(t *testing.T) {
	tests := []struct {
		method, path, accept string
		want                 string
	}{
		{http.MethodPost, "/v1/responses", "", "create_response"},
		{http.MethodPost, "/v1/responses", "text/event-stream", "stream_response"},
		{http.MethodPost, "/v1/responses/resp_1/cancel", "", "cancel_response"},
		{http.MethodGet, "/v1/responses/resp_1", "", "get_response"},
		{http.MethodDelete, "/v1/responses/resp_1", "", "delete_response"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		if tt.accept != "" {
			req.Header.Set("Accept", tt.accept)
		}
		if got := operationLabel(req); got != tt.want {
			t.Errorf("operationLabel(%s %s) = %q, want %q", tt.method, tt.path, got, tt.want)
		}
	}
}

// counterValue reads the current value of a CounterVec for the given labels.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

// gaugeValue reads the current value of a Gauge.
func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("writing gauge metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

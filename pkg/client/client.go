package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/empfang-dev/empfang/pkg/api"
	"github.com/empfang-dev/empfang/pkg/auth"
	"github.com/empfang-dev/empfang/pkg/debug"
	"github.com/empfang-dev/empfang/pkg/observability"
)

// Config holds the settings for a Client.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.example.com" (required).
	BaseURL string

	// Tokens produces the bearer token for each request. Optional; when
	// nil, requests carry no Authorization header.
	Tokens auth.TokenSource

	// Timeout applies to non-streaming requests. Default: 120s. Streaming
	// requests are governed by context cancellation instead.
	Timeout time.Duration

	// UserAgent overrides the User-Agent header. Default: "empfang-go".
	UserAgent string

	// HTTPClient is the underlying client for non-streaming requests.
	// When nil one is constructed with the configured timeout and an
	// instrumented transport.
	HTTPClient *http.Client

	// Metrics enables the Prometheus instrumented transport when the
	// default HTTP client is constructed. Default: true via DefaultConfig;
	// ignored when HTTPClient is set.
	Metrics bool
}

// DefaultConfig returns a Config with metrics enabled and default timeout.
func DefaultConfig(baseURL string) Config {
	return Config{BaseURL: baseURL, Metrics: true}
}

// Client is a typed client for the responses API. It is safe for
// concurrent use; independent streams share nothing but the transport.
type Client struct {
	httpClient   *http.Client
	streamClient *http.Client
	baseURL      string
	userAgent    string
	tokens       auth.TokenSource
}

// New creates a Client from the given configuration.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("client: base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("client: invalid base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		var transport http.RoundTripper
		if cfg.Metrics {
			transport = observability.NewTransport(nil)
		}
		httpClient = &http.Client{Timeout: timeout, Transport: transport}
	}

	// No timeout for streams; a stream can legitimately outlast any fixed
	// deadline. The context controls the request lifetime instead.
	streamClient := &http.Client{Transport: httpClient.Transport}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "empfang-go"
	}

	return &Client{
		httpClient:   httpClient,
		streamClient: streamClient,
		baseURL:      base,
		userAgent:    userAgent,
		tokens:       cfg.Tokens,
	}, nil
}

// CreateResponse performs a non-streaming create call and returns the
// final response resource.
func (c *Client) CreateResponse(ctx context.Context, req *api.CreateResponseRequest) (*api.Response, error) {
	reqCopy := *req
	reqCopy.Stream = false

	var resp api.Response
	if err := c.doJSON(ctx, http.MethodPost, "/v1/responses", &reqCopy, &resp); err != nil {
		return nil, err
	}
	recordUsage(&resp)
	return &resp, nil
}

// GetResponse fetches a stored response by id.
func (c *Client) GetResponse(ctx context.Context, id string) (*api.Response, error) {
	var resp api.Response
	if err := c.doJSON(ctx, http.MethodGet, "/v1/responses/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteResponse deletes a stored response by id.
func (c *Client) DeleteResponse(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/responses/"+url.PathEscape(id), nil, nil)
}

// CancelResponse cancels an in-flight background response.
func (c *Client) CancelResponse(ctx context.Context, id string) (*api.Response, error) {
	var resp api.Response
	if err := c.doJSON(ctx, http.MethodPost, "/v1/responses/"+url.PathEscape(id)+"/cancel", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StreamResponse performs a streaming create call. The returned stream
// must be closed by the caller. Cancelling ctx abandons the stream; the
// partial snapshot accumulated so far stays readable.
func (c *Client) StreamResponse(ctx context.Context, req *api.CreateResponseRequest) (*ResponseStream, error) {
	reqCopy := *req
	reqCopy.Stream = true

	body, err := json.Marshal(&reqCopy)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("marshal request: %s", err.Error()))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/responses", bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("build request: %s", err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if err := c.authorize(ctx, httpReq); err != nil {
		return nil, err
	}

	debug.Log("client", "stream request", "url", httpReq.URL.String(), "model", reqCopy.Model)

	httpResp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		return nil, mapHTTPError(httpResp)
	}
	if ct := httpResp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		httpResp.Body.Close()
		return nil, &FramingError{Message: fmt.Sprintf("unexpected content type %q", ct)}
	}

	return newResponseStream(httpResp.Body, reqCopy.Model), nil
}

// doJSON performs a request with an optional JSON body, decoding a JSON
// response into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return api.NewServerError(fmt.Sprintf("marshal request: %s", err.Error()))
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return api.NewServerError(fmt.Sprintf("build request: %s", err.Error()))
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(ctx, httpReq); err != nil {
		return err
	}

	debug.Log("client", "request", "method", method, "path", path)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return mapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return mapHTTPError(httpResp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return err
	}
	return nil
}

// authorize sets the common headers and attaches the bearer token, if a
// token source is configured.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	req.Header.Set("User-Agent", c.userAgent)
	if c.tokens == nil {
		return nil
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("client: token source: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// recordUsage feeds the response usage counters into the token metrics.
func recordUsage(resp *api.Response) {
	if resp == nil || resp.Usage == nil {
		return
	}
	observability.TokensTotal.WithLabelValues(resp.Model, "input").Add(float64(resp.Usage.InputTokens))
	observability.TokensTotal.WithLabelValues(resp.Model, "output").Add(float64(resp.Usage.OutputTokens))
}

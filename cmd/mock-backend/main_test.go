package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/empfang-dev/empfang/pkg/api"
	"github.com/empfang-dev/empfang/pkg/client"
	"github.com/empfang-dev/empfang/pkg/config"
	"github.com/empfang-dev/empfang/pkg/storage"
	"github.com/empfang-dev/empfang/pkg/storage/memory"
	"github.com/empfang-dev/empfang/pkg/tools"
)

func newTestBackend(t *testing.T) (*client.Client, *httptest.Server) {
	t.Helper()
	backend := &mockBackend{store: memory.New(100)}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	c, err := client.New(client.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("client.New error: %v", err)
	}
	return c, srv
}

func TestOpenStore(t *testing.T) {
	cfg := config.Defaults().Storage
	store, err := openStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openStore error: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*memory.Store); !ok {
		t.Errorf("store = %T, want *memory.Store", store)
	}

	cfg.Type = "sqlite"
	if _, err := openStore(context.Background(), cfg); err == nil {
		t.Errorf("openStore accepted unknown storage type %q", cfg.Type)
	}
}

func TestCreateRetrieveDelete(t *testing.T) {
	c, _ := newTestBackend(t)
	ctx := context.Background()

	resp, err := c.CreateResponse(ctx, &api.CreateResponseRequest{
		Model: "mock-model",
		Input: api.TextInput("Please count from 1 to 5."),
	})
	if err != nil {
		t.Fatalf("CreateResponse error: %v", err)
	}
	if resp.Status != api.ResponseStatusCompleted {
		t.Errorf("status = %q, want completed", resp.Status)
	}
	if got := resp.OutputText(); got != "1, 2, 3, 4, 5" {
		t.Errorf("OutputText() = %q", got)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens == 0 {
		t.Error("expected usage on terminal response")
	}

	got, err := c.GetResponse(ctx, resp.ID)
	if err != nil {
		t.Fatalf("GetResponse error: %v", err)
	}
	if got.ID != resp.ID || got.OutputText() != resp.OutputText() {
		t.Errorf("retrieved response differs: %+v", got)
	}

	if err := c.DeleteResponse(ctx, resp.ID); err != nil {
		t.Fatalf("DeleteResponse error: %v", err)
	}

	_, err = c.GetResponse(ctx, resp.ID)
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeNotFound {
		t.Errorf("GetResponse after delete = %v, want not_found", err)
	}
}

func TestMalformedResponseIDRejected(t *testing.T) {
	c, _ := newTestBackend(t)
	ctx := context.Background()

	var apiErr *api.APIError
	if _, err := c.GetResponse(ctx, "not-a-real-id"); !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("GetResponse = %v, want invalid_request", err)
	}
	if err := c.DeleteResponse(ctx, "not-a-real-id"); !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("DeleteResponse = %v, want invalid_request", err)
	}
}

func TestStreamingMatchesSnapshot(t *testing.T) {
	c, _ := newTestBackend(t)
	ctx := context.Background()

	stream, err := c.StreamResponse(ctx, &api.CreateResponseRequest{
		Model: "mock-model",
		Input: api.TextInput("Please count from 1 to 5."),
	})
	if err != nil {
		t.Fatalf("StreamResponse error: %v", err)
	}
	defer stream.Close()

	var deltas string
	lastSeq := 0
	for stream.Next() {
		ev := stream.Event()
		if ev.SequenceNumber <= lastSeq {
			t.Errorf("sequence number %d not increasing (last %d)", ev.SequenceNumber, lastSeq)
		}
		lastSeq = ev.SequenceNumber
		if ev.Type == api.EventOutputTextDelta {
			deltas += ev.Delta
		}
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if stream.Outcome() != client.OutcomeCompleted {
		t.Errorf("outcome = %v, want completed", stream.Outcome())
	}

	if deltas != "1, 2, 3, 4, 5" {
		t.Errorf("concatenated deltas = %q", deltas)
	}
	snapshot := stream.Snapshot()
	if snapshot == nil {
		t.Fatal("nil snapshot after completed stream")
	}
	if snapshot.OutputText() != deltas {
		t.Errorf("snapshot text %q != deltas %q", snapshot.OutputText(), deltas)
	}
	if snapshot.Status != api.ResponseStatusCompleted {
		t.Errorf("snapshot status = %q", snapshot.Status)
	}
}

func TestPreviousResponseChaining(t *testing.T) {
	c, _ := newTestBackend(t)
	ctx := context.Background()

	first, err := c.CreateResponse(ctx, &api.CreateResponseRequest{
		Model: "mock-model",
		Input: api.TextInput("Hello."),
	})
	if err != nil {
		t.Fatalf("first CreateResponse error: %v", err)
	}

	second, err := c.CreateResponse(ctx, &api.CreateResponseRequest{
		Model:              "mock-model",
		Input:              api.TextInput("And again."),
		PreviousResponseID: first.ID,
	})
	if err != nil {
		t.Fatalf("chained CreateResponse error: %v", err)
	}
	if second.PreviousResponseID == nil || *second.PreviousResponseID != first.ID {
		t.Errorf("previous_response_id = %v, want %s", second.PreviousResponseID, first.ID)
	}

	_, err = c.CreateResponse(ctx, &api.CreateResponseRequest{
		Model:              "mock-model",
		Input:              api.TextInput("Broken chain."),
		PreviousResponseID: "resp_does_not_exist",
	})
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeNotFound {
		t.Errorf("unknown previous id = %v, want not_found", err)
	}
}

func TestToolLoop(t *testing.T) {
	c, _ := newTestBackend(t)
	ctx := context.Background()

	executed := false
	local := tools.NewFuncExecutor()
	local.Register(
		api.FunctionTool("get_weather", "Get current weather.",
			[]byte(`{"type":"object","properties":{"location":{"type":"string"}}}`)),
		func(ctx context.Context, arguments string) (string, error) {
			executed = true
			return `{"temperature_c": 21}`, nil
		},
	)

	runner := tools.NewRunner(c, tools.RunnerConfig{}, local)
	resp, err := runner.Run(ctx, &api.CreateResponseRequest{
		Model: "mock-model",
		Input: api.TextInput("What is the weather in San Francisco?"),
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if !executed {
		t.Error("local tool was never executed")
	}
	if len(resp.FunctionCalls()) != 0 {
		t.Errorf("final response still has %d pending calls", len(resp.FunctionCalls()))
	}
	if resp.OutputText() == "" {
		t.Error("final response has no text output")
	}
}

func TestInputItemsEndpoint(t *testing.T) {
	_, srv := newTestBackend(t)

	// Create through the wire so input items are persisted.
	body := `{"model":"mock-model","input":[{"type":"message","role":"user","content":[{"type":"input_text","text":"first"}]},{"type":"message","role":"user","content":[{"type":"input_text","text":"second"}]}]}`
	resp, err := http.Post(srv.URL+"/v1/responses", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()
	var created api.Response
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decoding create response: %v", err)
	}

	listResp, err := http.Get(srv.URL + "/v1/responses/" + created.ID + "/input_items?limit=1")
	if err != nil {
		t.Fatalf("GET input_items error: %v", err)
	}
	defer listResp.Body.Close()

	var list storage.ItemList
	if err := json.NewDecoder(listResp.Body).Decode(&list); err != nil {
		t.Fatalf("decoding item list: %v", err)
	}
	if list.Object != "list" {
		t.Errorf("object = %q, want list", list.Object)
	}
	if len(list.Data) != 1 || !list.HasMore {
		t.Errorf("page = %d items, has_more=%v, want 1 item with more", len(list.Data), list.HasMore)
	}
}

func TestListResponsesEndpoint(t *testing.T) {
	c, srv := newTestBackend(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.CreateResponse(ctx, &api.CreateResponseRequest{
			Model: "mock-model",
			Input: api.TextInput("Hello."),
		}); err != nil {
			t.Fatalf("CreateResponse error: %v", err)
		}
	}

	listResp, err := http.Get(srv.URL + "/v1/responses?limit=2")
	if err != nil {
		t.Fatalf("GET responses error: %v", err)
	}
	defer listResp.Body.Close()

	var list storage.ResponseList
	if err := json.NewDecoder(listResp.Body).Decode(&list); err != nil {
		t.Fatalf("decoding response list: %v", err)
	}
	if len(list.Data) != 2 || !list.HasMore {
		t.Errorf("page = %d items, has_more=%v, want 2 items with more", len(list.Data), list.HasMore)
	}
}

// Command mock-backend runs a deterministic responses API server for
// client conformance testing. It answers POST /v1/responses with
// predictable output derived from the request content, streams the
// canonical event sequence when stream=true, and persists responses in
// a store so retrieval, deletion, and chaining can be exercised end to
// end. The store backend follows the storage configuration: an in-memory
// LRU by default, PostgreSQL when a DSN is given.
//
// Configuration:
//
//	MOCK_PORT          - Listen port (default: 9090)
//	MOCK_STORAGE       - Store backend, "memory" or "postgres"
//	MOCK_STORAGE_SIZE  - In-memory store capacity (default: 10000)
//	MOCK_POSTGRES_DSN  - PostgreSQL connection string; implies postgres
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/empfang-dev/empfang/pkg/api"
	"github.com/empfang-dev/empfang/pkg/config"
	"github.com/empfang-dev/empfang/pkg/storage"
	"github.com/empfang-dev/empfang/pkg/storage/memory"
	"github.com/empfang-dev/empfang/pkg/storage/postgres"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, storageConfig())
	if err != nil {
		slog.Error("opening store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	backend := &mockBackend{store: store}

	srv := &http.Server{Addr: ":" + port, Handler: backend.handler()}

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// storageConfig derives the store settings from the environment on top
// of the standard defaults.
func storageConfig() config.StorageConfig {
	cfg := config.Defaults().Storage
	if v := os.Getenv("MOCK_STORAGE"); v != "" {
		cfg.Type = v
	}
	if v := os.Getenv("MOCK_STORAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxSize = n
		}
	}
	if v := os.Getenv("MOCK_POSTGRES_DSN"); v != "" {
		cfg.Type = "postgres"
		cfg.Postgres.DSN = v
	}
	return cfg
}

// openStore builds the response store the configuration selects.
func openStore(ctx context.Context, cfg config.StorageConfig) (storage.ResponseStore, error) {
	switch cfg.Type {
	case "", "memory":
		slog.Info("storage enabled", "type", "memory", "max_size", cfg.MaxSize)
		return memory.New(cfg.MaxSize), nil
	case "postgres":
		slog.Info("storage enabled", "type", "postgres", "migrate_on_start", cfg.Postgres.MigrateOnStart)
		return postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// tenantMiddleware scopes every request to a single mock tenant so the
// store's tenant isolation code path is exercised.
func tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(storage.SetTenant(r.Context(), "mock")))
	})
}

type mockBackend struct {
	store storage.ResponseStore
}

func (b *mockBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/responses", b.handleCreate)
	mux.HandleFunc("GET /v1/responses", b.handleList)
	mux.HandleFunc("GET /v1/responses/{id}", b.handleGet)
	mux.HandleFunc("DELETE /v1/responses/{id}", b.handleDelete)
	mux.HandleFunc("POST /v1/responses/{id}/cancel", b.handleCancel)
	mux.HandleFunc("GET /v1/responses/{id}/input_items", b.handleInputItems)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return tenantMiddleware(mux)
}

// --- Create ---

func (b *mockBackend) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, api.NewInvalidRequestError("", "malformed request body"))
		return
	}
	if req.Model == "" {
		req.Model = "mock-model"
	}

	if req.PreviousResponseID != "" {
		if !api.ValidateResponseID(req.PreviousResponseID) {
			writeError(w, http.StatusNotFound,
				api.NewNotFoundError(fmt.Sprintf("previous response %q not found", req.PreviousResponseID)))
			return
		}
		if _, err := b.store.GetResponseForChain(r.Context(), req.PreviousResponseID); err != nil {
			writeError(w, http.StatusNotFound,
				api.NewNotFoundError(fmt.Sprintf("previous response %q not found", req.PreviousResponseID)))
			return
		}
	}

	resp := b.buildResponse(&req)

	if req.Store.Or(true) {
		if err := b.store.SaveResponse(r.Context(), resp, inputItems(&req)); err != nil {
			slog.Error("saving response", "id", resp.ID, "error", err)
		}
	}

	if req.Stream {
		b.streamResponse(w, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// buildResponse generates a deterministic completed response for the
// request. Requests carrying tools get a function call, image inputs get
// a description, everything else gets text keyed off the prompt.
func (b *mockBackend) buildResponse(req *api.CreateResponseRequest) *api.Response {
	now := time.Now().Unix()
	resp := &api.Response{
		ID:        api.NewResponseID(),
		Object:    "response",
		CreatedAt: now,
		Status:    api.ResponseStatusCompleted,
		Model:     req.Model,
		Store:     req.Store.Or(true),
		Usage: &api.Usage{
			InputTokens:  10,
			OutputTokens: 5,
			TotalTokens:  15,
		},
	}
	if req.PreviousResponseID != "" {
		prev := req.PreviousResponseID
		resp.PreviousResponseID = &prev
	}
	completedAt := now
	resp.CompletedAt = &completedAt

	if len(req.Tools) > 0 && !toolChoiceIsNone(req.ToolChoice) && !hasCallOutput(req) {
		resp.Output = []api.Item{functionCallItem(req.Tools[0])}
		return resp
	}

	resp.Output = []api.Item{assistantMessage(replyText(req))}
	return resp
}

func replyText(req *api.CreateResponseRequest) string {
	if hasCallOutput(req) {
		return "The weather in San Francisco is 21 degrees and sunny."
	}
	if hasImageContent(req) {
		return "I can see the image you shared. It appears to be a small red icon."
	}
	prompt := strings.ToLower(promptText(req))
	switch {
	case strings.Contains(prompt, "count from 1 to 5"):
		return "1, 2, 3, 4, 5"
	case req.Instructions != "":
		return "Ahoy there, matey! Welcome aboard!"
	default:
		return "Hello, nice day!"
	}
}

func assistantMessage(text string) api.Item {
	return api.Item{
		ID:     api.NewMessageID(),
		Type:   api.ItemTypeMessage,
		Status: api.ItemStatusCompleted,
		Message: &api.MessageData{
			Role:    api.RoleAssistant,
			Content: []api.ContentPart{api.OutputText(text)},
		},
	}
}

func functionCallItem(tool api.Tool) api.Item {
	name := tool.Name
	if name == "" {
		name = "get_weather"
	}
	return api.Item{
		ID:     api.NewItemID(),
		Type:   api.ItemTypeFunctionCall,
		Status: api.ItemStatusCompleted,
		FunctionCall: &api.FunctionCallData{
			CallID:    api.NewCallID(),
			Name:      name,
			Arguments: `{"location":"San Francisco","unit":"celsius"}`,
		},
	}
}

// --- Streaming ---

// streamResponse replays the canonical event sequence for an already
// computed terminal response: created, in_progress, then per output item
// the added/delta/done triple, then the terminal lifecycle event.
func (b *mockBackend) streamResponse(w http.ResponseWriter, resp *api.Response) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, api.NewServerError("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	seq := 0
	emit := func(ev api.StreamEvent) {
		seq++
		ev.SequenceNumber = seq
		data, err := json.Marshal(ev)
		if err != nil {
			slog.Error("marshaling event", "type", ev.Type, "error", err)
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
		flusher.Flush()
	}

	inProgress := *resp
	inProgress.Status = api.ResponseStatusInProgress
	inProgress.Output = nil
	inProgress.Usage = nil
	inProgress.CompletedAt = nil

	emit(api.StreamEvent{Type: api.EventResponseCreated, Response: &inProgress})
	emit(api.StreamEvent{Type: api.EventResponseInProgress, Response: &inProgress})

	for i, item := range resp.Output {
		started := item
		started.Status = api.ItemStatusInProgress
		switch item.Type {
		case api.ItemTypeMessage:
			started.Message = &api.MessageData{Role: item.Message.Role}
			emit(api.StreamEvent{Type: api.EventOutputItemAdded, OutputIndex: i, Item: &started})

			part := api.OutputText("")
			emit(api.StreamEvent{Type: api.EventContentPartAdded, ItemID: item.ID, OutputIndex: i, Part: &part})

			text := item.OutputText()
			for _, chunk := range splitChunks(text, 4) {
				emit(api.StreamEvent{Type: api.EventOutputTextDelta, ItemID: item.ID, OutputIndex: i, Delta: chunk})
			}
			emit(api.StreamEvent{Type: api.EventOutputTextDone, ItemID: item.ID, OutputIndex: i, Text: text})

			done := api.OutputText(text)
			emit(api.StreamEvent{Type: api.EventContentPartDone, ItemID: item.ID, OutputIndex: i, Part: &done})

		case api.ItemTypeFunctionCall:
			call := *item.FunctionCall
			call.Arguments = ""
			started.FunctionCall = &call
			emit(api.StreamEvent{Type: api.EventOutputItemAdded, OutputIndex: i, Item: &started})

			args := item.FunctionCall.Arguments
			for _, chunk := range splitChunks(args, 8) {
				emit(api.StreamEvent{Type: api.EventFunctionCallArgsDelta, ItemID: item.ID, OutputIndex: i, Delta: chunk})
			}
			emit(api.StreamEvent{Type: api.EventFunctionCallArgsDone, ItemID: item.ID, OutputIndex: i, Arguments: args})

		default:
			emit(api.StreamEvent{Type: api.EventOutputItemAdded, OutputIndex: i, Item: &started})
		}

		emit(api.StreamEvent{Type: api.EventOutputItemDone, OutputIndex: i, Item: &item})
	}

	emit(api.StreamEvent{Type: api.EventResponseCompleted, Response: resp})
}

func splitChunks(s string, size int) []string {
	var chunks []string
	for len(s) > size {
		chunks = append(chunks, s[:size])
		s = s[size:]
	}
	if s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

// --- Retrieval ---

// responseID extracts the path id, rejecting malformed ids before they
// reach the store.
func responseID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !api.ValidateResponseID(id) {
		writeError(w, http.StatusBadRequest,
			api.NewInvalidRequestError("id", fmt.Sprintf("malformed response id %q", id)))
		return "", false
	}
	return id, true
}

func (b *mockBackend) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := responseID(w, r)
	if !ok {
		return
	}
	resp, err := b.store.GetResponse(r.Context(), id)
	if err != nil {
		writeStoreError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *mockBackend) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := responseID(w, r)
	if !ok {
		return
	}
	if err := b.store.DeleteResponse(r.Context(), id); err != nil {
		writeStoreError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"object":  "response.deleted",
		"deleted": true,
	})
}

func (b *mockBackend) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := responseID(w, r)
	if !ok {
		return
	}
	resp, err := b.store.GetResponse(r.Context(), id)
	if err != nil {
		writeStoreError(w, id, err)
		return
	}
	// Responses complete synchronously here, so cancellation usually
	// lands after the terminal state and the stored resource comes back
	// unchanged. Only a response the lifecycle still allows to cancel
	// flips to cancelled.
	if apiErr := api.ValidateResponseTransition(resp.Status, api.ResponseStatusCancelled); apiErr == nil {
		cancelled := *resp
		cancelled.Status = api.ResponseStatusCancelled
		resp = &cancelled
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *mockBackend) handleList(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, api.NewInvalidRequestError("limit", err.Error()))
		return
	}
	opts.Model = r.URL.Query().Get("model")

	list, err := b.store.ListResponses(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, api.NewServerError(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (b *mockBackend) handleInputItems(w http.ResponseWriter, r *http.Request) {
	id, ok := responseID(w, r)
	if !ok {
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, api.NewInvalidRequestError("limit", err.Error()))
		return
	}

	list, err := b.store.GetInputItems(r.Context(), id, opts)
	if err != nil {
		writeStoreError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func listOptions(r *http.Request) (storage.ListOptions, error) {
	q := r.URL.Query()
	opts := storage.ListOptions{
		After:  q.Get("after"),
		Before: q.Get("before"),
		Order:  q.Get("order"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("limit must be an integer")
		}
		opts.Limit = n
	}
	return opts, nil
}

// --- Helpers ---

// inputItems normalizes the request input to a stored item list.
func inputItems(req *api.CreateResponseRequest) []api.Item {
	if req.Input.Items != nil {
		items := make([]api.Item, len(req.Input.Items))
		copy(items, req.Input.Items)
		for i := range items {
			// Client-supplied ids may be blank or malformed; stored
			// items always carry well-formed ids.
			if !api.ValidateItemID(items[i].ID) {
				items[i].ID = api.NewItemID()
			}
		}
		return items
	}
	item := api.UserMessage(req.Input.Text)
	item.ID = api.NewItemID()
	return []api.Item{item}
}

func promptText(req *api.CreateResponseRequest) string {
	if req.Input.Items == nil {
		return req.Input.Text
	}
	for i := len(req.Input.Items) - 1; i >= 0; i-- {
		it := req.Input.Items[i]
		if it.Type != api.ItemTypeMessage || it.Message == nil || it.Message.Role != api.RoleUser {
			continue
		}
		for _, part := range it.Message.Content {
			if part.Type == api.ContentTypeInputText {
				return part.Text
			}
		}
	}
	return ""
}

func hasImageContent(req *api.CreateResponseRequest) bool {
	for _, it := range req.Input.Items {
		if it.Type != api.ItemTypeMessage || it.Message == nil {
			continue
		}
		for _, part := range it.Message.Content {
			if part.Type == api.ContentTypeInputImage {
				return true
			}
		}
	}
	return false
}

func hasCallOutput(req *api.CreateResponseRequest) bool {
	for _, it := range req.Input.Items {
		if it.Type == api.ItemTypeFunctionCallOutput {
			return true
		}
	}
	return false
}

func toolChoiceIsNone(tc *api.ToolChoice) bool {
	return tc != nil && tc.String == api.ToolChoiceNone.String
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response body", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, apiErr *api.APIError) {
	writeJSON(w, status, api.ErrorResponse{Error: apiErr})
}

func writeStoreError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, api.NewNotFoundError(fmt.Sprintf("response %q not found", id)))
		return
	}
	writeError(w, http.StatusInternalServerError, api.NewServerError(err.Error()))
}

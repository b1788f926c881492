// Package postgres provides a PostgreSQL-backed response history store.
// It uses pgx/v5 for connection pooling and JSONB for structured item storage.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/empfang-dev/empfang/pkg/api"
	"github.com/empfang-dev/empfang/pkg/storage"
)

// Store is a PostgreSQL-backed ResponseStore.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.ResponseStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.applyDefaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// SaveResponse persists a terminal response and its input items.
func (s *Store) SaveResponse(ctx context.Context, resp *api.Response, input []api.Item) error {
	tenantID := storage.GetTenant(ctx)

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("marshaling input: %w", err)
	}

	outputJSON, err := json.Marshal(resp.Output)
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}

	var errorJSON []byte
	if resp.Error != nil {
		errorJSON, err = json.Marshal(resp.Error)
		if err != nil {
			return fmt.Errorf("marshaling error: %w", err)
		}
	}

	var extraJSON []byte
	if resp.Extra != nil {
		extraJSON, err = json.Marshal(resp.Extra)
		if err != nil {
			return fmt.Errorf("marshaling extra: %w", err)
		}
	}

	var usageIn, usageOut, usageTotal int
	if resp.Usage != nil {
		usageIn = resp.Usage.InputTokens
		usageOut = resp.Usage.OutputTokens
		usageTotal = resp.Usage.TotalTokens
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO responses (
			id, tenant_id, status, model, previous_response_id,
			input, output,
			usage_input_tokens, usage_output_tokens, usage_total_tokens,
			error, extra, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		resp.ID, tenantID, string(resp.Status), resp.Model, resp.PreviousResponseID,
		inputJSON, outputJSON,
		usageIn, usageOut, usageTotal,
		nullJSON(errorJSON), nullJSON(extraJSON), resp.CreatedAt,
	)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting response: %w", err)
	}

	return nil
}

// GetResponse retrieves a response by ID, excluding soft-deleted responses.
func (s *Store) GetResponse(ctx context.Context, id string) (*api.Response, error) {
	resp, _, err := s.getResponse(ctx, id, true)
	return resp, err
}

// GetResponseForChain retrieves a response by ID for chain reconstruction,
// including soft-deleted responses.
func (s *Store) GetResponseForChain(ctx context.Context, id string) (*api.Response, error) {
	resp, _, err := s.getResponse(ctx, id, false)
	return resp, err
}

// getResponse is the internal retrieval implementation. It also returns
// the stored input items for GetInputItems.
func (s *Store) getResponse(ctx context.Context, id string, excludeDeleted bool) (*api.Response, []api.Item, error) {
	tenantID := storage.GetTenant(ctx)

	query := `
		SELECT id, status, model, previous_response_id,
		       input, output,
		       usage_input_tokens, usage_output_tokens, usage_total_tokens,
		       error, extra, created_at
		FROM responses
		WHERE id = $1
	`
	args := []any{id}

	if excludeDeleted {
		query += " AND deleted_at IS NULL"
	}

	if tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}

	var resp api.Response
	var status string
	var prevID *string
	var inputJSON, outputJSON []byte
	var errorJSON, extraJSON *[]byte
	var usageIn, usageOut, usageTotal int

	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&resp.ID, &status, &resp.Model, &prevID,
		&inputJSON, &outputJSON,
		&usageIn, &usageOut, &usageTotal,
		&errorJSON, &extraJSON, &resp.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying response: %w", err)
	}

	resp.Object = "response"
	resp.Status = api.ResponseStatus(status)
	resp.PreviousResponseID = prevID

	var input []api.Item
	if err := json.Unmarshal(inputJSON, &input); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling input: %w", err)
	}
	if err := json.Unmarshal(outputJSON, &resp.Output); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling output: %w", err)
	}

	resp.Usage = &api.Usage{
		InputTokens:  usageIn,
		OutputTokens: usageOut,
		TotalTokens:  usageTotal,
	}

	if errorJSON != nil {
		var apiErr api.APIError
		if err := json.Unmarshal(*errorJSON, &apiErr); err == nil {
			resp.Error = &apiErr
		}
	}

	if extraJSON != nil {
		if err := json.Unmarshal(*extraJSON, &resp.Extra); err != nil {
			return nil, nil, fmt.Errorf("unmarshaling extra: %w", err)
		}
	}

	return &resp, input, nil
}

// DeleteResponse soft-deletes a response by setting deleted_at.
func (s *Store) DeleteResponse(ctx context.Context, id string) error {
	tenantID := storage.GetTenant(ctx)

	query := "UPDATE responses SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL"
	args := []any{time.Now(), id}

	if tenantID != "" {
		query += " AND tenant_id = $3"
		args = append(args, tenantID)
	}

	result, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting response: %w", err)
	}

	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// ListResponses returns a paginated list of stored responses filtered by
// tenant and optionally by model, with cursor-based pagination on
// (created_at, id).
func (s *Store) ListResponses(ctx context.Context, opts storage.ListOptions) (*storage.ResponseList, error) {
	tenantID := storage.GetTenant(ctx)

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	asc := opts.Order == "asc"

	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conds = append(conds, "deleted_at IS NULL")
	if tenantID != "" {
		conds = append(conds, "tenant_id = "+arg(tenantID))
	}
	if opts.Model != "" {
		conds = append(conds, "model = "+arg(opts.Model))
	}

	cursor := opts.After
	if cursor == "" {
		cursor = opts.Before
	}
	if cursor != "" {
		var curCreated int64
		err := s.pool.QueryRow(ctx,
			"SELECT created_at FROM responses WHERE id = $1", cursor,
		).Scan(&curCreated)
		if errors.Is(err, pgx.ErrNoRows) {
			return &storage.ResponseList{Object: "list", Data: []*api.Response{}}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolving cursor: %w", err)
		}

		// After moves forward in sort order, before moves backward.
		op := "<"
		if asc == (opts.After != "") {
			op = ">"
		}
		conds = append(conds, fmt.Sprintf("(created_at, id) %s (%s, %s)",
			op, arg(curCreated), arg(cursor)))
	}

	dir := "DESC"
	if asc {
		dir = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT id, status, model, previous_response_id,
		       output,
		       usage_input_tokens, usage_output_tokens, usage_total_tokens,
		       created_at
		FROM responses
		WHERE %s
		ORDER BY created_at %s, id %s
		LIMIT %d
	`, strings.Join(conds, " AND "), dir, dir, limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing responses: %w", err)
	}
	defer rows.Close()

	var matches []*api.Response
	for rows.Next() {
		var resp api.Response
		var status string
		var prevID *string
		var outputJSON []byte
		var usageIn, usageOut, usageTotal int

		if err := rows.Scan(
			&resp.ID, &status, &resp.Model, &prevID,
			&outputJSON,
			&usageIn, &usageOut, &usageTotal,
			&resp.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning response row: %w", err)
		}

		resp.Object = "response"
		resp.Status = api.ResponseStatus(status)
		resp.PreviousResponseID = prevID
		if err := json.Unmarshal(outputJSON, &resp.Output); err != nil {
			return nil, fmt.Errorf("unmarshaling output: %w", err)
		}
		resp.Usage = &api.Usage{
			InputTokens:  usageIn,
			OutputTokens: usageOut,
			TotalTokens:  usageTotal,
		}

		matches = append(matches, &resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating responses: %w", err)
	}

	hasMore := len(matches) > limit
	if hasMore {
		matches = matches[:limit]
	}

	result := &storage.ResponseList{
		Object:  "list",
		Data:    matches,
		HasMore: hasMore,
	}
	if len(matches) > 0 {
		result.FirstID = matches[0].ID
		result.LastID = matches[len(matches)-1].ID
	}
	if result.Data == nil {
		result.Data = []*api.Response{}
	}

	return result, nil
}

// GetInputItems returns a paginated list of input items for a stored
// response. Items are stored as a single JSONB array, so pagination is
// applied after loading.
func (s *Store) GetInputItems(ctx context.Context, responseID string, opts storage.ListOptions) (*storage.ItemList, error) {
	_, items, err := s.getResponse(ctx, responseID, true)
	if err != nil {
		return nil, err
	}

	// Apply cursor-based pagination using item IDs.
	if opts.After != "" {
		idx := -1
		for i, item := range items {
			if item.ID == opts.After {
				idx = i
				break
			}
		}
		if idx >= 0 {
			items = items[idx+1:]
		} else {
			items = nil
		}
	} else if opts.Before != "" {
		idx := -1
		for i, item := range items {
			if item.ID == opts.Before {
				idx = i
				break
			}
		}
		if idx > 0 {
			items = items[:idx]
		} else {
			items = nil
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	result := &storage.ItemList{
		Object:  "list",
		Data:    items,
		HasMore: hasMore,
	}
	if len(items) > 0 {
		result.FirstID = items[0].ID
		result.LastID = items[len(items)-1].ID
	}
	if result.Data == nil {
		result.Data = []api.Item{}
	}

	return result, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// nullJSON converts nil/empty byte slices to nil for nullable JSONB columns.
func nullJSON(b []byte) *[]byte {
	if len(b) == 0 {
		return nil
	}
	return &b
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}

// internal/storage/endpoint_repo.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/Annany2002/nebula-apibuilder/internal/core"
	"github.com/Annany2002/nebula-apibuilder/internal/domain"
)

// Specific errors for endpoint registry operations
var (
	ErrEndpointNotFound = fmt.Errorf("%w: endpoint not found", core.ErrNotFound)
	ErrEndpointExists   = errors.New("an endpoint with this path and method already exists")
)

// EndpointRepository is the endpoint registry backed by the metadata database.
type EndpointRepository struct {
	db *sql.DB
}

// NewEndpointRepository creates a registry backed by the metadata database.
func NewEndpointRepository(db *sql.DB) *EndpointRepository {
	return &EndpointRepository{db: db}
}

const endpointColumns = `id, path, method, sql_query, token_protected, hits, database_id, created_at`

// Create validates and stores a new endpoint with zero hits.
// The referenced database is not checked; dispatch reports a dangling reference.
func (r *EndpointRepository) Create(ctx context.Context, req domain.NewEndpoint) (*domain.Endpoint, error) {
	method, err := core.ValidateEndpoint(req)
	if err != nil {
		return nil, err
	}

	var databaseID sql.NullInt64
	if req.DatabaseID != nil {
		databaseID = sql.NullInt64{Int64: *req.DatabaseID, Valid: true}
	}

	sqlStatement := `INSERT INTO api_endpoints (path, method, sql_query, token_protected, hits, database_id) VALUES (?, ?, ?, ?, 0, ?)`
	result, err := r.db.ExecContext(ctx, sqlStatement, req.Path, string(method), req.SQLQuery, req.TokenProtected, databaseID)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("%w: %s %s", ErrEndpointExists, method, req.Path)
		}
		customLog.Warnf("Storage: Failed to insert endpoint %s %s: %v", method, req.Path, err)
		return nil, fmt.Errorf("database error during endpoint creation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		customLog.Warnf("Storage: Failed to get last insert ID for endpoint %s %s: %v", method, req.Path, err)
		return nil, fmt.Errorf("failed to retrieve endpoint ID after creation: %w", err)
	}
	return r.FindByID(ctx, id)
}

// FindByID retrieves an endpoint by id.
func (r *EndpointRepository) FindByID(ctx context.Context, id int64) (*domain.Endpoint, error) {
	sqlStatement := `SELECT ` + endpointColumns + ` FROM api_endpoints WHERE id = ? LIMIT 1`
	return r.findOne(ctx, sqlStatement, fmt.Sprintf("id %d", id), id)
}

// FindByPath retrieves the first endpoint registered at path, whatever its method.
func (r *EndpointRepository) FindByPath(ctx context.Context, path string) (*domain.Endpoint, error) {
	sqlStatement := `SELECT ` + endpointColumns + ` FROM api_endpoints WHERE path = ? ORDER BY id LIMIT 1`
	return r.findOne(ctx, sqlStatement, fmt.Sprintf("path '%s'", path), path)
}

// FindByRoute retrieves the endpoint registered for an exact path and method.
func (r *EndpointRepository) FindByRoute(ctx context.Context, path string, method domain.Method) (*domain.Endpoint, error) {
	sqlStatement := `SELECT ` + endpointColumns + ` FROM api_endpoints WHERE path = ? AND method = ? LIMIT 1`
	return r.findOne(ctx, sqlStatement, fmt.Sprintf("%s %s", method, path), path, string(method))
}

func (r *EndpointRepository) findOne(ctx context.Context, sqlStatement, describe string, args ...any) (*domain.Endpoint, error) {
	endpoint, err := scanEndpoint(r.db.QueryRowContext(ctx, sqlStatement, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrEndpointNotFound, describe)
		}
		customLog.Warnf("Storage: Failed to find endpoint by %s: %v", describe, err)
		return nil, fmt.Errorf("database error finding endpoint: %w", err)
	}
	return endpoint, nil
}

// List returns every endpoint in insertion order, with the database reduced to its id.
func (r *EndpointRepository) List(ctx context.Context) ([]domain.EndpointSummary, error) {
	query := `SELECT ` + endpointColumns + ` FROM api_endpoints ORDER BY id;`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		customLog.Warnf("Storage: Error listing endpoints: %v", err)
		return nil, fmt.Errorf("database error listing endpoints: %w", err)
	}
	defer rows.Close()

	summaries := make([]domain.EndpointSummary, 0)
	for rows.Next() {
		endpoint, err := scanEndpoint(rows)
		if err != nil {
			customLog.Warnf("Storage: Error scanning endpoint row: %v", err)
			return nil, fmt.Errorf("failed processing endpoint list: %w", err)
		}
		summaries = append(summaries, domain.EndpointSummary{
			ID:             endpoint.ID,
			Path:           endpoint.Path,
			Method:         endpoint.Method,
			SQLQuery:       endpoint.SQLQuery,
			TokenProtected: endpoint.TokenProtected,
			Hits:           endpoint.Hits,
			DatabaseID:     endpoint.DatabaseID,
		})
	}
	if err = rows.Err(); err != nil {
		customLog.Warnf("Storage: Error iterating endpoint list: %v", err)
		return nil, fmt.Errorf("failed reading endpoint list: %w", err)
	}
	return summaries, nil
}

// IncrementHits adds one to the endpoint's hit counter in a single UPDATE statement,
// so concurrent increments never lose an update.
func (r *EndpointRepository) IncrementHits(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE api_endpoints SET hits = hits + 1 WHERE id = ?`, id)
	if err != nil {
		customLog.Warnf("Storage: Failed to increment hits for endpoint %d: %v", id, err)
		return fmt.Errorf("database error incrementing hits: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to confirm hit increment: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrEndpointNotFound, id)
	}
	return nil
}

func scanEndpoint(row rowScanner) (*domain.Endpoint, error) {
	var endpoint domain.Endpoint
	var method string
	var databaseID sql.NullInt64
	var createdAt sql.NullTime
	err := row.Scan(&endpoint.ID, &endpoint.Path, &method, &endpoint.SQLQuery, &endpoint.TokenProtected,
		&endpoint.Hits, &databaseID, &createdAt)
	if err != nil {
		return nil, err
	}
	endpoint.Method = domain.Method(method)
	if databaseID.Valid {
		id := databaseID.Int64
		endpoint.DatabaseID = &id
	}
	endpoint.CreatedAt = createdAt.Time
	return &endpoint, nil
}

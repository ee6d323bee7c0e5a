// internal/storage/metadata_repo.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Annany2002/nebula-apibuilder/internal/core"
	"github.com/Annany2002/nebula-apibuilder/internal/domain"
)

// Specific errors for database directory operations
var (
	ErrDatabaseNotFound = fmt.Errorf("%w: database not found", core.ErrNotFound)
)

// DatabaseRepository is the database directory: CRUD over connection descriptors.
type DatabaseRepository struct {
	db *sql.DB
}

// NewDatabaseRepository creates a directory backed by the metadata database.
func NewDatabaseRepository(db *sql.DB) *DatabaseRepository {
	return &DatabaseRepository{db: db}
}

const databaseColumns = `id, name, type, host, port, username, password, db_name, created_at`

// Create validates and inserts a new connection descriptor.
func (r *DatabaseRepository) Create(ctx context.Context, database domain.Database) (*domain.Database, error) {
	if err := core.ValidateDatabase(database); err != nil {
		return nil, err
	}

	sqlStatement := `INSERT INTO databases (name, type, host, port, username, password, db_name) VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, sqlStatement,
		database.Name, strings.ToLower(database.Type), database.Host, int(database.Port),
		database.Username, database.Password, database.DBName)
	if err != nil {
		customLog.Warnf("Storage: Failed to insert database '%s': %v", database.Name, err)
		return nil, fmt.Errorf("database error registering database: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		customLog.Warnf("Storage: Failed to get last insert ID for database '%s': %v", database.Name, err)
		return nil, fmt.Errorf("failed to retrieve database ID after creation: %w", err)
	}
	return r.FindByID(ctx, id)
}

// FindByID retrieves a connection descriptor by id.
func (r *DatabaseRepository) FindByID(ctx context.Context, id int64) (*domain.Database, error) {
	sqlStatement := `SELECT ` + databaseColumns + ` FROM databases WHERE id = ? LIMIT 1`
	database, err := scanDatabase(r.db.QueryRowContext(ctx, sqlStatement, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrDatabaseNotFound, id)
		}
		customLog.Warnf("Storage: Failed to find database %d: %v", id, err)
		return nil, fmt.Errorf("database error finding database: %w", err)
	}
	return database, nil
}

// List returns every registered database ordered by id.
func (r *DatabaseRepository) List(ctx context.Context) ([]domain.Database, error) {
	query := `SELECT ` + databaseColumns + ` FROM databases ORDER BY id;`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		customLog.Warnf("Storage: Error listing databases: %v", err)
		return nil, fmt.Errorf("database error listing databases: %w", err)
	}
	defer rows.Close()

	databases := make([]domain.Database, 0)
	for rows.Next() {
		database, err := scanDatabase(rows)
		if err != nil {
			customLog.Warnf("Storage: Error scanning database row: %v", err)
			return nil, fmt.Errorf("failed processing database list: %w", err)
		}
		databases = append(databases, *database)
	}
	if err = rows.Err(); err != nil {
		customLog.Warnf("Storage: Error iterating database list: %v", err)
		return nil, fmt.Errorf("failed reading database list: %w", err)
	}
	return databases, nil
}

// Update applies the non-nil fields of update to the database with the given id.
func (r *DatabaseRepository) Update(ctx context.Context, id int64, update domain.DatabaseUpdate) (*domain.Database, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	setClauses := []string{}
	args := []any{}
	apply := func(column string, value any) {
		setClauses = append(setClauses, column+" = ?")
		args = append(args, value)
	}

	if update.Name != nil {
		current.Name = *update.Name
		apply("name", *update.Name)
	}
	if update.Type != nil {
		current.Type = strings.ToLower(*update.Type)
		apply("type", current.Type)
	}
	if update.Host != nil {
		current.Host = *update.Host
		apply("host", *update.Host)
	}
	if update.Port != nil {
		current.Port = *update.Port
		apply("port", int(*update.Port))
	}
	if update.Username != nil {
		current.Username = *update.Username
		apply("username", *update.Username)
	}
	if update.Password != nil {
		current.Password = *update.Password
		apply("password", *update.Password)
	}
	if update.DBName != nil {
		current.DBName = *update.DBName
		apply("db_name", *update.DBName)
	}

	if len(setClauses) == 0 {
		return current, nil // Nothing to update
	}
	if err := core.ValidateDatabase(*current); err != nil {
		return nil, err
	}

	args = append(args, id)
	// nolint:gosec // setClauses only contains hardcoded column names
	sqlStatement := fmt.Sprintf("UPDATE databases SET %s WHERE id = ?", strings.Join(setClauses, ", "))
	result, err := r.db.ExecContext(ctx, sqlStatement, args...)
	if err != nil {
		customLog.Warnf("Storage: Failed to update database %d: %v", id, err)
		return nil, fmt.Errorf("database error during database update: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to confirm database update: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrDatabaseNotFound, id)
	}
	return current, nil
}

// Delete removes a database from the directory. Endpoints still referencing it are left as is.
func (r *DatabaseRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM databases WHERE id = ?`, id)
	if err != nil {
		customLog.Warnf("Storage: Error deleting database %d: %v", id, err)
		return fmt.Errorf("database error deleting database: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		customLog.Warnf("Storage: Error getting RowsAffected for delete of database %d: %v", id, err)
		return fmt.Errorf("failed confirming database deletion: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrDatabaseNotFound, id)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDatabase(row rowScanner) (*domain.Database, error) {
	var database domain.Database
	var createdAt sql.NullTime
	err := row.Scan(&database.ID, &database.Name, &database.Type, &database.Host, &database.Port,
		&database.Username, &database.Password, &database.DBName, &createdAt)
	if err != nil {
		return nil, err
	}
	database.CreatedAt = createdAt.Time
	return &database, nil
}

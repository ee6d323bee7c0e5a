// internal/storage/database.go
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // Driver registration

	"github.com/Annany2002/nebula-apibuilder/config"
	"github.com/Annany2002/nebula-apibuilder/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// ConnectMetadataDB opens the metadata SQLite database holding the endpoint registry and the
// database directory, and ensures the 'databases' and 'api_endpoints' tables exist.
func ConnectMetadataDB(cfg *config.Config) (*sql.DB, error) {
	dbPath := filepath.Join(cfg.MetadataDbDir, cfg.MetadataDbFile)
	customLog.Printf("Storage: Initializing metadata database: %s", dbPath)

	// Ensure the data directory exists
	if err := os.MkdirAll(cfg.MetadataDbDir, 0o750); err != nil {
		customLog.Warnf("Storage: Error creating data directory '%s': %v", cfg.MetadataDbDir, err)
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// WAL mode and a 5s busy timeout so concurrent hit increments wait instead of failing
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		customLog.Warnf("Storage: Failed to open metadata db '%s': %v", dbPath, err)
		return nil, fmt.Errorf("failed to open metadata db: %w", err)
	}

	// SQLite allows one writer; a single connection serializes writes inside the process.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		customLog.Warnf("Storage: Failed to ping metadata db '%s': %v", dbPath, err)
		return nil, fmt.Errorf("failed to connect to metadata db: %w", err)
	}
	customLog.Println("Storage: Metadata database connection successful.")

	// --- Ensure 'databases' table exists ---
	createDatabasesTableSQL := `
	CREATE TABLE IF NOT EXISTS databases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		host TEXT NOT NULL DEFAULT '',
		port INTEGER NOT NULL DEFAULT 0,
		username TEXT NOT NULL DEFAULT '',
		password TEXT NOT NULL DEFAULT '',
		db_name TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err = db.Exec(createDatabasesTableSQL); err != nil {
		db.Close()
		customLog.Warnf("Storage: Failed to create databases table: %v", err)
		return nil, fmt.Errorf("failed to ensure databases table: %w", err)
	}
	customLog.Println("Storage: Databases table ensured.")

	// --- Ensure 'api_endpoints' table exists ---
	// database_id has no foreign key: a dangling reference is reported at dispatch time.
	createEndpointsTableSQL := `
	CREATE TABLE IF NOT EXISTS api_endpoints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		method TEXT NOT NULL,
		sql_query TEXT NOT NULL,
		token_protected BOOLEAN NOT NULL DEFAULT 0,
		hits INTEGER NOT NULL DEFAULT 0 CHECK (hits >= 0),
		database_id INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (path, method)
	);`
	if _, err = db.Exec(createEndpointsTableSQL); err != nil {
		db.Close()
		customLog.Warnf("Storage: Failed to create api_endpoints table: %v", err)
		return nil, fmt.Errorf("failed to ensure api_endpoints table: %w", err)
	}
	customLog.Println("Storage: API endpoints table ensured.")

	return db, nil
}

// internal/executor/executor.go
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // Driver registration ("pgx")
	_ "github.com/mattn/go-sqlite3"    // Driver registration ("sqlite3")

	"github.com/Annany2002/nebula-apibuilder/internal/core"
	"github.com/Annany2002/nebula-apibuilder/internal/domain"
	"github.com/Annany2002/nebula-apibuilder/internal/logger"
	"github.com/Annany2002/nebula-apibuilder/internal/metrics"
)

var (
	customLog = logger.NewLogger()
)

const (
	defaultMySQLPort    = 3306
	defaultPostgresPort = 5432
)

// Executor runs a query against a target database and returns its rows.
type Executor interface {
	Execute(ctx context.Context, database domain.Database, query string) ([]map[string]any, error)
}

// OpenFunc opens a database handle. sql.Open is used unless replaced with WithOpener.
type OpenFunc func(driverName, dataSourceName string) (*sql.DB, error)

// Option configures an SQLExecutor.
type Option func(*SQLExecutor)

// WithOpener replaces the function used to open target connections.
func WithOpener(open OpenFunc) Option {
	return func(e *SQLExecutor) {
		e.open = open
	}
}

// SQLExecutor opens one connection per call, runs the query text verbatim and closes the connection
// before returning, whatever the outcome.
type SQLExecutor struct {
	open OpenFunc
}

// New creates an SQLExecutor.
func New(opts ...Option) *SQLExecutor {
	e := &SQLExecutor{open: sql.Open}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs query against database. Every failure is returned as a *core.ExecutionError.
func (e *SQLExecutor) Execute(ctx context.Context, database domain.Database, query string) (records []map[string]any, err error) {
	engine, ok := core.NormalizeEngine(database.Type)
	if !ok {
		return nil, core.NewExecutionError(database.Type, "open", fmt.Errorf("unsupported database type '%s'", database.Type))
	}

	started := time.Now()
	defer func() { metrics.ObserveQuery(engine, started, err) }()

	driverName, dsn := dataSource(engine, database)
	db, err := e.open(driverName, dsn)
	if err != nil {
		customLog.Warnf("Executor: Failed to open %s connection for database %d: %v", engine, database.ID, err)
		return nil, core.NewExecutionError(engine, "open", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			customLog.Warnf("Executor: Failed to close %s connection for database %d: %v", engine, database.ID, closeErr)
		}
	}()
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		customLog.Warnf("Executor: Failed to reach %s database %d: %v", engine, database.ID, err)
		return nil, core.NewExecutionError(engine, "ping", err)
	}

	customLog.Debugf("Executor: Running query on %s database %d at '%s': %s", engine, database.ID, database.Host, query)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		customLog.Warnf("Executor: Query failed on %s database %d: %v", engine, database.ID, err)
		return nil, core.NewExecutionError(engine, "query", err)
	}
	defer rows.Close()

	records, err = collectRows(rows)
	if err != nil {
		customLog.Warnf("Executor: Failed reading rows from %s database %d: %v", engine, database.ID, err)
		return nil, core.NewExecutionError(engine, "scan", err)
	}
	return records, nil
}

// collectRows scans every row into a column-name keyed map. Byte slices become strings.
func collectRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed processing results: %w", err)
	}
	numColumns := len(columns)
	results := make([]map[string]any, 0)

	for rows.Next() {
		scanArgs := make([]any, numColumns)
		values := make([]any, numColumns)
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed reading record data: %w", err)
		}

		rowData := make(map[string]any, numColumns)
		for i, colName := range columns {
			if byteSlice, ok := values[i].([]byte); ok {
				rowData[colName] = string(byteSlice)
			} else {
				rowData[colName] = values[i]
			}
		}
		results = append(results, rowData)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed processing all records: %w", err)
	}
	return results, nil
}

// dataSource returns the registered driver name and DSN for a normalized engine.
func dataSource(engine string, database domain.Database) (string, string) {
	switch engine {
	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = database.Username
		cfg.Passwd = database.Password
		cfg.Net = "tcp"
		cfg.Addr = hostPort(database, defaultMySQLPort)
		cfg.DBName = database.DBName
		cfg.ParseTime = true
		return "mysql", cfg.FormatDSN()
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			Host:   hostPort(database, defaultPostgresPort),
			Path:   "/" + database.DBName,
		}
		if database.Username != "" {
			u.User = url.UserPassword(database.Username, database.Password)
		}
		return "pgx", u.String()
	default:
		// sqlite: dbName is the database file path
		return "sqlite3", database.DBName
	}
}

func hostPort(database domain.Database, defaultPort int) string {
	port := int(database.Port)
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(database.Host, strconv.Itoa(port))
}

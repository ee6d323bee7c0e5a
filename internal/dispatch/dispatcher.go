// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Annany2002/nebula-apibuilder/internal/core"
	"github.com/Annany2002/nebula-apibuilder/internal/domain"
	"github.com/Annany2002/nebula-apibuilder/internal/executor"
	"github.com/Annany2002/nebula-apibuilder/internal/logger"
	"github.com/Annany2002/nebula-apibuilder/internal/metrics"
)

var (
	customLog = logger.NewLogger()
)

// EndpointFinder resolves registered endpoints by path, with or without the method.
type EndpointFinder interface {
	FindByRoute(ctx context.Context, path string, method domain.Method) (*domain.Endpoint, error)
	FindByPath(ctx context.Context, path string) (*domain.Endpoint, error)
}

// DatabaseFinder resolves a connection descriptor by id.
type DatabaseFinder interface {
	FindByID(ctx context.Context, id int64) (*domain.Database, error)
}

// HitRecorder counts one hit per logical request.
type HitRecorder interface {
	Record(ctx context.Context, endpointID int64, requestID string) (bool, error)
}

// Request is one incoming call on a dynamic route. Path excludes the /api prefix.
type Request struct {
	Path      string
	Method    domain.Method
	RequestID string
}

// Result carries the rows of a dispatched query and the endpoint that produced them.
type Result struct {
	Endpoint *domain.Endpoint
	Rows     []map[string]any
	Duration time.Duration
}

// Dispatcher resolves dynamic routes to stored queries and runs them.
type Dispatcher struct {
	endpoints EndpointFinder
	databases DatabaseFinder
	exec      executor.Executor
	hits      HitRecorder
}

// New creates a Dispatcher from its collaborators.
func New(endpoints EndpointFinder, databases DatabaseFinder, exec executor.Executor, hits HitRecorder) *Dispatcher {
	return &Dispatcher{
		endpoints: endpoints,
		databases: databases,
		exec:      exec,
		hits:      hits,
	}
}

// Dispatch finds the endpoint for req, counts the hit and executes its query on its database.
// Errors match core.ErrNotFound for an unknown route, core.ErrConfiguration for a missing or
// dangling database reference and core.ErrExecution for a failing query.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (result *Result, err error) {
	defer func() { metrics.ObserveDispatch(string(req.Method), outcome(err)) }()

	endpoint, err := d.findEndpoint(ctx, req)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			customLog.Printf("Dispatch: No endpoint for %s %s", req.Method, req.Path)
		}
		return nil, err
	}

	database, err := d.resolveDatabase(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	// A lost hit is logged and counted in metrics; the query still runs.
	if _, hitErr := d.hits.Record(ctx, endpoint.ID, req.RequestID); hitErr != nil {
		customLog.Errorf("Dispatch: Failed to record hit for endpoint %d: %v", endpoint.ID, hitErr)
	}

	started := time.Now()
	rows, err := d.exec.Execute(ctx, *database, endpoint.SQLQuery)
	if err != nil {
		customLog.Warnf("Dispatch: Endpoint %d (%s %s) failed on database %d: %v", endpoint.ID, req.Method, req.Path, database.ID, err)
		return nil, err
	}

	return &Result{Endpoint: endpoint, Rows: rows, Duration: time.Since(started)}, nil
}

// findEndpoint prefers the exact (path, method) route. A GET on a path registered
// only for another method resolves by path alone.
func (d *Dispatcher) findEndpoint(ctx context.Context, req Request) (*domain.Endpoint, error) {
	endpoint, err := d.endpoints.FindByRoute(ctx, req.Path, req.Method)
	if err == nil || req.Method != domain.MethodGet || !errors.Is(err, core.ErrNotFound) {
		return endpoint, err
	}
	return d.endpoints.FindByPath(ctx, req.Path)
}

func (d *Dispatcher) resolveDatabase(ctx context.Context, endpoint *domain.Endpoint) (*domain.Database, error) {
	if endpoint.DatabaseID == nil {
		customLog.Warnf("Dispatch: Endpoint %d (%s) has no database assigned", endpoint.ID, endpoint.Path)
		return nil, fmt.Errorf("%w: endpoint '%s' has no database assigned", core.ErrConfiguration, endpoint.Path)
	}

	database, err := d.databases.FindByID(ctx, *endpoint.DatabaseID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			customLog.Warnf("Dispatch: Endpoint %d references missing database %d", endpoint.ID, *endpoint.DatabaseID)
			return nil, fmt.Errorf("%w: database %d for endpoint '%s' does not exist", core.ErrConfiguration, *endpoint.DatabaseID, endpoint.Path)
		}
		return nil, err
	}
	return database, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, core.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, core.ErrConfiguration):
		return metrics.OutcomeConfiguration
	case errors.Is(err, core.ErrExecution):
		return metrics.OutcomeExecution
	default:
		return metrics.OutcomeError
	}
}

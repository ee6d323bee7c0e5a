package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annany2002/nebula-apibuilder/internal/core"
	"github.com/Annany2002/nebula-apibuilder/internal/domain"
	"github.com/Annany2002/nebula-apibuilder/internal/hits"
)

type fakeRegistry struct {
	mu        sync.Mutex
	endpoints []*domain.Endpoint
}

func (f *fakeRegistry) FindByRoute(_ context.Context, path string, method domain.Method) (*domain.Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.endpoints {
		if e.Path == path && e.Method == method {
			copied := *e
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: endpoint not found", core.ErrNotFound)
}

func (f *fakeRegistry) FindByPath(_ context.Context, path string) (*domain.Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.endpoints {
		if e.Path == path {
			copied := *e
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: endpoint not found", core.ErrNotFound)
}

func (f *fakeRegistry) IncrementHits(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.endpoints {
		if e.ID == id {
			e.Hits++
			return nil
		}
	}
	return fmt.Errorf("%w: endpoint not found", core.ErrNotFound)
}

func (f *fakeRegistry) hits(id int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.endpoints {
		if e.ID == id {
			return e.Hits
		}
	}
	return -1
}

type fakeDirectory map[int64]domain.Database

func (f fakeDirectory) FindByID(_ context.Context, id int64) (*domain.Database, error) {
	db, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("%w: database not found", core.ErrNotFound)
	}
	return &db, nil
}

type fakeExecutor struct {
	mu      sync.Mutex
	calls   []string
	rows    []map[string]any
	failure error
}

func (f *fakeExecutor) Execute(_ context.Context, database domain.Database, query string) ([]map[string]any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("%d:%s", database.ID, query))
	f.mu.Unlock()
	if f.failure != nil {
		return nil, f.failure
	}
	return f.rows, nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func int64Ptr(v int64) *int64 { return &v }

func newTestRegistry() *fakeRegistry {
	return &fakeRegistry{endpoints: []*domain.Endpoint{
		{ID: 1, Path: "/orders", Method: domain.MethodGet, SQLQuery: "SELECT 1", DatabaseID: int64Ptr(1)},
		{ID: 2, Path: "/orders", Method: domain.MethodPost, SQLQuery: "SELECT 2", DatabaseID: int64Ptr(1)},
		{ID: 3, Path: "/orphan", Method: domain.MethodGet, SQLQuery: "SELECT 3", DatabaseID: int64Ptr(999)},
		{ID: 4, Path: "/unassigned", Method: domain.MethodGet, SQLQuery: "SELECT 4"},
		{ID: 5, Path: "/report", Method: domain.MethodPost, SQLQuery: "SELECT 5", DatabaseID: int64Ptr(1)},
	}}
}

var testDirectory = fakeDirectory{1: {ID: 1, Name: "shop", Type: "mysql", Host: "db", DBName: "shop"}}

func newTestDispatcher(exec *fakeExecutor) (*Dispatcher, *fakeRegistry) {
	registry := newTestRegistry()
	recorder := hits.NewRecorder(registry, hits.NewMemoryDeduper(time.Minute))
	return New(registry, testDirectory, exec, recorder), registry
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, int64, string) (bool, error) {
	return false, errors.New("database is locked")
}

func TestDispatchRunsStoredQuery(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{{"1": int64(1)}}}
	dispatcher, registry := newTestDispatcher(exec)

	result, err := dispatcher.Dispatch(context.Background(), Request{Path: "/orders", Method: domain.MethodGet, RequestID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"1": int64(1)}}, result.Rows)
	assert.Equal(t, int64(1), result.Endpoint.ID)
	assert.Equal(t, []string{"1:SELECT 1"}, exec.calls)
	assert.Equal(t, int64(1), registry.hits(1))
}

func TestDispatchRoutesByMethod(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{}}
	dispatcher, registry := newTestDispatcher(exec)

	_, err := dispatcher.Dispatch(context.Background(), Request{Path: "/orders", Method: domain.MethodPost})
	require.NoError(t, err)
	assert.Equal(t, []string{"1:SELECT 2"}, exec.calls)
	assert.Equal(t, int64(0), registry.hits(1))
	assert.Equal(t, int64(1), registry.hits(2))
}

func TestDispatchGetFallsBackToPath(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{}}
	dispatcher, registry := newTestDispatcher(exec)

	result, err := dispatcher.Dispatch(context.Background(), Request{Path: "/report", Method: domain.MethodGet, RequestID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Endpoint.ID)
	assert.Equal(t, []string{"1:SELECT 5"}, exec.calls)
	assert.Equal(t, int64(1), registry.hits(5))
}

func TestDispatchPostRequiresExactRoute(t *testing.T) {
	exec := &fakeExecutor{}
	dispatcher, registry := newTestDispatcher(exec)

	_, err := dispatcher.Dispatch(context.Background(), Request{Path: "/unassigned", Method: domain.MethodPost})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Zero(t, exec.callCount())
	assert.Equal(t, int64(0), registry.hits(4))
}

func TestDispatchUnknownPath(t *testing.T) {
	exec := &fakeExecutor{}
	dispatcher, registry := newTestDispatcher(exec)

	_, err := dispatcher.Dispatch(context.Background(), Request{Path: "/nope", Method: domain.MethodGet, RequestID: "r1"})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Zero(t, exec.callCount())
	for id := int64(1); id <= 5; id++ {
		assert.Equal(t, int64(0), registry.hits(id))
	}
}

func TestDispatchConfigurationErrors(t *testing.T) {
	testCases := []struct {
		name string
		path string
		id   int64
	}{
		{"dangling database reference", "/orphan", 3},
		{"no database assigned", "/unassigned", 4},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			exec := &fakeExecutor{}
			dispatcher, registry := newTestDispatcher(exec)

			_, err := dispatcher.Dispatch(context.Background(), Request{Path: tc.path, Method: domain.MethodGet})
			assert.ErrorIs(t, err, core.ErrConfiguration)
			assert.NotErrorIs(t, err, core.ErrNotFound)
			assert.NotErrorIs(t, err, core.ErrExecution)
			assert.Zero(t, exec.callCount())
			assert.Equal(t, int64(0), registry.hits(tc.id))
		})
	}
}

func TestDispatchExecutionFailureStillCountsHit(t *testing.T) {
	driverErr := core.NewExecutionError("mysql", "query", errors.New("Table 'shop.orders' doesn't exist"))
	exec := &fakeExecutor{failure: driverErr}
	dispatcher, registry := newTestDispatcher(exec)

	_, err := dispatcher.Dispatch(context.Background(), Request{Path: "/orders", Method: domain.MethodGet})
	assert.ErrorIs(t, err, core.ErrExecution)
	assert.Contains(t, err.Error(), "doesn't exist")
	assert.Equal(t, int64(1), registry.hits(1))
}

func TestDispatchSameRequestIDCountsOnce(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{}}
	dispatcher, registry := newTestDispatcher(exec)

	for i := 0; i < 3; i++ {
		_, err := dispatcher.Dispatch(context.Background(), Request{Path: "/orders", Method: domain.MethodGet, RequestID: "retry"})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, exec.callCount())
	assert.Equal(t, int64(1), registry.hits(1))
}

func TestDispatchConcurrentRequestsCountEveryHit(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{}}
	dispatcher, registry := newTestDispatcher(exec)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := dispatcher.Dispatch(context.Background(), Request{
				Path:      "/orders",
				Method:    domain.MethodGet,
				RequestID: fmt.Sprintf("req-%d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(n), registry.hits(1))
	assert.Equal(t, n, exec.callCount())
}

func TestDispatchRunsQueryWhenHitRecordingFails(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{{"1": int64(1)}}}
	dispatcher := New(newTestRegistry(), testDirectory, exec, failingRecorder{})

	result, err := dispatcher.Dispatch(context.Background(), Request{Path: "/orders", Method: domain.MethodGet, RequestID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"1": int64(1)}}, result.Rows)
	assert.Equal(t, 1, exec.callCount())
}

func TestDispatchSurvivesRedisOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	exec := &fakeExecutor{rows: []map[string]any{}}
	registry := newTestRegistry()
	recorder := hits.NewRecorder(registry, hits.NewRedisDeduper(client, time.Minute))
	dispatcher := New(registry, testDirectory, exec, recorder)

	_, err := dispatcher.Dispatch(context.Background(), Request{Path: "/orders", Method: domain.MethodGet, RequestID: "before"})
	require.NoError(t, err)

	mr.Close()

	_, err = dispatcher.Dispatch(context.Background(), Request{Path: "/orders", Method: domain.MethodGet, RequestID: "after"})
	require.NoError(t, err)
	assert.Equal(t, 2, exec.callCount())
	assert.Equal(t, int64(2), registry.hits(1), "hits are still counted without the dedup store")
}

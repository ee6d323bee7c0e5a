package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveDispatch("GET", OutcomeOK)
	ObserveDispatch("GET", OutcomeNotFound)
	ObserveQuery("sqlite", time.Now(), nil)
	ObserveQuery("mysql", time.Now(), errors.New("boom"))
	ObserveHit(HitCounted)
	ObserveHit(HitDuplicate)
	ObserveHit(HitFailed)

	server := httptest.NewServer(Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, `nebula_dispatch_total{method="GET",outcome="ok"}`)
	assert.Contains(t, text, `nebula_dispatch_total{method="GET",outcome="not_found"}`)
	assert.Contains(t, text, `nebula_query_duration_seconds_count{engine="sqlite",status="success"}`)
	assert.Contains(t, text, `nebula_query_duration_seconds_count{engine="mysql",status="error"}`)
	assert.Contains(t, text, `nebula_hits_total{result="counted"}`)
	assert.Contains(t, text, `nebula_hits_total{result="duplicate"}`)
	assert.Contains(t, text, `nebula_hits_total{result="failed"}`)
}

package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.PageRecorded(OutcomeOK)
	m.PageRecorded(OutcomeOK)
	m.PageRecorded(OutcomeFetchError)
	m.FetchRetried()
	m.FetchFailed("timeout")
	m.ObserveFetch(150 * time.Millisecond)
	m.LookupDone(true)
	m.LookupDone(false)
	m.LookupDone(false)
	m.RecordsWritten(5)
	m.RecordsWritten(0)

	assert.InDelta(t, 2, testutil.ToFloat64(m.pagesTotal.WithLabelValues(OutcomeOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.pagesTotal.WithLabelValues(OutcomeFetchError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.fetchRetries), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.fetchErrors.WithLabelValues("timeout")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.subdomainLookups.WithLabelValues("true")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.subdomainLookups.WithLabelValues("false")), 0)
	assert.InDelta(t, 5, testutil.ToFloat64(m.recordsWritten), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.PageRecorded(OutcomeOK)
		m.FetchRetried()
		m.FetchFailed("other")
		m.ObserveFetch(time.Second)
		m.LookupDone(true)
		m.RecordsWritten(3)
		m.WorkerStarted()
		m.WorkerFinished()
	})
	assert.Nil(t, m.Registry())
}

func TestServer(t *testing.T) {
	t.Parallel()

	m := New()
	m.PageRecorded(OutcomeOK)

	srv, err := Start("127.0.0.1:0", m, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx) //nolint:errcheck
	})

	resp, err := http.Get("http://" + srv.Addr() + "/metrics") //nolint:noctx
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `harvest_pages_total{outcome="ok"} 1`))
}

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ynot/internal/domain"
)

func TestCollectorsAreIndependent(t *testing.T) {
	t.Parallel()

	a := NewCollector("ynot")
	b := NewCollector("ynot")
	a.ObserveQueueDrop()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.queueDrops))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.queueDrops))
}

func TestObserveDispatch(t *testing.T) {
	t.Parallel()

	c := NewCollector("ynot")
	c.ObserveDispatch("weather", domain.OutcomeOK, 0.2)
	c.ObserveDispatch("weather", domain.OutcomeDegraded, 10)
	c.ObserveDispatch("weather", domain.OutcomeOK, 0.1)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.dispatchTotal.WithLabelValues("weather", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dispatchTotal.WithLabelValues("weather", "degraded")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.dispatchDuration))
}

func TestObserveRecognitionAndProvider(t *testing.T) {
	t.Parallel()

	c := NewCollector("ynot")
	c.ObserveRecognition(domain.RecognitionListening)
	c.ObserveRecognition(domain.RecognitionIdle)
	c.ObserveRecognition(domain.RecognitionListening)
	c.ObserveProvider("news", true)
	c.ObserveProvider("news", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.recognitionTransitions.WithLabelValues("listening")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.providerRequests.WithLabelValues("news", "error")))
}

func TestRecordHTTPRequestGroupsStatus(t *testing.T) {
	t.Parallel()

	c := NewCollector("ynot")
	c.RecordHTTPRequest(http.MethodPost, "/dispatch", 200, 5*time.Millisecond)
	c.RecordHTTPRequest(http.MethodPost, "/dispatch", 204, 5*time.Millisecond)
	c.RecordHTTPRequest(http.MethodPost, "/dispatch", 42, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("POST", "/dispatch", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("POST", "/dispatch", "unknown")))
}

func TestHandlerServesRegistry(t *testing.T) {
	t.Parallel()

	c := NewCollector("ynot")
	c.ObserveDispatch("joke", domain.OutcomeOK, 0.01)

	server := httptest.NewServer(c.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ynot_dispatch_total{intent="joke",status="ok"} 1`)
}

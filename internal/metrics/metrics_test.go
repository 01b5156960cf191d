package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cape/internal/capeerr"
	"github.com/marmos91/cape/internal/capeproto"
)

func TestNilServerMetricsIsNoop(t *testing.T) {
	var m *ServerMetrics
	assert.NotPanics(t, func() {
		m.ObserveRequest(capeproto.OpLocal, capeerr.Success)
		m.SetActiveSessions(3)
		m.SetQueueDepth(1)
		m.RecordConnectionAccepted()
	})
}

func TestObserveRequestIncrementsOnce(t *testing.T) {
	m := newServerMetrics(prometheus.NewRegistry())
	require.NotNil(t, m)

	m.ObserveRequest(capeproto.OpGetFile, capeerr.Success)
	m.ObserveRequest(capeproto.OpGetFile, capeerr.Success)
	m.ObserveRequest(capeproto.OpGetFile, capeerr.ResolveError)

	ok := testutil.ToFloat64(m.requestsTotal.WithLabelValues("0x05", "1"))
	assert.Equal(t, 2.0, ok)
	failed := testutil.ToFloat64(m.requestsTotal.WithLabelValues("0x05", "9"))
	assert.Equal(t, 1.0, failed)
}

func TestGauges(t *testing.T) {
	m := newServerMetrics(prometheus.NewRegistry())
	require.NotNil(t, m)

	m.SetActiveSessions(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.activeSessions))

	m.SetQueueDepth(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.poolQueueDepth))
}

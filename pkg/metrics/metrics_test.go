package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStorageMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStorageMetrics(reg)

	m.Observe("PutObject", 128, nil, 10*time.Millisecond)
	m.Observe("PutObject", 64, nil, 5*time.Millisecond)
	m.Observe("PutObject", 0, errors.New("boom"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ops.WithLabelValues("PutObject", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ops.WithLabelValues("PutObject", "error")))
	assert.Equal(t, 192.0, testutil.ToFloat64(m.bytes.WithLabelValues("PutObject")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.latency))
}

func TestStorageMetrics_ObserveAbort(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStorageMetrics(reg)

	m.ObserveAbort(nil)
	m.ObserveAbort(errors.New("abort failed"))
	m.ObserveAbort(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.aborts.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.aborts.WithLabelValues("error")))
}

func TestNewStorageMetrics_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewStorageMetrics(reg)
	b := NewStorageMetrics(reg)

	a.Observe("HeadObject", 0, nil, time.Millisecond)
	b.Observe("HeadObject", 0, nil, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(a.ops.WithLabelValues("HeadObject", "ok")))
}

func TestNop(t *testing.T) {
	var o Observer = Nop{}
	assert.NotPanics(t, func() {
		o.Observe("GetObject", 1, nil, time.Second)
		o.ObserveAbort(errors.New("x"))
	})
}

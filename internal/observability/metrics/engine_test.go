package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineMetrics_RegistersCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewEngineMetrics(registry)
	require.NoError(t, err)
	require.NotNil(t, m)

	// Registering twice must fail on the duplicate collectors.
	_, err = NewEngineMetrics(registry)
	assert.Error(t, err)
}

func TestRecordChunk(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewEngineMetrics(registry)
	require.NoError(t, err)

	m.RecordChunk(2 * time.Millisecond)
	m.RecordChunk(3 * time.Millisecond)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.chunksProcessedTotal), 1e-9)
}

func TestRecordWrite(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewEngineMetrics(registry)
	require.NoError(t, err)

	m.RecordWrite(0, 1024)
	assert.InDelta(t, 0.0, testutil.ToFloat64(m.clippedSamplesTotal), 1e-9)
	assert.InDelta(t, 1024.0, testutil.ToFloat64(m.bufferLevelFrames), 1e-9)

	m.RecordWrite(7, 512)
	assert.InDelta(t, 7.0, testutil.ToFloat64(m.clippedSamplesTotal), 1e-9)
	assert.InDelta(t, 512.0, testutil.ToFloat64(m.bufferLevelFrames), 1e-9)
}

func TestRecordCaptureRate(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewEngineMetrics(registry)
	require.NoError(t, err)

	m.RecordCaptureRate(47997, 1.0003)
	assert.InDelta(t, 47997.0, testutil.ToFloat64(m.capturedRateHz), 1e-9)
	assert.InDelta(t, 1.0003, testutil.ToFloat64(m.rateAdjustFactor), 1e-9)
}

func TestRecordRestart(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewEngineMetrics(registry)
	require.NoError(t, err)

	m.RecordRestart("CaptureError")
	m.RecordRestart("CaptureError")
	m.RecordRestart("Done")

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.restartsTotal.WithLabelValues("CaptureError")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.restartsTotal.WithLabelValues("Done")), 1e-9)
}

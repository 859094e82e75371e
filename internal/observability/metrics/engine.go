// Package metrics provides prometheus metric collectors for the engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics contains prometheus metrics for the realtime pipeline.
type EngineMetrics struct {
	chunksProcessedTotal prometheus.Counter
	processingSeconds    prometheus.Histogram
	clippedSamplesTotal  prometheus.Counter
	bufferLevelFrames    prometheus.Gauge
	capturedRateHz       prometheus.Gauge
	rateAdjustFactor     prometheus.Gauge
	restartsTotal        *prometheus.CounterVec
}

// NewEngineMetrics creates and registers the engine metrics.
func NewEngineMetrics(registry *prometheus.Registry) (*EngineMetrics, error) {
	m := &EngineMetrics{
		chunksProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auradsp_chunks_processed_total",
			Help: "Total number of audio chunks run through the pipeline",
		}),
		processingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "auradsp_chunk_processing_seconds",
			Help:    "Time spent processing one chunk through the pipeline",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		clippedSamplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auradsp_clipped_samples_total",
			Help: "Samples saturated during playback format conversion",
		}),
		bufferLevelFrames: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auradsp_playback_buffer_level_frames",
			Help: "Playback device buffer fill level in frames",
		}),
		capturedRateHz: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auradsp_capture_rate_hz",
			Help: "Measured capture sample rate",
		}),
		rateAdjustFactor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auradsp_rate_adjust_factor",
			Help: "Current capture rate adjustment factor",
		}),
		restartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auradsp_restarts_total",
			Help: "Engine restarts by stop reason",
		}, []string{"reason"}),
	}

	collectors := []prometheus.Collector{
		m.chunksProcessedTotal,
		m.processingSeconds,
		m.clippedSamplesTotal,
		m.bufferLevelFrames,
		m.capturedRateHz,
		m.rateAdjustFactor,
		m.restartsTotal,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordChunk counts one processed chunk and its processing time.
func (m *EngineMetrics) RecordChunk(duration time.Duration) {
	m.chunksProcessedTotal.Inc()
	m.processingSeconds.Observe(duration.Seconds())
}

// RecordWrite tracks one playback write.
func (m *EngineMetrics) RecordWrite(clipped, bufferLevel int) {
	if clipped > 0 {
		m.clippedSamplesTotal.Add(float64(clipped))
	}
	m.bufferLevelFrames.Set(float64(bufferLevel))
}

// RecordCaptureRate tracks the measured capture rate and adjust factor.
func (m *EngineMetrics) RecordCaptureRate(rateHz int, adjust float64) {
	m.capturedRateHz.Set(float64(rateHz))
	m.rateAdjustFactor.Set(adjust)
}

// RecordRestart counts an engine restart by stop reason.
func (m *EngineMetrics) RecordRestart(reason string) {
	m.restartsTotal.WithLabelValues(reason).Inc()
}

// Package dsp implements the per-channel waveform filters: the polymorphic
// Filter contract and the Biquad, Gain, Volume, Loudness, Delay, Dither and
// FIR kinds the pipeline can instantiate from the filter catalog.
package dsp

import (
	"math"

	"github.com/jtoivane/auradsp/internal/audio"
	"github.com/jtoivane/auradsp/internal/config"
	"github.com/jtoivane/auradsp/internal/errors"
	"github.com/jtoivane/auradsp/internal/status"
)

// Filter transforms one channel's waveform in place. Implementations are
// single threaded; the pipeline calls them sequentially, and dispatch
// happens once per chunk per step, never per sample.
type Filter interface {
	Name() string
	ProcessWaveform(waveform []audio.Sample) error
	UpdateParameters(cfg config.Filter) error
}

// New builds a filter instance from its catalog entry.
func New(name string, cfg config.Filter, sampleRate, chunkSize int, params *status.ProcessingParams) (Filter, error) {
	switch cfg.Type {
	case "Biquad":
		return NewBiquadFromConfig(name, cfg.Parameters, sampleRate)
	case "Gain":
		return NewGain(name, cfg.Parameters), nil
	case "Volume":
		return NewVolume(name, cfg.Parameters, sampleRate, chunkSize, params), nil
	case "Loudness":
		return NewLoudness(name, cfg.Parameters, sampleRate, chunkSize, params), nil
	case "Delay":
		return NewDelay(name, cfg.Parameters, sampleRate)
	case "Dither":
		return NewDither(name, cfg.Parameters), nil
	case "FIR":
		return NewFIR(name, cfg.Parameters)
	default:
		return nil, errors.Newf("unknown filter type %q for filter %q", cfg.Type, name).
			Component("dsp").
			Category(errors.CategoryValidation).
			Build()
	}
}

// dbToLinear converts a gain in dB to a linear amplitude factor.
func dbToLinear(db float64) float64 {
	return math.Pow(10.0, db/20.0)
}

// linearToDB converts a linear amplitude factor to dB.
func linearToDB(gain float64) float64 {
	return 20.0 * math.Log10(gain)
}

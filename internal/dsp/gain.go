package dsp

import (
	"github.com/jtoivane/auradsp/internal/audio"
	"github.com/jtoivane/auradsp/internal/config"
)

// Gain applies a fixed gain with optional polarity inversion and mute.
type Gain struct {
	name  string
	scale float64
}

// NewGain builds a gain filter from its catalog entry.
func NewGain(name string, params config.FilterParams) *Gain {
	g := &Gain{name: name}
	g.apply(params)
	return g
}

func (g *Gain) apply(params config.FilterParams) {
	scale := dbToLinear(params.Gain)
	if params.Inverted {
		scale = -scale
	}
	if params.Mute {
		scale = 0.0
	}
	g.scale = scale
}

// Name returns the catalog name of this instance.
func (g *Gain) Name() string { return g.name }

// ProcessWaveform scales the waveform in place.
func (g *Gain) ProcessWaveform(waveform []audio.Sample) error {
	for i := range waveform {
		waveform[i] *= g.scale
	}
	return nil
}

// UpdateParameters replaces the gain settings.
func (g *Gain) UpdateParameters(cfg config.Filter) error {
	g.apply(cfg.Parameters)
	return nil
}

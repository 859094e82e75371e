package dsp

import (
	"math"

	"github.com/jtoivane/auradsp/internal/audio"
	"github.com/jtoivane/auradsp/internal/config"
	"github.com/jtoivane/auradsp/internal/errors"
)

// Delay shifts a channel by a whole number of samples, configured either
// directly or in milliseconds.
type Delay struct {
	name       string
	sampleRate int
	buffer     []audio.Sample
	pos        int
}

func delaySamples(params config.FilterParams, sampleRate int) int {
	if params.Unit == "samples" {
		return int(math.Round(params.Delay))
	}
	return int(math.Round(params.Delay / 1000.0 * float64(sampleRate)))
}

// NewDelay builds a delay line from its catalog entry.
func NewDelay(name string, params config.FilterParams, sampleRate int) (*Delay, error) {
	n := delaySamples(params, sampleRate)
	if n < 0 {
		return nil, errors.Newf("filter %q: negative delay", name).
			Component("dsp").
			Category(errors.CategoryValidation).
			Build()
	}
	return &Delay{
		name:       name,
		sampleRate: sampleRate,
		buffer:     make([]audio.Sample, n),
	}, nil
}

// Name returns the catalog name of this instance.
func (d *Delay) Name() string { return d.name }

// ProcessWaveform rotates samples through the delay line in place.
func (d *Delay) ProcessWaveform(waveform []audio.Sample) error {
	if len(d.buffer) == 0 {
		return nil
	}
	for i, x := range waveform {
		waveform[i] = d.buffer[d.pos]
		d.buffer[d.pos] = x
		d.pos++
		if d.pos == len(d.buffer) {
			d.pos = 0
		}
	}
	return nil
}

// UpdateParameters resizes the delay line. The line restarts empty, which
// is a momentary dropout rather than a click.
func (d *Delay) UpdateParameters(cfg config.Filter) error {
	n := delaySamples(cfg.Parameters, d.sampleRate)
	if n < 0 {
		return errors.Newf("filter %q: negative delay", d.name).
			Component("dsp").
			Category(errors.CategoryValidation).
			Build()
	}
	if n != len(d.buffer) {
		d.buffer = make([]audio.Sample, n)
		d.pos = 0
	}
	return nil
}

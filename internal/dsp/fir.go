package dsp

import (
	"github.com/jtoivane/auradsp/internal/audio"
	"github.com/jtoivane/auradsp/internal/config"
	"github.com/jtoivane/auradsp/internal/errors"
)

// FIR is a direct-form finite impulse response filter with taps taken
// from the configuration. History carries across chunk boundaries.
type FIR struct {
	name    string
	taps    []float64
	history []audio.Sample
}

// NewFIR builds a FIR filter from its catalog entry.
func NewFIR(name string, params config.FilterParams) (*FIR, error) {
	if len(params.Values) == 0 {
		return nil, errors.Newf("filter %q: FIR needs at least one tap", name).
			Component("dsp").
			Category(errors.CategoryValidation).
			Build()
	}
	return &FIR{
		name:    name,
		taps:    append([]float64(nil), params.Values...),
		history: make([]audio.Sample, len(params.Values)-1),
	}, nil
}

// Name returns the catalog name of this instance.
func (f *FIR) Name() string { return f.name }

// ProcessWaveform convolves the waveform with the taps in place.
func (f *FIR) ProcessWaveform(waveform []audio.Sample) error {
	hist := len(f.history)
	// Extended input: history followed by the fresh samples.
	ext := make([]audio.Sample, hist+len(waveform))
	copy(ext, f.history)
	copy(ext[hist:], waveform)

	for i := range waveform {
		var acc audio.Sample
		for t, tap := range f.taps {
			acc += tap * ext[hist+i-t]
		}
		waveform[i] = acc
	}

	if hist > 0 {
		copy(f.history, ext[len(ext)-hist:])
	}
	return nil
}

// UpdateParameters replaces the taps, clearing history when the length
// changes.
func (f *FIR) UpdateParameters(cfg config.Filter) error {
	if len(cfg.Parameters.Values) == 0 {
		return errors.Newf("filter %q: FIR needs at least one tap", f.name).
			Component("dsp").
			Category(errors.CategoryValidation).
			Build()
	}
	newLen := len(cfg.Parameters.Values)
	if newLen != len(f.taps) {
		f.history = make([]audio.Sample, newLen-1)
	}
	f.taps = append(f.taps[:0], cfg.Parameters.Values...)
	return nil
}

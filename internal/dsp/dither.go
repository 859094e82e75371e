package dsp

import (
	"math/rand"

	"github.com/jtoivane/auradsp/internal/audio"
	"github.com/jtoivane/auradsp/internal/config"
)

// Dither adds TPDF noise scaled to one LSB of the target bit depth,
// decorrelating quantization error before the playback conversion.
type Dither struct {
	name string
	lsb  float64
}

// NewDither builds a dither stage from its catalog entry.
func NewDither(name string, params config.FilterParams) *Dither {
	return &Dither{
		name: name,
		lsb:  lsbFor(params.Bits),
	}
}

func lsbFor(bits int) float64 {
	lsb := 1.0
	for i := 1; i < bits; i++ {
		lsb /= 2.0
	}
	return lsb
}

// Name returns the catalog name of this instance.
func (d *Dither) Name() string { return d.name }

// ProcessWaveform adds triangular noise in place.
func (d *Dither) ProcessWaveform(waveform []audio.Sample) error {
	for i := range waveform {
		waveform[i] += (rand.Float64() - rand.Float64()) * d.lsb
	}
	return nil
}

// UpdateParameters replaces the target bit depth.
func (d *Dither) UpdateParameters(cfg config.Filter) error {
	d.lsb = lsbFor(cfg.Parameters.Bits)
	return nil
}

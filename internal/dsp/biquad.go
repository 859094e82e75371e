package dsp

import (
	"math"

	"github.com/jtoivane/auradsp/internal/audio"
	"github.com/jtoivane/auradsp/internal/config"
	"github.com/jtoivane/auradsp/internal/errors"
)

// BiquadCoefficients holds one second-order section normalized so a0 == 1.
type BiquadCoefficients struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// NewBiquadCoefficients computes coefficients for the given subtype using
// the RBJ audio EQ cookbook forms. Shelf slope is given in dB/oct, 12
// being the steepest stable value.
func NewBiquadCoefficients(params config.FilterParams, sampleRate int) (BiquadCoefficients, error) {
	fs := float64(sampleRate)
	if params.Freq <= 0 || params.Freq >= fs/2 {
		return BiquadCoefficients{}, errors.Newf("biquad frequency %f out of range (0, %f)", params.Freq, fs/2).
			Component("dsp").
			Category(errors.CategoryValidation).
			Build()
	}
	omega := 2.0 * math.Pi * params.Freq / fs
	sn := math.Sin(omega)
	cs := math.Cos(omega)

	var b0, b1, b2, a0, a1, a2 float64
	switch params.Type {
	case "Lowpass":
		alpha := sn / (2.0 * params.Q)
		b0 = (1.0 - cs) / 2.0
		b1 = 1.0 - cs
		b2 = b0
		a0 = 1.0 + alpha
		a1 = -2.0 * cs
		a2 = 1.0 - alpha
	case "Highpass":
		alpha := sn / (2.0 * params.Q)
		b0 = (1.0 + cs) / 2.0
		b1 = -(1.0 + cs)
		b2 = b0
		a0 = 1.0 + alpha
		a1 = -2.0 * cs
		a2 = 1.0 - alpha
	case "Bandpass":
		alpha := sn / (2.0 * params.Q)
		b0 = alpha
		b1 = 0.0
		b2 = -alpha
		a0 = 1.0 + alpha
		a1 = -2.0 * cs
		a2 = 1.0 - alpha
	case "Notch":
		alpha := sn / (2.0 * params.Q)
		b0 = 1.0
		b1 = -2.0 * cs
		b2 = 1.0
		a0 = 1.0 + alpha
		a1 = -2.0 * cs
		a2 = 1.0 - alpha
	case "Allpass":
		alpha := sn / (2.0 * params.Q)
		b0 = 1.0 - alpha
		b1 = -2.0 * cs
		b2 = 1.0 + alpha
		a0 = 1.0 + alpha
		a1 = -2.0 * cs
		a2 = 1.0 - alpha
	case "Peaking":
		alpha := sn / (2.0 * params.Q)
		ampl := math.Pow(10.0, params.Gain/40.0)
		b0 = 1.0 + alpha*ampl
		b1 = -2.0 * cs
		b2 = 1.0 - alpha*ampl
		a0 = 1.0 + alpha/ampl
		a1 = -2.0 * cs
		a2 = 1.0 - alpha/ampl
	case "Lowshelf":
		ampl := math.Pow(10.0, params.Gain/40.0)
		slope := params.Slope / 12.0
		alpha := sn / 2.0 * math.Sqrt((ampl+1.0/ampl)*(1.0/slope-1.0)+2.0)
		beta := 2.0 * math.Sqrt(ampl) * alpha
		b0 = ampl * ((ampl + 1.0) - (ampl-1.0)*cs + beta)
		b1 = 2.0 * ampl * ((ampl - 1.0) - (ampl+1.0)*cs)
		b2 = ampl * ((ampl + 1.0) - (ampl-1.0)*cs - beta)
		a0 = (ampl + 1.0) + (ampl-1.0)*cs + beta
		a1 = -2.0 * ((ampl - 1.0) + (ampl+1.0)*cs)
		a2 = (ampl + 1.0) + (ampl-1.0)*cs - beta
	case "Highshelf":
		ampl := math.Pow(10.0, params.Gain/40.0)
		slope := params.Slope / 12.0
		alpha := sn / 2.0 * math.Sqrt((ampl+1.0/ampl)*(1.0/slope-1.0)+2.0)
		beta := 2.0 * math.Sqrt(ampl) * alpha
		b0 = ampl * ((ampl + 1.0) + (ampl-1.0)*cs + beta)
		b1 = -2.0 * ampl * ((ampl - 1.0) + (ampl+1.0)*cs)
		b2 = ampl * ((ampl + 1.0) + (ampl-1.0)*cs - beta)
		a0 = (ampl + 1.0) - (ampl-1.0)*cs + beta
		a1 = 2.0 * ((ampl - 1.0) - (ampl+1.0)*cs)
		a2 = (ampl + 1.0) - (ampl-1.0)*cs - beta
	default:
		return BiquadCoefficients{}, errors.Newf("unknown biquad type %q", params.Type).
			Component("dsp").
			Category(errors.CategoryValidation).
			Build()
	}

	return BiquadCoefficients{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: a1 / a0,
		a2: a2 / a0,
	}, nil
}

// IsStable reports whether the poles sit inside the unit circle.
func (c BiquadCoefficients) IsStable() bool {
	return math.Abs(c.a2) < 1.0 && math.Abs(c.a1) < 1.0+c.a2
}

// Biquad is one direct-form-2-transposed second order IIR section.
type Biquad struct {
	name       string
	sampleRate int
	coeffs     BiquadCoefficients
	s1, s2     float64
}

// NewBiquad wraps precomputed coefficients into a filter instance.
func NewBiquad(name string, sampleRate int, coeffs BiquadCoefficients) *Biquad {
	return &Biquad{name: name, sampleRate: sampleRate, coeffs: coeffs}
}

// NewBiquadFromConfig builds a biquad from its catalog entry.
func NewBiquadFromConfig(name string, params config.FilterParams, sampleRate int) (*Biquad, error) {
	coeffs, err := NewBiquadCoefficients(params, sampleRate)
	if err != nil {
		return nil, err
	}
	return NewBiquad(name, sampleRate, coeffs), nil
}

// Name returns the catalog name of this instance.
func (b *Biquad) Name() string { return b.name }

// ProcessWaveform runs the section over the waveform in place.
func (b *Biquad) ProcessWaveform(waveform []audio.Sample) error {
	c := b.coeffs
	s1, s2 := b.s1, b.s2
	for i, x := range waveform {
		y := c.b0*x + s1
		s1 = c.b1*x - c.a1*y + s2
		s2 = c.b2*x - c.a2*y
		waveform[i] = y
	}
	b.s1, b.s2 = s1, s2
	return nil
}

// UpdateParameters recomputes the coefficients, preserving filter state so
// the transition stays click free.
func (b *Biquad) UpdateParameters(cfg config.Filter) error {
	coeffs, err := NewBiquadCoefficients(cfg.Parameters, b.sampleRate)
	if err != nil {
		return err
	}
	b.coeffs = coeffs
	return nil
}

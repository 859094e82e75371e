package dsp

import (
	"math"

	"github.com/jtoivane/auradsp/internal/audio"
	"github.com/jtoivane/auradsp/internal/config"
	"github.com/jtoivane/auradsp/internal/errors"
	"github.com/jtoivane/auradsp/internal/status"
)

// Loudness shelf corner frequencies and slope. The boost collapses to
// identity at the reference level, so fixed corners keep the filter cheap
// to retune during ramps.
const (
	loudnessHighFreq = 3500.0
	loudnessLowFreq  = 70.0
	loudnessSlope    = 12.0
)

// Loudness applies listening-level-dependent bass and treble shelving on
// top of the shared volume gain. The boost grows linearly as the user
// attenuates below the reference level and is gone at or above it.
type Loudness struct {
	name           string
	rampChunks     int
	currentVolume  float64 // dB, the gain actually applied
	targetVolume   float64 // dB, where a ramp is heading
	rampStart      float64 // dB, where the ramp began
	rampStep       int     // 0 = idle, 1..rampChunks = ramping
	sampleRate     int
	chunkSize      int
	params         *status.ProcessingParams
	referenceLevel float64
	highBoost      float64
	lowBoost       float64
	highShelf      *Biquad
	lowShelf       *Biquad
}

// relBoost maps a listening level to the [0, 1] fraction of the configured
// boost: zero at or above the reference, full at 20 dB below it.
func relBoost(level, reference float64) float64 {
	rel := (reference - level) / 20.0
	if rel < 0.0 {
		rel = 0.0
	} else if rel > 1.0 {
		rel = 1.0
	}
	return rel
}

// NewLoudness builds a loudness filter seeded from the shared volume.
func NewLoudness(name string, params config.FilterParams, sampleRate, chunkSize int, shared *status.ProcessingParams) *Loudness {
	volume := shared.Volume()
	l := &Loudness{
		name:           name,
		rampChunks:     rampTimeInChunks(params.RampTime, chunkSize, sampleRate),
		currentVolume:  volume,
		targetVolume:   volume,
		rampStart:      volume,
		sampleRate:     sampleRate,
		chunkSize:      chunkSize,
		params:         shared,
		referenceLevel: params.ReferenceLevel,
		highBoost:      params.HighBoost,
		lowBoost:       params.LowBoost,
	}
	rel := relBoost(volume, l.referenceLevel)
	l.highShelf = NewBiquad("highshelf", sampleRate, mustShelf("Highshelf", loudnessHighFreq, rel*l.highBoost, sampleRate))
	l.lowShelf = NewBiquad("lowshelf", sampleRate, mustShelf("Lowshelf", loudnessLowFreq, rel*l.lowBoost, sampleRate))
	return l
}

func rampTimeInChunks(rampTimeMS float64, chunkSize, sampleRate int) int {
	chunkMS := 1000.0 * float64(chunkSize) / float64(sampleRate)
	return int(math.Round(rampTimeMS / chunkMS))
}

// mustShelf builds shelf coefficients for the fixed loudness corners; the
// parameters are constants apart from the gain, so this cannot fail.
func mustShelf(kind string, freq, gain float64, sampleRate int) BiquadCoefficients {
	coeffs, err := NewBiquadCoefficients(config.FilterParams{
		Type:  kind,
		Freq:  freq,
		Slope: loudnessSlope,
		Gain:  gain,
	}, sampleRate)
	if err != nil {
		// Unreachable for the fixed corners; keep the filter flat if not.
		return BiquadCoefficients{b0: 1}
	}
	return coeffs
}

// Name returns the catalog name of this instance.
func (l *Loudness) Name() string { return l.name }

// makeRamp builds the per-sample linear gain trajectory for the current
// ramp chunk. The trajectory is linear in dB so the perceived change is
// uniform across the ramp.
func (l *Loudness) makeRamp() []float64 {
	rampRange := (l.targetVolume - l.rampStart) / float64(l.rampChunks)
	stepSize := rampRange / float64(l.chunkSize)
	ramp := make([]float64, l.chunkSize)
	base := l.rampStart + rampRange*float64(l.rampStep-1)
	for i := range ramp {
		ramp[i] = dbToLinear(base + float64(i)*stepSize)
	}
	return ramp
}

// ProcessWaveform applies the volume gain (ramped when a ramp is active)
// and the level-dependent shelves in place.
func (l *Loudness) ProcessWaveform(waveform []audio.Sample) error {
	sharedVolume := l.params.Volume()

	// Volume setting changed
	if math.Abs(sharedVolume-l.targetVolume) > 0.001 {
		if l.rampChunks > 0 {
			l.rampStart = l.currentVolume
			l.targetVolume = sharedVolume
			l.rampStep = 1
		} else {
			l.currentVolume = sharedVolume
			l.targetVolume = sharedVolume
			l.rampStep = 0
		}
	}

	switch {
	case l.rampStep == 0:
		gain := dbToLinear(l.currentVolume)
		for i := range waveform {
			waveform[i] *= gain
		}
	case l.rampStep <= l.rampChunks:
		ramp := l.makeRamp()
		l.rampStep++
		if l.rampStep > l.rampChunks {
			// Last step of ramp
			l.rampStep = 0
		}
		for i := range waveform {
			waveform[i] *= ramp[i]
		}
		l.currentVolume = linearToDB(ramp[len(ramp)-1])
		l.updateShelves(l.currentVolume)
	}

	if relBoost(l.currentVolume, l.referenceLevel) > 0.0 {
		if err := l.highShelf.ProcessWaveform(waveform); err != nil {
			return err
		}
		if err := l.lowShelf.ProcessWaveform(waveform); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loudness) updateShelves(volume float64) {
	rel := relBoost(volume, l.referenceLevel)
	_ = l.highShelf.UpdateParameters(config.Filter{Type: "Biquad", Parameters: config.FilterParams{
		Type: "Highshelf", Freq: loudnessHighFreq, Slope: loudnessSlope, Gain: rel * l.highBoost,
	}})
	_ = l.lowShelf.UpdateParameters(config.Filter{Type: "Biquad", Parameters: config.FilterParams{
		Type: "Lowshelf", Freq: loudnessLowFreq, Slope: loudnessSlope, Gain: rel * l.lowBoost,
	}})
}

// UpdateParameters installs new loudness settings and retunes the shelves
// at the current shared volume.
func (l *Loudness) UpdateParameters(cfg config.Filter) error {
	if cfg.Type != "Loudness" {
		return errors.Newf("filter %q: expected Loudness parameters, got %q", l.name, cfg.Type).
			Component("dsp").
			Category(errors.CategoryValidation).
			Build()
	}
	p := cfg.Parameters
	l.rampChunks = rampTimeInChunks(p.RampTime, l.chunkSize, l.sampleRate)
	l.referenceLevel = p.ReferenceLevel
	l.highBoost = p.HighBoost
	l.lowBoost = p.LowBoost
	l.updateShelves(l.params.Volume())
	return nil
}

package dsp

import (
	"math"

	"github.com/jtoivane/auradsp/internal/audio"
	"github.com/jtoivane/auradsp/internal/config"
	"github.com/jtoivane/auradsp/internal/status"
)

// muteGainDB is the gain a Volume filter ramps to while muted. Low enough
// to be inaudible at any realistic playback level.
const muteGainDB = -120.0

// Volume tracks the shared volume and mute settings with the same
// linear-in-dB ramping as Loudness, without the shelving stage.
type Volume struct {
	name          string
	rampChunks    int
	currentVolume float64
	targetVolume  float64
	rampStart     float64
	rampStep      int
	sampleRate    int
	chunkSize     int
	params        *status.ProcessingParams
}

// NewVolume builds a volume filter seeded from the shared parameters.
func NewVolume(name string, params config.FilterParams, sampleRate, chunkSize int, shared *status.ProcessingParams) *Volume {
	volume := shared.Volume()
	if shared.Mute() {
		volume = muteGainDB
	}
	return &Volume{
		name:          name,
		rampChunks:    rampTimeInChunks(params.RampTime, chunkSize, sampleRate),
		currentVolume: volume,
		targetVolume:  volume,
		rampStart:     volume,
		sampleRate:    sampleRate,
		chunkSize:     chunkSize,
		params:        shared,
	}
}

// Name returns the catalog name of this instance.
func (v *Volume) Name() string { return v.name }

// ProcessWaveform applies the shared volume, ramping towards changes.
func (v *Volume) ProcessWaveform(waveform []audio.Sample) error {
	shared := v.params.Volume()
	if v.params.Mute() {
		shared = muteGainDB
	}

	if math.Abs(shared-v.targetVolume) > 0.001 {
		if v.rampChunks > 0 {
			v.rampStart = v.currentVolume
			v.targetVolume = shared
			v.rampStep = 1
		} else {
			v.currentVolume = shared
			v.targetVolume = shared
			v.rampStep = 0
		}
	}

	switch {
	case v.rampStep == 0:
		gain := dbToLinear(v.currentVolume)
		for i := range waveform {
			waveform[i] *= gain
		}
	case v.rampStep <= v.rampChunks:
		rampRange := (v.targetVolume - v.rampStart) / float64(v.rampChunks)
		stepSize := rampRange / float64(v.chunkSize)
		base := v.rampStart + rampRange*float64(v.rampStep-1)
		v.rampStep++
		if v.rampStep > v.rampChunks {
			v.rampStep = 0
		}
		var gain float64
		for i := range waveform {
			gain = dbToLinear(base + float64(i)*stepSize)
			waveform[i] *= gain
		}
		v.currentVolume = linearToDB(gain)
	}
	return nil
}

// UpdateParameters replaces the ramp time.
func (v *Volume) UpdateParameters(cfg config.Filter) error {
	v.rampChunks = rampTimeInChunks(cfg.Parameters.RampTime, v.chunkSize, v.sampleRate)
	return nil
}

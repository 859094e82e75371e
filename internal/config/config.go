// Package config defines the engine configuration model, its YAML loader
// and validation, and the diff classification that decides whether a
// reload can be applied in place or needs a full restart.
package config

import (
	"github.com/jtoivane/auradsp/internal/audio"
)

// Device describes one side of the audio chain.
type Device struct {
	Type     string `mapstructure:"type" yaml:"type"`
	Device   string `mapstructure:"device" yaml:"device,omitempty"`
	Filename string `mapstructure:"filename" yaml:"filename,omitempty"`
	Format   string `mapstructure:"format" yaml:"format"`
	Channels int    `mapstructure:"channels" yaml:"channels"`
}

// Spec resolves the device section into an audio.DeviceSpec.
func (d Device) Spec() audio.DeviceSpec {
	format, _ := audio.ParseSampleFormat(d.Format)
	return audio.DeviceSpec{
		Kind:     d.Type,
		Device:   d.Device,
		Filename: d.Filename,
		Format:   format,
		Channels: d.Channels,
	}
}

// Devices holds everything whose change requires tearing down the open
// devices and restarting the workers.
type Devices struct {
	Samplerate       int     `mapstructure:"samplerate" yaml:"samplerate"`
	Chunksize        int     `mapstructure:"chunksize" yaml:"chunksize"`
	Queuelimit       int     `mapstructure:"queuelimit" yaml:"queuelimit,omitempty"`
	TargetLevel      int     `mapstructure:"target_level" yaml:"target_level,omitempty"`
	AdjustPeriod     float64 `mapstructure:"adjust_period" yaml:"adjust_period,omitempty"`
	EnableRateAdjust bool    `mapstructure:"enable_rate_adjust" yaml:"enable_rate_adjust,omitempty"`
	ExtraSamples     int     `mapstructure:"extra_samples" yaml:"extra_samples,omitempty"`
	Capture          Device  `mapstructure:"capture" yaml:"capture"`
	Playback         Device  `mapstructure:"playback" yaml:"playback"`
}

// FilterParams is the union of parameters across the filter kinds; each
// kind reads the fields it understands and validation checks the rest.
type FilterParams struct {
	// Biquad subtype, e.g. "Lowpass", "Highshelf"
	Type string `mapstructure:"type" yaml:"type,omitempty"`

	Freq  float64 `mapstructure:"freq" yaml:"freq,omitempty"`
	Q     float64 `mapstructure:"q" yaml:"q,omitempty"`
	Slope float64 `mapstructure:"slope" yaml:"slope,omitempty"`
	Gain  float64 `mapstructure:"gain" yaml:"gain,omitempty"`

	Inverted bool `mapstructure:"inverted" yaml:"inverted,omitempty"`
	Mute     bool `mapstructure:"mute" yaml:"mute,omitempty"`

	// Loudness
	ReferenceLevel float64 `mapstructure:"reference_level" yaml:"reference_level,omitempty"`
	HighBoost      float64 `mapstructure:"high_boost" yaml:"high_boost,omitempty"`
	LowBoost       float64 `mapstructure:"low_boost" yaml:"low_boost,omitempty"`

	// Volume and Loudness ramping, milliseconds
	RampTime float64 `mapstructure:"ramp_time" yaml:"ramp_time,omitempty"`

	// Delay
	Delay float64 `mapstructure:"delay" yaml:"delay,omitempty"`
	Unit  string  `mapstructure:"unit" yaml:"unit,omitempty"` // "ms" or "samples"

	// Dither
	Bits int `mapstructure:"bits" yaml:"bits,omitempty"`

	// FIR taps
	Values []float64 `mapstructure:"values" yaml:"values,omitempty"`
}

// Filter is one named entry in the filter catalog.
type Filter struct {
	Type       string       `mapstructure:"type" yaml:"type"`
	Parameters FilterParams `mapstructure:"parameters" yaml:"parameters"`
}

// MixerSource is one input feeding a mixer output channel.
type MixerSource struct {
	Channel  int     `mapstructure:"channel" yaml:"channel"`
	Gain     float64 `mapstructure:"gain" yaml:"gain"`
	Inverted bool    `mapstructure:"inverted" yaml:"inverted,omitempty"`
}

// MixerMapping routes one or more sources into a destination channel.
type MixerMapping struct {
	Dest    int           `mapstructure:"dest" yaml:"dest"`
	Sources []MixerSource `mapstructure:"sources" yaml:"sources"`
}

// MixerChannels declares the channel counts across a mixer.
type MixerChannels struct {
	In  int `mapstructure:"in" yaml:"in"`
	Out int `mapstructure:"out" yaml:"out"`
}

// Mixer is one named entry in the mixer catalog.
type Mixer struct {
	Channels MixerChannels  `mapstructure:"channels" yaml:"channels"`
	Mapping  []MixerMapping `mapstructure:"mapping" yaml:"mapping"`
}

// Pipeline step types.
const (
	StepMixer  = "Mixer"
	StepFilter = "Filter"
)

// PipelineStep is either a mixer application or a filter chain bound to
// one channel.
type PipelineStep struct {
	Type    string   `mapstructure:"type" yaml:"type"`
	Name    string   `mapstructure:"name" yaml:"name,omitempty"`
	Channel int      `mapstructure:"channel" yaml:"channel,omitempty"`
	Names   []string `mapstructure:"names" yaml:"names,omitempty"`
}

// Config is one complete validated engine configuration.
type Config struct {
	Devices  Devices           `mapstructure:"devices" yaml:"devices"`
	Filters  map[string]Filter `mapstructure:"filters" yaml:"filters,omitempty"`
	Mixers   map[string]Mixer  `mapstructure:"mixers" yaml:"mixers,omitempty"`
	Pipeline []PipelineStep    `mapstructure:"pipeline" yaml:"pipeline,omitempty"`
}

// ChunkDuration returns the length of one chunk in seconds.
func (c *Config) ChunkDuration() float64 {
	if c.Devices.Samplerate == 0 {
		return 0
	}
	return float64(c.Devices.Chunksize) / float64(c.Devices.Samplerate)
}

// UsedCaptureChannels reports which capture channels contribute to the
// output. Before the first mixer the stream carries the capture channels
// directly, so the first mixer's source set decides; without any mixer
// every capture channel is in use.
func (c *Config) UsedCaptureChannels() []int {
	for _, step := range c.Pipeline {
		if step.Type != StepMixer {
			continue
		}
		mixer, ok := c.Mixers[step.Name]
		if !ok {
			break
		}
		seen := make(map[int]bool)
		var used []int
		for _, mapping := range mixer.Mapping {
			for _, src := range mapping.Sources {
				if !seen[src.Channel] {
					seen[src.Channel] = true
					used = append(used, src.Channel)
				}
			}
		}
		return used
	}
	used := make([]int, c.Devices.Capture.Channels)
	for i := range used {
		used[i] = i
	}
	return used
}

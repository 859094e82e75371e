package config

import (
	"github.com/jtoivane/auradsp/internal/audio"
	"github.com/jtoivane/auradsp/internal/errors"
)

// Known filter type names.
var filterTypes = map[string]bool{
	"Biquad":   true,
	"Gain":     true,
	"Volume":   true,
	"Loudness": true,
	"Delay":    true,
	"Dither":   true,
	"FIR":      true,
}

// Biquad subtypes and whether they carry a gain parameter.
var biquadTypes = map[string]bool{
	"Lowpass":   false,
	"Highpass":  false,
	"Bandpass":  false,
	"Notch":     false,
	"Allpass":   false,
	"Peaking":   true,
	"Lowshelf":  true,
	"Highshelf": true,
}

func invalid(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("config").
		Category(errors.CategoryValidation).
		Build()
}

// Validate checks a loaded configuration for internal consistency: device
// parameters, catalog entries, and that the channel count flowing through
// the pipeline matches at every step.
func Validate(cfg *Config) error {
	if err := validateDevices(&cfg.Devices); err != nil {
		return err
	}
	for name, f := range cfg.Filters {
		if err := validateFilter(name, f); err != nil {
			return err
		}
	}
	for name, m := range cfg.Mixers {
		if err := validateMixer(name, m); err != nil {
			return err
		}
	}
	return validatePipeline(cfg)
}

func validateDevices(d *Devices) error {
	if d.Samplerate <= 0 {
		return invalid("samplerate must be positive, got %d", d.Samplerate)
	}
	if d.Chunksize <= 0 {
		return invalid("chunksize must be positive, got %d", d.Chunksize)
	}
	if d.Queuelimit < 1 {
		return invalid("queuelimit must be at least 1, got %d", d.Queuelimit)
	}
	if d.ExtraSamples < 0 {
		return invalid("extra_samples must not be negative, got %d", d.ExtraSamples)
	}
	if d.AdjustPeriod <= 0 {
		return invalid("adjust_period must be positive, got %f", d.AdjustPeriod)
	}
	for side, dev := range map[string]Device{"capture": d.Capture, "playback": d.Playback} {
		if dev.Type == "" {
			return invalid("%s device type missing", side)
		}
		if dev.Channels <= 0 {
			return invalid("%s channels must be positive, got %d", side, dev.Channels)
		}
		if _, err := audio.ParseSampleFormat(dev.Format); err != nil {
			return invalid("%s device: %v", side, err)
		}
	}
	return nil
}

func validateFilter(name string, f Filter) error {
	if !filterTypes[f.Type] {
		return invalid("filter %q has unknown type %q", name, f.Type)
	}
	p := f.Parameters
	switch f.Type {
	case "Biquad":
		if _, ok := biquadTypes[p.Type]; !ok {
			return invalid("filter %q: unknown biquad type %q", name, p.Type)
		}
		if p.Freq <= 0 {
			return invalid("filter %q: freq must be positive, got %f", name, p.Freq)
		}
		switch p.Type {
		case "Lowshelf", "Highshelf":
			if p.Slope <= 0 || p.Slope > 12 {
				return invalid("filter %q: slope must be in (0, 12] dB/oct, got %f", name, p.Slope)
			}
		default:
			if p.Q <= 0 {
				return invalid("filter %q: q must be positive, got %f", name, p.Q)
			}
		}
	case "Loudness":
		if p.RampTime < 0 {
			return invalid("filter %q: ramp_time must not be negative, got %f", name, p.RampTime)
		}
		if p.HighBoost < 0 || p.LowBoost < 0 {
			return invalid("filter %q: boosts must not be negative", name)
		}
	case "Volume":
		if p.RampTime < 0 {
			return invalid("filter %q: ramp_time must not be negative, got %f", name, p.RampTime)
		}
	case "Delay":
		if p.Delay < 0 {
			return invalid("filter %q: delay must not be negative, got %f", name, p.Delay)
		}
		if p.Unit != "" && p.Unit != "ms" && p.Unit != "samples" {
			return invalid("filter %q: unit must be \"ms\" or \"samples\", got %q", name, p.Unit)
		}
	case "Dither":
		if p.Bits < 2 || p.Bits > 32 {
			return invalid("filter %q: bits must be in [2, 32], got %d", name, p.Bits)
		}
	case "FIR":
		if len(p.Values) == 0 {
			return invalid("filter %q: FIR needs at least one tap", name)
		}
	}
	return nil
}

func validateMixer(name string, m Mixer) error {
	if m.Channels.In <= 0 || m.Channels.Out <= 0 {
		return invalid("mixer %q: channel counts must be positive", name)
	}
	for _, mapping := range m.Mapping {
		if mapping.Dest < 0 || mapping.Dest >= m.Channels.Out {
			return invalid("mixer %q: dest channel %d out of range [0, %d)", name, mapping.Dest, m.Channels.Out)
		}
		for _, src := range mapping.Sources {
			if src.Channel < 0 || src.Channel >= m.Channels.In {
				return invalid("mixer %q: source channel %d out of range [0, %d)", name, src.Channel, m.Channels.In)
			}
		}
	}
	return nil
}

// validatePipeline walks the steps tracking the channel count and checks
// every referenced catalog entry exists.
func validatePipeline(cfg *Config) error {
	channels := cfg.Devices.Capture.Channels
	for i, step := range cfg.Pipeline {
		switch step.Type {
		case StepMixer:
			mixer, ok := cfg.Mixers[step.Name]
			if !ok {
				return invalid("pipeline step %d: unknown mixer %q", i, step.Name)
			}
			if mixer.Channels.In != channels {
				return invalid("pipeline step %d: mixer %q expects %d input channels, stream has %d",
					i, step.Name, mixer.Channels.In, channels)
			}
			channels = mixer.Channels.Out
		case StepFilter:
			if step.Channel < 0 || step.Channel >= channels {
				return invalid("pipeline step %d: channel %d out of range [0, %d)", i, step.Channel, channels)
			}
			if len(step.Names) == 0 {
				return invalid("pipeline step %d: filter step needs at least one filter name", i)
			}
			for _, fname := range step.Names {
				if _, ok := cfg.Filters[fname]; !ok {
					return invalid("pipeline step %d: unknown filter %q", i, fname)
				}
			}
		default:
			return invalid("pipeline step %d: unknown step type %q", i, step.Type)
		}
	}
	if channels != cfg.Devices.Playback.Channels {
		return invalid("pipeline produces %d channels but playback device has %d",
			channels, cfg.Devices.Playback.Channels)
	}
	return nil
}

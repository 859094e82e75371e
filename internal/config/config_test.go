package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
devices:
  samplerate: 48000
  chunksize: 1024
  queuelimit: 4
  enable_rate_adjust: true
  adjust_period: 10
  target_level: 2048
  capture:
    type: file
    filename: input.raw
    format: S16LE
    channels: 2
  playback:
    type: file
    filename: output.raw
    format: S16LE
    channels: 2
filters:
  bass:
    type: Biquad
    parameters:
      type: Lowshelf
      freq: 100
      slope: 6
      gain: 3
  loud:
    type: Loudness
    parameters:
      reference_level: -10
      high_boost: 7
      low_boost: 7
      ramp_time: 200
mixers:
  downmix:
    channels:
      in: 2
      out: 2
    mapping:
      - dest: 0
        sources:
          - channel: 0
            gain: 0
          - channel: 1
            gain: -6
      - dest: 1
        sources:
          - channel: 1
            gain: 0
pipeline:
  - type: Mixer
    name: downmix
  - type: Filter
    channel: 0
    names: [bass, loud]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 48000, cfg.Devices.Samplerate)
	assert.Equal(t, 1024, cfg.Devices.Chunksize)
	assert.Equal(t, 4, cfg.Devices.Queuelimit)
	assert.True(t, cfg.Devices.EnableRateAdjust)
	assert.Equal(t, "file", cfg.Devices.Capture.Type)
	assert.Equal(t, 2, cfg.Devices.Capture.Channels)

	require.Contains(t, cfg.Filters, "bass")
	assert.Equal(t, "Biquad", cfg.Filters["bass"].Type)
	assert.InDelta(t, 100.0, cfg.Filters["bass"].Parameters.Freq, 1e-9)
	require.Contains(t, cfg.Filters, "loud")
	assert.InDelta(t, 200.0, cfg.Filters["loud"].Parameters.RampTime, 1e-9)

	require.Contains(t, cfg.Mixers, "downmix")
	assert.Equal(t, 2, cfg.Mixers["downmix"].Channels.In)
	require.Len(t, cfg.Pipeline, 2)
	assert.Equal(t, StepMixer, cfg.Pipeline[0].Type)
	assert.Equal(t, []string{"bass", "loud"}, cfg.Pipeline[1].Names)

	assert.NoError(t, Validate(cfg))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yml")
	assert.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
devices:
  samplerate: 44100
  chunksize: 512
  capture:
    type: file
    filename: in.raw
    format: S16LE
    channels: 2
  playback:
    type: file
    filename: out.raw
    format: S16LE
    channels: 2
`))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Devices.Queuelimit, "queuelimit defaults")
	assert.Equal(t, 512, cfg.Devices.TargetLevel, "target level defaults to one chunk")
	assert.Positive(t, cfg.Devices.AdjustPeriod)
}

func TestOverrides(t *testing.T) {
	rate := 96000
	channels := 4
	SetOverrides(Overrides{Samplerate: &rate, Channels: &channels})
	t.Cleanup(func() { SetOverrides(Overrides{}) })

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 96000, cfg.Devices.Samplerate)
	assert.Equal(t, 4, cfg.Devices.Capture.Channels)
}

func TestValidate_Errors(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(writeConfig(t, sampleYAML))
		require.NoError(t, err)
		return cfg
	}

	t.Run("bad_samplerate", func(t *testing.T) {
		cfg := base()
		cfg.Devices.Samplerate = 0
		assert.Error(t, Validate(cfg))
	})
	t.Run("bad_format", func(t *testing.T) {
		cfg := base()
		cfg.Devices.Playback.Format = "S8"
		assert.Error(t, Validate(cfg))
	})
	t.Run("unknown_filter_in_pipeline", func(t *testing.T) {
		cfg := base()
		cfg.Pipeline[1].Names = []string{"nope"}
		assert.Error(t, Validate(cfg))
	})
	t.Run("unknown_mixer_in_pipeline", func(t *testing.T) {
		cfg := base()
		cfg.Pipeline[0].Name = "nope"
		assert.Error(t, Validate(cfg))
	})
	t.Run("channel_count_mismatch", func(t *testing.T) {
		cfg := base()
		cfg.Devices.Playback.Channels = 6
		assert.Error(t, Validate(cfg))
	})
	t.Run("filter_channel_out_of_range", func(t *testing.T) {
		cfg := base()
		cfg.Pipeline[1].Channel = 5
		assert.Error(t, Validate(cfg))
	})
	t.Run("negative_ramp_time", func(t *testing.T) {
		cfg := base()
		f := cfg.Filters["loud"]
		f.Parameters.RampTime = -1
		cfg.Filters["loud"] = f
		assert.Error(t, Validate(cfg))
	})
	t.Run("bad_biquad_slope", func(t *testing.T) {
		cfg := base()
		f := cfg.Filters["bass"]
		f.Parameters.Slope = 40
		cfg.Filters["bass"] = f
		assert.Error(t, Validate(cfg))
	})
	t.Run("mixer_source_out_of_range", func(t *testing.T) {
		cfg := base()
		m := cfg.Mixers["downmix"]
		m.Mapping[0].Sources[0].Channel = 7
		cfg.Mixers["downmix"] = m
		assert.Error(t, Validate(cfg))
	})
}

func TestUsedCaptureChannels(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1}, cfg.UsedCaptureChannels())

	// Remove channel 1 from every mixer source: only channel 0 remains.
	m := cfg.Mixers["downmix"]
	m.Mapping = []MixerMapping{{Dest: 0, Sources: []MixerSource{{Channel: 0, Gain: 0}}}}
	cfg.Mixers["downmix"] = m
	assert.Equal(t, []int{0}, cfg.UsedCaptureChannels())

	// Without any mixer all capture channels are used.
	cfg.Pipeline = cfg.Pipeline[1:]
	assert.Equal(t, []int{0, 1}, cfg.UsedCaptureChannels())
}

func TestClone_IsDeep(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	clone := Clone(cfg)
	require.NotNil(t, clone)
	f := clone.Filters["bass"]
	f.Parameters.Gain = 99
	clone.Filters["bass"] = f

	assert.InDelta(t, 3.0, cfg.Filters["bass"].Parameters.Gain, 1e-9, "mutating the clone must not touch the original")
}

func TestParse_RoundTrip(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	data, err := Marshal(cfg)
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg.Devices, back.Devices)
	assert.Equal(t, cfg.Pipeline, back.Pipeline)
	assert.Equal(t, ChangeNone, Diff(cfg, back).Kind)
}

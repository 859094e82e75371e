package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtoivane/auradsp/internal/audio"
	"github.com/jtoivane/auradsp/internal/config"
	"github.com/jtoivane/auradsp/internal/status"
)

func TestNew_UnknownType(t *testing.T) {
	_, err := New("x", config.Filter{Type: "Reverb"}, 48000, 1024, status.NewProcessingParams(0, false))
	assert.Error(t, err)
}

func TestNew_AllKnownTypes(t *testing.T) {
	shared := status.NewProcessingParams(0, false)
	cases := map[string]config.Filter{
		"biquad":   {Type: "Biquad", Parameters: config.FilterParams{Type: "Lowpass", Freq: 1000, Q: 0.7}},
		"gain":     {Type: "Gain", Parameters: config.FilterParams{Gain: -3}},
		"volume":   {Type: "Volume", Parameters: config.FilterParams{RampTime: 200}},
		"loudness": {Type: "Loudness", Parameters: config.FilterParams{ReferenceLevel: -10, HighBoost: 5, LowBoost: 5}},
		"delay":    {Type: "Delay", Parameters: config.FilterParams{Delay: 10, Unit: "ms"}},
		"dither":   {Type: "Dither", Parameters: config.FilterParams{Bits: 16}},
		"fir":      {Type: "FIR", Parameters: config.FilterParams{Values: []float64{0.25, 0.5, 0.25}}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			f, err := New(name, cfg, 48000, 1024, shared)
			require.NoError(t, err)
			assert.Equal(t, name, f.Name())
		})
	}
}

func TestGain_Scales(t *testing.T) {
	g := NewGain("g", config.FilterParams{Gain: 6.0206}) // ~2x
	input := []audio.Sample{0.1, -0.2, 0.3}
	require.NoError(t, g.ProcessWaveform(input))
	assert.InDelta(t, 0.2, input[0], 1e-4)
	assert.InDelta(t, -0.4, input[1], 1e-4)
	assert.InDelta(t, 0.6, input[2], 1e-4)
}

func TestGain_InvertedAndMute(t *testing.T) {
	t.Run("inverted", func(t *testing.T) {
		g := NewGain("g", config.FilterParams{Gain: 0, Inverted: true})
		input := []audio.Sample{0.5}
		require.NoError(t, g.ProcessWaveform(input))
		assert.InDelta(t, -0.5, input[0], 1e-12)
	})
	t.Run("mute", func(t *testing.T) {
		g := NewGain("g", config.FilterParams{Gain: 0, Mute: true})
		input := []audio.Sample{0.5}
		require.NoError(t, g.ProcessWaveform(input))
		assert.Zero(t, input[0])
	})
}

func TestVolume_FollowsSharedParams(t *testing.T) {
	shared := status.NewProcessingParams(0, false)
	v := NewVolume("vol", config.FilterParams{RampTime: 0}, 48000, 8, shared)

	input := ones(8)
	require.NoError(t, v.ProcessWaveform(input))
	assert.InDelta(t, 1.0, input[0], 1e-12)

	shared.SetVolume(-20)
	input = ones(8)
	require.NoError(t, v.ProcessWaveform(input))
	assert.InDelta(t, 0.1, input[0], 1e-9)
}

func TestVolume_MuteRampsToSilence(t *testing.T) {
	shared := status.NewProcessingParams(0, false)
	v := NewVolume("vol", config.FilterParams{RampTime: 0}, 48000, 8, shared)

	shared.SetMute(true)
	input := ones(8)
	require.NoError(t, v.ProcessWaveform(input))
	assert.InDelta(t, 1e-6, input[0], 1e-6, "muted output must be inaudible")

	shared.SetMute(false)
	input = ones(8)
	require.NoError(t, v.ProcessWaveform(input))
	assert.InDelta(t, 1.0, input[0], 1e-9, "unmute restores the volume")
}

func TestVolume_RampIsMonotonic(t *testing.T) {
	shared := status.NewProcessingParams(-40, false)
	v := NewVolume("vol", config.FilterParams{RampTime: 100}, 48000, 1024, shared)

	require.NoError(t, v.ProcessWaveform(ones(1024)))
	shared.SetVolume(0)

	var last float64 = -1
	for chunk := 0; chunk < 10; chunk++ {
		input := ones(1024)
		require.NoError(t, v.ProcessWaveform(input))
		for _, s := range input {
			assert.GreaterOrEqual(t, float64(s), last, "upward ramp must be monotonic")
			last = float64(s)
		}
	}
	assert.InDelta(t, 1.0, last, 1e-3, "ramp must land on the target gain")
}

func TestDelay_ShiftsSamples(t *testing.T) {
	d, err := NewDelay("d", config.FilterParams{Delay: 3, Unit: "samples"}, 48000)
	require.NoError(t, err)

	input := []audio.Sample{1, 2, 3, 4, 5, 6}
	require.NoError(t, d.ProcessWaveform(input))
	assert.Equal(t, []audio.Sample{0, 0, 0, 1, 2, 3}, input)

	// State carries across chunks.
	next := []audio.Sample{7, 8, 9}
	require.NoError(t, d.ProcessWaveform(next))
	assert.Equal(t, []audio.Sample{4, 5, 6}, next)
}

func TestDelay_MillisecondUnit(t *testing.T) {
	d, err := NewDelay("d", config.FilterParams{Delay: 1, Unit: "ms"}, 48000)
	require.NoError(t, err)
	assert.Len(t, d.buffer, 48)
}

func TestDelay_Zero(t *testing.T) {
	d, err := NewDelay("d", config.FilterParams{Delay: 0, Unit: "samples"}, 48000)
	require.NoError(t, err)
	input := []audio.Sample{1, 2, 3}
	require.NoError(t, d.ProcessWaveform(input))
	assert.Equal(t, []audio.Sample{1, 2, 3}, input)
}

func TestFIR_Identity(t *testing.T) {
	f, err := NewFIR("f", config.FilterParams{Values: []float64{1.0}})
	require.NoError(t, err)
	input := []audio.Sample{0.1, 0.2, 0.3}
	require.NoError(t, f.ProcessWaveform(input))
	assert.InDelta(t, 0.1, input[0], 1e-12)
	assert.InDelta(t, 0.3, input[2], 1e-12)
}

func TestFIR_MovingAverage(t *testing.T) {
	f, err := NewFIR("f", config.FilterParams{Values: []float64{0.5, 0.5}})
	require.NoError(t, err)

	input := []audio.Sample{1, 1, 1, 1}
	require.NoError(t, f.ProcessWaveform(input))
	// First sample averages with the zero history.
	assert.InDelta(t, 0.5, input[0], 1e-12)
	assert.InDelta(t, 1.0, input[1], 1e-12)

	// History persists into the next chunk.
	next := []audio.Sample{0, 0}
	require.NoError(t, f.ProcessWaveform(next))
	assert.InDelta(t, 0.5, next[0], 1e-12)
	assert.InDelta(t, 0.0, next[1], 1e-12)
}

func TestDither_StaysWithinOneLSB(t *testing.T) {
	d := NewDither("dith", config.FilterParams{Bits: 16})
	lsb := math.Pow(2, -15)

	input := make([]audio.Sample, 10000)
	require.NoError(t, d.ProcessWaveform(input))

	var sum float64
	for _, s := range input {
		assert.LessOrEqual(t, math.Abs(float64(s)), lsb, "TPDF noise bounded by one LSB")
		sum += float64(s)
	}
	assert.InDelta(t, 0.0, sum/float64(len(input)), lsb/10, "noise should be zero mean")
}

package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtoivane/auradsp/internal/audio"
	"github.com/jtoivane/auradsp/internal/config"
)

func makeBiquad(t *testing.T, params config.FilterParams) *Biquad {
	t.Helper()
	f, err := NewBiquadFromConfig("test", params, 48000)
	require.NoError(t, err)
	return f
}

func calculateRMS(samples []audio.Sample) float64 {
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func sine(freq float64, n int, sampleRate float64) []audio.Sample {
	out := make([]audio.Sample, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
	}
	return out
}

func TestNewBiquadCoefficients_UnknownType(t *testing.T) {
	_, err := NewBiquadCoefficients(config.FilterParams{Type: "Weird", Freq: 1000, Q: 0.7}, 48000)
	assert.Error(t, err)
}

func TestNewBiquadCoefficients_FreqOutOfRange(t *testing.T) {
	t.Run("zero", func(t *testing.T) {
		_, err := NewBiquadCoefficients(config.FilterParams{Type: "Lowpass", Freq: 0, Q: 0.7}, 48000)
		assert.Error(t, err)
	})
	t.Run("above_nyquist", func(t *testing.T) {
		_, err := NewBiquadCoefficients(config.FilterParams{Type: "Lowpass", Freq: 30000, Q: 0.7}, 48000)
		assert.Error(t, err)
	})
}

func TestBiquad_Stability(t *testing.T) {
	for _, kind := range []string{"Lowpass", "Highpass", "Bandpass", "Notch", "Allpass", "Peaking"} {
		t.Run(kind, func(t *testing.T) {
			coeffs, err := NewBiquadCoefficients(config.FilterParams{
				Type: kind, Freq: 1000, Q: 0.707, Gain: 6,
			}, 48000)
			require.NoError(t, err)
			assert.True(t, coeffs.IsStable())
		})
	}
	for _, kind := range []string{"Lowshelf", "Highshelf"} {
		t.Run(kind, func(t *testing.T) {
			coeffs, err := NewBiquadCoefficients(config.FilterParams{
				Type: kind, Freq: 1000, Slope: 12, Gain: 6,
			}, 48000)
			require.NoError(t, err)
			assert.True(t, coeffs.IsStable())
		})
	}
}

func TestBiquad_ProcessWaveform_InPlace(t *testing.T) {
	f := makeBiquad(t, config.FilterParams{Type: "Lowpass", Freq: 1000, Q: 0.707})

	input := []audio.Sample{1.0, 0.5, 0.0, -0.5, -1.0}
	originalAddr := &input[0]

	require.NoError(t, f.ProcessWaveform(input))
	assert.Equal(t, originalAddr, &input[0], "should modify slice in place")
}

func TestBiquad_Lowpass_DCSignal(t *testing.T) {
	// DC should pass through a lowpass unchanged once it settles
	f := makeBiquad(t, config.FilterParams{Type: "Lowpass", Freq: 1000, Q: 0.707})

	input := make([]audio.Sample, 1000)
	for i := range input {
		input[i] = 0.5
	}
	require.NoError(t, f.ProcessWaveform(input))

	for i := 900; i < 1000; i++ {
		assert.InDelta(t, 0.5, input[i], 0.01, "DC should pass through lowpass (sample %d)", i)
	}
}

func TestBiquad_Lowpass_HighFreqAttenuation(t *testing.T) {
	f := makeBiquad(t, config.FilterParams{Type: "Lowpass", Freq: 1000, Q: 0.707})

	input := sine(10000, 48000, 48000)
	rmsBefore := calculateRMS(input)

	require.NoError(t, f.ProcessWaveform(input))
	rmsAfter := calculateRMS(input[1000:]) // skip transient

	attenuation := rmsBefore / rmsAfter
	assert.Greater(t, attenuation, 10.0, "high frequency should be attenuated by >20dB")
}

func TestBiquad_Highpass_BlocksDC(t *testing.T) {
	f := makeBiquad(t, config.FilterParams{Type: "Highpass", Freq: 1000, Q: 0.707})

	input := make([]audio.Sample, 48000)
	for i := range input {
		input[i] = 0.5
	}
	require.NoError(t, f.ProcessWaveform(input))

	rms := calculateRMS(input[4800:])
	assert.Less(t, rms, 0.001, "DC should be blocked by highpass")
}

func TestBiquad_Peaking_BoostsCenterFrequency(t *testing.T) {
	f := makeBiquad(t, config.FilterParams{Type: "Peaking", Freq: 1000, Q: 1.0, Gain: 6})

	input := sine(1000, 48000, 48000)
	rmsBefore := calculateRMS(input)

	require.NoError(t, f.ProcessWaveform(input))
	rmsAfter := calculateRMS(input[4800:])

	gainDB := 20 * math.Log10(rmsAfter/rmsBefore)
	assert.InDelta(t, 6.0, gainDB, 0.5, "peaking filter should boost center frequency by its gain")
}

func TestBiquad_Highshelf_BoostsTreble(t *testing.T) {
	f := makeBiquad(t, config.FilterParams{Type: "Highshelf", Freq: 3500, Slope: 12, Gain: 10})

	input := sine(15000, 48000, 48000)
	rmsBefore := calculateRMS(input)

	require.NoError(t, f.ProcessWaveform(input))
	rmsAfter := calculateRMS(input[4800:])

	gainDB := 20 * math.Log10(rmsAfter/rmsBefore)
	assert.InDelta(t, 10.0, gainDB, 1.0, "highshelf should boost well above its corner")
}

func TestBiquad_Allpass_PreservesMagnitude(t *testing.T) {
	f := makeBiquad(t, config.FilterParams{Type: "Allpass", Freq: 1000, Q: 0.707})

	input := sine(2000, 48000, 48000)
	rmsBefore := calculateRMS(input)

	require.NoError(t, f.ProcessWaveform(input))
	rmsAfter := calculateRMS(input[4800:])

	assert.InDelta(t, 1.0, rmsAfter/rmsBefore, 0.01, "allpass should not change magnitude")
}

func TestBiquad_UpdateParameters(t *testing.T) {
	f := makeBiquad(t, config.FilterParams{Type: "Peaking", Freq: 1000, Q: 1.0, Gain: 0})

	err := f.UpdateParameters(config.Filter{Type: "Biquad", Parameters: config.FilterParams{
		Type: "Peaking", Freq: 1000, Q: 1.0, Gain: 6,
	}})
	require.NoError(t, err)

	input := sine(1000, 48000, 48000)
	rmsBefore := calculateRMS(input)
	require.NoError(t, f.ProcessWaveform(input))
	gainDB := 20 * math.Log10(calculateRMS(input[4800:])/rmsBefore)
	assert.InDelta(t, 6.0, gainDB, 0.5)
}

func TestBiquad_UpdateParameters_Invalid(t *testing.T) {
	f := makeBiquad(t, config.FilterParams{Type: "Lowpass", Freq: 1000, Q: 0.707})
	err := f.UpdateParameters(config.Filter{Type: "Biquad", Parameters: config.FilterParams{
		Type: "Lowpass", Freq: -5, Q: 0.707,
	}})
	assert.Error(t, err)
}

package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResampler_UnityRatioPreservesSignal(t *testing.T) {
	r := NewResampler(1)

	freq, rate := 440.0, 48000.0
	var in []Sample
	var out []Sample
	for chunk := 0; chunk < 10; chunk++ {
		block := make([]Sample, 512)
		for i := range block {
			n := chunk*512 + i
			block[i] = math.Sin(2 * math.Pi * freq * float64(n) / rate)
		}
		in = append(in, block...)
		res := r.Process([][]Sample{block})
		out = append(out, res[0]...)
	}

	require.NotEmpty(t, out)
	// At unity ratio the output length tracks the input length.
	assert.InDelta(t, len(in), len(out), 4)

	// At unity ratio every interpolation point lands on an input sample,
	// one sample behind the input stream.
	var maxErr float64
	for i := 100; i < len(out)-100 && i-1 < len(in); i++ {
		if e := math.Abs(out[i] - in[i-1]); e > maxErr {
			maxErr = e
		}
	}
	assert.Less(t, maxErr, 1e-9, "unity resampling should be transparent")
}

func TestResampler_RatioChangesOutputLength(t *testing.T) {
	r := NewResampler(1)
	r.SetRatio(1.05)

	total := 0
	for chunk := 0; chunk < 20; chunk++ {
		block := make([]Sample, 1000)
		out := r.Process([][]Sample{block})
		total += len(out[0])
	}
	// 20000 input frames at ratio 1.05 should give about 21000 out.
	assert.InDelta(t, 21000, total, 50)
}

func TestResampler_SlowdownRatio(t *testing.T) {
	r := NewResampler(2)
	r.SetRatio(0.95)

	total := 0
	for chunk := 0; chunk < 20; chunk++ {
		block := [][]Sample{make([]Sample, 1000), make([]Sample, 1000)}
		out := r.Process(block)
		require.Len(t, out, 2)
		require.Equal(t, len(out[0]), len(out[1]), "channels must stay aligned")
		total += len(out[0])
	}
	assert.InDelta(t, 19000, total, 50)
}

func TestResampler_SetRatioTakesEffectNextCall(t *testing.T) {
	r := NewResampler(1)
	out1 := r.Process([][]Sample{make([]Sample, 1000)})
	assert.InDelta(t, 1000, len(out1[0]), 4)

	r.SetRatio(1.5)
	out2 := r.Process([][]Sample{make([]Sample, 1000)})
	assert.InDelta(t, 1500, len(out2[0]), 4)
}

func TestResampler_DCPassthrough(t *testing.T) {
	r := NewResampler(1)
	r.SetRatio(1.02)

	for chunk := 0; chunk < 5; chunk++ {
		block := make([]Sample, 500)
		for i := range block {
			block[i] = 0.5
		}
		out := r.Process([][]Sample{block})
		if chunk == 0 {
			continue // priming transient
		}
		for i, s := range out[0] {
			assert.InDelta(t, 0.5, s, 1e-9, "chunk %d sample %d", chunk, i)
		}
	}
}

func TestChunk_Meters(t *testing.T) {
	c := NewChunk(4, 2)
	copy(c.Waveforms[0], []Sample{0.5, -0.5, 0.5, -0.5})
	copy(c.Waveforms[1], []Sample{0.1, 0.2, -0.9, 0.0})

	assert.InDelta(t, 0.5, c.ChannelRMS(0), 1e-12)
	assert.InDelta(t, 0.5, c.ChannelPeak(0), 1e-12)
	assert.InDelta(t, 0.9, c.ChannelPeak(1), 1e-12)

	peaks := c.Peak()
	assert.Len(t, peaks, 2)

	// ValidFrames limits the metering window.
	c.ValidFrames = 2
	assert.InDelta(t, 0.2, c.ChannelPeak(1), 1e-12)
}

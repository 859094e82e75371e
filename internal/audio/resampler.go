package audio

import (
	"math"
	"sync"
)

// Resampler is an asynchronous rate-adapting resampler using Catmull-Rom
// cubic interpolation. The ratio (output rate / input rate) can be nudged
// while running to follow capture/playback clock drift; changes take effect
// on the next Process call.
type Resampler struct {
	mu       sync.Mutex
	ratio    float64
	channels int
	phase    float64
	// last three input samples per channel, carried across chunks
	history [][3]Sample
	primed  bool
}

// NewResampler creates a resampler for the given channel count starting at
// ratio 1.0.
func NewResampler(channels int) *Resampler {
	return &Resampler{
		ratio:    1.0,
		channels: channels,
		history:  make([][3]Sample, channels),
	}
}

// SetRatio updates the output/input rate ratio.
func (r *Resampler) SetRatio(ratio float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ratio > 0 {
		r.ratio = ratio
	}
}

// Ratio returns the current output/input rate ratio.
func (r *Resampler) Ratio() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ratio
}

// Process resamples the input waveforms. The output length varies with the
// current ratio; input chunks of equal length may yield outputs differing
// by one frame as the phase accumulator wraps.
func (r *Resampler) Process(in [][]Sample) [][]Sample {
	r.mu.Lock()
	ratio := r.ratio
	r.mu.Unlock()

	if len(in) == 0 || len(in[0]) == 0 {
		return in
	}
	frames := len(in[0])
	step := 1.0 / ratio

	// Extended input: three history samples in front of the fresh frames.
	ext := make([][]Sample, r.channels)
	for ch := 0; ch < r.channels; ch++ {
		ext[ch] = make([]Sample, 3+frames)
		ext[ch][0] = r.history[ch][0]
		ext[ch][1] = r.history[ch][1]
		ext[ch][2] = r.history[ch][2]
		copy(ext[ch][3:], in[ch])
	}
	if !r.primed {
		// Seed the history with the first sample to avoid an onset click.
		for ch := 0; ch < r.channels; ch++ {
			ext[ch][0] = in[ch][0]
			ext[ch][1] = in[ch][0]
			ext[ch][2] = in[ch][0]
		}
		r.primed = true
	}

	// Interpolation point i reads ext[i+1..i+4] with i in [0, frames-1];
	// where ext[i+4] is past the end, the last sample is repeated.
	limit := float64(frames) // one past the last fully-covered input frame
	outFrames := int(math.Ceil((limit - r.phase) / step))
	if outFrames < 0 {
		outFrames = 0
	}

	out := make([][]Sample, r.channels)
	for ch := range out {
		out[ch] = make([]Sample, 0, outFrames)
	}

	pos := r.phase
	for pos < limit {
		i := int(pos)
		frac := pos - float64(i)
		for ch := 0; ch < r.channels; ch++ {
			// ext index of the sample at interpolation point i is i+2
			// (history occupies 0..2, in[0] sits at ext[3]).
			p0 := ext[ch][i+1]
			p1 := ext[ch][i+2]
			p2 := ext[ch][i+3]
			var p3 Sample
			if i+4 < len(ext[ch]) {
				p3 = ext[ch][i+4]
			} else {
				p3 = p2
			}
			out[ch] = append(out[ch], catmullRom(p0, p1, p2, p3, frac))
		}
		pos += step
	}
	r.phase = pos - limit

	// Carry the last three input samples into the next call.
	for ch := 0; ch < r.channels; ch++ {
		n := len(ext[ch])
		r.history[ch][0] = ext[ch][n-3]
		r.history[ch][1] = ext[ch][n-2]
		r.history[ch][2] = ext[ch][n-1]
	}

	return out
}

func catmullRom(p0, p1, p2, p3, t Sample) Sample {
	t2 := t * t
	t3 := t2 * t
	return 0.5 * ((2 * p1) +
		(-p0+p2)*t +
		(2*p0-5*p1+4*p2-p3)*t2 +
		(-p0+3*p1-3*p2+p3)*t3)
}

package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// SampleFormat identifies the raw sample encoding used on the device side
// of a conversion. Internal processing is always float64.
type SampleFormat string

const (
	FormatS16LE     SampleFormat = "S16LE"
	FormatS24LE     SampleFormat = "S24LE"  // 24 bits in a 4 byte container
	FormatS24LE3    SampleFormat = "S24LE3" // 24 bits packed in 3 bytes
	FormatS32LE     SampleFormat = "S32LE"
	FormatFloat32LE SampleFormat = "FLOAT32LE"
	FormatFloat64LE SampleFormat = "FLOAT64LE"
)

// ParseSampleFormat normalizes a config string into a SampleFormat.
func ParseSampleFormat(name string) (SampleFormat, error) {
	switch SampleFormat(strings.ToUpper(name)) {
	case FormatS16LE:
		return FormatS16LE, nil
	case FormatS24LE:
		return FormatS24LE, nil
	case FormatS24LE3:
		return FormatS24LE3, nil
	case FormatS32LE:
		return FormatS32LE, nil
	case FormatFloat32LE:
		return FormatFloat32LE, nil
	case FormatFloat64LE:
		return FormatFloat64LE, nil
	default:
		return "", fmt.Errorf("unknown sample format %q", name)
	}
}

// BytesPerSample returns the storage size of one sample.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatS16LE:
		return 2
	case FormatS24LE3:
		return 3
	case FormatS24LE, FormatS32LE, FormatFloat32LE:
		return 4
	case FormatFloat64LE:
		return 8
	default:
		return 0
	}
}

const (
	scale16 = 1 << 15
	scale24 = 1 << 23
	scale32 = 1 << 31
)

// DecodeFrames converts interleaved raw samples into the chunk's waveforms.
// src must hold frames*channels samples in the given format. The chunk's
// ValidFrames is set to the number of frames decoded.
func DecodeFrames(dst *Chunk, src []byte, format SampleFormat) error {
	bps := format.BytesPerSample()
	if bps == 0 {
		return fmt.Errorf("unknown sample format %q", format)
	}
	frames := len(src) / (bps * dst.Channels)
	if frames > dst.Frames {
		frames = dst.Frames
	}
	idx := 0
	for frame := 0; frame < frames; frame++ {
		for ch := 0; ch < dst.Channels; ch++ {
			dst.Waveforms[ch][frame] = decodeSample(src[idx:idx+bps], format)
			idx += bps
		}
	}
	// Zero the tail so a short read never replays stale samples.
	for ch := 0; ch < dst.Channels; ch++ {
		for frame := frames; frame < dst.Frames; frame++ {
			dst.Waveforms[ch][frame] = 0
		}
	}
	dst.ValidFrames = frames
	return nil
}

// EncodeFrames converts the chunk's waveforms into interleaved raw samples.
// dst must hold ValidFrames*channels samples. Returns the number of bytes
// written and the number of samples that saturated during conversion.
func EncodeFrames(dst []byte, src *Chunk, format SampleFormat) (n, clipped int, err error) {
	bps := format.BytesPerSample()
	if bps == 0 {
		return 0, 0, fmt.Errorf("unknown sample format %q", format)
	}
	need := src.ValidFrames * src.Channels * bps
	if len(dst) < need {
		return 0, 0, fmt.Errorf("encode buffer too small: %d < %d", len(dst), need)
	}
	idx := 0
	for frame := 0; frame < src.ValidFrames; frame++ {
		for ch := 0; ch < src.Channels; ch++ {
			c := encodeSample(dst[idx:idx+bps], src.Waveforms[ch][frame], format)
			if c {
				clipped++
			}
			idx += bps
		}
	}
	return idx, clipped, nil
}

func decodeSample(b []byte, format SampleFormat) Sample {
	switch format {
	case FormatS16LE:
		return Sample(int16(binary.LittleEndian.Uint16(b))) / scale16
	case FormatS24LE:
		// sign-extend the low 24 bits of the 4 byte container
		v := int32(binary.LittleEndian.Uint32(b)) << 8 >> 8
		return Sample(v) / scale24
	case FormatS24LE3:
		v := int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16)
		v = v << 8 >> 8
		return Sample(v) / scale24
	case FormatS32LE:
		return Sample(int32(binary.LittleEndian.Uint32(b))) / scale32
	case FormatFloat32LE:
		return Sample(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case FormatFloat64LE:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return 0
}

// encodeSample writes one sample, reporting whether it hard-clipped.
func encodeSample(b []byte, s Sample, format SampleFormat) bool {
	clipped := false
	switch format {
	case FormatS16LE:
		v := math.Round(s * scale16)
		if v > scale16-1 {
			v, clipped = scale16-1, true
		} else if v < -scale16 {
			v, clipped = -scale16, true
		}
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
	case FormatS24LE:
		v := math.Round(s * scale24)
		if v > scale24-1 {
			v, clipped = scale24-1, true
		} else if v < -scale24 {
			v, clipped = -scale24, true
		}
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
	case FormatS24LE3:
		v := math.Round(s * scale24)
		if v > scale24-1 {
			v, clipped = scale24-1, true
		} else if v < -scale24 {
			v, clipped = -scale24, true
		}
		iv := int32(v)
		b[0] = byte(iv)
		b[1] = byte(iv >> 8)
		b[2] = byte(iv >> 16)
	case FormatS32LE:
		v := math.Round(s * scale32)
		if v > scale32-1 {
			v, clipped = scale32-1, true
		} else if v < -scale32 {
			v, clipped = -scale32, true
		}
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
	case FormatFloat32LE:
		f := s
		if f > 1.0 {
			f, clipped = 1.0, true
		} else if f < -1.0 {
			f, clipped = -1.0, true
		}
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(f)))
	case FormatFloat64LE:
		binary.LittleEndian.PutUint64(b, math.Float64bits(s))
	}
	return clipped
}

package engine

import (
	"bytes"
	"encoding/binary"
	stderrors "errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/jtoivane/auradsp/internal/audio"
	"github.com/jtoivane/auradsp/internal/config"
)

// fakeCapture serves canned raw samples, optionally looping forever, and
// can inject failures at a given read count.
type fakeCapture struct {
	format            audio.SampleFormat
	channels          int
	data              []byte
	pos               int
	loop              bool
	readDelay         time.Duration
	failAfterReads    int // -1 disables
	formatChangeReads int // -1 disables
	reads             int
	openErr           error

	mu     sync.Mutex
	closed bool
}

func newFakeCapture(data []byte, loop bool) *fakeCapture {
	return &fakeCapture{
		format:            audio.FormatFloat64LE,
		channels:          2,
		data:              data,
		loop:              loop,
		failAfterReads:    -1,
		formatChangeReads: -1,
	}
}

func (f *fakeCapture) factory(audio.DeviceSpec) (audio.CaptureDevice, error) {
	return f, nil
}

func (f *fakeCapture) Open(sampleRate int) error        { return f.openErr }
func (f *fakeCapture) SampleFormat() audio.SampleFormat { return f.format }
func (f *fakeCapture) Channels() int                    { return f.channels }

func (f *fakeCapture) ReadFrames(buf []byte) (int, error) {
	if f.readDelay > 0 {
		time.Sleep(f.readDelay)
	}
	f.reads++
	if f.failAfterReads >= 0 && f.reads > f.failAfterReads {
		return 0, stderrors.New("injected capture failure")
	}
	if f.formatChangeReads >= 0 && f.reads > f.formatChangeReads {
		return 0, &audio.FormatChangeError{Rate: 44100}
	}

	total := 0
	for total < len(buf) {
		if f.pos >= len(f.data) {
			if !f.loop {
				if total == 0 {
					return 0, io.EOF
				}
				return total, io.EOF
			}
			f.pos = 0
		}
		n := copy(buf[total:], f.data[f.pos:])
		f.pos += n
		total += n
	}
	return total, nil
}

func (f *fakeCapture) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakePlayback collects written bytes, optionally throttling writes to
// simulate a slow device.
type fakePlayback struct {
	format             audio.SampleFormat
	channels           int
	writeDelay         time.Duration
	openErr            error
	failWrites         bool
	formatChangeWrites int // -1 disables
	writes             int

	mu  sync.Mutex
	buf bytes.Buffer
}

func newFakePlayback() *fakePlayback {
	return &fakePlayback{
		format:             audio.FormatFloat64LE,
		channels:           2,
		formatChangeWrites: -1,
	}
}

func (f *fakePlayback) factory(audio.DeviceSpec) (audio.PlaybackDevice, error) {
	return f, nil
}

func (f *fakePlayback) Open(sampleRate int) error        { return f.openErr }
func (f *fakePlayback) SampleFormat() audio.SampleFormat { return f.format }
func (f *fakePlayback) Channels() int                    { return f.channels }

func (f *fakePlayback) WriteFrames(buf []byte) (int, error) {
	if f.writeDelay > 0 {
		time.Sleep(f.writeDelay)
	}
	f.writes++
	if f.failWrites {
		return 0, stderrors.New("injected playback failure")
	}
	if f.formatChangeWrites >= 0 && f.writes > f.formatChangeWrites {
		return 0, &audio.FormatChangeError{Rate: 96000}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.Write(buf)
}

func (f *fakePlayback) BufferLevel() int { return 0 }
func (f *fakePlayback) Close() error     { return nil }

func (f *fakePlayback) bytesWritten() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.buf.Bytes()...)
}

// samples decodes the collected float64 stream, both channels interleaved.
func (f *fakePlayback) samples() []float64 {
	raw := f.bytesWritten()
	out := make([]float64, 0, len(raw)/8)
	for i := 0; i+8 <= len(raw); i += 8 {
		out = append(out, math.Float64frombits(binary.LittleEndian.Uint64(raw[i:i+8])))
	}
	return out
}

// constantSignal builds interleaved stereo float64 frames of one value.
func constantSignal(value float64, frames int) []byte {
	buf := make([]byte, frames*2*8)
	for i := 0; i < frames*2; i++ {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(value))
	}
	return buf
}

// rampSignal builds interleaved stereo frames with a deterministic pattern.
func rampSignal(frames int) []byte {
	buf := make([]byte, frames*2*8)
	for i := 0; i < frames*2; i++ {
		v := math.Sin(float64(i) * 0.01)
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// testEngineConfig is a minimal valid config for the fake devices.
func testEngineConfig(chunksize, queuelimit int) *config.Config {
	return &config.Config{
		Devices: config.Devices{
			Samplerate:   48000,
			Chunksize:    chunksize,
			Queuelimit:   queuelimit,
			AdjustPeriod: 10,
			TargetLevel:  chunksize,
			Capture:      config.Device{Type: "file", Filename: "in.raw", Format: "FLOAT64LE", Channels: 2},
			Playback:     config.Device{Type: "file", Filename: "out.raw", Format: "FLOAT64LE", Channels: 2},
		},
	}
}

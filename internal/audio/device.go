package audio

import (
	"fmt"
	"strings"

	"github.com/jtoivane/auradsp/internal/errors"
)

// DeviceSpec describes one side of the audio chain, resolved from the
// device section of the configuration.
type DeviceSpec struct {
	Kind     string // "soundcard", "file", "stdin" / "stdout"
	Device   string // soundcard device name or ID, empty for default
	Filename string // raw sample file for the file kind
	Format   SampleFormat
	Channels int
}

// CaptureDevice is the blocking read side of the engine. Open negotiates
// the requested rate; ReadFrames blocks until the buffer is filled, the
// stream ends (io.EOF) or the device fails.
type CaptureDevice interface {
	Open(sampleRate int) error
	SampleFormat() SampleFormat
	Channels() int
	// ReadFrames fills buf with interleaved raw samples and returns the
	// number of bytes read. A FormatChangeError reports an external rate
	// change detected by the backend.
	ReadFrames(buf []byte) (int, error)
	Close() error
}

// PlaybackDevice is the blocking write side of the engine.
type PlaybackDevice interface {
	Open(sampleRate int) error
	SampleFormat() SampleFormat
	Channels() int
	WriteFrames(buf []byte) (int, error)
	// BufferLevel reports the device-side queue fill in frames. Backends
	// without visibility into their sink report zero.
	BufferLevel() int
	Close() error
}

// FormatChangeError reports that the device changed sample rate behind us.
type FormatChangeError struct {
	Rate int
}

func (e *FormatChangeError) Error() string {
	return fmt.Sprintf("device format changed, new sample rate %d", e.Rate)
}

// CaptureFactory builds a capture device from its spec. Swappable so tests
// can run the engine against synthetic devices.
type CaptureFactory func(spec DeviceSpec) (CaptureDevice, error)

// PlaybackFactory builds a playback device from its spec.
type PlaybackFactory func(spec DeviceSpec) (PlaybackDevice, error)

// NewCaptureDevice is the default capture factory.
func NewCaptureDevice(spec DeviceSpec) (CaptureDevice, error) {
	switch strings.ToLower(spec.Kind) {
	case "soundcard":
		return newMalgoCapture(spec)
	case "file", "stdin":
		return newFileCapture(spec)
	default:
		return nil, errors.Newf("unknown capture device type %q", spec.Kind).
			Component("audio").
			Category(errors.CategoryValidation).
			Build()
	}
}

// NewPlaybackDevice is the default playback factory.
func NewPlaybackDevice(spec DeviceSpec) (PlaybackDevice, error) {
	switch strings.ToLower(spec.Kind) {
	case "soundcard":
		return newMalgoPlayback(spec)
	case "file", "stdout":
		return newFilePlayback(spec)
	default:
		return nil, errors.Newf("unknown playback device type %q", spec.Kind).
			Component("audio").
			Category(errors.CategoryValidation).
			Build()
	}
}

package audio

import (
	"io"
	"os"
	"strings"

	"github.com/jtoivane/auradsp/internal/errors"
)

// fileCapture reads raw interleaved samples from a file or stdin. It doubles
// as the offline test harness backend; the stream ends with io.EOF and the
// capture worker turns that into the end-of-stream drain.
type fileCapture struct {
	spec   DeviceSpec
	reader io.ReadCloser
}

func newFileCapture(spec DeviceSpec) (CaptureDevice, error) {
	if spec.Channels <= 0 {
		return nil, errors.Newf("capture channels must be positive, got %d", spec.Channels).
			Component("audio").
			Category(errors.CategoryValidation).
			Build()
	}
	return &fileCapture{spec: spec}, nil
}

func (f *fileCapture) Open(sampleRate int) error {
	if strings.ToLower(f.spec.Kind) == "stdin" || f.spec.Filename == "-" {
		f.reader = os.Stdin
		return nil
	}
	file, err := os.Open(f.spec.Filename)
	if err != nil {
		return errors.New(err).
			Component("audio").
			Category(errors.CategoryFileIO).
			Context("filename", f.spec.Filename).
			Build()
	}
	f.reader = file
	return nil
}

func (f *fileCapture) SampleFormat() SampleFormat { return f.spec.Format }
func (f *fileCapture) Channels() int              { return f.spec.Channels }

func (f *fileCapture) ReadFrames(buf []byte) (int, error) {
	n, err := io.ReadFull(f.reader, buf)
	if err == io.ErrUnexpectedEOF {
		// Short final read is a valid partial chunk.
		return n, io.EOF
	}
	return n, err
}

func (f *fileCapture) Close() error {
	if f.reader == nil || f.reader == os.Stdin {
		return nil
	}
	return f.reader.Close()
}

// filePlayback writes raw interleaved samples to a file or stdout.
type filePlayback struct {
	spec   DeviceSpec
	writer io.WriteCloser
}

func newFilePlayback(spec DeviceSpec) (PlaybackDevice, error) {
	if spec.Channels <= 0 {
		return nil, errors.Newf("playback channels must be positive, got %d", spec.Channels).
			Component("audio").
			Category(errors.CategoryValidation).
			Build()
	}
	return &filePlayback{spec: spec}, nil
}

func (f *filePlayback) Open(sampleRate int) error {
	if strings.ToLower(f.spec.Kind) == "stdout" || f.spec.Filename == "-" {
		f.writer = os.Stdout
		return nil
	}
	file, err := os.Create(f.spec.Filename)
	if err != nil {
		return errors.New(err).
			Component("audio").
			Category(errors.CategoryFileIO).
			Context("filename", f.spec.Filename).
			Build()
	}
	f.writer = file
	return nil
}

func (f *filePlayback) SampleFormat() SampleFormat { return f.spec.Format }
func (f *filePlayback) Channels() int              { return f.spec.Channels }

func (f *filePlayback) WriteFrames(buf []byte) (int, error) {
	return f.writer.Write(buf)
}

// BufferLevel is always zero: a file sink has no queue.
func (f *filePlayback) BufferLevel() int { return 0 }

func (f *filePlayback) Close() error {
	if f.writer == nil || f.writer == os.Stdout {
		return nil
	}
	return f.writer.Close()
}

package audio

import (
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/smallnest/ringbuffer"

	"github.com/jtoivane/auradsp/internal/errors"
)

// ringSeconds sizes the byte ring between the miniaudio callback and the
// blocking worker loop. Deep enough to ride out scheduling jitter, shallow
// enough that playback backpressure reaches the device quickly.
const ringSeconds = 1

// malgoCapture drives a soundcard through miniaudio. The device callback
// pushes raw frames into a blocking ring buffer; ReadFrames drains it.
type malgoCapture struct {
	spec    DeviceSpec
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	ring    *ringbuffer.RingBuffer
	stopped atomic.Bool
	rate    int
}

func newMalgoCapture(spec DeviceSpec) (CaptureDevice, error) {
	if err := checkSoundcardFormat(spec.Format); err != nil {
		return nil, err
	}
	return &malgoCapture{spec: spec}, nil
}

func (m *malgoCapture) Open(sampleRate int) error {
	malgoCtx, err := malgo.InitContext([]malgo.Backend{platformBackend()}, malgo.ContextConfig{}, nil)
	if err != nil {
		return errors.New(err).
			Component("audio").
			Category(errors.CategoryDevice).
			Context("operation", "init_context").
			Build()
	}
	m.ctx = malgoCtx
	m.rate = sampleRate

	frameBytes := m.spec.Format.BytesPerSample() * m.spec.Channels
	m.ring = ringbuffer.New(sampleRate * frameBytes * ringSeconds).SetBlocking(true)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgoFormat(m.spec.Format)
	deviceConfig.Capture.Channels = uint32(m.spec.Channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1
	if id, ok := findMalgoDevice(m.ctx, malgo.Capture, m.spec.Device); ok {
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, framecount uint32) {
			if m.stopped.Load() {
				return
			}
			_, _ = m.ring.Write(pInput)
		},
		Stop: func() {
			if !m.stopped.Load() {
				m.ring.CloseWriter()
			}
		},
	}

	device, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = m.ctx.Uninit()
		return errors.New(err).
			Component("audio").
			Category(errors.CategoryDevice).
			Context("device", m.spec.Device).
			Context("operation", "init_capture_device").
			Build()
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = m.ctx.Uninit()
		return errors.New(err).
			Component("audio").
			Category(errors.CategoryDevice).
			Context("operation", "start_capture_device").
			Build()
	}

	// miniaudio resamples internally when the hardware cannot do the
	// requested rate, so a rate mismatch here is a config error rather
	// than a FormatChangeError.
	return nil
}

func (m *malgoCapture) SampleFormat() SampleFormat { return m.spec.Format }
func (m *malgoCapture) Channels() int              { return m.spec.Channels }

func (m *malgoCapture) ReadFrames(buf []byte) (int, error) {
	return m.ring.Read(buf)
}

func (m *malgoCapture) Close() error {
	m.stopped.Store(true)
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.ring != nil {
		m.ring.CloseWriter()
	}
	if m.ctx != nil {
		err := m.ctx.Uninit()
		m.ctx.Free()
		m.ctx = nil
		return err
	}
	return nil
}

// malgoPlayback mirrors malgoCapture: WriteFrames feeds a blocking ring
// buffer that the device callback drains. A full ring is the backpressure
// path back to the playback worker.
type malgoPlayback struct {
	spec    DeviceSpec
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	ring    *ringbuffer.RingBuffer
	stopped atomic.Bool
}

func newMalgoPlayback(spec DeviceSpec) (PlaybackDevice, error) {
	if err := checkSoundcardFormat(spec.Format); err != nil {
		return nil, err
	}
	return &malgoPlayback{spec: spec}, nil
}

func (m *malgoPlayback) Open(sampleRate int) error {
	malgoCtx, err := malgo.InitContext([]malgo.Backend{platformBackend()}, malgo.ContextConfig{}, nil)
	if err != nil {
		return errors.New(err).
			Component("audio").
			Category(errors.CategoryDevice).
			Context("operation", "init_context").
			Build()
	}
	m.ctx = malgoCtx

	frameBytes := m.spec.Format.BytesPerSample() * m.spec.Channels
	m.ring = ringbuffer.New(sampleRate * frameBytes * ringSeconds).SetBlocking(true)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgoFormat(m.spec.Format)
	deviceConfig.Playback.Channels = uint32(m.spec.Channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1
	if id, ok := findMalgoDevice(m.ctx, malgo.Playback, m.spec.Device); ok {
		deviceConfig.Playback.DeviceID = id.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, framecount uint32) {
			if m.stopped.Load() {
				return
			}
			n, _ := m.ring.Read(pOutput)
			// Underrun: pad with silence rather than replaying stale data.
			for i := n; i < len(pOutput); i++ {
				pOutput[i] = 0
			}
		},
	}

	device, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = m.ctx.Uninit()
		return errors.New(err).
			Component("audio").
			Category(errors.CategoryDevice).
			Context("device", m.spec.Device).
			Context("operation", "init_playback_device").
			Build()
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = m.ctx.Uninit()
		return errors.New(err).
			Component("audio").
			Category(errors.CategoryDevice).
			Context("operation", "start_playback_device").
			Build()
	}
	return nil
}

func (m *malgoPlayback) SampleFormat() SampleFormat { return m.spec.Format }
func (m *malgoPlayback) Channels() int              { return m.spec.Channels }

func (m *malgoPlayback) WriteFrames(buf []byte) (int, error) {
	return m.ring.Write(buf)
}

func (m *malgoPlayback) BufferLevel() int {
	if m.ring == nil {
		return 0
	}
	frameBytes := m.spec.Format.BytesPerSample() * m.spec.Channels
	return m.ring.Length() / frameBytes
}

func (m *malgoPlayback) Close() error {
	m.stopped.Store(true)
	if m.ring != nil {
		m.ring.CloseWriter()
	}
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		err := m.ctx.Uninit()
		m.ctx.Free()
		m.ctx = nil
		return err
	}
	return nil
}

// platformBackend returns the appropriate backend for the current platform
func platformBackend() malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa
	case "windows":
		return malgo.BackendWasapi
	case "darwin":
		return malgo.BackendCoreaudio
	default:
		return malgo.BackendNull
	}
}

func malgoFormat(f SampleFormat) malgo.FormatType {
	switch f {
	case FormatS16LE:
		return malgo.FormatS16
	case FormatS24LE3:
		return malgo.FormatS24
	case FormatS32LE:
		return malgo.FormatS32
	case FormatFloat32LE:
		return malgo.FormatF32
	default:
		return malgo.FormatUnknown
	}
}

// checkSoundcardFormat rejects formats miniaudio has no native carrier for.
// S24LE in a 4 byte container and FLOAT64LE remain available on file devices.
func checkSoundcardFormat(f SampleFormat) error {
	if malgoFormat(f) == malgo.FormatUnknown {
		return errors.Newf("sample format %s is not supported on soundcard devices", f).
			Component("audio").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// findMalgoDevice resolves a device by name, falling back to the backend
// default when the name is empty or not found.
func findMalgoDevice(ctx *malgo.AllocatedContext, kind malgo.DeviceType, name string) (malgo.DeviceID, bool) {
	var zero malgo.DeviceID
	if name == "" || name == "default" {
		return zero, false
	}
	devices, err := ctx.Devices(kind)
	if err != nil {
		return zero, false
	}
	for i := range devices {
		if strings.Contains(devices[i].Name(), name) {
			return devices[i].ID, true
		}
	}
	return zero, false
}

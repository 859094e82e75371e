package engine

import (
	"io"
	"log/slog"
	"time"

	"github.com/jtoivane/auradsp/internal/audio"
	"github.com/jtoivane/auradsp/internal/config"
	"github.com/jtoivane/auradsp/internal/errors"
	"github.com/jtoivane/auradsp/internal/status"
)

// captureArgs bundles everything the capture worker needs at spawn.
type captureArgs struct {
	cfg      *config.Config
	factory  audio.CaptureFactory
	out      chan<- *audio.Chunk
	barrier  *Barrier
	statusCh chan<- StatusMessage
	commands <-chan CommandMessage
	stop     <-chan struct{}
	capStat  *status.CaptureStatus
	logger   *slog.Logger
}

// runCapture spawns the capture worker and returns its done channel.
//
// The worker acquires the device, signals CaptureReady, waits on the
// startup barrier, then loops: read one chunk worth of frames, convert to
// the internal float format, optionally resample for rate adjustment, and
// emit on the capture queue. A blocking send is the backpressure path.
// On any exit path the output channel is closed so the downstream workers
// drain, and the barrier is always waited exactly once.
func runCapture(args captureArgs) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				args.logger.Error("panic in capture worker", "panic", r)
			}
		}()
		captureLoop(args)
	}()
	return done
}

func captureLoop(args captureArgs) {
	devices := args.cfg.Devices
	spec := devices.Capture.Spec()

	fail := func(msg StatusMessage) {
		args.statusCh <- msg
		args.barrier.Wait()
		close(args.out)
	}

	device, err := args.factory(spec)
	if err != nil {
		args.logger.Error("capture device setup failed", "error", err)
		fail(StatusMessage{Kind: StatusCaptureError, Message: err.Error()})
		return
	}
	if err := device.Open(devices.Samplerate); err != nil {
		args.logger.Error("capture device open failed", "error", err)
		fail(StatusMessage{Kind: StatusCaptureError, Message: err.Error()})
		return
	}
	defer func() {
		if err := device.Close(); err != nil {
			args.logger.Warn("capture device close failed", "error", err)
		}
	}()

	args.statusCh <- StatusMessage{Kind: StatusCaptureReady}
	args.barrier.Wait()
	args.capStat.SetState(status.StateRunning)
	args.logger.Debug("capture running")

	defer close(args.out)

	format := device.SampleFormat()
	channels := devices.Capture.Channels
	frameBytes := format.BytesPerSample() * channels
	readBuf := make([]byte, devices.Chunksize*frameBytes)

	resampler := audio.NewResampler(channels)
	speed := 1.0

	// pending accumulates decoded (and possibly resampled) frames until a
	// full chunk is available.
	pending := make([][]audio.Sample, channels)

	meter := newCaptureMeter(args.capStat, channels)
	eof := false

	for !eof {
		// React to commands between reads, never mid-chunk.
		select {
		case cmd := <-args.commands:
			switch cmd.Kind {
			case CommandExit:
				args.logger.Debug("capture exit requested")
				args.statusCh <- StatusMessage{Kind: StatusCaptureDone}
				return
			case CommandSetSpeed:
				speed = cmd.Speed
				resampler.SetRatio(cmd.Speed)
				args.capStat.SetRateAdjust(cmd.Speed)
			}
		case <-args.stop:
			return
		default:
		}

		n, err := device.ReadFrames(readBuf)
		switch {
		case err == nil:
		case err == io.EOF:
			eof = true
		default:
			var fc *audio.FormatChangeError
			if errors.As(err, &fc) {
				args.logger.Warn("capture format changed", "rate", fc.Rate)
				args.statusCh <- StatusMessage{Kind: StatusCaptureFormatChange, Rate: fc.Rate}
				return
			}
			args.logger.Error("capture read failed", "error", err)
			args.statusCh <- StatusMessage{Kind: StatusCaptureError, Message: err.Error()}
			return
		}

		frames := n / frameBytes
		if frames > 0 {
			decoded := audio.NewChunk(frames, channels)
			if err := audio.DecodeFrames(decoded, readBuf[:frames*frameBytes], format); err != nil {
				args.statusCh <- StatusMessage{Kind: StatusCaptureError, Message: err.Error()}
				return
			}
			meter.add(decoded, frames)

			waveforms := decoded.Waveforms
			if devices.EnableRateAdjust {
				waveforms = resampler.Process(waveforms)
			}
			for ch := range pending {
				pending[ch] = append(pending[ch], waveforms[ch]...)
			}
		}

		if eof && devices.ExtraSamples > 0 {
			// Pre-roll silence flushes FIR and delay tails through the
			// pipeline before the stream ends.
			for ch := range pending {
				pending[ch] = append(pending[ch], make([]audio.Sample, devices.ExtraSamples)...)
			}
		}

		if !emitChunks(args, pending, devices.Chunksize, speed, eof) {
			return
		}
	}

	args.logger.Info("capture finished")
	args.statusCh <- StatusMessage{Kind: StatusCaptureDone}
}

// emitChunks sends every complete chunk in pending, plus a final partial
// chunk when flushing at end of stream. Returns false when the run is
// being torn down.
func emitChunks(args captureArgs, pending [][]audio.Sample, chunksize int, speed float64, flush bool) bool {
	channels := len(pending)
	for len(pending[0]) >= chunksize || (flush && len(pending[0]) > 0) {
		valid := chunksize
		if len(pending[0]) < chunksize {
			valid = len(pending[0])
		}
		chunk := audio.NewChunk(chunksize, channels)
		chunk.ValidFrames = valid
		chunk.RateAdjust = speed
		for ch := range pending {
			copy(chunk.Waveforms[ch], pending[ch][:valid])
			pending[ch] = pending[ch][valid:]
		}
		select {
		case args.out <- chunk:
		case <-args.stop:
			return false
		}
	}
	return true
}

// captureMeter aggregates the measured sample rate and signal levels,
// publishing at the configured update interval.
type captureMeter struct {
	stat       *status.CaptureStatus
	interval   time.Duration
	lastUpdate time.Time
	frames     int
	rms        []float64
	peak       []float64
}

func newCaptureMeter(stat *status.CaptureStatus, channels int) *captureMeter {
	interval := time.Duration(stat.UpdateIntervalMS()) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	return &captureMeter{
		stat:       stat,
		interval:   interval,
		lastUpdate: time.Now(),
		rms:        make([]float64, channels),
		peak:       make([]float64, channels),
	}
}

func (m *captureMeter) add(chunk *audio.Chunk, frames int) {
	m.frames += frames
	for ch := 0; ch < chunk.Channels; ch++ {
		if r := chunk.ChannelRMS(ch); r > m.rms[ch] {
			m.rms[ch] = r
		}
		if p := chunk.ChannelPeak(ch); p > m.peak[ch] {
			m.peak[ch] = p
		}
	}
	now := time.Now()
	if elapsed := now.Sub(m.lastUpdate); elapsed >= m.interval {
		measured := int(float64(m.frames) / elapsed.Seconds())
		m.stat.SetLevels(measured, m.rms, m.peak)
		m.lastUpdate = now
		m.frames = 0
		for ch := range m.rms {
			m.rms[ch] = 0
			m.peak[ch] = 0
		}
	}
}

package engine

import (
	"log/slog"
	"time"

	"github.com/jtoivane/auradsp/internal/audio"
	"github.com/jtoivane/auradsp/internal/config"
	"github.com/jtoivane/auradsp/internal/errors"
	"github.com/jtoivane/auradsp/internal/status"
)

// playbackArgs bundles everything the playback worker needs at spawn.
type playbackArgs struct {
	cfg      *config.Config
	factory  audio.PlaybackFactory
	in       <-chan *audio.Chunk
	barrier  *Barrier
	statusCh chan<- StatusMessage
	stop     <-chan struct{}
	pbStat   *status.PlaybackStatus
	metrics  Metrics
	logger   *slog.Logger
}

// runPlayback spawns the playback worker and returns its done channel.
//
// The worker acquires the device, signals PlaybackReady, waits on the
// startup barrier, then dequeues chunks, converts them to the device
// format (counting hard clips) and writes them out. When the queue closes
// it drains naturally and reports PlaybackDone.
func runPlayback(args playbackArgs) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				args.logger.Error("panic in playback worker", "panic", r)
			}
		}()
		playbackLoop(args)
	}()
	return done
}

func playbackLoop(args playbackArgs) {
	devices := args.cfg.Devices
	spec := devices.Playback.Spec()

	device, err := args.factory(spec)
	if err != nil {
		args.logger.Error("playback device setup failed", "error", err)
		args.statusCh <- StatusMessage{Kind: StatusPlaybackError, Message: err.Error()}
		args.barrier.Wait()
		return
	}
	if err := device.Open(devices.Samplerate); err != nil {
		args.logger.Error("playback device open failed", "error", err)
		args.statusCh <- StatusMessage{Kind: StatusPlaybackError, Message: err.Error()}
		args.barrier.Wait()
		return
	}
	defer func() {
		if err := device.Close(); err != nil {
			args.logger.Warn("playback device close failed", "error", err)
		}
	}()

	args.statusCh <- StatusMessage{Kind: StatusPlaybackReady}
	args.barrier.Wait()
	args.logger.Debug("playback running")

	format := device.SampleFormat()
	channels := devices.Playback.Channels
	frameBytes := format.BytesPerSample() * channels
	writeBuf := make([]byte, devices.Chunksize*frameBytes)

	meter := newPlaybackMeter(args.pbStat, channels)

	for {
		var chunk *audio.Chunk
		var ok bool
		select {
		case chunk, ok = <-args.in:
			if !ok {
				args.logger.Info("playback finished")
				args.statusCh <- StatusMessage{Kind: StatusPlaybackDone}
				return
			}
		case <-args.stop:
			return
		}

		n, clipped, err := audio.EncodeFrames(writeBuf, chunk, format)
		if err != nil {
			args.statusCh <- StatusMessage{Kind: StatusPlaybackError, Message: err.Error()}
			return
		}
		if clipped > 0 {
			args.pbStat.AddClippedSamples(clipped)
		}

		if _, err := device.WriteFrames(writeBuf[:n]); err != nil {
			var fc *audio.FormatChangeError
			if errors.As(err, &fc) {
				args.logger.Warn("playback format changed", "rate", fc.Rate)
				args.statusCh <- StatusMessage{Kind: StatusPlaybackFormatChange, Rate: fc.Rate}
				return
			}
			args.logger.Error("playback write failed", "error", err)
			args.statusCh <- StatusMessage{Kind: StatusPlaybackError, Message: err.Error()}
			return
		}

		level := device.BufferLevel()
		args.pbStat.SetBufferLevel(level)
		meter.add(chunk)
		if args.metrics != nil {
			args.metrics.RecordWrite(clipped, level)
		}
	}
}

// playbackMeter aggregates per-channel signal levels, publishing once a
// second; the configured update interval is not used here.
type playbackMeter struct {
	stat       *status.PlaybackStatus
	interval   time.Duration
	lastUpdate time.Time
	rms        []float64
	peak       []float64
}

func newPlaybackMeter(stat *status.PlaybackStatus, channels int) *playbackMeter {
	return &playbackMeter{
		stat:       stat,
		interval:   time.Second,
		lastUpdate: time.Now(),
		rms:        make([]float64, channels),
		peak:       make([]float64, channels),
	}
}

func (m *playbackMeter) add(chunk *audio.Chunk) {
	for ch := 0; ch < chunk.Channels && ch < len(m.rms); ch++ {
		if r := chunk.ChannelRMS(ch); r > m.rms[ch] {
			m.rms[ch] = r
		}
		if p := chunk.ChannelPeak(ch); p > m.peak[ch] {
			m.peak[ch] = p
		}
	}
	now := time.Now()
	if now.Sub(m.lastUpdate) >= m.interval {
		m.stat.SetLevels(m.rms, m.peak)
		m.lastUpdate = now
		for ch := range m.rms {
			m.rms[ch] = 0
			m.peak[ch] = 0
		}
	}
}

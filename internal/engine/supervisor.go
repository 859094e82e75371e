package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jtoivane/auradsp/internal/audio"
	"github.com/jtoivane/auradsp/internal/config"
	"github.com/jtoivane/auradsp/internal/errors"
	"github.com/jtoivane/auradsp/internal/logging"
	"github.com/jtoivane/auradsp/internal/status"
)

// ExitState tells the outer loop what to do after a run.
type ExitState int

const (
	// ExitStateExit ends the process.
	ExitStateExit ExitState = iota
	// ExitStateRestart starts a new run with whatever is in the pending
	// config slot, or waits for one in wait mode.
	ExitStateRestart
)

// Metrics is the optional observability hook for the workers.
type Metrics interface {
	RecordChunk(duration time.Duration)
	RecordWrite(clipped, bufferLevel int)
}

// statusPollInterval is the supervisor's timed-receive interval; between
// messages it polls the reload and exit flags.
const statusPollInterval = 100 * time.Millisecond

// Engine owns the shared state and runs the three-worker pipeline. One
// Engine serves the whole process lifetime across restarts.
type Engine struct {
	// CaptureFactory and PlaybackFactory build the devices; swappable
	// for tests and alternative backends.
	CaptureFactory  audio.CaptureFactory
	PlaybackFactory audio.PlaybackFactory
	// Metrics is optional; nil disables the hooks.
	Metrics Metrics

	shared *status.Shared
	logger *slog.Logger

	mu    sync.Mutex
	runID uuid.UUID
}

// New creates an engine around the shared state with the default device
// factories.
func New(shared *status.Shared) *Engine {
	logger := logging.ForService("engine")
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		CaptureFactory:  audio.NewCaptureDevice,
		PlaybackFactory: audio.NewPlaybackDevice,
		shared:          shared,
		logger:          logger,
	}
}

// Shared exposes the engine's shared state for the control plane.
func (e *Engine) Shared() *status.Shared { return e.shared }

// RunID identifies the current run. Parameter-level reconfigurations keep
// the ID; device-level changes and restarts mint a new one.
func (e *Engine) RunID() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}

// Run executes one engine run: spawn the workers, synchronise their start
// through the 4-party barrier, then supervise until exit or restart.
func (e *Engine) Run() (ExitState, error) {
	e.shared.Capture.SetState(status.StateStarting)
	defer e.shared.Capture.SetState(status.StateInactive)

	conf := e.shared.NewConfig.Get()
	if conf == nil {
		return ExitStateExit, errors.Newf("tried to start without a configuration").
			Component("engine").
			Category(errors.CategoryState).
			Build()
	}

	e.mu.Lock()
	e.runID = uuid.New()
	runID := e.runID
	e.mu.Unlock()
	e.logger.Info("starting run", "run_id", runID.String(),
		"samplerate", conf.Devices.Samplerate, "chunksize", conf.Devices.Chunksize)

	capQueue := make(chan *audio.Chunk, conf.Devices.Queuelimit)
	pbQueue := make(chan *audio.Chunk, conf.Devices.Queuelimit)
	statusCh := make(chan StatusMessage, 64)
	commandCh := make(chan CommandMessage, 16)
	pipeConfCh := make(chan PipelineChange, 16)
	barrier := NewBarrier(4)

	// stop breaks the workers out of blocking queue operations on error
	// teardown. Clean shutdowns drain through channel closes instead.
	stop := make(chan struct{})
	var stopOnce sync.Once
	stopRun := func() { stopOnce.Do(func() { close(stop) }) }
	defer stopRun()

	e.shared.Playback.Reset()

	procDone := runProcessing(processingArgs{
		cfg:      conf,
		in:       capQueue,
		out:      pbQueue,
		pipeConf: pipeConfCh,
		barrier:  barrier,
		statusCh: statusCh,
		stop:     stop,
		shared:   e.shared,
		metrics:  e.Metrics,
		logger:   e.logger.With("worker", "processing"),
	})
	pbDone := runPlayback(playbackArgs{
		cfg:      conf,
		factory:  e.PlaybackFactory,
		in:       pbQueue,
		barrier:  barrier,
		statusCh: statusCh,
		stop:     stop,
		pbStat:   e.shared.Playback,
		metrics:  e.Metrics,
		logger:   e.logger.With("worker", "playback"),
	})
	e.shared.Capture.SetUsedChannels(conf.UsedCaptureChannels())
	capDone := runCapture(captureArgs{
		cfg:      conf,
		factory:  e.CaptureFactory,
		out:      capQueue,
		barrier:  barrier,
		statusCh: statusCh,
		commands: commandCh,
		stop:     stop,
		capStat:  e.shared.Capture,
		logger:   e.logger.With("worker", "capture"),
	})

	activeConf := conf
	e.shared.ActiveConfig.Set(activeConf)
	e.shared.NewConfig.Set(nil)
	e.shared.Reload.Take()
	e.shared.Exit.Set(status.ExitNone)

	sendExitToCapture := func() {
		select {
		case commandCh <- CommandMessage{Kind: CommandExit}:
		default:
			e.logger.Debug("capture worker no longer accepting commands")
		}
	}
	join := func(chans ...<-chan struct{}) {
		for _, c := range chans {
			<-c
		}
	}
	finishRun := func(clearPending bool) {
		if clearPending {
			e.shared.NewConfig.Set(nil)
		}
		e.shared.PreviousConfig.Set(activeConf)
	}

	pbReady := false
	capReady := false
	isStarting := true

	for {
		if e.shared.Reload.Take() {
			e.logger.Debug("reloading configuration")
			newConf, err := e.loadNewConfig()
			if err != nil {
				// Invalid new config: log it, clear the pending slot and
				// keep running on the old one.
				e.logger.Error("config reload failed", "error", err)
				e.shared.NewConfig.Set(nil)
			} else {
				change := config.Diff(activeConf, newConf)
				e.logger.Info("config diff classified", "change", change.Kind.String())
				switch change.Kind {
				case config.ChangeNone:
					e.shared.NewConfig.Set(nil)
				case config.ChangeDevices:
					e.logger.Info("devices changed, restart required")
					sendExitToCapture()
					if isStarting {
						barrier.Wait()
						isStarting = false
					}
					join(pbDone, capDone, procDone)
					e.shared.NewConfig.Set(newConf)
					return ExitStateRestart, nil
				default:
					select {
					case pipeConfCh <- PipelineChange{Change: change, Config: newConf}:
						activeConf = newConf
						e.shared.ActiveConfig.Set(newConf)
						e.shared.NewConfig.Set(nil)
						e.shared.Capture.SetUsedChannels(newConf.UsedCaptureChannels())
					default:
						// A previous reload is still unconsumed; keep the
						// pending slot so the next pass retries.
						e.logger.Warn("pipeline config channel full, retrying")
						e.shared.Reload.Set()
					}
				}
			}
		}

		if !isStarting {
			if e.shared.Exit.TakeIf(status.ExitRequestExit) {
				e.logger.Debug("exit requested")
				sendExitToCapture()
				join(pbDone, capDone, procDone)
				e.shared.PreviousConfig.Set(activeConf)
				return ExitStateExit, nil
			}
			if e.shared.Exit.TakeIf(status.ExitRequestStop) {
				e.logger.Debug("stop requested")
				sendExitToCapture()
				join(pbDone, capDone, procDone)
				finishRun(true)
				return ExitStateRestart, nil
			}
		}

		select {
		case msg := <-statusCh:
			switch msg.Kind {
			case StatusPlaybackReady:
				e.logger.Debug("playback ready")
				pbReady = true
				if capReady {
					barrier.Wait()
					isStarting = false
					e.shared.Processing.SetStopReason(status.StopReason{Kind: status.StopNone})
					e.logger.Info("all workers running")
				}
			case StatusCaptureReady:
				e.logger.Debug("capture ready")
				capReady = true
				if pbReady {
					barrier.Wait()
					isStarting = false
					e.shared.Processing.SetStopReason(status.StopReason{Kind: status.StopNone})
					e.logger.Info("all workers running")
				}
			case StatusPlaybackError:
				e.logger.Error("playback error", "message", msg.Message)
				sendExitToCapture()
				if isStarting {
					barrier.Wait()
				}
				stopRun()
				e.shared.Processing.SetStopReason(status.StopReason{Kind: status.StopPlaybackError, Message: msg.Message})
				join(capDone, procDone, pbDone)
				finishRun(true)
				return ExitStateRestart, nil
			case StatusCaptureError:
				e.logger.Error("capture error", "message", msg.Message)
				if isStarting {
					barrier.Wait()
				}
				e.shared.Processing.SetStopReason(status.StopReason{Kind: status.StopCaptureError, Message: msg.Message})
				join(pbDone, capDone, procDone)
				finishRun(true)
				return ExitStateRestart, nil
			case StatusPlaybackFormatChange:
				e.logger.Error("playback stopped due to external format change", "rate", msg.Rate)
				sendExitToCapture()
				if isStarting {
					barrier.Wait()
				}
				stopRun()
				// The pending config slot is left untouched here; only the
				// stop reason records the new rate.
				e.shared.Processing.SetStopReason(status.StopReason{Kind: status.StopPlaybackFormatChange, Rate: msg.Rate})
				join(capDone, procDone, pbDone)
				finishRun(false)
				return ExitStateRestart, nil
			case StatusCaptureFormatChange:
				e.logger.Error("capture stopped due to external format change", "rate", msg.Rate)
				if isStarting {
					barrier.Wait()
				}
				e.shared.Processing.SetStopReason(status.StopReason{Kind: status.StopCaptureFormatChange, Rate: msg.Rate})
				join(pbDone, capDone, procDone)
				finishRun(true)
				return ExitStateRestart, nil
			case StatusPlaybackDone:
				e.logger.Info("playback finished")
				e.shared.Processing.SetStopReasonIfNone(status.StopReason{Kind: status.StopDone})
				join(capDone, procDone, pbDone)
				e.shared.PreviousConfig.Set(activeConf)
				return ExitStateRestart, nil
			case StatusCaptureDone:
				e.logger.Info("capture finished")
			case StatusSetSpeed:
				select {
				case commandCh <- CommandMessage{Kind: CommandSetSpeed, Speed: msg.Speed}:
				default:
					e.logger.Debug("capture worker no longer accepting commands")
				}
			}
		case <-time.After(statusPollInterval):
			if channelClosed(capDone) && channelClosed(pbDone) && channelClosed(procDone) {
				e.logger.Warn("capture, playback and processing workers have all exited")
				e.shared.Processing.SetStopReason(status.StopReason{
					Kind:    status.StopUnknownError,
					Message: "capture, playback and processing workers have exited",
				})
				return ExitStateRestart, nil
			}
		}
	}
}

// loadNewConfig resolves the configuration for a reload: the pending slot
// wins, otherwise the config file path is re-read. Either way the result
// is validated.
func (e *Engine) loadNewConfig() (*config.Config, error) {
	if cfg := e.shared.NewConfig.Get(); cfg != nil {
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	path := e.shared.ConfigPath.Get()
	if path == "" {
		return nil, errors.Newf("no new config supplied and no path set").
			Component("engine").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return config.LoadValidate(path)
}

func channelClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// MainLoop runs the engine until exit, restarting across device-level
// reconfigurations. In wait mode an empty pending slot blocks until the
// control plane supplies a configuration; otherwise it ends the process.
// The return value is the process exit code.
func (e *Engine) MainLoop(wait bool) int {
	const exitOK = 0
	const exitProcessingError = 102

	for {
		for e.shared.NewConfig.IsEmpty() {
			if !wait {
				e.logger.Debug("no config and not in wait mode, exiting")
				return exitOK
			}
			if e.shared.Exit.TakeIf(status.ExitRequestExit) {
				return exitOK
			}
			if e.shared.Reload.Take() {
				cfg, err := e.loadNewConfig()
				if err != nil {
					e.logger.Error("could not load config", "error", err)
				} else {
					e.shared.NewConfig.Set(cfg)
				}
			}
			time.Sleep(statusPollInterval)
		}

		state, err := e.Run()
		e.shared.ActiveConfig.Set(nil)
		switch {
		case err != nil:
			e.logger.Error("run failed", "error", err)
			if !wait {
				return exitProcessingError
			}
		case state == ExitStateExit:
			e.logger.Info("exiting")
			return exitOK
		default:
			e.logger.Debug("restarting")
		}
	}
}

package engine

import (
	"log/slog"
	"time"

	"github.com/jtoivane/auradsp/internal/audio"
	"github.com/jtoivane/auradsp/internal/config"
	"github.com/jtoivane/auradsp/internal/pipeline"
	"github.com/jtoivane/auradsp/internal/status"
)

// processingArgs bundles everything the processing worker needs at spawn.
type processingArgs struct {
	cfg      *config.Config
	in       <-chan *audio.Chunk
	out      chan<- *audio.Chunk
	pipeConf <-chan PipelineChange
	barrier  *Barrier
	statusCh chan<- StatusMessage
	stop     <-chan struct{}
	shared   *status.Shared
	metrics  Metrics
	logger   *slog.Logger
}

// runProcessing spawns the processing worker and returns its done channel.
//
// The worker builds the pipeline, joins the startup barrier as the third
// participant, then pulls chunks from the capture queue, applies the
// pipeline and pushes to the playback queue. Reconfigurations arriving on
// the pipeconf channel are applied at chunk boundaries only. It also runs
// the rate-adjust controller, since it is the only worker that sees both
// sides of the queues.
func runProcessing(args processingArgs) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				args.logger.Error("panic in processing worker", "panic", r)
			}
		}()
		processingLoop(args)
	}()
	return done
}

func processingLoop(args processingArgs) {
	defer close(args.out)

	pipe, err := pipeline.Build(args.cfg, args.shared.Params)
	if err != nil {
		// The config was validated, so a build failure is a defect; treat
		// it like an upstream error so the supervisor tears down the run.
		args.logger.Error("pipeline build failed", "error", err)
		args.statusCh <- StatusMessage{Kind: StatusCaptureError, Message: err.Error()}
		args.barrier.Wait()
		drain(args.in, args.stop)
		return
	}

	args.barrier.Wait()
	args.logger.Debug("processing running")

	cfg := args.cfg
	rc := newRateController(cfg.Devices.TargetLevel, cfg.Devices.AdjustPeriod)

	for {
		var chunk *audio.Chunk
		var ok bool
		select {
		case chunk, ok = <-args.in:
			if !ok {
				return
			}
		case <-args.stop:
			return
		}

		// Apply any pending reconfiguration before touching the chunk.
		select {
		case change := <-args.pipeConf:
			switch change.Change.Kind {
			case config.ChangePipeline:
				newPipe, err := pipeline.Build(change.Config, args.shared.Params)
				if err != nil {
					args.logger.Error("pipeline rebuild failed", "error", err)
					args.statusCh <- StatusMessage{Kind: StatusCaptureError, Message: err.Error()}
					drain(args.in, args.stop)
					return
				}
				pipe = newPipe
				cfg = change.Config
				args.logger.Info("pipeline rebuilt")
			default:
				if err := pipe.Update(change.Change, change.Config); err != nil {
					args.logger.Error("pipeline update failed", "error", err)
					args.statusCh <- StatusMessage{Kind: StatusCaptureError, Message: err.Error()}
					drain(args.in, args.stop)
					return
				}
				cfg = change.Config
				args.logger.Info("pipeline parameters updated", "change", change.Change.Kind.String())
			}
		default:
		}

		start := time.Now()
		if err := pipe.Process(chunk); err != nil {
			args.logger.Error("pipeline processing failed", "error", err)
			args.statusCh <- StatusMessage{Kind: StatusCaptureError, Message: err.Error()}
			drain(args.in, args.stop)
			return
		}
		if args.metrics != nil {
			args.metrics.RecordChunk(time.Since(start))
		}

		if cfg.Devices.EnableRateAdjust {
			// Queue depth plus the device-side fill is the full picture of
			// how far ahead capture is running.
			level := args.shared.Playback.BufferLevel() + len(args.out)*cfg.Devices.Chunksize
			if speed, ready := rc.sample(level, time.Now()); ready {
				args.statusCh <- StatusMessage{Kind: StatusSetSpeed, Speed: speed}
			}
		}

		select {
		case args.out <- chunk:
		case <-args.stop:
			return
		}
	}
}

// drain consumes the input queue until it closes so a blocked capture
// worker can always make progress towards its own exit path.
func drain(in <-chan *audio.Chunk, stop <-chan struct{}) {
	for {
		select {
		case _, ok := <-in:
			if !ok {
				return
			}
		case <-stop:
			return
		}
	}
}

// Package pipeline builds and runs the ordered graph of mixers and
// per-channel filter chains described by the configuration.
package pipeline

import (
	"log/slog"
	"math"

	"github.com/jtoivane/auradsp/internal/audio"
	"github.com/jtoivane/auradsp/internal/config"
	"github.com/jtoivane/auradsp/internal/dsp"
	"github.com/jtoivane/auradsp/internal/errors"
	"github.com/jtoivane/auradsp/internal/logging"
	"github.com/jtoivane/auradsp/internal/status"
)

func dbToLinear(db float64) float64 {
	return math.Pow(10.0, db/20.0)
}

// step is one pipeline stage applied to a chunk in declared order.
type step interface {
	process(chunk *audio.Chunk) error
}

type mixerStep struct {
	mixer *Mixer
}

func (s *mixerStep) process(chunk *audio.Chunk) error {
	return s.mixer.Process(chunk)
}

type filterStep struct {
	channel int
	filters []dsp.Filter
}

func (s *filterStep) process(chunk *audio.Chunk) error {
	if s.channel >= chunk.Channels {
		return errors.Newf("filter step channel %d out of range, chunk has %d channels", s.channel, chunk.Channels).
			Component("pipeline").
			Category(errors.CategoryAudio).
			Build()
	}
	waveform := chunk.Waveforms[s.channel]
	for _, f := range s.filters {
		if err := f.ProcessWaveform(waveform); err != nil {
			return err
		}
	}
	return nil
}

// Pipeline is the runtime form of the configured processing graph.
type Pipeline struct {
	steps      []step
	sampleRate int
	chunkSize  int
	params     *status.ProcessingParams
	logger     *slog.Logger
}

// Build instantiates every mixer and filter of the configured pipeline.
// The configuration must already be validated.
func Build(cfg *config.Config, params *status.ProcessingParams) (*Pipeline, error) {
	logger := logging.ForService("pipeline")
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		sampleRate: cfg.Devices.Samplerate,
		chunkSize:  cfg.Devices.Chunksize,
		params:     params,
		logger:     logger,
	}
	for i, stepCfg := range cfg.Pipeline {
		switch stepCfg.Type {
		case config.StepMixer:
			mixerCfg, ok := cfg.Mixers[stepCfg.Name]
			if !ok {
				return nil, errors.Newf("pipeline step %d: unknown mixer %q", i, stepCfg.Name).
					Component("pipeline").
					Category(errors.CategoryConfiguration).
					Build()
			}
			mixer, err := NewMixer(stepCfg.Name, mixerCfg)
			if err != nil {
				return nil, err
			}
			p.steps = append(p.steps, &mixerStep{mixer: mixer})
		case config.StepFilter:
			filters := make([]dsp.Filter, 0, len(stepCfg.Names))
			for _, name := range stepCfg.Names {
				filterCfg, ok := cfg.Filters[name]
				if !ok {
					return nil, errors.Newf("pipeline step %d: unknown filter %q", i, name).
						Component("pipeline").
						Category(errors.CategoryConfiguration).
						Build()
				}
				f, err := dsp.New(name, filterCfg, p.sampleRate, p.chunkSize, params)
				if err != nil {
					return nil, err
				}
				filters = append(filters, f)
			}
			p.steps = append(p.steps, &filterStep{channel: stepCfg.Channel, filters: filters})
		default:
			return nil, errors.Newf("pipeline step %d: unknown step type %q", i, stepCfg.Type).
				Component("pipeline").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}
	logger.Debug("pipeline built", "steps", len(p.steps))
	return p, nil
}

// Process runs the chunk through every step in declared order. Errors
// propagate to the processing worker and end the run.
func (p *Pipeline) Process(chunk *audio.Chunk) error {
	for _, s := range p.steps {
		if err := s.process(chunk); err != nil {
			return err
		}
	}
	return nil
}

// Update applies a parameter-level change in place. The step sequence and
// channel counts never change here; pipeline and device level diffs
// rebuild or restart instead.
func (p *Pipeline) Update(change config.Change, cfg *config.Config) error {
	switch change.Kind {
	case config.ChangeFilterParameters:
		wanted := make(map[string]bool, len(change.FilterNames))
		for _, name := range change.FilterNames {
			wanted[name] = true
		}
		for _, s := range p.steps {
			fs, ok := s.(*filterStep)
			if !ok {
				continue
			}
			for _, f := range fs.filters {
				if !wanted[f.Name()] {
					continue
				}
				filterCfg, ok := cfg.Filters[f.Name()]
				if !ok {
					// Filter removed from the catalog but still wired in
					// the unchanged pipeline; leave the instance as is.
					continue
				}
				if err := f.UpdateParameters(filterCfg); err != nil {
					return err
				}
				p.logger.Debug("filter parameters updated", "filter", f.Name())
			}
		}
		return nil
	case config.ChangeMixerParameters:
		for _, s := range p.steps {
			ms, ok := s.(*mixerStep)
			if !ok {
				continue
			}
			mixerCfg, ok := cfg.Mixers[ms.mixer.name]
			if !ok {
				continue
			}
			if err := ms.mixer.UpdateParameters(mixerCfg); err != nil {
				return err
			}
			p.logger.Debug("mixer parameters updated", "mixer", ms.mixer.name)
		}
		return nil
	default:
		return errors.Newf("change %s cannot be applied in place", change.Kind).
			Component("pipeline").
			Category(errors.CategoryState).
			Build()
	}
}

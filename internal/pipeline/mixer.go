package pipeline

import (
	"github.com/jtoivane/auradsp/internal/audio"
	"github.com/jtoivane/auradsp/internal/config"
	"github.com/jtoivane/auradsp/internal/errors"
)

// mixerSource is one resolved input term: source channel and linear gain.
type mixerSource struct {
	channel int
	scale   float64
}

// Mixer replaces the chunk's waveforms with a new channel set computed
// from a possibly sparse routing matrix.
type Mixer struct {
	name        string
	channelsIn  int
	channelsOut int
	// matrix[dest] lists the weighted sources feeding that output.
	matrix [][]mixerSource
}

// NewMixer resolves a mixer catalog entry into linear-gain routing terms.
func NewMixer(name string, cfg config.Mixer) (*Mixer, error) {
	if cfg.Channels.In <= 0 || cfg.Channels.Out <= 0 {
		return nil, errors.Newf("mixer %q: channel counts must be positive", name).
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}
	m := &Mixer{
		name:        name,
		channelsIn:  cfg.Channels.In,
		channelsOut: cfg.Channels.Out,
	}
	m.rebuild(cfg)
	return m, nil
}

func (m *Mixer) rebuild(cfg config.Mixer) {
	matrix := make([][]mixerSource, m.channelsOut)
	for _, mapping := range cfg.Mapping {
		if mapping.Dest < 0 || mapping.Dest >= m.channelsOut {
			continue
		}
		for _, src := range mapping.Sources {
			if src.Channel < 0 || src.Channel >= m.channelsIn {
				continue
			}
			scale := dbToLinear(src.Gain)
			if src.Inverted {
				scale = -scale
			}
			matrix[mapping.Dest] = append(matrix[mapping.Dest], mixerSource{
				channel: src.Channel,
				scale:   scale,
			})
		}
	}
	m.matrix = matrix
}

// UpdateParameters rebuilds the matrices from a new catalog entry with the
// same shape. Shape changes are a pipeline-level change and rejected here.
func (m *Mixer) UpdateParameters(cfg config.Mixer) error {
	if cfg.Channels.In != m.channelsIn || cfg.Channels.Out != m.channelsOut {
		return errors.Newf("mixer %q: channel counts changed from %dx%d to %dx%d, restart required",
			m.name, m.channelsIn, m.channelsOut, cfg.Channels.In, cfg.Channels.Out).
			Component("pipeline").
			Category(errors.CategoryState).
			Build()
	}
	m.rebuild(cfg)
	return nil
}

// Process computes the output channel set. Unrouted outputs are silent.
func (m *Mixer) Process(chunk *audio.Chunk) error {
	if chunk.Channels != m.channelsIn {
		return errors.Newf("mixer %q: expected %d channels, chunk has %d", m.name, m.channelsIn, chunk.Channels).
			Component("pipeline").
			Category(errors.CategoryAudio).
			Build()
	}
	out := make([][]audio.Sample, m.channelsOut)
	for dest := range out {
		out[dest] = make([]audio.Sample, chunk.Frames)
		for _, src := range m.matrix[dest] {
			in := chunk.Waveforms[src.channel]
			buf := out[dest]
			for i := range in {
				buf[i] += src.scale * in[i]
			}
		}
	}
	chunk.Waveforms = out
	chunk.Channels = m.channelsOut
	return nil
}

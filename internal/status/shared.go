package status

import (
	"sync"

	"github.com/jtoivane/auradsp/internal/config"
)

// ConfigSlot is a guarded optional configuration cell. The supervisor owns
// the active/new/previous slots; the remote control plane reads and writes
// them through this type only.
type ConfigSlot struct {
	mu  sync.Mutex
	cfg *config.Config
}

// Set stores a configuration (nil clears the slot).
func (s *ConfigSlot) Set(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// Get returns a deep copy of the slot contents, or nil when empty.
func (s *ConfigSlot) Get() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return config.Clone(s.cfg)
}

// Take returns a deep copy and clears the slot.
func (s *ConfigSlot) Take() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := config.Clone(s.cfg)
	s.cfg = nil
	return cfg
}

// IsEmpty reports whether the slot holds no configuration.
func (s *ConfigSlot) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg == nil
}

// PathSlot is a guarded optional string cell for the config file path.
type PathSlot struct {
	mu   sync.Mutex
	path string
}

// Set stores the path (empty string clears it).
func (s *PathSlot) Set(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
}

// Get returns the stored path.
func (s *PathSlot) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Shared bundles every cell exchanged between the supervisor, the workers
// and the control plane. One instance outlives all runs.
type Shared struct {
	Capture    *CaptureStatus
	Playback   *PlaybackStatus
	Params     *ProcessingParams
	Processing *ProcessingStatus

	Reload *ReloadFlag
	Exit   *ExitFlag

	ActiveConfig   *ConfigSlot
	NewConfig      *ConfigSlot
	PreviousConfig *ConfigSlot
	ConfigPath     *PathSlot
}

// NewShared builds the shared state with the given initial volume and
// mute settings and meter update interval.
func NewShared(initialVolume float64, initialMute bool, updateIntervalMS int) *Shared {
	return &Shared{
		Capture:        NewCaptureStatus(updateIntervalMS),
		Playback:       NewPlaybackStatus(),
		Params:         NewProcessingParams(initialVolume, initialMute),
		Processing:     NewProcessingStatus(),
		Reload:         &ReloadFlag{},
		Exit:           &ExitFlag{},
		ActiveConfig:   &ConfigSlot{},
		NewConfig:      &ConfigSlot{},
		PreviousConfig: &ConfigSlot{},
		ConfigPath:     &PathSlot{},
	}
}

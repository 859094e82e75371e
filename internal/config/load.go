package config

import (
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jtoivane/auradsp/internal/errors"
)

// Overrides carries command-line overrides applied on top of every loaded
// configuration. Nil fields leave the file values untouched.
type Overrides struct {
	Samplerate   *int
	ExtraSamples *int
	Channels     *int
	SampleFormat *string
}

var (
	overridesMu sync.RWMutex
	overrides   Overrides
)

// SetOverrides installs the process-wide CLI overrides.
func SetOverrides(ov Overrides) {
	overridesMu.Lock()
	defer overridesMu.Unlock()
	overrides = ov
}

func applyOverrides(cfg *Config) {
	overridesMu.RLock()
	ov := overrides
	overridesMu.RUnlock()

	if ov.Samplerate != nil {
		cfg.Devices.Samplerate = *ov.Samplerate
	}
	if ov.ExtraSamples != nil {
		cfg.Devices.ExtraSamples = *ov.ExtraSamples
	}
	if ov.Channels != nil {
		cfg.Devices.Capture.Channels = *ov.Channels
	}
	if ov.SampleFormat != nil {
		cfg.Devices.Capture.Format = *ov.SampleFormat
	}
}

// Load reads a configuration file, applies CLI overrides and fills in
// defaults. The result is not yet validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.New(err).
			Component("config").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New(err).
			Component("config").
			Category(errors.CategoryConfiguration).
			Context("path", path).
			Build()
	}

	applyOverrides(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// Parse decodes a configuration from YAML text, as supplied over the
// remote control protocol. CLI overrides do not apply here.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.New(err).
			Component("config").
			Category(errors.CategoryConfiguration).
			Build()
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadValidate loads and validates in one step.
func LoadValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal renders the configuration back to YAML for the remote control
// GetConfig reply.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Clone returns a deep copy of the configuration.
func Clone(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil
	}
	var out Config
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil
	}
	return &out
}

func applyDefaults(cfg *Config) {
	if cfg.Devices.Queuelimit == 0 {
		cfg.Devices.Queuelimit = 4
	}
	if cfg.Devices.AdjustPeriod == 0 {
		cfg.Devices.AdjustPeriod = 10
	}
	if cfg.Devices.TargetLevel == 0 {
		cfg.Devices.TargetLevel = cfg.Devices.Chunksize
	}
	if cfg.Devices.Playback.Channels == 0 {
		cfg.Devices.Playback.Channels = cfg.Devices.Capture.Channels
	}
}

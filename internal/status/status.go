// Package status holds the shared state between the engine workers and
// the control plane: status snapshots, the volume/mute parameters, the
// reload/exit flags and the configuration slots. Everything here is
// read-many / write-few and guarded; no chunk-rate data passes through.
package status

import (
	"sync"
	"sync/atomic"
)

// ProcessingState describes the capture side lifecycle.
type ProcessingState int

const (
	StateInactive ProcessingState = iota
	StateStarting
	StateRunning
	StateStalled
)

func (s ProcessingState) String() string {
	switch s {
	case StateInactive:
		return "Inactive"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStalled:
		return "Stalled"
	default:
		return "Unknown"
	}
}

// StopReasonKind enumerates why the last run ended.
type StopReasonKind int

const (
	StopNone StopReasonKind = iota
	StopDone
	StopCaptureError
	StopPlaybackError
	StopCaptureFormatChange
	StopPlaybackFormatChange
	StopUnknownError
)

func (k StopReasonKind) String() string {
	switch k {
	case StopNone:
		return "None"
	case StopDone:
		return "Done"
	case StopCaptureError:
		return "CaptureError"
	case StopPlaybackError:
		return "PlaybackError"
	case StopCaptureFormatChange:
		return "CaptureFormatChange"
	case StopPlaybackFormatChange:
		return "PlaybackFormatChange"
	case StopUnknownError:
		return "UnknownError"
	default:
		return "Unknown"
	}
}

// StopReason records the kind plus the device message or the new rate.
type StopReason struct {
	Kind    StopReasonKind
	Message string
	Rate    int
}

// CaptureStatus is the capture worker's aggregate view, updated at the
// configured update interval.
type CaptureStatus struct {
	mu                 sync.RWMutex
	measuredSamplerate int
	rateAdjust         float64
	updateIntervalMS   int
	signalRMS          []float64
	signalPeak         []float64
	usedChannels       []int
	state              ProcessingState
}

// NewCaptureStatus creates a capture status cell with the given update
// interval in milliseconds.
func NewCaptureStatus(updateIntervalMS int) *CaptureStatus {
	return &CaptureStatus{updateIntervalMS: updateIntervalMS}
}

// SetLevels stores the measured rate and the per-channel meters.
func (c *CaptureStatus) SetLevels(measuredRate int, rms, peak []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.measuredSamplerate = measuredRate
	c.signalRMS = append(c.signalRMS[:0], rms...)
	c.signalPeak = append(c.signalPeak[:0], peak...)
}

// SetRateAdjust stores the current rate-adjust factor.
func (c *CaptureStatus) SetRateAdjust(adjust float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rateAdjust = adjust
}

// SetState transitions the capture lifecycle state.
func (c *CaptureStatus) SetState(state ProcessingState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

// SetUsedChannels stores the channels contributing to the output.
func (c *CaptureStatus) SetUsedChannels(channels []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.usedChannels = append(c.usedChannels[:0], channels...)
}

// State returns the capture lifecycle state.
func (c *CaptureStatus) State() ProcessingState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// MeasuredSamplerate returns the last measured capture rate.
func (c *CaptureStatus) MeasuredSamplerate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.measuredSamplerate
}

// RateAdjust returns the current rate-adjust factor.
func (c *CaptureStatus) RateAdjust() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rateAdjust
}

// UpdateIntervalMS returns the meter update interval.
func (c *CaptureStatus) UpdateIntervalMS() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updateIntervalMS
}

// Levels returns copies of the per-channel RMS and peak meters.
func (c *CaptureStatus) Levels() (rms, peak []float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rms = append([]float64(nil), c.signalRMS...)
	peak = append([]float64(nil), c.signalPeak...)
	return rms, peak
}

// UsedChannels returns a copy of the used-channel set.
func (c *CaptureStatus) UsedChannels() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]int(nil), c.usedChannels...)
}

// PlaybackStatus is the playback worker's aggregate view.
type PlaybackStatus struct {
	mu             sync.RWMutex
	bufferLevel    int
	clippedSamples int
	signalRMS      []float64
	signalPeak     []float64
}

// NewPlaybackStatus creates an empty playback status cell.
func NewPlaybackStatus() *PlaybackStatus {
	return &PlaybackStatus{}
}

// SetBufferLevel stores the device buffer fill in frames.
func (p *PlaybackStatus) SetBufferLevel(frames int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bufferLevel = frames
}

// BufferLevel returns the device buffer fill in frames.
func (p *PlaybackStatus) BufferLevel() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bufferLevel
}

// AddClippedSamples accumulates the hard-clip counter.
func (p *PlaybackStatus) AddClippedSamples(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clippedSamples += n
}

// ClippedSamples returns the accumulated hard-clip count.
func (p *PlaybackStatus) ClippedSamples() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.clippedSamples
}

// SetLevels stores the per-channel meters.
func (p *PlaybackStatus) SetLevels(rms, peak []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signalRMS = append(p.signalRMS[:0], rms...)
	p.signalPeak = append(p.signalPeak[:0], peak...)
}

// Levels returns copies of the per-channel RMS and peak meters.
func (p *PlaybackStatus) Levels() (rms, peak []float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rms = append([]float64(nil), p.signalRMS...)
	peak = append([]float64(nil), p.signalPeak...)
	return rms, peak
}

// Reset clears the per-run counters.
func (p *PlaybackStatus) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bufferLevel = 0
	p.clippedSamples = 0
}

// ProcessingParams carries the control-plane volume and mute settings
// read by the Volume and Loudness filters once per chunk.
type ProcessingParams struct {
	mu     sync.RWMutex
	volume float64 // dB
	mute   bool
}

// NewProcessingParams seeds the parameters, typically from CLI flags.
func NewProcessingParams(volume float64, mute bool) *ProcessingParams {
	return &ProcessingParams{volume: volume, mute: mute}
}

// Volume returns the target volume in dB.
func (p *ProcessingParams) Volume() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.volume
}

// SetVolume updates the target volume in dB.
func (p *ProcessingParams) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
}

// Mute returns the mute flag.
func (p *ProcessingParams) Mute() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mute
}

// SetMute updates the mute flag.
func (p *ProcessingParams) SetMute(mute bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mute = mute
}

// ProcessingStatus records why the last run stopped.
type ProcessingStatus struct {
	mu         sync.RWMutex
	stopReason StopReason
}

// NewProcessingStatus creates a processing status cell.
func NewProcessingStatus() *ProcessingStatus {
	return &ProcessingStatus{}
}

// StopReason returns the recorded stop reason.
func (p *ProcessingStatus) StopReason() StopReason {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stopReason
}

// SetStopReason records the stop reason unconditionally.
func (p *ProcessingStatus) SetStopReason(r StopReason) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopReason = r
}

// SetStopReasonIfNone records the stop reason only when none is set yet.
func (p *ProcessingStatus) SetStopReasonIfNone(r StopReason) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopReason.Kind == StopNone {
		p.stopReason = r
	}
}

// Exit request values for the ExitFlag word.
const (
	ExitNone int32 = iota
	ExitRequestExit
	ExitRequestStop
)

// ExitFlag is the shared exit-request word.
type ExitFlag struct {
	value atomic.Int32
}

// Set stores an exit request.
func (e *ExitFlag) Set(v int32) { e.value.Store(v) }

// Load returns the current request without clearing it.
func (e *ExitFlag) Load() int32 { return e.value.Load() }

// TakeIf atomically clears the flag if it holds v, returning whether it did.
func (e *ExitFlag) TakeIf(v int32) bool {
	return e.value.CompareAndSwap(v, ExitNone)
}

// ReloadFlag is the shared reload-request flag.
type ReloadFlag struct {
	value atomic.Bool
}

// Set raises the reload request.
func (r *ReloadFlag) Set() { r.value.Store(true) }

// Take clears the flag, returning whether it was set.
func (r *ReloadFlag) Take() bool { return r.value.Swap(false) }

// IsSet returns the flag without clearing it.
func (r *ReloadFlag) IsSet() bool { return r.value.Load() }

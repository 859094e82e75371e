// Package engine implements the realtime core: the capture, processing
// and playback workers, the 4-party startup rendezvous and the supervisor
// loop with its live reconfiguration protocol.
package engine

import (
	"github.com/jtoivane/auradsp/internal/config"
)

// StatusKind enumerates the worker-to-supervisor messages.
type StatusKind int

const (
	StatusPlaybackReady StatusKind = iota
	StatusCaptureReady
	StatusPlaybackError
	StatusCaptureError
	StatusPlaybackFormatChange
	StatusCaptureFormatChange
	StatusPlaybackDone
	StatusCaptureDone
	StatusSetSpeed
)

func (k StatusKind) String() string {
	switch k {
	case StatusPlaybackReady:
		return "PlaybackReady"
	case StatusCaptureReady:
		return "CaptureReady"
	case StatusPlaybackError:
		return "PlaybackError"
	case StatusCaptureError:
		return "CaptureError"
	case StatusPlaybackFormatChange:
		return "PlaybackFormatChange"
	case StatusCaptureFormatChange:
		return "CaptureFormatChange"
	case StatusPlaybackDone:
		return "PlaybackDone"
	case StatusCaptureDone:
		return "CaptureDone"
	case StatusSetSpeed:
		return "SetSpeed"
	default:
		return "Unknown"
	}
}

// StatusMessage is one event on the worker status channel.
type StatusMessage struct {
	Kind    StatusKind
	Message string  // device message for the error kinds
	Rate    int     // new rate for the format change kinds
	Speed   float64 // requested ratio for SetSpeed
}

// CommandKind enumerates supervisor-to-capture commands.
type CommandKind int

const (
	CommandExit CommandKind = iota
	CommandSetSpeed
)

// CommandMessage is one command on the capture command channel.
type CommandMessage struct {
	Kind  CommandKind
	Speed float64
}

// PipelineChange carries an in-place reconfiguration to the processing
// worker, applied at the next chunk boundary.
type PipelineChange struct {
	Change config.Change
	Config *config.Config
}

// Package remote implements the websocket control server. It operates
// exclusively on the shared control atoms and status cells; no chunk-rate
// data passes through it.
package remote

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jtoivane/auradsp/internal/config"
	"github.com/jtoivane/auradsp/internal/logging"
	"github.com/jtoivane/auradsp/internal/status"
)

// Version is stamped by the build; the GetVersion command reports it.
var Version = "dev"

// Request is one JSON command from a client.
type Request struct {
	Command string  `json:"command"`
	Value   string  `json:"value,omitempty"`
	Float   float64 `json:"float_value,omitempty"`
	Flag    bool    `json:"flag_value,omitempty"`
}

// Response answers one command.
type Response struct {
	Command string `json:"command"`
	Result  string `json:"result"` // "Ok" or "Error"
	Value   any    `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// Server exposes the control protocol over websocket.
type Server struct {
	shared   *status.Shared
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer creates a control server around the shared state.
func NewServer(shared *status.Shared) *Server {
	logger := logging.ForService("remote")
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		shared: shared,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger: logger,
	}
}

// Start serves the control endpoint on addr in a background goroutine.
func (s *Server) Start(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebsocket)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		s.logger.Info("control server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("control server failed", "error", err)
		}
	}()
}

// Handler returns the websocket handler for tests and embedding.
func (s *Server) Handler() http.HandlerFunc {
	return s.handleWebsocket
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			s.logger.Debug("connection close failed", "error", err)
		}
	}()

	for {
		_, rawMessage, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read failed", "error", err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(rawMessage, &req); err != nil {
			s.write(conn, Response{Command: "", Result: "Error", Message: "could not parse command"})
			continue
		}

		s.write(conn, s.dispatch(req))
	}
}

func (s *Server) write(conn *websocket.Conn, resp Response) {
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Debug("websocket write failed", "error", err)
	}
}

func ok(cmd string, value any) Response {
	return Response{Command: cmd, Result: "Ok", Value: value}
}

func fail(cmd, format string, args ...any) Response {
	return Response{Command: cmd, Result: "Error", Message: fmt.Sprintf(format, args...)}
}

// dispatch executes one command against the shared state.
func (s *Server) dispatch(req Request) Response {
	switch req.Command {
	case "GetVersion":
		return ok(req.Command, Version)
	case "GetState":
		return ok(req.Command, s.shared.Capture.State().String())
	case "GetStopReason":
		reason := s.shared.Processing.StopReason()
		return ok(req.Command, map[string]any{
			"reason":  reason.Kind.String(),
			"message": reason.Message,
			"rate":    reason.Rate,
		})
	case "GetVolume":
		return ok(req.Command, s.shared.Params.Volume())
	case "SetVolume":
		if req.Float < -150.0 || req.Float > 50.0 {
			return fail(req.Command, "volume %f out of range", req.Float)
		}
		s.shared.Params.SetVolume(req.Float)
		return ok(req.Command, req.Float)
	case "GetMute":
		return ok(req.Command, s.shared.Params.Mute())
	case "SetMute":
		s.shared.Params.SetMute(req.Flag)
		return ok(req.Command, req.Flag)
	case "ToggleMute":
		muted := !s.shared.Params.Mute()
		s.shared.Params.SetMute(muted)
		return ok(req.Command, muted)
	case "GetCaptureRate":
		return ok(req.Command, s.shared.Capture.MeasuredSamplerate())
	case "GetRateAdjust":
		return ok(req.Command, s.shared.Capture.RateAdjust())
	case "GetBufferLevel":
		return ok(req.Command, s.shared.Playback.BufferLevel())
	case "GetClippedSamples":
		return ok(req.Command, s.shared.Playback.ClippedSamples())
	case "GetSignalRange":
		rms, peak := s.shared.Capture.Levels()
		return ok(req.Command, map[string]any{"rms": rms, "peak": peak})
	case "GetPlaybackSignalRange":
		rms, peak := s.shared.Playback.Levels()
		return ok(req.Command, map[string]any{"rms": rms, "peak": peak})
	case "GetConfigName":
		return ok(req.Command, s.shared.ConfigPath.Get())
	case "SetConfigName":
		s.shared.ConfigPath.Set(req.Value)
		return ok(req.Command, req.Value)
	case "GetConfig":
		cfg := s.shared.ActiveConfig.Get()
		if cfg == nil {
			return fail(req.Command, "no active config")
		}
		data, err := config.Marshal(cfg)
		if err != nil {
			return fail(req.Command, "could not serialize config: %v", err)
		}
		return ok(req.Command, string(data))
	case "SetConfig":
		cfg, err := config.Parse([]byte(req.Value))
		if err != nil {
			return fail(req.Command, "invalid config: %v", err)
		}
		if err := config.Validate(cfg); err != nil {
			return fail(req.Command, "invalid config: %v", err)
		}
		s.shared.NewConfig.Set(cfg)
		s.shared.Reload.Set()
		return ok(req.Command, nil)
	case "Reload":
		s.shared.Reload.Set()
		return ok(req.Command, nil)
	case "Exit":
		s.shared.Exit.Set(status.ExitRequestExit)
		return ok(req.Command, nil)
	case "Stop":
		s.shared.Exit.Set(status.ExitRequestStop)
		return ok(req.Command, nil)
	default:
		return fail(req.Command, "unknown command %q", req.Command)
	}
}

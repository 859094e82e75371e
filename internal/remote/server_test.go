package remote

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtoivane/auradsp/internal/status"
)

func dialTestServer(t *testing.T) (*websocket.Conn, *status.Shared) {
	t.Helper()
	shared := status.NewShared(-12.0, false, 1000)
	server := NewServer(shared)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, shared
}

func roundTrip(t *testing.T, conn *websocket.Conn, req Request) Response {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
	var resp Response
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestServer_VolumeCommands(t *testing.T) {
	conn, shared := dialTestServer(t)

	resp := roundTrip(t, conn, Request{Command: "GetVolume"})
	assert.Equal(t, "Ok", resp.Result)
	assert.InDelta(t, -12.0, resp.Value.(float64), 1e-9)

	resp = roundTrip(t, conn, Request{Command: "SetVolume", Float: -6.5})
	assert.Equal(t, "Ok", resp.Result)
	assert.InDelta(t, -6.5, shared.Params.Volume(), 1e-9)

	resp = roundTrip(t, conn, Request{Command: "SetVolume", Float: 500})
	assert.Equal(t, "Error", resp.Result, "out of range volume is rejected")
	assert.InDelta(t, -6.5, shared.Params.Volume(), 1e-9)
}

func TestServer_MuteCommands(t *testing.T) {
	conn, shared := dialTestServer(t)

	resp := roundTrip(t, conn, Request{Command: "SetMute", Flag: true})
	assert.Equal(t, "Ok", resp.Result)
	assert.True(t, shared.Params.Mute())

	resp = roundTrip(t, conn, Request{Command: "ToggleMute"})
	assert.Equal(t, "Ok", resp.Result)
	assert.False(t, shared.Params.Mute())

	resp = roundTrip(t, conn, Request{Command: "GetMute"})
	assert.Equal(t, false, resp.Value)
}

func TestServer_ControlFlags(t *testing.T) {
	conn, shared := dialTestServer(t)

	roundTrip(t, conn, Request{Command: "Reload"})
	assert.True(t, shared.Reload.IsSet())

	roundTrip(t, conn, Request{Command: "Stop"})
	assert.Equal(t, status.ExitRequestStop, shared.Exit.Load())

	roundTrip(t, conn, Request{Command: "Exit"})
	assert.Equal(t, status.ExitRequestExit, shared.Exit.Load())
}

func TestServer_SetConfig(t *testing.T) {
	conn, shared := dialTestServer(t)

	valid := `
devices:
  samplerate: 48000
  chunksize: 1024
  capture:
    type: file
    filename: in.raw
    format: S16LE
    channels: 2
  playback:
    type: file
    filename: out.raw
    format: S16LE
    channels: 2
`
	resp := roundTrip(t, conn, Request{Command: "SetConfig", Value: valid})
	assert.Equal(t, "Ok", resp.Result)
	assert.False(t, shared.NewConfig.IsEmpty(), "valid config lands in the pending slot")
	assert.True(t, shared.Reload.IsSet(), "SetConfig triggers a reload")

	shared.NewConfig.Set(nil)
	resp = roundTrip(t, conn, Request{Command: "SetConfig", Value: "devices: {samplerate: -1}"})
	assert.Equal(t, "Error", resp.Result)
	assert.True(t, shared.NewConfig.IsEmpty(), "invalid config never reaches the slot")
}

func TestServer_StatusQueries(t *testing.T) {
	conn, shared := dialTestServer(t)

	shared.Capture.SetLevels(47991, []float64{0.3}, []float64{0.8})
	shared.Processing.SetStopReason(status.StopReason{Kind: status.StopCaptureError, Message: "gone"})

	resp := roundTrip(t, conn, Request{Command: "GetCaptureRate"})
	assert.InDelta(t, 47991, resp.Value.(float64), 0.1)

	resp = roundTrip(t, conn, Request{Command: "GetStopReason"})
	value := resp.Value.(map[string]any)
	assert.Equal(t, "CaptureError", value["reason"])
	assert.Equal(t, "gone", value["message"])

	resp = roundTrip(t, conn, Request{Command: "GetState"})
	assert.Equal(t, "Inactive", resp.Value)
}

func TestServer_UnknownCommand(t *testing.T) {
	conn, _ := dialTestServer(t)
	resp := roundTrip(t, conn, Request{Command: "MakeCoffee"})
	assert.Equal(t, "Error", resp.Result)
}

func TestServer_ConfigNameRoundTrip(t *testing.T) {
	conn, shared := dialTestServer(t)

	resp := roundTrip(t, conn, Request{Command: "SetConfigName", Value: "/etc/auradsp/config.yml"})
	assert.Equal(t, "Ok", resp.Result)
	assert.Equal(t, "/etc/auradsp/config.yml", shared.ConfigPath.Get())

	resp = roundTrip(t, conn, Request{Command: "GetConfigName"})
	assert.Equal(t, "/etc/auradsp/config.yml", resp.Value)
}

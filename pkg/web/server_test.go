package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-follow/internal/timeutil"
	"github.com/teslashibe/go-follow/pkg/camera"
	"github.com/teslashibe/go-follow/pkg/protocol"
	"github.com/teslashibe/go-follow/pkg/source"
	"github.com/teslashibe/go-follow/pkg/tracking"
	"github.com/teslashibe/go-follow/pkg/transport"
)

type fixture struct {
	srv     *Server
	tracker *tracking.Tracker
	mailbox *source.Mailbox
	link    *transport.Mock
}

func newFixture(t *testing.T, cam *camera.Manager) *fixture {
	t.Helper()
	link := transport.NewMock()
	link.Devices = []transport.Device{{ID: "/dev/rfcomm0", Name: "HC-05"}}

	tr, err := tracking.New(tracking.HandConfig(), link, timeutil.NewMockClock(time.Unix(0, 0)))
	require.NoError(t, err)

	mb := source.NewMailbox()
	srv := NewServer(Options{Port: "0", Tracker: tr, Mailbox: mb, Transport: link, Camera: cam})
	tr.SetStatusListener(srv)
	return &fixture{srv: srv, tracker: tr, mailbox: mb, link: link}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.srv.App().Test(req)
	require.NoError(t, err)

	var out map[string]interface{}
	data, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(data, &out)
	return resp, out
}

func TestStatus(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, "GET", "/api/status", "")
	assert.Equal(t, 200, resp.StatusCode)
	require.Contains(t, body, "tracking")
	require.Contains(t, body, "ingest")
	require.Len(t, body["feeds"], 2)

	st := body["tracking"].(map[string]interface{})
	assert.Equal(t, "hand", st["mode"])
	assert.Equal(t, false, st["connected"])
}

func TestTuning(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, "GET", "/api/tuning", "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, float64(tracking.DefaultDeadband), body["deadband"])

	resp, body = f.do(t, "PUT", "/api/tuning", `{"deadband": 4, "emit_interval_ms": 50}`)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, float64(4), body["deadband"])
	assert.Equal(t, float64(50), body["emit_interval_ms"])
	assert.Equal(t, tracking.DefaultAlpha, body["alpha"])

	resp, _ = f.do(t, "PUT", "/api/tuning", `{"alpha": -1}`)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, tracking.DefaultAlpha, f.tracker.GetTuningParams().Alpha)
}

func TestViewport(t *testing.T) {
	f := newFixture(t, nil)

	resp, _ := f.do(t, "POST", "/api/viewport", `{"width": 0, "height": 100}`)
	assert.Equal(t, 400, resp.StatusCode)

	resp, _ = f.do(t, "POST", "/api/viewport", `{"width": 1080, "height": 1920}`)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1080.0, f.tracker.Status().Viewport.Width)
}

func TestTapWithoutFrame(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, "POST", "/api/tap", `{"x": 10, "y": 10}`)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, false, body["selected"])
}

func TestFrames(t *testing.T) {
	f := newFixture(t, nil)

	frame := `{"sets": [[{"x": 0.5, "y": 0.5}]], "image_width": 640, "image_height": 480, "seq": 9}`
	resp, _ := f.do(t, "POST", "/api/frames", frame)
	assert.Equal(t, 202, resp.StatusCode)

	got, err := f.mailbox.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(9), got.Seq)
	assert.Equal(t, "http", got.SourceID)

	resp, _ = f.do(t, "POST", "/api/frames", `{"sets": [[{"x": 0.5, "y": 0.5}]]}`)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, uint64(1), f.mailbox.Stats().Published)
}

func TestPortsAndConnect(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, "GET", "/api/ports", "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	resp, _ = f.do(t, "POST", "/api/transport/connect", `{"device": ""}`)
	assert.Equal(t, 400, resp.StatusCode)

	resp, body = f.do(t, "POST", "/api/transport/connect", `{"device": "/dev/rfcomm0"}`)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "connected", body["status"])
	assert.True(t, f.link.IsConnected())
	assert.True(t, f.tracker.Status().Connected)

	resp, _ = f.do(t, "POST", "/api/transport/disconnect", "")
	assert.Equal(t, 200, resp.StatusCode)
	resp, _ = f.do(t, "POST", "/api/transport/disconnect", "")
	assert.Equal(t, 409, resp.StatusCode)

	f.link.ConnectErr = errors.New("pairing refused")
	resp, _ = f.do(t, "POST", "/api/transport/connect", `{"device": "/dev/rfcomm0"}`)
	assert.Equal(t, 502, resp.StatusCode)

	var types []string
	for _, e := range f.srv.Events() {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{"transport", "transport", "error"}, types)
}

func TestCameraRoutes(t *testing.T) {
	f := newFixture(t, nil)
	resp, _ := f.do(t, "GET", "/api/camera", "")
	assert.Equal(t, 404, resp.StatusCode)

	f = newFixture(t, camera.NewManager())
	resp, body := f.do(t, "GET", "/api/camera", "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, float64(640), body["width"])

	resp, body = f.do(t, "PUT", "/api/camera", `{"preset": "720p"}`)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, float64(1280), body["width"])

	resp, _ = f.do(t, "PUT", "/api/camera", `{"framerate": 1000}`)
	assert.Equal(t, 400, resp.StatusCode)

	resp, _ = f.do(t, "GET", "/api/camera/presets", "")
	assert.Equal(t, 200, resp.StatusCode)
}

func TestOnStatusRecordsChanges(t *testing.T) {
	f := newFixture(t, nil)

	f.srv.OnStatus(tracking.Status{State: "tracking", Text: "tracking: 10, 20"})
	f.srv.OnStatus(tracking.Status{State: "tracking", Text: "tracking: 11, 21"})
	f.srv.OnStatus(tracking.Status{State: "unset", Text: tracking.StatusNoDetection})

	events := f.srv.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "tracking: 10, 20", events[0].Message)
	assert.Equal(t, tracking.StatusNoDetection, events[1].Message)
}

func TestEventBufferBounded(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < maxEvents+10; i++ {
		f.srv.AddEvent("tracking", "x")
	}
	assert.Len(t, f.srv.Events(), maxEvents)
}

func TestStatusFeed(t *testing.T) {
	f := newFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.srv.statusHub.Run(ctx)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go f.srv.App().Listener(ln)
	defer f.srv.App().Shutdown()

	ws, _, err := gorilla.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/status", nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return f.srv.statusHub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.tracker.HandleViewport(1080, 1920)

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)

	msg, err := protocol.ParseMessage(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeStatus, msg.Type)

	var st tracking.Status
	require.NoError(t, msg.ParseData(&st))
	assert.Equal(t, 1080.0, st.Viewport.Width)
}

func TestFeedRequiresUpgrade(t *testing.T) {
	f := newFixture(t, nil)
	resp, _ := f.do(t, "GET", "/ws/status", "")
	assert.Equal(t, 426, resp.StatusCode)
}

package hub

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	gorilla "github.com/gorilla/websocket"

	"github.com/teslashibe/go-follow/pkg/protocol"
)

// startHubServer serves h at /ws on a random port and returns the URL.
func startHubServer(t *testing.T, h *Hub) string {
	t.Helper()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		NewClient(h, c).Run()
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })

	return "ws://" + ln.Addr().String() + "/ws"
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNew(t *testing.T) {
	h := New("status", 1)
	if h.ClientCount() != 0 {
		t.Error("ClientCount should be 0 initially")
	}
	if h.IsRunning() {
		t.Error("hub should not be running before Run")
	}
}

func TestBroadcastWithoutClients(t *testing.T) {
	h := New("status", 1)
	// Must not block even though Run has not started
	for i := 0; i < 300; i++ {
		h.Broadcast(Message(`{}`))
	}
	if h.dropped.Load() == 0 {
		t.Error("expected drops once the channel filled")
	}
}

func TestHubBroadcastAndReplay(t *testing.T) {
	h := New("status", 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)
	waitFor(t, h.IsRunning)

	url := startHubServer(t, h)

	msg, err := protocol.NewMessage(protocol.TypeStatus, map[string]string{"text": "no detection"})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.BroadcastMessage(msg); err != nil {
		t.Fatalf("BroadcastMessage: %v", err)
	}

	// Let the hub record the message before anyone connects
	time.Sleep(50 * time.Millisecond)

	ws, _, err := gorilla.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read replay: %v", err)
	}
	got, err := protocol.ParseMessage(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Type != protocol.TypeStatus {
		t.Errorf("replayed type = %s, want status", got.Type)
	}

	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.Broadcast(Message(`{"type":"status","data":{"text":"tracking"}}`))
	_, data, err = ws.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if string(data) != `{"type":"status","data":{"text":"tracking"}}` {
		t.Errorf("unexpected broadcast %s", data)
	}

	ws.Close()
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestHubStopClosesClients(t *testing.T) {
	h := New("status", 1)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	waitFor(t, h.IsRunning)

	url := startHubServer(t, h)
	ws, _, err := gorilla.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	cancel()
	waitFor(t, func() bool { return !h.IsRunning() })

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Error("expected the connection to close after hub stop")
	}
}

func TestReplayWindow(t *testing.T) {
	h := New("events", 2)
	for _, m := range []string{"a", "b", "c"} {
		h.remember(Message(m))
	}
	if len(h.recent) != 2 || string(h.recent[0]) != "b" || string(h.recent[1]) != "c" {
		t.Errorf("recent = %q, want [b c]", h.recent)
	}

	off := New("status", 0)
	off.remember(Message("a"))
	if len(off.recent) != 0 {
		t.Error("replay 0 should not keep messages")
	}
}

func TestDeliverDropsOldest(t *testing.T) {
	h := New("status", 1)
	c := &Client{id: "slow", hub: h, send: make(chan Message, 2)}

	for _, m := range []string{"1", "2", "3", "4"} {
		h.deliver(c, Message(m))
	}

	if got := c.Overruns(); got != 2 {
		t.Errorf("Overruns() = %d, want 2", got)
	}
	if got := h.Stats().Overruns; got != 2 {
		t.Errorf("hub overruns = %d, want 2", got)
	}
	if a, b := string(<-c.send), string(<-c.send); a != "3" || b != "4" {
		t.Errorf("queued = %s,%s, want 3,4", a, b)
	}
}

func TestReplayOnConnect(t *testing.T) {
	h := New("events", 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)
	waitFor(t, h.IsRunning)

	for _, m := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`, `{"n":4}`} {
		h.Broadcast(Message(m))
	}
	time.Sleep(50 * time.Millisecond)

	url := startHubServer(t, h)
	ws, _, err := gorilla.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []string{`{"n":2}`, `{"n":3}`, `{"n":4}`} {
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read replay: %v", err)
		}
		if string(data) != want {
			t.Errorf("replayed %s, want %s", data, want)
		}
	}
}

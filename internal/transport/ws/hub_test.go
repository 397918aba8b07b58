package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pixelbot/internal/broadcast"
	"pixelbot/internal/model"
	"pixelbot/pkg/logx"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) model.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg model.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestClientGetsSnapshotThenEvents(t *testing.T) {
	t.Parallel()
	ch := broadcast.New("canvas", logx.Nop())
	ch.Start()
	defer ch.Stop()

	snap := func() model.Message {
		return model.Message{Type: model.MsgInitCanvas, Data: map[string]any{"col_num": 4}}
	}
	hub := NewHub(ch, snap, logx.Nop())
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	if msg := readMsg(t, conn); msg.Type != model.MsgInitCanvas {
		t.Fatalf("first message = %v, want canvas snapshot", msg.Type)
	}

	// The client is now attached and receives published events in order.
	waitFor(t, func() bool { return ch.Observers() == 1 })
	ch.Publish(model.Message{Type: model.MsgDrawPixel, Data: "first"})
	ch.Publish(model.Message{Type: model.MsgDrawPixel, Data: "second"})
	if msg := readMsg(t, conn); msg.Data != "first" {
		t.Fatalf("got %v, want first", msg.Data)
	}
	if msg := readMsg(t, conn); msg.Data != "second" {
		t.Fatalf("got %v, want second", msg.Data)
	}
}

func TestClosedClientIsDetached(t *testing.T) {
	t.Parallel()
	ch := broadcast.New("chat", logx.Nop())
	ch.Start()
	defer ch.Stop()

	hub := NewHub(ch, nil, logx.Nop())
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	waitFor(t, func() bool { return ch.Observers() == 1 })

	_ = conn.Close()
	waitFor(t, func() bool { return ch.Observers() == 0 })

	// Publishing after the disconnect must not block or fail.
	ch.Publish(model.Message{Type: model.MsgTextMessage, Data: "nobody home"})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

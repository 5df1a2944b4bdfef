package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpcarvalho/lume/internal/bus"
	"go.uber.org/zap"
)

// testServer upgrades connections, records subscribe frames, and pushes
// envelopes to the connected client.
type testServer struct {
	*httptest.Server
	mu     sync.Mutex
	conn   *websocket.Conn
	topics []string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}
	upgrader := websocket.Upgrader{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.mu.Lock()
		ts.conn = conn
		ts.mu.Unlock()
		for {
			var frame subscribeFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Action == "subscribe" {
				ts.mu.Lock()
				ts.topics = append(ts.topics, frame.Topic)
				ts.mu.Unlock()
			}
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func (ts *testServer) push(t *testing.T, env Envelope) {
	t.Helper()
	ts.mu.Lock()
	conn := ts.conn
	ts.mu.Unlock()
	if conn == nil {
		t.Fatal("no connected client")
	}
	data, _ := json.Marshal(env)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatal(err)
	}
}

func (ts *testServer) subscribed() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.topics...)
}

func TestClientSubscribeAndDispatchInOrder(t *testing.T) {
	ts := newTestServer(t)
	b := bus.New()
	connected := b.Subscribe(KindConnected, 2)
	defer connected.Close()

	c := NewClient(ts.wsURL(), "key", "viewer", b, zap.NewNop())
	var mu sync.Mutex
	var got []string
	c.Subscribe("chat.c1.messages", func(env Envelope) {
		mu.Lock()
		got = append(got, env.Event+":"+string(env.Payload))
		mu.Unlock()
	})

	c.Start(context.Background())
	defer c.Stop()

	select {
	case <-connected.C:
	case <-time.After(2 * time.Second):
		t.Fatal("client never connected")
	}

	waitCond(t, func() bool { return len(ts.subscribed()) == 1 })
	if topics := ts.subscribed(); topics[0] != "chat.c1.messages" {
		t.Errorf("subscribed topics = %v", topics)
	}

	ts.push(t, Envelope{Topic: "chat.c1.messages", Event: EventNewMessage, Payload: json.RawMessage(`1`)})
	ts.push(t, Envelope{Topic: "other.topic", Event: EventNewMessage, Payload: json.RawMessage(`2`)})
	ts.push(t, Envelope{Topic: "chat.c1.messages", Event: EventNewMessage, Payload: json.RawMessage(`3`)})

	waitCond(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	})
	mu.Lock()
	defer mu.Unlock()
	if got[0] != EventNewMessage+":1" || got[1] != EventNewMessage+":3" {
		t.Errorf("dispatch order = %v", got)
	}
}

func TestClientLateSubscribeAnnounced(t *testing.T) {
	ts := newTestServer(t)
	b := bus.New()
	connected := b.Subscribe(KindConnected, 2)
	defer connected.Close()

	c := NewClient(ts.wsURL(), "key", "viewer", b, zap.NewNop())
	c.Start(context.Background())
	defer c.Stop()

	select {
	case <-connected.C:
	case <-time.After(2 * time.Second):
		t.Fatal("client never connected")
	}

	unsub := c.Subscribe("user.viewer.matches", func(Envelope) {})
	defer unsub()

	waitCond(t, func() bool { return len(ts.subscribed()) == 1 })
	if topics := ts.subscribed(); topics[0] != "user.viewer.matches" {
		t.Errorf("subscribed topics = %v", topics)
	}
}

func waitCond(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpcarvalho/lume/internal/bus"
	"go.uber.org/zap"
)

// Connection lifecycle events published on the bus. The daemon maps
// these onto status-machine transitions.
const (
	KindConnected    = "realtime.connected"
	KindDisconnected = "realtime.disconnected"
)

const reconnectDelay = 2 * time.Second

// subscribeFrame is sent to the backend to join or leave a topic.
type subscribeFrame struct {
	Action string `json:"action"` // subscribe | unsubscribe
	Topic  string `json:"topic"`
}

// Client maintains a websocket subscription to the backend's push
// stream. Frames on a connection are dispatched sequentially in arrival
// order; ordering across reconnects is not guaranteed, which the sync
// fallback compensates for.
type Client struct {
	url    string
	apiKey string
	userID string
	bus    *bus.Bus
	logger *zap.Logger

	mu       sync.Mutex
	wmu      sync.Mutex // serializes socket writes
	conn     *websocket.Conn
	handlers map[int]topicHandler
	nextID   int
	cancel   context.CancelFunc
	done     chan struct{}
}

type topicHandler struct {
	topic string
	fn    func(Envelope)
}

// NewClient creates a realtime client. Nothing connects until Start.
func NewClient(url, apiKey, userID string, b *bus.Bus, logger *zap.Logger) *Client {
	return &Client{
		url:      url,
		apiKey:   apiKey,
		userID:   userID,
		bus:      b,
		logger:   logger,
		handlers: make(map[int]topicHandler),
	}
}

// Subscribe registers fn for every envelope whose topic matches exactly.
// If the client is connected the subscription is announced immediately;
// otherwise it is announced on the next (re)connect. The returned
// function unsubscribes.
func (c *Client) Subscribe(topic string, fn func(Envelope)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = topicHandler{topic: topic, fn: fn}
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		c.writeFrame(subscribeFrame{Action: "subscribe", Topic: topic})
	}
	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			c.writeFrame(subscribeFrame{Action: "unsubscribe", Topic: topic})
		}
	}
}

// Start connects and keeps the subscription alive, reconnecting with a
// fixed delay until ctx is cancelled or Stop is called.
func (c *Client) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		for {
			if err := c.runOnce(ctx); err != nil && ctx.Err() == nil {
				c.logger.Warn("realtime connection lost", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
		}
	}()
}

// Stop closes the connection and stops reconnecting.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	conn := c.conn
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	header := http.Header{}
	header.Set("X-Api-Key", c.apiKey)
	header.Set("X-User-Id", c.userID)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	topics := make(map[string]bool)
	for _, h := range c.handlers {
		topics[h.topic] = true
	}
	c.mu.Unlock()

	for topic := range topics {
		c.writeFrame(subscribeFrame{Action: "subscribe", Topic: topic})
	}
	c.bus.Publish(bus.Event{Kind: KindConnected})

	// Close the socket when ctx ends so ReadJSON unblocks.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			c.bus.Publish(bus.Event{Kind: KindDisconnected})
			return err
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env Envelope) {
	c.mu.Lock()
	var fns []func(Envelope)
	for _, h := range c.handlers {
		if h.topic == env.Topic {
			fns = append(fns, h.fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(env)
	}
}

func (c *Client) writeFrame(frame subscribeFrame) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Warn("subscribe frame failed", zap.String("topic", frame.Topic), zap.Error(err))
	}
}

package daemon

import (
	"github.com/jpcarvalho/lume/internal/bus"
	"github.com/jpcarvalho/lume/internal/realtime"
	"github.com/jpcarvalho/lume/internal/store"
	"go.uber.org/zap"
)

// chatTopics keeps the realtime per-chat message subscriptions aligned
// with the chats present in the local store. New chats (from a sync pull
// or a match event) gain a subscription; removed chats lose theirs.
type chatTopics struct {
	db      *store.DB
	rt      *realtime.Client
	handler *realtime.Handler
	bus     *bus.Bus
	logger  *zap.Logger

	chatSub *bus.Subscription
	syncSub *bus.Subscription
	done    chan struct{}
	unsubs  map[string]func()
}

func newChatTopics(db *store.DB, rt *realtime.Client, handler *realtime.Handler, b *bus.Bus, logger *zap.Logger) *chatTopics {
	return &chatTopics{
		db:      db,
		rt:      rt,
		handler: handler,
		bus:     b,
		logger:  logger,
		unsubs:  make(map[string]func()),
	}
}

// Start subscribes to the chats already in the store and begins tracking
// changes. Chat rows created by the sync engine carry no per-row bus
// event, so a completed sync also triggers a reconcile.
func (t *chatTopics) Start() error {
	if err := t.reconcile(); err != nil {
		return err
	}
	t.chatSub = t.bus.Subscribe("store.chat.", 64)
	t.syncSub = t.bus.Subscribe(bus.KindSyncCompleted, 16)
	t.done = make(chan struct{})
	go t.loop()
	return nil
}

// Stop ends tracking. Existing subscriptions are left for the realtime
// client to tear down with the connection.
func (t *chatTopics) Stop() {
	if t.chatSub != nil {
		t.chatSub.Close()
	}
	if t.syncSub != nil {
		t.syncSub.Close()
	}
	if t.done != nil {
		<-t.done
	}
}

func (t *chatTopics) loop() {
	defer close(t.done)
	for {
		select {
		case _, ok := <-t.chatSub.C:
			if !ok {
				return
			}
		case _, ok := <-t.syncSub.C:
			if !ok {
				return
			}
		}
		if err := t.reconcile(); err != nil {
			t.logger.Warn("chat topic reconcile failed", zap.Error(err))
		}
	}
}

func (t *chatTopics) reconcile() error {
	ids, err := t.db.ChatIDs()
	if err != nil {
		return err
	}
	for id := range ids {
		if _, ok := t.unsubs[id]; ok {
			continue
		}
		t.unsubs[id] = t.rt.Subscribe("chat."+id+".messages", t.handler.HandleEnvelope)
		t.logger.Debug("subscribed to chat topic", zap.String("chat_id", id))
	}
	for id, unsub := range t.unsubs {
		if ids[id] {
			continue
		}
		unsub()
		delete(t.unsubs, id)
		t.logger.Debug("unsubscribed from chat topic", zap.String("chat_id", id))
	}
	return nil
}

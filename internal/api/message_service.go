package api

import (
	"context"
	"fmt"

	"github.com/jpcarvalho/lume/internal/bus"
	"github.com/jpcarvalho/lume/internal/live"
	"github.com/jpcarvalho/lume/internal/outbox"
	"github.com/jpcarvalho/lume/internal/store"
	"go.uber.org/zap"
)

// MessageService exposes message reads, watches, and the optimistic
// send/retry operations.
type MessageService struct {
	db     *store.DB
	sender *outbox.Sender
	bus    *bus.Bus
	logger *zap.Logger
}

// NewMessageService creates the message service.
func NewMessageService(db *store.DB, sender *outbox.Sender, b *bus.Bus, logger *zap.Logger) *MessageService {
	return &MessageService{db: db, sender: sender, bus: b, logger: logger}
}

// ListMessages returns a page of a chat's messages in created-at order.
func (s *MessageService) ListMessages(chatID string, beforeTs int64, limit int) ([]store.Message, error) {
	return s.db.ListMessages(chatID, beforeTs, limit)
}

// WatchMessages returns a live query over a chat's newest messages.
func (s *MessageService) WatchMessages(chatID string) (*live.Query[store.Message], error) {
	return live.Watch(s.bus,
		[]string{"store.message.", "sync."},
		func() ([]store.Message, error) { return s.db.ListMessages(chatID, 0, 0) },
		func(m store.Message) string { return m.ID },
		s.logger)
}

// Send performs an optimistic send to the chat's counterpart. It blocks
// through the remote write; the pending row is visible immediately.
func (s *MessageService) Send(ctx context.Context, chatID, toUserID, body string) error {
	return s.sender.Send(ctx, chatID, toUserID, body, "")
}

// Retry re-attempts a failed send, reusing its temp id so the same row
// flips back to sending instead of duplicating.
func (s *MessageService) Retry(ctx context.Context, tempID string) error {
	pending, err := s.db.GetMessageByTempID(tempID)
	if err != nil {
		return err
	}
	if pending == nil {
		return fmt.Errorf("no pending message for temp id %s", tempID)
	}
	chat, err := s.db.GetChat(pending.ChatID)
	if err != nil {
		return err
	}
	if chat == nil {
		return fmt.Errorf("chat %s not found", pending.ChatID)
	}
	return s.sender.Send(ctx, pending.ChatID, chat.OtherUserID, pending.Body, tempID)
}

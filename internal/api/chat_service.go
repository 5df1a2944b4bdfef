// Package api is the in-process surface the UI layer consumes: reads,
// watches, and the user-initiated write operations.
package api

import (
	"context"
	"fmt"

	"github.com/jpcarvalho/lume/internal/bus"
	"github.com/jpcarvalho/lume/internal/live"
	"github.com/jpcarvalho/lume/internal/remote"
	"github.com/jpcarvalho/lume/internal/store"
	"go.uber.org/zap"
)

// ChatService exposes chat reads and the mark-read write.
type ChatService struct {
	db     *store.DB
	client remote.Client
	bus    *bus.Bus
	logger *zap.Logger
}

// NewChatService creates the chat service.
func NewChatService(db *store.DB, client remote.Client, b *bus.Bus, logger *zap.Logger) *ChatService {
	return &ChatService{db: db, client: client, bus: b, logger: logger}
}

// ListChats returns chats newest-conversation first.
func (s *ChatService) ListChats(limit, offset int) ([]store.Chat, error) {
	return s.db.ListChats(limit, offset)
}

// WatchChats returns a live query over the chat list, refreshed on any
// chat, message, or sync change.
func (s *ChatService) WatchChats() (*live.Query[store.Chat], error) {
	return live.Watch(s.bus,
		[]string{"store.chat.", "store.message.", "sync."},
		func() ([]store.Chat, error) { return s.db.ListChats(0, 0) },
		func(c store.Chat) string { return c.ID },
		s.logger)
}

// MarkRead zeroes the chat's unread count optimistically and confirms
// with the backend. On a remote failure the previous count is restored.
func (s *ChatService) MarkRead(ctx context.Context, chatID string) error {
	chat, err := s.db.GetChat(chatID)
	if err != nil {
		return err
	}
	if chat == nil {
		return fmt.Errorf("chat %s not found", chatID)
	}
	if chat.UnreadCount == 0 {
		return nil
	}

	if err := s.setUnread(chatID, 0); err != nil {
		return err
	}

	if err := s.client.MarkMessagesRead(ctx, chatID); err != nil {
		s.logger.Warn("mark read failed, restoring unread count",
			zap.String("chat_id", chatID), zap.Error(err))
		if undoErr := s.setUnread(chatID, chat.UnreadCount); undoErr != nil {
			s.logger.Error("failed to restore unread count", zap.Error(undoErr))
		}
		return err
	}
	return nil
}

func (s *ChatService) setUnread(chatID string, n int) error {
	err := s.db.RunTx(func(tx *store.Tx) error {
		return tx.SetUnreadCount(chatID, n)
	})
	if err != nil {
		return err
	}
	s.bus.Publish(bus.Event{
		Kind:    bus.KindChatUpserted,
		Payload: map[string]string{"chat_id": chatID},
	})
	return nil
}

// Package outbox implements the optimistic send path: the message shows
// up locally the moment send is called, and is reconciled to its
// server-confirmed record (or to a retryable failed state) afterwards.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jpcarvalho/lume/internal/bus"
	"github.com/jpcarvalho/lume/internal/remote"
	"github.com/jpcarvalho/lume/internal/store"
	intsync "github.com/jpcarvalho/lume/internal/sync"
	"go.uber.org/zap"
)

// Sender performs optimistic message sends against the remote backend.
type Sender struct {
	db       *store.DB
	client   remote.Client
	bus      *bus.Bus
	logger   *zap.Logger
	viewerID string
}

// NewSender creates a sender for the local viewer.
func NewSender(db *store.DB, client remote.Client, b *bus.Bus, logger *zap.Logger, viewerID string) *Sender {
	return &Sender{
		db:       db,
		client:   client,
		bus:      b,
		logger:   logger,
		viewerID: viewerID,
	}
}

// Send writes a pending message row immediately, performs the remote
// write, and reconciles the row to the confirmed record or to failed
// state. A non-empty tempID retries an earlier failed send, reusing its
// row. Send blocks through the remote call; the pending row is committed
// before the call starts, so readers see it at once.
func (s *Sender) Send(ctx context.Context, chatID, toUserID, body, tempID string) error {
	if tempID == "" {
		tempID = "tmp-" + uuid.NewString()
	}

	var pending store.Message
	err := s.db.RunTx(func(tx *store.Tx) error {
		existing, err := tx.GetMessageByTempID(tempID)
		if err != nil {
			return err
		}
		if existing != nil {
			// Retry of a failed send: flip the same row back to sending.
			pending = *existing
			pending.Status = store.MessageSending
			return tx.SetMessageStatus(existing.ID, store.MessageSending)
		}
		pending = store.Message{
			ID:        tempID,
			ChatID:    chatID,
			SenderID:  s.viewerID,
			Body:      body,
			CreatedAt: time.Now().UnixMilli(),
			Status:    store.MessageSending,
			TempID:    tempID,
		}
		return tx.InsertMessage(&pending)
	})
	if err != nil {
		return fmt.Errorf("write pending message: %w", err)
	}
	s.publishUpserted(pending.ChatID, pending.ID)

	confirmed, err := s.client.SendMessage(ctx, toUserID, pending.Body)
	if err != nil {
		s.logger.Warn("send failed", zap.String("temp_id", tempID), zap.Error(err))
		if dbErr := s.db.RunTx(func(tx *store.Tx) error {
			return tx.SetMessageStatus(pending.ID, store.MessageFailed)
		}); dbErr != nil {
			s.logger.Error("failed to mark message failed", zap.Error(dbErr))
		}
		s.bus.Publish(bus.Event{
			Kind:    bus.KindMessageSendFailed,
			Payload: map[string]string{"chat_id": pending.ChatID, "temp_id": tempID, "error": err.Error()},
		})
		return err
	}

	err = s.db.RunTx(func(tx *store.Tx) error {
		// Re-read inside the batch: a concurrent sync may have already
		// confirmed or removed the pending row.
		current, err := tx.GetMessageByTempID(tempID)
		if err != nil {
			return err
		}
		plan := intsync.PlanConfirm(current, *confirmed)
		if plan.Insert.ChatID == "" {
			plan.Insert.ChatID = pending.ChatID
		}
		if plan.RemoveID != "" {
			if err := tx.DeleteMessage(plan.RemoveID); err != nil {
				return err
			}
		}
		if err := tx.UpsertMessage(&plan.Insert); err != nil {
			return err
		}
		chat, err := tx.GetChat(plan.Insert.ChatID)
		if err != nil {
			return err
		}
		// With several sends in flight an older confirmation can
		// resolve last; it must not roll the chat preview back.
		if chat != nil && plan.Insert.CreatedAt < chat.LastMessageAt {
			return nil
		}
		return tx.BumpChatOnMessage(plan.Insert.ChatID, plan.Insert.Body, plan.Insert.CreatedAt, false)
	})
	if err != nil {
		return fmt.Errorf("reconcile confirmed message: %w", err)
	}

	s.logger.Info("message sent",
		zap.String("temp_id", tempID), zap.String("server_id", confirmed.ID))
	s.bus.Publish(bus.Event{
		Kind:    bus.KindMessageSendAck,
		Payload: map[string]string{"temp_id": tempID, "server_id": confirmed.ID},
	})
	s.publishUpserted(pending.ChatID, confirmed.ID)
	return nil
}

func (s *Sender) publishUpserted(chatID, msgID string) {
	s.bus.Publish(bus.Event{
		Kind:    bus.KindMessageUpserted,
		Payload: map[string]string{"chat_id": chatID, "msg_id": msgID},
	})
}

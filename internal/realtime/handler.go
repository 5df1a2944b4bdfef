// Package realtime consumes the backend's push-event stream and applies
// incremental, atomic mutations to the local store. When an event
// references data the store does not have, the handler falls back to
// triggering a full sync instead of failing: cross-channel delivery
// order is not guaranteed, and the sync self-heals any gap.
package realtime

import (
	"fmt"

	"github.com/jpcarvalho/lume/internal/bus"
	"github.com/jpcarvalho/lume/internal/store"
	"go.uber.org/zap"
)

// SyncTrigger requests a debounced reconciliation sync.
type SyncTrigger interface {
	Trigger()
}

// ReviewPrompter is the external collaborator poked on the viewer's
// first-ever match. Fire-and-forget, not part of the data contract.
type ReviewPrompter interface {
	RequestReview()
}

// Handler applies realtime events to the store, one at a time in
// arrival order.
type Handler struct {
	db       *store.DB
	bus      *bus.Bus
	syncer   SyncTrigger
	review   ReviewPrompter
	logger   *zap.Logger
	viewerID string
}

// NewHandler creates a realtime event handler for the local viewer.
// review may be nil.
func NewHandler(db *store.DB, b *bus.Bus, syncer SyncTrigger, review ReviewPrompter, logger *zap.Logger, viewerID string) *Handler {
	return &Handler{
		db:       db,
		bus:      b,
		syncer:   syncer,
		review:   review,
		logger:   logger,
		viewerID: viewerID,
	}
}

// HandleEnvelope decodes and dispatches a raw subscription frame.
// Malformed frames are logged and dropped.
func (h *Handler) HandleEnvelope(env Envelope) {
	evt, err := ParseEvent(env)
	if err != nil {
		h.logger.Warn("dropping realtime event", zap.String("topic", env.Topic), zap.Error(err))
		return
	}

	switch evt := evt.(type) {
	case MessageEvent:
		err = h.HandleNewMessage(evt)
	case MatchEvent:
		if env.Event == EventNewMatch {
			err = h.HandleNewMatch(evt)
		} else {
			err = h.HandleMatchUpdate(evt)
		}
	}
	if err != nil {
		h.logger.Error("realtime event failed",
			zap.String("topic", env.Topic), zap.String("event", env.Event), zap.Error(err))
	}
}

// HandleNewMessage ingests a pushed message. The viewer's own messages
// are ignored: the optimistic write path already applied them.
func (h *Handler) HandleNewMessage(evt MessageEvent) error {
	if evt.SenderID == h.viewerID {
		return nil
	}

	shouldSync := false
	err := h.db.RunTx(func(tx *store.Tx) error {
		chat, err := tx.GetChat(evt.ChatID)
		if err != nil {
			return err
		}
		if chat == nil {
			// Message for a chat we have not seen; the sync pulls the
			// chat and its messages together.
			shouldSync = true
			return nil
		}

		err = tx.InsertMessage(&store.Message{
			ID:        evt.ID,
			ChatID:    evt.ChatID,
			SenderID:  evt.SenderID,
			Body:      evt.Body,
			CreatedAt: evt.CreatedAt,
			Status:    store.MessageSent,
		})
		if store.IsDuplicate(err) {
			// Sync ingested it first; unread was already accounted there.
			return nil
		}
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		if err := tx.BumpChatOnMessage(evt.ChatID, evt.Body, evt.CreatedAt, true); err != nil {
			return fmt.Errorf("bump chat: %w", err)
		}
		if chat.LastMessageAt == 0 {
			if err := tx.SetFirstMessageAt(chat.MatchID, evt.CreatedAt); err != nil {
				return fmt.Errorf("stamp first message: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if shouldSync {
		h.syncer.Trigger()
		return nil
	}
	h.bus.Publish(bus.Event{
		Kind:    bus.KindMessageUpserted,
		Payload: map[string]string{"chat_id": evt.ChatID, "msg_id": evt.ID},
	})
	h.bus.Publish(bus.Event{
		Kind:    bus.KindChatUpserted,
		Payload: map[string]string{"chat_id": evt.ChatID},
	})
	return nil
}

// HandleNewMatch upserts a pushed match and creates its chat if the
// backend already assigned one.
func (h *Handler) HandleNewMatch(evt MatchEvent) error {
	before, err := h.db.CountMatches()
	if err != nil {
		return err
	}

	err = h.db.RunTx(func(tx *store.Tx) error {
		rec := evt.Match.Record()
		if err := tx.UpsertMatch(&rec); err != nil {
			return fmt.Errorf("upsert match: %w", err)
		}
		if evt.ChatID == "" {
			return nil
		}
		chat, err := tx.GetChat(evt.ChatID)
		if err != nil {
			return err
		}
		if chat != nil {
			return nil
		}
		err = tx.CreateChat(&store.Chat{
			ID:             evt.ChatID,
			MatchID:        evt.Match.ID,
			CreatedAt:      evt.MatchedAt,
			OtherUserID:    evt.OtherUserID,
			OtherUserName:  evt.OtherUserName,
			OtherUserPhoto: evt.OtherUserPhoto,
			PlaceID:        evt.PlaceID,
			PlaceName:      evt.PlaceName,
		})
		if store.IsDuplicate(err) {
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}

	if before == 0 && h.review != nil {
		go h.review.RequestReview()
	}
	h.bus.Publish(bus.Event{
		Kind:    bus.KindMatchUpserted,
		Payload: map[string]string{"match_id": evt.Match.ID},
	})
	if evt.ChatID != "" {
		h.bus.Publish(bus.Event{
			Kind:    bus.KindChatUpserted,
			Payload: map[string]string{"chat_id": evt.ChatID},
		})
	}
	return nil
}

// HandleMatchUpdate applies a status/field change. Unmatching removes the
// match, its chat, and the chat's messages in one batch.
func (h *Handler) HandleMatchUpdate(evt MatchEvent) error {
	shouldSync := false
	var removedChat string
	err := h.db.RunTx(func(tx *store.Tx) error {
		current, err := tx.GetMatch(evt.Match.ID)
		if err != nil {
			return err
		}
		if current == nil {
			shouldSync = true
			return nil
		}
		if evt.Status == store.MatchUnmatched {
			chat, err := tx.GetChatByMatch(evt.Match.ID)
			if err != nil {
				return err
			}
			if chat != nil {
				removedChat = chat.ID
			}
			return tx.DeleteMatchCascade(evt.Match.ID)
		}
		rec := evt.Match.Record()
		return tx.UpsertMatch(&rec)
	})
	if err != nil {
		return err
	}

	if shouldSync {
		h.syncer.Trigger()
		return nil
	}
	if evt.Status == store.MatchUnmatched {
		h.bus.Publish(bus.Event{
			Kind:    bus.KindMatchRemoved,
			Payload: map[string]string{"match_id": evt.Match.ID},
		})
		if removedChat != "" {
			h.bus.Publish(bus.Event{
				Kind:    bus.KindChatRemoved,
				Payload: map[string]string{"chat_id": removedChat},
			})
		}
		return nil
	}
	h.bus.Publish(bus.Event{
		Kind:    bus.KindMatchUpserted,
		Payload: map[string]string{"match_id": evt.Match.ID},
	})
	return nil
}

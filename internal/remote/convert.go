package remote

import "github.com/jpcarvalho/lume/internal/store"

// Record converts the wire payload to its store row.
func (m Match) Record() store.Match {
	return store.Match{
		ID:             m.ID,
		UserAID:        m.UserAID,
		UserBID:        m.UserBID,
		Status:         m.Status,
		MatchedAt:      m.MatchedAt,
		UnmatchedAt:    m.UnmatchedAt,
		PlaceID:        m.PlaceID,
		PlaceName:      m.PlaceName,
		OtherUserID:    m.OtherUserID,
		OtherUserName:  m.OtherUserName,
		OtherUserPhoto: m.OtherUserPhoto,
		FirstMessageAt: m.FirstMessageAt,
	}
}

// Record converts the wire payload to its store row.
func (c Chat) Record() store.Chat {
	return store.Chat{
		ID:              c.ID,
		MatchID:         c.MatchID,
		CreatedAt:       c.CreatedAt,
		LastMessageBody: c.LastMessageBody,
		LastMessageAt:   c.LastMessageAt,
		UnreadCount:     c.UnreadCount,
		OtherUserID:     c.OtherUserID,
		OtherUserName:   c.OtherUserName,
		OtherUserPhoto:  c.OtherUserPhoto,
		PlaceID:         c.PlaceID,
		PlaceName:       c.PlaceName,
	}
}

// Record converts the wire payload to its store row. Server-reported
// messages are always in sent state.
func (m Message) Record() store.Message {
	return store.Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
		Status:    store.MessageSent,
	}
}

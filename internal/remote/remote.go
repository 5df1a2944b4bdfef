// Package remote wraps the backend's remote functions: request/response
// fetches for the chat/match domain plus the optimistic send call. The
// realtime push stream lives in the realtime package.
package remote

import "context"

// Match is the backend's match payload. Counterpart fields are already
// denormalized relative to the viewer. Timestamps are unix milliseconds.
type Match struct {
	ID             string `json:"id"`
	UserAID        string `json:"user_a_id"`
	UserBID        string `json:"user_b_id"`
	Status         string `json:"status"`
	MatchedAt      int64  `json:"matched_at"`
	UnmatchedAt    int64  `json:"unmatched_at,omitempty"`
	PlaceID        string `json:"place_id,omitempty"`
	PlaceName      string `json:"place_name,omitempty"`
	OtherUserID    string `json:"other_user_id"`
	OtherUserName  string `json:"other_user_name"`
	OtherUserPhoto string `json:"other_user_photo"`
	FirstMessageAt int64  `json:"first_message_at,omitempty"`
}

// Chat is the backend's chat payload.
type Chat struct {
	ID              string `json:"id"`
	MatchID         string `json:"match_id"`
	CreatedAt       int64  `json:"created_at"`
	LastMessageBody string `json:"last_message_body,omitempty"`
	LastMessageAt   int64  `json:"last_message_at,omitempty"`
	UnreadCount     int    `json:"unread_count"`
	OtherUserID     string `json:"other_user_id"`
	OtherUserName   string `json:"other_user_name"`
	OtherUserPhoto  string `json:"other_user_photo"`
	PlaceID         string `json:"place_id,omitempty"`
	PlaceName       string `json:"place_name,omitempty"`
}

// Message is the backend's message payload.
type Message struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	SenderID  string `json:"sender_id"`
	Body      string `json:"body"`
	CreatedAt int64  `json:"created_at"`
}

// Page selects a message window: rows strictly older than Before
// (zero = newest), at most Limit rows.
type Page struct {
	Before int64 `json:"before,omitempty"`
	Limit  int   `json:"limit"`
}

// Client is the remote fetch interface the sync engine and write paths
// depend on. Implementations categorize failures per the Error type.
type Client interface {
	FetchMatches(ctx context.Context) ([]Match, error)
	FetchChats(ctx context.Context) ([]Chat, error)
	FetchMessages(ctx context.Context, chatID string, page Page) ([]Message, error)
	SendMessage(ctx context.Context, toUserID, body string) (*Message, error)
	MarkMessagesRead(ctx context.Context, chatID string) error
}

package store

// Match statuses as reported by the backend. Transitions never reverse:
// a match goes matched/active -> unmatched and is then removed locally.
const (
	MatchMatched   = "matched"
	MatchActive    = "active"
	MatchUnmatched = "unmatched"
)

// Message delivery statuses. Sending and failed only ever exist on
// locally-created optimistic rows.
const (
	MessageSending = "sending"
	MessageSent    = "sent"
	MessageFailed  = "failed"
)

// Match is a mutual pairing between the viewer and another user.
// Timestamps are unix milliseconds; zero means unset.
type Match struct {
	ID             string
	UserAID        string
	UserBID        string
	Status         string
	MatchedAt      int64
	UnmatchedAt    int64
	PlaceID        string
	PlaceName      string
	OtherUserID    string
	OtherUserName  string
	OtherUserPhoto string
	FirstMessageAt int64
}

// Chat is the conversation thread owned by exactly one Match.
type Chat struct {
	ID              string
	MatchID         string
	CreatedAt       int64
	LastMessageBody string
	LastMessageAt   int64
	UnreadCount     int
	OtherUserID     string
	OtherUserName   string
	OtherUserPhoto  string
	PlaceID         string
	PlaceName       string
}

// Message is a single chat message. TempID links an optimistic row to
// its eventual server-confirmed record.
type Message struct {
	ID        string
	ChatID    string
	SenderID  string
	Body      string
	CreatedAt int64
	Status    string
	TempID    string
}

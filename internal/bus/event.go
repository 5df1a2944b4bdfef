package bus

import "time"

// Event kinds published by the sync core. Subscribers filter by prefix,
// e.g. "store.message." matches both upserted and send_failed.
const (
	KindMatchUpserted     = "store.match.upserted"
	KindMatchRemoved      = "store.match.removed"
	KindChatUpserted      = "store.chat.upserted"
	KindChatRemoved       = "store.chat.removed"
	KindMessageUpserted   = "store.message.upserted"
	KindMessageSendAck    = "store.message.send_ack"
	KindMessageSendFailed = "store.message.send_failed"
	KindSyncStarted       = "sync.started"
	KindSyncCompleted     = "sync.completed"
	KindSyncFailed        = "sync.failed"
	KindStatusChanged     = "session.status_changed"
	KindReviewRequested   = "session.review_requested"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

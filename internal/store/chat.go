package store

import (
	"database/sql"
	"time"
)

const chatCols = `id, match_id, created_at, last_message_body, last_message_at,
	unread_count, other_user_id, other_user_name, other_user_photo, place_id, place_name`

// upsertChat inserts or updates a chat. Server state is authoritative for
// all denormalized fields including the unread count.
func upsertChat(q querier, c *Chat) error {
	_, err := q.Exec(`
		INSERT INTO chats (`+chatCols+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			match_id = excluded.match_id,
			created_at = excluded.created_at,
			last_message_body = excluded.last_message_body,
			last_message_at = excluded.last_message_at,
			unread_count = excluded.unread_count,
			other_user_id = excluded.other_user_id,
			other_user_name = excluded.other_user_name,
			other_user_photo = excluded.other_user_photo,
			place_id = excluded.place_id,
			place_name = excluded.place_name,
			updated_at = excluded.updated_at`,
		c.ID, c.MatchID, c.CreatedAt, c.LastMessageBody, c.LastMessageAt,
		c.UnreadCount, c.OtherUserID, c.OtherUserName, c.OtherUserPhoto,
		c.PlaceID, c.PlaceName, time.Now().UnixMilli())
	return err
}

func getChat(q querier, id string) (*Chat, error) {
	var c Chat
	err := q.QueryRow(`SELECT `+chatCols+` FROM chats WHERE id = ?`, id).Scan(
		&c.ID, &c.MatchID, &c.CreatedAt, &c.LastMessageBody, &c.LastMessageAt,
		&c.UnreadCount, &c.OtherUserID, &c.OtherUserName, &c.OtherUserPhoto,
		&c.PlaceID, &c.PlaceName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertChat inserts or updates a chat inside the batch.
func (tx *Tx) UpsertChat(c *Chat) error { return upsertChat(tx.Tx, c) }

// CreateChat inserts a chat, failing with a duplicate error if the id or
// owning match already has one. Callers racing against sync check
// IsDuplicate and move on.
func (tx *Tx) CreateChat(c *Chat) error {
	_, err := tx.Exec(`
		INSERT INTO chats (`+chatCols+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.MatchID, c.CreatedAt, c.LastMessageBody, c.LastMessageAt,
		c.UnreadCount, c.OtherUserID, c.OtherUserName, c.OtherUserPhoto,
		c.PlaceID, c.PlaceName, time.Now().UnixMilli())
	return err
}

// GetChat returns a chat by id, or nil if absent.
func (tx *Tx) GetChat(id string) (*Chat, error) { return getChat(tx.Tx, id) }

// GetChat returns a chat by id, or nil if absent.
func (db *DB) GetChat(id string) (*Chat, error) { return getChat(db.DB, id) }

// GetChatByMatch returns the chat owned by a match, or nil if the match
// has no conversation yet.
func (tx *Tx) GetChatByMatch(matchID string) (*Chat, error) {
	var c Chat
	err := tx.QueryRow(`SELECT `+chatCols+` FROM chats WHERE match_id = ?`, matchID).Scan(
		&c.ID, &c.MatchID, &c.CreatedAt, &c.LastMessageBody, &c.LastMessageAt,
		&c.UnreadCount, &c.OtherUserID, &c.OtherUserName, &c.OtherUserPhoto,
		&c.PlaceID, &c.PlaceName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// BumpChatOnMessage updates the chat's denormalized last-message fields,
// incrementing the unread count when the message came from the counterpart.
func (tx *Tx) BumpChatOnMessage(chatID, body string, at int64, fromCounterpart bool) error {
	unread := 0
	if fromCounterpart {
		unread = 1
	}
	_, err := tx.Exec(`
		UPDATE chats SET
			last_message_body = ?,
			last_message_at = ?,
			unread_count = unread_count + ?,
			updated_at = ?
		WHERE id = ?`,
		body, at, unread, time.Now().UnixMilli(), chatID)
	return err
}

// SetUnreadCount overwrites the chat's unread count.
func (tx *Tx) SetUnreadCount(chatID string, n int) error {
	_, err := tx.Exec(`UPDATE chats SET unread_count = ?, updated_at = ? WHERE id = ?`,
		n, time.Now().UnixMilli(), chatID)
	return err
}

// DeleteChatCascade removes a chat and its messages.
func (tx *Tx) DeleteChatCascade(chatID string) error {
	if _, err := tx.Exec(`DELETE FROM messages WHERE chat_id = ?`, chatID); err != nil {
		return err
	}
	_, err := tx.Exec(`DELETE FROM chats WHERE id = ?`, chatID)
	return err
}

// ListChats returns chats sorted by last message timestamp descending,
// chats with no messages yet last.
func (db *DB) ListChats(limit, offset int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT `+chatCols+` FROM chats
		ORDER BY last_message_at DESC, created_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.MatchID, &c.CreatedAt, &c.LastMessageBody,
			&c.LastMessageAt, &c.UnreadCount, &c.OtherUserID, &c.OtherUserName,
			&c.OtherUserPhoto, &c.PlaceID, &c.PlaceName); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// ChatIDs returns the set of chat ids currently cached.
func (db *DB) ChatIDs() (map[string]bool, error) {
	return idSet(db.DB, `SELECT id FROM chats`)
}

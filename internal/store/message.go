package store

import (
	"database/sql"
	"time"
)

const messageCols = `id, chat_id, sender_id, body, created_at, status, temp_id`

// InsertMessage inserts a message, surfacing a duplicate error if the id
// already exists. Realtime ingestion catches IsDuplicate and ignores it.
func (tx *Tx) InsertMessage(m *Message) error {
	_, err := tx.Exec(`
		INSERT INTO messages (`+messageCols+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ChatID, m.SenderID, m.Body, m.CreatedAt, m.Status, m.TempID,
		time.Now().UnixMilli())
	return err
}

// UpsertMessage inserts or refreshes a message (idempotent on id).
// Body never changes after creation; only status and the temp-id link are
// refreshed on conflict.
func (tx *Tx) UpsertMessage(m *Message) error {
	_, err := tx.Exec(`
		INSERT INTO messages (`+messageCols+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			temp_id = excluded.temp_id,
			updated_at = excluded.updated_at`,
		m.ID, m.ChatID, m.SenderID, m.Body, m.CreatedAt, m.Status, m.TempID,
		time.Now().UnixMilli())
	return err
}

// SetMessageStatus flips a message's delivery status.
func (tx *Tx) SetMessageStatus(id, status string) error {
	_, err := tx.Exec(`UPDATE messages SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UnixMilli(), id)
	return err
}

// DeleteMessage removes a single message row.
func (tx *Tx) DeleteMessage(id string) error {
	_, err := tx.Exec(`DELETE FROM messages WHERE id = ?`, id)
	return err
}

func getMessage(q querier, id string) (*Message, error) {
	var m Message
	err := q.QueryRow(`SELECT `+messageCols+` FROM messages WHERE id = ?`, id).Scan(
		&m.ID, &m.ChatID, &m.SenderID, &m.Body, &m.CreatedAt, &m.Status, &m.TempID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMessage returns a message by id, or nil if absent.
func (db *DB) GetMessage(id string) (*Message, error) { return getMessage(db.DB, id) }

// GetMessage returns a message by id, or nil if absent.
func (tx *Tx) GetMessage(id string) (*Message, error) { return getMessage(tx.Tx, id) }

func getMessageByTempID(q querier, tempID string) (*Message, error) {
	var m Message
	err := q.QueryRow(`SELECT `+messageCols+` FROM messages WHERE temp_id = ?`, tempID).Scan(
		&m.ID, &m.ChatID, &m.SenderID, &m.Body, &m.CreatedAt, &m.Status, &m.TempID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMessageByTempID locates the optimistic row for a pending or failed
// send, or nil if none exists.
func (db *DB) GetMessageByTempID(tempID string) (*Message, error) {
	return getMessageByTempID(db.DB, tempID)
}

// GetMessageByTempID locates the optimistic row inside the batch.
func (tx *Tx) GetMessageByTempID(tempID string) (*Message, error) {
	return getMessageByTempID(tx.Tx, tempID)
}

// ListMessages returns messages for a chat in ascending created-at order
// using keyset pagination: rows strictly older than beforeTs, newest page
// when beforeTs is zero.
func (db *DB) ListMessages(chatID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT * FROM (
			SELECT `+messageCols+` FROM messages
			WHERE chat_id = ? AND created_at < ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		) ORDER BY created_at ASC, id ASC`, chatID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Body, &m.CreatedAt,
			&m.Status, &m.TempID); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MessageIDs returns the set of message ids cached for a chat.
func (db *DB) MessageIDs(chatID string) (map[string]bool, error) {
	return idSet(db.DB, `SELECT id FROM messages WHERE chat_id = ?`, chatID)
}

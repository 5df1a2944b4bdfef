package store

import (
	"database/sql"
	"time"
)

const matchCols = `id, user_a_id, user_b_id, status, matched_at, unmatched_at,
	place_id, place_name, other_user_id, other_user_name, other_user_photo, first_message_at`

// upsertMatch inserts or updates a match record. A zero incoming
// first_message_at never clears one stamped earlier by the message path.
func upsertMatch(q querier, m *Match) error {
	_, err := q.Exec(`
		INSERT INTO matches (`+matchCols+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_a_id = excluded.user_a_id,
			user_b_id = excluded.user_b_id,
			status = excluded.status,
			matched_at = excluded.matched_at,
			unmatched_at = excluded.unmatched_at,
			place_id = excluded.place_id,
			place_name = excluded.place_name,
			other_user_id = excluded.other_user_id,
			other_user_name = excluded.other_user_name,
			other_user_photo = excluded.other_user_photo,
			first_message_at = CASE WHEN excluded.first_message_at > 0
				THEN excluded.first_message_at ELSE matches.first_message_at END,
			updated_at = excluded.updated_at`,
		m.ID, m.UserAID, m.UserBID, m.Status, m.MatchedAt, m.UnmatchedAt,
		m.PlaceID, m.PlaceName, m.OtherUserID, m.OtherUserName, m.OtherUserPhoto,
		m.FirstMessageAt, time.Now().UnixMilli())
	return err
}

func getMatch(q querier, id string) (*Match, error) {
	var m Match
	err := q.QueryRow(`SELECT `+matchCols+` FROM matches WHERE id = ?`, id).Scan(
		&m.ID, &m.UserAID, &m.UserBID, &m.Status, &m.MatchedAt, &m.UnmatchedAt,
		&m.PlaceID, &m.PlaceName, &m.OtherUserID, &m.OtherUserName, &m.OtherUserPhoto,
		&m.FirstMessageAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertMatch inserts or updates a match inside the batch.
func (tx *Tx) UpsertMatch(m *Match) error { return upsertMatch(tx.Tx, m) }

// GetMatch returns a match by id, or nil if absent.
func (tx *Tx) GetMatch(id string) (*Match, error) { return getMatch(tx.Tx, id) }

// GetMatch returns a match by id, or nil if absent.
func (db *DB) GetMatch(id string) (*Match, error) { return getMatch(db.DB, id) }

// SetFirstMessageAt stamps the match's first-message timestamp if it is
// not already set.
func (tx *Tx) SetFirstMessageAt(matchID string, at int64) error {
	_, err := tx.Exec(`
		UPDATE matches SET first_message_at = ?, updated_at = ?
		WHERE id = ? AND first_message_at = 0`,
		at, time.Now().UnixMilli(), matchID)
	return err
}

// DeleteMatchCascade hard-deletes a match together with its chat and the
// chat's messages. Unmatched conversations must disappear immediately and
// permanently on this device.
func (tx *Tx) DeleteMatchCascade(matchID string) error {
	if _, err := tx.Exec(`
		DELETE FROM messages WHERE chat_id IN
			(SELECT id FROM chats WHERE match_id = ?)`, matchID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM chats WHERE match_id = ?`, matchID); err != nil {
		return err
	}
	_, err := tx.Exec(`DELETE FROM matches WHERE id = ?`, matchID)
	return err
}

// ListMatches returns matches sorted by matched_at descending.
func (db *DB) ListMatches() ([]Match, error) {
	rows, err := db.Query(`SELECT ` + matchCols + ` FROM matches ORDER BY matched_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.UserAID, &m.UserBID, &m.Status, &m.MatchedAt,
			&m.UnmatchedAt, &m.PlaceID, &m.PlaceName, &m.OtherUserID, &m.OtherUserName,
			&m.OtherUserPhoto, &m.FirstMessageAt); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// CountMatches returns the number of matches in the cache.
func (db *DB) CountMatches() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM matches`).Scan(&n)
	return n, err
}

// MatchIDs returns the set of match ids currently cached.
func (db *DB) MatchIDs() (map[string]bool, error) {
	return idSet(db.DB, `SELECT id FROM matches`)
}

func idSet(q querier, query string, args ...any) (map[string]bool, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

package store

import (
	"fmt"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustTx(t *testing.T, db *DB, fn func(tx *Tx) error) {
	t.Helper()
	if err := db.RunTx(fn); err != nil {
		t.Fatal(err)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestMatchUpsertAndGet(t *testing.T) {
	db := testDB(t)

	m := &Match{ID: "m1", UserAID: "u1", UserBID: "u2", Status: MatchMatched,
		MatchedAt: 1000, OtherUserName: "Alice", PlaceName: "Cafe Central"}
	mustTx(t, db, func(tx *Tx) error { return tx.UpsertMatch(m) })

	// Upsert again with changed fields.
	m.Status = MatchActive
	m.OtherUserName = "Alice B"
	mustTx(t, db, func(tx *Tx) error { return tx.UpsertMatch(m) })

	got, err := db.GetMatch("m1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Status != MatchActive || got.OtherUserName != "Alice B" {
		t.Errorf("got %+v", got)
	}

	matches, err := db.ListMatches()
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
}

func TestMatchUpsertPreservesFirstMessageAt(t *testing.T) {
	db := testDB(t)

	mustTx(t, db, func(tx *Tx) error {
		return tx.UpsertMatch(&Match{ID: "m1", Status: MatchMatched, MatchedAt: 1000})
	})
	mustTx(t, db, func(tx *Tx) error { return tx.SetFirstMessageAt("m1", 2000) })

	// Re-upsert without a first-message timestamp must not clear it.
	mustTx(t, db, func(tx *Tx) error {
		return tx.UpsertMatch(&Match{ID: "m1", Status: MatchActive, MatchedAt: 1000})
	})

	got, err := db.GetMatch("m1")
	if err != nil {
		t.Fatal(err)
	}
	if got.FirstMessageAt != 2000 {
		t.Errorf("first_message_at = %d, want 2000", got.FirstMessageAt)
	}

	// SetFirstMessageAt is first-writer-wins.
	mustTx(t, db, func(tx *Tx) error { return tx.SetFirstMessageAt("m1", 9999) })
	got, _ = db.GetMatch("m1")
	if got.FirstMessageAt != 2000 {
		t.Errorf("first_message_at = %d after second stamp, want 2000", got.FirstMessageAt)
	}
}

func TestDuplicateMessageInsertDetectable(t *testing.T) {
	db := testDB(t)

	msg := &Message{ID: "msg1", ChatID: "c1", SenderID: "u2", Body: "hi",
		CreatedAt: 1000, Status: MessageSent}
	mustTx(t, db, func(tx *Tx) error { return tx.InsertMessage(msg) })

	err := db.RunTx(func(tx *Tx) error { return tx.InsertMessage(msg) })
	if err == nil {
		t.Fatal("expected duplicate insert error")
	}
	if !IsDuplicate(err) {
		t.Errorf("IsDuplicate(%v) = false, want true", err)
	}
	if IsDuplicate(fmt.Errorf("unrelated")) {
		t.Error("IsDuplicate(unrelated) = true")
	}
}

func TestDuplicateChatPerMatchDetectable(t *testing.T) {
	db := testDB(t)

	mustTx(t, db, func(tx *Tx) error {
		return tx.CreateChat(&Chat{ID: "c1", MatchID: "m1", CreatedAt: 1000})
	})
	// Second chat for the same match violates UNIQUE(match_id).
	err := db.RunTx(func(tx *Tx) error {
		return tx.CreateChat(&Chat{ID: "c2", MatchID: "m1", CreatedAt: 2000})
	})
	if !IsDuplicate(err) {
		t.Errorf("IsDuplicate(%v) = false, want true", err)
	}
}

func TestUnmatchCascade(t *testing.T) {
	db := testDB(t)

	mustTx(t, db, func(tx *Tx) error {
		if err := tx.UpsertMatch(&Match{ID: "m1", Status: MatchActive, MatchedAt: 1}); err != nil {
			return err
		}
		if err := tx.UpsertChat(&Chat{ID: "c1", MatchID: "m1", CreatedAt: 1}); err != nil {
			return err
		}
		return tx.InsertMessage(&Message{ID: "msg1", ChatID: "c1", SenderID: "u2",
			Body: "hi", CreatedAt: 2, Status: MessageSent})
	})

	mustTx(t, db, func(tx *Tx) error { return tx.DeleteMatchCascade("m1") })

	if m, _ := db.GetMatch("m1"); m != nil {
		t.Error("match survived cascade")
	}
	if c, _ := db.GetChat("c1"); c != nil {
		t.Error("chat survived cascade")
	}
	if msgs, _ := db.ListMessages("c1", 0, 10); len(msgs) != 0 {
		t.Errorf("got %d messages after cascade, want 0", len(msgs))
	}
}

func TestBumpChatOnMessage(t *testing.T) {
	db := testDB(t)

	mustTx(t, db, func(tx *Tx) error {
		return tx.UpsertChat(&Chat{ID: "c1", MatchID: "m1", CreatedAt: 1, UnreadCount: 2})
	})

	mustTx(t, db, func(tx *Tx) error {
		return tx.BumpChatOnMessage("c1", "hello", 5000, true)
	})
	c, err := db.GetChat("c1")
	if err != nil {
		t.Fatal(err)
	}
	if c.UnreadCount != 3 {
		t.Errorf("unread = %d, want 3", c.UnreadCount)
	}
	if c.LastMessageBody != "hello" || c.LastMessageAt != 5000 {
		t.Errorf("last message = %q @ %d", c.LastMessageBody, c.LastMessageAt)
	}

	// Own messages bump last-message fields without touching unread.
	mustTx(t, db, func(tx *Tx) error {
		return tx.BumpChatOnMessage("c1", "me too", 6000, false)
	})
	c, _ = db.GetChat("c1")
	if c.UnreadCount != 3 {
		t.Errorf("unread = %d after own message, want 3", c.UnreadCount)
	}

	mustTx(t, db, func(tx *Tx) error { return tx.SetUnreadCount("c1", 0) })
	c, _ = db.GetChat("c1")
	if c.UnreadCount != 0 {
		t.Errorf("unread = %d after reset, want 0", c.UnreadCount)
	}
}

func TestRunTxRollsBackOnError(t *testing.T) {
	db := testDB(t)

	boom := fmt.Errorf("boom")
	err := db.RunTx(func(tx *Tx) error {
		if err := tx.UpsertChat(&Chat{ID: "c1", MatchID: "m1", CreatedAt: 1}); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("err = %v, want boom", err)
	}
	if c, _ := db.GetChat("c1"); c != nil {
		t.Error("write survived rollback")
	}
}

func TestListMessagesOrderAndPagination(t *testing.T) {
	db := testDB(t)

	mustTx(t, db, func(tx *Tx) error {
		for i, id := range []string{"a", "b", "c"} {
			if err := tx.InsertMessage(&Message{ID: id, ChatID: "c1", SenderID: "u2",
				Body: id, CreatedAt: int64(1000 * (i + 1)), Status: MessageSent}); err != nil {
				return err
			}
		}
		return nil
	})

	msgs, err := db.ListMessages("c1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 || msgs[0].ID != "a" || msgs[2].ID != "c" {
		t.Errorf("order = %+v", msgs)
	}

	// Keyset: strictly older than 3000.
	msgs, err = db.ListMessages("c1", 3000, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Errorf("got %d messages before ts 3000, want 2", len(msgs))
	}
}

func TestGetMessageByTempID(t *testing.T) {
	db := testDB(t)

	mustTx(t, db, func(tx *Tx) error {
		return tx.InsertMessage(&Message{ID: "tmp-1", ChatID: "c1", SenderID: "me",
			Body: "hi", CreatedAt: 1000, Status: MessageSending, TempID: "tmp-1"})
	})

	m, err := db.GetMessageByTempID("tmp-1")
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.Status != MessageSending {
		t.Errorf("got %+v", m)
	}

	m, err = db.GetMessageByTempID("missing")
	if err != nil {
		t.Fatal(err)
	}
	if m != nil {
		t.Error("expected nil for missing temp id")
	}
}

func TestOpenSetsPragmas(t *testing.T) {
	db := testDB(t)

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Error("foreign_keys pragma not enabled")
	}
}

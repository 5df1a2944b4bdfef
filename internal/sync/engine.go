// Package sync reconciles the local store with authoritative backend
// state: a debounced full pull-and-merge that inserts what is missing,
// refreshes what changed, and deletes what the server no longer reports.
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jpcarvalho/lume/internal/bus"
	"github.com/jpcarvalho/lume/internal/remote"
	"github.com/jpcarvalho/lume/internal/store"
	"go.uber.org/zap"
)

// DefaultDebounce is the trigger coalescing window. Realtime handlers may
// trigger repeatedly during a burst; only the last trigger executes.
const DefaultDebounce = 500 * time.Millisecond

const messagePageSize = 100

// Stats summarizes a completed sync run.
type Stats struct {
	Matches  int
	Chats    int
	Messages int
	Removed  int
}

// Failure is the payload of a failed-sync event. Transient failures
// recover on the next trigger without operator attention.
type Failure struct {
	Err       string
	Transient bool
}

// Engine pulls server state and diff-merges it into the store. Running
// the same sync twice against unchanged server state leaves the store
// byte-for-byte identical.
type Engine struct {
	db     *store.DB
	client remote.Client
	bus    *bus.Bus
	logger *zap.Logger

	debounce time.Duration

	mu      sync.Mutex // guards timer and stopped
	timer   *time.Timer
	stopped bool

	runMu sync.Mutex // serializes sync runs
}

// NewEngine creates a sync engine. A non-positive debounce selects
// DefaultDebounce.
func NewEngine(db *store.DB, client remote.Client, b *bus.Bus, logger *zap.Logger, debounce time.Duration) *Engine {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Engine{
		db:       db,
		client:   client,
		bus:      b,
		logger:   logger,
		debounce: debounce,
	}
}

// Trigger schedules a sync after the debounce window. A pending timer is
// reset, not stacked: five triggers in quick succession run one sync.
func (e *Engine) Trigger() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.debounce, e.run)
}

// Stop cancels any pending debounced sync. A run already in progress
// finishes normally.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) run() {
	if err := e.SyncNow(context.Background()); err != nil {
		transient := remote.IsTransient(err)
		if transient {
			e.logger.Warn("sync failed, retrying on next trigger", zap.Error(err))
		} else {
			e.logger.Error("sync failed", zap.Error(err))
		}
		e.bus.Publish(bus.Event{
			Kind:    bus.KindSyncFailed,
			Payload: Failure{Err: err.Error(), Transient: transient},
		})
	}
}

// SyncNow performs a full reconciliation immediately, bypassing the
// debounce. Concurrent calls serialize.
func (e *Engine) SyncNow(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	e.bus.Publish(bus.Event{Kind: bus.KindSyncStarted})

	matches, err := e.client.FetchMatches(ctx)
	if err != nil {
		return fmt.Errorf("fetch matches: %w", err)
	}
	chats, err := e.client.FetchChats(ctx)
	if err != nil {
		return fmt.Errorf("fetch chats: %w", err)
	}

	messagesByChat := make(map[string][]remote.Message, len(chats))
	for _, c := range chats {
		msgs, err := e.client.FetchMessages(ctx, c.ID, remote.Page{Limit: messagePageSize})
		if err != nil {
			return fmt.Errorf("fetch messages for chat %s: %w", c.ID, err)
		}
		messagesByChat[c.ID] = msgs
	}

	// Snapshot local id sets before the write batch.
	localMatches, err := e.db.MatchIDs()
	if err != nil {
		return fmt.Errorf("local match ids: %w", err)
	}
	localChats, err := e.db.ChatIDs()
	if err != nil {
		return fmt.Errorf("local chat ids: %w", err)
	}
	localMessages := make(map[string][]store.Message, len(chats))
	for _, c := range chats {
		// Local rows older than the server's page floor are left alone
		// rather than mistaken for deletions; see StaleMessages.
		msgs, err := e.db.ListMessages(c.ID, 0, 2*messagePageSize)
		if err != nil {
			return fmt.Errorf("local messages for chat %s: %w", c.ID, err)
		}
		localMessages[c.ID] = msgs
	}

	var stats Stats
	err = e.db.RunTx(func(tx *store.Tx) error {
		serverMatches := make(map[string]bool, len(matches))
		for _, m := range matches {
			// A match the server still reports as unmatched is removed,
			// same as one it stopped reporting.
			if m.Status == store.MatchUnmatched {
				continue
			}
			rec := m.Record()
			if err := tx.UpsertMatch(&rec); err != nil {
				return fmt.Errorf("upsert match %s: %w", m.ID, err)
			}
			serverMatches[m.ID] = true
			stats.Matches++
		}
		for _, id := range StaleIDs(localMatches, serverMatches) {
			if err := tx.DeleteMatchCascade(id); err != nil {
				return fmt.Errorf("delete match %s: %w", id, err)
			}
			stats.Removed++
		}

		serverChats := make(map[string]bool, len(chats))
		for _, c := range chats {
			if !serverMatches[c.MatchID] {
				continue
			}
			rec := c.Record()
			if err := tx.UpsertChat(&rec); err != nil {
				return fmt.Errorf("upsert chat %s: %w", c.ID, err)
			}
			serverChats[c.ID] = true
			stats.Chats++
		}
		for _, id := range StaleIDs(localChats, serverChats) {
			if err := tx.DeleteChatCascade(id); err != nil {
				return fmt.Errorf("delete chat %s: %w", id, err)
			}
			stats.Removed++
		}

		for chatID, msgs := range messagesByChat {
			if !serverChats[chatID] {
				continue
			}
			serverMsgs := make(map[string]bool, len(msgs))
			for _, m := range msgs {
				rec := m.Record()
				if err := tx.UpsertMessage(&rec); err != nil {
					return fmt.Errorf("upsert message %s: %w", m.ID, err)
				}
				serverMsgs[m.ID] = true
				stats.Messages++
			}
			floor := PageFloor(msgs, messagePageSize)
			for _, id := range StaleMessages(localMessages[chatID], serverMsgs, floor) {
				if err := tx.DeleteMessage(id); err != nil {
					return fmt.Errorf("delete message %s: %w", id, err)
				}
				stats.Removed++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("sync completed",
		zap.Int("matches", stats.Matches),
		zap.Int("chats", stats.Chats),
		zap.Int("messages", stats.Messages),
		zap.Int("removed", stats.Removed))
	e.bus.Publish(bus.Event{Kind: bus.KindSyncCompleted, Payload: stats})
	return nil
}

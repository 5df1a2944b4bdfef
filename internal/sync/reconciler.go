package sync

import (
	"sort"

	"github.com/jpcarvalho/lume/internal/remote"
	"github.com/jpcarvalho/lume/internal/store"
)

// This file holds the pure merge logic shared by the sync engine and the
// optimistic write path. Nothing here touches the network or the database.

// StaleIDs returns the local ids the server no longer reports, in
// deterministic order.
func StaleIDs(local, server map[string]bool) []string {
	var stale []string
	for id := range local {
		if !server[id] {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)
	return stale
}

// StaleMessages returns the ids of local messages to delete against a
// server page. Optimistic rows (sending/failed) are local-only and
// never considered stale: the server does not know them yet. Rows
// created before floor fall outside the page the server reported and
// are kept; only rows the page actually covers can be declared stale.
func StaleMessages(local []store.Message, server map[string]bool, floor int64) []string {
	var stale []string
	for _, m := range local {
		if m.Status != store.MessageSent {
			continue
		}
		if m.CreatedAt < floor {
			continue
		}
		if !server[m.ID] {
			stale = append(stale, m.ID)
		}
	}
	sort.Strings(stale)
	return stale
}

// PageFloor returns the oldest created-at in a full server page, the
// bound below which the page says nothing about deletions. A short page
// covers the chat's entire history and returns zero.
func PageFloor(msgs []remote.Message, pageSize int) int64 {
	if len(msgs) < pageSize {
		return 0
	}
	floor := msgs[0].CreatedAt
	for _, m := range msgs[1:] {
		if m.CreatedAt < floor {
			floor = m.CreatedAt
		}
	}
	return floor
}

// SendPlan describes the row mutations that reconcile an optimistic row
// with its server-confirmed record.
type SendPlan struct {
	// RemoveID is the optimistic row to delete, empty if none.
	RemoveID string
	// Insert is the confirmed row, carrying the temp-id link.
	Insert store.Message
}

// PlanConfirm computes the mutations for a successful send: the pending
// row (if any) is replaced by the confirmed record under the server's
// canonical id, keeping the temp-id so retries and UI rows stay linked.
func PlanConfirm(pending *store.Message, confirmed remote.Message) SendPlan {
	plan := SendPlan{Insert: confirmed.Record()}
	if pending != nil {
		plan.Insert.TempID = pending.TempID
		if pending.ID != confirmed.ID {
			plan.RemoveID = pending.ID
		}
	}
	return plan
}

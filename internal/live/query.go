// Package live provides restartable, observable store queries. A query
// re-runs whenever matching bus events arrive and emits keyed diffs, so
// UI lists and unread badges follow the store without polling.
package live

import (
	"go.uber.org/zap"

	"github.com/jpcarvalho/lume/internal/bus"
)

// Op classifies a record change between two query runs.
type Op string

const (
	OpAdded   Op = "added"
	OpUpdated Op = "updated"
	OpRemoved Op = "removed"
)

// Change is a single record diff.
type Change[T comparable] struct {
	Op     Op
	Record T
}

// Update carries the full snapshot after a run plus the diffs against
// the previous run. The first update has every record as Added.
type Update[T comparable] struct {
	Snapshot []T
	Changes  []Change[T]
}

// Query is a running observable query. Updates arrive on C; the channel
// carries latest-value semantics — an unread update is replaced rather
// than queued, and the snapshot is always complete.
type Query[T comparable] struct {
	C <-chan Update[T]

	ch     chan Update[T]
	fetch  func() ([]T, error)
	key    func(T) string
	subs   []*bus.Subscription
	notify chan struct{}
	done   chan struct{}
	logger *zap.Logger
}

// Watch starts a query that re-runs on any bus event matching one of
// prefixes. fetch must return records in stable order; key must be
// unique per record. The initial snapshot is emitted before Watch
// returns.
func Watch[T comparable](b *bus.Bus, prefixes []string, fetch func() ([]T, error), key func(T) string, logger *zap.Logger) (*Query[T], error) {
	q := &Query[T]{
		ch:     make(chan Update[T], 1),
		fetch:  fetch,
		key:    key,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
	q.C = q.ch

	initial, err := fetch()
	if err != nil {
		return nil, err
	}
	first := Update[T]{Snapshot: initial}
	for _, rec := range initial {
		first.Changes = append(first.Changes, Change[T]{Op: OpAdded, Record: rec})
	}
	q.emit(first)

	for _, prefix := range prefixes {
		sub := b.Subscribe(prefix, 64)
		q.subs = append(q.subs, sub)
		go q.forward(sub)
	}
	go q.loop(initial)
	return q, nil
}

// Close stops the query. C is closed after the last update.
func (q *Query[T]) Close() {
	select {
	case <-q.done:
		return
	default:
	}
	close(q.done)
	for _, sub := range q.subs {
		sub.Close()
	}
}

func (q *Query[T]) forward(sub *bus.Subscription) {
	for {
		select {
		case <-sub.C:
			select {
			case q.notify <- struct{}{}:
			default:
				// A re-run is already pending; coalesce.
			}
		case <-q.done:
			return
		}
	}
}

func (q *Query[T]) loop(prev []T) {
	defer close(q.ch)
	for {
		select {
		case <-q.notify:
		case <-q.done:
			return
		}

		next, err := q.fetch()
		if err != nil {
			q.logger.Warn("live query refresh failed", zap.Error(err))
			continue
		}
		changes := Diff(prev, next, q.key)
		prev = next
		if len(changes) == 0 {
			continue
		}
		q.emit(Update[T]{Snapshot: next, Changes: changes})
	}
}

func (q *Query[T]) emit(u Update[T]) {
	for {
		select {
		case q.ch <- u:
			return
		default:
			// Replace the unread update with the fresher one.
			select {
			case <-q.ch:
			default:
			}
		}
	}
}

// Diff computes keyed changes between two query runs.
func Diff[T comparable](prev, next []T, key func(T) string) []Change[T] {
	prevByKey := make(map[string]T, len(prev))
	for _, rec := range prev {
		prevByKey[key(rec)] = rec
	}

	var changes []Change[T]
	seen := make(map[string]bool, len(next))
	for _, rec := range next {
		k := key(rec)
		seen[k] = true
		old, ok := prevByKey[k]
		switch {
		case !ok:
			changes = append(changes, Change[T]{Op: OpAdded, Record: rec})
		case old != rec:
			changes = append(changes, Change[T]{Op: OpUpdated, Record: rec})
		}
	}
	for _, rec := range prev {
		if !seen[key(rec)] {
			changes = append(changes, Change[T]{Op: OpRemoved, Record: rec})
		}
	}
	return changes
}

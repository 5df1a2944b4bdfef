package api

import (
	"github.com/jpcarvalho/lume/internal/bus"
	"github.com/jpcarvalho/lume/internal/live"
	"github.com/jpcarvalho/lume/internal/store"
	"go.uber.org/zap"
)

// MatchService exposes match reads and watches.
type MatchService struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// NewMatchService creates the match service.
func NewMatchService(db *store.DB, b *bus.Bus, logger *zap.Logger) *MatchService {
	return &MatchService{db: db, bus: b, logger: logger}
}

// ListMatches returns matches newest first.
func (s *MatchService) ListMatches() ([]store.Match, error) {
	return s.db.ListMatches()
}

// GetMatch returns a match by id, or nil if absent.
func (s *MatchService) GetMatch(id string) (*store.Match, error) {
	return s.db.GetMatch(id)
}

// WatchMatches returns a live query over the match list.
func (s *MatchService) WatchMatches() (*live.Query[store.Match], error) {
	return live.Watch(s.bus,
		[]string{"store.match.", "sync."},
		func() ([]store.Match, error) { return s.db.ListMatches() },
		func(m store.Match) string { return m.ID },
		s.logger)
}

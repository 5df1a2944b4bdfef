package daemon

import (
	"github.com/jpcarvalho/lume/internal/bus"
	"go.uber.org/zap"
)

// reviewPrompter relays a store-review request to the app shell. The
// daemon has no UI of its own, so the request goes out as a bus event
// for whichever surface embeds the core to pick up.
type reviewPrompter struct {
	bus    *bus.Bus
	logger *zap.Logger
}

func newReviewPrompter(b *bus.Bus, logger *zap.Logger) *reviewPrompter {
	return &reviewPrompter{bus: b, logger: logger}
}

func (r *reviewPrompter) RequestReview() {
	r.logger.Info("requesting app review prompt")
	r.bus.Publish(bus.Event{Kind: bus.KindReviewRequested})
}

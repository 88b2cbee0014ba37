package discovery

import (
	"context"
	"time"

	"github.com/cloo-solutions/insightd/internal/domain"
	cb "github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerPlatform trips after repeated upstream failures so a dead platform
// fails fast for the rest of the cycle.
type BreakerPlatform struct {
	next    Platform
	breaker *cb.CircuitBreaker
}

func NewBreakerPlatform(next Platform, logger *zap.Logger) *BreakerPlatform {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := cb.Settings{
		Name:        "content-platform",
		MaxRequests: 1,
		Interval:    10 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts cb.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to cb.State) {
			logger.Warn("circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &BreakerPlatform{next: next, breaker: cb.NewCircuitBreaker(settings)}
}

func (b *BreakerPlatform) ListRecent(ctx context.Context, channelID string, since time.Time, limit int) ([]domain.ContentItem, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.ListRecent(ctx, channelID, since, limit)
	})
	if err != nil {
		return nil, err
	}
	items, _ := out.([]domain.ContentItem)
	return items, nil
}

func (b *BreakerPlatform) Details(ctx context.Context, ids []string) (map[string]int, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.Details(ctx, ids)
	})
	if err != nil {
		return nil, err
	}
	durations, _ := out.(map[string]int)
	return durations, nil
}

// State reports the breaker state, mostly for tests and health output.
func (b *BreakerPlatform) State() cb.State {
	return b.breaker.State()
}

package clicks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaypath/edge/internal/infrastructure/logger"
	"github.com/relaypath/edge/internal/storage/redis"
)

// Deduper is the atomic set-if-absent-with-TTL primitive on the
// shared store.
type Deduper interface {
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// Publisher relays a payload for asynchronous at-least-once delivery.
type Publisher interface {
	PublishClick(ctx context.Context, eventID string, click ClickEvent) error
}

// Pipeline deduplicates clicks and relays them for persistence. It
// runs after the response has been determined; nothing here may alter
// what the visitor already got.
type Pipeline struct {
	dedup     Deduper
	publisher Publisher
	now       func() time.Time
	newID     func() string
}

func NewPipeline(dedup Deduper, publisher Publisher) *Pipeline {
	return &Pipeline{
		dedup:     dedup,
		publisher: publisher,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Capture applies both dedup windows and, if the click is first of its
// kind, publishes it to the relay. Duplicates are dropped silently:
// a suppressed duplicate is not an error and produces no log line.
// A dedup-store failure fails open; the click is still published.
func (p *Pipeline) Capture(ctx context.Context, click ClickEvent) error {
	if click.CreatedAt.IsZero() {
		click.CreatedAt = p.now().UTC()
	}

	// Technical retry: the edge may replay the same request (same ray
	// id) for up to two minutes.
	if click.RayID != "" {
		fresh, err := p.dedup.SetIfAbsent(ctx, redis.RayDedupKey(click.RayID, click.Slug), "1", redis.RayDedupTTL)
		if err != nil {
			logger.Warn("ray dedup check failed, continuing",
				zap.Error(err), zap.String("ray_id", click.RayID))
		} else if !fresh {
			return nil
		}
	}

	// Rapid human double-click from the same IP on the same slug.
	if click.IP != "" {
		fresh, err := p.dedup.SetIfAbsent(ctx, redis.IPDedupKey(click.IP, click.Slug), "1", redis.IPDedupTTL)
		if err != nil {
			logger.Warn("ip dedup check failed, continuing",
				zap.Error(err), zap.String("slug", click.Slug))
		} else if !fresh {
			return nil
		}
	}

	return p.publisher.PublishClick(ctx, p.newID(), click)
}

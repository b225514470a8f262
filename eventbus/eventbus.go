// Package eventbus implements a topic-per-task publish/subscribe layer on
// top of Redis. Delivery is best-effort: durable history lives in the
// execution log and the metadata repositories, not here. Publish never
// blocks or propagates an error to its caller — a node mid-workflow must
// never fail because a subscriber's buffer filled up or Redis hiccuped.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/roadmapforge/orchestrator/roadmap"
)

// subscriberBuffer bounds how many undelivered events a slow subscriber can
// accumulate before the bus starts dropping its oldest queued event. A
// single pathological subscriber must never apply backpressure to Publish.
const subscriberBuffer = 64

// Bus is a Redis-backed event bus: one Redis pub/sub channel per task_id.
type Bus struct {
	rdb    *redis.Client
	logger *slog.Logger

	// subscriberRate and subscriberBurst configure a fresh token bucket
	// per Subscribe/SubscribeWithTimeout call, pacing delivery to that one
	// subscriber independent of Redis's own publish rate. Zero means
	// unlimited (the default).
	subscriberRate  rate.Limit
	subscriberBurst int
}

// New wraps an existing Redis client. The caller owns the client's
// lifecycle (Close it during shutdown).
func New(rdb *redis.Client, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{rdb: rdb, logger: logger}
}

// WithSubscriberRateLimit bounds how many events per second any one
// subscriber's channel receives, via a token bucket per subscription. A
// subscriber that would otherwise be flooded (a hot task_id with many
// rapid node transitions) is paced instead of either blocking Publish or
// silently losing everything past subscriberBuffer. Returns the same Bus
// for chaining with New.
func (b *Bus) WithSubscriberRateLimit(eventsPerSecond float64, burst int) *Bus {
	b.subscriberRate = rate.Limit(eventsPerSecond)
	b.subscriberBurst = burst
	return b
}

func channelName(taskID string) string {
	return "roadmap:task:" + taskID
}

// Publish fans event out to every current subscriber of task_id. Failures
// are logged, never returned to the caller — workflow progress must never
// be gated on the bus being reachable.
func (b *Bus) Publish(ctx context.Context, taskID string, event roadmap.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("eventbus: marshal event failed", "task_id", taskID, "error", err)
		return
	}
	if err := b.rdb.Publish(ctx, channelName(taskID), payload).Err(); err != nil {
		b.logger.Warn("eventbus: publish failed", "task_id", taskID, "error", err)
	}
}

// Subscribe returns a channel of events for task_id, closed once a terminal
// event (completed | failed | timeout, per roadmap.EventType.Terminal) is
// observed or the context is cancelled. The returned unsubscribe function
// must be called to release the underlying Redis subscription; it is safe
// to call more than once.
func (b *Bus) Subscribe(ctx context.Context, taskID string) (<-chan roadmap.Event, func()) {
	return b.subscribe(ctx, taskID, 0)
}

// SubscribeWithTimeout behaves like Subscribe but additionally closes the
// stream after timeout, emitting a synthetic EventTimeout first.
func (b *Bus) SubscribeWithTimeout(ctx context.Context, taskID string, timeout time.Duration) (<-chan roadmap.Event, func()) {
	return b.subscribe(ctx, taskID, timeout)
}

func (b *Bus) subscribe(ctx context.Context, taskID string, timeout time.Duration) (<-chan roadmap.Event, func()) {
	sub := b.rdb.Subscribe(ctx, channelName(taskID))
	redisCh := sub.Channel()

	out := make(chan roadmap.Event, subscriberBuffer)

	var limiter *rate.Limiter
	if b.subscriberRate > 0 {
		limiter = rate.NewLimiter(b.subscriberRate, b.subscriberBurst)
	}

	ctx, cancel := context.WithCancel(ctx)
	var deadline <-chan time.Time
	var timer *time.Timer
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		deadline = timer.C
	}

	go func() {
		defer close(out)
		defer sub.Close()
		if timer != nil {
			defer timer.Stop()
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-deadline:
				sendDropOldest(out, roadmap.Event{
					Type:      roadmap.EventTimeout,
					TaskID:    taskID,
					CreatedAt: time.Now(),
				})
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				var event roadmap.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn("eventbus: malformed event payload", "task_id", taskID, "error", err)
					continue
				}
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return
					}
				}
				sendDropOldest(out, event)
				if event.Type.Terminal() {
					return
				}
			}
		}
	}()

	return out, cancel
}

// sendDropOldest pushes event onto ch, dropping the oldest queued event if
// the buffer is full rather than blocking the publisher's goroutine.
func sendDropOldest(ch chan roadmap.Event, event roadmap.Event) {
	select {
	case ch <- event:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- event:
	default:
	}
}

// Ping verifies the underlying Redis connection is reachable.
func (b *Bus) Ping(ctx context.Context) error {
	if err := b.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("eventbus: ping redis: %w", err)
	}
	return nil
}

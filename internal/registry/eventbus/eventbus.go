// Package eventbus implements the Event Bus Client (C2): a fan-out
// publisher over named topics, generalizing internal/realtime/bus's
// single-channel Redis pub/sub client to the registry's two topics
// (jobs.lifecycle, system.lifecycle). Publication is best-effort: the
// transition is durably committed before publish is attempted, and a
// publish failure is logged, never propagated as a transition failure.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/yungbote/neurobridge-backend/internal/pkg/logger"
)

const (
	TopicJobsLifecycle   = "jobs.lifecycle"
	TopicSystemLifecycle = "system.lifecycle"
)

// Event is the payload published on both topics; fields not relevant to an
// event kind are left zero.
type Event struct {
	Event   string    `json:"event"`
	JobID   string    `json:"job_id,omitempty"`
	Owner   string    `json:"owner,omitempty"`
	Stage   string    `json:"stage,omitempty"`
	At      time.Time `json:"at"`
	TraceID string    `json:"trace_id,omitempty"`
}

// Bus is the Event Bus Client contract (C2).
type Bus interface {
	Publish(ctx context.Context, topic string, event Event) error
	// Subscribe is an optimization for latency-sensitive notifiers; it is
	// never required for registry correctness.
	Subscribe(ctx context.Context, topic string, onEvent func(Event)) error
	Close() error
}

type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// New dials Redis at addr and returns a topic-based Bus. Each topic is a
// distinct Redis pub/sub channel, named identically to the topic string.
// timeout bounds every Publish call (spec.md §5); a non-positive value
// disables the deadline.
func New(addr string, timeout time.Duration, baseLog *logger.Logger) (Bus, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("event bus: redis ping: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "registry-eventbus",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &redisBus{
		log:     baseLog.With("component", "registry.EventBus"),
		rdb:     rdb,
		breaker: breaker,
		timeout: timeout,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, topic string, event Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		b.log.Warn("event marshal failed", "topic", topic, "error", err)
		return nil
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	_, err = b.breaker.Execute(func() (any, error) {
		op := func() error { return b.rdb.Publish(ctx, topic, raw).Err() }
		bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
		return backoff.Retry(op, bo)
	})
	if err != nil {
		// Best-effort: the transition already committed; log and move on.
		b.log.Warn("event publish failed", "topic", topic, "event", event.Event, "job_id", event.JobID, "error", err)
	}
	return nil
}

func (b *redisBus) Subscribe(ctx context.Context, topic string, onEvent func(Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	sub := b.rdb.Subscribe(ctx, topic)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("event bus: subscribe %s: %w", topic, err)
	}
	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					b.log.Warn("bad event payload", "topic", topic, "error", err)
					continue
				}
				onEvent(event)
			}
		}
	}()
	return nil
}

func (b *redisBus) Close() error {
	return b.rdb.Close()
}

package homework

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// EventBus relays subprocess events from the worker to the API's SSE
// handlers over Redis pub/sub, one channel per job.
type EventBus struct {
	rdb *redis.Client
}

func NewEventBus(rdb *redis.Client) *EventBus {
	return &EventBus{rdb: rdb}
}

func channelFor(jobID string) string {
	return fmt.Sprintf("homework:events:%s", jobID)
}

// Publish sends one event to a job's channel. Publish failures are
// returned so the worker can log them but they never fail the job.
func (b *EventBus) Publish(ctx context.Context, jobID string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return b.rdb.Publish(ctx, channelFor(jobID), payload).Err()
}

// Subscribe delivers a job's events until ctx is cancelled. The
// returned channel closes when the subscription ends; undecodable
// payloads are dropped.
func (b *EventBus) Subscribe(ctx context.Context, jobID string) (<-chan Event, func()) {
	sub := b.rdb.Subscribe(ctx, channelFor(jobID))
	out := make(chan Event, 16)

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"vmdesk.app/internal/core/domain"
	"vmdesk.app/internal/core/logger"
	"vmdesk.app/internal/core/metrics"
	"vmdesk.app/internal/core/ports"
)

const (
	RunQueueKey      = "vmdesk:runs:queue"
	StatusChannel    = "vmdesk:runs:status"
	RunUpdateChannel = "vmdesk:runs:updates"
	CancelChannel    = "vmdesk:runs:cancels" // Channel for run cancellation signals

	dequeuePoll = time.Second
)

var (
	_ ports.RunQueue    = (*RedisAdapter)(nil)
	_ ports.EventPubSub = (*RedisAdapter)(nil)
)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(url string) (*RedisAdapter, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	return &RedisAdapter{client: client}, client, nil
}

// Queue Implementation
func (r *RedisAdapter) Enqueue(ctx context.Context, run *domain.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	depth, err := r.client.RPush(ctx, RunQueueKey, data).Result()
	if err != nil {
		return err
	}
	metrics.SetQueueDepth(depth)
	return nil
}

// Dequeue blocks for up to one poll interval and returns nil, nil when nothing arrived.
func (r *RedisAdapter) Dequeue(ctx context.Context) (*domain.Run, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	res, err := r.client.BLPop(ctx, dequeuePoll, RunQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	if depth, err := r.client.LLen(ctx, RunQueueKey).Result(); err == nil {
		metrics.SetQueueDepth(depth)
	}

	// res[0] is key, res[1] is value
	var run domain.Run
	if err := json.Unmarshal([]byte(res[1]), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// PubSub Implementation
func (r *RedisAdapter) PublishStatus(ctx context.Context, event domain.StatusEvent) error {
	return r.publish(ctx, StatusChannel, event)
}

func (r *RedisAdapter) PublishRunUpdate(ctx context.Context, runID string, status domain.RunStatus) error {
	return r.publish(ctx, RunUpdateChannel, domain.RunUpdate{RunID: runID, Status: status})
}

func (r *RedisAdapter) PublishCancel(ctx context.Context, runID string) error {
	return r.client.Publish(ctx, CancelChannel, runID).Err()
}

func (r *RedisAdapter) publish(ctx context.Context, channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// SubscribeStatus streams slot events, filtered to runID unless it is empty.
func (r *RedisAdapter) SubscribeStatus(ctx context.Context, runID string) (<-chan domain.StatusEvent, error) {
	return subscribe(ctx, r.client, StatusChannel, func(payload string) (domain.StatusEvent, bool) {
		var event domain.StatusEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return event, false
		}
		return event, runID == "" || event.RunID == runID
	})
}

func (r *RedisAdapter) SubscribeRunUpdates(ctx context.Context) (<-chan domain.RunUpdate, error) {
	return subscribe(ctx, r.client, RunUpdateChannel, func(payload string) (domain.RunUpdate, bool) {
		var update domain.RunUpdate
		if err := json.Unmarshal([]byte(payload), &update); err != nil {
			return update, false
		}
		return update, true
	})
}

func (r *RedisAdapter) SubscribeCancel(ctx context.Context) (<-chan string, error) {
	return subscribe(ctx, r.client, CancelChannel, func(payload string) (string, bool) {
		return payload, payload != ""
	})
}

func subscribe[T any](ctx context.Context, client *redis.Client, channel string, decode func(string) (T, bool)) (<-chan T, error) {
	pubsub := client.Subscribe(ctx, channel)
	// Wait for the subscription so early publishes are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}
	ch := make(chan T)

	go func() {
		defer pubsub.Close()
		defer close(ch)

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				v, keep := decode(msg.Payload)
				if !keep {
					logger.Debug("Dropping pubsub message", "channel", channel)
					continue
				}
				select {
				case ch <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vmdesk.app/internal/core/domain"
	"vmdesk.app/internal/core/ports"
)

const (
	dlqKey        = "vmdesk:dlq"
	dlqMetaPrefix = "vmdesk:dlq:meta:"
)

var (
	_ ports.DeadLetters = (*DeadLetterQueue)(nil)

	ErrNotInDLQ = errors.New("run not found in DLQ")
)

type DeadLetterQueue struct {
	client *redis.Client
}

type DLQEntry struct {
	Run         *domain.Run `json:"run"`
	FailureTime time.Time   `json:"failure_time"`
	Reason      string      `json:"reason"`
	RetryCount  int         `json:"retry_count"`
}

func NewDeadLetterQueue(client *redis.Client) *DeadLetterQueue {
	return &DeadLetterQueue{client: client}
}

// Add adds a failed run to the DLQ
func (dlq *DeadLetterQueue) Add(ctx context.Context, run *domain.Run, reason string) error {
	entry := DLQEntry{
		Run:         run,
		FailureTime: time.Now(),
		Reason:      reason,
		RetryCount:  run.RetryCount,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ entry: %w", err)
	}

	score := float64(entry.FailureTime.Unix())
	pipe := dlq.client.TxPipeline()
	pipe.ZAdd(ctx, dlqKey, redis.Z{Score: score, Member: run.ID})
	pipe.Set(ctx, dlqMetaPrefix+run.ID, data, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add to DLQ: %w", err)
	}
	return nil
}

// Get retrieves a run from the DLQ
func (dlq *DeadLetterQueue) Get(ctx context.Context, runID string) (*DLQEntry, error) {
	data, err := dlq.client.Get(ctx, dlqMetaPrefix+runID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotInDLQ
		}
		return nil, fmt.Errorf("failed to get DLQ entry: %w", err)
	}

	var entry DLQEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DLQ entry: %w", err)
	}
	return &entry, nil
}

// List returns runs in the DLQ, newest first.
func (dlq *DeadLetterQueue) List(ctx context.Context, offset, limit int64) ([]*DLQEntry, error) {
	runIDs, err := dlq.client.ZRevRange(ctx, dlqKey, offset, offset+limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list DLQ: %w", err)
	}

	entries := make([]*DLQEntry, 0, len(runIDs))
	for _, runID := range runIDs {
		entry, err := dlq.Get(ctx, runID)
		if err != nil {
			// Skip if metadata not found
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Remove removes a run from the DLQ
func (dlq *DeadLetterQueue) Remove(ctx context.Context, runID string) error {
	pipe := dlq.client.TxPipeline()
	pipe.ZRem(ctx, dlqKey, runID)
	pipe.Del(ctx, dlqMetaPrefix+runID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove from DLQ: %w", err)
	}
	return nil
}

// Count returns the total number of runs in the DLQ
func (dlq *DeadLetterQueue) Count(ctx context.Context) (int64, error) {
	count, err := dlq.client.ZCard(ctx, dlqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count DLQ: %w", err)
	}
	return count, nil
}

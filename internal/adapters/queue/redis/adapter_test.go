package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"vmdesk.app/internal/core/domain"
)

func newTestAdapter(t *testing.T) (*RedisAdapter, *DeadLetterQueue) {
	t.Helper()
	mr := miniredis.RunT(t)
	adapter, client, err := NewRedisAdapter("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisAdapter: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return adapter, NewDeadLetterQueue(client)
}

func TestQueueFIFO(t *testing.T) {
	r, _ := newTestAdapter(t)
	ctx := context.Background()

	for _, id := range []string{"run-1", "run-2"} {
		if err := r.Enqueue(ctx, &domain.Run{ID: id, Workflow: domain.WorkflowCheck}); err != nil {
			t.Fatalf("Enqueue(%s): %v", id, err)
		}
	}
	for _, want := range []string{"run-1", "run-2"} {
		run, err := r.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if run == nil || run.ID != want || run.Workflow != domain.WorkflowCheck {
			t.Errorf("Dequeue() = %+v, want %s", run, want)
		}
	}
}

func TestDequeueEmptyQueue(t *testing.T) {
	r, _ := newTestAdapter(t)

	run, err := r.Dequeue(context.Background())
	if err != nil || run != nil {
		t.Errorf("Dequeue() = %v, %v; want nil, nil", run, err)
	}
}

func TestDequeueCancelledContext(t *testing.T) {
	r, _ := newTestAdapter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Dequeue(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSubscribeStatusFiltersRun(t *testing.T) {
	r, _ := newTestAdapter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := r.SubscribeStatus(ctx, "run-1")
	if err != nil {
		t.Fatalf("SubscribeStatus: %v", err)
	}
	for _, id := range []string{"run-2", "run-1"} {
		event := domain.StatusEvent{RunID: id, State: domain.SlotState{Slot: 1, Status: domain.SlotStatusWorking}, At: time.Now()}
		if err := r.PublishStatus(ctx, event); err != nil {
			t.Fatalf("PublishStatus: %v", err)
		}
	}

	select {
	case event := <-events:
		if event.RunID != "run-1" || event.State.Status != domain.SlotStatusWorking {
			t.Errorf("event = %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no status event received")
	}
}

func TestSubscribeRunUpdatesAndCancel(t *testing.T) {
	r, _ := newTestAdapter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := r.SubscribeRunUpdates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cancels, err := r.SubscribeCancel(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.PublishRunUpdate(ctx, "run-9", domain.RunStatusRunning); err != nil {
		t.Fatal(err)
	}
	if err := r.PublishCancel(ctx, "run-9"); err != nil {
		t.Fatal(err)
	}

	select {
	case u := <-updates:
		if u.RunID != "run-9" || u.Status != domain.RunStatusRunning {
			t.Errorf("update = %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no run update received")
	}
	select {
	case id := <-cancels:
		if id != "run-9" {
			t.Errorf("cancel = %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no cancel received")
	}

	cancel()
	select {
	case _, ok := <-updates:
		if ok {
			t.Error("update received after the subscription ended")
		}
	case <-time.After(2 * time.Second):
		t.Error("subscription channel not closed")
	}
}

func TestDeadLetterQueue(t *testing.T) {
	_, dlq := newTestAdapter(t)
	ctx := context.Background()

	if err := dlq.Add(ctx, &domain.Run{ID: "run-1", RetryCount: 3}, "VM1: boom"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := dlq.Add(ctx, &domain.Run{ID: "run-2"}, "no slot completed"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if n, err := dlq.Count(ctx); err != nil || n != 2 {
		t.Errorf("Count() = %d, %v", n, err)
	}
	entry, err := dlq.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Reason != "VM1: boom" || entry.RetryCount != 3 || entry.Run.ID != "run-1" {
		t.Errorf("entry = %+v", entry)
	}

	page, err := dlq.List(ctx, 0, 1)
	if err != nil || len(page) != 1 {
		t.Errorf("List(0, 1) = %v, %v", page, err)
	}

	if err := dlq.Remove(ctx, "run-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := dlq.Get(ctx, "run-1"); !errors.Is(err, ErrNotInDLQ) {
		t.Errorf("Get after Remove err = %v, want ErrNotInDLQ", err)
	}
	if n, _ := dlq.Count(ctx); n != 1 {
		t.Errorf("Count() after Remove = %d", n)
	}
}

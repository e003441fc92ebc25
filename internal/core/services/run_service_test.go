package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"vmdesk.app/internal/core/domain"
	"vmdesk.app/internal/core/planner"
)

type fixture struct {
	repo     *mockRunRepo
	queue    *mockQueue
	pubsub   *mockPubSub
	dlq      *mockDLQ
	provider *mockProvider
	svc      *RunService
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMockRunRepo(),
		queue:    newMockQueue(),
		pubsub:   newMockPubSub(),
		dlq:      newMockDLQ(),
		provider: newMockProvider(),
	}
	orch := NewOrchestrator(f.provider, NewEventObserver(f.pubsub), nil)
	f.svc = NewRunService(f.repo, f.queue, f.pubsub, f.dlq, orch)
	return f
}

// The check workflow has a single undelayed task.
var checkRequest = domain.Request{Workflow: domain.WorkflowCheck}

func TestCreateRun(t *testing.T) {
	f := newFixture()

	run, err := f.svc.CreateRun(context.Background(), domain.Request{
		Workflow: domain.WorkflowSingle,
		Prompt:   "research electric bikes",
	})
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if !strings.HasPrefix(run.ID, "run-") {
		t.Errorf("ID = %q", run.ID)
	}
	if run.Status != domain.RunStatusPending || run.MaxRetries != defaultMaxRetries {
		t.Errorf("run = %+v", run)
	}
	if run.Category != domain.CategoryResearch {
		t.Errorf("Category = %s, want research", run.Category)
	}
	if !strings.Contains(run.Artifacts, "research_notes.txt") {
		t.Errorf("Artifacts = %q", run.Artifacts)
	}
	if f.repo.get(run.ID) == nil {
		t.Error("run was not persisted")
	}
	if ids := f.queue.enqueuedIDs(); len(ids) != 1 || ids[0] != run.ID {
		t.Errorf("enqueued = %v", ids)
	}
}

func TestCreateRunRejectsInvalidRequest(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateRun(context.Background(), domain.Request{Workflow: "nope"})
	if !errors.Is(err, planner.ErrUnknownWorkflow) {
		t.Errorf("error = %v, want ErrUnknownWorkflow", err)
	}
	if len(f.queue.enqueuedIDs()) != 0 {
		t.Error("invalid run was enqueued")
	}
}

func TestListRunsClampsLimit(t *testing.T) {
	f := newFixture()
	for i := 0; i < 3; i++ {
		if _, err := f.svc.CreateRun(context.Background(), checkRequest); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		offset, limit int
		wantLimit     int
		wantRuns      int
		wantMore      bool
	}{
		{0, 0, maxPageSize, 3, false},
		{0, 500, maxPageSize, 3, false},
		{-4, 2, 2, 2, true},
		{2, 2, 2, 1, false},
	}
	for _, tt := range tests {
		page, err := f.svc.ListRuns(context.Background(), tt.offset, tt.limit)
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if page.Limit != tt.wantLimit || len(page.Runs) != tt.wantRuns || page.HasMore != tt.wantMore || page.Total != 3 {
			t.Errorf("ListRuns(%d, %d) = limit %d, %d runs, more %v", tt.offset, tt.limit, page.Limit, len(page.Runs), page.HasMore)
		}
	}
}

func TestGetRunNotFound(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.GetRun(context.Background(), "run-missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("error = %v, want ErrRunNotFound", err)
	}
}

func TestCancelRun(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	run, _ := f.svc.CreateRun(ctx, checkRequest)

	if err := f.svc.CancelRun(ctx, run.ID); err != nil {
		t.Fatalf("CancelRun() error = %v", err)
	}
	got := f.repo.get(run.ID)
	if got.Status != domain.RunStatusCancelled || !got.Cancelled {
		t.Errorf("run = %+v", got)
	}
	if last, _ := f.pubsub.lastUpdate(); last.Status != domain.RunStatusCancelled {
		t.Errorf("last update = %+v", last)
	}
	select {
	case id := <-f.pubsub.cancelCh:
		if id != run.ID {
			t.Errorf("cancel signal for %s", id)
		}
	default:
		t.Error("no cancel signal published")
	}

	if err := f.svc.CancelRun(ctx, run.ID); err == nil {
		t.Error("cancelling a cancelled run succeeded")
	}
}

func TestRetryRun(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	run, _ := f.svc.CreateRun(ctx, checkRequest)

	if _, err := f.svc.RetryRun(ctx, run.ID); err == nil {
		t.Error("retrying a pending run succeeded")
	}

	stored := f.repo.get(run.ID)
	stored.Status = domain.RunStatusPartial
	f.repo.SaveSlot(ctx, &domain.SlotResult{RunID: run.ID, Slot: 1, Status: domain.SlotStatusFailed})

	retried, err := f.svc.RetryRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("RetryRun() error = %v", err)
	}
	if retried.Status != domain.RunStatusPending || retried.RetryCount != 1 {
		t.Errorf("retried = %+v", retried)
	}
	if got, _ := f.repo.GetRun(ctx, run.ID); len(got.Slots) != 0 {
		t.Error("slots were not reset")
	}
	if ids := f.queue.enqueuedIDs(); len(ids) != 2 {
		t.Errorf("enqueued = %v, want the run twice", ids)
	}

	stored = f.repo.get(run.ID)
	stored.Status = domain.RunStatusFailure
	stored.RetryCount = stored.MaxRetries
	if _, err := f.svc.RetryRun(ctx, run.ID); err == nil || !strings.Contains(err.Error(), "max retries") {
		t.Errorf("error = %v, want max retries", err)
	}
}

func TestProcessRunSuccess(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	run, _ := f.svc.CreateRun(ctx, checkRequest)

	report, err := f.svc.ProcessRun(ctx, run)
	if err != nil {
		t.Fatalf("ProcessRun() error = %v", err)
	}
	if report.Status != domain.RunStatusSuccess {
		t.Errorf("report status = %s", report.Status)
	}

	got, _ := f.repo.GetRun(ctx, run.ID)
	if got.Status != domain.RunStatusSuccess || got.StartedAt == nil || got.FinishedAt == nil {
		t.Errorf("run = %+v", got)
	}
	if len(got.Slots) != 1 || got.Slots[0].Status != domain.SlotStatusCompleted {
		t.Errorf("slots = %+v", got.Slots)
	}
	if f.pubsub.statusCount() == 0 {
		t.Error("no slot status events published")
	}
	if last, _ := f.pubsub.lastUpdate(); last.Status != domain.RunStatusSuccess {
		t.Errorf("last update = %+v", last)
	}
}

func TestProcessRunDeadLetters(t *testing.T) {
	f := newFixture()
	f.provider.openErr[""] = errors.New("no capacity")
	ctx := context.Background()
	run, _ := f.svc.CreateRun(ctx, checkRequest)

	stored := f.repo.get(run.ID)
	stored.RetryCount = stored.MaxRetries

	report, err := f.svc.ProcessRun(ctx, run)
	if err != nil {
		t.Fatalf("ProcessRun() error = %v", err)
	}
	if report.Status != domain.RunStatusFailure {
		t.Fatalf("status = %s, want failure", report.Status)
	}
	if !f.dlq.has(run.ID) {
		t.Error("exhausted run was not dead-lettered")
	}
	if reason := f.dlq.entries[run.ID]; !strings.Contains(reason, "VM1: open session: no capacity") {
		t.Errorf("reason = %q", reason)
	}
}

func TestProcessRunSkipsCancelled(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	run, _ := f.svc.CreateRun(ctx, checkRequest)
	f.svc.CancelRun(ctx, run.ID)

	report, err := f.svc.ProcessRun(ctx, run)
	if err != nil || report != nil {
		t.Fatalf("ProcessRun() = %v, %v; want skip", report, err)
	}
	if len(f.provider.openedProjects()) != 0 {
		t.Error("sessions opened for a cancelled run")
	}
}

// cancelAfterExecute accepts a cancel once the sessions are done but before
// the run's outcome is persisted.
type cancelAfterExecute struct {
	inner     Executor
	svc       *RunService
	cancelErr error
}

func (e *cancelAfterExecute) Execute(ctx context.Context, runID string, plan *domain.Plan) *RunReport {
	report := e.inner.Execute(ctx, runID, plan)
	e.cancelErr = e.svc.CancelRun(ctx, runID)
	return report
}

func TestProcessRunKeepsLateCancel(t *testing.T) {
	f := newFixture()
	exec := &cancelAfterExecute{inner: NewOrchestrator(f.provider, nil, nil)}
	svc := NewRunService(f.repo, nil, f.pubsub, f.dlq, exec)
	exec.svc = svc
	ctx := context.Background()
	run, _ := svc.CreateRun(ctx, checkRequest)

	report, err := svc.ProcessRun(ctx, run)
	if err != nil {
		t.Fatalf("ProcessRun() error = %v", err)
	}
	if exec.cancelErr != nil {
		t.Fatalf("CancelRun() error = %v", exec.cancelErr)
	}
	if report.Status != domain.RunStatusCancelled {
		t.Errorf("report status = %s, want cancelled", report.Status)
	}
	got := f.repo.get(run.ID)
	if got.Status != domain.RunStatusCancelled || !got.Cancelled {
		t.Errorf("stored run = %s cancelled=%v, want cancelled", got.Status, got.Cancelled)
	}
}

func TestTruncateOutput(t *testing.T) {
	if got := truncateOutput("short"); got != "short" {
		t.Errorf("truncateOutput(short) = %q", got)
	}

	long := strings.Repeat("line of agent output\n", maxOutputSize/10)
	got := truncateOutput(long)
	if len(got) > maxOutputSize || len(got) < maxOutputSize*7/10 {
		t.Errorf("len = %d, want about 80%% of %d", len(got), maxOutputSize)
	}
	if !strings.HasPrefix(got, "[...truncated ") {
		t.Errorf("missing truncation marker: %q", got[:40])
	}
	body := got[strings.Index(got, "\n")+1:]
	if !strings.HasPrefix(body, "line of agent output") {
		t.Errorf("cut mid-line: %q", body[:30])
	}
}

func TestEventObserverPublishes(t *testing.T) {
	ps := newMockPubSub()
	obs := NewEventObserver(ps)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	obs.SlotChanged(ctx, "run-1", domain.SlotState{Slot: 2, Status: domain.SlotStatusWorking, StartedAt: time.Now()})

	if ps.statusCount() != 1 {
		t.Fatal("status not published")
	}
	if ev := ps.statuses[0]; ev.RunID != "run-1" || ev.State.Slot != 2 {
		t.Errorf("event = %+v", ev)
	}
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vmdesk.app/internal/core/domain"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.sqlite3"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newRun(id string, created time.Time) *domain.Run {
	return &domain.Run{
		ID:         id,
		Workflow:   domain.WorkflowPipeline,
		Prompt:     "research solar panels",
		Category:   domain.CategoryResearch,
		Status:     domain.RunStatusPending,
		Artifacts:  "research_data.txt,solar_analysis.xlsx",
		MaxRetries: 3,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func TestStoreRunLifecycle(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	created := time.Now().Add(-time.Minute)

	if err := s.Create(ctx, newRun("run-1", created)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	run, err := s.GetRun(ctx, "run-1")
	if err != nil || run == nil {
		t.Fatalf("GetRun() = %v, %v", run, err)
	}
	if run.Workflow != domain.WorkflowPipeline || run.Artifacts != "research_data.txt,solar_analysis.xlsx" || run.StartedAt != nil {
		t.Errorf("run = %+v", run)
	}
	if !run.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %s, want %s", run.CreatedAt, created)
	}

	started := time.Now()
	run.Status = domain.RunStatusPartial
	run.StartedAt = &started
	run.Cancelled = true
	if err := s.Update(ctx, run); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	finished := started.Add(time.Second)
	for _, slot := range []domain.SlotResult{
		{RunID: "run-1", Slot: 2, Role: domain.RoleProcessing, Status: domain.SlotStatusFailed, Error: "boom"},
		{RunID: "run-1", Slot: 1, Role: domain.RoleResearch, Status: domain.SlotStatusWorking},
		{RunID: "run-1", Slot: 1, Role: domain.RoleResearch, Status: domain.SlotStatusCompleted, Label: "Research Complete", FinishedAt: &finished},
	} {
		slot := slot
		if err := s.SaveSlot(ctx, &slot); err != nil {
			t.Fatalf("SaveSlot() error = %v", err)
		}
	}

	run, _ = s.GetRun(ctx, "run-1")
	if run.Status != domain.RunStatusPartial || !run.Cancelled || run.StartedAt == nil || !run.StartedAt.Equal(started) {
		t.Errorf("updated run = %+v", run)
	}
	if len(run.Slots) != 2 {
		t.Fatalf("slots = %+v, want 2 (upserted)", run.Slots)
	}
	if s1 := run.Slots[0]; s1.Slot != 1 || s1.Status != domain.SlotStatusCompleted || s1.FinishedAt == nil {
		t.Errorf("slot 1 = %+v", s1)
	}
	if s2 := run.Slots[1]; s2.Error != "boom" {
		t.Errorf("slot 2 = %+v", s2)
	}

	if err := s.DeleteSlots(ctx, "run-1"); err != nil {
		t.Fatalf("DeleteSlots() error = %v", err)
	}
	if run, _ = s.GetRun(ctx, "run-1"); len(run.Slots) != 0 {
		t.Errorf("slots after delete = %+v", run.Slots)
	}
}

func TestStoreGetMissing(t *testing.T) {
	s := openStore(t)
	run, err := s.GetRun(context.Background(), "run-nope")
	if err != nil || run != nil {
		t.Errorf("GetRun() = %v, %v; want nil, nil", run, err)
	}
}

func TestStoreListing(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		r := newRun(id, base.Add(time.Duration(i)*time.Minute))
		if id != "run-c" {
			r.Status = domain.RunStatusRunning
		}
		if err := s.Create(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.ListRuns(ctx, 0, 2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Errorf("ListRuns() = %v, want newest first", ids(runs))
	}
	runs, _ = s.ListRuns(ctx, 2, 2)
	if len(runs) != 1 || runs[0].ID != "run-a" {
		t.Errorf("second page = %v", ids(runs))
	}

	running, _ := s.ListRunsByStatus(ctx, domain.RunStatusRunning)
	if len(running) != 2 || running[0].ID != "run-b" || running[1].ID != "run-a" {
		t.Errorf("ListRunsByStatus() = %v, want newest first", ids(running))
	}

	if n, _ := s.CountRuns(ctx); n != 3 {
		t.Errorf("CountRuns() = %d", n)
	}
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.sqlite3")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	s.Create(ctx, newRun("run-kept", time.Now()))
	s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	if run, _ := s.GetRun(ctx, "run-kept"); run == nil {
		t.Error("run lost after reopen")
	}
}

func ids(runs []*domain.Run) []string {
	var out []string
	for _, r := range runs {
		out = append(out, r.ID)
	}
	return out
}

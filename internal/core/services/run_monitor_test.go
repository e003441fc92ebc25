package services

import (
	"context"
	"testing"
	"time"

	"vmdesk.app/internal/core/domain"
)

func TestRunMonitorFailsStaleRuns(t *testing.T) {
	repo := newMockRunRepo()
	ps := newMockPubSub()
	ctx := context.Background()

	old := time.Now().Add(-2 * time.Hour)
	recent := time.Now().Add(-time.Minute)
	repo.Create(ctx, &domain.Run{ID: "run-stale", Status: domain.RunStatusRunning, StartedAt: &old})
	repo.Create(ctx, &domain.Run{ID: "run-fresh", Status: domain.RunStatusRunning, StartedAt: &recent})
	repo.Create(ctx, &domain.Run{ID: "run-done", Status: domain.RunStatusSuccess, StartedAt: &old})

	m := NewRunMonitor(repo, ps, time.Hour)
	if n := m.checkRuns(ctx); n != 1 {
		t.Fatalf("checkRuns() = %d, want 1", n)
	}

	if got := repo.get("run-stale"); got.Status != domain.RunStatusFailure || got.FinishedAt == nil {
		t.Errorf("stale run = %+v", got)
	}
	if got := repo.get("run-fresh"); got.Status != domain.RunStatusRunning {
		t.Errorf("fresh run status = %s", got.Status)
	}
	if last, ok := ps.lastUpdate(); !ok || last.RunID != "run-stale" || last.Status != domain.RunStatusFailure {
		t.Errorf("last update = %+v", last)
	}

	select {
	case alert := <-m.Alerts():
		if alert.RunID != "run-stale" || alert.Event != "stale" {
			t.Errorf("alert = %+v", alert)
		}
	default:
		t.Error("no alert emitted")
	}
}

func TestRunMonitorDefaults(t *testing.T) {
	m := NewRunMonitor(newMockRunRepo(), nil, 0)
	if m.staleAfter != defaultStaleAfter {
		t.Errorf("staleAfter = %s", m.staleAfter)
	}
	if n := m.checkRuns(context.Background()); n != 0 {
		t.Errorf("checkRuns() on empty repo = %d", n)
	}
}

package services

import (
	"context"
	"time"

	"vmdesk.app/internal/core/domain"
	"vmdesk.app/internal/core/logger"
	"vmdesk.app/internal/core/ports"
)

const (
	defaultStaleAfter     = 45 * time.Minute
	defaultMonitorEvery   = 30 * time.Second
	staleRunFailureReason = "stale"
)

// RunMonitor fails runs that stay in running long after any worker could still own them.
type RunMonitor struct {
	repo       ports.RunRepository
	pubsub     ports.EventPubSub
	staleAfter time.Duration
	interval   time.Duration
	alertChan  chan RunAlert
}

type RunAlert struct {
	RunID     string          `json:"run_id"`
	Workflow  domain.Workflow `json:"workflow"`
	Event     string          `json:"event"` // "stale"
	Timestamp time.Time       `json:"timestamp"`
}

func NewRunMonitor(repo ports.RunRepository, pubsub ports.EventPubSub, staleAfter time.Duration) *RunMonitor {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &RunMonitor{
		repo:       repo,
		pubsub:     pubsub,
		staleAfter: staleAfter,
		interval:   defaultMonitorEvery,
		alertChan:  make(chan RunAlert, 100),
	}
}

// Start begins monitoring runs
func (m *RunMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkRuns(ctx)
		}
	}
}

func (m *RunMonitor) checkRuns(ctx context.Context) int {
	runs, err := m.repo.ListRunsByStatus(ctx, domain.RunStatusRunning)
	if err != nil {
		logger.Error("Failed to list runs for monitoring", "error", err)
		return 0
	}

	now := time.Now()
	failed := 0
	for _, run := range runs {
		since := run.UpdatedAt
		if run.StartedAt != nil {
			since = *run.StartedAt
		}
		if now.Sub(since) <= m.staleAfter {
			continue
		}

		run.Status = domain.RunStatusFailure
		run.FinishedAt = &now
		run.UpdatedAt = now
		if err := m.repo.Update(ctx, run); err != nil {
			logger.Error("Failed to fail stale run", "run_id", run.ID, "error", err)
			continue
		}
		failed++
		if m.pubsub != nil {
			if err := m.pubsub.PublishRunUpdate(ctx, run.ID, domain.RunStatusFailure); err != nil {
				logger.Warn("Failed to publish run update", "run_id", run.ID, "error", err)
			}
		}

		alert := RunAlert{RunID: run.ID, Workflow: run.Workflow, Event: staleRunFailureReason, Timestamp: now}
		logger.Warn("ALERT: run stuck in running", "run_id", run.ID, "workflow", run.Workflow, "since", since)
		select {
		case m.alertChan <- alert:
		default:
			logger.Warn("Alert channel full, dropping alert", "run_id", run.ID)
		}
	}
	return failed
}

// Alerts returns the alert channel
func (m *RunMonitor) Alerts() <-chan RunAlert {
	return m.alertChan
}

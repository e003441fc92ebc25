package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vmdesk.app/internal/core/domain"
	"vmdesk.app/internal/core/logger"
	"vmdesk.app/internal/core/metrics"
	"vmdesk.app/internal/core/planner"
	"vmdesk.app/internal/core/ports"
)

var ErrRunNotFound = errors.New("run not found")

const (
	defaultMaxRetries = 3
	maxPageSize       = 100
	maxOutputSize     = 64 * 1024 // Per slot
)

// Executor runs a plan against remote sessions.
type Executor interface {
	Execute(ctx context.Context, runID string, plan *domain.Plan) *RunReport
}

type RunService struct {
	repo     ports.RunRepository
	queue    ports.RunQueue
	pubsub   ports.EventPubSub
	dlq      ports.DeadLetters
	executor Executor
}

func NewRunService(
	repo ports.RunRepository,
	queue ports.RunQueue,
	pubsub ports.EventPubSub,
	dlq ports.DeadLetters,
	executor Executor,
) *RunService {
	return &RunService{
		repo:     repo,
		queue:    queue,
		pubsub:   pubsub,
		dlq:      dlq,
		executor: executor,
	}
}

// PreviewPlan builds the plan for req without persisting anything.
func (s *RunService) PreviewPlan(req domain.Request) (*domain.Plan, error) {
	return planner.Build(req)
}

func (s *RunService) CreateRun(ctx context.Context, req domain.Request) (*domain.Run, error) {
	plan, err := planner.Build(req)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	run := &domain.Run{
		ID:         fmt.Sprintf("run-%s", uuid.New().String()),
		Workflow:   req.Workflow,
		Kind:       req.Kind,
		Prompt:     req.Prompt,
		Category:   plan.Category,
		Status:     domain.RunStatusPending,
		Artifacts:  strings.Join(plan.Artifacts, ","),
		MaxRetries: defaultMaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to enqueue run: %w", err)
		}
	}
	logger.InfoContext(ctx, "Run created", "run_id", run.ID, "workflow", run.Workflow, "category", run.Category)
	return run, nil
}

// PaginatedRuns represents a paginated list of runs with metadata
type PaginatedRuns struct {
	Runs    []*domain.Run `json:"runs"`
	Total   int64         `json:"total"`
	Offset  int           `json:"offset"`
	Limit   int           `json:"limit"`
	HasMore bool          `json:"has_more"`
}

func (s *RunService) ListRuns(ctx context.Context, offset, limit int) (*PaginatedRuns, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	runs, err := s.repo.ListRuns(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountRuns(ctx)
	if err != nil {
		return nil, err
	}

	return &PaginatedRuns{
		Runs:    runs,
		Total:   total,
		Offset:  offset,
		Limit:   limit,
		HasMore: offset+len(runs) < int(total),
	}, nil
}

func (s *RunService) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	run, err := s.repo.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

func (s *RunService) CancelRun(ctx context.Context, id string) error {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}

	if run.Status != domain.RunStatusPending && run.Status != domain.RunStatusRunning {
		return fmt.Errorf("cannot cancel run with status %s", run.Status)
	}

	run.Cancelled = true
	run.Status = domain.RunStatusCancelled
	run.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, run); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	if s.pubsub != nil {
		if err := s.pubsub.PublishRunUpdate(ctx, id, domain.RunStatusCancelled); err != nil {
			logger.Warn("Failed to publish run update", "run_id", id, "error", err)
		}
		if err := s.pubsub.PublishCancel(ctx, id); err != nil {
			logger.Warn("Failed to publish cancel signal", "run_id", id, "error", err)
		}
	}
	logger.InfoContext(ctx, "Run cancelled", "run_id", id)
	return nil
}

// RetryRun re-queues a finished run that did not fully succeed.
func (s *RunService) RetryRun(ctx context.Context, id string) (*domain.Run, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	switch run.Status {
	case domain.RunStatusFailure, domain.RunStatusPartial, domain.RunStatusCancelled:
	default:
		return nil, fmt.Errorf("cannot retry run with status %s", run.Status)
	}
	if run.RetryCount >= run.MaxRetries {
		return nil, fmt.Errorf("max retries (%d) exceeded", run.MaxRetries)
	}

	if err := s.repo.DeleteSlots(ctx, run.ID); err != nil {
		return nil, fmt.Errorf("failed to reset slots: %w", err)
	}
	run.Status = domain.RunStatusPending
	run.Cancelled = false
	run.RetryCount++
	run.Slots = nil
	run.StartedAt = nil
	run.FinishedAt = nil
	run.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to update run: %w", err)
	}
	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to re-queue run: %w", err)
		}
	}
	logger.InfoContext(ctx, "Run re-queued", "run_id", run.ID, "retry", run.RetryCount)
	return run, nil
}

// ProcessRun executes a dequeued run to completion and persists its outcome.
func (s *RunService) ProcessRun(ctx context.Context, run *domain.Run) (*RunReport, error) {
	current, err := s.GetRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if current.Cancelled || current.Status.Finished() {
		logger.InfoContext(ctx, "Skipping run", "run_id", run.ID, "status", current.Status)
		return nil, nil
	}

	plan, err := planner.Build(current.Request())
	if err != nil {
		s.finish(ctx, current, domain.RunStatusFailure)
		return nil, fmt.Errorf("failed to plan run %s: %w", run.ID, err)
	}

	started := time.Now()
	current.Status = domain.RunStatusRunning
	current.StartedAt = &started
	current.UpdatedAt = started
	if err := s.repo.Update(ctx, current); err != nil {
		return nil, fmt.Errorf("failed to mark run running: %w", err)
	}
	s.publishUpdate(ctx, current.ID, domain.RunStatusRunning)

	metrics.RecordRunStarted()
	report := s.executor.Execute(ctx, current.ID, plan)
	metrics.RecordRunFinished(string(current.Workflow), string(report.Status), report.Elapsed())

	// The run context may already be cancelled; persist the outcome regardless.
	saveCtx := context.WithoutCancel(ctx)
	for _, state := range report.Slots {
		state.Output = truncateOutput(state.Output)
		res := domain.ResultFromState(current.ID, state)
		if err := s.repo.SaveSlot(saveCtx, &res); err != nil {
			logger.ErrorContext(ctx, "Failed to save slot result", "run_id", current.ID, "slot", state.Slot, "error", err)
		}
	}

	// A cancel accepted while the run was executing must survive the final write.
	if latest, err := s.repo.GetRun(saveCtx, current.ID); err != nil {
		logger.WarnContext(ctx, "Failed to re-read run before finishing", "run_id", current.ID, "error", err)
	} else if latest != nil && latest.Cancelled {
		current.Cancelled = true
		report.Status = domain.RunStatusCancelled
	}

	current.Artifacts = strings.Join(report.Artifacts, ",")
	current.Cancelled = current.Cancelled || report.Status == domain.RunStatusCancelled
	s.finish(saveCtx, current, report.Status)

	if report.Status == domain.RunStatusFailure && current.RetryCount >= current.MaxRetries && s.dlq != nil {
		reason := failureReason(report)
		if err := s.dlq.Add(saveCtx, current, reason); err != nil {
			logger.ErrorContext(ctx, "Failed to dead-letter run", "run_id", current.ID, "error", err)
		} else {
			metrics.RecordDeadLetter()
			logger.WarnContext(ctx, "Run moved to dead letter queue", "run_id", current.ID, "reason", reason)
		}
	}
	return report, nil
}

func (s *RunService) finish(ctx context.Context, run *domain.Run, status domain.RunStatus) {
	now := time.Now()
	run.Status = status
	run.FinishedAt = &now
	run.UpdatedAt = now
	if err := s.repo.Update(ctx, run); err != nil {
		logger.ErrorContext(ctx, "Failed to update run status", "run_id", run.ID, "status", status, "error", err)
	}
	s.publishUpdate(ctx, run.ID, status)
}

func (s *RunService) publishUpdate(ctx context.Context, runID string, status domain.RunStatus) {
	if s.pubsub == nil {
		return
	}
	if err := s.pubsub.PublishRunUpdate(ctx, runID, status); err != nil {
		logger.Warn("Failed to publish run update", "run_id", runID, "error", err)
	}
}

func (s *RunService) SubscribeCancel(ctx context.Context) (<-chan string, error) {
	if s.pubsub == nil {
		return nil, errors.New("no event bus configured")
	}
	return s.pubsub.SubscribeCancel(ctx)
}

func (s *RunService) NextRun(ctx context.Context) (*domain.Run, error) {
	return s.queue.Dequeue(ctx)
}

func failureReason(report *RunReport) string {
	var errs []string
	for _, slot := range report.Slots {
		if slot.Error != "" {
			errs = append(errs, fmt.Sprintf("%s: %s", slot.Name(), slot.Error))
		}
	}
	if len(errs) == 0 {
		return "no slot completed"
	}
	return strings.Join(errs, "; ")
}

// truncateOutput keeps the tail of an agent transcript, cut at a line start.
func truncateOutput(out string) string {
	if len(out) <= maxOutputSize {
		return out
	}
	keep := maxOutputSize * 8 / 10
	cut := len(out) - keep
	if nl := strings.Index(out[cut:], "\n"); nl != -1 {
		cut += nl + 1
	}
	return fmt.Sprintf("[...truncated %d bytes...]\n", cut) + out[cut:]
}

// EventObserver forwards slot transitions to the event bus.
type EventObserver struct {
	pubsub ports.EventPubSub
}

func NewEventObserver(pubsub ports.EventPubSub) *EventObserver {
	return &EventObserver{pubsub: pubsub}
}

func (o *EventObserver) SlotChanged(ctx context.Context, runID string, state domain.SlotState) {
	event := domain.StatusEvent{RunID: runID, State: state, At: time.Now()}
	if err := o.pubsub.PublishStatus(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn("Failed to publish slot status", "run_id", runID, "slot", state.Slot, "error", err)
	}
}

func (o *EventObserver) Snapshot(ctx context.Context, runID string, states []domain.SlotState) {
	for _, s := range states {
		logger.DebugContext(ctx, "Slot status", "run_id", runID, "vm", s.Name(), "status", s.Display())
	}
}

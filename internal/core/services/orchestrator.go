package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"vmdesk.app/internal/core/domain"
	"vmdesk.app/internal/core/logger"
	"vmdesk.app/internal/core/metrics"
	"vmdesk.app/internal/core/ports"
	"vmdesk.app/internal/core/tracing"
)

const (
	defaultCleanupTimeout = 30 * time.Second
	skippedLabel          = "Skipped - previous stage did not complete"
	cancelledLabel        = "Cancelled"
)

// RunReport is the outcome of one orchestrated run.
type RunReport struct {
	RunID         string             `json:"run_id"`
	Workflow      domain.Workflow    `json:"workflow"`
	Status        domain.RunStatus   `json:"status"`
	Slots         []domain.SlotState `json:"slots"`
	Artifacts     []string           `json:"artifacts"`
	CleanupErrors []string           `json:"cleanup_errors,omitempty"`
	StartedAt     time.Time          `json:"started_at"`
	FinishedAt    time.Time          `json:"finished_at"`
}

func (r *RunReport) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Completed counts slots that finished their instruction.
func (r *RunReport) Completed() int {
	n := 0
	for _, s := range r.Slots {
		if s.Status == domain.SlotStatusCompleted {
			n++
		}
	}
	return n
}

type nopObserver struct{}

func (nopObserver) SlotChanged(context.Context, string, domain.SlotState)  {}
func (nopObserver) Snapshot(context.Context, string, []domain.SlotState) {}

// Orchestrator opens one remote session per slot and drives a plan through them.
type Orchestrator struct {
	provider       ports.ComputerProvider
	observer       ports.RunObserver
	projectIDs     []string
	cleanupTimeout time.Duration
}

func NewOrchestrator(provider ports.ComputerProvider, observer ports.RunObserver, projectIDs []string) *Orchestrator {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Orchestrator{
		provider:       provider,
		observer:       observer,
		projectIDs:     projectIDs,
		cleanupTimeout: defaultCleanupTimeout,
	}
}

// projectFor picks the configured project for a 1-based slot. A single entry
// is shared by every slot and no entry asks for a fresh computer.
func (o *Orchestrator) projectFor(slot int) string {
	switch {
	case len(o.projectIDs) == 1:
		return o.projectIDs[0]
	case slot >= 1 && slot <= len(o.projectIDs):
		return o.projectIDs[slot-1]
	default:
		return ""
	}
}

// one run's mutable state
type execution struct {
	o     *Orchestrator
	runID string
	board *StatusBoard

	mu        sync.Mutex
	computers map[int]ports.Computer
}

// Execute runs every stage of plan and always destroys the sessions it opened.
func (o *Orchestrator) Execute(ctx context.Context, runID string, plan *domain.Plan) *RunReport {
	ctx = logger.ContextWithRunID(ctx, runID)
	ctx, span := tracing.StartSpan(ctx, "orchestrator.execute",
		attribute.String("run.id", runID),
		attribute.String("run.workflow", string(plan.Workflow)),
	)
	defer span.End()

	report := &RunReport{
		RunID:     runID,
		Workflow:  plan.Workflow,
		Artifacts: plan.Artifacts,
		StartedAt: time.Now(),
	}
	e := &execution{
		o:         o,
		runID:     runID,
		board:     NewStatusBoard(plan),
		computers: make(map[int]ports.Computer),
	}

	logger.InfoContext(ctx, "Run started", "workflow", plan.Workflow, "category", plan.Category, "slots", len(plan.Slots()))

	e.openSessions(ctx, plan.Slots())

	for i, stage := range plan.Stages {
		if ctx.Err() != nil {
			e.cancelPending(ctx)
			break
		}
		if stage.RequirePrevious && !e.previousCompleted(plan.Stages[:i]) {
			logger.WarnContext(ctx, "Stage skipped, previous stage did not complete", "stage", stage.Name)
			e.skip(ctx, stage)
			continue
		}
		e.runStage(ctx, stage)
	}
	if ctx.Err() != nil {
		e.cancelPending(ctx)
	}

	report.Slots = e.board.Snapshot()
	o.observer.Snapshot(ctx, runID, report.Slots)

	report.CleanupErrors = e.cleanup(ctx)
	report.Status = aggregateStatus(report.Slots, ctx.Err() != nil)
	report.FinishedAt = time.Now()

	span.SetAttributes(attribute.String("run.status", string(report.Status)))
	logger.InfoContext(ctx, "Run finished",
		"status", report.Status,
		"completed", report.Completed(),
		"slots", len(report.Slots),
		"elapsed", report.Elapsed().Round(time.Second).String(),
	)
	return report
}

func (e *execution) notify(ctx context.Context, state domain.SlotState) {
	e.o.observer.SlotChanged(ctx, e.runID, state)
}

func (e *execution) openSessions(ctx context.Context, slots []int) {
	var wg sync.WaitGroup
	for _, slot := range slots {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			projectID := e.o.projectFor(slot)
			comp, err := e.o.provider.Open(ctx, projectID)
			if err != nil {
				state := e.board.Update(slot, func(s *domain.SlotState) {
					s.FinishedAt = time.Now()
					if ctx.Err() != nil {
						s.Status = domain.SlotStatusCancelled
						s.Label = cancelledLabel
						return
					}
					s.Status = domain.SlotStatusFailed
					s.Error = fmt.Sprintf("open session: %v", err)
				})
				logger.ErrorContext(ctx, "Failed to open session", "slot", slot, "project_id", projectID, "error", err)
				e.notify(ctx, state)
				return
			}
			metrics.SessionOpened()
			e.mu.Lock()
			e.computers[slot] = comp
			e.mu.Unlock()
			logger.InfoContext(ctx, "Session ready", "slot", slot, "computer_id", comp.ID())
		}(slot)
	}
	wg.Wait()
}

func (e *execution) computer(slot int) ports.Computer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.computers[slot]
}

func (e *execution) previousCompleted(stages []domain.Stage) bool {
	for _, stage := range stages {
		for _, task := range stage.Tasks {
			s, _ := e.board.Get(task.Slot)
			if s.Status != domain.SlotStatusCompleted {
				return false
			}
		}
	}
	return true
}

func (e *execution) skip(ctx context.Context, stage domain.Stage) {
	for _, task := range stage.Tasks {
		state := e.board.Update(task.Slot, func(s *domain.SlotState) {
			if s.Status.Terminal() {
				return
			}
			s.Status = domain.SlotStatusSkipped
			s.Label = skippedLabel
			s.FinishedAt = time.Now()
		})
		e.notify(ctx, state)
	}
}

// cancelPending marks every slot that has not finished as cancelled.
func (e *execution) cancelPending(ctx context.Context) {
	for _, current := range e.board.Snapshot() {
		if current.Status.Terminal() {
			continue
		}
		state := e.board.Update(current.Slot, func(s *domain.SlotState) {
			s.Status = domain.SlotStatusCancelled
			s.Label = cancelledLabel
			s.FinishedAt = time.Now()
		})
		e.notify(ctx, state)
	}
}

func (e *execution) runStage(ctx context.Context, stage domain.Stage) {
	logger.DebugContext(ctx, "Stage started", "stage", stage.Name, "tasks", len(stage.Tasks))

	done := make(chan struct{})
	var monitor sync.WaitGroup
	if stage.MonitorInterval > 0 {
		monitor.Add(1)
		go func() {
			defer monitor.Done()
			ticker := time.NewTicker(stage.MonitorInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ctx.Done():
					return
				case <-ticker.C:
					e.o.observer.Snapshot(ctx, e.runID, e.board.Snapshot())
				}
			}
		}()
	}

	var wg sync.WaitGroup
	for _, task := range stage.Tasks {
		wg.Add(1)
		go func(task domain.Task) {
			defer wg.Done()
			e.runTask(ctx, task)
		}(task)
	}
	wg.Wait()
	close(done)
	monitor.Wait()
}

func (e *execution) runTask(ctx context.Context, task domain.Task) {
	if current, _ := e.board.Get(task.Slot); current.Status.Terminal() {
		// Session never opened.
		return
	}
	comp := e.computer(task.Slot)
	if comp == nil {
		return
	}

	if task.Delay > 0 {
		timer := time.NewTimer(task.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			e.finish(ctx, task, nil, ctx.Err())
			return
		case <-timer.C:
		}
	}

	state := e.board.Update(task.Slot, func(s *domain.SlotState) {
		s.Role = task.Role
		s.Status = domain.SlotStatusWorking
		s.Label = task.WorkingLabel
		s.StartedAt = time.Now()
	})
	e.notify(ctx, state)
	logger.InfoContext(ctx, "Instruction sent", "slot", task.Slot, "role", task.Role, "focus", task.Focus)

	res, err := comp.Prompt(ctx, task.Prompt)
	e.finish(ctx, task, res, err)
}

func (e *execution) finish(ctx context.Context, task domain.Task, res *ports.PromptResult, err error) {
	state := e.board.Update(task.Slot, func(s *domain.SlotState) {
		s.FinishedAt = time.Now()
		if res != nil {
			s.Output = res.Output
		}
		switch {
		case ctx.Err() != nil:
			s.Status = domain.SlotStatusCancelled
			s.Label = cancelledLabel
		case err != nil:
			s.Status = domain.SlotStatusFailed
			s.Error = err.Error()
		default:
			s.Status = domain.SlotStatusCompleted
			s.Label = task.DoneLabel
		}
	})

	var busy time.Duration
	if !state.StartedAt.IsZero() {
		busy = state.FinishedAt.Sub(state.StartedAt)
	}
	metrics.RecordSlot(string(state.Role), string(state.Status), busy)

	if state.Status == domain.SlotStatusFailed {
		logger.ErrorContext(ctx, "Instruction failed", "slot", task.Slot, "error", err)
	} else {
		logger.InfoContext(ctx, "Instruction finished", "slot", task.Slot, "status", state.Status)
	}
	e.notify(ctx, state)
}

// cleanup destroys every session with a fresh deadline so a cancelled run
// still releases its computers.
func (e *execution) cleanup(ctx context.Context) []string {
	e.mu.Lock()
	computers := make(map[int]ports.Computer, len(e.computers))
	for slot, comp := range e.computers {
		computers[slot] = comp
	}
	e.mu.Unlock()

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.o.cleanupTimeout)
	defer cancel()

	var (
		mu   sync.Mutex
		errs []string
		wg   sync.WaitGroup
	)
	for slot, comp := range computers {
		wg.Add(1)
		go func(slot int, comp ports.Computer) {
			defer wg.Done()
			defer metrics.SessionClosed()
			if err := comp.Destroy(cleanupCtx); err != nil {
				logger.WarnContext(ctx, "Failed to destroy session", "slot", slot, "computer_id", comp.ID(), "error", err)
				mu.Lock()
				errs = append(errs, fmt.Sprintf("VM%d: %v", slot, err))
				mu.Unlock()
				return
			}
			logger.DebugContext(ctx, "Session destroyed", "slot", slot, "computer_id", comp.ID())
		}(slot, comp)
	}
	wg.Wait()
	return errs
}

// aggregateStatus folds slot outcomes into a run status. A cancelled run
// context wins even when every slot had already completed.
func aggregateStatus(slots []domain.SlotState, cancelled bool) domain.RunStatus {
	if cancelled {
		return domain.RunStatusCancelled
	}
	completed := 0
	for _, s := range slots {
		switch s.Status {
		case domain.SlotStatusCancelled:
			return domain.RunStatusCancelled
		case domain.SlotStatusCompleted:
			completed++
		}
	}
	switch {
	case len(slots) > 0 && completed == len(slots):
		return domain.RunStatusSuccess
	case completed == 0:
		return domain.RunStatusFailure
	default:
		return domain.RunStatusPartial
	}
}

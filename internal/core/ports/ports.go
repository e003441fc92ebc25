package ports

import (
	"context"

	"vmdesk.app/internal/core/domain"
)

// PromptResult is what the remote agent reports after finishing an instruction.
type PromptResult struct {
	Status     string `json:"status"`
	Output     string `json:"output"`
	Iterations int    `json:"iterations"`
}

// Computer is one remote desktop session.
type Computer interface {
	ID() string
	Prompt(ctx context.Context, instruction string) (*PromptResult, error)
	Destroy(ctx context.Context) error
}

type ComputerProvider interface {
	// Open creates a session. An empty projectID asks for a fresh computer.
	Open(ctx context.Context, projectID string) (Computer, error)
}

type RunRepository interface {
	Create(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	Update(ctx context.Context, run *domain.Run) error
	SaveSlot(ctx context.Context, slot *domain.SlotResult) error
	DeleteSlots(ctx context.Context, runID string) error
	ListRuns(ctx context.Context, offset, limit int) ([]*domain.Run, error)
	ListRunsByStatus(ctx context.Context, status domain.RunStatus) ([]*domain.Run, error)
	CountRuns(ctx context.Context) (int64, error)
}

type RunQueue interface {
	Enqueue(ctx context.Context, run *domain.Run) error
	Dequeue(ctx context.Context) (*domain.Run, error) // Blocking wait
}

type EventPubSub interface {
	PublishStatus(ctx context.Context, event domain.StatusEvent) error
	PublishRunUpdate(ctx context.Context, runID string, status domain.RunStatus) error
	PublishCancel(ctx context.Context, runID string) error
	SubscribeStatus(ctx context.Context, runID string) (<-chan domain.StatusEvent, error)
	SubscribeRunUpdates(ctx context.Context) (<-chan domain.RunUpdate, error)
	SubscribeCancel(ctx context.Context) (<-chan string, error)
}

// DeadLetters keeps runs that failed after exhausting their retries.
type DeadLetters interface {
	Add(ctx context.Context, run *domain.Run, reason string) error
}

// RunObserver receives slot transitions and periodic board snapshots while a run executes.
type RunObserver interface {
	SlotChanged(ctx context.Context, runID string, state domain.SlotState)
	Snapshot(ctx context.Context, runID string, states []domain.SlotState)
}

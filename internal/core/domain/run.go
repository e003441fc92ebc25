package domain

import (
	"time"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSuccess   RunStatus = "success"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailure   RunStatus = "failure"
	RunStatusCancelled RunStatus = "cancelled"
)

// Finished reports whether the run reached a terminal status.
func (s RunStatus) Finished() bool {
	switch s {
	case RunStatusSuccess, RunStatusPartial, RunStatusFailure, RunStatusCancelled:
		return true
	}
	return false
}

type Run struct {
	ID         string       `json:"id" gorm:"primaryKey"`
	Workflow   Workflow     `json:"workflow"`
	Kind       string       `json:"kind,omitempty"`
	Prompt     string       `json:"prompt"`
	Category   Category     `json:"category"`
	Status     RunStatus    `json:"status" gorm:"index"`
	Artifacts  string       `json:"artifacts"` // Comma separated file names the agents were asked to save
	Cancelled  bool         `json:"cancelled" gorm:"default:false"`
	RetryCount int          `json:"retry_count" gorm:"default:0"`
	MaxRetries int          `json:"max_retries" gorm:"default:3"`
	Slots      []SlotResult `json:"slots" gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (Run) TableName() string {
	return "runs"
}

// Request returns the planning request that produced this run.
func (r *Run) Request() Request {
	return Request{
		Workflow: r.Workflow,
		Prompt:   r.Prompt,
		Kind:     r.Kind,
	}
}

// SlotResult is the persisted outcome of one VM slot within a run.
type SlotResult struct {
	ID         uint       `json:"-" gorm:"primaryKey"`
	RunID      string     `json:"run_id" gorm:"index;uniqueIndex:idx_run_slot"`
	Slot       int        `json:"slot" gorm:"uniqueIndex:idx_run_slot"`
	Role       Role       `json:"role"`
	Status     SlotStatus `json:"status"`
	Label      string     `json:"label"`
	Error      string     `json:"error,omitempty"`
	Output     string     `json:"output,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (SlotResult) TableName() string {
	return "run_slots"
}

// ResultFromState converts a live slot state into its persisted form.
func ResultFromState(runID string, s SlotState) SlotResult {
	res := SlotResult{
		RunID:  runID,
		Slot:   s.Slot,
		Role:   s.Role,
		Status: s.Status,
		Label:  s.Label,
		Error:  s.Error,
		Output: s.Output,
	}
	if !s.StartedAt.IsZero() {
		t := s.StartedAt
		res.StartedAt = &t
	}
	if !s.FinishedAt.IsZero() {
		t := s.FinishedAt
		res.FinishedAt = &t
	}
	return res
}

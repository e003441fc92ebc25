package domain

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleResearch     Role = "research"
	RoleProcessing   Role = "processing"
	RolePresentation Role = "presentation"
)

// RoleForSlot returns the conventional role of a numbered VM slot.
func RoleForSlot(slot int) Role {
	switch slot {
	case 2:
		return RoleProcessing
	case 3:
		return RolePresentation
	default:
		return RoleResearch
	}
}

type SlotStatus string

const (
	SlotStatusReady     SlotStatus = "ready"
	SlotStatusWaiting   SlotStatus = "waiting"
	SlotStatusWorking   SlotStatus = "working"
	SlotStatusCompleted SlotStatus = "completed"
	SlotStatusFailed    SlotStatus = "failed"
	SlotStatusCancelled SlotStatus = "cancelled"
	SlotStatusSkipped   SlotStatus = "skipped"
)

func (s SlotStatus) Terminal() bool {
	switch s {
	case SlotStatusCompleted, SlotStatusFailed, SlotStatusCancelled, SlotStatusSkipped:
		return true
	}
	return false
}

// SlotState is the live status of one VM slot.
type SlotState struct {
	Slot       int        `json:"slot"`
	Role       Role       `json:"role"`
	Status     SlotStatus `json:"status"`
	Label      string     `json:"label"`
	Error      string     `json:"error,omitempty"`
	Output     string     `json:"output,omitempty"`
	StartedAt  time.Time  `json:"started_at,omitempty"`
	FinishedAt time.Time  `json:"finished_at,omitempty"`
}

// Name is the display name used in status lines, e.g. "VM2".
func (s SlotState) Name() string {
	return fmt.Sprintf("VM%d", s.Slot)
}

// Display is the human-readable status text for the slot.
func (s SlotState) Display() string {
	if s.Status == SlotStatusFailed && s.Error != "" {
		return "Error: " + s.Error
	}
	if s.Label != "" {
		return s.Label
	}
	return string(s.Status)
}

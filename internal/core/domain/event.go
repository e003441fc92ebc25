package domain

import "time"

// StatusEvent carries a slot transition over pubsub.
type StatusEvent struct {
	RunID string    `json:"run_id"`
	State SlotState `json:"state"`
	At    time.Time `json:"at"`
}

// RunUpdate carries a run status transition over pubsub.
type RunUpdate struct {
	RunID  string    `json:"run_id"`
	Status RunStatus `json:"status"`
}

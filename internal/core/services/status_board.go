package services

import (
	"sync"

	"vmdesk.app/internal/core/domain"
)

// StatusBoard is the shared, lock-guarded view of every slot in a run.
type StatusBoard struct {
	mu     sync.RWMutex
	states map[int]*domain.SlotState
	order  []int
}

// NewStatusBoard seeds one entry per slot of plan. Slots of the first stage
// start ready, later ones start waiting.
func NewStatusBoard(plan *domain.Plan) *StatusBoard {
	b := &StatusBoard{states: make(map[int]*domain.SlotState)}
	for i, stage := range plan.Stages {
		status := domain.SlotStatusReady
		if i > 0 {
			status = domain.SlotStatusWaiting
		}
		for _, task := range stage.Tasks {
			if _, ok := b.states[task.Slot]; ok {
				continue
			}
			b.order = append(b.order, task.Slot)
			b.states[task.Slot] = &domain.SlotState{
				Slot:   task.Slot,
				Role:   task.Role,
				Status: status,
				Label:  task.WaitingLabel,
			}
		}
	}
	return b
}

// Update applies fn to the slot under the lock and returns the new state.
func (b *StatusBoard) Update(slot int, fn func(s *domain.SlotState)) domain.SlotState {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.states[slot]
	if !ok {
		s = &domain.SlotState{Slot: slot, Role: domain.RoleForSlot(slot)}
		b.states[slot] = s
		b.order = append(b.order, slot)
	}
	fn(s)
	return *s
}

func (b *StatusBoard) Get(slot int) (domain.SlotState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.states[slot]
	if !ok {
		return domain.SlotState{}, false
	}
	return *s, true
}

// Snapshot copies every slot in plan order.
func (b *StatusBoard) Snapshot() []domain.SlotState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.SlotState, 0, len(b.order))
	for _, slot := range b.order {
		out = append(out, *b.states[slot])
	}
	return out
}

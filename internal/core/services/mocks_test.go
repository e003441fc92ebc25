package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"vmdesk.app/internal/core/domain"
	"vmdesk.app/internal/core/ports"
)

// Computers

type mockComputer struct {
	id       string
	promptFn func(ctx context.Context, instruction string) (*ports.PromptResult, error)

	prompts      atomic.Int32
	destroyed    atomic.Bool
	destroyCtxOK atomic.Bool
	destroyErr   error
	destroyFn    func()
}

func (c *mockComputer) ID() string { return c.id }

func (c *mockComputer) Prompt(ctx context.Context, instruction string) (*ports.PromptResult, error) {
	c.prompts.Add(1)
	if c.promptFn != nil {
		return c.promptFn(ctx, instruction)
	}
	return &ports.PromptResult{Status: "completed", Output: "done: " + c.id, Iterations: 1}, nil
}

func (c *mockComputer) Destroy(ctx context.Context) error {
	c.destroyed.Store(true)
	c.destroyCtxOK.Store(ctx.Err() == nil)
	if c.destroyFn != nil {
		c.destroyFn()
	}
	return c.destroyErr
}

type mockProvider struct {
	mu        sync.Mutex
	computers map[string]*mockComputer
	openErr   map[string]error
	opened    []string
}

func newMockProvider(projects ...string) *mockProvider {
	p := &mockProvider{
		computers: make(map[string]*mockComputer),
		openErr:   make(map[string]error),
	}
	for _, id := range projects {
		p.computers[id] = &mockComputer{id: id}
	}
	return p
}

func (p *mockProvider) Open(ctx context.Context, projectID string) (ports.Computer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.openErr[projectID]; err != nil {
		return nil, err
	}
	p.opened = append(p.opened, projectID)
	comp, ok := p.computers[projectID]
	if !ok {
		comp = &mockComputer{id: projectID}
		p.computers[projectID] = comp
	}
	return comp, nil
}

func (p *mockProvider) openedProjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := append([]string(nil), p.opened...)
	sort.Strings(out)
	return out
}

// blockingPrompt waits until the context ends.
func blockingPrompt(ctx context.Context, _ string) (*ports.PromptResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func failingPrompt(msg string) func(context.Context, string) (*ports.PromptResult, error) {
	return func(context.Context, string) (*ports.PromptResult, error) {
		return nil, errors.New(msg)
	}
}

func sleepingPrompt(d time.Duration) func(context.Context, string) (*ports.PromptResult, error) {
	return func(ctx context.Context, _ string) (*ports.PromptResult, error) {
		select {
		case <-time.After(d):
			return &ports.PromptResult{Status: "completed"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Observer

type recordingObserver struct {
	mu        sync.Mutex
	changes   []domain.SlotState
	snapshots int
}

func (o *recordingObserver) SlotChanged(_ context.Context, _ string, s domain.SlotState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.changes = append(o.changes, s)
}

func (o *recordingObserver) Snapshot(context.Context, string, []domain.SlotState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshots++
}

func (o *recordingObserver) snapshotCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshots
}

func (o *recordingObserver) statusesFor(slot int) []domain.SlotStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []domain.SlotStatus
	for _, s := range o.changes {
		if s.Slot == slot {
			out = append(out, s.Status)
		}
	}
	return out
}

// Repository

type mockRunRepo struct {
	mu    sync.Mutex
	runs  map[string]*domain.Run
	slots map[string][]domain.SlotResult
	err   error
}

func newMockRunRepo() *mockRunRepo {
	return &mockRunRepo{
		runs:  make(map[string]*domain.Run),
		slots: make(map[string][]domain.SlotResult),
	}
}

func (r *mockRunRepo) Create(_ context.Context, run *domain.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := *run
	r.runs[run.ID] = &cp
	return nil
}

func (r *mockRunRepo) GetRun(_ context.Context, id string) (*domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *run
	cp.Slots = append([]domain.SlotResult(nil), r.slots[id]...)
	return &cp, nil
}

func (r *mockRunRepo) Update(_ context.Context, run *domain.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := *run
	cp.Slots = nil
	r.runs[run.ID] = &cp
	return nil
}

func (r *mockRunRepo) SaveSlot(_ context.Context, slot *domain.SlotResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.slots[slot.RunID]
	for i := range list {
		if list[i].Slot == slot.Slot {
			list[i] = *slot
			return nil
		}
	}
	r.slots[slot.RunID] = append(list, *slot)
	return nil
}

func (r *mockRunRepo) DeleteSlots(_ context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slots, runID)
	return nil
}

func (r *mockRunRepo) ListRuns(_ context.Context, offset, limit int) ([]*domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*domain.Run
	for _, run := range r.runs {
		all = append(all, run)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *mockRunRepo) ListRunsByStatus(_ context.Context, status domain.RunStatus) ([]*domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Run
	for _, run := range r.runs {
		if run.Status == status {
			cp := *run
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *mockRunRepo) CountRuns(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.runs)), nil
}

func (r *mockRunRepo) get(id string) *domain.Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[id]
}

// Queue

type mockQueue struct {
	mu       sync.Mutex
	items    chan *domain.Run
	enqueued []string
	err      error
}

func newMockQueue() *mockQueue {
	return &mockQueue{items: make(chan *domain.Run, 16)}
}

func (q *mockQueue) Enqueue(_ context.Context, run *domain.Run) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, run.ID)
	cp := *run
	q.items <- &cp
	return nil
}

func (q *mockQueue) Dequeue(ctx context.Context) (*domain.Run, error) {
	select {
	case run := <-q.items:
		return run, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *mockQueue) enqueuedIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.enqueued...)
}

// PubSub

type mockPubSub struct {
	mu       sync.Mutex
	statuses []domain.StatusEvent
	updates  []domain.RunUpdate
	cancels  []string
	cancelCh chan string
}

func newMockPubSub() *mockPubSub {
	return &mockPubSub{cancelCh: make(chan string, 8)}
}

func (p *mockPubSub) PublishStatus(_ context.Context, event domain.StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, event)
	return nil
}

func (p *mockPubSub) PublishRunUpdate(_ context.Context, runID string, status domain.RunStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, domain.RunUpdate{RunID: runID, Status: status})
	return nil
}

func (p *mockPubSub) PublishCancel(_ context.Context, runID string) error {
	p.mu.Lock()
	p.cancels = append(p.cancels, runID)
	p.mu.Unlock()
	p.cancelCh <- runID
	return nil
}

func (p *mockPubSub) SubscribeStatus(context.Context, string) (<-chan domain.StatusEvent, error) {
	return make(chan domain.StatusEvent), nil
}

func (p *mockPubSub) SubscribeRunUpdates(context.Context) (<-chan domain.RunUpdate, error) {
	return make(chan domain.RunUpdate), nil
}

func (p *mockPubSub) SubscribeCancel(context.Context) (<-chan string, error) {
	return p.cancelCh, nil
}

func (p *mockPubSub) lastUpdate() (domain.RunUpdate, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.updates) == 0 {
		return domain.RunUpdate{}, false
	}
	return p.updates[len(p.updates)-1], true
}

func (p *mockPubSub) statusCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.statuses)
}

// Dead letters

type mockDLQ struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMockDLQ() *mockDLQ {
	return &mockDLQ{entries: make(map[string]string)}
}

func (d *mockDLQ) Add(_ context.Context, run *domain.Run, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[run.ID] = reason
	return nil
}

func (d *mockDLQ) has(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[id]
	return ok
}

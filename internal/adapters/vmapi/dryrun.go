package vmapi

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"vmdesk.app/internal/core/logger"
	"vmdesk.app/internal/core/ports"
)

// DryRunProvider hands out fake computers that log instructions instead of
// executing them. Each prompt takes Delay to finish.
type DryRunProvider struct {
	Delay time.Duration
	seq   atomic.Int64
}

func NewDryRunProvider(delay time.Duration) *DryRunProvider {
	return &DryRunProvider{Delay: delay}
}

func (p *DryRunProvider) Open(ctx context.Context, projectID string) (ports.Computer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := fmt.Sprintf("dry-run-%d", p.seq.Add(1))
	if projectID != "" {
		id = projectID
	}
	logger.InfoContext(ctx, "Dry run session opened", "computer_id", id)
	return &dryComputer{id: id, delay: p.Delay}, nil
}

type dryComputer struct {
	id    string
	delay time.Duration
}

func (c *dryComputer) ID() string {
	return c.id
}

func (c *dryComputer) Prompt(ctx context.Context, instruction string) (*ports.PromptResult, error) {
	headline := firstLine(instruction)
	logger.InfoContext(ctx, "Dry run prompt", "computer_id", c.id, "instruction", headline, "length", len(instruction))

	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	return &ports.PromptResult{
		Status:     "completed",
		Output:     "dry run: " + headline,
		Iterations: 1,
	}, nil
}

func (c *dryComputer) Destroy(ctx context.Context) error {
	logger.InfoContext(ctx, "Dry run session destroyed", "computer_id", c.id)
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

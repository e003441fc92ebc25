package vmapi

import (
	"context"

	"vmdesk.app/internal/core/logger"
	"vmdesk.app/internal/core/ports"
)

// Provider opens remote computers through the API client.
type Provider struct {
	client *Client
}

func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Open(ctx context.Context, projectID string) (ports.Computer, error) {
	info, err := p.client.CreateComputer(ctx, projectID)
	if err != nil {
		return nil, err
	}
	logger.DebugContext(ctx, "Computer session opened", "computer_id", info.ID, "project_id", projectID, "status", info.Status)
	return &computer{client: p.client, id: info.ID}, nil
}

type computer struct {
	client *Client
	id     string
}

func (c *computer) ID() string {
	return c.id
}

func (c *computer) Prompt(ctx context.Context, instruction string) (*ports.PromptResult, error) {
	return c.client.Prompt(ctx, c.id, instruction)
}

func (c *computer) Destroy(ctx context.Context) error {
	return c.client.DeleteComputer(ctx, c.id)
}

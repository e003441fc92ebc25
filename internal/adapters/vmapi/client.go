// Package vmapi talks to the remote computer API that hosts the VM sessions.
package vmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"vmdesk.app/internal/core/circuitbreaker"
	"vmdesk.app/internal/core/ports"
	"vmdesk.app/internal/core/tracing"
)

var ErrPromptFailed = errors.New("agent reported failure")

const (
	defaultCallTimeout   = 60 * time.Second
	defaultPromptTimeout = 20 * time.Minute
	maxErrorBody         = 4 << 10
)

// APIError is a non-2xx answer from the computer API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("computer api: status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying the call could succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type Options struct {
	BaseURL       string
	APIKey        string
	ModelAPIKey   string // Forwarded so the remote agent can use the caller's model account
	Model         string
	MaxIterations int
	PromptTimeout time.Duration
	HTTPClient    *http.Client
	Breaker       *circuitbreaker.CircuitBreaker
}

// Client is a thin JSON client for the computer API.
type Client struct {
	baseURL       string
	apiKey        string
	modelAPIKey   string
	model         string
	maxIterations int
	promptTimeout time.Duration
	http          *http.Client
	breaker       *circuitbreaker.CircuitBreaker
}

func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		apiKey:        opts.APIKey,
		modelAPIKey:   opts.ModelAPIKey,
		model:         opts.Model,
		maxIterations: opts.MaxIterations,
		promptTimeout: opts.PromptTimeout,
		http:          opts.HTTPClient,
		breaker:       opts.Breaker,
	}
	if c.promptTimeout <= 0 {
		c.promptTimeout = defaultPromptTimeout
	}
	// Prompts run for minutes, deadlines come from the request context.
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.breaker == nil {
		c.breaker = circuitbreaker.New("computer-api")
	}
	return c
}

// Breaker exposes the breaker guarding this client for health reporting.
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

type createRequest struct {
	ProjectID string `json:"project_id,omitempty"`
}

// ComputerInfo is the API's view of a session.
type ComputerInfo struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateComputer starts or attaches to a computer. An empty projectID asks for a fresh one.
func (c *Client) CreateComputer(ctx context.Context, projectID string) (*ComputerInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	var info ComputerInfo
	if err := c.do(ctx, "vmapi.create", http.MethodPost, "/computers", createRequest{ProjectID: projectID}, &info,
		attribute.String("vm.project_id", projectID)); err != nil {
		return nil, err
	}
	if info.ID == "" {
		return nil, errors.New("computer api: create returned no id")
	}
	return &info, nil
}

type promptRequest struct {
	Instruction   string `json:"instruction"`
	Model         string `json:"model,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

// Prompt hands an instruction to the agent driving the computer and waits for it to finish.
func (c *Client) Prompt(ctx context.Context, computerID, instruction string) (*ports.PromptResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.promptTimeout)
	defer cancel()

	req := promptRequest{
		Instruction:   instruction,
		Model:         c.model,
		MaxIterations: c.maxIterations,
	}
	var out ports.PromptResult
	path := "/computers/" + url.PathEscape(computerID) + "/prompt"
	if err := c.do(ctx, "vmapi.prompt", http.MethodPost, path, req, &out,
		attribute.String("vm.computer_id", computerID),
		attribute.Int("vm.instruction_length", len(instruction))); err != nil {
		return nil, err
	}

	switch strings.ToLower(out.Status) {
	case "failed", "error":
		return &out, fmt.Errorf("%w: %s", ErrPromptFailed, out.Output)
	}
	return &out, nil
}

// DeleteComputer ends a session. A session that is already gone is not an error.
func (c *Client) DeleteComputer(ctx context.Context, computerID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	err := c.do(ctx, "vmapi.delete", http.MethodDelete, "/computers/"+url.PathEscape(computerID), nil, nil,
		attribute.String("vm.computer_id", computerID))
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any, attrs ...attribute.KeyValue) (err error) {
	ctx, span := tracing.StartSpan(ctx, op, append(attrs, attribute.String("http.method", method))...)
	defer func() { tracing.End(span, err) }()

	var body []byte
	if in != nil {
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	// Client errors are the caller's fault and must not trip the breaker.
	var clientErr error
	err = c.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		c.applyHeaders(req, in != nil)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

		if resp.StatusCode >= 300 {
			apiErr := parseError(resp)
			if !apiErr.Temporary() {
				clientErr = apiErr
				return nil
			}
			return apiErr
		}
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return clientErr
}

func (c *Client) applyHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.modelAPIKey != "" {
		req.Header.Set("X-Model-Api-Key", c.modelAPIKey)
	}
}

func parseError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	} else if text := strings.TrimSpace(string(raw)); text != "" {
		apiErr.Message = text
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

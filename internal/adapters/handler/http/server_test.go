package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	redisq "vmdesk.app/internal/adapters/queue/redis"
	"vmdesk.app/internal/adapters/repository/sqlite"
	"vmdesk.app/internal/core/domain"
	"vmdesk.app/internal/core/services"
)

type fakeDeadLetters struct {
	entries []*redisq.DLQEntry
}

func (f *fakeDeadLetters) List(ctx context.Context, offset, limit int64) ([]*redisq.DLQEntry, error) {
	return f.entries, nil
}

func (f *fakeDeadLetters) Count(ctx context.Context) (int64, error) {
	return int64(len(f.entries)), nil
}

func newTestServer(t *testing.T, dlq DeadLetters) (*httptest.Server, *sqlite.Store) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}

	hub := NewHub(nil)
	go hub.Run(ctx)

	runs := services.NewRunService(store, nil, nil, nil, nil)
	health := services.NewHealthService(nil, nil, "test")
	srv := httptest.NewServer(NewServer(runs, health, hub, dlq).Handler())

	t.Cleanup(func() {
		srv.Close()
		cancel()
		store.Close()
	})
	return srv, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, path := range []string{"/health/live", "/health/ready", "/api/health"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}

	resp, err := http.Get(srv.URL + "/api/health/detailed")
	if err != nil {
		t.Fatal(err)
	}
	report := decode[services.HealthReport](t, resp)
	if report.Status != services.HealthStatusHealthy || report.Version != "test" {
		t.Errorf("report = %+v", report)
	}
}

func TestListWorkflows(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/workflows")
	if err != nil {
		t.Fatal(err)
	}
	got := decode[workflowsResponse](t, resp)
	if len(got.Workflows) == 0 {
		t.Fatal("no workflows listed")
	}
	if len(got.TaskKinds) == 0 {
		t.Error("no task kinds listed")
	}
}

func TestPreviewPlan(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/api/plan", domain.Request{
		Workflow: domain.WorkflowOnePrompt,
		Prompt:   "research the market for electric scooters",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	plan := decode[domain.Plan](t, resp)
	if len(plan.Tasks()) == 0 {
		t.Error("plan has no tasks")
	}
}

func TestPlanValidationErrors(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"workflow":`},
		{"missing workflow", `{"prompt":"hi"}`},
		{"unknown workflow", `{"workflow":"teleport"}`},
		{"unknown kind", `{"workflow":"task","prompt":"x","kind":"bogus"}`},
		{"empty prompt", `{"workflow":"one-prompt","prompt":"  "}`},
		{"prompt too long", `{"workflow":"one-prompt","prompt":"` + strings.Repeat("a", 20000) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/plan", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			body := decode[map[string]string](t, resp)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (%v)", resp.StatusCode, body)
			}
			if body["error"] == "" {
				t.Error("missing error field")
			}
		})
	}
}

func TestRunLifecycle(t *testing.T) {
	srv, store := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/api/runs", domain.Request{Workflow: domain.WorkflowDistributed})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	run := decode[domain.Run](t, resp)
	if !strings.HasPrefix(run.ID, "run-") || run.Status != domain.RunStatusPending {
		t.Fatalf("run = %+v", run)
	}

	resp, err := http.Get(srv.URL + "/api/runs/" + run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got := decode[domain.Run](t, resp); got.ID != run.ID {
		t.Errorf("GET run id = %q", got.ID)
	}

	resp, err = http.Get(srv.URL + "/api/runs/?limit=5")
	if err != nil {
		t.Fatal(err)
	}
	page := decode[services.PaginatedRuns](t, resp)
	if page.Total != 1 || len(page.Runs) != 1 || page.Limit != 5 {
		t.Errorf("page = %+v", page)
	}

	resp = postJSON(t, srv.URL+"/api/runs/"+run.ID+"/cancel", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d", resp.StatusCode)
	}

	// A cancelled run cannot be cancelled again.
	resp = postJSON(t, srv.URL+"/api/runs/"+run.ID+"/cancel", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second cancel status = %d, want 409", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/runs/"+run.ID+"/retry", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("retry status = %d", resp.StatusCode)
	}
	retried := decode[domain.Run](t, resp)
	if retried.Status != domain.RunStatusPending || retried.RetryCount != 1 {
		t.Errorf("retried = %+v", retried)
	}

	stored, err := store.GetRun(context.Background(), run.ID)
	if err != nil || stored == nil {
		t.Fatalf("store.GetRun: %v", err)
	}
	if stored.Cancelled {
		t.Error("retry did not clear the cancelled flag")
	}
}

func TestGetRunNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/runs/run-missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/runs/run-missing/retry", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("retry status = %d, want 404", resp.StatusCode)
	}
}

func TestListDLQ(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/api/dlq")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("unconfigured status = %d, want 503", resp.StatusCode)
	}

	dlq := &fakeDeadLetters{entries: []*redisq.DLQEntry{
		{Run: &domain.Run{ID: "run-1"}, Reason: "VM1: boom", RetryCount: 3},
	}}
	srv, _ = newTestServer(t, dlq)
	resp, err = http.Get(srv.URL + "/api/dlq")
	if err != nil {
		t.Fatal(err)
	}
	got := decode[dlqResponse](t, resp)
	if got.Total != 1 || len(got.Entries) != 1 || got.Entries[0].Reason != "VM1: boom" {
		t.Errorf("dlq = %+v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/health/live")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "http_requests_total") {
		t.Error("metrics output missing http_requests_total")
	}
}

// Package console renders run progress for the command line.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"vmdesk.app/internal/core/domain"
	"vmdesk.app/internal/core/ports"
	"vmdesk.app/internal/core/services"
)

var _ ports.RunObserver = (*Reporter)(nil)

// Reporter prints slot transitions and board snapshots to w.
type Reporter struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

// NewReporter returns a reporter writing to w. Verbose also prints every slot transition.
func NewReporter(w io.Writer, verbose bool) *Reporter {
	return &Reporter{w: w, verbose: verbose}
}

func (r *Reporter) SlotChanged(ctx context.Context, runID string, state domain.SlotState) {
	if !r.verbose && !state.Status.Terminal() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s %s: %s\n", marker(state.Status), label(state), state.Display())
}

func (r *Reporter) Snapshot(ctx context.Context, runID string, states []domain.SlotState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "\n[%s] status\n", time.Now().Format("15:04:05"))
	for _, s := range states {
		fmt.Fprintf(r.w, "  %-18s %s\n", label(s), s.Display())
	}
}

// Plan prints what a run is about to do.
func (r *Reporter) Plan(plan *domain.Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "Workflow: %s (%s)\n", plan.Workflow, plan.Category)
	if plan.Topic != "" {
		fmt.Fprintf(r.w, "Topic: %s\n", plan.Topic)
	}
	for i, stage := range plan.Stages {
		name := stage.Name
		if name == "" {
			name = fmt.Sprintf("stage %d", i+1)
		}
		fmt.Fprintf(r.w, "\n%s", name)
		if stage.RequirePrevious {
			fmt.Fprint(r.w, " (requires previous stage)")
		}
		fmt.Fprintln(r.w)
		for _, task := range stage.Tasks {
			fmt.Fprintf(r.w, "  VM%d %-12s +%-5s %s\n", task.Slot, task.Role, task.Delay, task.WorkingLabel)
		}
	}
	if plan.SharedDocument != "" {
		fmt.Fprintf(r.w, "\nShared document: %s\n", plan.SharedDocument)
	}
	writeArtifacts(r.w, plan.Artifacts)
}

// Instructions prints the full prompt text of every task.
func (r *Reporter) Instructions(plan *domain.Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, task := range plan.Tasks() {
		fmt.Fprintf(r.w, "\n--- VM%d (%s) ---\n%s\n", task.Slot, task.Role, strings.TrimSpace(task.Prompt))
	}
}

// Report prints the final outcome of a run.
func (r *Reporter) Report(report *services.RunReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.w, "\nRun %s finished: %s (%d/%d slots completed)\n",
		report.RunID, report.Status, report.Completed(), len(report.Slots))
	for _, s := range report.Slots {
		fmt.Fprintf(r.w, "  %s %-18s %s\n", marker(s.Status), label(s), s.Display())
	}
	writeArtifacts(r.w, report.Artifacts)
	if len(report.CleanupErrors) > 0 {
		fmt.Fprintln(r.w, "\nCleanup errors:")
		for _, e := range report.CleanupErrors {
			fmt.Fprintf(r.w, "  - %s\n", e)
		}
	}
	fmt.Fprintf(r.w, "\nTotal time: %.2f seconds\n", report.Elapsed().Seconds())
}

// History prints stored runs, newest first.
func (r *Reporter) History(runs []*domain.Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(runs) == 0 {
		fmt.Fprintln(r.w, "No runs recorded.")
		return
	}
	for _, run := range runs {
		elapsed := "-"
		if run.StartedAt != nil && run.FinishedAt != nil {
			elapsed = run.FinishedAt.Sub(*run.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(r.w, "%s  %s  %-13s %-9s %6s  %s\n",
			run.CreatedAt.Local().Format("2006-01-02 15:04"),
			run.ID, run.Workflow, run.Status, elapsed, headline(run.Prompt))
	}
}

func writeArtifacts(w io.Writer, files []string) {
	if len(files) == 0 {
		return
	}
	fmt.Fprintln(w, "\nExpected files:")
	for _, f := range files {
		fmt.Fprintf(w, "  - %s\n", f)
	}
}

func label(s domain.SlotState) string {
	return fmt.Sprintf("%s (%s)", s.Name(), s.Role)
}

func marker(status domain.SlotStatus) string {
	switch status {
	case domain.SlotStatusCompleted:
		return "[ok]"
	case domain.SlotStatusFailed:
		return "[!!]"
	case domain.SlotStatusCancelled, domain.SlotStatusSkipped:
		return "[--]"
	default:
		return "[..]"
	}
}

func headline(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if i := strings.IndexByte(prompt, '\n'); i >= 0 {
		prompt = prompt[:i]
	}
	if len(prompt) > 48 {
		prompt = prompt[:45] + "..."
	}
	return prompt
}

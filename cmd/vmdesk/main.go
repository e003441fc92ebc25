package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vmdesk.app/internal/adapters/console"
	"vmdesk.app/internal/adapters/repository/sqlite"
	"vmdesk.app/internal/adapters/vmapi"
	"vmdesk.app/internal/config"
	"vmdesk.app/internal/core/domain"
	"vmdesk.app/internal/core/logger"
	"vmdesk.app/internal/core/planner"
	"vmdesk.app/internal/core/ports"
	"vmdesk.app/internal/core/services"
	"vmdesk.app/internal/core/tracing"
)

var errRunIncomplete = errors.New("run did not complete")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return usageError()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
		Output: os.Stderr,
	}); err != nil {
		return err
	}
	defer logger.Close()

	if cfg.EnableTracing {
		shutdown, err := tracing.Init(cfg.ServiceName, cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("Failed to initialize tracing", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	switch args[0] {
	case "run":
		return runCommand(ctx, cfg, "run", "", args[1:], stdout)
	case "prompt":
		return runCommand(ctx, cfg, "prompt", domain.WorkflowPrompt, args[1:], stdout)
	case "check":
		return runCommand(ctx, cfg, "check", domain.WorkflowCheck, args[1:], stdout)
	case "task":
		return runCommand(ctx, cfg, "task", domain.WorkflowTask, args[1:], stdout)
	case "plan":
		return planCommand(cfg, args[1:], stdout)
	case "history":
		return historyCommand(ctx, cfg, args[1:], stdout)
	case "workflows":
		return workflowsCommand(stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage())
		return nil
	default:
		return usageError()
	}
}

type runOptions struct {
	req         domain.Request
	dryRun      bool
	dryRunDelay time.Duration
	verbose     bool
	showPrompts bool
	historyDB   string
}

// parseRunFlags parses the flags shared by every run-like subcommand. A
// non-empty fixed workflow hides the -workflow flag.
func parseRunFlags(name string, fixed domain.Workflow, cfg *config.Config, args []string) (*runOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := &runOptions{}
	workflow := string(fixed)
	if fixed == "" {
		fs.StringVar(&workflow, "workflow", string(domain.WorkflowDistributed), "workflow to run, see the workflows command")
	}
	if !planner.IgnoresPrompt(fixed) {
		fs.StringVar(&opts.req.Prompt, "prompt", "", "instruction or topic; asked interactively when omitted")
	}
	if fixed == "" || fixed == domain.WorkflowTask {
		fs.StringVar(&opts.req.Kind, "kind", "", "task kind for the task workflow: "+strings.Join(planner.TaskKinds(), ", "))
	}
	fs.BoolVar(&opts.dryRun, "dry-run", cfg.DryRun, "log instructions instead of opening remote computers")
	fs.DurationVar(&opts.dryRunDelay, "dry-run-delay", 2*time.Second, "simulated prompt duration in dry-run mode")
	fs.BoolVar(&opts.verbose, "v", false, "print every slot transition")
	fs.BoolVar(&opts.showPrompts, "show-prompts", false, "print the full instruction sent to each VM")
	fs.StringVar(&opts.historyDB, "history", cfg.HistoryDB, "sqlite file recording runs; empty keeps no history")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.req.Prompt == "" && fs.NArg() > 0 {
		opts.req.Prompt = strings.Join(fs.Args(), " ")
	}
	opts.req.Workflow = domain.Workflow(workflow)
	return opts, nil
}

func runCommand(ctx context.Context, cfg *config.Config, name string, fixed domain.Workflow, args []string, stdout io.Writer) error {
	opts, err := parseRunFlags(name, fixed, cfg, args)
	if err != nil {
		return err
	}
	if err := resolvePrompt(&opts.req); err != nil {
		return err
	}

	plan, err := planner.Build(opts.req)
	if err != nil {
		return err
	}
	reporter := console.NewReporter(stdout, opts.verbose)
	reporter.Plan(plan)
	if opts.showPrompts {
		reporter.Instructions(plan)
	}

	cfg.DryRun = opts.dryRun
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	store, err := openHistory(ctx, opts.historyDB)
	if err != nil {
		return err
	}
	defer store.Close()

	orchestrator := services.NewOrchestrator(newProvider(cfg, opts.dryRunDelay), reporter, cfg.ProjectIDs)
	runs := services.NewRunService(store, nil, nil, nil, orchestrator)

	run, err := runs.CreateRun(ctx, opts.req)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\nStarting %s\n", run.ID)

	report, err := runs.ProcessRun(ctx, run)
	if err != nil {
		return err
	}
	if report == nil {
		return fmt.Errorf("%w: %s was skipped", errRunIncomplete, run.ID)
	}
	reporter.Report(report)

	if report.Status != domain.RunStatusSuccess {
		return fmt.Errorf("%w: %s", errRunIncomplete, report.Status)
	}
	return nil
}

func planCommand(cfg *config.Config, args []string, stdout io.Writer) error {
	opts, err := parseRunFlags("plan", "", cfg, args)
	if err != nil {
		return err
	}
	plan, err := planner.Build(opts.req)
	if err != nil {
		return err
	}
	reporter := console.NewReporter(stdout, false)
	reporter.Plan(plan)
	reporter.Instructions(plan)
	return nil
}

func historyCommand(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("history", cfg.HistoryDB, "sqlite history file")
	limit := fs.Int("limit", 20, "number of runs to show")
	status := fs.String("status", "", "only show runs with this status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("no history file configured")
	}

	store, err := sqlite.Open(ctx, *path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	var list []*domain.Run
	if *status != "" {
		list, err = store.ListRunsByStatus(ctx, domain.RunStatus(*status))
		if len(list) > *limit {
			list = list[:*limit]
		}
	} else {
		list, err = store.ListRuns(ctx, 0, *limit)
	}
	if err != nil {
		return err
	}
	console.NewReporter(stdout, false).History(list)
	return nil
}

func workflowsCommand(stdout io.Writer) error {
	for _, info := range planner.Workflows() {
		fmt.Fprintf(stdout, "%-14s %d VM  %s\n", info.Workflow, info.Slots, info.Description)
	}
	fmt.Fprintf(stdout, "\ntask kinds: %s\n", strings.Join(planner.TaskKinds(), ", "))
	return nil
}

// openHistory opens the sqlite history, or a throwaway in-memory store when path is empty.
func openHistory(ctx context.Context, path string) (*sqlite.Store, error) {
	if path == "" {
		path = ":memory:"
	}
	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}

func newProvider(cfg *config.Config, dryRunDelay time.Duration) ports.ComputerProvider {
	if cfg.DryRun {
		logger.Info("Dry run, no remote computers will be opened")
		return vmapi.NewDryRunProvider(dryRunDelay)
	}
	client := vmapi.NewClient(vmapi.Options{
		BaseURL:       cfg.BaseURL,
		APIKey:        cfg.APIKey,
		ModelAPIKey:   cfg.ModelAPIKey,
		Model:         cfg.PromptModel,
		MaxIterations: cfg.PromptMaxIterations,
		PromptTimeout: cfg.PromptTimeout,
	})
	return vmapi.NewProvider(client)
}

func usageError() error {
	return fmt.Errorf("%s", usage())
}

func usage() string {
	return `Usage: vmdesk <command> [flags]

Commands:
  run        run a workflow (-workflow, -prompt, -kind)
  prompt     send one instruction to a single VM
  check      open a VM and launch the calculator
  task       run a role-based task (-kind, -prompt)
  plan       print the plan and instructions without running
  history    list recorded runs
  workflows  list available workflows

Run "vmdesk <command> -h" for command flags.
`
}

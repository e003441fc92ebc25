// Package planner turns a user prompt into a staged plan of VM instructions.
//
// Every workflow picks a keyword table to classify the prompt, renders the
// matching prompt templates for each VM slot, and fixes the start delays and
// monitor cadence the orchestrator runs with.
package planner

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"time"

	"vmdesk.app/internal/core/domain"
)

var (
	ErrUnknownWorkflow = errors.New("unknown workflow")
	ErrUnknownKind     = errors.New("unknown task kind")
	ErrEmptyPrompt     = errors.New("prompt is required")
	ErrPromptTooLong   = errors.New("prompt too long")
)

const maxPromptLength = 4000

// Keywords holds the ordered keyword groups a workflow classifies with.
type Keywords struct {
	Research []string
	Business []string
	Creative []string
}

// Classify returns the first category whose keywords occur in prompt.
// Matching is a case-insensitive substring test, checked research, business, creative.
func Classify(prompt string, kw Keywords) domain.Category {
	lower := strings.ToLower(prompt)
	groups := []struct {
		category domain.Category
		words    []string
	}{
		{domain.CategoryResearch, kw.Research},
		{domain.CategoryBusiness, kw.Business},
		{domain.CategoryCreative, kw.Creative},
	}
	for _, g := range groups {
		for _, w := range g.words {
			if strings.Contains(lower, w) {
				return g.category
			}
		}
	}
	return domain.CategoryGeneral
}

// Slug makes a topic safe to embed in a quoted file name: whitespace becomes
// an underscore and quote characters are dropped.
func Slug(topic string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return '_'
		case r == '\'' || r == '"' || r == '`':
			return -1
		}
		return r
	}, topic)
}

// Info describes a workflow for listings.
type Info struct {
	Workflow    domain.Workflow `json:"workflow"`
	Description string          `json:"description"`
	DemoPrompt  string          `json:"demo_prompt,omitempty"`
	Slots       int             `json:"slots"`
}

type definition struct {
	description string
	demoPrompt  string
	slots       int
	build       func(req domain.Request) (*domain.Plan, error)
}

var definitions = map[domain.Workflow]definition{
	domain.WorkflowDelegate: {
		description: "classify the prompt and split it into research, analysis and presentation missions on 3 VMs at once",
		demoPrompt:  "Research and analyze the future of electric vehicles market",
		slots:       3,
		build:       buildDelegate,
	},
	domain.WorkflowOnePrompt: {
		description: "one prompt split across 3 VMs with speed-optimized missions",
		slots:       3,
		build:       buildOnePrompt,
	},
	domain.WorkflowSpeed: {
		description: "keyboard-shortcut missions with VM2 and VM3 starting one and two minutes after VM1",
		slots:       3,
		build:       buildSpeed,
	},
	domain.WorkflowPipeline: {
		description: "VM1 researches to a file, then VM2 and VM3 build on it",
		slots:       3,
		build:       buildPipeline,
	},
	domain.WorkflowVisible: {
		description: "pipeline with spoken data handoff announcements",
		demoPrompt:  "artificial intelligence in healthcare",
		slots:       3,
		build:       buildVisible,
	},
	domain.WorkflowSharedMemory: {
		description: "all VMs read and write sections of one SHARED_MEMORY.txt file",
		demoPrompt:  "renewable energy market trends",
		slots:       3,
		build:       buildSharedMemory,
	},
	domain.WorkflowMaster: {
		description: "fixed AI automation market mission on 3 VMs at once",
		slots:       3,
		build:       buildMaster,
	},
	domain.WorkflowEcommerce: {
		description: "fixed e-commerce business analysis on 3 VMs at once",
		slots:       3,
		build:       buildEcommerce,
	},
	domain.WorkflowDistributed: {
		description: "research, spreadsheet and deck on one topic with 5 second staggered starts",
		demoPrompt:  "artificial intelligence trends 2024",
		slots:       3,
		build:       buildDistributed,
	},
	domain.WorkflowSingle: {
		description: "the whole research, analysis and presentation workflow on one VM",
		demoPrompt:  "Research the impact of artificial intelligence on healthcare",
		slots:       1,
		build:       buildSingle,
	},
	domain.WorkflowTask: {
		description: "one single-role task on one VM, selected by kind",
		slots:       1,
		build:       buildTask,
	},
	domain.WorkflowPrompt: {
		description: "send one instruction verbatim",
		demoPrompt:  "Open Firefox and search for pictures of cats",
		slots:       1,
		build:       buildVerbatim,
	},
	domain.WorkflowCheck: {
		description: "connection check that opens the calculator app",
		demoPrompt:  checkInstruction,
		slots:       1,
		build:       buildCheck,
	},
}

// Workflows lists every known workflow sorted by name.
func Workflows() []Info {
	infos := make([]Info, 0, len(definitions))
	for wf, def := range definitions {
		infos = append(infos, Info{
			Workflow:    wf,
			Description: def.description,
			DemoPrompt:  def.demoPrompt,
			Slots:       def.slots,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Workflow < infos[j].Workflow })
	return infos
}

// DemoPrompt returns the prompt used when the user enters nothing, or "".
func DemoPrompt(wf domain.Workflow, kind string) string {
	if wf == domain.WorkflowTask {
		if k, ok := taskKinds[normalizeKind(kind)]; ok {
			return k.demoTopic
		}
		return ""
	}
	return definitions[wf].demoPrompt
}

// Build renders the plan for a request.
func Build(req domain.Request) (*domain.Plan, error) {
	def, ok := definitions[req.Workflow]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWorkflow, req.Workflow)
	}

	req.Prompt = strings.TrimSpace(req.Prompt)
	if len(req.Prompt) > maxPromptLength {
		return nil, fmt.Errorf("%w: exceeds maximum length of %d characters", ErrPromptTooLong, maxPromptLength)
	}
	if req.Prompt == "" {
		req.Prompt = DemoPrompt(req.Workflow, req.Kind)
	}
	if req.Prompt == "" && !IgnoresPrompt(req.Workflow) {
		return nil, ErrEmptyPrompt
	}

	plan, err := def.build(req)
	if err != nil {
		return nil, err
	}
	plan.Workflow = req.Workflow
	if plan.Category == "" {
		plan.Category = domain.CategoryGeneral
	}
	for _, task := range plan.Tasks() {
		plan.Artifacts = appendUnique(plan.Artifacts, ExpectedArtifacts(task.Prompt)...)
	}
	return plan, nil
}

// IgnoresPrompt reports workflows whose instructions never use the user prompt.
func IgnoresPrompt(wf domain.Workflow) bool {
	switch wf {
	case domain.WorkflowMaster, domain.WorkflowEcommerce, domain.WorkflowCheck:
		return true
	}
	return false
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

// labels is the per-slot status text used by a workflow.
type labels struct {
	waiting, working, done string
}

func task(slot int, focus, prompt string, delay time.Duration, l labels) domain.Task {
	return domain.Task{
		Slot:         slot,
		Role:         domain.RoleForSlot(slot),
		Focus:        focus,
		Prompt:       trimmed(prompt),
		Delay:        delay,
		WaitingLabel: l.waiting,
		WorkingLabel: l.working,
		DoneLabel:    l.done,
	}
}

var plainLabels = labels{waiting: "Ready", working: "Working", done: "Completed"}

func singleStage(monitor time.Duration, tasks ...domain.Task) []domain.Stage {
	return []domain.Stage{{Name: "parallel", Tasks: tasks, MonitorInterval: monitor}}
}

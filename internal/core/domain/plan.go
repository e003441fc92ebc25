package domain

import "time"

type Workflow string

const (
	WorkflowDelegate     Workflow = "delegate"
	WorkflowOnePrompt    Workflow = "one-prompt"
	WorkflowSpeed        Workflow = "speed"
	WorkflowPipeline     Workflow = "pipeline"
	WorkflowVisible      Workflow = "visible"
	WorkflowSharedMemory Workflow = "shared-memory"
	WorkflowMaster       Workflow = "master"
	WorkflowEcommerce    Workflow = "ecommerce"
	WorkflowDistributed  Workflow = "distributed"
	WorkflowSingle       Workflow = "single"
	WorkflowTask         Workflow = "task"
	WorkflowPrompt       Workflow = "prompt"
	WorkflowCheck        Workflow = "check"
)

type Category string

const (
	CategoryResearch Category = "research"
	CategoryBusiness Category = "business"
	CategoryCreative Category = "creative"
	CategoryGeneral  Category = "general"
)

// Request asks the planner for a plan.
type Request struct {
	Workflow Workflow `json:"workflow"`
	Prompt   string   `json:"prompt"`
	Kind     string   `json:"kind,omitempty"` // Only used by the task workflow
}

// Task is one prompt dispatched to one VM slot.
type Task struct {
	Slot         int           `json:"slot"`
	Role         Role          `json:"role"`
	Focus        string        `json:"focus,omitempty"`
	Prompt       string        `json:"prompt"`
	Delay        time.Duration `json:"delay"` // Relative to the start of its stage
	WaitingLabel string        `json:"waiting_label,omitempty"`
	WorkingLabel string        `json:"working_label"`
	DoneLabel    string        `json:"done_label"`
}

type Stage struct {
	Name            string        `json:"name"`
	Tasks           []Task        `json:"tasks"`
	MonitorInterval time.Duration `json:"monitor_interval"` // Zero disables periodic snapshots
	RequirePrevious bool          `json:"require_previous"` // Skip the stage unless every earlier task completed
}

type Plan struct {
	Workflow       Workflow `json:"workflow"`
	Category       Category `json:"category"`
	Topic          string   `json:"topic"`
	Stages         []Stage  `json:"stages"`
	Artifacts      []string `json:"artifacts"`
	SharedDocument string   `json:"shared_document,omitempty"`
}

// Slots returns the distinct slot numbers used by the plan, in first-use order.
func (p *Plan) Slots() []int {
	seen := make(map[int]bool)
	var slots []int
	for _, stage := range p.Stages {
		for _, task := range stage.Tasks {
			if !seen[task.Slot] {
				seen[task.Slot] = true
				slots = append(slots, task.Slot)
			}
		}
	}
	return slots
}

// Tasks returns every task of the plan in stage order.
func (p *Plan) Tasks() []Task {
	var tasks []Task
	for _, stage := range p.Stages {
		tasks = append(tasks, stage.Tasks...)
	}
	return tasks
}

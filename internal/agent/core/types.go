package core

import "time"

// StepKind tags a plan step with the worker class that should execute it.
// Kinds are assigned once when a plan is built; externally generated step
// titles are converted through KindFromTitle.
type StepKind string

const (
	KindResearch      StepKind = "research"
	KindAnalysis      StepKind = "analysis"
	KindWrite         StepKind = "write"
	KindParallelWrite StepKind = "parallel_write"
	KindEdit          StepKind = "edit"
	KindUnknown       StepKind = "unknown"
)

// Step is one ordered unit of work in a plan. Immutable after plan build.
type Step struct {
	Title   string   `json:"title"`
	Ordinal int      `json:"ordinal"`
	Kind    StepKind `json:"kind"`
}

// HistoryRecord is the output of one completed step. History is append-only
// and owned by the executor for the duration of a run.
type HistoryRecord struct {
	StepTitle   string `json:"step_title"`
	Description string `json:"description"`
	AgentName   string `json:"agent_name"`
	Output      string `json:"output"`
}

// ReportFormat selects tone, length targets and prompt framing for writers.
type ReportFormat string

const (
	FormatAcademic   ReportFormat = "academic"
	FormatExecutive  ReportFormat = "executive"
	FormatTechnical  ReportFormat = "technical"
	FormatNewsletter ReportFormat = "newsletter"
)

// NormalizeFormat maps unknown format values to the academic default.
func NormalizeFormat(s string) ReportFormat {
	switch ReportFormat(s) {
	case FormatAcademic, FormatExecutive, FormatTechnical, FormatNewsletter:
		return ReportFormat(s)
	default:
		return FormatAcademic
	}
}

// RunOptions is the advanced-options bag accepted on a trigger request.
type RunOptions struct {
	ReportFormat      ReportFormat `json:"report_format"`
	ParallelSections  bool         `json:"parallel_sections"`
	MaxSectionWorkers int          `json:"max_section_workers"`
}

// RunContext carries everything one run needs, threaded explicitly through
// every call. There is no ambient per-run state.
type RunContext struct {
	TaskID    string
	Topic     string
	SessionID string
	Options   RunOptions
}

// Per-step progress statuses.
const (
	StepPending = "pending"
	StepRunning = "running"
	StepDone    = "done"
	StepError   = "error"
)

// Task statuses persisted to the task store.
const (
	TaskRunning = "running"
	TaskDone    = "done"
	TaskError   = "error"
)

// Substep is one rendered line of detail under a step in the progress view.
type Substep struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// StepProgress is the poll-visible state of one plan step.
type StepProgress struct {
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Substeps    []Substep `json:"substeps"`
}

// Progress is the poll-visible state of one run.
type Progress struct {
	Steps     []StepProgress `json:"steps"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Terminal reports whether every non-pending step has settled and at least
// one step ran; used by the registry's eviction policy.
func (p Progress) Terminal() bool {
	if len(p.Steps) == 0 {
		return false
	}
	ran := false
	for _, s := range p.Steps {
		switch s.Status {
		case StepRunning:
			return false
		case StepDone:
			ran = true
		case StepError:
			return true
		}
	}
	if !ran {
		return false
	}
	// a run is terminal when its last step settled
	last := p.Steps[len(p.Steps)-1]
	return last.Status == StepDone || last.Status == StepError
}

// TaskResult is the payload persisted with a done task.
type TaskResult struct {
	FinalReport string         `json:"final_report"`
	Steps       []StepProgress `json:"steps"`
}

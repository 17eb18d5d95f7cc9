package core

import "fmt"

// PlanParseError indicates an upstream plan response that could not be read
// as a flat list of step titles. It is always recovered locally by falling
// back to the default plan and never surfaces to a caller.
type PlanParseError struct {
	Raw string
}

func (e *PlanParseError) Error() string {
	return fmt.Sprintf("plan response is not a list of steps: %.80q", e.Raw)
}

// UnroutableStepError indicates a step title that matched no routing rule.
// Fatal to the run.
type UnroutableStepError struct {
	Title string
}

func (e *UnroutableStepError) Error() string {
	return fmt.Sprintf("no worker can handle step: %q", e.Title)
}

// WorkerExecutionError indicates a worker, tool, or backend failure while
// executing a step. Fatal to the step, which aborts the run.
type WorkerExecutionError struct {
	StepTitle string
	Worker    string
	Err       error
}

func (e *WorkerExecutionError) Error() string {
	return fmt.Sprintf("worker %s failed on step %q: %v", e.Worker, e.StepTitle, e.Err)
}

func (e *WorkerExecutionError) Unwrap() error { return e.Err }

package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/arashpm/reporter/internal/agent/telemetry"
	"github.com/arashpm/reporter/provider"
	"github.com/arashpm/reporter/tools/search"
)

// TaskStore is the slice of task persistence the executor needs.
type TaskStore interface {
	UpdateTask(ctx context.Context, id, status string, result *TaskResult) error
}

// SessionAppender receives the finished report as a conversation message.
type SessionAppender interface {
	AppendMessage(ctx context.Context, sessionID, role, content string, metadata map[string]any) error
}

var pipelineTracer = otel.Tracer("reporter/internal/agent/core/pipeline")

// persistTimeout bounds terminal task writes and the session append. These
// run on a context detached from the run's own, which may already be past
// its deadline by the time the outcome is known.
const persistTimeout = 30 * time.Second

// Executor drives plan steps in order, maintains live progress, and writes
// the run's terminal outcome exactly once.
type Executor struct {
	llm            provider.Provider
	tools          *search.Registry
	tele           *telemetry.Telemetry
	progress       *ProgressRegistry
	tasks          TaskStore
	sessions       SessionAppender
	logger         *log.Logger
	defaultFormat  ReportFormat
	sectionWorkers int
}

func NewExecutor(llm provider.Provider, tools *search.Registry, tele *telemetry.Telemetry,
	progress *ProgressRegistry, tasks TaskStore, sessions SessionAppender,
	logger *log.Logger, defaultFormat ReportFormat, sectionWorkers int) *Executor {
	if logger == nil {
		logger = log.New(log.Writer(), "[PIPE] ", log.LstdFlags)
	}
	if sectionWorkers <= 0 {
		sectionWorkers = 3
	}
	if defaultFormat == "" {
		defaultFormat = FormatAcademic
	}
	return &Executor{
		llm:            llm,
		tools:          tools,
		tele:           tele,
		progress:       progress,
		tasks:          tasks,
		sessions:       sessions,
		logger:         logger,
		defaultFormat:  defaultFormat,
		sectionWorkers: sectionWorkers,
	}
}

// Run executes the plan for one run. Steps run strictly in order; the
// first failure marks the running step, aborts the rest and persists the
// error outcome. Exactly one terminal task write happens either way.
func (e *Executor) Run(ctx context.Context, rc RunContext, plan []Step) error {
	started := time.Now()
	format := rc.Options.ReportFormat
	if format == "" {
		format = e.defaultFormat
	}
	rc.Options.ReportFormat = NormalizeFormat(string(format))

	ctx, span := pipelineTracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", rc.TaskID),
		attribute.Int("plan.steps", len(plan)),
		attribute.String("report.format", string(rc.Options.ReportFormat)),
	))
	defer span.End()

	e.progress.Create(rc.TaskID, plan)
	e.tele.RecordRunStarted(string(rc.Options.ReportFormat))
	e.logger.Printf("run %s: %d steps for topic %.60q", rc.TaskID, len(plan), rc.Topic)

	history := make([]HistoryRecord, 0, len(plan))
	for i, step := range plan {
		output, agent, err := e.executeStep(ctx, rc, step, i, len(plan), history)
		if err != nil {
			e.progress.StepError(rc.TaskID, i, err.Error())
			span.RecordError(err)
			span.SetStatus(codes.Error, "run failed")
			e.persistOutcome(ctx, rc.TaskID, TaskError, nil)
			e.tele.RecordRunFinished(TaskError, time.Since(started))
			e.logger.Printf("run %s: aborted at step %d: %v", rc.TaskID, i+1, err)
			return err
		}

		history = append(history, HistoryRecord{
			StepTitle:   step.Title,
			Description: stepDescription(agent),
			AgentName:   agent,
			Output:      output,
		})
		e.progress.StepDone(rc.TaskID, i, Substep{
			Title:   agent + " output",
			Content: truncate(output, 500),
		})
	}

	final := "No report generated."
	if len(history) > 0 {
		final = history[len(history)-1].Output
	}
	snapshot := e.progress.Snapshot(rc.TaskID)
	result := &TaskResult{FinalReport: final, Steps: snapshot.Steps}
	e.persistOutcome(ctx, rc.TaskID, TaskDone, result)
	e.tele.RecordRunFinished(TaskDone, time.Since(started))
	span.SetStatus(codes.Ok, "")

	e.appendToSession(ctx, rc, final)
	e.logger.Printf("run %s: done in %v", rc.TaskID, time.Since(started))
	return nil
}

// executeStep builds context, routes, and runs the selected worker for one
// step. Returns the output and the agent tag that produced it.
func (e *Executor) executeStep(ctx context.Context, rc RunContext, step Step, i, total int, history []HistoryRecord) (string, string, error) {
	ctx, span := pipelineTracer.Start(ctx, "pipeline.step", trace.WithAttributes(
		attribute.String("run.id", rc.TaskID),
		attribute.Int("step.ordinal", step.Ordinal),
		attribute.String("step.kind", string(step.Kind)),
	))
	defer span.End()

	kind, err := Route(step, len(history))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unroutable step")
		return "", "", err
	}
	if kind == KindWrite && rc.Options.ParallelSections {
		kind = KindParallelWrite
	}
	agent := AgentName(kind)
	span.SetAttributes(attribute.String("step.worker", agent))

	e.progress.StepRunning(rc.TaskID, i, fmt.Sprintf("Running %s (step %d of %d)", agent, i+1, total))

	taskContext := BuildContext(rc.Topic, history) + "\nYour next task:\n" + step.Title

	stepStart := time.Now()
	output, err := e.worker(kind, rc).Execute(ctx, taskContext)
	e.tele.RecordStep(agent, time.Since(stepStart))
	if err != nil {
		werr := &WorkerExecutionError{StepTitle: step.Title, Worker: agent, Err: err}
		span.RecordError(werr)
		span.SetStatus(codes.Error, "worker failed")
		return "", agent, werr
	}
	if strings.TrimSpace(output) == "" {
		werr := &WorkerExecutionError{StepTitle: step.Title, Worker: agent, Err: fmt.Errorf("empty output")}
		span.RecordError(werr)
		span.SetStatus(codes.Error, "worker returned nothing")
		return "", agent, werr
	}
	return output, agent, nil
}

// worker builds the worker for a kind with this run's options applied.
func (e *Executor) worker(kind StepKind, rc RunContext) Worker {
	switch kind {
	case KindResearch:
		return &Researcher{llm: e.llm, tools: e.tools, tele: e.tele, logger: e.logger}
	case KindAnalysis:
		return &Analyst{llm: e.llm, tele: e.tele}
	case KindParallelWrite:
		workers := rc.Options.MaxSectionWorkers
		if workers <= 0 {
			workers = e.sectionWorkers
		}
		return &ParallelWriter{llm: e.llm, tele: e.tele, format: rc.Options.ReportFormat, topic: rc.Topic, workers: workers}
	case KindEdit:
		return &Editor{llm: e.llm, tele: e.tele}
	default:
		return &Writer{llm: e.llm, tele: e.tele, format: rc.Options.ReportFormat}
	}
}

// persistOutcome writes the run's terminal status exactly once, on a
// context detached from the run's own so the write still lands when the
// run deadline fired.
func (e *Executor) persistOutcome(ctx context.Context, taskID, status string, result *TaskResult) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := e.tasks.UpdateTask(pctx, taskID, status, result); err != nil {
		e.logger.Printf("run %s: failed to persist %s status: %v", taskID, status, err)
	}
}

// appendToSession delivers the final report to the run's session, if any.
// Best effort: failures are logged and never change the run outcome.
func (e *Executor) appendToSession(ctx context.Context, rc RunContext, report string) {
	if rc.SessionID == "" || e.sessions == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	err := e.sessions.AppendMessage(pctx, rc.SessionID, "assistant", report, map[string]any{
		"task_id": rc.TaskID,
		"format":  string(rc.Options.ReportFormat),
	})
	if err != nil {
		e.logger.Printf("run %s: session append failed (ignored): %v", rc.TaskID, err)
	}
}

func stepDescription(agent string) string {
	switch agent {
	case AgentResearcher:
		return "Collected research findings and sources"
	case AgentAnalyst:
		return "Organized and ranked the evidence"
	case AgentWriter:
		return "Drafted the report"
	case AgentParallelWriter:
		return "Drafted report sections in parallel"
	case AgentEditor:
		return "Provided editorial feedback on the draft"
	default:
		return "Completed the step"
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	core "github.com/arashpm/reporter/internal/agent/core"
	"github.com/arashpm/reporter/internal/store"
	"github.com/arashpm/reporter/session"
)

// ReportsHandler exposes the report pipeline: trigger, progress polling,
// terminal status, and report history.
type ReportsHandler struct {
	Tasks      store.TaskStore
	Sessions   session.Store
	Planner    *core.Planner
	Exec       *core.Executor
	Progress   *core.ProgressRegistry
	RunTimeout time.Duration
	Logger     *log.Logger
}

type generateRequest struct {
	Prompt          string                  `json:"prompt"`
	SessionID       string                  `json:"session_id"`
	ReportFormat    string                  `json:"report_format"`
	AdvancedOptions *generateRequestOptions `json:"advanced_options"`
}

type generateRequestOptions struct {
	ParallelSections  bool `json:"parallel_sections"`
	MaxSectionWorkers int  `json:"max_section_workers"`
}

func (h *ReportsHandler) Register(g *echo.Group) {
	g.POST("/generate_report", h.generateReport)
	g.GET("/task_progress/:task_id", h.taskProgress)
	g.GET("/task_status/:task_id", h.taskStatus)
	g.GET("/chat_history", h.listHistory)
	g.GET("/chat_history/:task_id", h.getReport)
}

func (h *ReportsHandler) generateReport(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}

	taskID := uuid.NewString()
	title := store.TitleFromPrompt(req.Prompt)
	if err := h.Tasks.CreateTask(c.Request().Context(), taskID, title, req.Prompt); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	sessionID := req.SessionID
	if sessionID != "" && h.Sessions != nil {
		if err := h.Sessions.AppendMessage(c.Request().Context(), sessionID, "user", req.Prompt,
			map[string]any{"task_id": taskID}); err != nil {
			h.Logger.Printf("session append on trigger failed (ignored): %v", err)
		}
	}

	rc := core.RunContext{
		TaskID:    taskID,
		Topic:     req.Prompt,
		SessionID: sessionID,
		Options:   core.RunOptions{ReportFormat: core.NormalizeFormat(req.ReportFormat)},
	}
	if req.AdvancedOptions != nil {
		rc.Options.ParallelSections = req.AdvancedOptions.ParallelSections
		rc.Options.MaxSectionWorkers = req.AdvancedOptions.MaxSectionWorkers
	}

	// seed progress before the run starts so a poll racing the goroutine
	// sees pending steps instead of the unknown-run default
	h.Progress.Create(taskID, h.Planner.DefaultPlan())

	timeout := h.RunTimeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		plan := h.Planner.BuildPlan(ctx, rc.Topic)
		if err := h.Exec.Run(ctx, rc, plan); err != nil {
			h.Logger.Printf("run %s failed: %v", rc.TaskID, err)
		}
	}()

	return c.JSON(http.StatusAccepted, map[string]string{
		"task_id":    taskID,
		"session_id": sessionID,
		"status":     core.TaskRunning,
	})
}

func (h *ReportsHandler) taskProgress(c echo.Context) error {
	snapshot := h.Progress.Snapshot(c.Param("task_id"))
	return c.JSON(http.StatusOK, snapshot)
}

func (h *ReportsHandler) taskStatus(c echo.Context) error {
	task, ok, err := h.Tasks.GetTask(c.Request().Context(), c.Param("task_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	return c.JSON(http.StatusOK, task)
}

func (h *ReportsHandler) listHistory(c echo.Context) error {
	tasks, err := h.Tasks.ListCompleted(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if tasks == nil {
		tasks = []store.TaskSummary{}
	}
	return c.JSON(http.StatusOK, map[string]any{"tasks": tasks})
}

func (h *ReportsHandler) getReport(c echo.Context) error {
	task, ok, err := h.Tasks.GetTask(c.Request().Context(), c.Param("task_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok || task.FinalReport == "" {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"task_id":      task.ID,
		"title":        task.Title,
		"final_report": task.FinalReport,
	})
}

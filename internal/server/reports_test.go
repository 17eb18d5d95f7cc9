package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/arashpm/reporter/config"
	core "github.com/arashpm/reporter/internal/agent/core"
	agenttele "github.com/arashpm/reporter/internal/agent/telemetry"
	"github.com/arashpm/reporter/internal/store"
	"github.com/arashpm/reporter/provider"
	"github.com/arashpm/reporter/tools/search"
)

type fakeTaskStore struct {
	mu      sync.Mutex
	tasks   map[string]store.Task
	updates int
	settled chan string
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[string]store.Task), settled: make(chan string, 4)}
}

func (f *fakeTaskStore) CreateTask(ctx context.Context, id, title, prompt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[id] = store.Task{ID: id, Title: title, Prompt: prompt, Status: core.TaskRunning, CreatedAt: time.Now()}
	return nil
}

func (f *fakeTaskStore) UpdateTask(ctx context.Context, id, status string, result *core.TaskResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	t := f.tasks[id]
	t.Status = status
	if result != nil {
		t.FinalReport = result.FinalReport
		raw, _ := json.Marshal(result)
		t.Result = raw
	}
	f.tasks[id] = t
	f.settled <- id
	return nil
}

func (f *fakeTaskStore) GetTask(ctx context.Context, id string) (store.Task, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	return t, ok, nil
}

func (f *fakeTaskStore) ListCompleted(ctx context.Context) ([]store.TaskSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.TaskSummary
	for _, t := range f.tasks {
		if t.Status == core.TaskDone {
			out = append(out, store.TaskSummary{ID: t.ID, Title: t.Title, Prompt: t.Prompt, HasReport: t.FinalReport != "", CreatedAt: t.CreatedAt})
		}
	}
	return out, nil
}

type fixedLLM struct{}

func (fixedLLM) Complete(ctx context.Context, messages []provider.Message, tools []provider.ToolDecl) (provider.Completion, error) {
	return provider.Completion{Text: "generated text with https://example.com/source"}, nil
}

func newTestHandler(tasks store.TaskStore) (*ReportsHandler, *core.ProgressRegistry) {
	tele := agenttele.NewTelemetry(config.TelemetryConfig{})
	progress := core.NewProgressRegistry()
	exec := core.NewExecutor(fixedLLM{}, search.NewRegistry(3), tele, progress, tasks, nil,
		nil, core.FormatAcademic, 2)
	return &ReportsHandler{
		Tasks:      tasks,
		Planner:    core.NewPlanner(nil, nil, 7),
		Exec:       exec,
		Progress:   progress,
		RunTimeout: time.Minute,
		Logger:     log.New(log.Writer(), "[REPORTS] ", log.LstdFlags),
	}, progress
}

func setupEcho(h *ReportsHandler) *echo.Echo {
	e := echo.New()
	h.Register(e.Group("/api"))
	return e
}

func TestGenerateReportEndToEnd(t *testing.T) {
	tasks := newFakeTaskStore()
	h, _ := newTestHandler(tasks)
	e := setupEcho(h)

	body := `{"prompt": "history of container runtimes"}`
	req := httptest.NewRequest(http.MethodPost, "/api/generate_report", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	taskID := resp["task_id"]
	if taskID == "" {
		t.Fatalf("no task_id in response: %s", rec.Body.String())
	}

	select {
	case <-tasks.settled:
	case <-time.After(5 * time.Second):
		t.Fatalf("run never settled")
	}

	task, ok, _ := tasks.GetTask(context.Background(), taskID)
	if !ok || task.Status != core.TaskDone {
		t.Fatalf("task = %+v, want done", task)
	}
	if tasks.updates != 1 {
		t.Fatalf("task store received %d updates, want 1", tasks.updates)
	}

	// progress endpoint reflects the finished run
	req = httptest.NewRequest(http.MethodGet, "/api/task_progress/"+taskID, nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("progress status = %d", rec.Code)
	}
	var progress core.Progress
	if err := json.Unmarshal(rec.Body.Bytes(), &progress); err != nil {
		t.Fatalf("bad progress body: %v", err)
	}
	if len(progress.Steps) != len(core.DefaultPlanTitles) {
		t.Fatalf("progress has %d steps, want %d", len(progress.Steps), len(core.DefaultPlanTitles))
	}
	for _, s := range progress.Steps {
		if s.Status != core.StepDone {
			t.Fatalf("step %q = %q, want done", s.Title, s.Status)
		}
	}
}

func TestGenerateReportRequiresPrompt(t *testing.T) {
	h, _ := newTestHandler(newFakeTaskStore())
	e := setupEcho(h)

	req := httptest.NewRequest(http.MethodPost, "/api/generate_report", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// gatedLLM blocks every generation call until released, keeping the
// background run from advancing past plan building.
type gatedLLM struct {
	release chan struct{}
}

func (g *gatedLLM) Complete(ctx context.Context, messages []provider.Message, tools []provider.ToolDecl) (provider.Completion, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return provider.Completion{}, ctx.Err()
	}
	return provider.Completion{Text: "generated text"}, nil
}

func TestTaskProgressSeededBeforeRunStarts(t *testing.T) {
	tasks := newFakeTaskStore()
	llm := &gatedLLM{release: make(chan struct{})}
	tele := agenttele.NewTelemetry(config.TelemetryConfig{})
	progress := core.NewProgressRegistry()
	exec := core.NewExecutor(llm, search.NewRegistry(3), tele, progress, tasks, nil,
		nil, core.FormatAcademic, 2)
	h := &ReportsHandler{
		Tasks:      tasks,
		Planner:    core.NewPlanner(llm, nil, 7),
		Exec:       exec,
		Progress:   progress,
		RunTimeout: time.Minute,
		Logger:     log.New(log.Writer(), "[REPORTS] ", log.LstdFlags),
	}
	e := setupEcho(h)

	req := httptest.NewRequest(http.MethodPost, "/api/generate_report", strings.NewReader(`{"prompt": "p"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}

	// the run is parked inside plan generation, so this poll observes
	// exactly what the handler seeded
	req = httptest.NewRequest(http.MethodGet, "/api/task_progress/"+resp["task_id"], nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var snapshot core.Progress
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("bad progress body: %v", err)
	}
	if len(snapshot.Steps) != len(core.DefaultPlanTitles) {
		t.Fatalf("seeded progress has %d steps, want %d", len(snapshot.Steps), len(core.DefaultPlanTitles))
	}
	for _, s := range snapshot.Steps {
		if s.Status != core.StepPending {
			t.Fatalf("seeded step %q = %q, want pending", s.Title, s.Status)
		}
	}

	close(llm.release)
	select {
	case <-tasks.settled:
	case <-time.After(5 * time.Second):
		t.Fatalf("run never settled after release")
	}
}

func TestTaskProgressUnknownRun(t *testing.T) {
	h, _ := newTestHandler(newFakeTaskStore())
	e := setupEcho(h)

	req := httptest.NewRequest(http.MethodGet, "/api/task_progress/ghost", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var progress core.Progress
	if err := json.Unmarshal(rec.Body.Bytes(), &progress); err != nil {
		t.Fatalf("bad progress body: %v", err)
	}
	if len(progress.Steps) != 0 {
		t.Fatalf("unknown run should report empty steps")
	}
}

func TestTaskStatusNotFound(t *testing.T) {
	h, _ := newTestHandler(newFakeTaskStore())
	e := setupEcho(h)

	req := httptest.NewRequest(http.MethodGet, "/api/task_status/ghost", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestChatHistoryListsCompletedTasks(t *testing.T) {
	tasks := newFakeTaskStore()
	_ = tasks.CreateTask(context.Background(), "t1", "Title One", "prompt one")
	_ = tasks.UpdateTask(context.Background(), "t1", core.TaskDone, &core.TaskResult{FinalReport: "# Report"})

	h, _ := newTestHandler(tasks)
	e := setupEcho(h)

	req := httptest.NewRequest(http.MethodGet, "/api/chat_history", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var listing struct {
		Tasks []store.TaskSummary `json:"tasks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("bad listing body: %v", err)
	}
	if len(listing.Tasks) != 1 || !listing.Tasks[0].HasReport {
		t.Fatalf("listing = %+v", listing.Tasks)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/chat_history/t1", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("report status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "# Report") {
		t.Fatalf("report body missing: %s", rec.Body.String())
	}
}

package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/arashpm/reporter/config"
	agentcore "github.com/arashpm/reporter/internal/agent/core"
	agenttele "github.com/arashpm/reporter/internal/agent/telemetry"
	"github.com/arashpm/reporter/internal/store"
	"github.com/arashpm/reporter/provider"
	"github.com/arashpm/reporter/session"
	"github.com/arashpm/reporter/tools/search"
	"github.com/arashpm/reporter/tools/search/arxiv"
	"github.com/arashpm/reporter/tools/search/tavily"
	"github.com/arashpm/reporter/tools/search/wikipedia"
)

func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	// apply migrations when postgres is configured
	if dsn, err := cfg.Storage.Postgres.DSN(); err == nil {
		if merr := Migrate("file://migrations", dsn, "up", 0); merr != nil {
			baseLogger.Printf("migrations: %v", merr)
		}
	}

	var rdb *redis.Client
	if cfg.Storage.Redis.Host != "" && cfg.Storage.Redis.Port != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
	}

	storeLogger := log.New(log.Writer(), "[STORE] ", log.LstdFlags)
	tasks, err := store.NewStorage(ctx, cfg.Storage, rdb, storeLogger)
	if err != nil {
		return err
	}

	var sessions session.Store
	switch session.StoreType(cfg.Session.Backend) {
	case session.RedisStore:
		if rdb == nil {
			return fmt.Errorf("session backend redis requires storage.redis host/port")
		}
		sessions = session.NewStore(session.RedisStore, rdb, cfg.Session.TTL)
	default:
		sessions = session.NewStore(session.InMemoryStore, nil, cfg.Session.TTL)
	}

	llm, err := provider.NewProvider(provider.Client(cfg.LLM.Provider), provider.Options{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return err
	}

	// tool registration order encodes the researcher's lookup policy:
	// background first, then web, then academic
	registry := search.NewRegistry(cfg.Search.MaxResults)
	if cfg.Search.WikiEnabled {
		registry.Register("wikipedia_search", "Look up background and definitions on Wikipedia.",
			wikipedia.Search{Client: &http.Client{Timeout: cfg.Search.Timeout}})
	}
	if cfg.Search.TavilyAPIKey != "" {
		registry.Register("tavily_search", "Search the web for current coverage of a query.",
			tavily.Search{ApiKey: cfg.Search.TavilyAPIKey, Client: &http.Client{Timeout: cfg.Search.Timeout}})
	}
	if cfg.Search.ArxivEnabled {
		registry.Register("arxiv_search", "Search arXiv for academic preprints matching a query.",
			arxiv.Search{Client: &http.Client{Timeout: cfg.Search.Timeout}})
	}

	tele := agenttele.NewTelemetry(cfg.Telemetry)
	progress := agentcore.NewProgressRegistry()
	stop := make(chan struct{})
	defer close(stop)
	progress.StartJanitor(cfg.Pipeline.ProgressRetention, stop)

	pipeLogger := log.New(log.Writer(), "[PIPE] ", log.LstdFlags)
	planner := agentcore.NewPlanner(llm, log.New(log.Writer(), "[PLAN] ", log.LstdFlags), cfg.Pipeline.MaxSteps)
	exec := agentcore.NewExecutor(llm, registry, tele, progress, tasks, sessions,
		pipeLogger, agentcore.NormalizeFormat(cfg.Pipeline.DefaultFormat), cfg.Pipeline.SectionWorkers)

	rh := &ReportsHandler{
		Tasks:      tasks,
		Sessions:   sessions,
		Planner:    planner,
		Exec:       exec,
		Progress:   progress,
		RunTimeout: cfg.Pipeline.RunTimeout,
		Logger:     log.New(log.Writer(), "[REPORTS] ", log.LstdFlags),
	}
	rh.Register(e.Group("/api"))

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10002"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

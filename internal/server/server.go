// Package server wires every MCP component and creates the server instance.
//
// This is the composition root: it builds the concrete collaborators from
// the loaded configuration and injects them into the tools, prompts and
// resources. No planning logic lives here.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/gemini-planner/internal/config"
	"github.com/HendryAvila/gemini-planner/internal/contexts"
	"github.com/HendryAvila/gemini-planner/internal/docs"
	"github.com/HendryAvila/gemini-planner/internal/generator"
	"github.com/HendryAvila/gemini-planner/internal/libraries"
	"github.com/HendryAvila/gemini-planner/internal/logging"
	"github.com/HendryAvila/gemini-planner/internal/metrics"
	"github.com/HendryAvila/gemini-planner/internal/notify"
	"github.com/HendryAvila/gemini-planner/internal/planner"
	"github.com/HendryAvila/gemini-planner/internal/prompts"
	"github.com/HendryAvila/gemini-planner/internal/resources"
	"github.com/HendryAvila/gemini-planner/internal/tools"
	"github.com/HendryAvila/gemini-planner/internal/versions"
)

// Name is the MCP server name.
const Name = "gemini-cli-planning-server"

// Version is set at build time via ldflags.
var Version = "dev"

// OpenStore opens the configured backend and wraps it in a Store.
func OpenStore(cfg config.StorageConfig, logger *slog.Logger, m *metrics.Metrics) (*contexts.Store, error) {
	var (
		backend contexts.Backend
		err     error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		backend, err = contexts.NewSQLiteBackend(cfg.Dir)
	case config.DriverFile, "":
		backend, err = contexts.NewFileBackend(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return contexts.NewStore(backend, logger, m), nil
}

// New creates the MCP server with every tool, prompt and resource
// registered. Background work (metrics listener, file watcher) stops when
// ctx is done. The returned cleanup function is always non-nil and must be
// called on shutdown.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server.MCPServer, func(), error) {
	logger = logging.OrDefault(logger)
	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// --- Create shared dependencies ---

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Warn("metrics listener stopped", "addr", cfg.Metrics.Addr, "err", err)
			}
		}()
	}

	store, err := OpenStore(cfg.Storage, logger, m)
	if err != nil {
		return nil, noop, fmt.Errorf("opening context store: %w", err)
	}
	cleanups = append(cleanups, func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing context store", "err", err)
		}
	})
	store.Subscribe(notify.LogObserver(logger))

	if cfg.Storage.Watch {
		if err := store.Watch(ctx); err != nil {
			logger.Warn("context watcher disabled", "err", err)
		}
	}

	// Event publishing is optional: if NATS is unreachable the server still
	// works, it just publishes nothing.
	if cfg.Events.NATSURL != "" {
		conn, err := notify.Connect(cfg.Events.NATSURL)
		if err != nil {
			logger.Warn("event publishing disabled", "err", err)
		} else {
			cleanups = append(cleanups, conn.Close)
			pub := notify.NewNATSPublisher(conn, cfg.Events.SubjectPrefix, logger)
			store.Subscribe(pub.Observe)
		}
	}

	gen := generator.New(generator.ConfigFrom(cfg.Gemini), logger, m)
	docsClient := docs.New(cfg.Docs.URL, cfg.Docs.Timeout, m)
	newResolver := versions.Factory(versions.Config{
		RegistryURL: cfg.Registry.URL,
		HTTP:        &http.Client{Timeout: cfg.Registry.Timeout},
		Logger:      logger,
		Metrics:     m,
	})
	plans := planner.New(gen, planner.Options{
		Versions: func() planner.VersionResolver { return newResolver() },
		Model:    cfg.Gemini.Model,
		Logger:   logger,
	})
	libs := libraries.NewResolver(gen)

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register tools ---

	genConn := tools.NewGeneratorConnectionTool(gen)
	s.AddTool(genConn.Definition(), genConn.Handle)

	docsConn := tools.NewDocsConnectionTool(docsClient, cfg.Docs.URL)
	s.AddTool(docsConn.Definition(), docsConn.Handle)

	createTool := tools.NewCreateContextTool(store)
	s.AddTool(createTool.Definition(), createTool.Handle)

	generateTool := tools.NewGeneratePlanTool(store, plans, docsClient, libs, logger)
	s.AddTool(generateTool.Definition(), generateTool.Handle)

	renderTool := tools.NewRenderChecklistTool(store)
	s.AddTool(renderTool.Definition(), renderTool.Handle)

	getTool := tools.NewGetContextTool(store)
	s.AddTool(getTool.Definition(), getTool.Handle)

	listTool := tools.NewListContextsTool(store)
	s.AddTool(listTool.Definition(), listTool.Handle)

	feedbackTool := tools.NewAddFeedbackTool(store)
	s.AddTool(feedbackTool.Definition(), feedbackTool.Handle)

	executionTool := tools.NewRecordExecutionTool(store)
	s.AddTool(executionTool.Definition(), executionTool.Handle)

	// --- Register prompts ---

	planPrompt := prompts.NewPlanProjectPrompt()
	s.AddPrompt(planPrompt.Definition(), planPrompt.Handle)

	statusPrompt := prompts.NewPlanStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(store)
	s.AddResource(resourceHandler.ContextsResource(), resourceHandler.HandleContexts)
	s.AddResourceTemplate(resourceHandler.ContextTemplate(), resourceHandler.HandleContext)

	logger.Info("planning server ready",
		"model", cfg.Gemini.Model,
		"cli", cfg.Gemini.CLIPath,
		"storage", cfg.Storage.Driver,
		"dir", cfg.Storage.Dir)
	return s, cleanup, nil
}

// Serve runs s over stdio until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// noop is the cleanup returned when construction fails early.
func noop() {}

// serverInstructions tells the assistant how to use the planning tools.
func serverInstructions() string {
	return `You have access to a planning server that uses the Gemini CLI to produce structured implementation plans.

## Workflow
1. create_project_context: record the project name, requirements and constraints. Returns a contextId.
2. generate_plan_with_gemini: pass the contextId (or projectName and requirements to create one on the fly)
   plus either a libraries array or a librariesPrompt. Library documentation is fetched and appended to the
   context's constraints under REFERENCE DOCS before planning.
3. render_plan_checklist: show the latest plan (or planIndex) as a plain-text checklist.
4. record_execution_session: after carrying out a plan, report files touched, issues and a success rate.
   Above 0.8 the project is complete; otherwise it moves to reviewing.
5. add_feedback: attach feedback. Unresolved planning feedback is fed into the next plan.

## Inspection
- get_project_context returns the full record; list_project_contexts lists all projects.
- test_gemini_connection and test_context7_connection check the external services.

## Rules
- Every tool returns JSON with a success flag; failures carry an error message.
- Plans are never executed by this server.`
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kazz187/agenthub/internal/agent"
	agentrepo "github.com/kazz187/agenthub/internal/agent/repositoryimpl"
	"github.com/kazz187/agenthub/internal/collab"
	"github.com/kazz187/agenthub/internal/config"
	"github.com/kazz187/agenthub/internal/contextstore"
	contextrepo "github.com/kazz187/agenthub/internal/contextstore/repositoryimpl"
	delegationrepo "github.com/kazz187/agenthub/internal/delegation/repositoryimpl"
	"github.com/kazz187/agenthub/internal/eventbus"
	featurerepo "github.com/kazz187/agenthub/internal/feature/repositoryimpl"
	"github.com/kazz187/agenthub/internal/hub"
	"github.com/kazz187/agenthub/internal/message"
	messagerepo "github.com/kazz187/agenthub/internal/message/repositoryimpl"
	subtaskrepo "github.com/kazz187/agenthub/internal/subtask/repositoryimpl"
	taskrepo "github.com/kazz187/agenthub/internal/task/repositoryimpl"
	tasklogrepo "github.com/kazz187/agenthub/internal/tasklog/repositoryimpl"
	"github.com/kazz187/agenthub/internal/watcher"
	"github.com/kazz187/agenthub/pkg/clog"
	"github.com/kazz187/agenthub/pkg/storage"
)

const version = "v0.1.0"

func main() {
	app := kingpin.New("agenthub-server", "Coordination hub for multiple coding agents, served over MCP stdio.")
	dataDir := app.Flag("data-dir", "Override the storage base directory.").String()
	logLevel := app.Flag("log-level", "Override the log level (debug, info, warn, error).").String()
	noWatch := app.Flag("no-watch", "Disable the data directory watcher.").Bool()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		env.StorageEnv.BaseDir = *dataDir
	}
	if *logLevel != "" {
		env.BaseEnv.LogLevel = *logLevel
	}

	// Setup logger. Stdout carries the MCP session, so logs go to stderr.
	level := env.SlogLevel()
	var handler slog.Handler
	if env.LogFormat == "text" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Setup storage
	var store storage.Storage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(ctx, env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		store, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
	}

	// Setup event bus
	bus := eventbus.New()

	// Setup repositories
	agentRepo := agentrepo.NewYAMLRepository(store)
	messageRepo := messagerepo.NewYAMLRepository(store)
	contextRepo := contextrepo.NewYAMLRepository(store)
	featureRepo := featurerepo.NewYAMLRepository(store)
	taskRepo := taskrepo.NewYAMLRepository(store)
	delegationRepo := delegationrepo.NewYAMLRepository(store)
	subtaskRepo := subtaskrepo.NewYAMLRepository(store)
	taskLogRepo := tasklogrepo.NewYAMLRepository(store)

	// Setup services
	agentService := agent.NewService(agentRepo, bus)
	messageService := message.NewService(messageRepo, bus)
	contextService := contextstore.NewService(contextRepo, bus)
	engine := collab.NewEngine(featureRepo, taskRepo, delegationRepo, subtaskRepo, agentRepo, messageRepo, bus)
	h := hub.New(agentService, messageService, contextService, engine, taskLogRepo, hub.StorageInfo{
		Type: env.StorageEnv.Type,
		Path: env.StorageEnv.BaseDir,
	})

	// Liveness sweep
	sweeper := agent.NewSweeper(agentRepo, bus, env.LifecycleEnv.SweepInterval, env.LifecycleEnv.StaleThreshold)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// Data directory watcher (local storage only)
	if env.StorageEnv.Type != "s3" && !*noWatch {
		w := watcher.New(env.StorageEnv.BaseDir, bus)
		if err := w.Start(ctx); err != nil {
			slog.Warn("failed to start data directory watcher", "error", err)
		}
	}

	// Status HTTP server
	statusServer := hub.NewStatusServer(env, h)
	go func() {
		if err := statusServer.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("status server error", "error", err)
		}
	}()

	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "agenthub",
			Title:   "AgentHub Coordination Server",
			Version: version,
		},
		&mcp.ServerOptions{
			Instructions: "Coordination hub for coding agents working across projects. Register with agenthub_register_agent first, then exchange messages (agenthub_send_message / agenthub_get_messages), share state (agenthub_set_context / agenthub_get_context), and coordinate work through features, tasks, delegations, and subtasks.",
		},
	)
	registerTools(server, h)

	slog.Info("starting agenthub", "version", version, "data_dir", env.StorageEnv.BaseDir, "storage", env.StorageEnv.Type)
	if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil && ctx.Err() == nil {
		slog.Error("mcp server error", "error", err)
		cancel()
	}

	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := statusServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("status server shutdown error", "error", err)
	}
}

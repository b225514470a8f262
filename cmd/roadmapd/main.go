// Command roadmapd wires every package in this module into a running
// process: it loads config, opens the metadata and checkpoint stores,
// connects the Redis event bus, picks an LLM provider to back the agent
// implementations, builds the graph.Engine, and runs crash recovery before
// settling in to await an external driver (an HTTP/API layer, a queue
// consumer — both out of scope here) that calls Executor.Execute and
// Executor.ResumeAfterHumanReview.
//
// It does not itself expose a network API; it demonstrates the wiring a
// real front end would sit on top of.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/roadmapforge/orchestrator/agent"
	"github.com/roadmapforge/orchestrator/brain"
	"github.com/roadmapforge/orchestrator/config"
	"github.com/roadmapforge/orchestrator/eventbus"
	"github.com/roadmapforge/orchestrator/exlog"
	"github.com/roadmapforge/orchestrator/fanout"
	"github.com/roadmapforge/orchestrator/graph"
	"github.com/roadmapforge/orchestrator/graph/emit"
	gstore "github.com/roadmapforge/orchestrator/graph/store"
	"github.com/roadmapforge/orchestrator/graph/model"
	"github.com/roadmapforge/orchestrator/graph/model/anthropic"
	"github.com/roadmapforge/orchestrator/graph/model/google"
	"github.com/roadmapforge/orchestrator/graph/model/openai"
	"github.com/roadmapforge/orchestrator/llmagent"
	"github.com/roadmapforge/orchestrator/repository"
	"github.com/roadmapforge/orchestrator/roadmap"
	"github.com/roadmapforge/orchestrator/workflow"
)

func configureLogger(dev bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if dev {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// selectChatModel picks the first configured provider, in a fixed
// preference order, and constructs its model.ChatModel. All text-producing
// agents (intent, curriculum, validator, edit-plan, editor, tutorial, quiz)
// share this one model; only the optional resource-search tool and cover
// image generator vary independently.
func selectChatModel(cfg *config.Config) (model.ChatModel, error) {
	for _, name := range []string{"anthropic", "openai", "google"} {
		p, ok := cfg.Providers[name]
		if !ok {
			continue
		}
		apiKey := os.Getenv(p.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("roadmapd: %s: environment variable %s is not set", name, p.APIKeyEnv)
		}
		switch name {
		case "anthropic":
			return anthropic.NewChatModel(apiKey, p.Model), nil
		case "openai":
			return openai.NewChatModel(apiKey, p.Model), nil
		case "google":
			return google.NewChatModel(apiKey, p.Model), nil
		}
	}
	return nil, fmt.Errorf("roadmapd: no provider configured in [providers.*]")
}

func openCheckpointStore(cfg *config.Config) (gstore.Store[roadmap.RoadmapState], error) {
	switch cfg.Storage.Backend {
	case "mysql":
		return gstore.NewMySQLStore[roadmap.RoadmapState](cfg.Storage.CheckpointMySQLDSN)
	default:
		return gstore.NewSQLiteStore[roadmap.RoadmapState](cfg.Storage.CheckpointSQLitePath)
	}
}

func main() {
	configPath := flag.String("config", "roadmapd.toml", "path to config file")
	dev := flag.Bool("dev", false, "use text log format (default is JSON)")
	flag.Parse()

	logger := configureLogger(*dev)
	slog.SetDefault(logger)

	mgr, err := config.LoadManager(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := mgr.Get()

	metaStore, err := repository.Open(config.ExpandHome(cfg.Storage.MetadataSQLitePath))
	if err != nil {
		logger.Error("failed to open metadata store", "error", err)
		os.Exit(1)
	}

	checkpointStore, err := openCheckpointStore(cfg)
	if err != nil {
		logger.Error("failed to open checkpoint store", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	bus := eventbus.New(rdb, logger.With("component", "eventbus")).WithSubscriberRateLimit(50, 100)

	execLog := exlog.New(repository.NewExecutionLogRepo(metaStore))
	b := brain.New(metaStore, bus, execLog)

	chat, err := selectChatModel(cfg)
	if err != nil {
		logger.Error("failed to select LLM provider", "error", err)
		os.Exit(1)
	}

	var objStore agent.ObjectStore = fsObjectStore{dir: config.ExpandHome("~/.roadmapd/objects")}

	var metrics *graph.PrometheusMetrics
	if cfg.Observability.MetricsEnabled {
		metrics = graph.NewPrometheusMetrics(prometheus.DefaultRegisterer)
	}

	workflowCfg := workflow.Config{
		Intent:     llmagent.IntentAgent{Chat: chat},
		Curriculum: llmagent.CurriculumAgent{Chat: chat},
		Validator:  llmagent.ValidatorAgent{Chat: chat},
		EditPlan:   llmagent.EditPlanAgent{Chat: chat},
		Editor:     llmagent.EditorAgent{Chat: chat},

		Brain:                   b,
		MaxRetry:                cfg.Engine.MaxRetry,
		SkipStructureValidation: cfg.Engine.SkipStructureValidation,
		SkipHumanReview:         cfg.Engine.SkipHumanReview,
		SkipContentFanOut:       cfg.Engine.SkipContentFanOut,

		Store:              checkpointStore,
		Emitter:            emit.NewLogEmitter(os.Stderr, cfg.Observability.EmitterLogJSON),
		MaxSteps:           cfg.Engine.MaxSteps,
		DefaultNodeTimeout: cfg.Engine.DefaultNodeTimeout.Duration,
		Metrics:            metrics,
	}

	if !cfg.Engine.SkipContentFanOut {
		workflowCfg.Scheduler = fanout.Scheduler{
			Brain:                b,
			Tutorial:             llmagent.TutorialAgent{Chat: chat},
			Resource:             llmagent.ResourceAgent{Chat: chat},
			Quiz:                 llmagent.QuizAgent{Chat: chat},
			Store:                objStore,
			ParallelConceptLimit: cfg.Engine.ParallelConceptLimit,
		}
	}

	exec, err := workflow.NewExecutor(workflowCfg)
	if err != nil {
		logger.Error("failed to build workflow engine", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recovery := &workflow.RecoveryManager{
		Brain:    b,
		Store:    checkpointStore,
		Executor: exec,
		MaxAge:   cfg.Recovery.MaxAge.Duration,
	}
	if err := recovery.Recover(ctx); err != nil {
		logger.Error("startup recovery failed", "error", err)
	}

	logger.Info("roadmapd running", "config", *configPath, "storage_backend", cfg.Storage.Backend)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGHUP:
			if err := mgr.Reload(*configPath); err != nil {
				logger.Error("config reload failed", "error", err)
				continue
			}
			logger.Info("config reloaded")
		default:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return
		}
	}
}

// fsObjectStore is a minimal filesystem-backed agent.ObjectStore for local
// development: each body is written under dir at the path named by its
// object key, and Get reads it back from that path. Production deployments
// are expected to supply their own agent.ObjectStore backed by whatever
// blob store they already run, per the object store's role as an external
// collaborator reached through a narrow interface.
type fsObjectStore struct {
	dir string
}

func (s fsObjectStore) Put(_ context.Context, key string, body []byte) (string, error) {
	path := filepath.Join(s.dir, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("fsObjectStore: mkdir: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("fsObjectStore: write: %w", err)
	}
	return "file://" + path, nil
}

func (s fsObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, key))
}

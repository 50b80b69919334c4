package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/assistant"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/audit"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/graph"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/graph/conversations"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/graph/nodes"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/guardrails"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/model"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/repo"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/retrieval"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/runner"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/tools"
	"github.com/MedBuddy-core-poc-v1/server/internal/core"
	"github.com/MedBuddy-core-poc-v1/server/internal/search"
	"github.com/MedBuddy-core-poc-v1/server/internal/server"
	"github.com/MedBuddy-core-poc-v1/server/internal/transcribe"
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
	pkgredis "github.com/MedBuddy-core-poc-v1/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the service,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis  pkgredis.Config
	Server model.ServerConfig

	// LLM provider
	LLM      model.LLMConfig
	Response model.ResponseModelConfig
	Refiner  model.RefinerModelConfig

	// Agent configs
	Agent      model.AgentConfig
	Knowledge  model.KnowledgeConfig
	Session    model.SessionConfig
	Audit      model.AuditConfig
	Search     model.SearchConfig
	Transcribe model.TranscribeConfig
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logx.Warn().Err(err).Msg("could not load .env file")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("failed to process environment config")
	}
	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment), Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build service")
	}
	defer a.close()

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logx.Error().Err(err).Msg("http server stopped")
		}
	case <-ctx.Done():
		logx.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("failed to shutdown http server gracefully")
	}
	logx.Info().Msg("medbuddy stopped")
}

type app struct {
	server *server.Server
	audit  *audit.Logger
	rdb    *redis.Client
}

func (a *app) close() {
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			logx.Warn().Err(err).Msg("failed to close audit log")
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

// build wires every collaborator from cfg. Redis is optional: without it the
// session store is in memory, audit goes to a file and retrieval is empty.
func build(ctx context.Context, cfg AppConfig) (*app, error) {
	a := &app{}

	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.rdb = rdb
		logx.Info().Msg("connected to Redis")
	}

	sessions, err := newSessionRepository(cfg.Session, a.rdb)
	if err != nil {
		return nil, err
	}
	sink, err := newAuditSink(cfg.Audit, a.rdb)
	if err != nil {
		return nil, err
	}
	a.audit = audit.NewLogger(sink)

	var genaiClient *genai.Client
	if cfg.LLM.GeminiAPIKey != "" {
		genaiClient, err = nodes.NewGeminiClient(ctx, cfg.LLM.GeminiAPIKey, cfg.LLM.GeminiBaseURL)
		if err != nil {
			return nil, err
		}
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		LLM:          cfg.LLM,
		Response:     cfg.Response,
		Refiner:      cfg.Refiner,
		GeminiClient: genaiClient,
	})
	if err != nil {
		return nil, fmt.Errorf("chat models: %w", err)
	}

	stores, err := newStores(ctx, cfg, a.rdb, genaiClient)
	if err != nil {
		return nil, err
	}

	serp := search.NewSerpClient(cfg.Search)
	var web tools.WebSearcher
	if serp.Enabled() {
		web = serp
	}
	backend, err := newToolBackend(cfg.Knowledge, stores, cfg.Agent.ToolTopK, web)
	if err != nil {
		return nil, err
	}

	output := guardrails.NewOutputGuardrail()
	agent, err := runner.New(cms.Response, tools.NewRouter(backend), output, runner.Config{
		MaxIterations: cfg.Agent.MaxIterations,
		ModelName:     cms.ResponseModelName,
	})
	if err != nil {
		return nil, fmt.Errorf("agent runner: %w", err)
	}

	doctor, err := graph.BuildDoctorChain(ctx, nodes.NewRefiner(cms.Refiner), stores, cfg.Agent.ChainTopK, cms)
	if err != nil {
		return nil, fmt.Errorf("doctor chain: %w", err)
	}
	patient, err := graph.BuildPatientChain(ctx, stores, cfg.Agent.ChainTopK, cms)
	if err != nil {
		return nil, fmt.Errorf("patient chain: %w", err)
	}

	svc, err := assistant.NewService(assistant.Config{
		Input:       guardrails.NewInputGuardrail(nil),
		Output:      output,
		Doctor:      doctor,
		Patient:     patient,
		Agent:       agent,
		Sessions:    conversations.NewMessagesManager(sessions, cfg.Session.MaxHistory),
		Audit:       a.audit,
		TurnTimeout: cfg.Agent.TurnTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("assistant: %w", err)
	}

	deps := server.Deps{Assistant: svc}
	if serp.Enabled() {
		deps.Search = serp
	}
	if genaiClient != nil {
		tr, err := transcribe.NewGeminiTranscriber(genaiClient, cfg.Transcribe)
		if err != nil {
			return nil, fmt.Errorf("transcriber: %w", err)
		}
		deps.Transcriber = tr
	}

	a.server, err = server.New(cfg.Server, deps)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newSessionRepository(cfg model.SessionConfig, rdb *redis.Client) (model.SessionRepository, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return repo.NewMemorySessionRepository(), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("SESSION_BACKEND=redis requires REDIS_URL")
		}
		return repo.NewRedisSessionRepository(rdb), nil
	default:
		return nil, fmt.Errorf("unsupported SESSION_BACKEND %q", cfg.Backend)
	}
}

func newAuditSink(cfg model.AuditConfig, rdb *redis.Client) (audit.Sink, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		return audit.NewFileSink(cfg.Path)
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("AUDIT_BACKEND=redis requires REDIS_URL")
		}
		return audit.NewRedisStreamSink(rdb, cfg.Stream), nil
	default:
		return nil, fmt.Errorf("unsupported AUDIT_BACKEND %q", cfg.Backend)
	}
}

func newStores(ctx context.Context, cfg AppConfig, rdb *redis.Client, genaiClient *genai.Client) (*retrieval.Stores, error) {
	if rdb == nil || genaiClient == nil {
		logx.Warn().Msg("knowledge bases disabled: REDIS_URL and GEMINI_API_KEY are both required")
		return retrieval.NewStores(map[retrieval.Database]retriever.Retriever{}, cfg.Knowledge.SearchTimeout), nil
	}
	embedder, err := retrieval.NewGeminiEmbedder(genaiClient, cfg.Knowledge.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	retrievers, err := retrieval.NewRedisRetrievers(ctx, rdb, retrieval.LayoutFromConfig(cfg.Knowledge), embedder, cfg.Agent.ToolTopK)
	if err != nil {
		return nil, err
	}
	return retrieval.NewStores(retrievers, cfg.Knowledge.SearchTimeout), nil
}

func newToolBackend(cfg model.KnowledgeConfig, stores *retrieval.Stores, k int, web tools.WebSearcher) (tools.Backend, error) {
	switch strings.ToLower(cfg.ToolBackend) {
	case "", "vector":
		return tools.NewVectorBackend(stores, k), nil
	case "research":
		return tools.NewResearchBackend(tools.DefaultEndpoints(), web, cfg.ResearchRPS, cfg.SearchTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported KNOWLEDGE_TOOL_BACKEND %q", cfg.ToolBackend)
	}
}

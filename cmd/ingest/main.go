package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/graph/nodes"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/model"
	"github.com/MedBuddy-core-poc-v1/server/internal/agent/retrieval"
	"github.com/MedBuddy-core-poc-v1/server/internal/core"
	"github.com/MedBuddy-core-poc-v1/server/internal/ingest"
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
	pkgredis "github.com/MedBuddy-core-poc-v1/server/pkg/redis"
)

// IngestAppConfig is everything cmd/ingest reads from the environment.
type IngestAppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	Redis     pkgredis.Config
	LLM       model.LLMConfig
	Knowledge model.KnowledgeConfig
	Ingest    model.IngestConfig
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logx.Warn().Err(err).Msg("could not load .env file")
	}

	var cfg IngestAppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("failed to process environment config")
	}
	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment), Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise Redis client")
	}
	defer rdb.Close()

	genaiClient, err := nodes.NewGeminiClient(ctx, cfg.LLM.GeminiAPIKey, cfg.LLM.GeminiBaseURL)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to create Gemini client")
	}
	embedder, err := retrieval.NewGeminiEmbedder(genaiClient, cfg.Knowledge.EmbeddingModel)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to create embedder")
	}

	ingester, err := retrieval.NewIngester(ctx, rdb, embedder, retrieval.IngestConfig{
		Layout:       retrieval.LayoutFromConfig(cfg.Knowledge),
		EmbeddingDim: cfg.Knowledge.EmbeddingDim,
		BatchSize:    cfg.Ingest.BatchSize,
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to create ingester")
	}

	total, err := ingest.Populate(ctx, ingester, cfg.Ingest.DataDir, ingest.DefaultSources, cfg.Ingest.Fresh)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to populate knowledge bases")
	}
	logx.Info().Int("chunks", total).Msg("all knowledge bases populated")

	if cfg.Ingest.Watch {
		watch(ctx, ingester, cfg.Ingest)
	}
}

// watch rebuilds a knowledge base whenever one of its files changes, until ctx is done.
func watch(ctx context.Context, ingester ingest.Indexer, cfg model.IngestConfig) {
	w, err := ingest.NewWatcher(ingest.DefaultSources, cfg.WatchDebounce)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to create knowledge watcher")
	}
	defer w.Close()

	changes, err := w.Watch(ctx, cfg.DataDir)
	if err != nil {
		logx.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("failed to watch data directory")
	}
	logx.Info().Str("dir", cfg.DataDir).Msg("watching knowledge files")

	for src := range changes {
		// The whole database is rebuilt so removed rows do not linger.
		if _, err := ingest.PopulateSource(ctx, ingester, cfg.DataDir, src, true); err != nil {
			logx.Error().Err(err).Str("database", string(src.Database)).Msg("failed to rebuild knowledge base")
		}
	}
}

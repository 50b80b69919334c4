package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	redisindexer "github.com/cloudwego/eino-ext/components/indexer/redis"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	errx "github.com/MedBuddy-core-poc-v1/server/internal/core/error"
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
)

const (
	defaultEmbeddingDim = 3072
	defaultBatchSize    = 10
)

// IngestConfig controls how knowledge files are chunked and indexed.
type IngestConfig struct {
	Layout       RedisLayout
	EmbeddingDim int
	BatchSize    int
	ChunkSize    int
	ChunkOverlap int
}

// Ingester loads documents into the RediSearch indexes read by
// NewRedisRetrievers.
type Ingester struct {
	client   *redis.Client
	layout   RedisLayout
	dim      int
	splitter *Splitter
	indexers map[Database]indexer.Indexer
}

func NewIngester(ctx context.Context, client *redis.Client, embedder embedding.Embedder, cfg IngestConfig) (*Ingester, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = defaultEmbeddingDim
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	in := &Ingester{
		client:   client,
		layout:   cfg.Layout,
		dim:      cfg.EmbeddingDim,
		splitter: NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		indexers: make(map[Database]indexer.Indexer, len(Order)),
	}
	for _, db := range Order {
		if cfg.Layout.Indexes[db] == "" {
			return nil, fmt.Errorf("no index configured for %s", db)
		}
		idx, err := redisindexer.NewIndexer(ctx, &redisindexer.IndexerConfig{
			Client:           client,
			KeyPrefix:        cfg.Layout.HashPrefix(db),
			DocumentToHashes: in.documentToHashes,
			BatchSize:        cfg.BatchSize,
			Embedding:        embedder,
		})
		if err != nil {
			return nil, fmt.Errorf("redis indexer %s: %w", db, err)
		}
		in.indexers[db] = idx
	}
	return in, nil
}

func (in *Ingester) documentToHashes(_ context.Context, doc *schema.Document) (*redisindexer.Hashes, error) {
	fields := map[string]redisindexer.FieldValue{
		FieldContent: {Value: doc.Content, EmbedKey: in.layout.vectorField()},
	}
	for _, key := range []string{MetaSource, MetaDatabase} {
		if v, ok := doc.MetaData[key].(string); ok && v != "" {
			fields[key] = redisindexer.FieldValue{Value: v}
		}
	}
	return &redisindexer.Hashes{Key: doc.ID, Field2Value: fields}, nil
}

// EnsureIndex creates db's vector index when it is missing. With fresh set an
// existing index is dropped together with its documents first.
func (in *Ingester) EnsureIndex(ctx context.Context, db Database, fresh bool) error {
	index := in.layout.Indexes[db]
	exists, err := in.indexExists(ctx, index)
	if err != nil {
		return err
	}
	if exists && fresh {
		if err := in.client.Do(ctx, "FT.DROPINDEX", index, "DD").Err(); err != nil {
			return errx.WrapRedis(fmt.Errorf("drop index %s: %w", index, err))
		}
		logx.Info().Str("index", index).Msg("dropped existing knowledge index")
		exists = false
	}
	if exists {
		return nil
	}

	args := []any{
		"FT.CREATE", index, "ON", "HASH", "PREFIX", "1", in.layout.HashPrefix(db),
		"SCHEMA",
		FieldContent, "TEXT",
		MetaSource, "TAG",
		MetaDatabase, "TAG",
		in.layout.vectorField(), "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32", "DIM", strconv.Itoa(in.dim), "DISTANCE_METRIC", "COSINE",
	}
	if err := in.client.Do(ctx, args...).Err(); err != nil {
		return errx.WrapRedis(fmt.Errorf("create index %s: %w", index, err))
	}
	logx.Info().Str("index", index).Int("dim", in.dim).Msg("created knowledge index")
	return nil
}

func (in *Ingester) indexExists(ctx context.Context, index string) (bool, error) {
	err := in.client.Do(ctx, "FT.INFO", index).Err()
	if err == nil {
		return true, nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unknown index") || strings.Contains(msg, "no such index") || strings.Contains(msg, "not found") {
		return false, nil
	}
	return false, errx.WrapRedis(fmt.Errorf("inspect index %s: %w", index, err))
}

// Ingest chunks docs and stores them under db. Document IDs are stable, so
// re-ingesting the same file overwrites its previous chunks.
func (in *Ingester) Ingest(ctx context.Context, db Database, docs []*schema.Document) (int, error) {
	idx, ok := in.indexers[db]
	if !ok {
		return 0, fmt.Errorf("no indexer for %s", db)
	}
	chunks := in.splitter.Split(docs)
	if len(chunks) == 0 {
		return 0, nil
	}
	for _, c := range chunks {
		c.MetaData[MetaDatabase] = string(db)
	}

	ids, err := idx.Store(ctx, chunks)
	if err != nil {
		logx.Error().Err(err).Str("database", string(db)).Int("chunks", len(chunks)).Msg("failed to index chunks")
		return 0, fmt.Errorf("index %s: %w", db, err)
	}
	logx.Info().Str("database", string(db)).Int("documents", len(docs)).Int("chunks", len(ids)).Msg("indexed knowledge chunks")
	return len(ids), nil
}

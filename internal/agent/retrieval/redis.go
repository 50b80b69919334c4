package retrieval

import (
	"context"
	"fmt"
	"strings"

	redisretriever "github.com/cloudwego/eino-ext/components/retriever/redis"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/redis/go-redis/v9"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/model"
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
)

// Hash fields written by the ingester and read back by the retrievers.
const (
	FieldContent          = "content"
	DefaultVectorField    = "vector_content"
	defaultIndexKeyPrefix = "medbuddy"
)

// Indexes maps each database to its RediSearch index name.
type Indexes map[Database]string

// RedisLayout describes how the knowledge bases are laid out in Redis.
type RedisLayout struct {
	Indexes     Indexes
	VectorField string
	// KeyPrefix namespaces document hashes; each database gets "<prefix>:<index>:".
	KeyPrefix string
}

// LayoutFromConfig maps the KNOWLEDGE_* settings onto a RedisLayout.
func LayoutFromConfig(cfg model.KnowledgeConfig) RedisLayout {
	return RedisLayout{
		Indexes: Indexes{
			DrugMaster:    cfg.DrugMaster,
			Interactions:  cfg.Interactions,
			Reimbursement: cfg.Reimbursement,
			Comparisons:   cfg.Comparisons,
		},
		VectorField: cfg.VectorField,
		KeyPrefix:   cfg.KeyPrefix,
	}
}

func (l RedisLayout) vectorField() string {
	if l.VectorField == "" {
		return DefaultVectorField
	}
	return l.VectorField
}

// HashPrefix returns the key prefix of db's document hashes.
func (l RedisLayout) HashPrefix(db Database) string {
	prefix := l.KeyPrefix
	if prefix == "" {
		prefix = defaultIndexKeyPrefix
	}
	return fmt.Sprintf("%s:%s:", strings.TrimSuffix(prefix, ":"), l.Indexes[db])
}

// NewRedisRetrievers builds one vector retriever per database over a shared
// Redis client. topK is the default; callers override it per search.
func NewRedisRetrievers(ctx context.Context, client *redis.Client, layout RedisLayout, embedder embedding.Embedder, topK int) (map[Database]retriever.Retriever, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}

	out := make(map[Database]retriever.Retriever, len(Order))
	for _, db := range Order {
		index, ok := layout.Indexes[db]
		if !ok || index == "" {
			return nil, fmt.Errorf("no index configured for %s", db)
		}
		r, err := redisretriever.NewRetriever(ctx, &redisretriever.RetrieverConfig{
			Client:       client,
			Index:        index,
			VectorField:  layout.vectorField(),
			ReturnFields: []string{FieldContent, MetaSource, MetaDatabase},
			TopK:         topK,
			Embedding:    embedder,
		})
		if err != nil {
			logx.Error().Err(err).Str("database", string(db)).Str("index", index).Msg("failed to create redis retriever")
			return nil, fmt.Errorf("redis retriever %s: %w", db, err)
		}
		out[db] = r
	}
	return out, nil
}

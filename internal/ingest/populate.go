// Package ingest populates the knowledge bases from the data directory and
// keeps them in step with it.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/retrieval"
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
)

// Source is one knowledge base and its files, in load order.
type Source struct {
	Database retrieval.Database
	Files    []string
}

// DefaultSources is the data directory layout the service ships with.
var DefaultSources = []Source{
	{Database: retrieval.DrugMaster, Files: []string{"drugs_master.json"}},
	{Database: retrieval.Interactions, Files: []string{"interactions.json"}},
	{Database: retrieval.Reimbursement, Files: []string{"reimbursement.json", "jan_aushadhi_prices.csv"}},
	{Database: retrieval.Comparisons, Files: []string{"comparisons.json"}},
}

// Indexer is the write side of the knowledge bases.
type Indexer interface {
	EnsureIndex(ctx context.Context, db retrieval.Database, fresh bool) error
	Ingest(ctx context.Context, db retrieval.Database, docs []*schema.Document) (int, error)
}

// Populate loads every source under dir and returns the number of stored chunks.
func Populate(ctx context.Context, idx Indexer, dir string, sources []Source, fresh bool) (int, error) {
	total := 0
	for _, src := range sources {
		n, err := PopulateSource(ctx, idx, dir, src, fresh)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// PopulateSource prepares the index of one database and loads its files.
// Missing files are skipped so a partial data directory still produces usable indexes.
func PopulateSource(ctx context.Context, idx Indexer, dir string, src Source, fresh bool) (int, error) {
	if err := idx.EnsureIndex(ctx, src.Database, fresh); err != nil {
		return 0, fmt.Errorf("prepare %s: %w", src.Database, err)
	}

	total := 0
	for _, name := range src.Files {
		path := filepath.Join(dir, name)
		docs, err := Load(path, src.Database)
		if errors.Is(err, os.ErrNotExist) {
			logx.Warn().Str("path", path).Msg("knowledge file not found, skipping")
			continue
		}
		if err != nil {
			return total, fmt.Errorf("load %s: %w", path, err)
		}
		n, err := idx.Ingest(ctx, src.Database, docs)
		if err != nil {
			return total, fmt.Errorf("ingest %s: %w", path, err)
		}
		total += n
	}
	logx.Info().Str("database", string(src.Database)).Int("chunks", total).Msg("knowledge base populated")
	return total, nil
}

// Load picks the loader by file extension.
func Load(path string, db retrieval.Database) ([]*schema.Document, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return retrieval.LoadCSVFile(path, db)
	}
	return retrieval.LoadJSONFile(path, db)
}

package retrieval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
	"github.com/MedBuddy-core-poc-v1/server/pkg/metrics"
)

// Database identifies one knowledge base.
type Database string

const (
	DrugMaster    Database = "drugs_master"
	Interactions  Database = "interactions"
	Reimbursement Database = "reimbursement"
	Comparisons   Database = "comparisons"
)

// Order is the fixed section order of merged context.
var Order = []Database{DrugMaster, Interactions, Reimbursement, Comparisons}

// MetaDatabase is the document metadata key carrying the source database.
const MetaDatabase = "database"

const defaultSearchTimeout = 15 * time.Second

// Results groups retrieved documents by source database.
type Results map[Database][]*schema.Document

// Empty reports whether no database returned any document.
func (r Results) Empty() bool {
	return r.Count() == 0
}

// Count returns the total number of documents.
func (r Results) Count() int {
	n := 0
	for _, docs := range r {
		n += len(docs)
	}
	return n
}

// Documents flattens the results in Order.
func (r Results) Documents() []*schema.Document {
	out := make([]*schema.Document, 0, r.Count())
	for _, db := range Order {
		out = append(out, r[db]...)
	}
	return out
}

// Stores runs similarity searches against the configured knowledge bases.
type Stores struct {
	retrievers map[Database]retriever.Retriever
	timeout    time.Duration
}

// NewStores wraps one retriever per database. Databases without a retriever
// always return an empty result. A non-positive timeout selects 15s.
func NewStores(retrievers map[Database]retriever.Retriever, timeout time.Duration) *Stores {
	if timeout <= 0 {
		timeout = defaultSearchTimeout
	}
	rs := make(map[Database]retriever.Retriever, len(retrievers))
	for db, r := range retrievers {
		if r != nil {
			rs[db] = r
		}
	}
	return &Stores{retrievers: rs, timeout: timeout}
}

// Search queries one database for the top k documents. Each returned document
// carries MetaDatabase. A missing match set is not an error.
func (s *Stores) Search(ctx context.Context, db Database, query string, k int) ([]*schema.Document, error) {
	r, ok := s.retrievers[db]
	if !ok {
		return nil, fmt.Errorf("no retriever configured for %s", db)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		docs []*schema.Document
		err  error
	}
	// buffered so an abandoned search can still deliver and exit
	done := make(chan result, 1)
	go func() {
		docs, err := r.Retrieve(ctx, query, retriever.WithTopK(k))
		done <- result{docs: docs, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, fmt.Errorf("search %s: %w", db, ctx.Err())
	}
	if res.err != nil {
		return nil, fmt.Errorf("search %s: %w", db, res.err)
	}

	out := make([]*schema.Document, 0, len(res.docs))
	for _, d := range res.docs {
		if d == nil {
			continue
		}
		if k > 0 && len(out) == k {
			break
		}
		out = append(out, tagDocument(d, db))
	}
	return out, nil
}

// FanOut searches every database in Order concurrently and joins before
// returning. A failed or timed out database contributes an empty set.
func (s *Stores) FanOut(ctx context.Context, query string, k int) Results {
	found := make([][]*schema.Document, len(Order))

	var wg sync.WaitGroup
	for i, db := range Order {
		wg.Add(1)
		go func(i int, db Database) {
			defer wg.Done()
			docs, err := s.Search(ctx, db, query, k)
			if err != nil {
				metrics.RetrievalFailures.WithLabelValues(string(db)).Inc()
				logx.Warn().Err(err).Str("database", string(db)).Msg("knowledge base search degraded to empty result")
				return
			}
			found[i] = docs
		}(i, db)
	}
	wg.Wait()

	results := make(Results, len(Order))
	for i, db := range Order {
		results[db] = found[i]
	}
	logx.Debug().Str("query", query).Int("k", k).Int("documents", results.Count()).Msg("fan-out retrieval finished")
	return results
}

// tagDocument copies d and records its source database in the metadata.
func tagDocument(d *schema.Document, db Database) *schema.Document {
	meta := make(map[string]any, len(d.MetaData)+1)
	for k, v := range d.MetaData {
		meta[k] = v
	}
	meta[MetaDatabase] = string(db)
	return &schema.Document{ID: d.ID, Content: d.Content, MetaData: meta}
}

// DatabaseOf returns the source database recorded on d.
func DatabaseOf(d *schema.Document) Database {
	if d == nil || d.MetaData == nil {
		return ""
	}
	v, _ := d.MetaData[MetaDatabase].(string)
	return Database(v)
}

package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/retrieval"
)

type fakeIndexer struct {
	prepared []retrieval.Database
	fresh    []bool
	docs     map[retrieval.Database][]*schema.Document
	failOn   retrieval.Database
}

func (f *fakeIndexer) EnsureIndex(_ context.Context, db retrieval.Database, fresh bool) error {
	if db == f.failOn {
		return errors.New("FT.CREATE failed")
	}
	f.prepared = append(f.prepared, db)
	f.fresh = append(f.fresh, fresh)
	return nil
}

func (f *fakeIndexer) Ingest(_ context.Context, db retrieval.Database, docs []*schema.Document) (int, error) {
	if f.docs == nil {
		f.docs = map[retrieval.Database][]*schema.Document{}
	}
	f.docs[db] = append(f.docs[db], docs...)
	return len(docs), nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestPopulateLoadsPresentFilesAndSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "drugs_master.json", `[{"name":"Metformin"},{"name":"Amlodipine"}]`)
	writeFile(t, dir, "jan_aushadhi_prices.csv", "drug,mrp\nMetformin 500mg,12.5\n")

	idx := &fakeIndexer{}
	n, err := Populate(context.Background(), idx, dir, DefaultSources, true)

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []retrieval.Database{retrieval.DrugMaster, retrieval.Interactions, retrieval.Reimbursement, retrieval.Comparisons}, idx.prepared)
	assert.Equal(t, []bool{true, true, true, true}, idx.fresh)
	assert.Len(t, idx.docs[retrieval.DrugMaster], 2)
	require.Len(t, idx.docs[retrieval.Reimbursement], 1)
	assert.Contains(t, idx.docs[retrieval.Reimbursement][0].Content, "mrp: 12.5")
}

func TestPopulateStopsOnIndexError(t *testing.T) {
	idx := &fakeIndexer{failOn: retrieval.Interactions}
	_, err := Populate(context.Background(), idx, t.TempDir(), DefaultSources, false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), string(retrieval.Interactions))
	assert.Equal(t, []retrieval.Database{retrieval.DrugMaster}, idx.prepared)
}

func TestPopulateReportsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "comparisons.json", `{"broken":`)

	_, err := PopulateSource(context.Background(), &fakeIndexer{}, dir, DefaultSources[3], true)
	assert.Error(t, err)
}

func TestWatcherEmitsChangedSourceOnce(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(DefaultSources, 150*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := w.Watch(ctx, dir)
	require.NoError(t, err)

	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, "reimbursement.json", `[]`)
	writeFile(t, dir, "jan_aushadhi_prices.csv", "drug\n")

	select {
	case src := <-changes:
		assert.Equal(t, retrieval.Reimbursement, src.Database)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change")
	}

	select {
	case src := <-changes:
		t.Fatalf("unexpected second change for %s", src.Database)
	case <-time.After(400 * time.Millisecond):
	}

	cancel()
	for range changes {
	}
}

package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSinkAppendsOneLinePerEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit_log.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	logger := NewLogger(sink)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, logger.Record(context.Background(), Entry{SessionID: "s1", Mode: "agent", Status: "allowed"}))
		}()
	}
	wg.Wait()
	require.NoError(t, logger.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	ids := map[string]struct{}{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		assert.Equal(t, "s1", e.SessionID)
		assert.Equal(t, time.UTC, e.Timestamp.Location())
		assert.NotNil(t, e.ToolCalls)
		ids[e.ID] = struct{}{}
	}
	assert.Len(t, ids, 20)
}

func TestRecordKeepsGivenFields(t *testing.T) {
	sink := &captureSink{}
	logger := NewLogger(sink)
	ts := time.Date(2026, 1, 2, 15, 4, 5, 0, time.FixedZone("IST", 5*3600+1800))

	require.NoError(t, logger.Record(context.Background(), Entry{ID: "fixed", Timestamp: ts, Outcome: "exhausted"}))

	var e Entry
	require.NoError(t, json.Unmarshal(sink.lines[0], &e))
	assert.Equal(t, "fixed", e.ID)
	assert.True(t, ts.Equal(e.Timestamp))
	assert.Equal(t, "exhausted", e.Outcome)
}

func TestRecordSinkFailure(t *testing.T) {
	logger := NewLogger(&captureSink{err: errors.New("disk full")})
	assert.Error(t, logger.Record(context.Background(), Entry{}))
}

type captureSink struct {
	lines [][]byte
	err   error
}

func (c *captureSink) Write(_ context.Context, line []byte) error {
	if c.err != nil {
		return c.err
	}
	c.lines = append(c.lines, line)
	return nil
}

func (c *captureSink) Close() error { return nil }

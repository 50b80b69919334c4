package repo

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionRepository(t *testing.T) {
	ctx := context.Background()
	r := NewMemorySessionRepository()

	s, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, s.Messages)

	require.NoError(t, r.Append(ctx, "s1", schema.UserMessage("q"), nil, schema.AssistantMessage("a", nil)))
	n, err := r.Count(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	s, err = r.Get(ctx, "s1")
	require.NoError(t, err)
	s.Messages[0] = schema.UserMessage("mutated")
	s, _ = r.Get(ctx, "s1")
	assert.Equal(t, "q", s.Messages[0].Content)

	n, _ = r.Count(ctx, "other")
	assert.Zero(t, n)

	require.NoError(t, r.Clear(ctx, "s1"))
	n, _ = r.Count(ctx, "s1")
	assert.Zero(t, n)
}

func TestMemorySessionRepositoryIsolatesSessions(t *testing.T) {
	ctx := context.Background()
	r := NewMemorySessionRepository()

	require.NoError(t, r.Append(ctx, "doctor-a", schema.UserMessage("metformin dose?"), schema.AssistantMessage("500mg twice daily", nil)))
	require.NoError(t, r.Append(ctx, "doctor-b", schema.UserMessage("warfarin with aspirin?"), schema.AssistantMessage("bleeding risk", nil)))
	require.NoError(t, r.Append(ctx, "doctor-a", schema.UserMessage("in CKD?"), schema.AssistantMessage("adjust for eGFR", nil)))

	contents := func(id string) []string {
		s, err := r.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, s.ID)
		out := make([]string, 0, len(s.Messages))
		for _, m := range s.Messages {
			out = append(out, m.Content)
		}
		return out
	}
	assert.Equal(t, []string{"metformin dose?", "500mg twice daily", "in CKD?", "adjust for eGFR"}, contents("doctor-a"))
	assert.Equal(t, []string{"warfarin with aspirin?", "bleeding risk"}, contents("doctor-b"))

	require.NoError(t, r.Clear(ctx, "doctor-a"))
	assert.Empty(t, contents("doctor-a"))
	assert.Equal(t, []string{"warfarin with aspirin?", "bleeding risk"}, contents("doctor-b"))
}

func TestMemorySessionRepositoryConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	r := NewMemorySessionRepository()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Append(ctx, "shared", schema.UserMessage(fmt.Sprint(i)), schema.AssistantMessage(fmt.Sprint(i), nil))
		}(i)
	}
	wg.Wait()

	s, err := r.Get(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, s.Messages, 100)
	// turns never interleave
	for i := 0; i < len(s.Messages); i += 2 {
		assert.Equal(t, schema.User, s.Messages[i].Role)
		assert.Equal(t, s.Messages[i].Content, s.Messages[i+1].Content)
	}
}

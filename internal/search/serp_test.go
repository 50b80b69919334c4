package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/model"
)

func TestSerpClientSearch(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		got = map[string]string{}
		for k := range r.URL.Query() {
			got[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"organic_results": []map[string]any{
				{"title": "Metformin - 1mg", "link": "https://1mg.com/m", "snippet": "Metformin is...", "source": "1mg"},
				{"title": "Metformin - NHP", "link": "https://nhp.gov.in/m", "snippet": "About metformin"},
				{"title": "third", "link": "https://x"},
			},
		})
	}))
	defer srv.Close()

	c := NewSerpClient(model.SearchConfig{SerpAPIKey: "k", BaseURL: srv.URL, Timeout: time.Second, Results: 7})
	results, err := c.Search(context.Background(), "metformin price", 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "Metformin - 1mg", results[0].Title)
	assert.Equal(t, "1mg", results[0].Source)
	assert.Equal(t, "google", got["engine"])
	assert.Equal(t, "metformin price", got["q"])
	assert.Equal(t, "k", got["api_key"])
	assert.Equal(t, "2", got["num"])
	assert.Equal(t, "in", got["gl"])
	assert.Equal(t, "en", got["hl"])
}

func TestSerpClientNotConfigured(t *testing.T) {
	c := NewSerpClient(model.SearchConfig{BaseURL: "http://127.0.0.1:1"})
	assert.False(t, c.Enabled())

	_, err := c.Search(context.Background(), "q", 0)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSerpClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid API key"}`))
	}))
	defer srv.Close()

	c := NewSerpClient(model.SearchConfig{SerpAPIKey: "bad", BaseURL: srv.URL, Timeout: time.Second})
	_, err := c.Search(context.Background(), "q", 3)
	assert.Error(t, err)
}

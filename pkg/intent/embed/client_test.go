package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/embeddings", r.URL.Path)

		var req EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "hello", req.Prompt)

		_ = json.NewEncoder(w).Encode(EmbeddingResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	vec, err := client.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
}

func TestEmbedErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestEmbedEmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(EmbeddingResponse{})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.Embed(context.Background(), "hello")
	require.Error(t, err)
}

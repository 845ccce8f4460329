package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/poiesic/tenderscope/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions"`
}

type embeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// newEmbeddingServer answers /v1/embeddings with vectors of length dim whose
// first component is the input's position within the request.
func newEmbeddingServer(t *testing.T, dim int, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		requests.Add(1)

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]embeddingData, len(req.Input))
		for i := range req.Input {
			vec := make([]float32, dim)
			vec[0] = float32(i)
			data[i] = embeddingData{Object: "embedding", Embedding: vec, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedder_EmbedTexts(t *testing.T) {
	var requests atomic.Int32
	srv := newEmbeddingServer(t, 4, &requests)

	cfg := ai.NewConfig(
		ai.WithHost(srv.URL),
		ai.WithModel("embeddinggemma"),
		ai.WithDimension(4),
		ai.WithMaxBatchSize(2),
	)
	embedder, err := NewEmbedder(cfg)
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, v := range vectors {
		assert.Len(t, v, 4)
	}
	// Three inputs with a batch size of two take two requests.
	assert.Equal(t, int32(2), requests.Load())

	single, err := embedder.EmbedText(context.Background(), "a")
	require.NoError(t, err)
	assert.Len(t, single, 4)
}

func TestEmbedder_WrongDimension(t *testing.T) {
	var requests atomic.Int32
	srv := newEmbeddingServer(t, 3, &requests)

	embedder, err := NewEmbedder(ai.NewConfig(
		ai.WithHost(srv.URL),
		ai.WithModel("embeddinggemma"),
		ai.WithDimension(4),
	))
	require.NoError(t, err)

	// Batches pass vectors through so one bad input does not sink its peers.
	vectors, err := embedder.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], 3)

	_, err = embedder.EmbedText(context.Background(), "a")
	assert.ErrorIs(t, err, ai.ErrUnexpectedDimension)
}

func TestEmbedder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	embedder, err := NewEmbedder(ai.NewConfig(
		ai.WithHost(srv.URL),
		ai.WithModel("embeddinggemma"),
		ai.WithDimension(4),
	))
	require.NoError(t, err)

	_, err = embedder.EmbedTexts(context.Background(), []string{"a"})
	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	provider, err := NewProvider(ai.NewConfig(ai.WithDimension(1536)))
	require.NoError(t, err)
	defer provider.Close()

	assert.Equal(t, 1536, provider.Dimension())
	assert.NotNil(t, provider.Embedder())

	_, err = NewProvider(&ai.Config{})
	assert.Error(t, err)
}

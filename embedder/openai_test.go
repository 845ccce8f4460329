package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/poiesic/tenderscope/ai"
	"github.com/poiesic/tenderscope/ai/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newShortVectorServer speaks the OpenAI embeddings API and answers inputs
// mentioning "pump" with one value too few.
func newShortVectorServer(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]any, len(req.Input))
		for i, text := range req.Input {
			n := testDim
			if strings.Contains(strings.ToLower(text), "pump") {
				n = testDim - 1
			}
			vec := make([]float32, n)
			vec[0] = 1
			data[i] = map[string]any{"object": "embedding", "embedding": vec, "index": i}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBatchEmbedder_OpenAIShortVectorSkipsOnlyThatRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	pump := record("A", nil)
	pump.Title = "Repair of water pump"
	putRecords(t, store, pump, record("B", nil), record("C", nil))

	var requests atomic.Int32
	srv := newShortVectorServer(t, &requests)
	emb, err := openai.NewEmbedder(ai.NewConfig(
		ai.WithHost(srv.URL),
		ai.WithModel("embeddinggemma"),
		ai.WithDimension(testDim),
	))
	require.NoError(t, err)

	b := newTestEmbedder(t, store, emb, &Config{BatchSize: 10, MaxBatches: 1, MaxRetries: 3})
	result, err := b.RunWith(ctx, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Before)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.After)
	// The short answer is not worth another request.
	assert.Equal(t, int32(1), requests.Load())

	_, err = store.Vectors().GetVector(ctx, "A")
	assert.Error(t, err)
	for _, id := range []string{"B", "C"} {
		v, err := store.Vectors().GetVector(ctx, id)
		require.NoError(t, err)
		assert.Len(t, v.Values, testDim)
	}
}

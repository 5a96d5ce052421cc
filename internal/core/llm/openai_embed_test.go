package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIEmbedder_EmbedTexts(t *testing.T) {
	var got struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		data := make([]map[string]any, len(got.Input))
		for i := range got.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float32{float32(i), 0.5, 1}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  got.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 4, "total_tokens": 4},
		})
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("", srv.URL, "nomic-embed-text", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, e.Dimension())

	out, err := e.EmbedTexts(context.Background(), []string{"first\nline", "second"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []float32{0, 0.5, 1}, out[0])
	assert.Equal(t, []float32{1, 0.5, 1}, out[1])

	assert.Equal(t, "nomic-embed-text", got.Model)
	assert.Equal(t, []string{"first line", "second"}, got.Input)
}

func TestOpenAIEmbedder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("key", srv.URL, "m", 3)
	require.NoError(t, err)

	_, err = e.EmbedTexts(context.Background(), []string{"x"})
	assert.Error(t, err)
}

func TestNewEmbedders_RejectBadDimension(t *testing.T) {
	_, err := NewOpenAIEmbedder("", "", "m", 0)
	assert.Error(t, err)

	_, err = NewGeminiEmbedder(context.Background(), "key", "", -1)
	assert.Error(t, err)

	_, err = NewGeminiEmbedder(context.Background(), "", "", 768)
	assert.Error(t, err)
}

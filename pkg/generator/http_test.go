package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPBackendGenerate(t *testing.T) {
	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotBody, _ = req["model"].(string)
		assert.Equal(t, float64(0), req["temperature"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"action":"READ"}`}},
			},
		})
	}))
	defer srv.Close()

	b := NewHTTPBackend("local", srv.URL, "secret-key", "test-model")
	assert.Equal(t, "local", b.Name())

	text, err := b.Generate(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"action":"READ"}`, text)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, "test-model", gotBody)
}

func TestHTTPBackendNoAuthHeaderWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	b := NewHTTPBackend("local", srv.URL, "", "test-model")
	_, err := b.Generate(context.Background(), "p")
	require.NoError(t, err)
}

func TestHTTPBackendNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := NewHTTPBackend("local", srv.URL, "", "m")
	_, err := b.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPBackendEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	b := NewHTTPBackend("local", srv.URL, "", "m")
	_, err := b.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty choices")
}

func TestHTTPBackendCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewHTTPBackend("local", srv.URL, "", "m")
	_, err := b.Generate(ctx, "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStaticBackendHonoursContext(t *testing.T) {
	b := NewStaticBackend("canned", func(ctx context.Context, prompt string) (string, error) {
		return "response to " + prompt, nil
	})

	text, err := b.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "response to hello", text)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Generate(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
}

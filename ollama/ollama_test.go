package ollama_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notewell/inference"
	"github.com/notewell/inference/ollama"
)

func TestClient_Generate(t *testing.T) {
	t.Parallel()

	t.Run("successful generation", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/api/generate", r.URL.Path)

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "screen this note", body["prompt"])
			assert.Equal(t, false, body["stream"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"model": "llama3.1:8b",
				"response": "LOW risk",
				"done": true,
				"prompt_eval_count": 42,
				"eval_count": 7
			}`))
		}))
		defer srv.Close()

		c := ollama.New(ollama.WithBaseURL(srv.URL))
		res, err := c.Generate(context.Background(), inference.Request{Prompt: "screen this note"})
		require.NoError(t, err)

		assert.Equal(t, "LOW risk", res.Text)
		assert.Equal(t, ollama.Name, res.Backend)
		assert.Equal(t, 42, res.Usage.InputTokens)
		assert.Equal(t, 7, res.Usage.OutputTokens)
		assert.Positive(t, res.Duration)
	})

	t.Run("server error maps to ErrGeneration", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": "model 'missing' not found"}`))
		}))
		defer srv.Close()

		c := ollama.New(ollama.WithBaseURL(srv.URL))
		_, err := c.Generate(context.Background(), inference.Request{Prompt: "p"})
		require.Error(t, err)
		assert.ErrorIs(t, err, inference.ErrGeneration)
		assert.Contains(t, err.Error(), "model 'missing' not found")
	})

	t.Run("unreachable server maps to ErrUnavailable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close() // reject all connections

		c := ollama.New(ollama.WithBaseURL(srv.URL))
		_, err := c.Generate(context.Background(), inference.Request{Prompt: "p"})
		assert.ErrorIs(t, err, inference.ErrUnavailable)
	})

	t.Run("invalid request fails before any call", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("no request expected")
		}))
		defer srv.Close()

		c := ollama.New(ollama.WithBaseURL(srv.URL))
		_, err := c.Generate(context.Background(), inference.Request{})
		assert.ErrorIs(t, err, inference.ErrValidation)
	})
}

func TestClient_GenerateStream(t *testing.T) {
	t.Parallel()

	t.Run("assembles chunks from NDJSON lines", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/x-ndjson")
			_, _ = w.Write([]byte(
				`{"response": "LOW ", "done": false}` + "\n" +
					`{"response": "risk", "done": false}` + "\n" +
					`{"response": "", "done": true, "eval_count": 2}` + "\n"))
		}))
		defer srv.Close()

		c := ollama.New(ollama.WithBaseURL(srv.URL))
		s, err := c.GenerateStream(context.Background(), inference.Request{Prompt: "p"})
		require.NoError(t, err)
		defer s.Close()

		var got string
		for {
			chunk, err := s.Next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			got += chunk.Text
		}
		assert.Equal(t, "LOW risk", got)
	})

	t.Run("truncated stream is an error, not EOF", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"response": "partial", "done": false}` + "\n"))
		}))
		defer srv.Close()

		c := ollama.New(ollama.WithBaseURL(srv.URL))
		s, err := c.GenerateStream(context.Background(), inference.Request{Prompt: "p"})
		require.NoError(t, err)
		defer s.Close()

		_, err = s.Next()
		require.NoError(t, err)

		_, err = s.Next()
		assert.ErrorIs(t, err, inference.ErrGeneration)
	})
}

func TestClient_Available(t *testing.T) {
	t.Parallel()

	t.Run("true when version endpoint answers", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/version", r.URL.Path)
			_, _ = w.Write([]byte(`{"version": "0.5.1"}`))
		}))
		defer srv.Close()

		c := ollama.New(ollama.WithBaseURL(srv.URL))
		assert.True(t, c.Available(context.Background()))
	})

	t.Run("false rather than an error when down", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close()

		c := ollama.New(ollama.WithBaseURL(srv.URL))
		assert.NotPanics(t, func() {
			assert.False(t, c.Available(context.Background()))
		})
	})
}

func TestClient_Status(t *testing.T) {
	t.Parallel()

	t.Run("carries the last call error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": "out of memory"}`))
		}))
		defer srv.Close()

		c := ollama.New(ollama.WithBaseURL(srv.URL))
		_, err := c.Generate(context.Background(), inference.Request{Prompt: "p"})
		require.Error(t, err)

		st := c.Status()
		assert.Equal(t, ollama.Name, st.Name)
		assert.True(t, st.Available, "an HTTP error still means the server answered")
		assert.False(t, st.Metered)
		assert.Contains(t, st.LastError, "out of memory")
	})

	t.Run("performs no network round trips", func(t *testing.T) {
		t.Parallel()
		var hits int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
			_, _ = w.Write([]byte(`{"version": "0.5.1"}`))
		}))
		defer srv.Close()

		c := ollama.New(ollama.WithBaseURL(srv.URL))
		st := c.Status()
		st = c.Status()
		assert.True(t, st.Available)
		assert.Zero(t, hits, "status must report cached state, not probe")
	})

	t.Run("reflects the last known reachability", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close() // reject all connections

		c := ollama.New(ollama.WithBaseURL(srv.URL))
		_, err := c.Generate(context.Background(), inference.Request{Prompt: "p"})
		require.Error(t, err)
		assert.False(t, c.Status().Available)
	})

	t.Run("available refreshes the snapshot", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close()

		c := ollama.New(ollama.WithBaseURL(srv.URL))
		assert.False(t, c.Available(context.Background()))
		assert.False(t, c.Status().Available)
	})
}

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glunkad/caresimplfyservice/internal/config"
	"github.com/glunkad/caresimplfyservice/internal/logging"
)

func TestHuggingFaceComplete(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer hf_key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"model": "meta-llama/Meta-Llama-3-8B-Instruct",
			"choices": []map[string]any{
				{
					"message":       map[string]string{"role": "assistant", "content": "Your results look fine."},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"prompt_tokens": 42, "completion_tokens": 12},
		})
	}))
	defer srv.Close()

	c := NewHuggingFaceClient(srv.URL+"/v1", "hf_key", "meta-llama/Meta-Llama-3-8B-Instruct")
	resp, err := c.Complete(context.Background(), CompletionRequest{
		System:    "You are a caring doctor.",
		Messages:  []Message{{Role: RoleUser, Content: "What does this mean?"}},
		MaxTokens: 500,
	})
	require.NoError(t, err)

	assert.Equal(t, "Your results look fine.", resp.Content)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, 42, resp.Usage.InputTokens)
	assert.Equal(t, 12, resp.Usage.OutputTokens)

	// System prompt rides as the first message on the wire
	msgs := gotBody["messages"].([]any)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, float64(500), gotBody["max_tokens"])
}

func TestHuggingFaceComplete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	c := NewHuggingFaceClient(srv.URL, "hf_key", "m")
	_, err := c.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusTooManyRequests, perr.Code)
	assert.Equal(t, "huggingface", perr.Provider)
}

func TestHuggingFaceStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"Hello"}}]}` + "\n\n"))
		w.Write([]byte(`data: {"choices":[{"delta":{"content":" there"}}]}` + "\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	c := NewHuggingFaceClient(srv.URL, "hf_key", "m")
	ch, err := c.Stream(context.Background(), CompletionRequest{})
	require.NoError(t, err)

	var deltas []string
	var final *CompletionResponse
	for evt := range ch {
		switch evt.Type {
		case "delta":
			deltas = append(deltas, evt.Content)
		case "done":
			final = evt.Response
		case "error":
			t.Fatalf("unexpected stream error: %s", evt.Error)
		}
	}

	assert.Equal(t, []string{"Hello", " there"}, deltas)
	require.NotNil(t, final)
	assert.Equal(t, "Hello there", final.Content)
}

func TestHuggingFaceStream_Truncated(t *testing.T) {
	// The server drops the connection after one delta without ever
	// sending the [DONE] marker.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"Your hemoglobin is"}}]}` + "\n\n"))
	}))
	defer srv.Close()

	c := NewHuggingFaceClient(srv.URL, "hf_key", "m")
	ch, err := c.Stream(context.Background(), CompletionRequest{})
	require.NoError(t, err)

	var last StreamEvent
	sawDone := false
	for evt := range ch {
		if evt.Type == "done" {
			sawDone = true
		}
		last = evt
	}

	assert.False(t, sawDone, "a cut-off stream must not complete")
	require.Equal(t, "error", last.Type)
	assert.Contains(t, last.Error, "before completion")
}

func TestOllamaComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]string{"role": "assistant", "content": "All good."},
			"done":              true,
			"prompt_eval_count": 10,
			"eval_count":        3,
		})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3")
	resp, err := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "All good.", resp.Content)
	assert.Equal(t, 10, resp.Usage.InputTokens)
	assert.Equal(t, 3, resp.Usage.OutputTokens)
}

func TestOllamaStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"role":"assistant","content":"A"},"done":false}` + "\n"))
		w.Write([]byte(`{"message":{"role":"assistant","content":"B"},"done":true,"prompt_eval_count":5,"eval_count":2}` + "\n"))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3")
	ch, err := c.Stream(context.Background(), CompletionRequest{})
	require.NoError(t, err)

	var content string
	var final *CompletionResponse
	for evt := range ch {
		switch evt.Type {
		case "delta":
			content += evt.Content
		case "done":
			final = evt.Response
		}
	}

	assert.Equal(t, "AB", content)
	require.NotNil(t, final)
	assert.Equal(t, 5, final.Usage.InputTokens)
}

func TestOllamaStream_Truncated(t *testing.T) {
	// Connection ends after one chunk with no done:true terminator.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"role":"assistant","content":"Your hemoglobin is"},"done":false}` + "\n"))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3")
	ch, err := c.Stream(context.Background(), CompletionRequest{})
	require.NoError(t, err)

	var last StreamEvent
	sawDone := false
	for evt := range ch {
		if evt.Type == "done" {
			sawDone = true
		}
		last = evt
	}

	assert.False(t, sawDone, "a cut-off stream must not complete")
	require.Equal(t, "error", last.Type)
	assert.Contains(t, last.Error, "before completion")
}

func TestRegistryResolve(t *testing.T) {
	log := logging.New(nil, "silent")
	reg := NewRegistry(log)

	mock := &MockClient{ProviderName: "huggingface"}
	reg.Register("huggingface", mock)
	reg.Alias("meta-llama/Meta-Llama-3-8B-Instruct", "huggingface")
	reg.SetFallback("huggingface")

	direct, err := reg.Resolve("huggingface")
	require.NoError(t, err)
	assert.Same(t, Client(mock), direct)

	byAlias, err := reg.Resolve("meta-llama/Meta-Llama-3-8B-Instruct")
	require.NoError(t, err)
	assert.Same(t, Client(mock), byAlias)

	byFallback, err := reg.Resolve("unknown-model")
	require.NoError(t, err)
	assert.Same(t, Client(mock), byFallback)
}

func TestRegistryResolve_NoProvider(t *testing.T) {
	reg := NewRegistry(logging.New(nil, "silent"))
	_, err := reg.Resolve("anything")
	assert.Error(t, err)
}

func TestNewRegistryFromConfig(t *testing.T) {
	log := logging.New(nil, "silent")

	reg := NewRegistryFromConfig(config.LLMConfig{
		Provider: "huggingface",
		APIKey:   "hf_key",
		Model:    "meta-llama/Meta-Llama-3-8B-Instruct",
	}, log)
	assert.Contains(t, reg.List(), "huggingface")

	reg = NewRegistryFromConfig(config.LLMConfig{Provider: "ollama", Model: "llama3"}, log)
	assert.Contains(t, reg.List(), "ollama")

	// No credentials, no providers
	reg = NewRegistryFromConfig(config.LLMConfig{Provider: "huggingface"}, log)
	assert.Empty(t, reg.List())
}

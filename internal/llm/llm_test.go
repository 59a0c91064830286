package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteReturnsErrorForUnknownSlot(t *testing.T) {
	router := NewRouter(map[string]SlotConfig{})
	_, err := router.Complete(context.Background(), "chat", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no slot configured for "chat"`)
}

func TestCompleteDecodesChoiceAndUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hi there"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":2}}`))
	}))
	defer srv.Close()

	router := NewRouter(map[string]SlotConfig{
		"chat": {BaseURL: srv.URL, Model: "test-model", APIKey: "secret"},
	})

	completion, err := router.Complete(context.Background(), "chat", []Message{{Role: "user", Content: "hello"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi there", completion.Content)
	assert.Equal(t, "stop", completion.FinishReason)
	assert.Equal(t, 10, completion.PromptTokens)
	assert.Equal(t, 2, completion.OutputTokens)
}

func TestCompleteRetriesOn500ThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	router := NewRouter(map[string]SlotConfig{
		"chat": {BaseURL: srv.URL, Model: "test-model", MaxRetries: 1},
	})

	completion, err := router.Complete(context.Background(), "chat", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", completion.Content)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCompleteFailsAfterExhaustingRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	router := NewRouter(map[string]SlotConfig{
		"chat": {BaseURL: srv.URL, Model: "test-model", MaxRetries: 2},
	})

	_, err := router.Complete(context.Background(), "chat", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCompleteReturnsErrorOnNonRetryableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	router := NewRouter(map[string]SlotConfig{
		"chat": {BaseURL: srv.URL, Model: "test-model", MaxRetries: 3},
	})

	_, err := router.Complete(context.Background(), "chat", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestSummarizeSendsSystemPromptAndReturnsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"a short summary"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	router := NewRouter(map[string]SlotConfig{
		"summarizer": {BaseURL: srv.URL, Model: "test-model"},
	})

	summary, err := router.Summarize(context.Background(), "a long document")
	require.NoError(t, err)
	assert.Equal(t, "a short summary", summary)
}

func TestSummarizeFailsWithoutSummarizerSlotConfigured(t *testing.T) {
	router := NewRouter(map[string]SlotConfig{})
	_, err := router.Summarize(context.Background(), "text")
	require.Error(t, err)
}

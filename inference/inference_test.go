package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama-3.3-70b", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"coins\":[]}"}}]}`))
	}))
	defer ts.Close()

	text, err := NewClient(ts.URL, "secret", time.Second).Complete(context.Background(), "score the market", "llama-3.3-70b")
	require.NoError(t, err)
	assert.Equal(t, `{"coins":[]}`, text)
}

func TestCompleteUpstreamStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "", time.Second).Complete(context.Background(), "p", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestCompleteAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error":{"message":"invalid model"}}`))
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "", time.Second).Complete(context.Background(), "p", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid model")
}

func TestCompleteNoChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "", time.Second).Complete(context.Background(), "p", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestCompleteTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	start := time.Now()
	_, err := NewClient(ts.URL, "", 50*time.Millisecond).Complete(context.Background(), "p", "m")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

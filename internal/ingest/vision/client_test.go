package vision

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/metapantry/internal/apperror"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(b)
}

// newTestClient returns a client against srv whose backoff sleeps are
// recorded instead of slept.
func newTestClient(t *testing.T, srv *httptest.Server, retries int) (*Client, *[]time.Duration) {
	t.Helper()
	c := NewClient(ClientConfig{
		APIKey:     "sk-test",
		BaseURL:    srv.URL + "/",
		Model:      "gpt-test",
		MaxRetries: retries,
	}, discardLogger())
	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func TestDescribe_RequestShape(t *testing.T) {
	var got struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content []struct {
				Type     string `json:"type"`
				Text     string `json:"text"`
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
	}
	var authHeader, path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, completion(`{"name":"Milk"}`))
	}))
	defer srv.Close()
	c, _ := newTestClient(t, srv, 0)

	text, err := c.Describe(context.Background(), []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)

	assert.Equal(t, `{"name":"Milk"}`, text)
	assert.Equal(t, "Bearer sk-test", authHeader)
	assert.Equal(t, "/v1/chat/completions", path)
	assert.Equal(t, "gpt-test", got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	require.Len(t, got.Messages[0].Content, 2)
	assert.Equal(t, Prompt, got.Messages[0].Content[0].Text)
	assert.Equal(t, "image_url", got.Messages[0].Content[1].Type)
	assert.Equal(t, "data:image/jpeg;base64,/9j/", got.Messages[0].Content[1].ImageURL.URL)
}

func TestDescribe_NoAPIKey(t *testing.T) {
	c := NewClient(ClientConfig{}, discardLogger())

	_, err := c.Describe(context.Background(), []byte("jpeg"))
	assert.True(t, errors.Is(err, apperror.ErrExternalUnavailable), "err = %v", err)
	assert.False(t, c.Configured())
}

func TestDescribe_RetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, completion("ok"))
	}))
	defer srv.Close()
	c, slept := newTestClient(t, srv, 2)

	text, err := c.Describe(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.EqualValues(t, 3, calls.Load())
	require.Len(t, *slept, 2)
	for _, d := range *slept {
		assert.InDelta(t, float64(2*time.Second), float64(d), float64(400*time.Millisecond))
	}
}

func TestDescribe_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c, _ := newTestClient(t, srv, 0)

	_, err := c.Describe(context.Background(), []byte("jpeg"))
	assert.True(t, errors.Is(err, apperror.ErrExternalUnavailable), "err = %v", err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestDescribe_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"Incorrect API key provided: sk-test"}}`)
	}))
	defer srv.Close()
	c, _ := newTestClient(t, srv, 3)

	_, err := c.Describe(context.Background(), []byte("jpeg"))
	require.True(t, errors.Is(err, apperror.ErrExternalUnavailable), "err = %v", err)
	assert.EqualValues(t, 1, calls.Load())

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.False(t, strings.Contains(appErr.Message, "sk-test"), "upstream body must not reach the client message")
}

func TestDescribe_UnusableEnvelope(t *testing.T) {
	for name, body := range map[string]string{
		"not json":   `<html>`,
		"no choices": `{"choices":[]}`,
		"null text":  `{"choices":[{"message":{"content":null}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body)
			}))
			defer srv.Close()
			c, _ := newTestClient(t, srv, 0)

			_, err := c.Describe(context.Background(), []byte("jpeg"))
			assert.True(t, errors.Is(err, apperror.ErrParseFailure), "err = %v", err)
		})
	}
}

func TestDescribe_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c, _ := newTestClient(t, srv, 0)

	_, err := c.Describe(context.Background(), []byte("jpeg"))
	assert.True(t, errors.Is(err, apperror.ErrExternalUnavailable), "err = %v", err)
}

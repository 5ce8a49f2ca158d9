package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ntarekp/teamSynth/internal/domain/integration"
)

func TestHTTPCaller_PostsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "abc", r.Header.Get("X-Trace"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "standup", body["title"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7}`))
	}))
	defer srv.Close()

	c := NewHTTPCaller(time.Second, zerolog.Nop())
	resp, err := c.Call(context.Background(), integration.Request{
		Method:  "post",
		URL:     srv.URL,
		Body:    map[string]any{"title": "standup"},
		Headers: map[string]string{"X-Trace": "abc"},
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"id": float64(7)}, resp.Body)
}

func TestHTTPCaller_PlainTextBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte("pong\n"))
	}))
	defer srv.Close()

	resp, err := NewHTTPCaller(0, zerolog.Nop()).Call(context.Background(), integration.Request{URL: srv.URL})

	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Body)
}

func TestHTTPCaller_Non2xxIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPCaller(time.Second, zerolog.Nop()).Call(context.Background(), integration.Request{URL: srv.URL})

	var statusErr *integration.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestHTTPCaller_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewHTTPCaller(20*time.Millisecond, zerolog.Nop()).Call(context.Background(), integration.Request{URL: srv.URL})
	assert.Error(t, err)
}

func TestWebhook_Dispatch(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	a := NewAdapter("calendar", srv.URL, NewHTTPCaller(time.Second, zerolog.Nop()))
	out, err := a.Dispatch(context.Background(), "book retro", map[string]any{"when": "friday"})

	require.NoError(t, err)
	assert.Equal(t, true, out["delivered"])
	assert.Equal(t, http.StatusAccepted, out["statusCode"])
	assert.Equal(t, "calendar", got["system"])
	assert.Equal(t, "book retro", got["action"])
	assert.Equal(t, map[string]any{"when": "friday"}, got["payload"])
}

func TestNewAdapter_EmptyURLIsUnconfigured(t *testing.T) {
	a := NewAdapter("tasks", "", NewHTTPCaller(time.Second, zerolog.Nop()))

	_, err := a.Dispatch(context.Background(), "create ticket", nil)
	assert.ErrorIs(t, err, integration.ErrNotConfigured)
	assert.Equal(t, "tasks", a.Name())
}

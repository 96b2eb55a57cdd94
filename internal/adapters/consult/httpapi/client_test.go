package httpapi

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

func TestConsultPostsTaskAndDecodesResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req consultRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "list files", req.Task)

		_ = json.NewEncoder(w).Encode(consultResponse{Status: "completed", Response: "main.go"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	client.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	result, err := client.Consult(context.Background(), "list files")
	require.NoError(t, err)
	assert.Equal(t, "list files", result.Task)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, "main.go", result.Response)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), result.CompletedAt)
}

func TestConsultReportsHTTPFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).Consult(context.Background(), "task")
	require.Error(t, err)
	assert.ErrorContains(t, err, "503")
	assert.ErrorContains(t, err, "model overloaded")
}

func TestConsultReportsErrorField(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(consultResponse{Error: "no session"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).Consult(context.Background(), "task")
	assert.ErrorContains(t, err, "no session")
}

func TestConsultHonorsDeadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL, srv.Client()).Consult(ctx, "slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConsultRequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient(" ", nil).Consult(context.Background(), "task")
	assert.ErrorContains(t, err, "not configured")
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-podcast/internal/audio"
	"github.com/pdiddy/paper-podcast/internal/pipeline"
	"github.com/pdiddy/paper-podcast/internal/pipeline/pipelinetest"
	"github.com/pdiddy/paper-podcast/internal/session"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type response struct {
	Session  pipeline.Snapshot `json:"session"`
	Sessions []map[string]any  `json:"sessions"`
	Error    map[string]any    `json:"error"`
}

func testServer(t *testing.T) http.Handler {
	t.Helper()
	collab := pipelinetest.Collaborators()
	collab.Artifacts = audio.NewFileStore(t.TempDir())
	n := 0
	mgr := session.NewManager(pipelinetest.Config(), collab, session.Options{NewID: func() string {
		n++
		return fmt.Sprintf("s-%d", n)
	}})
	return New(mgr).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestHealthz(t *testing.T) {
	w, _ := do(t, testServer(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSessionLifecycle(t *testing.T) {
	h := testServer(t)

	w, resp := do(t, h, http.MethodPost, "/v1/sessions", map[string]string{"query": "transformer attention"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "s-1", resp.Session.SessionID)
	assert.Equal(t, pipeline.StageAwaitingSelection, resp.Session.State.Stage)
	assert.Len(t, resp.Session.Context.CandidatePapers, 3)

	w, resp = do(t, h, http.MethodPost, "/v1/sessions/s-1/events", pipeline.Select(0))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, pipeline.StageAwaitingParams, resp.Session.State.Stage)

	w, resp = do(t, h, http.MethodPost, "/v1/sessions/s-1/events", pipeline.Configure(types.DefaultPodcastParams()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, pipeline.StageComplete, resp.Session.State.Stage)
	require.NotNil(t, resp.Session.Context.AudioArtifact)

	w, resp = do(t, h, http.MethodGet, "/v1/sessions/s-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pipeline.StageComplete, resp.Session.State.Stage)

	w, _ = do(t, h, http.MethodGet, "/v1/sessions/s-1/audio", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "RIFF", w.Body.String()[:4])
	assert.Contains(t, w.Header().Get("Content-Disposition"), "podcast-s-1.wav")

	w, resp = do(t, h, http.MethodGet, "/v1/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Sessions, 1)

	w, _ = do(t, h, http.MethodDelete, "/v1/sessions/s-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = do(t, h, http.MethodGet, "/v1/sessions/s-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateWithoutBody(t *testing.T) {
	w, resp := do(t, testServer(t), http.MethodPost, "/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, pipeline.StageIdle, resp.Session.State.Stage)
}

func TestErrorStatuses(t *testing.T) {
	h := testServer(t)
	_, _ = do(t, h, http.MethodPost, "/v1/sessions", map[string]string{"query": "attention"})

	t.Run("state violation", func(t *testing.T) {
		w, resp := do(t, h, http.MethodPost, "/v1/sessions/s-1/events", pipeline.Configure(types.DefaultPodcastParams()))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "StateViolation", resp.Error["kind"])
		assert.Equal(t, pipeline.StageAwaitingSelection, resp.Session.State.Stage)
	})
	t.Run("invalid selection", func(t *testing.T) {
		w, resp := do(t, h, http.MethodPost, "/v1/sessions/s-1/events", pipeline.Select(7))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "InvalidSelection", resp.Error["kind"])
	})
	t.Run("unknown session", func(t *testing.T) {
		w, _ := do(t, h, http.MethodPost, "/v1/sessions/nope/events", pipeline.Select(0))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
	t.Run("bad json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/s-1/events", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("no audio yet", func(t *testing.T) {
		w, _ := do(t, h, http.MethodGet, "/v1/sessions/s-1/audio", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", session.ErrNotFound), http.StatusNotFound},
		{&pipeline.Error{Kind: pipeline.ErrStateViolation}, http.StatusConflict},
		{pipeline.ErrCancelled, http.StatusConflict},
		{&pipeline.Error{Kind: pipeline.ErrInvalidParameters, Field: "duration_minutes"}, http.StatusUnprocessableEntity},
		{&pipeline.Error{Kind: pipeline.ErrInvalidQuery}, http.StatusUnprocessableEntity},
		{&pipeline.Error{Kind: pipeline.ErrGenerationFailed, Retried: true}, http.StatusBadGateway},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := Status(tt.err); got != tt.want {
			t.Errorf("Status(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

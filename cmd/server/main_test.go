package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"codecortex/internal/config"
	"codecortex/internal/di"
)

func testContainer(t *testing.T) *di.Container {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Dimensions = 8
	cfg.Index.Dir = t.TempDir()
	cfg.Index.CheckpointPath = filepath.Join(cfg.Index.Dir, "checkpoint.json")
	cfg.Resilience.FeedbackLogPath = filepath.Join(cfg.Index.Dir, "feedback.jsonl")
	require.NoError(t, cfg.Validate())

	container, err := di.New(context.Background(), cfg)
	require.NoError(t, err)
	return container
}

func TestHandleHealth_ReturnsReport(t *testing.T) {
	container := testContainer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handleHealth(container)(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var report map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Contains(t, report, "vector")
}

func TestHandleStatus_NotExtractedWhenNoManifest(t *testing.T) {
	container := testContainer(t)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()

	handleStatus(container)(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "not_extracted")
}

func TestHandleRetrieve_RejectsEmptyQuery(t *testing.T) {
	container := testContainer(t)
	req := httptest.NewRequest(http.MethodPost, "/retrieve", strings.NewReader(`{"query":""}`))
	w := httptest.NewRecorder()

	handleRetrieve(container)(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRetrieve_ReturnsResultForValidQuery(t *testing.T) {
	container := testContainer(t)
	req := httptest.NewRequest(http.MethodPost, "/retrieve", strings.NewReader(`{"query":"order total","budget":1000}`))
	w := httptest.NewRecorder()

	handleRetrieve(container)(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "trace")
}

func TestRequireBearerToken_NoHashDisablesCheck(t *testing.T) {
	called := false
	handler := requireBearerToken("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/debug/spans", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireBearerToken_RejectsMissingOrWrongToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-token"), bcrypt.MinCost)
	require.NoError(t, err)

	handler := requireBearerToken(string(hash))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/debug/spans", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireBearerToken_AcceptsCorrectToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-token"), bcrypt.MinCost)
	require.NoError(t, err)

	called := false
	handler := requireBearerToken(string(hash))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/debug/spans", nil)
	req.Header.Set("Authorization", "Bearer correct-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
}

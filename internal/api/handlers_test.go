package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/ipocast/internal/pipeline"
	"github.com/wonny/ipocast/pkg/config"
	"github.com/wonny/ipocast/pkg/logger"
)

// fakeRunner satisfies PipelineControl without real pipeline work.
type fakeRunner struct {
	status       *pipeline.RunStatus
	generateRuns int32
	retrainRuns  int32
}

func (f *fakeRunner) Status() *pipeline.RunStatus { return f.status }

func (f *fakeRunner) Generate(ctx context.Context) error {
	atomic.AddInt32(&f.generateRuns, 1)
	return nil
}

func (f *fakeRunner) Retrain(ctx context.Context) error {
	atomic.AddInt32(&f.retrainRuns, 1)
	return nil
}

func testPaths(t *testing.T) config.PathsConfig {
	t.Helper()
	dir := t.TempDir()
	return config.PathsConfig{
		ModelsDir:       filepath.Join(dir, "models"),
		TransformersDir: filepath.Join(dir, "transformers"),
		OutputFile:      filepath.Join(dir, "output", "ipo_predictions.json"),
	}
}

func newTestRouter(t *testing.T, runner PipelineControl, paths config.PathsConfig) http.Handler {
	t.Helper()
	log := logger.NewNop()
	h := NewHandler(runner, paths, log)
	hub := NewHub(log)
	t.Cleanup(hub.Close)
	return NewRouter(h, hub, log)
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, &fakeRunner{}, testPaths(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestGetPredictions(t *testing.T) {
	paths := testPaths(t)
	router := newTestRouter(t, &fakeRunner{}, paths)

	// 아티팩트가 아직 없으면 404
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/predictions", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	artifact := `{"metadata":{"total_ipos":2},"ipos":[]}`
	require.NoError(t, os.MkdirAll(filepath.Dir(paths.OutputFile), 0o755))
	require.NoError(t, os.WriteFile(paths.OutputFile, []byte(artifact), 0o644))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/predictions", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, artifact, rec.Body.String())
}

func TestGetMetrics(t *testing.T) {
	paths := testPaths(t)
	router := newTestRouter(t, &fakeRunner{}, paths)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	metrics := `{"train_rows":40,"test_rows":10}`
	require.NoError(t, os.MkdirAll(paths.ModelsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(paths.ModelsDir, "metrics.json"), []byte(metrics), 0o644))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, metrics, rec.Body.String())
}

func TestGetPipelineStatus(t *testing.T) {
	runner := &fakeRunner{}
	router := newTestRouter(t, runner, testPaths(t))

	// 아직 실행된 적 없음
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/pipeline/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool                `json:"success"`
		Data    *pipeline.RunStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Nil(t, body.Data)

	runner.status = &pipeline.RunStatus{
		RunID:     "run-123",
		Job:       "generate",
		Stage:     pipeline.StageWritten,
		StartedAt: time.Now(),
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/pipeline/status", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Data)
	assert.Equal(t, "run-123", body.Data.RunID)
	assert.Equal(t, pipeline.StageWritten, body.Data.Stage)
}

func TestTriggerGenerate(t *testing.T) {
	runner := &fakeRunner{}
	router := newTestRouter(t, runner, testPaths(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/pipeline/generate", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// 백그라운드 실행 대기
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runner.generateRuns) == 1
	}, time.Second, 10*time.Millisecond)

	// GET은 허용되지 않음
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/pipeline/generate", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTriggerRetrain(t *testing.T) {
	runner := &fakeRunner{}
	router := newTestRouter(t, runner, testPaths(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/pipeline/retrain", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runner.retrainRuns) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRecoveryMiddleware(t *testing.T) {
	log := logger.NewNop()
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	handler := recoveryMiddleware(log)(panicky)
	rec := httptest.NewRecorder()

	assert.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/predictions", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "Internal server error"))
}

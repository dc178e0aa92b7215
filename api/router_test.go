package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/lmstrack/api/handler"
	"github.com/use-agent/lmstrack/config"
	"github.com/use-agent/lmstrack/history"
	"github.com/use-agent/lmstrack/models"
	"github.com/use-agent/lmstrack/pipeline"
)

type fakeRuns struct {
	busy    bool
	last    *pipeline.Summary
	started int
}

func (f *fakeRuns) Trigger() (string, error) {
	if f.busy {
		return "", models.ErrBusy
	}
	f.started++
	return "run-1", nil
}

func (f *fakeRuns) Running() (string, bool) {
	if f.busy {
		return "run-0", true
	}
	return "", false
}

func (f *fakeRuns) Last() *pipeline.Summary { return f.last }

var _ handler.RunController = (*fakeRuns)(nil)

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *models.ErrorDetail `json:"error"`
}

func newTestRouter(t *testing.T, runs handler.RunController, keys ...string) (*gin.Engine, *config.Config) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Server.Mode = gin.TestMode
	cfg.Server.APIKeys = keys
	cfg.Server.RequestsPerSecond = 0
	cfg.Store.DataFile = filepath.Join(t.TempDir(), "courses_data.csv")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewRouter(ctx, cfg, runs, time.Now()), cfg
}

func seedStore(t *testing.T, path string) {
	t.Helper()
	ds := history.NewDataset()
	history.Merge(ds, []models.Outcome{
		{
			Row:    models.CourseRow{ID: "1", Title: "Safety Basics", Type: "E-learning"},
			Stats:  &models.DetailStats{Enrollments: 40, Completed: 12},
			Status: models.OutcomeSuccess,
		},
		{
			Row:    models.CourseRow{ID: "2", Title: "Advanced Forklift", Type: "ILT"},
			Stats:  &models.DetailStats{Enrollments: 90, Completed: 3},
			Status: models.OutcomeSuccess,
		},
	}, "2024-10-03", history.MergeOptions{})
	require.NoError(t, history.Save(path, ds))
}

func do(t *testing.T, r http.Handler, method, path string, header map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHealth_NoAuthRequired(t *testing.T) {
	runs := &fakeRuns{last: &pipeline.Summary{RunID: "r", Error: "AUTH_FAILED: login"}}
	r, _ := newTestRouter(t, runs, "secret")

	w, _ := do(t, r, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var health models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	require.Equal(t, "degraded", health.Status)
	require.Equal(t, handler.Version, health.Version)
	require.False(t, health.Running)
}

func TestAuth(t *testing.T) {
	r, _ := newTestRouter(t, &fakeRuns{}, "secret")

	w, env := do(t, r, http.MethodGet, "/api/v1/courses", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, models.ErrCodeUnauthorized, env.Error.Code)

	w, _ = do(t, r, http.MethodGet, "/api/v1/courses", map[string]string{"X-API-Key": "wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(t, r, http.MethodGet, "/api/v1/courses", map[string]string{"Authorization": "Bearer secret"})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCourses_ListAndFilter(t *testing.T) {
	r, cfg := newTestRouter(t, &fakeRuns{})
	seedStore(t, cfg.Store.DataFile)

	w, env := do(t, r, http.MethodGet, "/api/v1/courses?sort=enrollments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []handler.CourseSummary
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)
	require.Equal(t, "Advanced Forklift", list[0].Title)
	require.Equal(t, 90, list[0].Enrollments)
	require.Equal(t, "2024-10-03", list[0].LatestDate)

	_, env = do(t, r, http.MethodGet, "/api/v1/courses?q=safety", nil)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	require.Equal(t, "Safety Basics", list[0].Title)

	w, env = do(t, r, http.MethodGet, "/api/v1/courses?sort=nope", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, models.ErrCodeInvalidInput, env.Error.Code)
}

func TestCourses_EmptyStore(t *testing.T) {
	r, _ := newTestRouter(t, &fakeRuns{})

	w, env := do(t, r, http.MethodGet, "/api/v1/courses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, string(env.Data))
}

func TestCourses_GetByTitle(t *testing.T) {
	r, cfg := newTestRouter(t, &fakeRuns{})
	seedStore(t, cfg.Store.DataFile)

	w, env := do(t, r, http.MethodGet, "/api/v1/courses/Safety%20Basics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.CourseHistory
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Equal(t, map[string]int{"2024-10-03": 40}, got.Enrollments)
	require.Equal(t, map[string]int{"2024-10-03": 12}, got.Completed)

	w, env = do(t, r, http.MethodGet, "/api/v1/courses/Unknown", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, models.ErrCodeNotFound, env.Error.Code)
}

func TestRuns_TriggerAndBusy(t *testing.T) {
	runs := &fakeRuns{}
	r, _ := newTestRouter(t, runs)

	w, env := do(t, r, http.MethodPost, "/api/v1/runs", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.JSONEq(t, `{"run_id":"run-1"}`, string(env.Data))
	require.Equal(t, 1, runs.started)

	runs.busy = true
	w, env = do(t, r, http.MethodPost, "/api/v1/runs", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, models.ErrCodeBusy, env.Error.Code)
}

func TestRuns_Last(t *testing.T) {
	runs := &fakeRuns{}
	r, _ := newTestRouter(t, runs)

	w, _ := do(t, r, http.MethodGet, "/api/v1/runs/last", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	runs.last = &pipeline.Summary{RunID: "abc", Rows: 7}
	w, env := do(t, r, http.MethodGet, "/api/v1/runs/last", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sum pipeline.Summary
	require.NoError(t, json.Unmarshal(env.Data, &sum))
	require.Equal(t, "abc", sum.RunID)
	require.Equal(t, 7, sum.Rows)
}

func TestRateLimit(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.Mode = gin.TestMode
	cfg.Server.RequestsPerSecond = 0.001
	cfg.Server.Burst = 1
	cfg.Store.DataFile = filepath.Join(t.TempDir(), "courses_data.csv")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRouter(ctx, cfg, &fakeRuns{}, time.Now())

	w, _ := do(t, r, http.MethodGet, "/api/v1/courses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, env := do(t, r, http.MethodGet, "/api/v1/courses", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, models.ErrCodeRateLimited, env.Error.Code)
}

func TestCourses_GetTitleWithSlash(t *testing.T) {
	r, cfg := newTestRouter(t, &fakeRuns{})
	ds := history.NewDataset()
	history.Merge(ds, []models.Outcome{{
		Row:    models.CourseRow{ID: "9", Title: "Sales / Intro", Type: "ILT"},
		Stats:  &models.DetailStats{Enrollments: 8, Completed: 1},
		Status: models.OutcomeSuccess,
	}}, "2024-10-03", history.MergeOptions{})
	require.NoError(t, history.Save(cfg.Store.DataFile, ds))

	w, env := do(t, r, http.MethodGet, "/api/v1/courses/Sales%20%2F%20Intro", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.CourseHistory
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Equal(t, "Sales / Intro", got.Title)
	require.Equal(t, map[string]int{"2024-10-03": 8}, got.Enrollments)

	w, env = do(t, r, http.MethodGet, "/api/v1/courses/Sales/Missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, models.ErrCodeNotFound, env.Error.Code)
}

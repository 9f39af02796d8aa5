package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wollisellis/vireiaestatistica-sub002/internal/common/errors"
	"github.com/wollisellis/vireiaestatistica-sub002/internal/health"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/catalog"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/config"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/metrics"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/models"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/repository"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/engine"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/leaderboard"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/scoring"
	wssvc "github.com/wollisellis/vireiaestatistica-sub002/pkg/services/websocket"
)

// downGateway fails every write
type downGateway struct {
	repository.ProgressGateway
}

func (downGateway) Atomically(context.Context, func(tx repository.ProgressGateway) error) error {
	return apperrors.StorageUnavailable("begin", errors.New("connection refused"))
}

func newTestRouter(t *testing.T, gw repository.ProgressGateway) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cat, err := catalog.Default()
	require.NoError(t, err)
	calc, err := scoring.NewCalculator(cfg.Scoring)
	require.NoError(t, err)

	m := metrics.New()
	eng := engine.New(cat, calc, gw, engine.WithMetrics(m))
	lb := leaderboard.NewService(gw, cfg.Leaderboard, leaderboard.WithMetrics(m))

	return NewRouter(Dependencies{
		Engine:             eng,
		Leaderboard:        lb,
		Broadcaster:        wssvc.NewBroadcaster(lb, wssvc.WithMetrics(m)),
		Health:             health.NewHealthChecker(health.Probe{Name: "database", Critical: true, Check: gw.Ping}),
		Metrics:            m,
		MaxConflictRetries: cfg.Submission.MaxConflictRetries,
	})
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func attemptBody(cohortID string, correct, total int) map[string]interface{} {
	metrics := make([]map[string]interface{}, total)
	for i := range metrics {
		metrics[i] = map[string]interface{}{
			"question_id":        string(rune('a' + i)),
			"correct":            i < correct,
			"time_spent_seconds": 15,
		}
	}
	return map[string]interface{}{"cohort_id": cohortID, "metrics": metrics, "elapsed_seconds": 700}
}

func TestSubmitAttempt(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryGateway())

	w, env := doRequest(t, router, http.MethodPost, "/api/v1/students/student-1/exercises/exercise-1-1/attempts", attemptBody("cohort-a", 5, 7))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, env.Success)

	var result engine.SubmissionResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 71, result.Score.NormalizedScore)
	assert.True(t, result.Score.Passed)
	assert.Equal(t, []string{"first-game"}, result.NewAchievements)
	assert.Equal(t, "cohort-a", result.Student.CohortID)
}

func TestSubmitAttempt_Errors(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryGateway())

	w, env := doRequest(t, router, http.MethodPost, "/api/v1/students/student-1/exercises/exercise-1-1/attempts", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, env.Error.Code)

	w, env = doRequest(t, router, http.MethodPost, "/api/v1/students/student-1/exercises/exercise-9-9/attempts", attemptBody("", 1, 1))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CodeNotFound, env.Error.Code)

	dup := attemptBody("", 1, 2)
	metrics := dup["metrics"].([]map[string]interface{})
	metrics[1]["question_id"] = metrics[0]["question_id"]
	w, env = doRequest(t, router, http.MethodPost, "/api/v1/students/student-1/exercises/exercise-1-1/attempts", dup)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, env.Error.Code)

	long := attemptBody(strings.Repeat("c", 101), 1, 1)
	w, env = doRequest(t, router, http.MethodPost, "/api/v1/students/student-1/exercises/exercise-1-1/attempts", long)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, env.Error.Code)

	w, env = doRequest(t, router, http.MethodPost, "/api/v1/students/"+strings.Repeat("s", 101)+"/exercises/exercise-1-1/attempts", attemptBody("", 1, 1))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, env.Error.Code)

	w, _ = doRequest(t, router, http.MethodGet, "/api/v1/students/student-1/progress", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "rejected submissions store nothing")
}

func TestSubmitAttempt_StorageDown(t *testing.T) {
	router := newTestRouter(t, downGateway{repository.NewMemoryGateway()})

	w, env := doRequest(t, router, http.MethodPost, "/api/v1/students/student-1/exercises/exercise-1-1/attempts", attemptBody("", 1, 1))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, apperrors.CodeStorageUnavailable, env.Error.Code)
}

func TestProgressReportAndRecompute(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryGateway())
	path := "/api/v1/students/student-1/exercises/exercise-1-1/attempts"
	w, _ := doRequest(t, router, http.MethodPost, path, attemptBody("cohort-a", 8, 10))
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := doRequest(t, router, http.MethodGet, "/api/v1/students/student-1/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sp models.StudentProgress
	require.NoError(t, json.Unmarshal(env.Data, &sp))
	assert.Equal(t, 80, sp.TotalNormalizedScore)
	require.Len(t, sp.Modules, 1)
	assert.Equal(t, 25, sp.Modules[0].CompletionPercentage)

	w, env = doRequest(t, router, http.MethodGet, "/api/v1/students/student-1/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report engine.StudentReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "student-1", report.StudentID)
	// a single attempt completes the exercise, which is enough to unlock the next module
	assert.Equal(t, []string{"module-1", "module-2"}, report.UnlockedModules)

	w, env = doRequest(t, router, http.MethodPost, "/api/v1/students/student-1/recompute", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"total_normalized_score":80`)

	w, _ = doRequest(t, router, http.MethodPost, "/api/v1/students/nobody/recompute", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAchievements(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryGateway())

	w, env := doRequest(t, router, http.MethodGet, "/api/v1/achievements", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, env.Count)
	assert.Equal(t, 10, *env.Count)

	_, env = doRequest(t, router, http.MethodGet, "/api/v1/achievements?rarity=legendary", nil)
	require.NotNil(t, env.Count)
	assert.Equal(t, 1, *env.Count)
	assert.Contains(t, string(env.Data), "nutrition-scholar")

	w, _ = doRequest(t, router, http.MethodGet, "/api/v1/achievements?rarity=mythic", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLeaderboard(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryGateway())
	for student, correct := range map[string]int{"s1": 10, "s2": 10, "s3": 5} {
		w, _ := doRequest(t, router, http.MethodPost, "/api/v1/students/"+student+"/exercises/exercise-2-1/attempts", attemptBody("cohort-a", correct, 10))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, env := doRequest(t, router, http.MethodGet, "/api/v1/cohorts/cohort-a/leaderboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var lb models.Leaderboard
	require.NoError(t, json.Unmarshal(env.Data, &lb))
	require.Len(t, lb.Entries, 3)
	assert.Equal(t, 1, lb.Entries[0].Rank)
	assert.Equal(t, 1, lb.Entries[1].Rank)
	assert.Equal(t, 2, lb.Entries[2].Rank)
	assert.Equal(t, "s3", lb.Entries[2].StudentID)

	_, env = doRequest(t, router, http.MethodGet, "/api/v1/cohorts/cohort-a/leaderboard?limit=1", nil)
	require.NoError(t, json.Unmarshal(env.Data, &lb))
	assert.Len(t, lb.Entries, 1)

	w, _ = doRequest(t, router, http.MethodGet, "/api/v1/cohorts/cohort-a/leaderboard?limit=0", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = doRequest(t, router, http.MethodGet, "/api/v1/cohorts/cohort-a/leaderboard?limit=-3", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLeaderboardWebsocket(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryGateway())
	w, _ := doRequest(t, router, http.MethodPost, "/api/v1/students/s1/exercises/exercise-1-1/attempts", attemptBody("cohort-a", 3, 4))
	require.Equal(t, http.StatusCreated, w.Code)

	srv := httptest.NewServer(router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/cohorts/cohort-a/leaderboard/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type string             `json:"type"`
		Data models.Leaderboard `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, wssvc.TypeLeaderboard, msg.Type)
	require.Len(t, msg.Data.Entries, 1)
	assert.Equal(t, "s1", msg.Data.Entries[0].StudentID)
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryGateway())
	w, _ := doRequest(t, router, http.MethodPost, "/api/v1/students/s1/exercises/exercise-1-1/attempts", attemptBody("", 1, 1))
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := doRequest(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `progress_submissions_total{outcome="accepted"} 1`)
}

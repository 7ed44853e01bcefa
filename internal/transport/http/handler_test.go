package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"competition-service/internal/app"
	"competition-service/internal/auth"
	"competition-service/internal/domain"
	"competition-service/internal/infra/memory"
	"competition-service/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var windowStart = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	router *gin.Engine
	jwt    *auth.JWT
	now    time.Time
}

func newTestEnv(t *testing.T, limiter *RateLimiter) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{now: windowStart.Add(time.Minute)}
	jwt, err := auth.NewJWT("test-secret")
	if err != nil {
		t.Fatalf("jwt: %v", err)
	}
	env.jwt = jwt

	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(sampleQuestions()), time.Minute)
	service := app.NewCompetitionService(app.Settings{
		Window:                  domain.Window{Start: windowStart, EntranceDuration: 15 * time.Minute, Length: time.Hour},
		TrustClientWarningCount: true,
	}, memory.NewParticipationStore(), memory.NewActivityLogStore(), questions,
		app.WithLocker(memory.NewLocker()),
		app.WithClock(func() time.Time { return env.now }),
	)

	env.router = NewRouter(RouterConfig{
		Service:          service,
		Auth:             jwt,
		Metrics:          metrics.New(prometheus.NewRegistry()),
		Limiter:          limiter,
		ProgressInterval: 50 * time.Millisecond,
	})
	return env
}

func (e *testEnv) token(t *testing.T, userID string, role domain.Role) string {
	t.Helper()
	token, err := e.jwt.Issue(domain.Identity{UserID: userID, Role: role}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec.Code, resp
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Text: "2 + 2?", Type: domain.QuestionMCQ, Options: []string{"3", "4"}, CorrectAnswer: "4", Points: 1},
		{ID: "q2", Text: "Name a Go keyword", Type: domain.QuestionText, CorrectAnswer: "func", Points: 2},
	}
}

func TestConfigIsPublic(t *testing.T) {
	env := newTestEnv(t, nil)
	code, resp := env.do(t, http.MethodGet, "/api/competition/config", "", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	data := resp.Data.(map[string]interface{})
	if data["phase"] != string(domain.PhaseEnterable) {
		t.Fatalf("unexpected phase %v", data["phase"])
	}
	if data["competitionLength"].(float64) != 3600 {
		t.Fatalf("unexpected length %v", data["competitionLength"])
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, nil)
	if code, _ := env.do(t, http.MethodGet, "/api/competition/status", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code, _ := env.do(t, http.MethodGet, "/api/competition/status", "bogus", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", code)
	}
}

func TestCompetitionFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.token(t, "u1", domain.RoleUser)

	code, resp := env.do(t, http.MethodGet, "/api/competition/status", token, nil)
	if code != http.StatusOK || resp.Data.(map[string]interface{})["status"] != "not_started" {
		t.Fatalf("unexpected status response %d %+v", code, resp)
	}

	code, resp = env.do(t, http.MethodPost, "/api/competition/start", token, nil)
	if code != http.StatusOK {
		t.Fatalf("start: %d %+v", code, resp)
	}
	raw, _ := json.Marshal(resp.Data)
	if strings.Contains(string(raw), "correctAnswer") {
		t.Fatalf("start leaked answers: %s", raw)
	}

	code, resp = env.do(t, http.MethodPost, "/api/competition/start", token, nil)
	if code != http.StatusBadRequest || resp.Data == nil {
		t.Fatalf("duplicate start should return 400 with the session, got %d %+v", code, resp)
	}

	if code, _ := env.do(t, http.MethodPost, "/api/competition/submit/q1", token, map[string]string{"answer": "  "}); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty answer, got %d", code)
	}
	if code, _ := env.do(t, http.MethodPost, "/api/competition/submit/q9", token, map[string]string{"answer": "x"}); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown question, got %d", code)
	}
	code, resp = env.do(t, http.MethodPost, "/api/competition/submit/q1", token, map[string]string{"answer": "4"})
	if code != http.StatusOK || resp.Data.(map[string]interface{})["answer"] != "4" {
		t.Fatalf("submit: %d %+v", code, resp)
	}

	code, resp = env.do(t, http.MethodPost, "/api/competition/log-activity", token, map[string]interface{}{
		"type":         "tab_switch",
		"warningCount": 1,
		"details":      map[string]string{"visibility": "hidden"},
	})
	if code != http.StatusOK || resp.Data.(map[string]interface{})["acknowledged"] != true {
		t.Fatalf("log activity: %d %+v", code, resp)
	}
	if code, _ := env.do(t, http.MethodPost, "/api/competition/log-activity", token, map[string]interface{}{"type": "screenshot"}); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown activity, got %d", code)
	}

	env.now = windowStart.Add(10 * time.Minute)
	code, resp = env.do(t, http.MethodGet, "/api/competition/progress", token, nil)
	if code != http.StatusOK {
		t.Fatalf("progress: %d", code)
	}
	progress := resp.Data.(map[string]interface{})
	if progress["remainingSeconds"].(float64) != 50*60 || progress["answeredCount"].(float64) != 1 {
		t.Fatalf("unexpected progress %+v", progress)
	}

	if code, _ := env.do(t, http.MethodPost, "/api/competition/finish", token, nil); code != http.StatusOK {
		t.Fatalf("finish: %d", code)
	}
	if code, _ := env.do(t, http.MethodPost, "/api/competition/finish", token, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 on second finish, got %d", code)
	}
	if code, _ := env.do(t, http.MethodPost, "/api/competition/start", token, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 on rejoin, got %d", code)
	}

	code, resp = env.do(t, http.MethodGet, "/api/competition/results", token, nil)
	if code != http.StatusOK {
		t.Fatalf("results: %d", code)
	}
	results := resp.Data.(map[string]interface{})
	if results["answeredQuestions"].(float64) != 1 || results["status"] != "completed" || results["timeSpent"].(float64) != 9 {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestLogActivityAutoSubmitsOverThreshold(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.token(t, "u1", domain.RoleUser)
	if code, _ := env.do(t, http.MethodPost, "/api/competition/start", token, nil); code != http.StatusOK {
		t.Fatalf("start: %d", code)
	}

	code, resp := env.do(t, http.MethodPost, "/api/competition/log-activity", token, map[string]interface{}{
		"type":         "tab_switch",
		"warningCount": 4,
	})
	if code != http.StatusOK {
		t.Fatalf("log activity: %d %+v", code, resp)
	}
	if resp.Data.(map[string]interface{})["autoSubmitted"] != true {
		t.Fatalf("expected auto-submission, got %+v", resp.Data)
	}

	code, resp = env.do(t, http.MethodGet, "/api/competition/status", token, nil)
	if code != http.StatusOK || resp.Data.(map[string]interface{})["status"] != string(domain.StatusCompleted) {
		t.Fatalf("expected completed status, got %d %+v", code, resp)
	}
}

func TestJoinOutsideWindow(t *testing.T) {
	env := newTestEnv(t, nil)
	env.now = windowStart.Add(-time.Hour)
	code, resp := env.do(t, http.MethodPost, "/api/competition/start", env.token(t, "u1", domain.RoleUser), nil)
	if code != http.StatusBadRequest || !strings.Contains(resp.Message, "not accepting") {
		t.Fatalf("expected 400 window error, got %d %+v", code, resp)
	}
}

func TestResultsWithoutParticipation(t *testing.T) {
	env := newTestEnv(t, nil)
	if code, _ := env.do(t, http.MethodGet, "/api/competition/results", env.token(t, "u1", domain.RoleUser), nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.token(t, "u1", domain.RoleUser)
	admin := env.token(t, "root", domain.RoleAdmin)

	if code, _ := env.do(t, http.MethodPost, "/api/competition/start", user, nil); code != http.StatusOK {
		t.Fatalf("start: %d", code)
	}
	if code, _ := env.do(t, http.MethodPost, "/api/competition/admin/disqualify/u1", user, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin disqualify, got %d", code)
	}
	code, resp := env.do(t, http.MethodPost, "/api/competition/admin/disqualify/u1", admin, map[string]string{"reason": "second device"})
	if code != http.StatusOK || resp.Data.(map[string]interface{})["status"] != "disqualified" {
		t.Fatalf("disqualify: %d %+v", code, resp)
	}
	if code, _ := env.do(t, http.MethodPost, "/api/competition/admin/disqualify/u1", admin, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 when nothing active, got %d", code)
	}

	if code, _ := env.do(t, http.MethodPost, "/api/competition/dev/reset", user, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin reset, got %d", code)
	}
	if code, _ := env.do(t, http.MethodPost, "/api/competition/dev/reset", admin, nil); code != http.StatusOK {
		t.Fatalf("reset: %d", code)
	}
	if code, _ := env.do(t, http.MethodPost, "/api/competition/start", user, nil); code != http.StatusOK {
		t.Fatalf("start after reset: %d", code)
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, NewRateLimiter(2, time.Minute))
	token := env.token(t, "u1", domain.RoleUser)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		code, _ := env.do(t, http.MethodPost, "/api/competition/finish", token, nil)
		codes = append(codes, code)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected third request limited, got %v", codes)
	}

	other := env.token(t, "u2", domain.RoleUser)
	if code, _ := env.do(t, http.MethodPost, "/api/competition/finish", other, nil); code == http.StatusTooManyRequests {
		t.Fatalf("limits must be per caller")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	_, _ = env.do(t, http.MethodGet, "/api/competition/config", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("unexpected metrics output %d", rec.Code)
	}
}

func TestStatusForStorageFailureHidesDetails(t *testing.T) {
	err := &wrapped{}
	if statusFor(err) != http.StatusInternalServerError || messageFor(err) != "Internal server error" {
		t.Fatalf("storage failure should map to a generic 500")
	}
}

type wrapped struct{}

func (*wrapped) Error() string { return "select participation: dial tcp 10.0.0.5:5432: connection refused" }
func (*wrapped) Unwrap() error { return domain.ErrStorageFailure }

package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bryanwahyu/codescan/internal/application"
	appai "github.com/bryanwahyu/codescan/internal/application/ai"
	"github.com/bryanwahyu/codescan/internal/application/analysis"
	appauth "github.com/bryanwahyu/codescan/internal/application/auth"
	appprojects "github.com/bryanwahyu/codescan/internal/application/projects"
	"github.com/bryanwahyu/codescan/internal/domain/analyses"
	"github.com/bryanwahyu/codescan/internal/domain/engine"
	"github.com/bryanwahyu/codescan/internal/domain/engine/enginetest"
	"github.com/bryanwahyu/codescan/internal/domain/scans"
	"github.com/bryanwahyu/codescan/internal/infra/db/memory"
	"github.com/bryanwahyu/codescan/internal/infra/security"
	"github.com/bryanwahyu/codescan/internal/middleware"
)

type stubRunner struct {
	result scans.RunResult
	calls  int
}

func (s *stubRunner) Run(context.Context, scans.RunRequest) (scans.RunResult, error) {
	s.calls++
	return s.result, nil
}

type stubReviewer struct{}

func (stubReviewer) Review(context.Context, string, string) (string, error) {
	return "Use const.", nil
}

type harness struct {
	t       *testing.T
	handler http.Handler
	eng     *enginetest.Stub
	runner  *stubRunner
	store   *memory.Store
	metrics *middleware.Metrics
	deps    Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := memory.NewStore()
	eng := enginetest.NewStub()
	eng.Langs = []engine.Language{{Key: "js", Name: "JavaScript"}}
	runner := &stubRunner{}
	clock := application.SystemClock{}

	authSvc := &appauth.Service{
		Users:  st.Users(),
		Hasher: security.NewBcryptHasher(bcrypt.MinCost),
		Tokens: security.NewTokenIssuer("test-secret", time.Hour),
		Clock:  clock,
	}
	projects := &appprojects.Service{
		Repo:            st.Projects(),
		Runs:            st.Analyses(),
		ScanErrors:      st.ScanErrors(),
		Engine:          eng,
		Clock:           clock,
		PublicEngineURL: "http://sonar.local",
	}
	orch := analysis.NewOrchestrator(eng, runner, analysis.Config{
		EngineURL:    "http://sonar.local",
		Token:        "squ_t",
		PollTimeout:  100 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	}, nil)
	metrics := middleware.NewMetrics()

	h := &harness{t: t, eng: eng, runner: runner, store: st, metrics: metrics}
	h.deps = Deps{
		Auth:     authSvc,
		Projects: projects,
		Analysis: &analysis.Service{Projects: projects, Orchestrator: orch, Metrics: metrics, Clock: clock},
		AI:       appai.NewService(projects, nil, clock, nil),
		Engine:   eng,
		Metrics:  metrics,
	}
	h.handler = NewRouter(h.deps)
	return h
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func (h *harness) login(email string) string {
	h.t.Helper()
	creds := map[string]string{"email": email, "password": "pw123456"}
	rec := h.do(http.MethodPost, "/auth/register", "", creds)
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = h.do(http.MethodPost, "/auth/login", "", creds)
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[struct{ Token string }](h.t, rec).Token
}

func (h *harness) createProject(token, name string) string {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/projects", token, map[string]string{"name": name})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode[struct {
		Message string
		Project struct {
			ProjectKey string `json:"projectKey"`
			Name       string `json:"name"`
		}
	}](h.t, rec)
	assert.Equal(h.t, "project created", body.Message)
	return body.Project.ProjectKey
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func TestEndToEndAnalyze(t *testing.T) {
	h := newHarness(t)
	token := h.login("u@test.com")
	key := h.createProject(token, "Demo")

	h.eng.Issues = []analyses.Issue{
		{Key: "I1", Rule: "no-var", Severity: analyses.SeverityMajor, Type: analyses.TypeBug, Component: key + ":source_code.js", Line: 1, Message: "Unexpected var"},
		{Key: "OTHER", Rule: "no-var", Severity: analyses.SeverityMajor, Type: analyses.TypeBug, Component: "project_other:source_code.js"},
	}
	h.eng.Rules["no-var"] = "<p>Use let or const.</p>"

	rec := h.do(http.MethodPost, "/sonarqube/analyze", token, map[string]string{
		"projectKey": key, "code": "var x = 1", "language": "js",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[struct {
		Message string
		Output  []analyses.Issue
	}](t, rec)
	require.Len(t, out.Output, 1)
	assert.Equal(t, analyses.TypeBug, out.Output[0].Type)
	assert.Equal(t, "no-var", out.Output[0].Rule)
	assert.NotEmpty(t, out.Output[0].SolutionHTML)

	rec = h.do(http.MethodGet, "/projects/results/"+key, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[analyses.Run](t, rec)
	assert.Equal(t, 1, run.IssuesCount)
	assert.Equal(t, 1, run.SeverityCounts.Major)
	assert.Equal(t, "http://sonar.local/dashboard?id="+key, run.DashboardURL)
}

func TestAnalyzeByNameProvisionsOnce(t *testing.T) {
	h := newHarness(t)
	token := h.login("u@test.com")
	body := map[string]string{"projectName": "Scratch", "code": "x = 1", "language": "py"}

	for i := 0; i < 2; i++ {
		rec := h.do(http.MethodPost, "/sonarqube/analyze", token, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := h.do(http.MethodGet, "/projects", token, nil)
	list := decode[struct{ Projects []map[string]any }](t, rec)
	assert.Len(t, list.Projects, 1)
	assert.Len(t, h.eng.Created, 1)
}

func TestAnalyzeFailureMapping(t *testing.T) {
	h := newHarness(t)
	token := h.login("u@test.com")
	key := h.createProject(token, "Demo")
	h.runner.result = scans.RunResult{ExitCode: 1, Stderr: "ERROR: You're not authorized"}

	rec := h.do(http.MethodPost, "/sonarqube/analyze", token, map[string]string{"projectKey": key, "code": "x", "language": "js"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	e := decode[errorBody](t, rec)
	assert.Equal(t, "scanner execution failed", e.Error)
	assert.Equal(t, "ERROR: You're not authorized", e.Details)

	rec = h.do(http.MethodGet, "/projects/"+key+"/errors", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	errs := decode[struct {
		Errors []struct{ Reason, Phase string }
	}](t, rec)
	require.Len(t, errs.Errors, 1)
	assert.Equal(t, "ScanExecutionFailed", errs.Errors[0].Reason)
	assert.Equal(t, "scan", errs.Errors[0].Phase)

	rec = h.do(http.MethodGet, "/projects/results/"+key, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeInvalidCredential(t *testing.T) {
	h := newHarness(t)
	token := h.login("u@test.com")
	key := h.createProject(token, "Demo")
	h.eng.Valid = false

	rec := h.do(http.MethodPost, "/sonarqube/analyze", token, map[string]string{"projectKey": key, "code": "x", "language": "js"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "analysis engine credential is invalid", decode[errorBody](t, rec).Error)
	assert.Zero(t, h.runner.calls)
}

func TestAnalyzeValidation(t *testing.T) {
	h := newHarness(t)
	token := h.login("u@test.com")

	rec := h.do(http.MethodPost, "/sonarqube/analyze", token, map[string]string{"projectKey": "k", "language": "js"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/sonarqube/analyze", token, map[string]string{"code": "x", "language": "js"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, h.runner.calls)
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)
	token := h.login("u@test.com")

	rec := h.do(http.MethodGet, "/auth/validate", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["valid"])

	rec = h.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "u@test.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "token")

	rec = h.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ghost@test.com", "password": "pw123456"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "u@test.com", "password": "pw123456"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "not-an-email", "password": "pw123456"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/auth/validate", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodGet, "/auth/validate", "garbage", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestProjectsAreScopedToOwner(t *testing.T) {
	h := newHarness(t)
	alice := h.login("alice@test.com")
	bob := h.login("bob@test.com")
	first := h.createProject(alice, "First")
	second := h.createProject(alice, "Second")
	h.createProject(bob, "Bobs")

	rec := h.do(http.MethodGet, "/projects", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Projects []struct {
			ProjectKey string `json:"projectKey"`
		}
	}](t, rec)
	require.Len(t, list.Projects, 2)
	keys := []string{list.Projects[0].ProjectKey, list.Projects[1].ProjectKey}
	assert.ElementsMatch(t, []string{first, second}, keys)

	rec = h.do(http.MethodDelete, "/projects/"+first, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = h.do(http.MethodGet, "/projects/metrics?projectKey="+first, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodDelete, "/projects/"+first, alice, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, h.eng.Deleted)
}

func TestCreateProjectBlankName(t *testing.T) {
	h := newHarness(t)
	token := h.login("u@test.com")

	rec := h.do(http.MethodPost, "/projects", token, map[string]string{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, h.eng.Created)
}

func TestResultsEndpoints(t *testing.T) {
	h := newHarness(t)
	token := h.login("u@test.com")
	key := h.createProject(token, "Demo")

	rec := h.do(http.MethodGet, "/projects/results/"+key, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodPost, "/projects/results/"+key, token, map[string]any{"issues": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	issue := analyses.Issue{Key: "I1", Rule: "r", Severity: analyses.SeverityBlocker, Type: analyses.TypeVulnerability, Component: key + ":f.js"}
	rec = h.do(http.MethodPost, "/projects/results/project_unknown", token, map[string]any{"issues": []analyses.Issue{issue}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodPost, "/projects/results/"+key, token, map[string]any{"issues": []analyses.Issue{issue}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[analyses.Run](t, rec).SeverityCounts.Blocker)

	rec = h.do(http.MethodPost, "/projects/results/"+key+"/review", token, nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestReviewEnabled(t *testing.T) {
	h := newHarness(t)
	h.deps.AI = appai.NewService(h.deps.Projects, stubReviewer{}, application.SystemClock{}, nil)
	h.handler = NewRouter(h.deps)
	token := h.login("u@test.com")
	key := h.createProject(token, "Demo")
	issue := analyses.Issue{Key: "I1", Rule: "r", Severity: analyses.SeverityMinor, Type: analyses.TypeCodeSmell, Component: key + ":f.js"}
	rec := h.do(http.MethodPost, "/projects/results/"+key, token, map[string]any{"issues": []analyses.Issue{issue}})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(http.MethodPost, "/projects/results/"+key+"/review", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Use const.", decode[appai.Review](t, rec).Review)
}

func TestEngineEndpointsArePublic(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/sonarqube/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "UP", decode[map[string]any](t, rec)["status"])

	rec = h.do(http.MethodGet, "/sonarqube/languages", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	langs := decode[struct{ Languages []engine.Language }](t, rec)
	require.Len(t, langs.Languages, 1)
	assert.Equal(t, "js", langs.Languages[0].Key)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = h.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "codescan_http_request_duration_seconds")
}

func TestAnalyzeRateLimit(t *testing.T) {
	h := newHarness(t)
	limit, err := middleware.NewUserRateLimiter("1-M")
	require.NoError(t, err)
	h.deps.AnalyzeLimit = limit
	h.handler = NewRouter(h.deps)
	token := h.login("u@test.com")
	body := map[string]string{"projectName": "Demo", "code": "x", "language": "js"}

	assert.Equal(t, http.StatusOK, h.do(http.MethodPost, "/sonarqube/analyze", token, body).Code)
	assert.Equal(t, http.StatusTooManyRequests, h.do(http.MethodPost, "/sonarqube/analyze", token, body).Code)
}

func TestMalformedBody(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("{oops"))
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid JSON body", decode[errorBody](t, rec).Error)
}

package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bryanwahyu/codescan/internal/application/analysis"
	"github.com/bryanwahyu/codescan/internal/domain/analyses"
	"github.com/bryanwahyu/codescan/internal/domain/apperr"
	"github.com/bryanwahyu/codescan/internal/domain/users"
	"github.com/bryanwahyu/codescan/internal/middleware"
)

type credentialsBody struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

// POST /auth/register
func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) error {
	var body credentialsBody
	if err := r.decode(req, &body); err != nil {
		return err
	}
	if _, err := r.Auth.Register(req.Context(), body.Email, body.Password); err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, map[string]string{"message": "user registered"})
}

// POST /auth/login
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) error {
	var body credentialsBody
	if err := r.decode(req, &body); err != nil {
		return err
	}
	token, err := r.Auth.Login(req.Context(), body.Email, body.Password)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]string{"message": "login successful", "token": token})
}

// GET /auth/validate
func (r *Router) handleValidate(w http.ResponseWriter, req *http.Request) error {
	uid, _ := middleware.UserIDFromContext(req.Context())
	return writeJSON(w, http.StatusOK, map[string]any{"valid": true, "userId": uid})
}

// POST /projects
func (r *Router) handleCreateProject(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Name string `json:"name" validate:"notblank,max=200"`
	}
	if err := r.decode(req, &body); err != nil {
		return err
	}
	p, err := r.Projects.Create(req.Context(), owner(req), middleware.SanitizeString(body.Name))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, map[string]any{"message": "project created", "project": p})
}

// GET /projects
func (r *Router) handleListProjects(w http.ResponseWriter, req *http.Request) error {
	list, err := r.Projects.List(req.Context(), owner(req))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"projects": list})
}

// GET /projects/metrics?projectKey=
func (r *Router) handleProjectMetrics(w http.ResponseWriter, req *http.Request) error {
	m, err := r.Projects.Metrics(req.Context(), owner(req), req.URL.Query().Get("projectKey"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, m)
}

// DELETE /projects/{projectKey}
func (r *Router) handleDeleteProject(w http.ResponseWriter, req *http.Request) error {
	if err := r.Projects.Delete(req.Context(), owner(req), chi.URLParam(req, "projectKey")); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]string{"message": "project deleted"})
}

// GET /projects/{projectKey}/errors?limit=
func (r *Router) handleProjectErrors(w http.ResponseWriter, req *http.Request) error {
	list, err := r.Projects.Errors(req.Context(), owner(req), chi.URLParam(req, "projectKey"), queryLimit(req))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"errors": list})
}

// POST /projects/results/{projectKey}
func (r *Router) handleSaveResults(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Issues []analyses.Issue `json:"issues"`
	}
	if err := r.decode(req, &body); err != nil {
		return err
	}
	run, err := r.Projects.SaveResults(req.Context(), owner(req), chi.URLParam(req, "projectKey"), body.Issues)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, run)
}

// GET /projects/results/{projectKey}
func (r *Router) handleLatestResults(w http.ResponseWriter, req *http.Request) error {
	run, err := r.Projects.Latest(req.Context(), owner(req), chi.URLParam(req, "projectKey"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, run)
}

// POST /projects/results/{projectKey}/review
func (r *Router) handleReview(w http.ResponseWriter, req *http.Request) error {
	if r.AI == nil || !r.AI.Enabled() {
		return apperr.NotImplemented("ai review is not configured")
	}
	review, err := r.AI.Review(req.Context(), owner(req), chi.URLParam(req, "projectKey"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, review)
}

// GET /sonarqube/status
func (r *Router) handleEngineStatus(w http.ResponseWriter, req *http.Request) error {
	st, err := r.Engine.SystemStatus(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, st)
}

// GET /sonarqube/languages
func (r *Router) handleLanguages(w http.ResponseWriter, req *http.Request) error {
	langs, err := r.Engine.Languages(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"languages": langs})
}

// POST /sonarqube/analyze
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		ProjectKey  string `json:"projectKey" validate:"omitempty,projectkey"`
		ProjectName string `json:"projectName" validate:"max=200"`
		Code        string `json:"code" validate:"notblank"`
		Language    string `json:"language" validate:"notblank,max=32"`
	}
	if err := r.decode(req, &body); err != nil {
		return err
	}
	res, err := r.Analysis.Analyze(req.Context(), analysis.AnalyzeCommand{
		Owner:       owner(req),
		ProjectKey:  body.ProjectKey,
		ProjectName: middleware.SanitizeString(body.ProjectName),
		Code:        body.Code,
		Language:    body.Language,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"message":        "analysis completed",
		"projectKey":     res.Project.Key,
		"projectCreated": res.Created,
		"runId":          res.Run.ID,
		"dashboardUrl":   res.Run.DashboardURL,
		"output":         res.Run.Issues,
	})
}

func owner(req *http.Request) users.UserID {
	uid, _ := middleware.UserIDFromContext(req.Context())
	return uid
}

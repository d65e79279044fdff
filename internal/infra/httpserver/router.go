package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appai "github.com/bryanwahyu/codescan/internal/application/ai"
	"github.com/bryanwahyu/codescan/internal/application/analysis"
	appauth "github.com/bryanwahyu/codescan/internal/application/auth"
	appprojects "github.com/bryanwahyu/codescan/internal/application/projects"
	"github.com/bryanwahyu/codescan/internal/domain/apperr"
	"github.com/bryanwahyu/codescan/internal/domain/engine"
	"github.com/bryanwahyu/codescan/internal/middleware"
)

const maxBodyBytes = 1 << 20

// Deps are the collaborators the router serves. Metrics, Health, AnalyzeLimit
// and AI are optional.
type Deps struct {
	Auth     *appauth.Service
	Projects *appprojects.Service
	Analysis *analysis.Service
	AI       *appai.Service
	Engine   engine.Engine

	Metrics      *middleware.Metrics
	Health       map[string]middleware.HealthChecker
	AnalyzeLimit func(http.Handler) http.Handler
	CORSOrigins  []string
	Development  bool
	Log          *zap.Logger
}

type Router struct {
	Deps
	validate *middleware.Validator
}

func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	r := &Router{Deps: d, validate: middleware.NewValidator()}

	mux := chi.NewRouter()
	mux.Use(chimid.RequestID)
	mux.Use(chimid.RealIP)
	mux.Use(middleware.RequestLogger(d.Log))
	mux.Use(chimid.Recoverer)
	if d.Metrics != nil {
		mux.Use(d.Metrics.Middleware)
	}
	mux.Use(middleware.NewSecure(middleware.SecureOptions(d.Development)))
	mux.Use(cors.Handler(corsOptions(d.CORSOrigins)))

	mux.Get("/health", middleware.HealthHandler(d.Health))
	if d.Metrics != nil {
		mux.Handle("/metrics", d.Metrics.Handler())
	}

	auth := middleware.BearerAuth(d.Auth)

	mux.Route("/auth", func(rt chi.Router) {
		rt.Post("/register", r.wrap(r.handleRegister))
		rt.Post("/login", r.wrap(r.handleLogin))
		rt.With(auth).Get("/validate", r.wrap(r.handleValidate))
	})

	mux.Route("/projects", func(rt chi.Router) {
		rt.Use(auth)
		rt.Post("/", r.wrap(r.handleCreateProject))
		rt.Get("/", r.wrap(r.handleListProjects))
		rt.Get("/metrics", r.wrap(r.handleProjectMetrics))
		rt.Delete("/{projectKey}", r.wrap(r.handleDeleteProject))
		rt.Get("/{projectKey}/errors", r.wrap(r.handleProjectErrors))
		rt.Post("/results/{projectKey}", r.wrap(r.handleSaveResults))
		rt.Get("/results/{projectKey}", r.wrap(r.handleLatestResults))
		rt.Post("/results/{projectKey}/review", r.wrap(r.handleReview))
	})

	mux.Route("/sonarqube", func(rt chi.Router) {
		rt.Get("/status", r.wrap(r.handleEngineStatus))
		rt.Get("/languages", r.wrap(r.handleLanguages))
		rt.Group(func(rt chi.Router) {
			rt.Use(auth)
			if d.AnalyzeLimit != nil {
				rt.Use(d.AnalyzeLimit)
			}
			rt.Post("/analyze", r.wrap(r.handleAnalyze))
		})
	})

	return mux
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id", "X-RateLimit-Remaining"},
		MaxAge:         300,
	}
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap converts a handler error into {error, details} with the kind's status.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status, msg, details := r.describe(err)
		if status >= http.StatusInternalServerError {
			r.Log.Error("request failed",
				zap.String("path", req.URL.Path),
				zap.String("request_id", chimid.GetReqID(req.Context())),
				zap.Error(err),
			)
		}
		middleware.WriteError(w, status, msg, details)
	}
}

func (r *Router) describe(err error) (int, string, string) {
	kind := apperr.KindOf(err)
	var f *analysis.Failure
	if errors.As(err, &f) {
		return f.Kind().HTTPStatus(), f.Message(), f.Details
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Kind.HTTPStatus(), ae.Message, ae.Details
	}
	if kind != apperr.KindUnknown {
		return kind.HTTPStatus(), err.Error(), ""
	}
	return http.StatusInternalServerError, "internal server error", ""
}

// decode reads a JSON body into v and validates it.
func (r *Router) decode(req *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid JSON body").WithDetails(err.Error())
	}
	return r.validate.Struct(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func queryLimit(req *http.Request) int {
	n, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	return middleware.ValidateLimit(n)
}

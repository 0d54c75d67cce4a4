package app

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	audithttp "github.com/hrdesk/hrdesk/internal/audit/http"
	"github.com/hrdesk/hrdesk/internal/auth"
	"github.com/hrdesk/hrdesk/internal/leave"
	"github.com/hrdesk/hrdesk/internal/observability"
	"github.com/hrdesk/hrdesk/internal/platform/httpx"
	"github.com/hrdesk/hrdesk/internal/rbac"
	"github.com/hrdesk/hrdesk/internal/reports"
	"github.com/hrdesk/hrdesk/internal/users"
	"github.com/hrdesk/hrdesk/jobs"
	"github.com/hrdesk/hrdesk/web"
)

// HealthCheck probes one backing service.
type HealthCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Gate               rbac.Gate
	Metrics            *observability.Metrics
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	LeaveHandler       *leave.Handler
	ReportsHandler     *reports.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         *jobs.Handler
	AuditHandler       *audithttp.Handler
	HealthChecks       map[string]HealthCheck
}

// pagePaths are served the SPA shell; the gate has already authorised them.
var pagePaths = []string{
	"/",
	"/login",
	"/signup",
	"/forgot-password",
	"/unauthorized",
	"/dashboard",
	"/profile",
	"/reports",
	"/leave-requests",
	"/leave-requests/*",
	"/users",
	"/users/*",
	"/departments",
	"/departments/*",
	"/settings",
	"/settings/*",
}

// NewRouter constructs the chi.Router with HR Desk defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Gate:    params.Gate,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthHandler(params.HealthChecks))

	authLimit := AuthRateLimit(params.Config)
	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", func(r chi.Router) {
				r.Use(authLimit)
				params.AuthHandler.MountRoutes(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(authLimit)
				params.AuthHandler.MountPublicRoutes(r)
			})
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.LeaveHandler != nil {
			r.Route("/leave-requests", params.LeaveHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			params.PermissionsHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httpx.Fail(w, http.StatusNotFound, "Not found")
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			httpx.Fail(w, http.StatusMethodNotAllowed, "Method not allowed")
		})
	})

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
		return r
	}
	fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
	r.Handle("/static/*", staticCacheHandler(fileServer))

	shell := spaHandler(staticFS, params.Logger)
	for _, path := range pagePaths {
		r.Get(path, shell)
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}

func spaHandler(static fs.FS, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := fs.ReadFile(static, "index.html")
		if err != nil {
			logger.Error("read spa shell", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(page)
	}
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		httpx.JSON(w, code, map[string]any{"status": statusWord(healthy), "checks": status})
	}
}

func statusWord(healthy bool) string {
	if healthy {
		return "ok"
	}
	return "degraded"
}

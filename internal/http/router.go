package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mandoub-backend/internal/handlers"
	"mandoub-backend/internal/live"
	"mandoub-backend/internal/middleware"
	"mandoub-backend/internal/proxy"
)

// Handlers groups the app server's HTTP handlers.
type Handlers struct {
	Submissions     *handlers.SubmissionHandler
	Representatives *handlers.RepresentativeHandler
	Settings        *handlers.SettingsHandler
	Auth            *handlers.AuthHandler
	Admin           *handlers.AdminHandler
	Health          *handlers.HealthHandler
	Feed            *live.Hub
}

// NewRouter creates the app server router. Reads and new submissions are
// public; anything that mutates or clears existing data requires an admin token.
func NewRouter(h Handlers, authMiddleware *middleware.AuthMiddleware) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware, middleware.RequestLogger)

	admin := func(fn http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(authMiddleware.RequireAdmin(fn))
	}

	// Public API routes - Authentication
	r.HandleFunc("/auth/login", h.Auth.Login).Methods("POST")

	// Submissions
	r.HandleFunc("/api/submissions", h.Submissions.Create).Methods("POST")
	r.HandleFunc("/api/submissions", h.Submissions.List).Methods("GET")
	r.Handle("/api/submissions", admin(h.Submissions.DeleteAll)).Methods("DELETE")
	r.Handle("/api/submissions/person/{name}", admin(h.Submissions.DeletePerson)).Methods("DELETE")
	r.Handle("/api/submissions/{id}", admin(h.Submissions.Delete)).Methods("DELETE")
	r.HandleFunc("/api/statistics", h.Submissions.Statistics).Methods("GET")

	// Representatives
	r.HandleFunc("/api/representatives", h.Representatives.Create).Methods("POST")
	r.HandleFunc("/api/representatives", h.Representatives.List).Methods("GET")
	r.Handle("/api/representatives", admin(h.Representatives.DeleteAll)).Methods("DELETE")
	r.Handle("/api/representatives/{id}", admin(h.Representatives.Update)).Methods("PUT")
	r.Handle("/api/representatives/{id}", admin(h.Representatives.Delete)).Methods("DELETE")

	// Settings
	r.Handle("/api/settings", admin(h.Settings.Get)).Methods("GET")
	r.Handle("/api/settings", admin(h.Settings.Save)).Methods("PUT")
	r.Handle("/api/settings/password", admin(h.Settings.ChangePassword)).Methods("PUT")
	r.HandleFunc("/api/form-settings", h.Settings.GetForm).Methods("GET")
	r.Handle("/api/form-settings", admin(h.Settings.SaveForm)).Methods("PUT")

	// Admin tools
	adminAPI := r.PathPrefix("/api/admin").Subrouter()
	adminAPI.Use(authMiddleware.Authenticate, authMiddleware.RequireAdmin)
	adminAPI.HandleFunc("/drift", h.Admin.Drift).Methods("GET")
	adminAPI.HandleFunc("/outbox", h.Admin.Outbox).Methods("GET")

	// Live feed
	if h.Feed != nil {
		r.HandleFunc("/ws/feed", h.Feed.ServeWS).Methods("GET")
	}

	// Health endpoints (no auth required - for Kubernetes probes)
	r.HandleFunc("/health", h.Health.BasicHealth).Methods("GET")
	r.HandleFunc("/api/health", h.Health.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", h.Health.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", h.Health.DetailedHealth).Methods("GET")

	// Metrics endpoint (Prometheus format)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// NewProxyRouter creates the router for the store B proxy.
func NewProxyRouter(proxyHandler *proxy.Handler, resource string) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware, middleware.RequestLogger)

	proxyHandler.Register(r, resource)

	r.HandleFunc("/health", proxyHandler.Health).Methods("GET")
	r.HandleFunc("/api/health", proxyHandler.Health).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())

	return r
}

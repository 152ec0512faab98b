package handler

import (
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
)

func (h *Handler) Routes(staticFS fs.FS, loginRL, issueRL *RateLimiter) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	csrfProtect := csrf.Protect(
		[]byte(h.Cfg.SessionSecret),
		csrf.Secure(strings.HasPrefix(h.Cfg.BaseURL, "https")),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
	)
	r.Use(func(next http.Handler) http.Handler {
		protected := csrfProtect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// JSON API and gateway webhooks authenticate without
			// browser forms; CSRF tokens do not apply there.
			if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/webhooks/") {
				next.ServeHTTP(w, r)
				return
			}
			protected.ServeHTTP(w, r)
		})
	})

	r.Handle("/static/*", http.StripPrefix("/static/",
		http.FileServer(http.FS(staticFS))))

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())

	r.Post("/webhooks/payment", h.PaymentWebhook)

	// Public routes (rate-limited)
	r.Group(func(r chi.Router) {
		r.Use(loginRL.Middleware)
		r.Get("/login", h.LoginForm)
		r.Post("/login", h.LoginSubmit)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		})
		r.Post("/logout", h.Logout)

		r.Get("/watch/{token}", h.WatchPage)

		r.Group(func(r chi.Router) {
			r.Use(issueRL.PerAccount)
			r.Post("/api/video/token", h.IssueToken)
		})
		r.Post("/api/video/validate", h.ValidateToken)
		r.Post("/api/video/heartbeat", h.Heartbeat)

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Post("/revoke", h.AdminRevoke)
			r.Get("/tokens", h.AdminTokens)
			r.Get("/audit", h.AdminAudit)
		})
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

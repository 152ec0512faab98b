package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/avela/coursegate/internal/config"
	"github.com/avela/coursegate/internal/hosting"
	"github.com/avela/coursegate/internal/metrics"
	"github.com/avela/coursegate/internal/videotoken"
)

type Handler struct {
	DB      *sql.DB
	Cfg     *config.Config
	Tokens  *videotoken.Service
	Embeds  hosting.Provider
	Metrics *metrics.Collector

	templates map[string]*template.Template
	player    *template.Template
}

func New(database *sql.DB, cfg *config.Config, tokens *videotoken.Service, embeds hosting.Provider, collector *metrics.Collector, templateFS fs.FS) *Handler {
	funcMap := template.FuncMap{
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02 15:04 UTC")
		},
	}

	// Parse layout template as the base
	layoutTmpl := template.Must(
		template.New("layout.html").Funcs(funcMap).ParseFS(templateFS, "layout.html"),
	)

	// Build per-page template sets: clone layout + parse page. The player
	// document is standalone (no site chrome) and parsed on its own.
	templates := make(map[string]*template.Template)
	entries, err := fs.ReadDir(templateFS, ".")
	if err != nil {
		panic("read template dir: " + err.Error())
	}
	for _, e := range entries {
		name := e.Name()
		if name == "layout.html" || name == "player.html" || e.IsDir() {
			continue
		}
		t := template.Must(template.Must(layoutTmpl.Clone()).ParseFS(templateFS, name))
		templates[name] = t
	}

	player := template.Must(template.New("player.html").Funcs(funcMap).ParseFS(templateFS, "player.html"))

	return &Handler{
		DB:        database,
		Cfg:       cfg,
		Tokens:    tokens,
		Embeds:    embeds,
		Metrics:   collector,
		templates: templates,
		player:    player,
	}
}

type PageData struct {
	Title         string
	Authenticated bool
	IsAdmin       bool
	UserName      string
	Error         string
	CSRF          template.HTML
	Data          interface{}
}

func (h *Handler) render(w http.ResponseWriter, name string, data PageData) {
	t, ok := h.templates[name]
	if !ok {
		slog.Error("template not found", "name", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "layout.html", data); err != nil {
		slog.Error("render template", "name", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// writeTokenError maps a videotoken failure kind to its status and stable
// machine code. Unknown errors are logged and surfaced as 500.
func writeTokenError(w http.ResponseWriter, err error) string {
	status, code := tokenErrorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("token operation", "error", err)
		writeError(w, status, code, "internal error")
		return code
	}
	writeError(w, status, code, err.Error())
	return code
}

func tokenErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, videotoken.ErrNoEnrollment):
		return http.StatusForbidden, "NO_ENROLLMENT"
	case errors.Is(err, videotoken.ErrConcurrentSession):
		return http.StatusConflict, "CONCURRENT_SESSION"
	case errors.Is(err, videotoken.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, videotoken.ErrExpired):
		return http.StatusGone, "EXPIRED"
	case errors.Is(err, videotoken.ErrExhausted):
		return http.StatusGone, "EXHAUSTED"
	case errors.Is(err, videotoken.ErrRevoked):
		return http.StatusGone, "REVOKED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/avela/coursegate/internal/auth"
	"github.com/avela/coursegate/internal/db"
)

// embedTimeout caps the hosting-provider call; past it the player renders
// degraded rather than failing the request.
const embedTimeout = 2 * time.Second

type playerData struct {
	LessonTitle    string
	WatermarkEmail string
	RemainingViews int
	ExpiresAt      time.Time
	Token          string
	EmbedURL       string
	Degraded       bool
}

// WatchPage is the consuming endpoint the video element points at. It spends
// one view (validation strictly first), obtains a separately-expiring embed
// reference, and renders the locked-down player document. The raw video id
// never appears in the page; it travels inside the signed embed credential.
func (h *Handler) WatchPage(w http.ResponseWriter, r *http.Request) {
	tokenStr := chi.URLParam(r, "token")
	accountID := auth.AccountFromContext(r.Context())

	token, err := h.Tokens.Consume(tokenStr, accountID)
	if err != nil {
		code := writeTokenError(w, err)
		h.Metrics.Resolutions.WithLabelValues(code).Inc()
		return
	}

	lesson, err := db.GetLesson(h.DB, token.LessonID)
	if err != nil || lesson == nil {
		slog.Error("load lesson for playback", "lesson", token.LessonID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	data := playerData{
		LessonTitle:    lesson.Title,
		WatermarkEmail: auth.EmailFromContext(r.Context()),
		RemainingViews: token.RemainingViews(),
		ExpiresAt:      token.ExpiresAt,
		Token:          token.Token,
	}

	ctx, cancel := context.WithTimeout(r.Context(), embedTimeout)
	defer cancel()
	ref, err := h.Embeds.SignedEmbed(ctx, lesson.VideoID)
	if err != nil {
		// Degraded render: watermark and chrome still go out, the
		// embed slot stays empty.
		slog.Warn("hosting provider unavailable", "lesson", lesson.ID, "error", err)
		data.Degraded = true
		h.Metrics.Resolutions.WithLabelValues("DEGRADED").Inc()
	} else {
		data.EmbedURL = ref.EmbedURL
		h.Metrics.Resolutions.WithLabelValues("OK").Inc()
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.player.ExecuteTemplate(w, "player.html", data); err != nil {
		slog.Error("render player", "error", err)
	}
}

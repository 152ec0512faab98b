package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/avela/coursegate/internal/auth"
	"github.com/avela/coursegate/internal/db"
)

type revokeRequest struct {
	TokenID string `json:"tokenId"`
	Reason  string `json:"reason"`
}

func (h *Handler) AdminRevoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TokenID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "tokenId is required")
		return
	}
	if req.Reason == "" {
		req.Reason = "revoked by administrator"
	}

	adminID := auth.AccountFromContext(r.Context())
	if err := h.Tokens.Revoke(req.TokenID, req.Reason, adminID, realIP(r)); err != nil {
		writeTokenError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type adminToken struct {
	ID             string  `json:"id"`
	LessonID       string  `json:"lessonId"`
	LessonTitle    string  `json:"lessonTitle"`
	CourseSlug     string  `json:"courseSlug"`
	ViewCount      int     `json:"viewCount"`
	MaxViews       int     `json:"maxViews"`
	IsRevoked      bool    `json:"isRevoked"`
	RevokedReason  string  `json:"revokedReason,omitempty"`
	CreatedAt      string  `json:"createdAt"`
	ExpiresAt      string  `json:"expiresAt"`
	LastUsedAt     *string `json:"lastUsedAt,omitempty"`
}

func (h *Handler) AdminTokens(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "account query parameter is required")
		return
	}

	tokens, err := db.ListVideoTokensByAccount(h.DB, accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	out := make([]adminToken, 0, len(tokens))
	for _, t := range tokens {
		at := adminToken{
			ID:            t.ID,
			LessonID:      t.LessonID,
			LessonTitle:   t.LessonTitle,
			CourseSlug:    t.CourseSlug,
			ViewCount:     t.ViewCount,
			MaxViews:      t.MaxViews,
			IsRevoked:     t.IsRevoked,
			RevokedReason: t.RevokedReason,
			CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339),
			ExpiresAt:     t.ExpiresAt.UTC().Format(time.RFC3339),
		}
		if t.LastUsedAt != nil {
			s := t.LastUsedAt.UTC().Format(time.RFC3339)
			at.LastUsedAt = &s
		}
		out = append(out, at)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) AdminAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}

	logs, err := db.ListAuditLogs(h.DB, limit, offset, r.URL.Query().Get("action"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/avela/coursegate/internal/auth"
	"github.com/avela/coursegate/internal/videotoken"
)

type issueRequest struct {
	LessonID    string `json:"lessonId"`
	CourseID    string `json:"courseId"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

type issueResponse struct {
	Token          string `json:"token"`
	VideoURL       string `json:"videoUrl"`
	ExpiresAt      string `json:"expiresAt"`
	RemainingViews int    `json:"remainingViews"`
}

func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LessonID == "" || req.CourseID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "lessonId and courseId are required")
		return
	}

	accountID := auth.AccountFromContext(r.Context())
	token, err := h.Tokens.Issue(accountID, req.LessonID, req.CourseID, realIP(r), r.UserAgent(), req.Fingerprint)
	if err != nil {
		code := writeTokenError(w, err)
		h.Metrics.IssueFailures.WithLabelValues(code).Inc()
		return
	}
	h.Metrics.TokensIssued.Inc()

	writeJSON(w, http.StatusOK, issueResponse{
		Token:          token.Token,
		VideoURL:       h.Cfg.BaseURL + "/watch/" + token.Token,
		ExpiresAt:      token.ExpiresAt.UTC().Format(time.RFC3339),
		RemainingViews: token.RemainingViews(),
	})
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Valid          bool   `json:"valid"`
	RemainingViews int    `json:"remainingViews"`
	ExpiresAt      string `json:"expiresAt"`
}

func (h *Handler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "token is required")
		return
	}

	token, err := h.Tokens.Validate(req.Token, auth.AccountFromContext(r.Context()))
	if err != nil {
		writeTokenError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{
		Valid:          true,
		RemainingViews: token.RemainingViews(),
		ExpiresAt:      token.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

type heartbeatRequest struct {
	TokenID     string `json:"tokenId"`
	Fingerprint string `json:"fingerprint"`
}

type heartbeatResponse struct {
	Active bool   `json:"active"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TokenID == "" || req.Fingerprint == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "tokenId and fingerprint are required")
		return
	}

	active, reason, err := h.Tokens.Heartbeat(req.TokenID, auth.AccountFromContext(r.Context()), req.Fingerprint)
	if err != nil {
		writeTokenError(w, err)
		return
	}

	result := reason
	if active {
		result = "active"
	}
	h.Metrics.Heartbeats.WithLabelValues(result).Inc()
	if reason == videotoken.ReasonMismatch {
		h.Metrics.SessionEvictions.WithLabelValues("fingerprint_mismatch").Inc()
	}

	status := http.StatusOK
	if reason == videotoken.ReasonUnauthorized {
		status = http.StatusForbidden
	}
	writeJSON(w, status, heartbeatResponse{Active: active, Reason: reason})
}

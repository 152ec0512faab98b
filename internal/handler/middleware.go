package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/avela/coursegate/internal/auth"
	"github.com/avela/coursegate/internal/db"
)

func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := auth.GetSessionID(r, h.Cfg.SessionSecret)
		if !ok {
			h.denyUnauthenticated(w, r)
			return
		}
		session, err := db.GetSession(h.DB, sessionID)
		if err != nil || session == nil || session.ExpiresAt.Before(time.Now()) {
			auth.ClearSessionCookie(w)
			h.denyUnauthenticated(w, r)
			return
		}

		account, err := db.GetAccountByID(h.DB, session.AccountID)
		if err != nil || account == nil || !account.Enabled {
			auth.ClearSessionCookie(w)
			h.denyUnauthenticated(w, r)
			return
		}

		ctx := auth.ContextWithAccount(r.Context(), account.ID, account.Role, account.Email, account.Name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) denyUnauthenticated(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/csrf"

	"github.com/avela/coursegate/internal/auth"
	"github.com/avela/coursegate/internal/db"
	"github.com/avela/coursegate/internal/model"
)

func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login.html", PageData{Title: "Sign in", CSRF: csrf.TemplateField(r)})
}

func (h *Handler) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	account, err := db.GetAccountByEmail(h.DB, email)
	if err != nil || account == nil || !account.Enabled || !auth.CheckPassword(account.PasswordHash, password) {
		h.render(w, "login.html", PageData{Title: "Sign in", Error: "Invalid email or password.", CSRF: csrf.TemplateField(r)})
		return
	}

	session := &model.Session{
		ID:        uuid.New().String(),
		AccountID: account.ID,
		ExpiresAt: time.Now().Add(auth.SessionMaxAge),
	}
	if err := db.CreateSession(h.DB, session); err != nil {
		h.render(w, "login.html", PageData{Title: "Sign in", Error: "Internal error.", CSRF: csrf.TemplateField(r)})
		return
	}

	auth.SetSessionCookie(w, session.ID, h.Cfg.SessionSecret)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID, ok := auth.GetSessionID(r, h.Cfg.SessionSecret); ok {
		db.DeleteSession(h.DB, sessionID)
	}
	auth.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

package handler

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/avela/coursegate/internal/db"
	"github.com/avela/coursegate/internal/model"
)

type paymentEvent struct {
	AccountID string `json:"accountId"`
	CourseID  string `json:"courseId"`
	Provider  string `json:"provider"`
	Reference string `json:"reference"`
}

// PaymentWebhook is the entitlement hand-off from the checkout side: a
// confirmed payment, whichever rail it came in on, becomes an active
// purchase. Gateways retry delivery, so the write is an upsert.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get("X-Webhook-Secret")
	if h.Cfg.PaymentSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(h.Cfg.PaymentSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid webhook secret")
		return
	}

	var ev paymentEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil || ev.AccountID == "" || ev.CourseID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "accountId and courseId are required")
		return
	}

	course, err := db.GetCourse(h.DB, ev.CourseID)
	if err != nil || course == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown course")
		return
	}

	purchase := &model.Purchase{
		ID:        uuid.New().String(),
		AccountID: ev.AccountID,
		CourseID:  ev.CourseID,
		Provider:  ev.Provider,
		Reference: ev.Reference,
		Status:    model.PurchaseActive,
	}
	if err := db.UpsertPurchase(h.DB, purchase); err != nil {
		slog.Error("upsert purchase", "account", ev.AccountID, "course", ev.CourseID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	db.InsertAuditLog(h.DB, ev.AccountID, "purchase.grant", "course", ev.CourseID, ev.Provider+"/"+ev.Reference, realIP(r))
	slog.Info("entitlement granted", "account", ev.AccountID, "course", ev.CourseID, "provider", ev.Provider)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

package db

import (
	"database/sql"

	"github.com/avela/coursegate/internal/model"
)

// UpsertPurchase records a confirmed payment as an active entitlement. A
// repeat confirmation for the same account+course (gateway retries, duplicate
// webhooks) refreshes the existing row instead of failing the unique index.
func UpsertPurchase(database *sql.DB, p *model.Purchase) error {
	_, err := database.Exec(
		`INSERT INTO purchases (id, account_id, course_id, provider, reference, status)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(account_id, course_id)
		 DO UPDATE SET provider = excluded.provider, reference = excluded.reference,
		               status = excluded.status`,
		p.ID, p.AccountID, p.CourseID, p.Provider, p.Reference, p.Status,
	)
	return err
}

// GetActivePurchase returns the active entitlement binding the account to the
// course, or nil when none exists (never purchased, or refunded).
func GetActivePurchase(database *sql.DB, accountID, courseID string) (*model.Purchase, error) {
	p := &model.Purchase{}
	var createdAt SQLiteTime
	err := database.QueryRow(
		`SELECT id, account_id, course_id, provider, reference, status, created_at
		 FROM purchases WHERE account_id = ? AND course_id = ? AND status = ?`,
		accountID, courseID, model.PurchaseActive,
	).Scan(&p.ID, &p.AccountID, &p.CourseID, &p.Provider, &p.Reference, &p.Status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = createdAt.Time
	return p, nil
}

package db

import (
	"database/sql"

	"github.com/avela/coursegate/internal/model"
)

func CreateAccount(database *sql.DB, a *model.Account) error {
	_, err := database.Exec(
		`INSERT INTO accounts (id, email, name, password_hash, role, enabled)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.Name, a.PasswordHash, a.Role, a.Enabled,
	)
	return err
}

func GetAccountByID(database *sql.DB, id string) (*model.Account, error) {
	return scanAccount(database.QueryRow(
		`SELECT id, email, name, password_hash, role, enabled, created_at
		 FROM accounts WHERE id = ?`, id))
}

func GetAccountByEmail(database *sql.DB, email string) (*model.Account, error) {
	return scanAccount(database.QueryRow(
		`SELECT id, email, name, password_hash, role, enabled, created_at
		 FROM accounts WHERE email = ?`, email))
}

func scanAccount(row *sql.Row) (*model.Account, error) {
	a := &model.Account{}
	var createdAt SQLiteTime
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Role, &a.Enabled, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = createdAt.Time
	return a, nil
}

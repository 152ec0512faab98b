// Package testutil provides store fixtures shared by package tests: an
// in-memory database with the real migrations applied, plus seed helpers.
package testutil

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"

	coursegate "github.com/avela/coursegate"
	"github.com/avela/coursegate/internal/db"
	"github.com/avela/coursegate/internal/model"
)

func NewDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.Migrate(database, coursegate.MigrationFS); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

func SeedAccount(t *testing.T, database *sql.DB, email, role string) *model.Account {
	t.Helper()
	a := &model.Account{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: "$2a$10$unusable-hash-for-tests.................",
		Role:         role,
		Enabled:      true,
	}
	if err := db.CreateAccount(database, a); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return a
}

func SeedCourse(t *testing.T, database *sql.DB, slug string) *model.Course {
	t.Helper()
	c := &model.Course{
		ID:    uuid.New().String(),
		Slug:  slug,
		Title: "Course " + slug,
	}
	if err := db.CreateCourse(database, c); err != nil {
		t.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedLesson(t *testing.T, database *sql.DB, courseID, videoID string) *model.Lesson {
	t.Helper()
	l := &model.Lesson{
		ID:       uuid.New().String(),
		CourseID: courseID,
		Title:    "Lesson " + videoID,
		VideoID:  videoID,
		Position: 1,
	}
	if err := db.CreateLesson(database, l); err != nil {
		t.Fatalf("seed lesson: %v", err)
	}
	return l
}

func SeedPurchase(t *testing.T, database *sql.DB, accountID, courseID string) *model.Purchase {
	t.Helper()
	p := &model.Purchase{
		ID:        uuid.New().String(),
		AccountID: accountID,
		CourseID:  courseID,
		Provider:  "card",
		Reference: "test-charge",
		Status:    model.PurchaseActive,
	}
	if err := db.UpsertPurchase(database, p); err != nil {
		t.Fatalf("seed purchase: %v", err)
	}
	return p
}

package model

import "time"

type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	Enabled      bool
	CreatedAt    time.Time
}

type Session struct {
	ID        string
	AccountID string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Course struct {
	ID        string
	Slug      string
	Title     string
	CreatedAt time.Time
}

type Lesson struct {
	ID       string
	CourseID string
	Title    string
	VideoID  string
	Position int
}

// Purchase is the entitlement record: one active row grants the account
// playback rights over every lesson of the course.
type Purchase struct {
	ID        string
	AccountID string
	CourseID  string
	Provider  string
	Reference string
	Status    string
	CreatedAt time.Time
}

const (
	PurchaseActive   = "ACTIVE"
	PurchaseRefunded = "REFUNDED"
)

// VideoToken is one grant of playback rights: an opaque capability string
// bounded by expiry and a view budget. Rows are kept forever for audit.
type VideoToken struct {
	ID            string
	Token         string
	AccountID     string
	LessonID      string
	CourseID      string
	MaxViews      int
	ViewCount     int
	IsRevoked     bool
	RevokedAt     *time.Time
	RevokedReason string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	LastUsedAt    *time.Time
}

func (t *VideoToken) RemainingViews() int {
	if n := t.MaxViews - t.ViewCount; n > 0 {
		return n
	}
	return 0
}

// VideoSession is the live playback claim for a token. At most one row per
// token; reclaimed once the last heartbeat falls outside the liveness window.
type VideoSession struct {
	TokenID       string
	AccountID     string
	Fingerprint   string
	LastHeartbeat time.Time
}

type TokenWithLesson struct {
	VideoToken
	LessonTitle string
	CourseSlug  string
}

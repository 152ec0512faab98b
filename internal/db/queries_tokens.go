package db

import (
	"database/sql"
	"time"

	"github.com/avela/coursegate/internal/model"
)

func CreateVideoToken(database *sql.DB, t *model.VideoToken) error {
	_, err := database.Exec(
		`INSERT INTO video_tokens (id, token, account_id, lesson_id, course_id, max_views, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Token, t.AccountID, t.LessonID, t.CourseID, t.MaxViews,
		t.ExpiresAt.UTC().Format(time.RFC3339),
	)
	return err
}

const videoTokenCols = `id, token, account_id, lesson_id, course_id, max_views, view_count,
	 is_revoked, revoked_at, revoked_reason, created_at, expires_at, last_used_at`

// GetVideoToken looks a token up by its opaque capability string.
func GetVideoToken(database *sql.DB, token string) (*model.VideoToken, error) {
	return scanVideoToken(database.QueryRow(
		`SELECT `+videoTokenCols+` FROM video_tokens WHERE token = ?`, token))
}

func GetVideoTokenByID(database *sql.DB, id string) (*model.VideoToken, error) {
	return scanVideoToken(database.QueryRow(
		`SELECT `+videoTokenCols+` FROM video_tokens WHERE id = ?`, id))
}

func scanVideoToken(row *sql.Row) (*model.VideoToken, error) {
	t := &model.VideoToken{}
	var revokedReason *string
	var revokedAt, lastUsedAt *string
	var createdAt, expiresAt SQLiteTime
	err := row.Scan(&t.ID, &t.Token, &t.AccountID, &t.LessonID, &t.CourseID,
		&t.MaxViews, &t.ViewCount, &t.IsRevoked, &revokedAt, &revokedReason,
		&createdAt, &expiresAt, &lastUsedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.CreatedAt = createdAt.Time
	t.ExpiresAt = expiresAt.Time
	if revokedReason != nil {
		t.RevokedReason = *revokedReason
	}
	if revokedAt != nil {
		pt, _ := time.Parse(time.RFC3339, *revokedAt)
		t.RevokedAt = &pt
	}
	if lastUsedAt != nil {
		pt, _ := time.Parse(time.RFC3339, *lastUsedAt)
		t.LastUsedAt = &pt
	}
	return t, nil
}

// ConsumeView atomically spends one view. The WHERE clause re-checks every
// usability condition so a racing revocation, expiry, or final view can never
// be double-spent; matched == false means the caller must re-read the row to
// classify which condition failed.
func ConsumeView(database *sql.DB, id string, now time.Time) (newCount int, matched bool, err error) {
	ts := now.UTC().Format(time.RFC3339)
	err = database.QueryRow(
		`UPDATE video_tokens
		 SET view_count = view_count + 1, last_used_at = ?
		 WHERE id = ? AND is_revoked = 0 AND expires_at > ? AND view_count < max_views
		 RETURNING view_count`,
		ts, id, ts,
	).Scan(&newCount)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return newCount, true, nil
}

func RevokeVideoToken(database *sql.DB, id, reason string, now time.Time) error {
	_, err := database.Exec(
		`UPDATE video_tokens SET is_revoked = 1, revoked_at = ?, revoked_reason = ?
		 WHERE id = ?`,
		now.UTC().Format(time.RFC3339), reason, id,
	)
	return err
}

func ListVideoTokensByAccount(database *sql.DB, accountID string) ([]model.TokenWithLesson, error) {
	rows, err := database.Query(
		`SELECT t.id, t.token, t.account_id, t.lesson_id, t.course_id, t.max_views,
		   t.view_count, t.is_revoked, t.revoked_at, t.revoked_reason, t.created_at,
		   t.expires_at, t.last_used_at, l.title, c.slug
		 FROM video_tokens t
		 JOIN lessons l ON l.id = t.lesson_id
		 JOIN courses c ON c.id = t.course_id
		 WHERE t.account_id = ?
		 ORDER BY t.created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []model.TokenWithLesson
	for rows.Next() {
		var tw model.TokenWithLesson
		var revokedReason, revokedAt, lastUsedAt *string
		var createdAt, expiresAt SQLiteTime
		err := rows.Scan(&tw.ID, &tw.Token, &tw.AccountID, &tw.LessonID, &tw.CourseID,
			&tw.MaxViews, &tw.ViewCount, &tw.IsRevoked, &revokedAt, &revokedReason,
			&createdAt, &expiresAt, &lastUsedAt, &tw.LessonTitle, &tw.CourseSlug)
		if err != nil {
			return nil, err
		}
		tw.CreatedAt = createdAt.Time
		tw.ExpiresAt = expiresAt.Time
		if revokedReason != nil {
			tw.RevokedReason = *revokedReason
		}
		if revokedAt != nil {
			t, _ := time.Parse(time.RFC3339, *revokedAt)
			tw.RevokedAt = &t
		}
		if lastUsedAt != nil {
			t, _ := time.Parse(time.RFC3339, *lastUsedAt)
			tw.LastUsedAt = &t
		}
		tokens = append(tokens, tw)
	}
	return tokens, rows.Err()
}

package db

import (
	"database/sql"
	"time"

	"github.com/avela/coursegate/internal/model"
)

// CreateVideoSession inserts the live playback claim for a token. The UNIQUE
// constraint on token_id rejects a second claim for the same token.
func CreateVideoSession(database *sql.DB, s *model.VideoSession) error {
	_, err := database.Exec(
		`INSERT INTO video_sessions (token_id, account_id, fingerprint, last_heartbeat)
		 VALUES (?, ?, ?, ?)`,
		s.TokenID, s.AccountID, s.Fingerprint, s.LastHeartbeat.UTC().Format(time.RFC3339),
	)
	return err
}

func GetVideoSession(database *sql.DB, tokenID string) (*model.VideoSession, error) {
	s := &model.VideoSession{}
	var lastHeartbeat SQLiteTime
	err := database.QueryRow(
		`SELECT token_id, account_id, fingerprint, last_heartbeat
		 FROM video_sessions WHERE token_id = ?`, tokenID,
	).Scan(&s.TokenID, &s.AccountID, &s.Fingerprint, &lastHeartbeat)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.LastHeartbeat = lastHeartbeat.Time
	return s, nil
}

// BindSessionFingerprint adopts the caller's device fingerprint as
// authoritative, replacing the provisional one, and refreshes the heartbeat.
func BindSessionFingerprint(database *sql.DB, tokenID, fingerprint string, now time.Time) error {
	_, err := database.Exec(
		`UPDATE video_sessions SET fingerprint = ?, last_heartbeat = ? WHERE token_id = ?`,
		fingerprint, now.UTC().Format(time.RFC3339), tokenID,
	)
	return err
}

func TouchVideoSession(database *sql.DB, tokenID string, now time.Time) error {
	_, err := database.Exec(
		`UPDATE video_sessions SET last_heartbeat = ? WHERE token_id = ?`,
		now.UTC().Format(time.RFC3339), tokenID,
	)
	return err
}

func DeleteVideoSession(database *sql.DB, tokenID string) error {
	_, err := database.Exec(`DELETE FROM video_sessions WHERE token_id = ?`, tokenID)
	return err
}

// DeleteStaleSessionsForAccount reclaims every session of the account whose
// last heartbeat predates the cutoff, freeing the single-playback slot.
func DeleteStaleSessionsForAccount(database *sql.DB, accountID string, cutoff time.Time) (int64, error) {
	res, err := database.Exec(
		`DELETE FROM video_sessions WHERE account_id = ? AND last_heartbeat < ?`,
		accountID, cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteStaleSessions is the global sweep used by the cleanup scheduler.
func DeleteStaleSessions(database *sql.DB, cutoff time.Time) (int64, error) {
	res, err := database.Exec(
		`DELETE FROM video_sessions WHERE last_heartbeat < ?`,
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteDeadTokenSessions removes sessions whose token is revoked or past
// expiry; such sessions can never heartbeat back to an active state.
func DeleteDeadTokenSessions(database *sql.DB, now time.Time) (int64, error) {
	res, err := database.Exec(
		`DELETE FROM video_sessions WHERE token_id IN (
		   SELECT id FROM video_tokens WHERE is_revoked = 1 OR expires_at <= ?
		 )`,
		now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FindFreshConflictingSession reports a live session held by a different
// device against any usable token of the same account and lesson. Freshness
// is judged against the liveness cutoff; the caller purges stale rows first.
func FindFreshConflictingSession(database *sql.DB, accountID, lessonID, fingerprint string, cutoff, now time.Time) (*model.VideoSession, error) {
	s := &model.VideoSession{}
	var lastHeartbeat SQLiteTime
	err := database.QueryRow(
		`SELECT s.token_id, s.account_id, s.fingerprint, s.last_heartbeat
		 FROM video_sessions s
		 JOIN video_tokens t ON t.id = s.token_id
		 WHERE t.account_id = ? AND t.lesson_id = ?
		   AND t.is_revoked = 0 AND t.expires_at > ?
		   AND s.last_heartbeat >= ?
		   AND s.fingerprint != ?
		 LIMIT 1`,
		accountID, lessonID, now.UTC().Format(time.RFC3339),
		cutoff.UTC().Format(time.RFC3339), fingerprint,
	).Scan(&s.TokenID, &s.AccountID, &s.Fingerprint, &lastHeartbeat)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.LastHeartbeat = lastHeartbeat.Time
	return s, nil
}

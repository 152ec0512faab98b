// Package videotoken implements the secure video access core: issuing
// short-lived, view-limited, device-bound playback tokens, validating and
// consuming them, and the heartbeat protocol that keeps at most one live
// playback per purchase. The package holds no in-process state; every
// operation is a round-trip against the store, so correctness rests on the
// store's atomicity (the conditional view-consume UPDATE and the unique
// session-per-token constraint), not on in-memory locking.
package videotoken

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avela/coursegate/internal/db"
	"github.com/avela/coursegate/internal/fingerprint"
	"github.com/avela/coursegate/internal/model"
)

type Service struct {
	DB             *sql.DB
	TokenTTL       time.Duration
	MaxViews       int
	LivenessWindow time.Duration

	// Now is the clock; tests pin it.
	Now func() time.Time
}

func NewService(database *sql.DB, ttl time.Duration, maxViews int, liveness time.Duration) *Service {
	return &Service{
		DB:             database,
		TokenTTL:       ttl,
		MaxViews:       maxViews,
		LivenessWindow: liveness,
		Now:            time.Now,
	}
}

// Issue mints a playback token for one lesson, after verifying the
// entitlement and the single-playback rule. Stale sessions of the caller are
// purged first so an abandoned player frees the slot within one liveness
// window. The companion session row starts with the provisional
// network-address fingerprint; the player's first heartbeat replaces it.
func (s *Service) Issue(accountID, lessonID, courseID, ipAddress, userAgent, fp string) (*model.VideoToken, error) {
	purchase, err := db.GetActivePurchase(s.DB, accountID, courseID)
	if err != nil {
		return nil, fmt.Errorf("load purchase: %w", err)
	}
	if purchase == nil {
		return nil, ErrNoEnrollment
	}

	lesson, err := db.GetLessonInCourse(s.DB, lessonID, courseID)
	if err != nil {
		return nil, fmt.Errorf("load lesson: %w", err)
	}
	if lesson == nil {
		return nil, ErrNotFound
	}

	now := s.Now()
	cutoff := now.Add(-s.LivenessWindow)

	if _, err := db.DeleteStaleSessionsForAccount(s.DB, accountID, cutoff); err != nil {
		return nil, fmt.Errorf("purge stale sessions: %w", err)
	}

	provisional := fingerprint.Provisional(ipAddress)
	claimed := fp
	if claimed == "" {
		claimed = provisional
	}
	conflict, err := db.FindFreshConflictingSession(s.DB, accountID, lessonID, claimed, cutoff, now)
	if err != nil {
		return nil, fmt.Errorf("concurrency check: %w", err)
	}
	if conflict != nil {
		return nil, ErrConcurrentSession
	}

	token := &model.VideoToken{
		ID:        uuid.New().String(),
		Token:     newTokenString(),
		AccountID: accountID,
		LessonID:  lessonID,
		CourseID:  courseID,
		MaxViews:  s.MaxViews,
		CreatedAt: now,
		ExpiresAt: now.Add(s.TokenTTL),
	}
	if err := db.CreateVideoToken(s.DB, token); err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	session := &model.VideoSession{
		TokenID:       token.ID,
		AccountID:     accountID,
		Fingerprint:   provisional,
		LastHeartbeat: now,
	}
	if err := db.CreateVideoSession(s.DB, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	db.InsertAuditLog(s.DB, accountID, "token.issue", "video_token", token.ID, userAgent, ipAddress)

	return token, nil
}

// Validate is the read-only pre-flight check: it classifies the token state
// without consuming a view or touching the session.
func (s *Service) Validate(token, accountID string) (*model.VideoToken, error) {
	t, err := db.GetVideoToken(s.DB, token)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	return s.classify(t, accountID)
}

// Consume resolves a playback: the validation checks run strictly before the
// view increment, so a request that fails never spends a view. The increment
// itself is a single conditional UPDATE; when it matches no row a concurrent
// consumer or revocation got there first and the state is re-classified.
func (s *Service) Consume(token, accountID string) (*model.VideoToken, error) {
	t, err := s.Validate(token, accountID)
	if err != nil {
		return nil, err
	}

	newCount, matched, err := db.ConsumeView(s.DB, t.ID, s.Now())
	if err != nil {
		return nil, fmt.Errorf("consume view: %w", err)
	}
	if !matched {
		// Lost a race with another resolution or a revocation.
		if _, err := s.Validate(token, accountID); err != nil {
			return nil, err
		}
		return nil, ErrExhausted
	}

	t.ViewCount = newCount
	now := s.Now()
	t.LastUsedAt = &now
	return t, nil
}

func (s *Service) classify(t *model.VideoToken, accountID string) (*model.VideoToken, error) {
	if t == nil || t.AccountID != accountID {
		// A token owned by someone else is indistinguishable from an
		// absent one; capability strings are single-owner.
		return nil, ErrNotFound
	}
	if t.IsRevoked {
		return nil, ErrRevoked
	}
	if !t.ExpiresAt.After(s.Now()) {
		return nil, ErrExpired
	}
	if t.ViewCount >= t.MaxViews {
		return nil, ErrExhausted
	}
	return t, nil
}

// Heartbeat confirms that one device is still the legitimate viewer of the
// token's session. State machine per session row:
//
//	no row                      -> inactive, no_session
//	owned by another account    -> inactive, unauthorized
//	provisional fingerprint     -> adopt caller's fingerprint, active
//	matching fingerprint        -> refresh heartbeat, active
//	different fingerprint       -> evict session, inactive, fingerprint_mismatch
//
// Stale sessions of the caller are reclaimed first, and a session whose
// token has been revoked or has expired is deleted on discovery.
func (s *Service) Heartbeat(token, accountID, fp string) (active bool, reason string, err error) {
	now := s.Now()
	cutoff := now.Add(-s.LivenessWindow)
	if _, err := db.DeleteStaleSessionsForAccount(s.DB, accountID, cutoff); err != nil {
		return false, "", fmt.Errorf("purge stale sessions: %w", err)
	}

	t, err := db.GetVideoToken(s.DB, token)
	if err != nil {
		return false, "", fmt.Errorf("load token: %w", err)
	}
	if t == nil {
		return false, ReasonNoSession, nil
	}
	if t.AccountID != accountID {
		return false, ReasonUnauthorized, nil
	}
	if t.IsRevoked || !t.ExpiresAt.After(now) {
		if err := db.DeleteVideoSession(s.DB, t.ID); err != nil {
			return false, "", fmt.Errorf("delete dead session: %w", err)
		}
		return false, ReasonNoSession, nil
	}

	session, err := db.GetVideoSession(s.DB, t.ID)
	if err != nil {
		return false, "", fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return false, ReasonNoSession, nil
	}
	if session.AccountID != accountID {
		return false, ReasonUnauthorized, nil
	}

	switch {
	case fingerprint.IsProvisional(session.Fingerprint):
		// First authentic heartbeat: the caller's fingerprint becomes
		// authoritative for the rest of the session.
		if err := db.BindSessionFingerprint(s.DB, t.ID, fp, now); err != nil {
			return false, "", fmt.Errorf("bind fingerprint: %w", err)
		}
		return true, "", nil
	case session.Fingerprint == fp:
		if err := db.TouchVideoSession(s.DB, t.ID, now); err != nil {
			return false, "", fmt.Errorf("refresh session: %w", err)
		}
		return true, "", nil
	default:
		// A second device is replaying the token; kill the claim.
		if err := db.DeleteVideoSession(s.DB, t.ID); err != nil {
			return false, "", fmt.Errorf("evict session: %w", err)
		}
		return false, ReasonMismatch, nil
	}
}

// Revoke is the administrative override: the token becomes permanently
// unusable and the action is recorded. The live session is not touched here;
// the next heartbeat or resolution discovers the revocation.
func (s *Service) Revoke(tokenID, reason, adminID, ipAddress string) error {
	t, err := db.GetVideoTokenByID(s.DB, tokenID)
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	if t == nil {
		return ErrNotFound
	}
	if err := db.RevokeVideoToken(s.DB, tokenID, reason, s.Now()); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return db.InsertAuditLogSync(s.DB, adminID, "token.revoke", "video_token", tokenID, reason, ipAddress)
}

// newTokenString returns 256 bits of hex-encoded randomness. The token has
// no structural relationship to the user or lesson it grants.
func newTokenString() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

package videotoken

import "errors"

// Failure kinds for token operations. All are terminal for the current
// request; nothing here is retried internally. Each maps to a stable
// machine-readable code at the HTTP layer so clients can tell "buy this
// course" from "too many devices" from "link expired".
var (
	ErrNoEnrollment      = errors.New("no active enrollment for course")
	ErrNotFound          = errors.New("token not found")
	ErrExpired           = errors.New("token expired")
	ErrExhausted         = errors.New("view budget exhausted")
	ErrRevoked           = errors.New("token revoked")
	ErrConcurrentSession = errors.New("another device holds a live session")
)

// Heartbeat reasons reported to the player.
const (
	ReasonNoSession    = "no_session"
	ReasonUnauthorized = "unauthorized"
	ReasonMismatch     = "fingerprint_mismatch"
)

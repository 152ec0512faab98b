// Package fingerprint derives stable per-device identifiers. The real
// fingerprint is computed client-side from browser signals; this package
// holds the matching server-side digest (used by tests and tooling) and the
// provisional network-address form a session is seeded with until the first
// heartbeat supplies the genuine one.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// ProvisionalPrefix marks a fingerprint derived from the client's network
// address rather than device signals. Sessions carrying it are not yet bound.
const ProvisionalPrefix = "ip:"

// Signals are the immutable device/browser characteristics the collector
// hashes. Identical configurations collide; that tradeoff is accepted.
type Signals struct {
	ScreenWidth  int
	ScreenHeight int
	ColorDepth   int
	Language     string
	CPUCount     int
	Timezone     string
	Platform     string
	UserAgent    string
}

// Hash digests the signals the same way the client script does: the values
// joined with '|' in field order, SHA-256, lowercase hex.
func Hash(s Signals) string {
	parts := []string{
		strconv.Itoa(s.ScreenWidth),
		strconv.Itoa(s.ScreenHeight),
		strconv.Itoa(s.ColorDepth),
		s.Language,
		strconv.Itoa(s.CPUCount),
		s.Timezone,
		s.Platform,
		s.UserAgent,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Provisional derives the placeholder fingerprint from a network address.
// Devices behind the same NAT collide on this form until their first
// heartbeat disambiguates them; known limitation, kept deliberately.
func Provisional(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return ProvisionalPrefix + hex.EncodeToString(sum[:])[:16]
}

// IsProvisional reports whether fp is the network-address placeholder form.
func IsProvisional(fp string) bool {
	return strings.HasPrefix(fp, ProvisionalPrefix)
}

// Package hosting is the collaborator contract with the video hosting
// provider: given a video id, produce a playable embed reference. The
// reference carries its own short-lived credential, independent of the
// platform's playback token, so a captured player document goes dark on its
// own schedule.
package hosting

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type EmbedRef struct {
	EmbedURL  string
	Token     string
	ExpiresAt time.Time
}

type Provider interface {
	SignedEmbed(ctx context.Context, videoID string) (*EmbedRef, error)
}

// Signer produces HS256-signed embed credentials the way stream CDNs accept
// them: the video id travels inside the claims, never in page content.
type Signer struct {
	BaseURL string
	Key     []byte
	TTL     time.Duration

	Now func() time.Time
}

func NewSigner(baseURL, key string, ttl time.Duration) *Signer {
	return &Signer{BaseURL: baseURL, Key: []byte(key), TTL: ttl, Now: time.Now}
}

func (s *Signer) SignedEmbed(ctx context.Context, videoID string) (*EmbedRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("hosting provider: %w", err)
	}

	now := s.Now()
	expiresAt := now.Add(s.TTL)
	claims := jwt.MapClaims{
		"vid": videoID,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Key)
	if err != nil {
		return nil, fmt.Errorf("sign embed credential: %w", err)
	}

	return &EmbedRef{
		EmbedURL:  s.BaseURL + "/e/" + token,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// VideoIDFromToken verifies an embed credential and returns the video id it
// grants. Used by tests and by edge validation tooling.
func (s *Signer) VideoIDFromToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.Key, nil
	}, jwt.WithTimeFunc(s.Now))
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type %T", token.Claims)
	}
	vid, _ := claims["vid"].(string)
	if vid == "" {
		return "", fmt.Errorf("missing vid claim")
	}
	return vid, nil
}

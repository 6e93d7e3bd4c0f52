// Package token signs and verifies the bearer tokens used by the
// authentication layer. Tokens are signed, not encrypted: they protect
// integrity only, and a signature alone never proves liveness. The
// session registry remains the source of truth for that.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/openclub/clubd/domain"
	cerrors "github.com/openclub/clubd/errors"
)

// Kind distinguishes the two halves of a token pair. It is carried as
// an explicit claim so the codec never has to guess from which registry
// lookup happens to succeed.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the decoded payload of a signed token.
type Claims struct {
	Role string `json:"role"`
	Kind Kind   `json:"kind"`
	jwt.RegisteredClaims
}

// MemberID returns the token subject.
func (c *Claims) MemberID() string {
	return c.Subject
}

// Codec issues and validates HS256-signed token pairs.
type Codec struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec creates a Codec with the given shared secret and lifetimes.
func NewCodec(secret string, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		key:        []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock overrides the codec's clock. Intended for tests.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

// Issue builds a signed access/refresh pair for the member. Both tokens
// carry the subject, role and kind claims; only the expiry differs.
func (c *Codec) Issue(memberID string, role domain.Role) (*domain.TokenPair, error) {
	issuedAt := c.now()

	access, err := c.sign(memberID, role, KindAccess, issuedAt, issuedAt.Add(c.accessTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refresh, err := c.sign(memberID, role, KindRefresh, issuedAt, issuedAt.Add(c.refreshTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (c *Codec) sign(memberID string, role domain.Role, kind Kind, issuedAt, expiresAt time.Time) (string, error) {
	claims := &Claims{
		Role: string(role),
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   memberID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
}

func (c *Codec) parser() *jwt.Parser {
	return jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
}

// Validate reports whether the token is well signed and unexpired.
// Every failure mode is a recoverable check: it is logged and reported
// as false, never returned as an error.
func (c *Codec) Validate(tokenValue string) bool {
	_, err := c.parser().ParseWithClaims(tokenValue, &Claims{}, c.keyFunc)
	switch {
	case err == nil:
		return true
	case errors.Is(err, jwt.ErrTokenExpired):
		log.Info().Msg("expired token")
	case errors.Is(err, jwt.ErrTokenMalformed):
		log.Info().Msg("malformed token")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		log.Info().Msg("token signature mismatch")
	default:
		log.Info().Err(err).Msg("token rejected")
	}
	return false
}

// ParseClaims decodes the claim set. An expired but well-signed token
// still yields its claims, so identity survives for reissue flows; a
// tampered or malformed token fails with a decode error.
func (c *Codec) ParseClaims(tokenValue string) (*Claims, error) {
	claims := &Claims{}
	_, err := c.parser().ParseWithClaims(tokenValue, claims, c.keyFunc)
	if err != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		return nil, fmt.Errorf("%w: %w", cerrors.ErrTokenInvalid, err)
	}
	return claims, nil
}

// IsRefreshToken reports whether the token carries the refresh kind
// claim. Undecodable tokens report false.
func (c *Codec) IsRefreshToken(tokenValue string) bool {
	claims, err := c.ParseClaims(tokenValue)
	if err != nil {
		return false
	}
	return claims.Kind == KindRefresh
}

// Authentication reconstructs the request principal from the token's
// claims. A token without a role claim cannot authenticate anyone.
func (c *Codec) Authentication(tokenValue string) (*domain.Principal, error) {
	claims, err := c.ParseClaims(tokenValue)
	if err != nil {
		return nil, err
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role claim", cerrors.ErrTokenInvalid)
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cerrors.ErrTokenInvalid, err)
	}
	return &domain.Principal{MemberID: claims.MemberID(), Role: role}, nil
}

func (c *Codec) keyFunc(*jwt.Token) (any, error) {
	return c.key, nil
}

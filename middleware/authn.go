package middleware

import (
	stderrors "errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/openclub/clubd/cache"
	"github.com/openclub/clubd/domain"
	"github.com/openclub/clubd/errors"
	"github.com/openclub/clubd/token"
)

// PrincipalKey is the echo context key the authenticated principal is
// stored under, next to the request context value.
const PrincipalKey = "auth.principal"

// Authenticator is the bearer token authentication middleware. Its
// outcomes are threefold: a verified principal on the request, an
// anonymous pass-through when no usable token was presented, or a hard
// 401 when a well-signed token fails the registry cross-checks. Only
// the last one terminates the request here; authorization decisions
// belong to RequireRole.
type Authenticator struct {
	codec    *token.Codec
	sessions cache.SessionStore
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(codec *token.Codec, sessions cache.SessionStore) *Authenticator {
	return &Authenticator{codec: codec, sessions: sessions}
}

// Authenticate is the echo middleware.
func (a *Authenticator) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenValue := bearerToken(c)
		if tokenValue == "" {
			return next(c) // anonymous
		}

		// A token that fails signature or expiry checks authenticates
		// nobody, but it does not end the request either. Public
		// endpoints stay reachable with a stale token in the header.
		if !a.codec.Validate(tokenValue) {
			return next(c)
		}

		principal, err := a.codec.Authentication(tokenValue)
		if err != nil {
			return next(c)
		}

		session, err := a.lookup(c, tokenValue)
		if err != nil {
			if stderrors.Is(err, errors.ErrSessionNotFound) {
				// Well signed, absent from the registry: revoked,
				// superseded, or signed outside our issue path.
				log.Warn().Str("memberID", principal.MemberID).
					Str("ip", c.RealIP()).Msg("Token without a matching session rejected")
				return echo.NewHTTPError(errors.HTTPStatus(errors.ErrTokenForged), errors.ErrTokenForged.Error())
			}
			return err
		}

		if !session.IssuedTo(c.RealIP()) {
			log.Warn().Str("memberID", session.MemberID).
				Str("sessionIP", session.IP).Str("requestIP", c.RealIP()).
				Msg("Token presented from a different IP, revoking session")
			if delErr := a.sessions.DeleteByMemberID(c.Request().Context(), session.MemberID); delErr != nil {
				log.Error().Err(delErr).Str("memberID", session.MemberID).Msg("Failed to revoke session")
			}
			return echo.NewHTTPError(errors.HTTPStatus(errors.ErrTokenMisuse), errors.ErrTokenMisuse.Error())
		}

		c.SetRequest(c.Request().WithContext(domain.WithPrincipal(c.Request().Context(), principal)))
		c.Set(PrincipalKey, principal)

		return next(c)
	}
}

// lookup resolves the session by the token's declared kind. The kind
// claim decides which index is consulted, the lookup result never
// guesses for it.
func (a *Authenticator) lookup(c echo.Context, tokenValue string) (*domain.Session, error) {
	ctx := c.Request().Context()
	if a.codec.IsRefreshToken(tokenValue) {
		return a.sessions.FindByRefreshToken(ctx, tokenValue)
	}
	return a.sessions.FindByAccessToken(ctx, tokenValue)
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Principal returns the principal the Authenticator attached to the
// echo context, if the request authenticated.
func Principal(c echo.Context) (*domain.Principal, bool) {
	p, ok := c.Get(PrincipalKey).(*domain.Principal)
	return p, ok && p != nil
}

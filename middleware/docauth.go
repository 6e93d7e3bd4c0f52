package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/openclub/clubd/cache"
	"github.com/openclub/clubd/domain"
	"github.com/openclub/clubd/internal/alert"
	"github.com/openclub/clubd/services"
)

// DocGate protects the API documentation endpoints. The policy is one
// rule with no bypass: the client IP must be on the allowlist and the
// request must carry Basic credentials of an admin member. Failures
// count against the caller's attempt window like failed logins do, and
// every access attempt is reported to the alert sink.
type DocGate struct {
	members    domain.MemberRepository
	attempts   cache.AttemptStore
	notifier   alert.Notifier
	hasher     services.PasswordVerifier
	allowedIPs []string
}

// NewDocGate creates a DocGate. An allowlist entry of "*" admits any
// IP, leaving only the credential check.
func NewDocGate(
	members domain.MemberRepository,
	attempts cache.AttemptStore,
	notifier alert.Notifier,
	hasher services.PasswordVerifier,
	allowedIPs []string,
) *DocGate {
	return &DocGate{
		members:    members,
		attempts:   attempts,
		notifier:   notifier,
		hasher:     hasher,
		allowedIPs: allowedIPs,
	}
}

// Gate is the echo middleware.
func (g *DocGate) Gate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ip := c.RealIP()

		if !g.ipAllowed(ip) {
			log.Warn().Str("ip", ip).Msg("Doc access from IP outside the allowlist")
			g.notifier.DocAccess(ip, false)
			return c.JSON(http.StatusUnauthorized, echo.Map{"success": false})
		}

		memberID, password, ok := c.Request().BasicAuth()
		if !ok {
			return g.challenge(c, ip)
		}

		member, err := g.members.GetMemberByID(c.Request().Context(), memberID)
		if err != nil || g.hasher.Verify(member.PasswordHash, password) != nil {
			return g.reject(c, ip)
		}
		if !member.Role.AtLeast(domain.RoleAdmin) {
			log.Warn().Str("memberID", memberID).Str("ip", ip).Msg("Doc access by non-admin member")
			return g.reject(c, ip)
		}

		log.Info().Str("memberID", memberID).Str("ip", ip).Msg("Doc access granted")
		g.notifier.DocAccess(ip, true)
		return next(c)
	}
}

func (g *DocGate) ipAllowed(ip string) bool {
	return slices.Contains(g.allowedIPs, "*") || slices.Contains(g.allowedIPs, ip)
}

// challenge asks for credentials without burning an attempt: a bare
// browser hit is not an attack.
func (g *DocGate) challenge(c echo.Context, ip string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="api-docs"`)
	g.notifier.DocAccess(ip, false)
	return c.JSON(http.StatusUnauthorized, echo.Map{"success": false})
}

// reject records the failed attempt against the IP window and reports
// it before challenging again.
func (g *DocGate) reject(c echo.Context, ip string) error {
	if err := g.attempts.Record(c.Request().Context(), ip); err != nil {
		log.Error().Err(err).Str("ip", ip).Msg("Failed to record doc access attempt")
	}
	log.Warn().Str("ip", ip).Msg("Doc access with bad credentials")
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="api-docs"`)
	g.notifier.DocAccess(ip, false)
	return c.JSON(http.StatusUnauthorized, echo.Map{"success": false})
}

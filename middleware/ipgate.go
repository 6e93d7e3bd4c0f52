// Package middleware carries the request gates: the IP gate, the bearer
// token authentication chain, role enforcement and the documentation
// endpoint guard. Gates run in a fixed order, IP checks before any
// token work, so a blocked client never reaches the codec.
package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/openclub/clubd/cache"
	"github.com/openclub/clubd/domain"
)

// IPGate rejects requests from blacklisted IPs and from IPs that burned
// through their attempt window. The response body is deliberately
// shapeless: a blocked client learns nothing beyond "no".
type IPGate struct {
	blacklist domain.BlacklistRepository
	attempts  cache.AttemptStore
}

// NewIPGate creates an IPGate.
func NewIPGate(blacklist domain.BlacklistRepository, attempts cache.AttemptStore) *IPGate {
	return &IPGate{blacklist: blacklist, attempts: attempts}
}

// Gate is the echo middleware. The persisted blacklist is consulted
// first, then the ephemeral attempt counter. Lookup failures fail open
// with a log line: an unreachable store must not take the whole API
// down with it.
func (g *IPGate) Gate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ip := c.RealIP()
		ctx := c.Request().Context()

		banned, err := g.blacklist.Exists(ctx, ip)
		if err != nil {
			log.Error().Err(err).Str("ip", ip).Msg("Blacklist lookup failed")
		} else if banned {
			log.Warn().Str("ip", ip).Str("path", c.Path()).Msg("Blacklisted IP rejected")
			return c.JSON(http.StatusUnauthorized, echo.Map{"success": false})
		}

		blocked, err := g.attempts.IsBlocked(ctx, ip)
		if err != nil {
			log.Error().Err(err).Str("ip", ip).Msg("Attempt counter lookup failed")
		} else if blocked {
			log.Warn().Str("ip", ip).Str("path", c.Path()).Msg("Throttled IP rejected")
			return c.JSON(http.StatusUnauthorized, echo.Map{"success": false})
		}

		return next(c)
	}
}

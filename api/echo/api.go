// Package echo exposes the HTTP surface: login and token lifecycle,
// session administration, the IP blacklist, member management and
// shared account reservations.
package echo

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/openclub/clubd/domain"
	"github.com/openclub/clubd/errors"
	"github.com/openclub/clubd/middleware"
	"github.com/openclub/clubd/services"
)

// ClubAPI struct to hold dependencies.
type ClubAPI struct {
	auth           *services.AuthService
	members        *services.MemberService
	lockout        *services.LockoutService
	sharedAccounts *services.SharedAccountService
	blacklist      domain.BlacklistRepository
}

// NewClubAPI initializes the club API.
func NewClubAPI(
	auth *services.AuthService,
	members *services.MemberService,
	lockout *services.LockoutService,
	sharedAccounts *services.SharedAccountService,
	blacklist domain.BlacklistRepository,
) *ClubAPI {
	return &ClubAPI{
		auth:           auth,
		members:        members,
		lockout:        lockout,
		sharedAccounts: sharedAccounts,
		blacklist:      blacklist,
	}
}

// RegisterRoutes registers the API routes. Role requirements are
// attached per group, not per handler.
func (a *ClubAPI) RegisterRoutes(e *echo.Echo) {
	e.POST("/login", a.LoginHandler)
	e.POST("/login/reissue", a.ReissueHandler)
	e.DELETE("/login", a.LogoutHandler)

	admin := e.Group("", middleware.RequireRole(domain.RoleAdmin))
	admin.GET("/login/current", a.CurrentSessionsHandler)
	admin.GET("/members", a.ListMembersHandler)
	admin.GET("/members/:memberId", a.GetMemberHandler)

	super := e.Group("", middleware.RequireRole(domain.RoleSuper))
	super.DELETE("/login/revoke/:memberId", a.RevokeSessionHandler)
	super.POST("/members", a.RegisterMemberHandler)
	super.DELETE("/members/:memberId", a.DeleteMemberHandler)
	super.DELETE("/members/:memberId/lock", a.UnlockMemberHandler)
	super.GET("/blacklists", a.ListBlacklistHandler)
	super.POST("/blacklists", a.AddBlacklistHandler)
	super.DELETE("/blacklists/:ip", a.RemoveBlacklistHandler)

	user := e.Group("", middleware.RequireRole(domain.RoleUser))
	user.POST("/shared-accounts/:accountId/usages", a.RequestUsageHandler)
	user.GET("/shared-accounts/:accountId/usages", a.ListUsagesHandler)
	user.DELETE("/usages/:usageId", a.CancelUsageHandler)
}

// LoginRequest is the login payload.
type LoginRequest struct {
	MemberID string `json:"memberId"`
	Password string `json:"password"`
}

// LoginHandler authenticates a member and returns a fresh token pair.
func (a *ClubAPI) LoginHandler(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	if req.MemberID == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "memberId and password are required"})
	}

	pair, err := a.auth.Login(c.Request().Context(), req.MemberID, req.Password, c.RealIP())
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, pair)
}

// ReissueRequest carries the refresh token being exchanged.
type ReissueRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ReissueHandler exchanges a refresh token for a new pair. The token is
// taken from the body, falling back to the Authorization header.
func (a *ClubAPI) ReissueHandler(c echo.Context) error {
	var req ReissueRequest
	_ = c.Bind(&req)
	if req.RefreshToken == "" {
		req.RefreshToken = bearerToken(c)
	}
	if req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "refreshToken is required"})
	}

	pair, err := a.auth.Reissue(c.Request().Context(), req.RefreshToken, c.RealIP())
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, pair)
}

// LogoutHandler terminates the caller's session. Always succeeds:
// logging out twice is not an error worth reporting.
func (a *ClubAPI) LogoutHandler(c echo.Context) error {
	tokenValue := bearerToken(c)
	if tokenValue == "" {
		return c.JSON(http.StatusOK, echo.Map{"success": true})
	}

	if err := a.auth.Logout(c.Request().Context(), tokenValue); err != nil {
		log.Error().Err(err).Msg("Logout failed")
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// CurrentSessionsHandler lists members with a live session.
func (a *ClubAPI) CurrentSessionsHandler(c echo.Context) error {
	ids, err := a.auth.ActiveMemberIDs(c.Request().Context())
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"memberIds": ids})
}

// RevokeSessionHandler force-terminates another member's session.
func (a *ClubAPI) RevokeSessionHandler(c echo.Context) error {
	memberID := c.Param("memberId")
	if err := a.auth.RevokeMember(c.Request().Context(), memberID); err != nil {
		return a.fail(c, err)
	}

	principal, _ := middleware.Principal(c)
	log.Info().Str("memberID", memberID).Str("revokedBy", principal.MemberID).Msg("Session revoked by admin")
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// RegisterMemberRequest is the member creation payload.
type RegisterMemberRequest struct {
	MemberID string `json:"memberId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// RegisterMemberHandler creates a member account.
func (a *ClubAPI) RegisterMemberHandler(c echo.Context) error {
	var req RegisterMemberRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	if req.MemberID == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "memberId and password are required"})
	}

	role := domain.Role(req.Role)
	if req.Role != "" && !role.IsValid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "unknown role"})
	}

	member, err := a.members.Register(c.Request().Context(), req.MemberID, req.Name, req.Email, req.Password, role)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"memberId": member.ID,
		"name":     member.Name,
		"email":    member.Email,
		"role":     member.Role,
	})
}

// GetMemberHandler fetches one member. Password hashes never leave the
// server.
func (a *ClubAPI) GetMemberHandler(c echo.Context) error {
	member, err := a.members.Get(c.Request().Context(), c.Param("memberId"))
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, memberView(member))
}

// ListMembersHandler lists all members.
func (a *ClubAPI) ListMembersHandler(c echo.Context) error {
	members, err := a.members.List(c.Request().Context())
	if err != nil {
		return a.fail(c, err)
	}
	views := make([]echo.Map, 0, len(members))
	for _, m := range members {
		views = append(views, memberView(m))
	}
	return c.JSON(http.StatusOK, echo.Map{"members": views})
}

// DeleteMemberHandler removes a member and revokes its session.
func (a *ClubAPI) DeleteMemberHandler(c echo.Context) error {
	if err := a.members.Delete(c.Request().Context(), c.Param("memberId")); err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// UnlockMemberHandler clears a member's login lock ahead of its expiry.
func (a *ClubAPI) UnlockMemberHandler(c echo.Context) error {
	if err := a.lockout.Unlock(c.Request().Context(), c.Param("memberId")); err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// BlacklistRequest is the blacklist insertion payload.
type BlacklistRequest struct {
	IPAddress string `json:"ipAddress"`
	Reason    string `json:"reason"`
}

// AddBlacklistHandler bans an IP permanently.
func (a *ClubAPI) AddBlacklistHandler(c echo.Context) error {
	var req BlacklistRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	if req.IPAddress == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "ipAddress is required"})
	}

	entry := &domain.BlacklistIP{IPAddress: req.IPAddress, Reason: req.Reason}
	if err := a.blacklist.Add(c.Request().Context(), entry); err != nil {
		return a.fail(c, err)
	}

	log.Info().Str("ip", req.IPAddress).Str("reason", req.Reason).Msg("IP blacklisted")
	return c.JSON(http.StatusCreated, echo.Map{"success": true})
}

// RemoveBlacklistHandler lifts a ban.
func (a *ClubAPI) RemoveBlacklistHandler(c echo.Context) error {
	if err := a.blacklist.Remove(c.Request().Context(), c.Param("ip")); err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// ListBlacklistHandler lists all banned IPs.
func (a *ClubAPI) ListBlacklistHandler(c echo.Context) error {
	entries, err := a.blacklist.List(c.Request().Context())
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"blacklists": entries})
}

// UsageRequest is the reservation payload. Times are RFC 3339.
type UsageRequest struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// RequestUsageHandler reserves a window on a shared account for the
// calling member.
func (a *ClubAPI) RequestUsageHandler(c echo.Context) error {
	principal, _ := middleware.Principal(c)

	var req UsageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	start, err := parseTime(req.StartTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "startTime must be RFC 3339"})
	}
	end, err := parseTime(req.EndTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "endTime must be RFC 3339"})
	}

	usage, err := a.sharedAccounts.RequestUsage(c.Request().Context(), c.Param("accountId"), principal.MemberID, start, end)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusCreated, usage)
}

// ListUsagesHandler lists the reservation windows on an account.
func (a *ClubAPI) ListUsagesHandler(c echo.Context) error {
	usages, err := a.sharedAccounts.ListUsages(c.Request().Context(), c.Param("accountId"))
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"usages": usages})
}

// CancelUsageHandler cancels a reservation. The service enforces owner
// or admin.
func (a *ClubAPI) CancelUsageHandler(c echo.Context) error {
	principal, _ := middleware.Principal(c)
	if err := a.sharedAccounts.CancelUsage(c.Request().Context(), c.Param("usageId"), principal); err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (a *ClubAPI) fail(c echo.Context, err error) error {
	status := errors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
		return c.JSON(status, echo.Map{"success": false, "error": "internal error"})
	}
	return c.JSON(status, echo.Map{"success": false, "error": err.Error()})
}

func memberView(m *domain.Member) echo.Map {
	return echo.Map{
		"memberId":    m.ID,
		"name":        m.Name,
		"email":       m.Email,
		"role":        m.Role,
		"lastLoginAt": m.LastLoginAt,
	}
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, value)
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

package services

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclub/clubd/cache"
	"github.com/openclub/clubd/domain"
	"github.com/openclub/clubd/errors"
	"github.com/openclub/clubd/token"
)

// AuthService implements login, token reissue and logout on top of the
// token codec and the session registry.
//
// Failed logins feed two independent trackers: the per-member lockout
// counter and the per-IP attempt window. A login against a nonexistent
// member id updates neither, so probing cannot create lock records or
// reveal which ids exist.
type AuthService struct {
	members  domain.MemberRepository
	sessions cache.SessionStore
	attempts cache.AttemptStore
	lockout  *LockoutService
	codec    *token.Codec
	hasher   PasswordVerifier
	now      func() time.Time
}

// PasswordVerifier checks a plaintext password against a stored hash.
type PasswordVerifier interface {
	Verify(hashedPassword, password string) error
}

// NewAuthService creates an AuthService.
func NewAuthService(
	members domain.MemberRepository,
	sessions cache.SessionStore,
	attempts cache.AttemptStore,
	lockout *LockoutService,
	codec *token.Codec,
	hasher PasswordVerifier,
) *AuthService {
	return &AuthService{
		members:  members,
		sessions: sessions,
		attempts: attempts,
		lockout:  lockout,
		codec:    codec,
		hasher:   hasher,
		now:      time.Now,
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Login authenticates the member and issues a fresh token pair bound to
// the client IP. The new session replaces any existing one for the same
// member, so the previous tokens stop resolving immediately.
//
// Unknown ids and wrong passwords both surface as ErrLoginFailed; a
// locked account surfaces as ErrMemberLocked even when the password is
// correct.
func (s *AuthService) Login(ctx context.Context, memberID, password, ip string) (*domain.TokenPair, error) {
	member, err := s.members.GetMemberByID(ctx, memberID)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			log.Info().Str("memberID", memberID).Str("ip", ip).Msg("Login attempt for unknown member")
			return nil, errors.ErrLoginFailed
		}
		return nil, err
	}

	if err := s.lockout.EnsureNotLocked(ctx, member.ID); err != nil {
		return nil, err
	}

	if err := s.hasher.Verify(member.PasswordHash, password); err != nil {
		if recordErr := s.attempts.Record(ctx, ip); recordErr != nil {
			log.Error().Err(recordErr).Str("ip", ip).Msg("Failed to record login attempt")
		}
		if failErr := s.lockout.HandleFailure(ctx, member, ip); failErr != nil {
			return nil, failErr
		}
		return nil, errors.ErrLoginFailed
	}

	if err := s.lockout.HandleSuccess(ctx, member.ID); err != nil {
		return nil, err
	}

	pair, err := s.startSession(ctx, member, ip)
	if err != nil {
		return nil, err
	}

	if err := s.members.SetLastLoginAt(ctx, member.ID, s.now()); err != nil {
		log.Error().Err(err).Str("memberID", member.ID).Msg("Failed to update last login time")
	}

	log.Info().Str("memberID", member.ID).Str("ip", ip).Msg("Member logged in")
	return pair, nil
}

// Reissue exchanges a valid refresh token for a fresh pair. The token
// must still resolve in the registry and must be presented from the IP
// it was issued to; a mismatch revokes the session outright.
func (s *AuthService) Reissue(ctx context.Context, refreshToken, ip string) (*domain.TokenPair, error) {
	if !s.codec.Validate(refreshToken) || !s.codec.IsRefreshToken(refreshToken) {
		return nil, errors.ErrTokenInvalid
	}

	claims, err := s.codec.ParseClaims(refreshToken)
	if err != nil {
		return nil, err
	}

	member, err := s.members.GetMemberByID(ctx, claims.MemberID())
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrTokenForged
		}
		return nil, err
	}

	session, err := s.sessions.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		if stderrors.Is(err, errors.ErrSessionNotFound) {
			// Well signed but absent from the registry: superseded by a
			// newer login, or never issued by us.
			return nil, errors.ErrTokenForged
		}
		return nil, err
	}

	if !session.IssuedTo(ip) {
		log.Warn().Str("memberID", session.MemberID).
			Str("sessionIP", session.IP).Str("requestIP", ip).
			Msg("Refresh token presented from a different IP, revoking session")
		if delErr := s.sessions.DeleteByMemberID(ctx, session.MemberID); delErr != nil {
			log.Error().Err(delErr).Str("memberID", session.MemberID).Msg("Failed to revoke session")
		}
		return nil, errors.ErrTokenMisuse
	}

	// Rotation keeps the original binding IP, not the request IP: the
	// two are equal here, and the stored value stays authoritative.
	pair, err := s.startSession(ctx, member, session.IP)
	if err != nil {
		return nil, err
	}

	log.Info().Str("memberID", member.ID).Msg("Token pair reissued")
	return pair, nil
}

// Logout revokes the session the access token belongs to. Unknown
// tokens are fine: logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	err := s.sessions.DeleteByAccessToken(ctx, accessToken)
	if err != nil && !stderrors.Is(err, errors.ErrSessionNotFound) {
		return err
	}
	return nil
}

// RevokeMember force-terminates the member's session, if any.
func (s *AuthService) RevokeMember(ctx context.Context, memberID string) error {
	return s.sessions.DeleteByMemberID(ctx, memberID)
}

// ActiveMemberIDs lists members with a live session.
func (s *AuthService) ActiveMemberIDs(ctx context.Context) ([]string, error) {
	return s.sessions.ListActiveMemberIDs(ctx)
}

func (s *AuthService) startSession(ctx context.Context, member *domain.Member, ip string) (*domain.TokenPair, error) {
	pair, err := s.codec.Issue(member.ID, member.Role)
	if err != nil {
		return nil, err
	}

	session := &domain.Session{
		MemberID:     member.ID,
		Role:         member.Role,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		IP:           ip,
		CreatedAt:    s.now(),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return pair, nil
}

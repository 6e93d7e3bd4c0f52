// Package cache defines the session registry and IP attempt counter
// contracts, plus in-process implementations used in development and
// tests. The Redis implementations live in cache/redis.
package cache

import (
	"context"

	"github.com/openclub/clubd/domain"
)

// SessionStore is the registry of live sessions, the single source of
// truth for whether a token is still usable. One record per member:
// saving replaces whatever was there, invalidating the previous pair.
type SessionStore interface {
	// Save upserts the session record for session.MemberID.
	Save(ctx context.Context, session *domain.Session) error

	FindByAccessToken(ctx context.Context, accessToken string) (*domain.Session, error)
	FindByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error)

	DeleteByAccessToken(ctx context.Context, accessToken string) error
	DeleteByMemberID(ctx context.Context, memberID string) error

	// ListActiveMemberIDs enumerates members with a live session.
	ListActiveMemberIDs(ctx context.Context) ([]string, error)
}

// AttemptStore counts authentication attempts per client IP over a
// fixed window. Counter and window expire together; there is no decay.
type AttemptStore interface {
	// Record bumps the counter for ip, starting a fresh window if none
	// is open.
	Record(ctx context.Context, ip string) error

	// IsBlocked reports whether ip has exhausted its attempts for the
	// current window.
	IsBlocked(ctx context.Context, ip string) (bool, error)
}

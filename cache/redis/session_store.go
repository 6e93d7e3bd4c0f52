// Package redis backs the session registry and IP attempt counter with
// Redis. Per-key operations are atomic on the server, which is all the
// registry needs: the last save for a member wins and supersedes every
// earlier token pair.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openclub/clubd/domain"
	cerrors "github.com/openclub/clubd/errors"
)

// SessionStore implements cache.SessionStore using Redis.
//
// Layout per member:
//
//	<prefix>:session:<memberID>      hash with the session fields
//	<prefix>:access:<accessToken>    -> memberID
//	<prefix>:refresh:<refreshToken>  -> memberID
//
// All three keys share the refresh-token TTL, so stale index entries
// cannot outlive the record they point at.
type SessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewSessionStore creates a new [SessionStore] instance. Entries expire
// after ttl, which should be the refresh token lifetime.
func NewSessionStore(client *redis.Client, prefix string, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *SessionStore) sessionKey(memberID string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, memberID)
}

func (r *SessionStore) accessKey(token string) string {
	return fmt.Sprintf("%s:access:%s", r.prefix, token)
}

func (r *SessionStore) refreshKey(token string) string {
	return fmt.Sprintf("%s:refresh:%s", r.prefix, token)
}

// Save upserts the session record for a member, replacing any previous
// record and its token indexes in a single transaction.
func (r *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	key := r.sessionKey(session.MemberID)

	prev, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to read previous session: %w", err)
	}

	entry := map[string]interface{}{
		"member_id":     session.MemberID,
		"role":          string(session.Role),
		"access_token":  session.AccessToken,
		"refresh_token": session.RefreshToken,
		"ip":            session.IP,
		"created_at":    session.CreatedAt.Unix(),
	}

	pipe := r.client.TxPipeline()
	if len(prev) > 0 {
		pipe.Del(ctx, r.accessKey(prev["access_token"]), r.refreshKey(prev["refresh_token"]))
	}
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, entry)
	pipe.Expire(ctx, key, r.ttl)
	pipe.Set(ctx, r.accessKey(session.AccessToken), session.MemberID, r.ttl)
	pipe.Set(ctx, r.refreshKey(session.RefreshToken), session.MemberID, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session in Redis: %w", err)
	}

	return nil
}

// FindByAccessToken resolves a session through the access token index.
func (r *SessionStore) FindByAccessToken(ctx context.Context, accessToken string) (*domain.Session, error) {
	return r.findByIndex(ctx, r.accessKey(accessToken), func(s *domain.Session) bool {
		return s.AccessToken == accessToken
	})
}

// FindByRefreshToken resolves a session through the refresh token index.
func (r *SessionStore) FindByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	return r.findByIndex(ctx, r.refreshKey(refreshToken), func(s *domain.Session) bool {
		return s.RefreshToken == refreshToken
	})
}

func (r *SessionStore) findByIndex(ctx context.Context, indexKey string, matches func(*domain.Session) bool) (*domain.Session, error) {
	memberID, err := r.client.Get(ctx, indexKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, cerrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token index: %w", err)
	}

	session, err := r.getSession(ctx, memberID)
	if err != nil {
		return nil, err
	}
	// The index can lag one save behind the record; a mismatch means the
	// token was superseded.
	if !matches(session) {
		return nil, cerrors.ErrSessionNotFound
	}
	return session, nil
}

func (r *SessionStore) getSession(ctx context.Context, memberID string) (*domain.Session, error) {
	res, err := r.client.HGetAll(ctx, r.sessionKey(memberID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if len(res) == 0 {
		return nil, cerrors.ErrSessionNotFound
	}

	session := &domain.Session{
		MemberID:     res["member_id"],
		Role:         domain.Role(res["role"]),
		AccessToken:  res["access_token"],
		RefreshToken: res["refresh_token"],
		IP:           res["ip"],
	}
	var createdAt int64
	if _, err := fmt.Sscanf(res["created_at"], "%d", &createdAt); err == nil {
		session.CreatedAt = time.Unix(createdAt, 0)
	}
	return session, nil
}

// DeleteByAccessToken removes the session owning the access token.
// Deleting an unknown token is a no-op.
func (r *SessionStore) DeleteByAccessToken(ctx context.Context, accessToken string) error {
	memberID, err := r.client.Get(ctx, r.accessKey(accessToken)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve token index: %w", err)
	}
	return r.DeleteByMemberID(ctx, memberID)
}

// DeleteByMemberID removes the member's session record and indexes.
func (r *SessionStore) DeleteByMemberID(ctx context.Context, memberID string) error {
	key := r.sessionKey(memberID)

	prev, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}
	if len(prev) == 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, r.accessKey(prev["access_token"]), r.refreshKey(prev["refresh_token"]))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session in Redis: %w", err)
	}
	return nil
}

// ListActiveMemberIDs scans the session keys and returns their member ids.
func (r *SessionStore) ListActiveMemberIDs(ctx context.Context) ([]string, error) {
	pattern := r.sessionKey("*")
	prefixLen := len(r.sessionKey(""))

	var ids []string
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan sessions: %w", err)
		}
		for _, key := range keys {
			ids = append(ids, key[prefixLen:])
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return ids, nil
}

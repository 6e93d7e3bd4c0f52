package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/openclub/clubd/domain"
	"github.com/openclub/clubd/errors"
)

// MemorySessionStore implements SessionStore on ttlcache. Records are
// keyed by member id and expire with the refresh token TTL; token
// lookups go through an index guarded by a mutex, kept in sync by the
// eviction callback.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions *ttlcache.Cache[string, *domain.Session]
	byToken  map[string]string // access or refresh token -> member id
	ttl      time.Duration
}

// NewMemorySessionStore creates an in-memory session store whose
// entries live as long as the refresh token.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	store := &MemorySessionStore{
		sessions: ttlcache.New(
			ttlcache.WithTTL[string, *domain.Session](ttl),
			ttlcache.WithDisableTouchOnHit[string, *domain.Session](),
		),
		byToken: make(map[string]string),
		ttl:     ttl,
	}

	store.sessions.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, *domain.Session]) {
		store.mu.Lock()
		defer store.mu.Unlock()
		store.unindexLocked(item.Value())
	})

	go store.sessions.Start()

	return store
}

// Save implements SessionStore.Save.
func (s *MemorySessionStore) Save(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev := s.sessions.Get(session.MemberID); prev != nil {
		s.unindexLocked(prev.Value())
	}
	s.sessions.Set(session.MemberID, session, s.ttl)
	s.byToken[session.AccessToken] = session.MemberID
	s.byToken[session.RefreshToken] = session.MemberID

	return nil
}

// FindByAccessToken implements SessionStore.FindByAccessToken.
func (s *MemorySessionStore) FindByAccessToken(ctx context.Context, accessToken string) (*domain.Session, error) {
	return s.findByToken(accessToken, func(sess *domain.Session) bool {
		return sess.AccessToken == accessToken
	})
}

// FindByRefreshToken implements SessionStore.FindByRefreshToken.
func (s *MemorySessionStore) FindByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	return s.findByToken(refreshToken, func(sess *domain.Session) bool {
		return sess.RefreshToken == refreshToken
	})
}

func (s *MemorySessionStore) findByToken(tok string, matches func(*domain.Session) bool) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	memberID, ok := s.byToken[tok]
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	item := s.sessions.Get(memberID)
	if item == nil || !matches(item.Value()) {
		return nil, errors.ErrSessionNotFound
	}
	return item.Value(), nil
}

// DeleteByAccessToken implements SessionStore.DeleteByAccessToken.
func (s *MemorySessionStore) DeleteByAccessToken(ctx context.Context, accessToken string) error {
	s.mu.Lock()
	memberID, ok := s.byToken[accessToken]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	s.sessions.Delete(memberID) // eviction callback drops the indexes
	return nil
}

// DeleteByMemberID implements SessionStore.DeleteByMemberID.
func (s *MemorySessionStore) DeleteByMemberID(_ context.Context, memberID string) error {
	s.sessions.Delete(memberID)
	return nil
}

// ListActiveMemberIDs implements SessionStore.ListActiveMemberIDs.
func (s *MemorySessionStore) ListActiveMemberIDs(context.Context) ([]string, error) {
	ids := make([]string, 0, s.sessions.Len())
	for _, key := range s.sessions.Keys() {
		ids = append(ids, key)
	}
	return ids, nil
}

// Close stops the expiration goroutine.
func (s *MemorySessionStore) Close() error {
	s.sessions.Stop()
	return nil
}

func (s *MemorySessionStore) unindexLocked(session *domain.Session) {
	if session == nil {
		return
	}
	delete(s.byToken, session.AccessToken)
	delete(s.byToken, session.RefreshToken)
}

var _ SessionStore = (*MemorySessionStore)(nil)

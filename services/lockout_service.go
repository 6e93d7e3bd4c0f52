package services

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclub/clubd/domain"
	"github.com/openclub/clubd/errors"
	"github.com/openclub/clubd/internal/alert"
)

// LockoutService tracks consecutive login failures per member and
// enforces the temporary lock. Expiry is lazy: a lock whose deadline
// passed is treated as open on the next check, no sweeper needed.
//
// Callers gate every entry point on member existence; this service
// never creates counters for ids that do not belong to a real member.
type LockoutService struct {
	locks        domain.AccountLockRepository
	notifier     alert.Notifier
	maxFailures  int
	lockDuration time.Duration
	now          func() time.Time
}

// NewLockoutService creates a LockoutService.
func NewLockoutService(locks domain.AccountLockRepository, notifier alert.Notifier, maxFailures int, lockDuration time.Duration) *LockoutService {
	return &LockoutService{
		locks:        locks,
		notifier:     notifier,
		maxFailures:  maxFailures,
		lockDuration: lockDuration,
		now:          time.Now,
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *LockoutService) WithClock(now func() time.Time) *LockoutService {
	s.now = now
	return s
}

// EnsureNotLocked rejects with ErrMemberLocked while the member's lock
// deadline lies in the future. Called before credentials are checked,
// so a locked account fails even with the correct password.
func (s *LockoutService) EnsureNotLocked(ctx context.Context, memberID string) error {
	lock, err := s.find(ctx, memberID)
	if err != nil {
		return err
	}
	if lock != nil && lock.IsLocked(s.now()) {
		return errors.ErrMemberLocked
	}
	return nil
}

// HandleFailure records one failed attempt for an existing member and
// locks the account once the threshold is reached. Locking an elevated
// account additionally raises a security alert; alert delivery is best
// effort and never fails the call.
func (s *LockoutService) HandleFailure(ctx context.Context, member *domain.Member, ip string) error {
	lock, err := s.find(ctx, member.ID)
	if err != nil {
		return err
	}
	if lock == nil {
		lock = domain.NewAccountLock(member.ID)
	}

	if lock.RegisterFailure(s.now(), s.maxFailures, s.lockDuration) {
		log.Warn().Str("memberID", member.ID).Str("ip", ip).
			Int("failures", lock.FailCount).
			Time("lockedUntil", *lock.LockedUntil).
			Msg("Account locked after repeated login failures")
		if member.Role.IsElevated() {
			s.notifier.RepeatedLoginFailures(member.ID, ip)
		}
	}

	// The counter must be durable before the login error propagates, so
	// a retried request observes the updated state.
	return s.locks.Save(ctx, lock)
}

// HandleSuccess resets the member's failure counter after a successful
// login.
func (s *LockoutService) HandleSuccess(ctx context.Context, memberID string) error {
	lock, err := s.find(ctx, memberID)
	if err != nil {
		return err
	}
	if lock == nil {
		return nil
	}
	lock.Reset(s.now())
	return s.locks.Save(ctx, lock)
}

// Unlock clears the lock explicitly, for administrative use.
func (s *LockoutService) Unlock(ctx context.Context, memberID string) error {
	return s.HandleSuccess(ctx, memberID)
}

func (s *LockoutService) find(ctx context.Context, memberID string) (*domain.AccountLock, error) {
	lock, err := s.locks.FindByMemberID(ctx, memberID)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return lock, nil
}

package domain

import "time"

// AccountLock tracks consecutive login failures for one member.
// It is created lazily on the first failure and reset, never deleted.
// Expiry is lazy: a lock whose deadline has passed counts as unlocked
// on the next check, no sweeper involved.
type AccountLock struct {
	MemberID    string     `bson:"_id"`
	FailCount   int        `bson:"fail_count"`
	LockedUntil *time.Time `bson:"locked_until,omitempty"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

// NewAccountLock returns the initial, unlocked record for a member.
func NewAccountLock(memberID string) *AccountLock {
	return &AccountLock{MemberID: memberID}
}

// IsLocked reports whether the account is locked at the given instant.
func (l *AccountLock) IsLocked(now time.Time) bool {
	return l.LockedUntil != nil && now.Before(*l.LockedUntil)
}

// RegisterFailure increments the failure counter and, once the counter
// reaches maxFailures, locks the account for lockDuration. It reports
// whether this failure triggered the lock.
func (l *AccountLock) RegisterFailure(now time.Time, maxFailures int, lockDuration time.Duration) bool {
	l.FailCount++
	l.UpdatedAt = now
	if l.FailCount >= maxFailures {
		until := now.Add(lockDuration)
		l.LockedUntil = &until
		return true
	}
	return false
}

// Reset clears the counter and the lock deadline.
func (l *AccountLock) Reset(now time.Time) {
	l.FailCount = 0
	l.LockedUntil = nil
	l.UpdatedAt = now
}

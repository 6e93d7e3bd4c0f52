package domain

import (
	"context"
	"time"
)

// MemberRepository is the credential store backing authentication.
type MemberRepository interface {
	CreateMember(ctx context.Context, member *Member) error
	GetMemberByID(ctx context.Context, id string) (*Member, error)
	ListMembers(ctx context.Context) ([]*Member, error)
	SetLastLoginAt(ctx context.Context, id string, at time.Time) error
	DeleteMember(ctx context.Context, id string) error
}

// AccountLockRepository persists per-member lockout records.
type AccountLockRepository interface {
	FindByMemberID(ctx context.Context, memberID string) (*AccountLock, error)
	Save(ctx context.Context, lock *AccountLock) error
}

// BlacklistRepository persists permanently blocked IPs.
type BlacklistRepository interface {
	Add(ctx context.Context, entry *BlacklistIP) error
	Remove(ctx context.Context, ip string) error
	Exists(ctx context.Context, ip string) (bool, error)
	List(ctx context.Context) ([]*BlacklistIP, error)
}

// SharedAccountRepository persists shared accounts and their usage
// windows. Updates carry an optimistic version check.
type SharedAccountRepository interface {
	GetAccountByID(ctx context.Context, id string) (*SharedAccount, error)
	SaveAccount(ctx context.Context, account *SharedAccount) error
	CreateUsage(ctx context.Context, usage *SharedAccountUsage) error
	GetUsageByID(ctx context.Context, id string) (*SharedAccountUsage, error)
	ListUsagesByAccount(ctx context.Context, accountID string) ([]*SharedAccountUsage, error)
	FindOverlapping(ctx context.Context, accountID string, statuses []UsageStatus, start, end time.Time) ([]*SharedAccountUsage, error)
	ListUsagesByStatus(ctx context.Context, status UsageStatus) ([]*SharedAccountUsage, error)
	// UpdateUsage persists the record iff the stored version still equals
	// usage.Version, then bumps the version. A stale version yields
	// ErrRetryRequired from the implementation.
	UpdateUsage(ctx context.Context, usage *SharedAccountUsage) error
}

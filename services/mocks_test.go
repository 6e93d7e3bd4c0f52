package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/openclub/clubd/domain"
)

// --- Mock Implementations ---

type MockMemberRepository struct {
	mock.Mock
}

func (m *MockMemberRepository) CreateMember(ctx context.Context, member *domain.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockMemberRepository) GetMemberByID(ctx context.Context, id string) (*domain.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Member), args.Error(1)
}

func (m *MockMemberRepository) ListMembers(ctx context.Context) ([]*domain.Member, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Member), args.Error(1)
}

func (m *MockMemberRepository) SetLastLoginAt(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockMemberRepository) DeleteMember(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockAccountLockRepository struct {
	mock.Mock
}

func (m *MockAccountLockRepository) FindByMemberID(ctx context.Context, memberID string) (*domain.AccountLock, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccountLock), args.Error(1)
}

func (m *MockAccountLockRepository) Save(ctx context.Context, lock *domain.AccountLock) error {
	args := m.Called(ctx, lock)
	return args.Error(0)
}

type MockSharedAccountRepository struct {
	mock.Mock
}

func (m *MockSharedAccountRepository) GetAccountByID(ctx context.Context, id string) (*domain.SharedAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SharedAccount), args.Error(1)
}

func (m *MockSharedAccountRepository) SaveAccount(ctx context.Context, account *domain.SharedAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockSharedAccountRepository) CreateUsage(ctx context.Context, usage *domain.SharedAccountUsage) error {
	args := m.Called(ctx, usage)
	return args.Error(0)
}

func (m *MockSharedAccountRepository) GetUsageByID(ctx context.Context, id string) (*domain.SharedAccountUsage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SharedAccountUsage), args.Error(1)
}

func (m *MockSharedAccountRepository) ListUsagesByAccount(ctx context.Context, accountID string) ([]*domain.SharedAccountUsage, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SharedAccountUsage), args.Error(1)
}

func (m *MockSharedAccountRepository) FindOverlapping(ctx context.Context, accountID string, statuses []domain.UsageStatus, start, end time.Time) ([]*domain.SharedAccountUsage, error) {
	args := m.Called(ctx, accountID, statuses, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SharedAccountUsage), args.Error(1)
}

func (m *MockSharedAccountRepository) ListUsagesByStatus(ctx context.Context, status domain.UsageStatus) ([]*domain.SharedAccountUsage, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SharedAccountUsage), args.Error(1)
}

func (m *MockSharedAccountRepository) UpdateUsage(ctx context.Context, usage *domain.SharedAccountUsage) error {
	args := m.Called(ctx, usage)
	return args.Error(0)
}

type MockPasswordHasher struct {
	mock.Mock
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(hashedPassword, password string) error {
	args := m.Called(hashedPassword, password)
	return args.Error(0)
}

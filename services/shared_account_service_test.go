package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openclub/clubd/domain"
	"github.com/openclub/clubd/errors"
)

func newSharedAccountFixture(t *testing.T) (*SharedAccountService, *MockSharedAccountRepository, time.Time) {
	t.Helper()
	repo := new(MockSharedAccountRepository)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewSharedAccountService(repo).WithClock(func() time.Time { return now })
	return svc, repo, now
}

func TestRequestUsageRejectsBadWindows(t *testing.T) {
	svc, _, now := newSharedAccountFixture(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		start, end time.Time
	}{
		{"start equals end", now.Add(time.Hour), now.Add(time.Hour)},
		{"start after end", now.Add(2 * time.Hour), now.Add(time.Hour)},
		{"window fully in the past", now.Add(-2 * time.Hour), now.Add(-time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RequestUsage(ctx, "acc-1", "pat", tt.start, tt.end)
			assert.ErrorIs(t, err, errors.ErrInvalidUsageTime)
		})
	}
}

func TestRequestUsageConflict(t *testing.T) {
	svc, repo, now := newSharedAccountFixture(t)
	ctx := context.Background()

	start := now.Add(time.Hour)
	end := now.Add(2 * time.Hour)
	repo.On("GetAccountByID", ctx, "acc-1").Return(&domain.SharedAccount{ID: "acc-1"}, nil)
	repo.On("FindOverlapping", ctx, "acc-1",
		[]domain.UsageStatus{domain.UsageReserved, domain.UsageInUse}, start, end).
		Return([]*domain.SharedAccountUsage{{ID: "other"}}, nil)

	_, err := svc.RequestUsage(ctx, "acc-1", "pat", start, end)
	assert.ErrorIs(t, err, errors.ErrUsageConflict)
	repo.AssertNotCalled(t, "CreateUsage", mock.Anything, mock.Anything)
}

func TestRequestUsageFutureWindowStartsReserved(t *testing.T) {
	svc, repo, now := newSharedAccountFixture(t)
	ctx := context.Background()

	start := now.Add(time.Hour)
	end := now.Add(2 * time.Hour)
	repo.On("GetAccountByID", ctx, "acc-1").Return(&domain.SharedAccount{ID: "acc-1"}, nil)
	repo.On("FindOverlapping", ctx, "acc-1", mock.Anything, start, end).
		Return([]*domain.SharedAccountUsage{}, nil)
	repo.On("CreateUsage", ctx, mock.MatchedBy(func(u *domain.SharedAccountUsage) bool {
		return u.Status == domain.UsageReserved && u.MemberID == "pat" && u.ID != ""
	})).Return(nil)

	usage, err := svc.RequestUsage(ctx, "acc-1", "pat", start, end)
	require.NoError(t, err)
	assert.Equal(t, domain.UsageReserved, usage.Status)
	repo.AssertNotCalled(t, "SaveAccount", mock.Anything, mock.Anything)
}

func TestRequestUsageRunningWindowStartsInUse(t *testing.T) {
	svc, repo, now := newSharedAccountFixture(t)
	ctx := context.Background()

	start := now.Add(-10 * time.Minute)
	end := now.Add(time.Hour)
	account := &domain.SharedAccount{ID: "acc-1"}
	repo.On("GetAccountByID", ctx, "acc-1").Return(account, nil)
	repo.On("FindOverlapping", ctx, "acc-1", mock.Anything, start, end).
		Return([]*domain.SharedAccountUsage{}, nil)
	repo.On("CreateUsage", ctx, mock.Anything).Return(nil)
	repo.On("SaveAccount", ctx, account).Return(nil)

	usage, err := svc.RequestUsage(ctx, "acc-1", "pat", start, end)
	require.NoError(t, err)
	assert.Equal(t, domain.UsageInUse, usage.Status)
	assert.True(t, account.InUse)
}

func TestCancelUsagePermissions(t *testing.T) {
	svc, repo, now := newSharedAccountFixture(t)
	ctx := context.Background()

	usage := &domain.SharedAccountUsage{
		ID:        "u-1",
		AccountID: "acc-1",
		MemberID:  "pat",
		StartTime: now.Add(time.Hour),
		EndTime:   now.Add(2 * time.Hour),
		Status:    domain.UsageReserved,
	}
	repo.On("GetUsageByID", ctx, "u-1").Return(usage, nil)
	repo.On("UpdateUsage", ctx, usage).Return(nil)

	stranger := &domain.Principal{MemberID: "eve", Role: domain.RoleUser}
	assert.ErrorIs(t, svc.CancelUsage(ctx, "u-1", stranger), errors.ErrPermissionDenied)

	admin := &domain.Principal{MemberID: "root", Role: domain.RoleAdmin}
	require.NoError(t, svc.CancelUsage(ctx, "u-1", admin))
	assert.Equal(t, domain.UsageCanceled, usage.Status)
}

func TestCancelCompletedUsageRejected(t *testing.T) {
	svc, repo, _ := newSharedAccountFixture(t)
	ctx := context.Background()

	usage := &domain.SharedAccountUsage{ID: "u-1", MemberID: "pat", Status: domain.UsageCompleted}
	repo.On("GetUsageByID", ctx, "u-1").Return(usage, nil)

	owner := &domain.Principal{MemberID: "pat", Role: domain.RoleUser}
	assert.ErrorIs(t, svc.CancelUsage(ctx, "u-1", owner), errors.ErrInvalidUsageTime)
}

func TestSweepPromotesAndCompletes(t *testing.T) {
	svc, repo, now := newSharedAccountFixture(t)
	ctx := context.Background()

	account := &domain.SharedAccount{ID: "acc-1", InUse: true}
	started := &domain.SharedAccountUsage{
		ID: "u-started", AccountID: "acc-1",
		StartTime: now.Add(-time.Minute), EndTime: now.Add(time.Hour),
		Status: domain.UsageReserved,
	}
	notYet := &domain.SharedAccountUsage{
		ID: "u-later", AccountID: "acc-1",
		StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour),
		Status: domain.UsageReserved,
	}
	ended := &domain.SharedAccountUsage{
		ID: "u-ended", AccountID: "acc-2",
		StartTime: now.Add(-2 * time.Hour), EndTime: now.Add(-time.Minute),
		Status: domain.UsageInUse,
	}

	repo.On("ListUsagesByStatus", ctx, domain.UsageReserved).
		Return([]*domain.SharedAccountUsage{started, notYet}, nil)
	repo.On("ListUsagesByStatus", ctx, domain.UsageInUse).
		Return([]*domain.SharedAccountUsage{ended}, nil)
	repo.On("UpdateUsage", ctx, started).Return(nil)
	repo.On("UpdateUsage", ctx, ended).Return(nil)
	repo.On("GetAccountByID", ctx, "acc-1").Return(account, nil)
	repo.On("GetAccountByID", ctx, "acc-2").Return(&domain.SharedAccount{ID: "acc-2", InUse: true}, nil)
	repo.On("SaveAccount", ctx, mock.Anything).Return(nil)

	svc.SweepStatuses(ctx)

	assert.Equal(t, domain.UsageInUse, started.Status)
	assert.Equal(t, domain.UsageReserved, notYet.Status)
	assert.Equal(t, domain.UsageCompleted, ended.Status)
	repo.AssertExpectations(t)
}

func TestSweepSkipsVersionConflicts(t *testing.T) {
	svc, repo, now := newSharedAccountFixture(t)
	ctx := context.Background()

	contested := &domain.SharedAccountUsage{
		ID: "u-contested", AccountID: "acc-1",
		StartTime: now.Add(-2 * time.Hour), EndTime: now.Add(-time.Minute),
		Status: domain.UsageInUse, Version: 3,
	}
	repo.On("ListUsagesByStatus", ctx, domain.UsageReserved).
		Return([]*domain.SharedAccountUsage{}, nil)
	repo.On("ListUsagesByStatus", ctx, domain.UsageInUse).
		Return([]*domain.SharedAccountUsage{contested}, nil)
	repo.On("UpdateUsage", ctx, contested).Return(errors.ErrRetryRequired)

	// A lost race is not an error: the record is left for the next
	// sweep and the account flag stays untouched.
	svc.SweepStatuses(ctx)
	repo.AssertNotCalled(t, "GetAccountByID", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "SaveAccount", mock.Anything, mock.Anything)
}

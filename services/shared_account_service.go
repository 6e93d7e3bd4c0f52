package services

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openclub/clubd/domain"
	"github.com/openclub/clubd/errors"
)

// sweepInterval is how often usage windows are reconciled with the
// wall clock.
const sweepInterval = time.Minute

// SharedAccountService manages reservations on club-owned shared
// accounts. Status transitions are time-driven: a periodic sweep moves
// RESERVED windows to IN_USE and IN_USE windows to COMPLETED, guarded
// by the usages' optimistic version so concurrent handler writes win
// cleanly.
type SharedAccountService struct {
	accounts domain.SharedAccountRepository
	now      func() time.Time
}

// NewSharedAccountService creates a SharedAccountService.
func NewSharedAccountService(accounts domain.SharedAccountRepository) *SharedAccountService {
	return &SharedAccountService{accounts: accounts, now: time.Now}
}

// WithClock overrides the service clock. Intended for tests.
func (s *SharedAccountService) WithClock(now func() time.Time) *SharedAccountService {
	s.now = now
	return s
}

// RequestUsage reserves [start, end) on the account for the member.
// The window must be well formed and must not overlap any RESERVED or
// IN_USE window on the same account.
func (s *SharedAccountService) RequestUsage(ctx context.Context, accountID, memberID string, start, end time.Time) (*domain.SharedAccountUsage, error) {
	now := s.now()
	if !start.Before(end) || end.Before(now) {
		return nil, errors.ErrInvalidUsageTime
	}

	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	overlapping, err := s.accounts.FindOverlapping(ctx, accountID,
		[]domain.UsageStatus{domain.UsageReserved, domain.UsageInUse}, start, end)
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		return nil, errors.ErrUsageConflict
	}

	usage := &domain.SharedAccountUsage{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		MemberID:  memberID,
		StartTime: start,
		EndTime:   end,
		Status:    domain.UsageReserved,
		CreatedAt: now,
	}
	// A window already underway starts IN_USE, not RESERVED.
	if usage.StatusAt(now) == domain.UsageInUse {
		usage.Status = domain.UsageInUse
	}

	if err := s.accounts.CreateUsage(ctx, usage); err != nil {
		return nil, err
	}
	if usage.Status == domain.UsageInUse {
		s.markAccountUse(ctx, account, true)
	}

	log.Info().Str("usageID", usage.ID).Str("accountID", accountID).
		Str("memberID", memberID).Str("status", string(usage.Status)).
		Msg("Shared account usage requested")
	return usage, nil
}

// CancelUsage cancels a reservation. Only the owning member or an
// admin may cancel, and only before the window completed.
func (s *SharedAccountService) CancelUsage(ctx context.Context, usageID string, principal *domain.Principal) error {
	usage, err := s.accounts.GetUsageByID(ctx, usageID)
	if err != nil {
		return err
	}
	if usage.MemberID != principal.MemberID && !principal.Role.AtLeast(domain.RoleAdmin) {
		return errors.ErrPermissionDenied
	}
	if usage.Status == domain.UsageCompleted || usage.Status == domain.UsageCanceled {
		return errors.ErrInvalidUsageTime
	}

	wasInUse := usage.Status == domain.UsageInUse
	usage.Status = domain.UsageCanceled
	if err := s.accounts.UpdateUsage(ctx, usage); err != nil {
		return err
	}
	if wasInUse {
		s.releaseAccount(ctx, usage.AccountID)
	}

	log.Info().Str("usageID", usageID).Str("memberID", principal.MemberID).Msg("Shared account usage canceled")
	return nil
}

// ListUsages returns all usage windows on the account.
func (s *SharedAccountService) ListUsages(ctx context.Context, accountID string) ([]*domain.SharedAccountUsage, error) {
	return s.accounts.ListUsagesByAccount(ctx, accountID)
}

// SweepStatuses reconciles usage states with the clock: RESERVED
// windows whose start passed become IN_USE, IN_USE windows whose end
// passed become COMPLETED. Version conflicts are skipped, the next
// sweep picks the record up again.
func (s *SharedAccountService) SweepStatuses(ctx context.Context) {
	now := s.now()

	reserved, err := s.accounts.ListUsagesByStatus(ctx, domain.UsageReserved)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list reserved usages")
		return
	}
	for _, usage := range reserved {
		if usage.StatusAt(now) == domain.UsageReserved {
			continue
		}
		usage.Status = usage.StatusAt(now)
		if err := s.updateSwept(ctx, usage); err != nil {
			continue
		}
		if usage.Status == domain.UsageInUse {
			if account, err := s.accounts.GetAccountByID(ctx, usage.AccountID); err == nil {
				s.markAccountUse(ctx, account, true)
			}
		}
	}

	inUse, err := s.accounts.ListUsagesByStatus(ctx, domain.UsageInUse)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list in-use usages")
		return
	}
	for _, usage := range inUse {
		if usage.StatusAt(now) != domain.UsageCompleted {
			continue
		}
		usage.Status = domain.UsageCompleted
		if err := s.updateSwept(ctx, usage); err != nil {
			continue
		}
		s.releaseAccount(ctx, usage.AccountID)
	}
}

// StartSweeper runs SweepStatuses every minute until ctx is canceled.
func (s *SharedAccountService) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepStatuses(ctx)
			}
		}
	}()
}

func (s *SharedAccountService) updateSwept(ctx context.Context, usage *domain.SharedAccountUsage) error {
	err := s.accounts.UpdateUsage(ctx, usage)
	if err != nil {
		if stderrors.Is(err, errors.ErrRetryRequired) {
			log.Debug().Str("usageID", usage.ID).Msg("Usage changed underneath the sweep, skipping")
		} else {
			log.Error().Err(err).Str("usageID", usage.ID).Msg("Failed to update swept usage")
		}
	}
	return err
}

func (s *SharedAccountService) markAccountUse(ctx context.Context, account *domain.SharedAccount, inUse bool) {
	if account.InUse == inUse {
		return
	}
	account.InUse = inUse
	if err := s.accounts.SaveAccount(ctx, account); err != nil {
		log.Error().Err(err).Str("accountID", account.ID).Msg("Failed to update account use flag")
	}
}

func (s *SharedAccountService) releaseAccount(ctx context.Context, accountID string) {
	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		log.Error().Err(err).Str("accountID", accountID).Msg("Failed to load account for release")
		return
	}
	s.markAccountUse(ctx, account, false)
}

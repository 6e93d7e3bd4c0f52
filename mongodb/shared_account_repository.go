package mongodb

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/openclub/clubd/domain"
	"github.com/openclub/clubd/errors"
)

// SharedAccountRepository implements domain.SharedAccountRepository.
// Usage updates use an optimistic version check because the status
// sweeper and request handlers can race on the same record.
type SharedAccountRepository struct {
	accounts *mongo.Collection
	usages   *mongo.Collection
}

// NewSharedAccountRepository creates the repository and ensures the
// usage indexes.
func NewSharedAccountRepository(ctx context.Context, db *mongo.Database) (*SharedAccountRepository, error) {
	repo := &SharedAccountRepository{
		accounts: db.Collection(SharedAccountsCollection),
		usages:   db.Collection(SharedAccountUsagesCollection),
	}
	_, err := repo.usages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create shared account usage indexes")
	}
	return repo, nil
}

// GetAccountByID retrieves a shared account.
func (r *SharedAccountRepository) GetAccountByID(ctx context.Context, id string) (*domain.SharedAccount, error) {
	var account domain.SharedAccount
	err := r.accounts.FindOne(ctx, bson.M{"_id": id}).Decode(&account)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: shared account %s", errors.ErrNotFound, id)
		}
		return nil, err
	}
	return &account, nil
}

// SaveAccount upserts a shared account with an optimistic version check.
func (r *SharedAccountRepository) SaveAccount(ctx context.Context, account *domain.SharedAccount) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
		account.Version = 1
		_, err := r.accounts.InsertOne(ctx, account)
		return err
	}

	res, err := r.accounts.ReplaceOne(ctx,
		bson.M{"_id": account.ID, "version": account.Version},
		&domain.SharedAccount{
			ID:       account.ID,
			Username: account.Username,
			Platform: account.Platform,
			InUse:    account.InUse,
			Version:  account.Version + 1,
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: shared account %s", errors.ErrRetryRequired, account.ID)
	}
	account.Version++
	return nil
}

// CreateUsage inserts a new usage window.
func (r *SharedAccountRepository) CreateUsage(ctx context.Context, usage *domain.SharedAccountUsage) error {
	if usage.ID == "" {
		usage.ID = uuid.NewString()
	}
	if usage.CreatedAt.IsZero() {
		usage.CreatedAt = time.Now().UTC()
	}
	usage.Version = 1
	_, err := r.usages.InsertOne(ctx, usage)
	return err
}

// GetUsageByID retrieves one usage window.
func (r *SharedAccountRepository) GetUsageByID(ctx context.Context, id string) (*domain.SharedAccountUsage, error) {
	var usage domain.SharedAccountUsage
	err := r.usages.FindOne(ctx, bson.M{"_id": id}).Decode(&usage)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: usage %s", errors.ErrNotFound, id)
		}
		return nil, err
	}
	return &usage, nil
}

// ListUsagesByAccount returns the usage windows of one account, newest first.
func (r *SharedAccountRepository) ListUsagesByAccount(ctx context.Context, accountID string) ([]*domain.SharedAccountUsage, error) {
	return r.findUsages(ctx, bson.M{"account_id": accountID})
}

// FindOverlapping returns usages of the account in the given statuses
// whose window intersects [start, end).
func (r *SharedAccountRepository) FindOverlapping(ctx context.Context, accountID string, statuses []domain.UsageStatus, start, end time.Time) ([]*domain.SharedAccountUsage, error) {
	return r.findUsages(ctx, bson.M{
		"account_id": accountID,
		"status":     bson.M{"$in": statuses},
		"start_time": bson.M{"$lt": end},
		"end_time":   bson.M{"$gt": start},
	})
}

// ListUsagesByStatus returns every usage window in the given status.
func (r *SharedAccountRepository) ListUsagesByStatus(ctx context.Context, status domain.UsageStatus) ([]*domain.SharedAccountUsage, error) {
	return r.findUsages(ctx, bson.M{"status": status})
}

func (r *SharedAccountRepository) findUsages(ctx context.Context, filter bson.M) ([]*domain.SharedAccountUsage, error) {
	cursor, err := r.usages.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var usages []*domain.SharedAccountUsage
	if err := cursor.All(ctx, &usages); err != nil {
		return nil, err
	}
	return usages, nil
}

// UpdateUsage persists the record iff the stored version is unchanged,
// then bumps the version. A stale version yields ErrRetryRequired.
func (r *SharedAccountRepository) UpdateUsage(ctx context.Context, usage *domain.SharedAccountUsage) error {
	res, err := r.usages.UpdateOne(ctx,
		bson.M{"_id": usage.ID, "version": usage.Version},
		bson.M{
			"$set": bson.M{"status": usage.Status, "start_time": usage.StartTime, "end_time": usage.EndTime},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: usage %s", errors.ErrRetryRequired, usage.ID)
	}
	usage.Version++
	return nil
}

var _ domain.SharedAccountRepository = (*SharedAccountRepository)(nil)

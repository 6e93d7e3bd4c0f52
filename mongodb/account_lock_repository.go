package mongodb

import (
	"context"
	stderrors "errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/openclub/clubd/domain"
	"github.com/openclub/clubd/errors"
)

// AccountLockRepository implements domain.AccountLockRepository. Lock
// records are keyed by member id and upserted; they are reset, never
// deleted.
type AccountLockRepository struct {
	locks *mongo.Collection
}

// NewAccountLockRepository creates the repository.
func NewAccountLockRepository(db *mongo.Database) *AccountLockRepository {
	return &AccountLockRepository{locks: db.Collection(AccountLocksCollection)}
}

// FindByMemberID retrieves the lock record for a member.
func (r *AccountLockRepository) FindByMemberID(ctx context.Context, memberID string) (*domain.AccountLock, error) {
	var lock domain.AccountLock
	err := r.locks.FindOne(ctx, bson.M{"_id": memberID}).Decode(&lock)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: lock record for %s", errors.ErrNotFound, memberID)
		}
		return nil, err
	}
	return &lock, nil
}

// Save upserts the lock record.
func (r *AccountLockRepository) Save(ctx context.Context, lock *domain.AccountLock) error {
	_, err := r.locks.ReplaceOne(ctx, bson.M{"_id": lock.MemberID}, lock,
		options.Replace().SetUpsert(true))
	return err
}

var _ domain.AccountLockRepository = (*AccountLockRepository)(nil)

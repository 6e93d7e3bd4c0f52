package mongodb

import (
	"context"
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

// BlacklistRepository implements domain.BlacklistRepository.
type BlacklistRepository struct {
	entries *mongo.Collection
}

// NewBlacklistRepository creates the repository and ensures a unique
// index on the address.
func NewBlacklistRepository(ctx context.Context, db *mongo.Database) (*BlacklistRepository, error) {
	repo := &BlacklistRepository{entries: db.Collection(BlacklistCollection)}
	_, err := repo.entries.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "ip_address", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create blacklist index")
	}
	return repo, nil
}

// Add inserts a blocked address. Blocking an already blocked address
// reports ErrAlreadyExists.
func (r *BlacklistRepository) Add(ctx context.Context, entry *domain.BlacklistIP) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, err := r.entries.InsertOne(ctx, entry); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: ip %s", errors.ErrAlreadyExists, entry.IPAddress)
		}
		return err
	}
	return nil
}

// Remove unblocks an address.
func (r *BlacklistRepository) Remove(ctx context.Context, ip string) error {
	res, err := r.entries.DeleteOne(ctx, bson.M{"ip_address": ip})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: ip %s", errors.ErrNotFound, ip)
	}
	return nil
}

// Exists reports whether the address is blocked.
func (r *BlacklistRepository) Exists(ctx context.Context, ip string) (bool, error) {
	count, err := r.entries.CountDocuments(ctx, bson.M{"ip_address": ip})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns all blocked addresses, newest first.
func (r *BlacklistRepository) List(ctx context.Context) ([]*domain.BlacklistIP, error) {
	cursor, err := r.entries.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*domain.BlacklistIP
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

var _ domain.BlacklistRepository = (*BlacklistRepository)(nil)

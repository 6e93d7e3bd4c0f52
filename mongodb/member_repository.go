package mongodb

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/openclub/clubd/domain"
	"github.com/openclub/clubd/errors"
)

// MemberRepository implements domain.MemberRepository.
type MemberRepository struct {
	members *mongo.Collection
}

// NewMemberRepository creates the repository and ensures its indexes.
func NewMemberRepository(ctx context.Context, db *mongo.Database) (*MemberRepository, error) {
	repo := &MemberRepository{members: db.Collection(MembersCollection)}
	if err := repo.createIndexes(ctx); err != nil {
		// Index creation commonly fails when compatible indexes already
		// exist; not fatal for startup.
		log.Warn().Err(err).Msg("Failed to create member indexes")
	}
	return repo, nil
}

func (r *MemberRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "role", Value: 1}},
		},
	}
	if _, err := r.members.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes for members collection: %w", err)
	}
	return nil
}

// CreateMember inserts a new member record.
func (r *MemberRepository) CreateMember(ctx context.Context, member *domain.Member) error {
	if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now().UTC()
	}
	member.UpdatedAt = time.Now().UTC()
	if member.Role == "" {
		member.Role = domain.RoleUser
	}

	if _, err := r.members.InsertOne(ctx, member); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: member %s", errors.ErrAlreadyExists, member.ID)
		}
		log.Error().Err(err).Str("memberID", member.ID).Msg("Error creating member in MongoDB")
		return err
	}
	return nil
}

// GetMemberByID retrieves a member by id.
func (r *MemberRepository) GetMemberByID(ctx context.Context, id string) (*domain.Member, error) {
	var member domain.Member
	err := r.members.FindOne(ctx, bson.M{"_id": id}).Decode(&member)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: member %s", errors.ErrNotFound, id)
		}
		log.Error().Err(err).Str("id", id).Msg("Error getting member by ID from MongoDB")
		return nil, err
	}
	return &member, nil
}

// ListMembers returns all members.
func (r *MemberRepository) ListMembers(ctx context.Context) ([]*domain.Member, error) {
	cursor, err := r.members.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var members []*domain.Member
	if err := cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// SetLastLoginAt stamps the member's last successful login.
func (r *MemberRepository) SetLastLoginAt(ctx context.Context, id string, at time.Time) error {
	res, err := r.members.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"last_login_at": at, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: member %s", errors.ErrNotFound, id)
	}
	return nil
}

// DeleteMember removes a member record.
func (r *MemberRepository) DeleteMember(ctx context.Context, id string) error {
	res, err := r.members.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: member %s", errors.ErrNotFound, id)
	}
	return nil
}

var _ domain.MemberRepository = (*MemberRepository)(nil)

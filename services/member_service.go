package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/openclub/clubd/cache"
	"github.com/openclub/clubd/domain"
)

// PasswordHasher derives a storable hash from a plaintext password.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// MemberService manages member accounts.
type MemberService struct {
	members  domain.MemberRepository
	sessions cache.SessionStore
	hasher   PasswordHasher
}

// NewMemberService creates a MemberService.
func NewMemberService(members domain.MemberRepository, sessions cache.SessionStore, hasher PasswordHasher) *MemberService {
	return &MemberService{members: members, sessions: sessions, hasher: hasher}
}

// Register creates a member with the given credentials. An empty role
// defaults to USER inside the repository.
func (s *MemberService) Register(ctx context.Context, id, name, email, password string, role domain.Role) (*domain.Member, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	member := &domain.Member{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.members.CreateMember(ctx, member); err != nil {
		return nil, err
	}

	log.Info().Str("memberID", member.ID).Str("role", string(member.Role)).Msg("Member registered")
	return member, nil
}

// Get fetches a member by id.
func (s *MemberService) Get(ctx context.Context, id string) (*domain.Member, error) {
	return s.members.GetMemberByID(ctx, id)
}

// List returns all members.
func (s *MemberService) List(ctx context.Context) ([]*domain.Member, error) {
	return s.members.ListMembers(ctx)
}

// Delete removes the member and revokes any live session, so deleted
// accounts cannot keep using previously issued tokens.
func (s *MemberService) Delete(ctx context.Context, id string) error {
	if err := s.members.DeleteMember(ctx, id); err != nil {
		return err
	}
	if err := s.sessions.DeleteByMemberID(ctx, id); err != nil {
		log.Error().Err(err).Str("memberID", id).Msg("Failed to revoke session of deleted member")
	}
	return nil
}

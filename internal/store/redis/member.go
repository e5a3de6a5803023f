package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/steward-lb/steward/internal/domain"
)

const (
	// DefaultMemberTTL is the default TTL for member records (48 hours).
	// A steward that never comes back leaves no stale roster behind.
	DefaultMemberTTL = 48 * time.Hour
)

// Store persists member records and health events so the roster survives
// restarts. All writes are best effort: the in-memory roster is the
// source of truth.
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// SaveMember stores a member record in Redis
func (s *Store) SaveMember(ctx context.Context, member *domain.Member) error {
	data, err := json.Marshal(member)
	if err != nil {
		return fmt.Errorf("failed to marshal member: %w", err)
	}

	key := MemberKey(member.ID)

	if err := s.client.Set(ctx, key, data, DefaultMemberTTL).Err(); err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}

	if err := s.client.SAdd(ctx, AllMembersKey(), member.ID).Err(); err != nil {
		return fmt.Errorf("failed to add member to set: %w", err)
	}

	return nil
}

// GetMember retrieves a member record from Redis by ID
func (s *Store) GetMember(ctx context.Context, id string) (*domain.Member, error) {
	key := MemberKey(id)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("member not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	var member domain.Member
	if err := json.Unmarshal(data, &member); err != nil {
		return nil, fmt.Errorf("failed to unmarshal member: %w", err)
	}

	return &member, nil
}

// GetAllMembers retrieves all member records from Redis
func (s *Store) GetAllMembers(ctx context.Context) ([]*domain.Member, error) {
	ids, err := s.client.SMembers(ctx, AllMembersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get member IDs: %w", err)
	}

	if len(ids) == 0 {
		return []*domain.Member{}, nil
	}

	members := make([]*domain.Member, 0, len(ids))
	for _, id := range ids {
		member, err := s.GetMember(ctx, id)
		if err != nil {
			// Skip records that expired between SMembers and Get
			continue
		}
		members = append(members, member)
	}

	return members, nil
}

// DeleteMember removes a member record from Redis
func (s *Store) DeleteMember(ctx context.Context, id string) error {
	key := MemberKey(id)

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}

	if err := s.client.SRem(ctx, AllMembersKey(), id).Err(); err != nil {
		return fmt.Errorf("failed to remove member from set: %w", err)
	}

	return nil
}

// SaveMembersMany stores multiple member records in Redis (bulk operation)
func (s *Store) SaveMembersMany(ctx context.Context, members []*domain.Member) error {
	pipe := s.client.Pipeline()

	for _, member := range members {
		data, err := json.Marshal(member)
		if err != nil {
			return fmt.Errorf("failed to marshal member %s: %w", member.ID, err)
		}

		key := MemberKey(member.ID)
		pipe.Set(ctx, key, data, DefaultMemberTTL)
		pipe.SAdd(ctx, AllMembersKey(), member.ID)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save members: %w", err)
	}

	return nil
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adportal/pkg/redis"
)

const defaultStateTTL = 24 * time.Hour

type Storage struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// New wraps a Redis client. A zero ttl keeps states for 24 hours.
func New(client *redis.Client, ttl time.Duration) *Storage {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &Storage{client: client, ttl: ttl, now: time.Now}
}

func (s *Storage) SetUserDialogState(ctx context.Context, chatID int64, state *UserState) error {
	state.UpdatedAt = s.now()
	if err := s.client.SetJSON(ctx, buildStateKey(chatID), state, s.ttl); err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return nil
}

// GetUserDialogState returns an empty state when none is stored.
func (s *Storage) GetUserDialogState(ctx context.Context, chatID int64) (*UserState, error) {
	var state UserState
	err := s.client.GetJSON(ctx, buildStateKey(chatID), &state)
	if errors.Is(err, redis.ErrNotFound) {
		return &UserState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	return &state, nil
}

func (s *Storage) DropUserDialogState(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, buildStateKey(chatID))
}

func buildStateKey(chatID int64) string {
	return fmt.Sprintf("state:%d", chatID)
}

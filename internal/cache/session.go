package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vali024/valix-shop/internal/domain"
)

// SessionState is the client-side copy of a cart: the lines, the promo code
// and the user the session is logged in as, if any.
type SessionState struct {
	Cart   domain.Cart `json:"cart"`
	UserID string      `json:"user_id,omitempty"`
}

// SessionStore keeps the per-session cart snapshot that survives between requests.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SessionStore{client: client, ttl: ttl}
}

// Load returns an empty state for unknown sessions.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (SessionState, error) {
	st := SessionState{Cart: domain.NewCart()}

	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("redis get session failed: %w", err)
	}

	if err := json.Unmarshal(data, &st); err != nil {
		return SessionState{Cart: domain.NewCart()}, fmt.Errorf("unmarshal session failed: %w", err)
	}
	if st.Cart.Lines == nil {
		st.Cart.Lines = domain.Lines{}
	}
	return st, nil
}

func (s *SessionStore) Save(ctx context.Context, sessionID string, st SessionState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session failed: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete session failed: %w", err)
	}
	return nil
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:cart:%s", sessionID)
}

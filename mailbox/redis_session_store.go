package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tempinbox/models"

	"github.com/go-redis/redis/v8"
)

const redisSessionPrefix = "tempinbox:session:"

// RedisSessionStore keeps sessions in redis so they survive restarts and are
// shared between instances. Expiry is delegated to the key TTL.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

type redisSession struct {
	AccountID uint            `json:"account_id"`
	Token     string          `json:"token"`
	Address   string          `json:"address"`
	Provider  models.Provider `json:"provider"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func redisSessionKey(accountID uint) string {
	return fmt.Sprintf("%s%d", redisSessionPrefix, accountID)
}

func (s *RedisSessionStore) Get(ctx context.Context, accountID uint) (*models.ProviderSession, error) {
	raw, err := s.client.Get(ctx, redisSessionKey(accountID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var stored redisSession
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &models.ProviderSession{
		AccountID: stored.AccountID,
		Token:     stored.Token,
		Address:   stored.Address,
		Provider:  stored.Provider,
		ExpiresAt: stored.ExpiresAt,
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.CreatedAt,
	}, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, session *models.ProviderSession) error {
	var ttl time.Duration
	if session.ExpiresAt != nil {
		ttl = time.Until(*session.ExpiresAt)
		if ttl <= 0 {
			return s.Delete(ctx, session.AccountID)
		}
	}

	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	payload, err := json.Marshal(redisSession{
		AccountID: session.AccountID,
		Token:     session.Token,
		Address:   session.Address,
		Provider:  session.Provider,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: createdAt,
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := s.client.Set(ctx, redisSessionKey(session.AccountID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, accountID uint) error {
	if err := s.client.Del(ctx, redisSessionKey(accountID)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

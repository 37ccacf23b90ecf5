package mailbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"tempinbox/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestRedisSessionStore(t *testing.T) (*miniredis.Miniredis, *RedisSessionStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisSessionStore(client)
}

func TestRedisSessionStore(t *testing.T) {
	_, s := newTestRedisSessionStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, 1); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get() on empty store err = %v", err)
	}

	if err := s.Save(ctx, &models.ProviderSession{AccountID: 1, Token: "tok", Address: "a@mbox.re", Provider: models.ProviderSecondary}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Token != "tok" || got.Address != "a@mbox.re" || got.Provider != models.ProviderSecondary {
		t.Errorf("Get() = %+v", got)
	}

	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, 1); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() after Delete err = %v", err)
	}
}

func TestRedisSessionStore_Expiry(t *testing.T) {
	mr, s := newTestRedisSessionStore(t)
	ctx := context.Background()

	expires := time.Now().Add(time.Hour)
	if err := s.Save(ctx, &models.ProviderSession{AccountID: 2, Token: "tok", ExpiresAt: &expires}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if ttl := mr.TTL(redisSessionKey(2)); ttl <= 0 || ttl > time.Hour {
		t.Errorf("key TTL = %v, want within one hour", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := s.Get(ctx, 2); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() after TTL err = %v, want ErrSessionNotFound", err)
	}

	past := time.Now().Add(-time.Minute)
	if err := s.Save(ctx, &models.ProviderSession{AccountID: 3, Token: "tok", ExpiresAt: &past}); err != nil {
		t.Fatalf("Save() with past expiry error = %v", err)
	}
	if mr.Exists(redisSessionKey(3)) {
		t.Error("already-expired session was stored")
	}
}

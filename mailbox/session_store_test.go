package mailbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"tempinbox/config"
	"tempinbox/models"
)

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

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
	if got.Token != "tok" || got.CreatedAt.IsZero() {
		t.Errorf("Get() = %+v", got)
	}

	got.Token = "mutated"
	if again, _ := s.Get(ctx, 1); again.Token != "tok" {
		t.Error("Get() must return a copy")
	}

	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, 1); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() after Delete err = %v", err)
	}
}

func TestMemorySessionStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	expires := base.Add(time.Minute)
	_ = s.Save(ctx, &models.ProviderSession{AccountID: 3, Token: "tok", ExpiresAt: &expires})

	if _, err := s.Get(ctx, 3); err != nil {
		t.Fatalf("Get() before expiry error = %v", err)
	}

	s.now = func() time.Time { return expires }
	if _, err := s.Get(ctx, 3); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() at expiry err = %v, want ErrSessionNotFound", err)
	}
	if _, ok := s.sessions[3]; ok {
		t.Error("expired session should be evicted")
	}
}

func newTestDBSessionStore(t *testing.T) *DBSessionStore {
	t.Helper()

	prev := config.AppConfig
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"
	t.Cleanup(func() { config.AppConfig = prev })

	db, err := config.OpenDB("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewDBSessionStore(db)
}

func TestDBSessionStore(t *testing.T) {
	ctx := context.Background()
	s := newTestDBSessionStore(t)

	if _, err := s.Get(ctx, 1); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get() on empty table err = %v", err)
	}

	if err := s.Save(ctx, &models.ProviderSession{AccountID: 1, Token: "secret-token", Address: "a@mbox.re", Provider: models.ProviderSecondary}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var raw models.ProviderSession
	if err := s.db.Where("account_id = ?", 1).First(&raw).Error; err != nil {
		t.Fatalf("raw lookup error = %v", err)
	}
	if raw.Token == "secret-token" {
		t.Error("token stored in plaintext")
	}

	got, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Token != "secret-token" || got.Address != "a@mbox.re" {
		t.Errorf("Get() = %+v", got)
	}

	if err := s.Save(ctx, &models.ProviderSession{AccountID: 1, Token: "second-token", Address: "b@mbox.re", Provider: models.ProviderSecondary}); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}
	got, err = s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get() after overwrite error = %v", err)
	}
	if got.Token != "second-token" || got.Address != "b@mbox.re" {
		t.Errorf("Get() after overwrite = %+v", got)
	}

	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, 1); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() after Delete err = %v", err)
	}
}

func TestDBSessionStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := newTestDBSessionStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := base.Add(time.Hour)
	if err := s.Save(ctx, &models.ProviderSession{AccountID: 2, Token: "tok", Address: "c@mbox.re", Provider: models.ProviderSecondary, ExpiresAt: &expires}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	s.now = func() time.Time { return base }
	if _, err := s.Get(ctx, 2); err != nil {
		t.Fatalf("Get() before expiry error = %v", err)
	}

	s.now = func() time.Time { return expires.Add(time.Second) }
	if _, err := s.Get(ctx, 2); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() after expiry err = %v, want ErrSessionNotFound", err)
	}

	var count int64
	s.db.Model(&models.ProviderSession{}).Where("account_id = ?", 2).Count(&count)
	if count != 0 {
		t.Errorf("expired row count = %d, want 0", count)
	}
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	past, future := base.Add(-time.Minute), base.Add(time.Hour)

	mem := NewMemorySessionStore()
	mem.now = func() time.Time { return base }
	db := newTestDBSessionStore(t)
	db.now = func() time.Time { return base }

	type purgingStore interface {
		SessionStore
		PurgeExpired(context.Context) (int64, error)
	}
	stores := map[string]purgingStore{"memory": mem, "database": db}

	for name, s := range stores {
		_ = s.Save(ctx, &models.ProviderSession{AccountID: 1, Token: "a", Address: "a@mbox.re", Provider: models.ProviderSecondary, ExpiresAt: &past})
		_ = s.Save(ctx, &models.ProviderSession{AccountID: 2, Token: "b", Address: "b@mbox.re", Provider: models.ProviderSecondary, ExpiresAt: &future})
		_ = s.Save(ctx, &models.ProviderSession{AccountID: 3, Token: "c", Address: "c@mbox.re", Provider: models.ProviderSecondary})

		purged, err := s.PurgeExpired(ctx)
		if err != nil {
			t.Fatalf("%s: PurgeExpired() error = %v", name, err)
		}
		if purged != 1 {
			t.Errorf("%s: purged = %d, want 1", name, purged)
		}
		for _, id := range []uint{2, 3} {
			if _, err := s.Get(ctx, id); err != nil {
				t.Errorf("%s: session %d lost: %v", name, id, err)
			}
		}
	}
}

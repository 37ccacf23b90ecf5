package store

import (
	"context"
	"errors"
	"testing"

	"tempinbox/config"
	"tempinbox/models"
)

func newTestStore(t *testing.T) *AccountStore {
	t.Helper()
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
	return NewAccountStore(db)
}

func TestCreateAccount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.CreateAccount(ctx, "  User@Test.com ", "hash")
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if user.ID == 0 || user.Email != "user@test.com" {
		t.Errorf("user = %d/%q, want stored lowercase email", user.ID, user.Email)
	}

	if _, err := s.CreateAccount(ctx, "user@TEST.COM", "other"); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("duplicate CreateAccount() err = %v, want ErrDuplicateEmail", err)
	}
}

func TestFindAccount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateAccount(ctx, "user@test.com", "hash")
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	byEmail, err := s.FindByEmail(ctx, "USER@test.com")
	if err != nil || byEmail.ID != created.ID || byEmail.PasswordHash != "hash" {
		t.Errorf("FindByEmail() = %+v, %v", byEmail, err)
	}

	byID, err := s.FindByID(ctx, created.ID)
	if err != nil || byID.Email != "user@test.com" {
		t.Errorf("FindByID() = %+v, %v", byID, err)
	}

	if _, err := s.FindByEmail(ctx, "nobody@test.com"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("FindByEmail(unknown) err = %v", err)
	}
	if _, err := s.FindByID(ctx, created.ID+100); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("FindByID(unknown) err = %v", err)
	}
}

func TestMailboxLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.CreateAccount(ctx, "user@test.com", "hash")
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	if _, err := s.GetMailbox(ctx, user.ID); !errors.Is(err, ErrNoMailbox) {
		t.Fatalf("GetMailbox() on new account err = %v, want ErrNoMailbox", err)
	}

	if err := s.SetMailbox(ctx, user.ID, "xyz", "1secmail.com", models.ProviderPrimary); err != nil {
		t.Fatalf("SetMailbox() error = %v", err)
	}
	box, err := s.GetMailbox(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetMailbox() error = %v", err)
	}
	if box.Address != "xyz@1secmail.com" || box.Provider != models.ProviderPrimary {
		t.Errorf("GetMailbox() = %+v", box)
	}

	if err := s.SetMailbox(ctx, user.ID, "abc", "mbox.re", models.ProviderSecondary); err != nil {
		t.Fatalf("SetMailbox() overwrite error = %v", err)
	}
	box, _ = s.GetMailbox(ctx, user.ID)
	if box.Address != "abc@mbox.re" || box.Provider != models.ProviderSecondary {
		t.Errorf("GetMailbox() after overwrite = %+v", box)
	}

	if err := s.ClearMailbox(ctx, user.ID); err != nil {
		t.Fatalf("ClearMailbox() error = %v", err)
	}
	if _, err := s.GetMailbox(ctx, user.ID); !errors.Is(err, ErrNoMailbox) {
		t.Errorf("GetMailbox() after clear err = %v", err)
	}
	if err := s.ClearMailbox(ctx, user.ID); err != nil {
		t.Errorf("second ClearMailbox() error = %v", err)
	}
}

func TestSetMailbox_UnknownAccount(t *testing.T) {
	s := newTestStore(t)

	err := s.SetMailbox(context.Background(), 404, "xyz", "1secmail.com", models.ProviderPrimary)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("SetMailbox() err = %v, want ErrAccountNotFound", err)
	}
}

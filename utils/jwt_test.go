package utils

import (
	"testing"
	"time"

	"tempinbox/config"
	"tempinbox/models"

	"gorm.io/gorm"
)

func withTestConfig(t *testing.T) {
	t.Helper()
	prev := config.AppConfig
	config.AppConfig.JWTSecret = "test-secret"
	config.AppConfig.TokenTTL = 7 * 24 * time.Hour
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"
	t.Cleanup(func() {
		config.AppConfig = prev
		now = time.Now
	})
}

func TestGenerateAndParseJWTToken(t *testing.T) {
	withTestConfig(t)

	user := &models.User{Model: gorm.Model{ID: 42}, Email: "user@test.com"}
	token, err := GenerateJWTToken(user)
	if err != nil {
		t.Fatalf("GenerateJWTToken() error = %v", err)
	}

	claims, err := ParseJWTToken(token)
	if err != nil {
		t.Fatalf("ParseJWTToken() error = %v", err)
	}
	if claims.UserID != 42 || claims.Email != "user@test.com" {
		t.Errorf("claims = %d/%q, want 42/user@test.com", claims.UserID, claims.Email)
	}
}

func TestParseJWTToken_ExpiresAfterValidityWindow(t *testing.T) {
	withTestConfig(t)

	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return issued }

	token, err := GenerateJWTToken(&models.User{Model: gorm.Model{ID: 1}, Email: "a@b.com"})
	if err != nil {
		t.Fatalf("GenerateJWTToken() error = %v", err)
	}

	now = func() time.Time { return issued.Add(7*24*time.Hour - time.Minute) }
	if _, err := ParseJWTToken(token); err != nil {
		t.Fatalf("token rejected inside validity window: %v", err)
	}

	now = func() time.Time { return issued.Add(7*24*time.Hour + time.Second) }
	if _, err := ParseJWTToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseJWTToken_WrongSecret(t *testing.T) {
	withTestConfig(t)

	token, err := GenerateJWTToken(&models.User{Model: gorm.Model{ID: 1}, Email: "a@b.com"})
	if err != nil {
		t.Fatalf("GenerateJWTToken() error = %v", err)
	}

	config.AppConfig.JWTSecret = "another-secret"
	if _, err := ParseJWTToken(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestParseJWTToken_Garbage(t *testing.T) {
	withTestConfig(t)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := ParseJWTToken(token); err == nil {
			t.Errorf("ParseJWTToken(%q) succeeded, want error", token)
		}
	}
}

func TestEncryptDecrypt(t *testing.T) {
	withTestConfig(t)

	sealed, err := Encrypt("session-token")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if sealed == "session-token" {
		t.Fatal("Encrypt() returned the plaintext")
	}

	plain, err := Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if plain != "session-token" {
		t.Errorf("Decrypt() = %q, want session-token", plain)
	}

	config.AppConfig.EncryptionKey = "fedcba9876543210fedcba9876543210"
	if _, err := Decrypt(sealed); err == nil {
		t.Error("Decrypt() with a different key succeeded, want error")
	}
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tempinbox/models"

	"gorm.io/gorm"
)

var (
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrAccountNotFound = errors.New("account not found")
	ErrNoMailbox       = errors.New("no mailbox. create one first")
	// ErrStore wraps every persistence failure.
	ErrStore = errors.New("database error")
)

// AccountStore persists accounts and their assigned mailbox.
type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AccountStore) CreateAccount(ctx context.Context, email, passwordHash string) (*models.User, error) {
	email = NormalizeEmail(email)

	var existing models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeError("find account", err)
	}

	user := models.User{
		Email:        email,
		PasswordHash: passwordHash,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, storeError("create account", err)
	}
	return &user, nil
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, storeError("find account", err)
	}
	return &user, nil
}

func (s *AccountStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, storeError("find account", err)
	}
	return &user, nil
}

// SetMailbox overwrites the mailbox assigned to the account.
func (s *AccountStore) SetMailbox(ctx context.Context, id uint, login, domain string, provider models.Provider) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"mail_login":    login,
		"mail_domain":   domain,
		"mail_provider": string(provider),
	})
	if result.Error != nil {
		return storeError("set mailbox", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ClearMailbox removes the mailbox assignment. Clearing an empty mailbox is
// not an error.
func (s *AccountStore) ClearMailbox(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"mail_login":    nil,
		"mail_domain":   nil,
		"mail_provider": nil,
	}).Error
	if err != nil {
		return storeError("clear mailbox", err)
	}
	return nil
}

func (s *AccountStore) GetMailbox(ctx context.Context, id uint) (*models.Mailbox, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Select("id", "mail_login", "mail_domain", "mail_provider").
		First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoMailbox
	}
	if err != nil {
		return nil, storeError("get mailbox", err)
	}

	mailbox, ok := user.Mailbox()
	if !ok {
		return nil, ErrNoMailbox
	}
	return &mailbox, nil
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStore, op, err)
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

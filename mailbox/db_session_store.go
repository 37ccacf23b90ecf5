package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tempinbox/models"
	"tempinbox/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBSessionStore keeps sessions in the provider_sessions table. Tokens are
// encrypted at rest with the configured ENCRYPTION_KEY.
type DBSessionStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDBSessionStore(db *gorm.DB) *DBSessionStore {
	return &DBSessionStore{db: db, now: time.Now}
}

func (s *DBSessionStore) Get(ctx context.Context, accountID uint) (*models.ProviderSession, error) {
	var row models.ProviderSession
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if row.Expired(s.now()) {
		if err := s.Delete(ctx, accountID); err != nil {
			return nil, err
		}
		return nil, ErrSessionNotFound
	}

	token, err := utils.Decrypt(row.Token)
	if err != nil {
		return nil, fmt.Errorf("decrypt session token: %w", err)
	}
	row.Token = token
	return &row, nil
}

func (s *DBSessionStore) Save(ctx context.Context, session *models.ProviderSession) error {
	token, err := utils.Encrypt(session.Token)
	if err != nil {
		return fmt.Errorf("encrypt session token: %w", err)
	}

	row := *session
	row.Token = token
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "address", "provider", "expires_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *DBSessionStore) Delete(ctx context.Context, accountID uint) error {
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&models.ProviderSession{}).Error
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes every session whose expiry has passed and returns the
// number removed.
func (s *DBSessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.now()).
		Delete(&models.ProviderSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

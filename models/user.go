package models

import (
	"gorm.io/gorm"
)

// User represents a registered account and the temporary mailbox currently
// assigned to it.
type User struct {
	gorm.Model

	// Authentication fields
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Assigned mailbox, NULL until one is created
	MailLogin    *string `gorm:"size:64" json:"mail_login,omitempty"`
	MailDomain   *string `gorm:"size:255" json:"mail_domain,omitempty"`
	MailProvider *string `gorm:"size:16" json:"mail_provider,omitempty"` // primary, secondary
}

// PublicUser is the shape of a user returned by the API.
type PublicUser struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email}
}

// Mailbox reconstructs the assigned mailbox. The second return value is false
// when no mailbox is assigned.
func (u *User) Mailbox() (Mailbox, bool) {
	if u.MailLogin == nil || u.MailDomain == nil || *u.MailLogin == "" || *u.MailDomain == "" {
		return Mailbox{}, false
	}
	provider := ProviderPrimary
	if u.MailProvider != nil && *u.MailProvider != "" {
		provider = Provider(*u.MailProvider)
	}
	return NewMailbox(*u.MailLogin, *u.MailDomain, provider), true
}

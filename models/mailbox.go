package models

import (
	"time"
)

// Provider identifies the upstream service hosting a mailbox.
type Provider string

const (
	ProviderPrimary   Provider = "primary"
	ProviderSecondary Provider = "secondary"
)

// Mailbox is a login+domain pair. Address is always Login@Domain.
type Mailbox struct {
	Login    string   `json:"login"`
	Domain   string   `json:"domain"`
	Address  string   `json:"address"`
	Provider Provider `json:"-"`
}

func NewMailbox(login, domain string, provider Provider) Mailbox {
	return Mailbox{
		Login:    login,
		Domain:   domain,
		Address:  login + "@" + domain,
		Provider: provider,
	}
}

// ProviderSession holds the credential needed to poll a secondary-provider
// mailbox on behalf of an account.
type ProviderSession struct {
	AccountID uint       `gorm:"primaryKey;autoIncrement:false" json:"account_id"`
	Token     string     `gorm:"type:text;not null" json:"-"`
	Address   string     `gorm:"not null" json:"address"`
	Provider  Provider   `gorm:"size:16;not null" json:"provider"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Expired reports whether the session is past its expiry at t.
func (s *ProviderSession) Expired(t time.Time) bool {
	return s.ExpiresAt != nil && !t.Before(*s.ExpiresAt)
}

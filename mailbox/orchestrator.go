package mailbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tempinbox/models"
	"tempinbox/providers"
	"tempinbox/store"
	"tempinbox/utils"
)

var (
	ErrInvalidDomain = errors.New("invalid domain")
	ErrInvalidLogin  = errors.New("invalid login")
	ErrNoMailbox     = store.ErrNoMailbox
	// ErrNoSession means the account's mailbox lives on the secondary
	// provider but its session is gone; a new mailbox must be created.
	ErrNoSession = providers.ErrNoSession
)

// AccountStore is the subset of the identity store the orchestrator needs.
type AccountStore interface {
	SetMailbox(ctx context.Context, id uint, login, domain string, provider models.Provider) error
	ClearMailbox(ctx context.Context, id uint) error
	GetMailbox(ctx context.Context, id uint) (*models.Mailbox, error)
}

type PrimaryProvider interface {
	ListDomains(ctx context.Context) []string
	GenerateRandomMailbox(ctx context.Context) (models.Mailbox, error)
	ListMessages(ctx context.Context, login, domain string) ([]models.MessageSummary, error)
	ReadMessage(ctx context.Context, login, domain, id string) (*models.MessageDetail, error)
}

type SecondaryProvider interface {
	CreateSession(ctx context.Context) (*providers.Session, error)
	ListMessages(ctx context.Context, token string) ([]models.MessageSummary, error)
	ReadMessage(ctx context.Context, token, id string) (*models.MessageDetail, error)
}

// Orchestrator picks the provider for an account's mailbox, falling back to
// the secondary provider when the primary cannot generate one.
type Orchestrator struct {
	accounts   AccountStore
	primary    PrimaryProvider
	secondary  SecondaryProvider
	sessions   SessionStore
	sessionTTL time.Duration
	now        func() time.Time
}

// NewOrchestrator wires the orchestrator. A sessionTTL of zero keeps
// secondary sessions until the mailbox is cleared.
func NewOrchestrator(accounts AccountStore, primary PrimaryProvider, secondary SecondaryProvider, sessions SessionStore, sessionTTL time.Duration) *Orchestrator {
	return &Orchestrator{
		accounts:   accounts,
		primary:    primary,
		secondary:  secondary,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// Domains lists the domains a caller may pick from.
func (o *Orchestrator) Domains(ctx context.Context) []string {
	return o.primary.ListDomains(ctx)
}

// NewMailbox assigns a mailbox to the account, replacing any previous one.
// When both desiredLogin and desiredDomain are given the mailbox is built
// from them on the primary provider; otherwise a random one is generated.
func (o *Orchestrator) NewMailbox(ctx context.Context, accountID uint, desiredLogin, desiredDomain string) (*models.Mailbox, error) {
	var (
		mailbox models.Mailbox
		session *providers.Session
	)

	if desiredLogin != "" && desiredDomain != "" {
		custom, err := o.customMailbox(ctx, desiredLogin, desiredDomain)
		if err != nil {
			return nil, err
		}
		mailbox = custom
	} else {
		generated, err := o.primary.GenerateRandomMailbox(ctx)
		if err != nil {
			utils.LogError("primary_generate_mailbox", err, map[string]interface{}{
				"account_id": accountID,
				"fallback":   string(models.ProviderSecondary),
			})
			session, err = o.secondary.CreateSession(ctx)
			if err != nil {
				return nil, err
			}
			generated = models.NewMailbox(session.Login, session.Domain, models.ProviderSecondary)
		}
		mailbox = generated
	}

	if session != nil {
		if err := o.assignSecondary(ctx, accountID, mailbox, session); err != nil {
			return nil, err
		}
	} else {
		if err := o.accounts.SetMailbox(ctx, accountID, mailbox.Login, mailbox.Domain, mailbox.Provider); err != nil {
			return nil, err
		}
		// a leftover session is never read for a primary mailbox
		if err := o.sessions.Delete(ctx, accountID); err != nil {
			utils.LogError("drop_provider_session", err, map[string]interface{}{
				"account_id": accountID,
			})
		}
	}

	utils.LogEvent("mailbox_created", map[string]interface{}{
		"account_id": accountID,
		"address":    mailbox.Address,
		"provider":   string(mailbox.Provider),
	})
	return &mailbox, nil
}

// assignSecondary stores the new session and then the mailbox. If the mailbox
// cannot be stored the previous session is put back, so the mailbox still
// assigned to the account stays readable.
func (o *Orchestrator) assignSecondary(ctx context.Context, accountID uint, mailbox models.Mailbox, session *providers.Session) error {
	previous, err := o.sessions.Get(ctx, accountID)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("%w: load provider session: %v", store.ErrStore, err)
	}

	stored := &models.ProviderSession{
		AccountID: accountID,
		Token:     session.Token,
		Address:   mailbox.Address,
		Provider:  models.ProviderSecondary,
	}
	if o.sessionTTL > 0 {
		expiresAt := o.now().Add(o.sessionTTL)
		stored.ExpiresAt = &expiresAt
	}
	if err := o.sessions.Save(ctx, stored); err != nil {
		return fmt.Errorf("%w: save provider session: %v", store.ErrStore, err)
	}

	if err := o.accounts.SetMailbox(ctx, accountID, mailbox.Login, mailbox.Domain, mailbox.Provider); err != nil {
		var restoreErr error
		if previous != nil {
			restoreErr = o.sessions.Save(ctx, previous)
		} else {
			restoreErr = o.sessions.Delete(ctx, accountID)
		}
		if restoreErr != nil {
			utils.LogError("restore_provider_session", restoreErr, map[string]interface{}{
				"account_id": accountID,
			})
		}
		return err
	}
	return nil
}

func (o *Orchestrator) customMailbox(ctx context.Context, desiredLogin, desiredDomain string) (models.Mailbox, error) {
	domain := strings.ToLower(strings.TrimSpace(desiredDomain))
	allowed := false
	for _, d := range o.primary.ListDomains(ctx) {
		if d == domain {
			allowed = true
			break
		}
	}
	if !allowed {
		return models.Mailbox{}, ErrInvalidDomain
	}

	login := SanitizeLogin(desiredLogin)
	if login == "" {
		return models.Mailbox{}, ErrInvalidLogin
	}
	return models.NewMailbox(login, domain, models.ProviderPrimary), nil
}

// ClearMailbox drops the account's mailbox and any provider session. It is
// idempotent.
func (o *Orchestrator) ClearMailbox(ctx context.Context, accountID uint) error {
	if err := o.sessions.Delete(ctx, accountID); err != nil {
		return fmt.Errorf("%w: drop provider session: %v", store.ErrStore, err)
	}
	return o.accounts.ClearMailbox(ctx, accountID)
}

func (o *Orchestrator) CurrentMailbox(ctx context.Context, accountID uint) (*models.Mailbox, error) {
	return o.accounts.GetMailbox(ctx, accountID)
}

func (o *Orchestrator) ListMessages(ctx context.Context, accountID uint) ([]models.MessageSummary, error) {
	mailbox, err := o.accounts.GetMailbox(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if mailbox.Provider == models.ProviderSecondary {
		session, err := o.session(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return o.secondary.ListMessages(ctx, session.Token)
	}
	return o.primary.ListMessages(ctx, mailbox.Login, mailbox.Domain)
}

func (o *Orchestrator) ReadMessage(ctx context.Context, accountID uint, id string) (*models.MessageDetail, error) {
	mailbox, err := o.accounts.GetMailbox(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if mailbox.Provider == models.ProviderSecondary {
		session, err := o.session(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return o.secondary.ReadMessage(ctx, session.Token, id)
	}
	return o.primary.ReadMessage(ctx, mailbox.Login, mailbox.Domain, id)
}

func (o *Orchestrator) session(ctx context.Context, accountID uint) (*models.ProviderSession, error) {
	session, err := o.sessions.Get(ctx, accountID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load provider session: %v", store.ErrStore, err)
	}
	return session, nil
}

package mailbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"tempinbox/models"
)

var ErrSessionNotFound = errors.New("provider session not found")

// SessionStore keeps secondary-provider sessions keyed by account id.
// Expired sessions are reported as ErrSessionNotFound.
type SessionStore interface {
	Get(ctx context.Context, accountID uint) (*models.ProviderSession, error)
	Save(ctx context.Context, session *models.ProviderSession) error
	Delete(ctx context.Context, accountID uint) error
}

// MemorySessionStore is a process-local SessionStore. Sessions do not
// survive a restart.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[uint]models.ProviderSession
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[uint]models.ProviderSession),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Get(_ context.Context, accountID uint) (*models.ProviderSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[accountID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.Expired(s.now()) {
		delete(s.sessions, accountID)
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

func (s *MemorySessionStore) Save(_ context.Context, session *models.ProviderSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *session
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	stored.UpdatedAt = s.now()
	s.sessions[session.AccountID] = stored
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, accountID uint) error {
	s.mu.Lock()
	delete(s.sessions, accountID)
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) PurgeExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	now := s.now()
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			purged++
		}
	}
	return purged, nil
}

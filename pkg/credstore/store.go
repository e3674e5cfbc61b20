package credstore

import "sync"

// Store is the persistent credential storage shared by the request path and
// the refresh path. The access token is read before every outbound request;
// SetAccessToken is called once per successful refresh, last write wins.
// Implementations must be safe for concurrent use.
type Store interface {
	AccessToken() (string, error)
	RefreshToken() (string, error)
	SetAccessToken(token string) error
	SetTokens(access, refresh string) error
}

// MemStore keeps the credential pair in memory. Used by tests and by callers
// that manage persistence themselves.
type MemStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

func NewMemStore(access, refresh string) *MemStore {
	return &MemStore{access: access, refresh: refresh}
}

func (s *MemStore) AccessToken() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.access, nil
}

func (s *MemStore) RefreshToken() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.refresh, nil
}

func (s *MemStore) SetAccessToken(token string) error {
	s.mu.Lock()
	s.access = token
	s.mu.Unlock()

	return nil
}

func (s *MemStore) SetTokens(access, refresh string) error {
	s.mu.Lock()
	s.access = access
	s.refresh = refresh
	s.mu.Unlock()

	return nil
}

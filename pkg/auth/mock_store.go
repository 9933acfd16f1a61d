package auth

import "sync"

// MockStore is an in-memory CredentialStore for tests.
type MockStore struct {
	mu    sync.RWMutex
	creds map[string]*Credential

	StoreErr    error
	RetrieveErr error
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{creds: make(map[string]*Credential)}
}

// NewMockManager creates a manager backed only by a mock store,
// bypassing the keychain and filesystem entirely.
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return &Manager{stores: []CredentialStore{store}}, store
}

func (m *MockStore) Store(cred *Credential) error {
	if m.StoreErr != nil {
		return m.StoreErr
	}
	if cred == nil || cred.Name == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *cred
	m.creds[cred.Name] = &copied
	return nil
}

func (m *MockStore) Retrieve(name string) (*Credential, error) {
	if m.RetrieveErr != nil {
		return nil, m.RetrieveErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	cred, ok := m.creds[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	copied := *cred
	return &copied, nil
}

func (m *MockStore) List() ([]*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var creds []*Credential
	for _, cred := range m.creds {
		copied := *cred
		creds = append(creds, &copied)
	}
	return creds, nil
}

func (m *MockStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.creds[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.creds, name)
	return nil
}

func (m *MockStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.creds[name]
	return ok
}

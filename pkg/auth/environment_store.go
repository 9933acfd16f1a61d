package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore over environment
// variables. It is read-only and exists so headless deployments can be
// configured without touching the keychain or the encrypted file.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve gets a credential from environment variables
func (e *EnvironmentStore) Retrieve(name string) (*Credential, error) {
	token := os.Getenv("META_ACCESS_TOKEN")
	if token == "" {
		return nil, ErrCredentialsNotFound
	}

	if name == "" {
		name = DefaultCredentialName
	}

	return &Credential{
		Name:         name,
		AccessToken:  token,
		AppID:        os.Getenv("META_APP_ID"),
		AppSecret:    os.Getenv("META_APP_SECRET"),
		LastModified: time.Now(),
	}, nil
}

// List returns a single credential if the environment is configured
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv("META_ACCESS_TOKEN") != ""
}

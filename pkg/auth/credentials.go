package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Credential holds one Meta app's API credentials. Name is a local
// label ("default" unless the operator runs several apps).
type Credential struct {
	Name         string    `json:"name"`
	AccessToken  string    `json:"access_token"`
	AppID        string    `json:"app_id,omitempty"`
	AppSecret    string    `json:"app_secret,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// DefaultCredentialName is used when the operator has a single app.
const DefaultCredentialName = "default"

// CredentialStore stores and retrieves Meta app credentials.
type CredentialStore interface {
	Store(cred *Credential) error
	Retrieve(name string) (*Credential, error)
	List() ([]*Credential, error)
	Delete(name string) error
	Exists(name string) bool
}

// Manager layers credential stores: system keychain where available,
// an encrypted file under the config directory, and environment
// variables as the read-only last resort.
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager with every backend usable on this host.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves a credential using the first store that accepts it.
func (m *Manager) Store(cred *Credential) error {
	if cred.Name == "" {
		cred.Name = DefaultCredentialName
	}
	if cred.AccessToken == "" {
		return errors.New("access token is required")
	}

	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(cred); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credential: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets a credential from the first store that has it.
func (m *Manager) Retrieve(name string) (*Credential, error) {
	for _, store := range m.stores {
		if cred, err := store.Retrieve(name); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("credential not found: %s", name)
}

// RetrieveDefault returns the credential the pipeline should run
// under. The environment wins so that deployments configured purely
// through variables never touch the stored copies.
func (m *Manager) RetrieveDefault() (*Credential, error) {
	if envStore, ok := m.stores[len(m.stores)-1].(*EnvironmentStore); ok {
		if cred, err := envStore.Retrieve(""); err == nil && cred != nil {
			return cred, nil
		}
	}

	if cred, err := m.Retrieve(DefaultCredentialName); err == nil {
		return cred, nil
	}

	creds, err := m.List()
	if err == nil && len(creds) > 0 {
		return creds[0], nil
	}

	return nil, errors.New("no credentials found")
}

// List returns all stored credentials, deduplicated by name with the
// most recently modified copy winning.
func (m *Manager) List() ([]*Credential, error) {
	byName := make(map[string]*Credential)

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			if existing, ok := byName[cred.Name]; !ok || cred.LastModified.After(existing.LastModified) {
				byName[cred.Name] = cred
			}
		}
	}

	var result []*Credential
	for _, cred := range byName {
		result = append(result, cred)
	}
	return result, nil
}

// Delete removes a credential from every store that holds it.
func (m *Manager) Delete(name string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credential: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("credential not found: %s", name)
	}
	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "metacache")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "metacache")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "metacache")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "metacache")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Sanitize returns a copy with the secret fields masked for logging.
func Sanitize(cred *Credential) *Credential {
	if cred == nil {
		return nil
	}

	return &Credential{
		Name:         cred.Name,
		AccessToken:  maskString(cred.AccessToken),
		AppID:        cred.AppID,
		AppSecret:    maskString(cred.AppSecret),
		LastModified: cred.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)

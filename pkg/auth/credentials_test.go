package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerStoreRetrieveDelete(t *testing.T) {
	manager, _ := NewMockManager()

	cred := &Credential{
		Name:        "default",
		AccessToken: "EAAGm0PX4ZCpsBALongLivedToken",
		AppID:       "123456789",
		AppSecret:   "s3cr3t_app_secret_value",
	}

	require.NoError(t, manager.Store(cred))
	assert.False(t, cred.LastModified.IsZero())

	retrieved, err := manager.Retrieve("default")
	require.NoError(t, err)
	assert.Equal(t, cred.AccessToken, retrieved.AccessToken)
	assert.Equal(t, cred.AppID, retrieved.AppID)

	creds, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, creds, 1)

	require.NoError(t, manager.Delete("default"))
	_, err = manager.Retrieve("default")
	assert.Error(t, err)
}

func TestManagerRejectsEmptyToken(t *testing.T) {
	manager, _ := NewMockManager()
	err := manager.Store(&Credential{Name: "default"})
	assert.Error(t, err)
}

func TestManagerDefaultsCredentialName(t *testing.T) {
	manager, _ := NewMockManager()

	require.NoError(t, manager.Store(&Credential{AccessToken: "tok"}))

	cred, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, DefaultCredentialName, cred.Name)
}

func TestEnvironmentStoreRetrieve(t *testing.T) {
	t.Setenv("META_ACCESS_TOKEN", "env_token_value")
	t.Setenv("META_APP_ID", "42")

	store := NewEnvironmentStore()
	cred, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCredentialName, cred.Name)
	assert.Equal(t, "env_token_value", cred.AccessToken)
	assert.Equal(t, "42", cred.AppID)

	assert.ErrorIs(t, store.Store(cred), ErrStoreUnavailable)
}

func TestEnvironmentStoreMissing(t *testing.T) {
	t.Setenv("META_ACCESS_TOKEN", "")

	store := NewEnvironmentStore()
	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.False(t, store.Exists(""))
}

func TestEncryptedFileStoreRoundTrip(t *testing.T) {
	t.Setenv("METACACHE_PASSPHRASE", "test-passphrase")

	path := filepath.Join(t.TempDir(), "credentials.enc")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	cred := &Credential{
		Name:         "default",
		AccessToken:  "file_token_value",
		LastModified: time.Now(),
	}
	require.NoError(t, store.Store(cred))

	// The ciphertext must not leak the token.
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "file_token_value")

	retrieved, err := store.Retrieve("default")
	require.NoError(t, err)
	assert.Equal(t, "file_token_value", retrieved.AccessToken)

	// Deleting the last credential removes the file.
	require.NoError(t, store.Delete("default"))
	assert.False(t, store.Exists("default"))
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.enc")

	t.Setenv("METACACHE_PASSPHRASE", "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Credential{Name: "default", AccessToken: "tok"}))

	t.Setenv("METACACHE_PASSPHRASE", "second")
	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	_, err = reopened.Retrieve("default")
	assert.Error(t, err)
}

func TestSanitizeMasksSecrets(t *testing.T) {
	cred := &Credential{
		Name:        "default",
		AccessToken: "EAAGm0PX4ZCpsBALongLivedToken",
		AppSecret:   "super_secret_value_here",
	}

	masked := Sanitize(cred)
	assert.NotEqual(t, cred.AccessToken, masked.AccessToken)
	assert.NotEqual(t, cred.AppSecret, masked.AppSecret)
	assert.Equal(t, "EAAG...oken", masked.AccessToken)

	assert.Nil(t, Sanitize(nil))
}

// Package auth stores the credential issued by the chat server and hands it
// to the API client.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/longkey1/chatai/internal/chatai"
)

// CredentialFile is the file name of the stored credential.
const CredentialFile = "credentials.json"

// GetCredentialDir returns the directory where the credential is stored.
// If a config file is used, the credential is stored in the same directory
// as the config file. Otherwise, defaults to $HOME/.config/chatai
func GetCredentialDir() (string, error) {
	configFile := viper.ConfigFileUsed()

	if configFile != "" {
		configDir := filepath.Dir(configFile)

		// Make the path absolute if it's relative
		if !filepath.IsAbs(configDir) {
			cwd, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf("failed to get current working directory: %w", err)
			}
			configDir = filepath.Join(cwd, configDir)
		}
		return configDir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", "chatai"), nil
}

// Store is a credential file on disk.
type Store struct {
	path string
}

// NewStore returns a Store for the credential file in dir.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, CredentialFile)}
}

// DefaultStore returns the Store next to the active config file.
func DefaultStore() (*Store, error) {
	dir, err := GetCredentialDir()
	if err != nil {
		return nil, err
	}
	return NewStore(dir), nil
}

// Path returns the location of the credential file.
func (s *Store) Path() string {
	return s.path
}

// Save writes the credential, readable only by the current user.
func (s *Store) Save(cred *chatai.Credential) error {
	if cred == nil || cred.AccessToken == "" {
		return errors.New("credential has no access token")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize credential: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(s.path, 0600); err != nil {
		return fmt.Errorf("failed to restrict credential file: %w", err)
	}
	return nil
}

// Load reads the credential. It returns chatai.ErrNotLoggedIn when no
// credential is stored.
func (s *Store) Load() (*chatai.Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, chatai.ErrNotLoggedIn
		}
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	var cred chatai.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w\n\nRun 'chatai login' to sign in again.", err)
	}
	if cred.AccessToken == "" {
		return nil, chatai.ErrNotLoggedIn
	}
	return &cred, nil
}

// Credential implements api.CredentialSource.
func (s *Store) Credential() (*chatai.Credential, error) {
	return s.Load()
}

// Delete removes the credential. Deleting a missing credential is not an
// error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete credential file: %w", err)
	}
	return nil
}

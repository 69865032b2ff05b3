package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// credentials.yml holds only the service token, kept apart from config.yml
// so sharing a config never leaks the credential.
type credentialsFile struct {
	APIToken string `yaml:"api_token"`
}

// CredentialStore reads and persists the service token.
type CredentialStore struct {
	path string
}

// NewCredentialStore returns a store rooted at the config directory.
func NewCredentialStore(dir string) *CredentialStore {
	return &CredentialStore{path: filepath.Join(dir, "credentials.yml")}
}

// Token resolves the active credential. CLAUSI_API_KEY wins over the
// credentials file; empty string means no credential yet.
func (s *CredentialStore) Token() string {
	if v := os.Getenv("CLAUSI_API_KEY"); v != "" {
		return v
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return ""
	}
	var creds credentialsFile
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return ""
	}
	return creds.APIToken
}

// SaveToken persists a newly issued credential. Written with 0600: the token
// authorizes spending.
func (s *CredentialStore) SaveToken(token string) error {
	data, err := yaml.Marshal(credentialsFile{APIToken: token})
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%d", s.path, os.Getpid())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Path returns the credentials file location.
func (s *CredentialStore) Path() string {
	return s.path
}

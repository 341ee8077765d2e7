package kaggle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/offloadhq/offload/pkg/remote"
)

// Environment variables checked during credential resolution.
const (
	// EnvAPIToken is the combined access-token form ("KGAT_..." tokens).
	EnvAPIToken = "KAGGLE_API_TOKEN"

	// EnvUsername is the account name, used with either token form.
	EnvUsername = "KAGGLE_USERNAME"

	// EnvKey is the legacy secret-key form, paired with EnvUsername.
	EnvKey = "KAGGLE_KEY"
)

// Credential is the canonical credential record for the platform account.
//
// The JSON shape matches the platform's own credential file so the file
// written by ResolveCredentials is usable by any tool relying on
// file-based discovery.
type Credential struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

// BearerToken reports whether the key is a combined API token that must be
// sent as a bearer token rather than basic-auth material.
func (c *Credential) BearerToken() bool {
	return strings.HasPrefix(c.Key, "KGAT_")
}

// CredentialsPath returns the well-known local credential file location.
func CredentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".kaggle", "kaggle.json"), nil
}

// ResolveCredentials locates and normalizes the platform credential.
//
// Resolution order, first match wins:
//  1. KAGGLE_API_TOKEN (+ KAGGLE_USERNAME for the account name)
//  2. KAGGLE_USERNAME + KAGGLE_KEY, persisted once to the credential file
//     so subprocesses relying on file-based discovery also succeed
//  3. An existing credential file
//
// Returns remote.ErrNotConfigured when no source matches. That is not a
// resolver failure: callers constructing a client turn it into an
// actionable error, while the orchestrator records it as a job error.
func ResolveCredentials() (*Credential, error) {
	if token := strings.TrimSpace(os.Getenv(EnvAPIToken)); token != "" {
		return &Credential{
			Username: strings.TrimSpace(os.Getenv(EnvUsername)),
			Key:      token,
		}, nil
	}

	username := strings.TrimSpace(os.Getenv(EnvUsername))
	key := strings.TrimSpace(os.Getenv(EnvKey))
	if username != "" && key != "" {
		cred := &Credential{Username: username, Key: key}
		if err := persistCredential(cred); err != nil {
			// Persistence is best-effort convenience; the in-memory
			// credential is still usable.
			return cred, nil
		}
		return cred, nil
	}

	path, err := CredentialsPath()
	if err != nil {
		return nil, remote.ErrNotConfigured
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, remote.ErrNotConfigured
	}
	var cred Credential
	if err := json.Unmarshal(b, &cred); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cred.Username == "" || cred.Key == "" {
		return nil, remote.ErrNotConfigured
	}
	return &cred, nil
}

// persistCredential writes the credential file if it does not already
// exist. Never overwrites: resolution must be idempotent.
func persistCredential(cred *Credential) error {
	path, err := CredentialsPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	b, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	if err := os.WriteFile(path, b, 0600); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	return nil
}

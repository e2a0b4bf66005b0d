package signer

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/civium-labs/civium-go/internal/platform/env"
	"gopkg.in/yaml.v3"
)

// Keyring resolves a producer's key_id to signing secret material. It is
// built once at startup and injected into the verification service; nothing
// in the verify path reads process environment.
type Keyring struct {
	secrets map[string]string
}

func NewKeyring(secrets map[string]string) Keyring {
	copied := make(map[string]string, len(secrets))
	for id, secret := range secrets {
		id = strings.TrimSpace(id)
		if id == "" || strings.TrimSpace(secret) == "" {
			continue
		}
		copied[id] = secret
	}
	return Keyring{secrets: copied}
}

// Resolve returns the secret for keyID. ok=false means the key is not
// configured; callers fail closed on it rather than erroring.
func (k Keyring) Resolve(keyID string) (string, bool) {
	secret, ok := k.secrets[strings.TrimSpace(keyID)]
	return secret, ok
}

func (k Keyring) Empty() bool {
	return len(k.secrets) == 0
}

type keyringFile struct {
	Keys []keyringEntry `yaml:"keys"`
}

type keyringEntry struct {
	ID     string `yaml:"id"`
	Secret string `yaml:"secret"`
}

// KeyringFromEnv assembles the keyring from environment configuration: an
// optional single active key (AUDIT_SIGNING_KEY_ID + AUDIT_SIGNING_SECRET)
// and an optional YAML keyring file (AUDIT_SIGNING_KEYRING_FILE) holding
// older keys that stored events may still reference. An empty keyring is not
// an error here; verification fails closed per event instead.
func KeyringFromEnv() (Keyring, error) {
	secrets := map[string]string{}

	if path := strings.TrimSpace(env.String("AUDIT_SIGNING_KEYRING_FILE", "")); path != "" {
		fromFile, err := loadKeyringFile(path)
		if err != nil {
			return Keyring{}, err
		}
		for id, secret := range fromFile {
			secrets[id] = secret
		}
	}

	activeID := strings.TrimSpace(env.String("AUDIT_SIGNING_KEY_ID", "primary"))
	if activeSecret := env.String("AUDIT_SIGNING_SECRET", ""); strings.TrimSpace(activeSecret) != "" {
		secrets[activeID] = activeSecret
	}

	return NewKeyring(secrets), nil
}

func loadKeyringFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyring file: %w", err)
	}
	var parsed keyringFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse keyring file: %w", err)
	}
	secrets := make(map[string]string, len(parsed.Keys))
	for _, entry := range parsed.Keys {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			return nil, errors.New("keyring entry missing id")
		}
		if strings.TrimSpace(entry.Secret) == "" {
			return nil, fmt.Errorf("keyring entry %q missing secret", id)
		}
		secrets[id] = entry.Secret
	}
	return secrets, nil
}

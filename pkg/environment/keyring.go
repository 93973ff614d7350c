package environment

import (
	"context"
	"errors"
	"log/slog"

	"github.com/99designs/keyring"
)

// KeyringService is the service name secrets are stored under.
const KeyringService = "rulelawyer"

// KeyringProvider reads secrets from the operating system keyring.
type KeyringProvider struct {
	ring keyring.Keyring
}

// OpenKeyring opens the default keyring backend of the platform.
func OpenKeyring() (*KeyringProvider, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              KeyringService,
		KeychainTrustApplication: true,
		// The encrypted file backend needs an interactive password prompt.
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.WinCredBackend,
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
		},
	})
	if err != nil {
		return nil, err
	}
	return NewKeyringProvider(ring), nil
}

func NewKeyringProvider(ring keyring.Keyring) *KeyringProvider {
	return &KeyringProvider{ring: ring}
}

func (p *KeyringProvider) Get(_ context.Context, name string) (string, bool) {
	item, err := p.ring.Get(name)
	if err != nil {
		if !errors.Is(err, keyring.ErrKeyNotFound) {
			slog.Debug("Keyring lookup failed", "name", name, "error", err)
		}
		return "", false
	}
	return string(item.Data), true
}

// Set stores a secret, replacing any previous value.
func (p *KeyringProvider) Set(name, value string) error {
	return p.ring.Set(keyring.Item{
		Key:   name,
		Data:  []byte(value),
		Label: KeyringService + " " + name,
	})
}

// Remove deletes a secret. Removing a missing secret is not an error.
func (p *KeyringProvider) Remove(name string) error {
	if err := p.ring.Remove(name); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}

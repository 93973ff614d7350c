package environment

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
)

// NewDefaultProvider resolves variables from the process environment, then
// the .env file of configDir, then the keyring when one is available.
func NewDefaultProvider(configDir string) Provider {
	providers := []Provider{NewOsEnvProvider()}

	envFile := filepath.Join(configDir, ".env")
	if p, err := NewEnvFileProvider(envFile); err != nil {
		slog.Warn("Ignoring unreadable env file", "path", envFile, "error", err)
	} else {
		providers = append(providers, p)
	}

	providers = append(providers, &lazyKeyring{})

	return NewMultiProvider(providers...)
}

// lazyKeyring opens the keyring on the first lookup only, since some backends
// talk to a desktop service.
type lazyKeyring struct {
	once sync.Once
	ring *KeyringProvider
}

func (p *lazyKeyring) Get(ctx context.Context, name string) (string, bool) {
	p.once.Do(func() {
		ring, err := OpenKeyring()
		if err != nil {
			slog.Debug("Keyring not available", "error", err)
			return
		}
		p.ring = ring
	})
	if p.ring == nil {
		return "", false
	}
	return p.ring.Get(ctx, name)
}

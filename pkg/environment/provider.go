package environment

import "context"

// Provider resolves settings that may live outside the settings file, such
// as API keys.
type Provider interface {
	// Get reports the value stored under name and whether it was set at all.
	Get(ctx context.Context, name string) (string, bool)
}

// Lookup returns the first non-empty value among names.
func Lookup(ctx context.Context, p Provider, names ...string) string {
	for _, name := range names {
		if v, ok := p.Get(ctx, name); ok && v != "" {
			return v
		}
	}
	return ""
}

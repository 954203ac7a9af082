// Package ocr adapts OCR providers to domain.TextRecognizer.
package ocr

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/spherical/pdf2emails/internal/domain"
	"github.com/spherical/pdf2emails/internal/gcloud"
	"github.com/spherical/pdf2emails/internal/observability"
)

// Options configures a provider
type Options struct {
	Credentials gcloud.Credentials
	Languages   []string
	Logger      *observability.Logger
}

// Factory builds a recognizer for one provider
type Factory func(ctx context.Context, opts Options) (domain.TextRecognizer, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a provider available to New. Providers register from init.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Providers lists registered provider names
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named provider
func New(ctx context.Context, name string, opts Options) (domain.TextRecognizer, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, domain.ConfigError(
			fmt.Sprintf("ocr provider %q is not available (compiled in: %v)", name, Providers()), nil)
	}
	if opts.Logger == nil {
		opts.Logger = observability.Nop()
	}
	return f(ctx, opts)
}

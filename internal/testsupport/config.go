package testsupport

import (
	"path/filepath"
	"testing"

	"treklist/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithExtensions overrides the audio extensions recognized during scans.
func WithExtensions(exts ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scan.Extensions = exts
	}
}

// WithMaxDepth caps how deep library scans descend.
func WithMaxDepth(depth int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scan.MaxDepth = depth
	}
}

// WithRecoveryDepth sets the bounded search depth for stale-bookmark recovery.
func WithRecoveryDepth(depth int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Resolver.RecoveryMaxDepth = depth
	}
}

package testsupport

import (
	"path/filepath"
	"testing"

	"ferry/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Progress ticks and grace periods are shortened so tests settle quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Remote.Backend = config.BackendLocal
	cfgVal.Remote.LocalDir = filepath.Join(base, "remote")
	cfgVal.Upload.PersistIntervalMS = 0
	cfgVal.Progress.TickMS = 10
	cfgVal.Progress.CompletionGraceMS = 20

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

// WithConcurrency overrides the upload concurrency bound.
func WithConcurrency(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.Concurrency = n
	}
}

// WithMaxPersistMiB overrides the queue persistence ceiling.
func WithMaxPersistMiB(mib int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.MaxPersistMiB = mib
	}
}

// WithCompletionGrace overrides the registry grace period in milliseconds.
func WithCompletionGrace(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Progress.CompletionGraceMS = ms
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

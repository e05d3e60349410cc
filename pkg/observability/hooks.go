// Package observability provides hooks for metrics and tracing.
//
// This package enables optional instrumentation without adding hard
// dependencies to the generator packages. The CLI registers hooks at startup
// (see [PrometheusHooks]) and library code emits events through the global
// registry.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    hooks := observability.NewPrometheusHooks(prometheus.DefaultRegisterer)
//	    observability.SetCollectorHooks(hooks)
//	    observability.SetGitHooks(hooks)
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Collector().OnArchiveStart(ctx, name)
//	// ... materialize and scan ...
//	observability.Collector().OnArchiveComplete(ctx, name, deps, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Collector Hooks
// =============================================================================

// CollectorHooks receives events from manifest generation.
type CollectorHooks interface {
	// OnArchiveStart is called before an archive is resolved.
	OnArchiveStart(ctx context.Context, archive string)
	// OnArchiveComplete is called once per requested archive with the number
	// of manifest rows it produced. err is nil on success.
	OnArchiveComplete(ctx context.Context, archive string, deps int, duration time.Duration, err error)
	// OnSourceSkipped records a declared source that does not exist on disk.
	OnSourceSkipped(ctx context.Context, archive string)
}

// =============================================================================
// Git Hooks
// =============================================================================

// GitHooks receives events from git invocations.
type GitHooks interface {
	// OnCommand records a finished git command ("clone", "reset").
	OnCommand(ctx context.Context, op string, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopCollectorHooks is a no-op implementation of CollectorHooks.
type NoopCollectorHooks struct{}

func (NoopCollectorHooks) OnArchiveStart(context.Context, string) {}
func (NoopCollectorHooks) OnArchiveComplete(context.Context, string, int, time.Duration, error) {
}
func (NoopCollectorHooks) OnSourceSkipped(context.Context, string) {}

// NoopGitHooks is a no-op implementation of GitHooks.
type NoopGitHooks struct{}

func (NoopGitHooks) OnCommand(context.Context, string, time.Duration, error) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	collectorHooks CollectorHooks = NoopCollectorHooks{}
	gitHooks       GitHooks       = NoopGitHooks{}
	hooksMu        sync.RWMutex
)

// SetCollectorHooks registers custom collector hooks.
// This should be called once at application startup.
func SetCollectorHooks(h CollectorHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		collectorHooks = h
	}
}

// SetGitHooks registers custom git hooks.
// This should be called once at application startup.
func SetGitHooks(h GitHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		gitHooks = h
	}
}

// Collector returns the registered collector hooks.
func Collector() CollectorHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return collectorHooks
}

// Git returns the registered git hooks.
func Git() GitHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return gitHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	collectorHooks = NoopCollectorHooks{}
	gitHooks = NoopGitHooks{}
}

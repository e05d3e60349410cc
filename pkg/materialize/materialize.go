// Package materialize clones http_archive sources into a scratch directory
// and removes them again once they have been scanned.
//
// Each archive gets its own directory:
//
//	<cwd>/<scratch dir>/<archive name>/<repository name>
//
// so archives processed concurrently never share a working tree. The scratch
// root is removed by [Materializer.ReleaseAll] at the end of every run.
package materialize

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
	"github.com/matzehuels/httparchivedeps/pkg/fsutil"
	"github.com/matzehuels/httparchivedeps/pkg/git"
	"github.com/matzehuels/httparchivedeps/pkg/workspace"
)

// DefaultScratchDir is the scratch root, relative to the working directory.
const DefaultScratchDir = "build_generator_tmp"

// Archive is a source tree checked out at its pinned revision.
type Archive struct {
	Name     string // http_archive name
	Path     string // absolute path of the repository root
	Revision string
	dir      string // per-archive scratch directory removed by Release
}

// Options configures a Materializer.
type Options struct {
	ScratchDir string // relative to the working directory (default: build_generator_tmp)
	Logger     *log.Logger
}

// Materializer creates and releases archive checkouts.
type Materializer struct {
	fs      fsutil.FileSystem
	fetcher git.RepoFetcher
	root    string
	logger  *log.Logger

	mu     sync.Mutex
	active map[string]*Archive
}

// New creates a Materializer rooted at <cwd>/<opts.ScratchDir>.
func New(fs fsutil.FileSystem, fetcher git.RepoFetcher, opts Options) (*Materializer, error) {
	scratch := opts.ScratchDir
	if scratch == "" {
		scratch = DefaultScratchDir
	}
	if err := errs.ValidatePath(scratch); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidPath, err, "invalid scratch dir %q", scratch)
	}
	cwd, err := fs.Getwd()
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "get working directory")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Materializer{
		fs:      fs,
		fetcher: fetcher,
		root:    fsutil.Join(cwd, scratch),
		logger:  logger,
		active:  make(map[string]*Archive),
	}, nil
}

// Root returns the absolute scratch root.
func (m *Materializer) Root() string { return m.root }

// Materialize clones src and hard-resets it to its pinned revision. Any
// leftover directory from an earlier run is removed first. Clone and reset
// failures are reported with ErrCodeMaterialization; cancellation and an
// expired caller deadline are returned unwrapped.
func (m *Materializer) Materialize(ctx context.Context, src workspace.Source) (*Archive, error) {
	if err := errs.ValidateArchiveName(src.Name); err != nil {
		return nil, err
	}
	if err := errs.ValidateArchiveName(src.RepoName); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidArchive, err, "invalid repository name for %s", src.Name)
	}

	dir := fsutil.Join(m.root, src.Name)
	a := &Archive{
		Name:     src.Name,
		Path:     fsutil.Join(dir, src.RepoName),
		Revision: src.Revision,
		dir:      dir,
	}

	m.mu.Lock()
	if _, busy := m.active[src.Name]; busy {
		m.mu.Unlock()
		return nil, errs.New(errs.ErrCodeInternal, "archive %s is already materialized", src.Name)
	}
	m.active[src.Name] = a
	m.mu.Unlock()

	if err := m.checkout(ctx, src, a); err != nil {
		if rerr := m.Release(a); rerr != nil {
			m.logger.Warn("failed to remove scratch directory", "path", dir, "err", rerr)
		}
		return nil, err
	}
	m.logger.Info("materialized archive", "archive", src.Name, "revision", src.Revision)
	return a, nil
}

func (m *Materializer) checkout(ctx context.Context, src workspace.Source, a *Archive) error {
	if err := m.fs.RemoveAll(a.dir); err != nil {
		return errs.Wrap(errs.ErrCodeMaterialization, err, "remove stale %s", a.dir)
	}
	if err := m.fs.MkdirAll(a.dir); err != nil {
		return errs.Wrap(errs.ErrCodeMaterialization, err, "create %s", a.dir)
	}

	m.logger.Debug("cloning", "archive", src.Name, "url", src.CloneURL, "dest", a.Path)
	if err := m.fetcher.Clone(ctx, src.CloneURL, a.Path); err != nil {
		return fetchError(err, "clone %s", src.CloneURL)
	}
	if err := m.fetcher.ResetHard(ctx, a.Path, src.Revision); err != nil {
		return fetchError(err, "reset %s to %s", src.Name, src.Revision)
	}
	return nil
}

func fetchError(err error, format string, args ...any) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errs.Wrap(errs.ErrCodeMaterialization, err, format, args...)
}

// Release removes the scratch directory of a. Releasing twice is a no-op.
func (m *Materializer) Release(a *Archive) error {
	if a == nil {
		return nil
	}
	m.mu.Lock()
	if m.active[a.Name] == a {
		delete(m.active, a.Name)
	}
	m.mu.Unlock()

	if err := m.fs.RemoveAll(a.dir); err != nil {
		return errs.Wrap(errs.ErrCodeInternal, err, "remove %s", a.dir)
	}
	return nil
}

// ReleaseAll removes the whole scratch root. It is safe to call repeatedly
// and when nothing was materialized.
func (m *Materializer) ReleaseAll() error {
	m.mu.Lock()
	clear(m.active)
	m.mu.Unlock()

	if err := m.fs.RemoveAll(m.root); err != nil {
		return errs.Wrap(errs.ErrCodeInternal, err, "remove scratch root %s", m.root)
	}
	m.logger.Debug("removed scratch root", "path", m.root)
	return nil
}

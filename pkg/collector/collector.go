package collector

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/httparchivedeps/pkg/buildfile"
	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
	"github.com/matzehuels/httparchivedeps/pkg/fsutil"
	"github.com/matzehuels/httparchivedeps/pkg/git"
	"github.com/matzehuels/httparchivedeps/pkg/javasrc"
	"github.com/matzehuels/httparchivedeps/pkg/label"
	"github.com/matzehuels/httparchivedeps/pkg/manifest"
	"github.com/matzehuels/httparchivedeps/pkg/materialize"
	"github.com/matzehuels/httparchivedeps/pkg/observability"
	"github.com/matzehuels/httparchivedeps/pkg/reconcile"
	"github.com/matzehuels/httparchivedeps/pkg/workspace"
)

// Collector generates manifests for the archives of one workspace.
//
// A Collector owns its scratch root; concurrent Collect calls on the same
// Collector are not supported.
type Collector struct {
	workspace    *workspace.Descriptor
	fs           fsutil.FileSystem
	materializer *materialize.Materializer
	scanner      *buildfile.Scanner
	analyzer     javasrc.SourceAnalyzer
	workers      int
	logger       *log.Logger
}

// New creates a Collector for desc. Sources are read through fs and cloned
// with fetcher.
func New(desc *workspace.Descriptor, fs fsutil.FileSystem, fetcher git.RepoFetcher, opts Options) (*Collector, error) {
	if desc == nil {
		return nil, errs.New(errs.ErrCodeInvalidWorkspace, "workspace descriptor is nil")
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	m, err := materialize.New(fs, fetcher, materialize.Options{
		ScratchDir: opts.ScratchDir,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = javasrc.NewAnalyzer(fs)
	}
	return &Collector{
		workspace:    desc,
		fs:           fs,
		materializer: m,
		scanner:      buildfile.NewScanner(fs, opts.Scan),
		analyzer:     analyzer,
		workers:      opts.Workers,
		logger:       opts.Logger,
	}, nil
}

// ScratchRoot returns the absolute directory archives are cloned under.
func (c *Collector) ScratchRoot() string { return c.materializer.Root() }

// Collect processes names (deduplicated, in request order) and merges the
// rows of every successful archive into one manifest. The returned error is
// non-nil only when the run was aborted; per-archive failures are reported
// through [Result.Err]. A Result is returned in both cases.
func (c *Collector) Collect(ctx context.Context, names []string) (*Result, error) {
	names = dedupe(names)
	res := &Result{
		RunID:    uuid.NewString(),
		Archives: make([]ArchiveResult, len(names)),
	}
	logger := c.logger.With("run", res.RunID)
	logger.Info("generating manifest", "archives", len(names), "workers", c.workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, name := range names {
		g.Go(func() error {
			r := c.collectArchive(gctx, logger, name)
			res.Archives[i] = r
			if !errs.Recoverable(r.Err) {
				return r.Err
			}
			return nil
		})
	}
	fatal := g.Wait()

	if err := c.materializer.ReleaseAll(); err != nil {
		logger.Error("failed to remove scratch root", "path", c.materializer.Root(), "err", err)
		if fatal == nil {
			fatal = err
		}
	}

	b := manifest.NewBuilder()
	for _, r := range res.Archives {
		if r.OK() {
			b.Merge(manifest.Partial{Archive: r.Name, Revision: r.Revision, Deps: r.rows})
		}
	}
	res.Manifest = b.Build()

	logger.Info("generated manifest", "deps", len(res.Manifest.Deps), "failed", len(res.Failed()))
	return res, fatal
}

func (c *Collector) collectArchive(ctx context.Context, logger *log.Logger, name string) (res ArchiveResult) {
	res.Name = name
	hooks := observability.Collector()
	start := time.Now()
	hooks.OnArchiveStart(ctx, name)
	defer func() {
		res.Duration = time.Since(start)
		hooks.OnArchiveComplete(ctx, name, res.Deps, res.Duration, res.Err)
		if res.Err != nil {
			logger.Error("archive failed", "archive", name, "err", res.Err)
		}
	}()

	// A missing name is skipped even after the run was aborted.
	src, err := c.workspace.Resolve(name)
	if errs.Is(err, errs.ErrCodeArchiveNotFound) {
		logger.Warn("can't find http_archive", "name", name)
		res.Skipped = true
		return res
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		res.Err = err
		return res
	}
	res.Revision = src.Revision

	archive, err := c.materializer.Materialize(ctx, src)
	if err != nil {
		res.Err = err
		return res
	}
	defer func() {
		if err := c.materializer.Release(archive); err != nil {
			logger.Warn("failed to release archive", "archive", name, "err", err)
		}
	}()

	rows, err := c.archiveDeps(ctx, logger, archive)
	if err != nil {
		res.Err = err
		return res
	}
	res.rows = rows
	res.Deps = len(rows)
	logger.Info("collected archive", "archive", name, "revision", archive.Revision, "deps", len(rows))
	return res
}

// archiveDeps emits one row per existing source of every target in archive.
func (c *Collector) archiveDeps(ctx context.Context, logger *log.Logger, archive *materialize.Archive) ([]manifest.HttpArchiveDep, error) {
	records, err := c.scanner.Scan(ctx, archive.Path)
	if err != nil {
		return nil, err
	}

	var rows []manifest.HttpArchiveDep
	for _, rec := range records {
		pkg, err := label.PackageOfBuildFile(archive.Path, rec.BuildFile, filepath.Base(rec.BuildFile))
		if err != nil {
			return nil, err
		}
		target, err := pkg.Label(rec.Name)
		if err != nil {
			return nil, err
		}
		dir := filepath.Dir(rec.BuildFile)

		for _, expr := range rec.Unresolved {
			logger.Warn("cannot evaluate srcs expression", "target", target, "expr", expr)
			observability.Collector().OnSourceSkipped(ctx, archive.Name)
		}

		for _, src := range rec.Sources {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if errs.ValidatePath(src) != nil {
				// Labels such as "//other:gen" are not files of this package.
				logger.Debug("skipping non-file source", "target", target, "src", src)
				observability.Collector().OnSourceSkipped(ctx, archive.Name)
				continue
			}
			path := fsutil.Join(dir, filepath.FromSlash(src))
			ok, err := c.fs.Exists(path)
			if err != nil {
				return nil, errs.Wrap(errs.ErrCodeSourceAnalysis, err, "stat %s", path)
			}
			if !ok {
				logger.Debug("skipping missing source", "target", target, "src", src)
				observability.Collector().OnSourceSkipped(ctx, archive.Name)
				continue
			}

			namespace, err := c.analyzer.Namespace(ctx, path)
			if err != nil {
				return nil, err
			}
			prefix, err := reconcile.ExternalPrefix(namespace, archive.Path)
			if err != nil {
				return nil, err
			}
			class, err := label.ClassReference(prefix, pkg, src)
			if err != nil {
				return nil, err
			}
			rows = append(rows, manifest.HttpArchiveDep{JavaClass: class, Target: target.String()})
		}
	}
	return rows, nil
}

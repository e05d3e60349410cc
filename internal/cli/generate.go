package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/httparchivedeps/pkg/collector"
	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
	"github.com/matzehuels/httparchivedeps/pkg/manifest"
	"github.com/matzehuels/httparchivedeps/pkg/workspace"
)

// collectorFlags are the flags shared by generate and serve.
type collectorFlags struct {
	config       string
	archives     []string
	scratchDir   string
	buildFile    string
	excludes     []string
	ruleKinds    []string
	workers      int
	cloneTimeout time.Duration
	gitCommand   string
}

func (f *collectorFlags) register(cmd *cobra.Command) {
	defaults := defaultConfig()
	fl := cmd.Flags()
	fl.StringVar(&f.config, "config", "", "TOML config file (default ~/.config/httparchivedeps/config.toml)")
	fl.StringSliceVarP(&f.archives, "archive", "a", defaults.Archives, "http_archive names to process")
	fl.StringVar(&f.scratchDir, "scratch-dir", defaults.ScratchDir, "scratch directory relative to the working directory")
	fl.StringVar(&f.buildFile, "build-file", defaults.BuildFileName, "build file name")
	fl.StringSliceVar(&f.excludes, "exclude", defaults.ExcludeSegments, "skip build files below these path segments")
	fl.StringSliceVar(&f.ruleKinds, "rule-kind", defaults.RuleKinds, "rule kinds whose sources are listed")
	fl.IntVarP(&f.workers, "workers", "j", defaults.Workers, "archives processed concurrently")
	fl.DurationVar(&f.cloneTimeout, "clone-timeout", defaults.CloneTimeout.Duration, "timeout per git command")
	fl.StringVar(&f.gitCommand, "git-command", defaults.GitCommand, "git invocation")
}

// apply overrides cfg with the flags set on the command line.
func (f *collectorFlags) apply(cmd *cobra.Command, cfg *Config) {
	changed := cmd.Flags().Changed
	if changed("archive") {
		cfg.Archives = f.archives
	}
	if changed("scratch-dir") {
		cfg.ScratchDir = f.scratchDir
	}
	if changed("build-file") {
		cfg.BuildFileName = f.buildFile
	}
	if changed("exclude") {
		cfg.ExcludeSegments = f.excludes
	}
	if changed("rule-kind") {
		cfg.RuleKinds = f.ruleKinds
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("clone-timeout") {
		cfg.CloneTimeout = duration{f.cloneTimeout}
	}
	if changed("git-command") {
		cfg.GitCommand = f.gitCommand
	}
}

// generateCommand creates the generate command.
func (c *CLI) generateCommand() *cobra.Command {
	var (
		flags     collectorFlags
		wsPath    string
		output    string
		formatArg string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write the http_archive dependency manifest",
		Long: `Generate clones each requested http_archive at the revision encoded in its
strip_prefix, scans its BUILD files and writes one manifest row per Java source of
every java_library and java_binary target.

Archives missing from the WORKSPACE are skipped with a warning. An archive that fails
contributes no rows; the manifest of the others is still written and the command exits
with an error.`,
		Example: `  # Manifest for the default archive, as JSON on stdout
  httparchivedeps generate

  # Two archives, four at a time, YAML to a file
  httparchivedeps generate -a startup_os -a protobuf -j 4 -f yaml -o deps.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.config)
			if err != nil {
				return err
			}
			flags.apply(cmd, &cfg)
			if cmd.Flags().Changed("workspace") {
				cfg.Workspace = wsPath
			}
			if cmd.Flags().Changed("output") {
				cfg.Output = output
			}
			if cmd.Flags().Changed("format") {
				cfg.Format = formatArg
			}
			return c.runGenerate(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&wsPath, "workspace", "w", "WORKSPACE", "WORKSPACE file declaring the http_archives")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&formatArg, "format", "f", string(manifest.FormatJSON), "output format: "+manifest.FormatNames())

	return cmd
}

func (c *CLI) runGenerate(ctx context.Context, stdout, stderr io.Writer, cfg Config) error {
	format, err := manifest.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	desc, err := c.readWorkspace(cfg.Workspace)
	if err != nil {
		return err
	}

	prog := newProgress(c.Logger)
	res, err := c.collect(ctx, desc, cfg, c.Logger)
	if err != nil {
		return err
	}
	prog.done("generated manifest", "deps", len(res.Manifest.Deps))

	if cfg.Output == "" || cfg.Output == "-" {
		if err := manifest.Write(res.Manifest, stdout, format); err != nil {
			return err
		}
	} else if err := manifest.Export(res.Manifest, cfg.Output, format); err != nil {
		return err
	}

	printSummary(printer{w: stderr}, res, cfg.Output)
	if failed := res.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d archives failed: %w", len(failed), len(res.Archives), res.Err())
	}
	return nil
}

// readWorkspace reads and parses the WORKSPACE file at path, relative to the
// working directory unless absolute.
func (c *CLI) readWorkspace(path string) (*workspace.Descriptor, error) {
	if !filepath.IsAbs(path) {
		cwd, err := c.fs.Getwd()
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeInternal, err, "get working directory")
		}
		path = filepath.Join(cwd, path)
	}
	data, err := c.fs.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "read workspace %s", path)
	}
	return workspace.Parse(path, data)
}

// collect runs a collector configured from cfg.
func (c *CLI) collect(ctx context.Context, desc *workspace.Descriptor, cfg Config, logger *log.Logger) (*collector.Result, error) {
	gitOpts := cfg.gitOptions()
	gitOpts.Logger = logger
	fetcher, err := c.newFetcher(gitOpts)
	if err != nil {
		return nil, err
	}

	opts := cfg.collectorOptions()
	opts.Logger = logger
	col, err := collector.New(desc, c.fs, fetcher, opts)
	if err != nil {
		return nil, err
	}
	return col.Collect(ctx, cfg.Archives)
}

func printSummary(p printer, res *collector.Result, output string) {
	for _, a := range res.Archives {
		switch {
		case a.Skipped:
			p.warning("%s: not declared in the workspace", a.Name)
		case a.Err != nil:
			p.failure("%s: %s", a.Name, errs.UserMessage(a.Err))
			p.detail("%v", a.Err)
		default:
			p.success("%s", StyleHighlight.Render(a.Name))
			p.stats(a.Deps, a.Revision)
		}
	}
	p.keyValue("commitId", res.Manifest.CommitID)
	p.keyValue("deps", fmt.Sprint(len(res.Manifest.Deps)))
	if output != "" && output != "-" {
		p.file(output)
	}
}

package cli

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/httparchivedeps/pkg/buildfile"
	"github.com/matzehuels/httparchivedeps/pkg/collector"
	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
	"github.com/matzehuels/httparchivedeps/pkg/git"
	"github.com/matzehuels/httparchivedeps/pkg/materialize"
)

// duration decodes TOML strings such as "10m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds the generate and serve settings. It is read from a TOML file
// and overridden by explicitly set flags.
type Config struct {
	Archives        []string `toml:"archives"`
	Workspace       string   `toml:"workspace"`
	ScratchDir      string   `toml:"scratch_dir"`
	BuildFileName   string   `toml:"build_file_name"`
	ExcludeSegments []string `toml:"exclude_segments"`
	RuleKinds       []string `toml:"rule_kinds"`
	Workers         int      `toml:"workers"`
	CloneTimeout    duration `toml:"clone_timeout"`
	GitCommand      string   `toml:"git_command"`
	Output          string   `toml:"output"`
	Format          string   `toml:"format"`
}

// defaultConfig returns the built-in settings.
func defaultConfig() Config {
	return Config{
		Archives:        append([]string(nil), collector.DefaultArchiveNames...),
		Workspace:       "WORKSPACE",
		ScratchDir:      materialize.DefaultScratchDir,
		BuildFileName:   buildfile.DefaultBuildFileName,
		ExcludeSegments: append([]string(nil), buildfile.DefaultExcludes...),
		RuleKinds:       append([]string(nil), buildfile.DefaultRuleKinds...),
		Workers:         collector.DefaultWorkers,
		CloneTimeout:    duration{git.DefaultTimeout},
		GitCommand:      git.DefaultCommand,
		Format:          "json",
	}
}

// loadConfig returns the defaults overlaid with the TOML file at path. An
// empty path falls back to the user config file, which may be absent.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	explicit := path != ""
	if !explicit {
		dir, err := configDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(dir, "config.toml")
	}

	var file Config
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, errs.Wrap(errs.ErrCodeInvalidInput, err, "load config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, errs.New(errs.ErrCodeInvalidInput, "config %s: unknown key %q", path, undecoded[0].String())
	}
	cfg.merge(file, md)
	return cfg, nil
}

// merge copies the keys defined in the file into cfg.
func (cfg *Config) merge(file Config, md toml.MetaData) {
	set := func(key string, apply func()) {
		if md.IsDefined(key) {
			apply()
		}
	}
	set("archives", func() { cfg.Archives = file.Archives })
	set("workspace", func() { cfg.Workspace = file.Workspace })
	set("scratch_dir", func() { cfg.ScratchDir = file.ScratchDir })
	set("build_file_name", func() { cfg.BuildFileName = file.BuildFileName })
	set("exclude_segments", func() { cfg.ExcludeSegments = file.ExcludeSegments })
	set("rule_kinds", func() { cfg.RuleKinds = file.RuleKinds })
	set("workers", func() { cfg.Workers = file.Workers })
	set("clone_timeout", func() { cfg.CloneTimeout = file.CloneTimeout })
	set("git_command", func() { cfg.GitCommand = file.GitCommand })
	set("output", func() { cfg.Output = file.Output })
	set("format", func() { cfg.Format = file.Format })
}

// configDir returns the config directory using XDG standard (~/.config/httparchivedeps/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// collectorOptions translates the config into collector options.
func (cfg Config) collectorOptions() collector.Options {
	opts := collector.Options{
		Workers:    cfg.Workers,
		ScratchDir: cfg.ScratchDir,
		Scan: buildfile.ScanOptions{
			Excludes:  cfg.ExcludeSegments,
			RuleKinds: cfg.RuleKinds,
		},
	}
	if cfg.BuildFileName != "" {
		opts.Scan.BuildFileNames = []string{cfg.BuildFileName}
	}
	return opts
}

// gitOptions translates the config into git fetcher options.
func (cfg Config) gitOptions() git.Options {
	return git.Options{
		Command: cfg.GitCommand,
		Timeout: cfg.CloneTimeout.Duration,
	}
}

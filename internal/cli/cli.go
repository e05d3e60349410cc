package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/httparchivedeps/pkg/buildinfo"
	"github.com/matzehuels/httparchivedeps/pkg/fsutil"
	"github.com/matzehuels/httparchivedeps/pkg/git"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "httparchivedeps"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	fs         fsutil.FileSystem
	newFetcher func(git.Options) (git.RepoFetcher, error)
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		fs:     fsutil.NewOS(),
		newFetcher: func(opts git.Options) (git.RepoFetcher, error) {
			f, err := git.NewCommandFetcher(opts)
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Generate the class-to-target manifest of http_archive dependencies",
		Long: `httparchivedeps clones the http_archive dependencies declared in a Bazel WORKSPACE
at their pinned revisions, reads their BUILD files and emits a manifest mapping every
Java class to the target that compiles it.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.generateCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

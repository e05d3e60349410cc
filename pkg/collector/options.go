package collector

import (
	"github.com/charmbracelet/log"

	"github.com/matzehuels/httparchivedeps/pkg/buildfile"
	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
	"github.com/matzehuels/httparchivedeps/pkg/javasrc"
	"github.com/matzehuels/httparchivedeps/pkg/materialize"
)

const (
	// DefaultWorkers processes archives one at a time.
	DefaultWorkers = 1
	// MaxWorkers bounds concurrent clones.
	MaxWorkers = 32
)

// DefaultArchiveNames is used when no archive is requested explicitly.
var DefaultArchiveNames = []string{"startup_os"}

// Options configures a Collector.
type Options struct {
	// Workers is the number of archives processed concurrently (default: 1).
	Workers int
	// ScratchDir is the scratch root relative to the working directory.
	ScratchDir string
	// Scan configures BUILD file discovery and parsing.
	Scan buildfile.ScanOptions
	// Analyzer overrides the Java namespace extractor.
	Analyzer javasrc.SourceAnalyzer
	Logger   *log.Logger
}

// ValidateAndSetDefaults checks the options and fills in defaults.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Workers < 0 || o.Workers > MaxWorkers {
		return errs.New(errs.ErrCodeInvalidInput, "workers must be between 0 and %d, got %d", MaxWorkers, o.Workers)
	}
	if o.Workers == 0 {
		o.Workers = DefaultWorkers
	}
	if o.ScratchDir == "" {
		o.ScratchDir = materialize.DefaultScratchDir
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Scan.Logger == nil {
		o.Scan.Logger = o.Logger
	}
	return nil
}

// dedupe returns names without empty entries and repeats, keeping the first
// occurrence of each.
func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

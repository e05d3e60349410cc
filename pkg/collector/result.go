package collector

import (
	"errors"
	"fmt"
	"time"

	"github.com/matzehuels/httparchivedeps/pkg/manifest"
)

// ArchiveResult reports how one requested archive was processed.
type ArchiveResult struct {
	Name     string
	Revision string
	Deps     int           // manifest rows contributed
	Skipped  bool          // not declared in the workspace
	Err      error         // nil on success and when skipped
	Duration time.Duration

	rows []manifest.HttpArchiveDep
}

// OK reports whether the archive contributed to the manifest.
func (r ArchiveResult) OK() bool { return !r.Skipped && r.Err == nil }

// Result is the outcome of a Collect run.
type Result struct {
	RunID    string
	Manifest *manifest.HttpArchiveDeps
	Archives []ArchiveResult // in request order
}

// Err joins the failures of all archives, or returns nil if every requested
// archive succeeded or was skipped.
func (r *Result) Err() error {
	var errs []error
	for _, a := range r.Archives {
		if a.Err != nil {
			errs = append(errs, fmt.Errorf("archive %s: %w", a.Name, a.Err))
		}
	}
	return errors.Join(errs...)
}

// Failed returns the names of archives that failed.
func (r *Result) Failed() []string {
	var names []string
	for _, a := range r.Archives {
		if a.Err != nil {
			names = append(names, a.Name)
		}
	}
	return names
}

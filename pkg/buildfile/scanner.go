package buildfile

import (
	"context"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
	"github.com/matzehuels/httparchivedeps/pkg/fsutil"
)

// DefaultBuildFileName is the build-definition file marker.
const DefaultBuildFileName = "BUILD"

// DefaultExcludes are vendored subtrees whose BUILD files are generated by
// other tooling and never describe sources of the archive itself.
var DefaultExcludes = []string{"third_party/maven"}

// TargetRecord is one library or binary target found in an archive.
type TargetRecord struct {
	BuildFile string   // absolute path of the declaring BUILD file
	Kind      string   // rule kind, e.g. java_library
	Name      string   // target name
	Sources   []string // declared sources relative to the BUILD file's directory

	// Unresolved are srcs expressions that could not be evaluated statically.
	Unresolved []string
}

// ScanOptions configures a Scanner.
type ScanOptions struct {
	// BuildFileNames are the accepted marker file names. Default: BUILD.
	BuildFileNames []string
	// Excludes are slash separated segment sequences; any BUILD file whose
	// archive-relative path contains one is skipped. Default: third_party/maven.
	Excludes []string
	// RuleKinds are the rule kinds turned into records. Default: DefaultRuleKinds.
	RuleKinds []string
	// Parser overrides the BUILD file parser.
	Parser Parser
	Logger *log.Logger
}

// Scanner walks a materialized archive and extracts its targets.
type Scanner struct {
	fs       fsutil.FileSystem
	parser   Parser
	markers  []string
	excludes [][]string
	logger   *log.Logger
}

// NewScanner returns a Scanner over fs.
func NewScanner(fs fsutil.FileSystem, opts ScanOptions) *Scanner {
	markers := opts.BuildFileNames
	if len(markers) == 0 {
		markers = []string{DefaultBuildFileName}
	}
	excludes := opts.Excludes
	if excludes == nil {
		excludes = DefaultExcludes
	}
	parser := opts.Parser
	if parser == nil {
		parser = NewBuildtoolsParser(fs, markers[0], opts.RuleKinds)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Scanner{fs: fs, parser: parser, markers: markers, logger: logger}
	for _, ex := range excludes {
		if segs := splitSegments(ex); len(segs) > 0 {
			s.excludes = append(s.excludes, segs)
		}
	}
	return s
}

// FindBuildFiles returns the BUILD files below root in lexical order.
func (s *Scanner) FindBuildFiles(root string) ([]string, error) {
	files, err := s.fs.ListRecursive(root)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeBuildFileParse, err, "list %s", root)
	}

	var out []string
	for _, f := range files {
		if !slices.Contains(s.markers, filepath.Base(f)) {
			continue
		}
		rel, err := filepath.Rel(root, f)
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidPath, err, "relativize %s", f)
		}
		if s.excluded(splitSegments(filepath.ToSlash(rel))) {
			s.logger.Debug("skipping vendored build file", "path", rel)
			continue
		}
		out = append(out, f)
	}
	slices.Sort(out)
	return out, nil
}

// ExtractTargets parses one BUILD file and flattens its targets into records.
func (s *Scanner) ExtractTargets(ctx context.Context, path string) ([]TargetRecord, error) {
	f, err := s.parser.Parse(ctx, path)
	if err != nil {
		return nil, err
	}
	records := make([]TargetRecord, 0, len(f.Targets))
	for _, t := range f.Targets {
		records = append(records, TargetRecord{
			BuildFile:  path,
			Kind:       t.Kind,
			Name:       t.Name,
			Sources:    t.Sources,
			Unresolved: t.Unresolved,
		})
	}
	return records, nil
}

// Scan finds every BUILD file below root and extracts its targets. The first
// parse failure aborts the scan.
func (s *Scanner) Scan(ctx context.Context, root string) ([]TargetRecord, error) {
	buildFiles, err := s.FindBuildFiles(root)
	if err != nil {
		return nil, err
	}
	var records []TargetRecord
	for _, bf := range buildFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := s.ExtractTargets(ctx, bf)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("parsed build file", "path", bf, "targets", len(recs))
		records = append(records, recs...)
	}
	return records, nil
}

// excluded reports whether segs contains any exclude sequence contiguously.
func (s *Scanner) excluded(segs []string) bool {
	for _, ex := range s.excludes {
		for i := 0; i+len(ex) <= len(segs); i++ {
			if slices.Equal(segs[i:i+len(ex)], ex) {
				return true
			}
		}
	}
	return false
}

func splitSegments(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// Package label synthesizes Bazel target labels and fully qualified class
// references for targets discovered inside a materialized http_archive.
//
// Paths are handled as segment lists rather than raw strings, so a build file
// at the repository root yields "//:name" and a class reference never gains a
// leading or doubled dot.
package label

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"

	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
)

const (
	// Components of package and target names may contain all
	// printable characters, except backslash, forward slash, and
	// colon.
	validNameCharacterPattern       = `[^[:cntrl:]/:\\]`
	validNameNonDotCharacterPattern = `[^[:cntrl:]./:\\]`

	// Components may not consist solely of dots.
	validNameComponentPattern = validNameCharacterPattern + `*` +
		validNameNonDotCharacterPattern +
		validNameCharacterPattern + `*`
	validNamePattern = validNameComponentPattern + `(/` + validNameComponentPattern + `)*`

	validLabelPattern = `//(` + validNamePattern + `)?:` + validNamePattern
)

var (
	validNameComponentRegexp = regexp.MustCompile("^" + validNameComponentPattern + "$")
	validTargetNameRegexp    = regexp.MustCompile("^" + validNamePattern + "$")
	validLabelRegexp         = regexp.MustCompile("^" + validLabelPattern + "$")
)

var errInvalidTargetName = errors.New("target name must match " + validNamePattern)

// Package is a Bazel package inside an archive, identified by the directory
// of its BUILD file relative to the repository root. The zero value is the
// root package.
type Package struct {
	segments []string
}

// NewPackage creates a package from a slash separated repository-relative
// path. The empty string denotes the root package.
func NewPackage(path string) (Package, error) {
	if path == "" {
		return Package{}, nil
	}
	segments := strings.Split(path, "/")
	for _, s := range segments {
		if !validNameComponentRegexp.MatchString(s) {
			return Package{}, errs.New(errs.ErrCodeInvalidLabel, "invalid package path %q: bad component %q", path, s)
		}
	}
	return Package{segments: segments}, nil
}

// MustNewPackage is like NewPackage but panics on invalid input.
func MustNewPackage(path string) Package {
	p, err := NewPackage(path)
	if err != nil {
		panic(err)
	}
	return p
}

// PackageOfBuildFile returns the package defined by the build file at
// buildFile, which must be named marker and live below repoRoot.
func PackageOfBuildFile(repoRoot, buildFile, marker string) (Package, error) {
	if filepath.Base(buildFile) != marker {
		return Package{}, errs.New(errs.ErrCodeInvalidLabel, "%s is not a %s file", buildFile, marker)
	}
	rel, err := filepath.Rel(repoRoot, filepath.Dir(buildFile))
	if err != nil {
		return Package{}, errs.Wrap(errs.ErrCodeInvalidLabel, err, "%s is not below %s", buildFile, repoRoot)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return Package{}, errs.New(errs.ErrCodeInvalidLabel, "%s is not below %s", buildFile, repoRoot)
	}
	if rel == "." {
		rel = ""
	}
	return NewPackage(rel)
}

// Segments returns the package path components.
func (p Package) Segments() []string {
	return append([]string(nil), p.segments...)
}

// Path returns the slash separated package path, empty for the root package.
func (p Package) Path() string {
	return strings.Join(p.segments, "/")
}

// String returns the package in "//a/b" form.
func (p Package) String() string {
	return "//" + p.Path()
}

// Label appends a target name to the package.
func (p Package) Label(targetName string) (Label, error) {
	if !validTargetNameRegexp.MatchString(targetName) {
		return Label{}, errs.Wrap(errs.ErrCodeInvalidLabel, errInvalidTargetName, "invalid target name %q", targetName)
	}
	return Label{value: p.String() + ":" + targetName}, nil
}

// Label is a repository-relative target label of the form "//pkg:name".
type Label struct {
	value string
}

// NewLabel parses a label of the form "//pkg:name" or "//:name".
func NewLabel(value string) (Label, error) {
	if !validLabelRegexp.MatchString(value) {
		return Label{}, errs.New(errs.ErrCodeInvalidLabel, "label %q must match %s", value, validLabelPattern)
	}
	return Label{value: value}, nil
}

// Package returns the package part of the label.
func (l Label) Package() Package {
	pkg, _, _ := strings.Cut(strings.TrimPrefix(l.value, "//"), ":")
	if pkg == "" {
		return Package{}
	}
	return Package{segments: strings.Split(pkg, "/")}
}

// TargetName returns the part after the colon.
func (l Label) TargetName() string {
	_, name, _ := strings.Cut(l.value, ":")
	return name
}

func (l Label) String() string {
	return l.value
}

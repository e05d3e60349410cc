package reconcile

import (
	"path/filepath"
	"strings"
	"unicode"

	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
)

// Namespace is a dotted package name split into its segments.
// The nil Namespace is the default (unnamed) package.
type Namespace []string

// ParseNamespace splits a dotted package name. Every segment must be a
// non-empty identifier.
func ParseNamespace(s string) (Namespace, error) {
	if s == "" {
		return nil, nil
	}
	segments := strings.Split(s, ".")
	for _, seg := range segments {
		if !isIdentifier(seg) {
			return nil, errs.New(errs.ErrCodeReconciliation, "malformed namespace %q: invalid segment %q", s, seg)
		}
	}
	return Namespace(segments), nil
}

func (n Namespace) String() string {
	return strings.Join(n, ".")
}

// ExternalPrefix returns the part of namespace that the directory layout
// below repoRoot does not encode. It returns the empty string when namespace
// and layout fully agree.
func ExternalPrefix(namespace, repoRoot string) (string, error) {
	ns, err := ParseNamespace(namespace)
	if err != nil {
		return "", err
	}
	root, err := rootSegments(repoRoot)
	if err != nil {
		return "", err
	}
	projectName := root[len(root)-1]

	suffix := ns
	if i := lastIndex(ns, strings.ReplaceAll(projectName, "-", "")); i >= 0 {
		suffix = ns[i+1:]
	}

	hypothetical := append(append([]string(nil), root...), suffix...)
	filesystemPackage := hypothetical[lastIndex(hypothetical, projectName)+1:]

	i := lastIndexOfRun(ns, filesystemPackage)
	if i < 0 {
		return "", nil
	}
	prefix := append(append(Namespace(nil), ns[:i]...), ns[i+len(filesystemPackage):]...)
	return prefix.String(), nil
}

// rootSegments splits an absolute repository root into path segments.
func rootSegments(repoRoot string) ([]string, error) {
	clean := filepath.ToSlash(filepath.Clean(repoRoot))
	var segments []string
	for _, s := range strings.Split(clean, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 || segments[len(segments)-1] == "." || segments[len(segments)-1] == ".." {
		return nil, errs.New(errs.ErrCodeReconciliation, "repository root %q has no project name", repoRoot)
	}
	return segments, nil
}

func lastIndex(segments []string, s string) int {
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] == s {
			return i
		}
	}
	return -1
}

// lastIndexOfRun returns the start of the last contiguous occurrence of run in
// segments, or -1. An empty run matches at the end.
func lastIndexOfRun(segments, run []string) int {
	for i := len(segments) - len(run); i >= 0; i-- {
		match := true
		for j := range run {
			if segments[i+j] != run[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$' || unicode.IsLetter(r):
		case unicode.IsDigit(r) && i > 0:
		default:
			return false
		}
	}
	return true
}

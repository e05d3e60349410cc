// Package workspace reads http_archive declarations from a Bazel WORKSPACE
// file and derives, for a named archive, the git clone URL, repository name
// and pinned revision the generator materializes.
package workspace

import (
	"strings"

	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
)

// ArchiveEntry is one http_archive declaration.
type ArchiveEntry struct {
	Name        string   `json:"name"`
	URLs        []string `json:"urls"`
	StripPrefix string   `json:"strip_prefix"`
	SHA256      string   `json:"sha256,omitempty"`
}

// Descriptor is the ordered list of http_archive entries in a workspace.
type Descriptor struct {
	Archives []ArchiveEntry `json:"archives"`
}

// Source is an archive resolved to everything needed to materialize it.
type Source struct {
	Name     string
	CloneURL string
	RepoName string
	Revision string
}

// Lookup returns the entry named name. When the workspace declares the same
// name more than once the last declaration wins, matching Bazel's own
// override semantics for WORKSPACE files.
func (d *Descriptor) Lookup(name string) (ArchiveEntry, bool) {
	var (
		found ArchiveEntry
		ok    bool
	)
	for _, a := range d.Archives {
		if a.Name == name {
			found, ok = a, true
		}
	}
	return found, ok
}

// Resolve looks up name and derives its clone URL, repository name and
// revision. A missing entry is reported with ErrCodeArchiveNotFound so the
// caller can skip it; an entry whose metadata does not follow the
// "<repo>/archive/..." and "<repo>-<revision>" conventions is reported with
// ErrCodeInvalidArchive.
func (d *Descriptor) Resolve(name string) (Source, error) {
	entry, ok := d.Lookup(name)
	if !ok {
		return Source{}, errs.New(errs.ErrCodeArchiveNotFound, "can't find http_archive with name: %s", name)
	}
	cloneURL, err := entry.CloneURL()
	if err != nil {
		return Source{}, err
	}
	repoName, err := entry.RepoName()
	if err != nil {
		return Source{}, err
	}
	revision, err := entry.Revision()
	if err != nil {
		return Source{}, err
	}
	return Source{
		Name:     entry.Name,
		CloneURL: cloneURL,
		RepoName: repoName,
		Revision: revision,
	}, nil
}

// CloneURL derives the git URL from the first declared download URL by
// cutting it at "/archive" and appending ".git".
//
//	https://github.com/google/startup-os/archive/1a2b.zip -> https://github.com/google/startup-os.git
func (e ArchiveEntry) CloneURL() (string, error) {
	if len(e.URLs) == 0 || e.URLs[0] == "" {
		return "", errs.New(errs.ErrCodeInvalidArchive, "http_archive %s declares no urls", e.Name)
	}
	base, _, _ := strings.Cut(e.URLs[0], "/archive")
	base = strings.TrimSuffix(base, "/")
	if !strings.HasSuffix(base, ".git") {
		base += ".git"
	}
	if err := errs.ValidateURL(base); err != nil {
		return "", errs.Wrap(errs.ErrCodeInvalidArchive, err, "http_archive %s has unusable url %q", e.Name, e.URLs[0])
	}
	return base, nil
}

// RepoName is the last path segment of the clone URL without ".git".
func (e ArchiveEntry) RepoName() (string, error) {
	cloneURL, err := e.CloneURL()
	if err != nil {
		return "", err
	}
	name := strings.TrimSuffix(cloneURL[strings.LastIndexByte(cloneURL, '/')+1:], ".git")
	if name == "" || name == "." || name == ".." {
		return "", errs.New(errs.ErrCodeInvalidArchive, "http_archive %s: no repository name in %q", e.Name, cloneURL)
	}
	return name, nil
}

// Revision returns the part of strip_prefix after its last '-'. It is used
// both as the checkout target and as the reported commit id.
func (e ArchiveEntry) Revision() (string, error) {
	prefix := strings.TrimSuffix(e.StripPrefix, "/")
	i := strings.LastIndexByte(prefix, '-')
	if i < 0 || i == len(prefix)-1 {
		return "", errs.New(errs.ErrCodeInvalidArchive, "http_archive %s: strip_prefix %q does not follow <repo>-<revision>", e.Name, e.StripPrefix)
	}
	return prefix[i+1:], nil
}

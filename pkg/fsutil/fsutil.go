// Package fsutil provides the filesystem operations used while scanning a
// materialized archive.
//
// [FileSystem] is backed by an [afero.Fs] so the scanner and collector can run
// against an in-memory tree in tests and against the real disk in production.
package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileSystem is the set of filesystem operations the generator needs.
// All paths are absolute.
type FileSystem interface {
	// ListRecursive returns every regular file below root in lexical order.
	ListRecursive(root string) ([]string, error)
	// Exists reports whether path refers to an existing regular file.
	Exists(path string) (bool, error)
	// ReadFile returns the contents of path.
	ReadFile(path string) ([]byte, error)
	// MkdirAll creates path and any missing parents.
	MkdirAll(path string) error
	// RemoveAll deletes path and everything below it. A missing path is not an error.
	RemoveAll(path string) error
	// Getwd returns the directory scratch paths are anchored to.
	Getwd() (string, error)
}

// AferoFS implements FileSystem on top of an afero filesystem.
type AferoFS struct {
	fs  afero.Fs
	cwd string
}

// NewOS returns a FileSystem on the host disk anchored at the process working directory.
func NewOS() *AferoFS {
	return &AferoFS{fs: afero.NewOsFs()}
}

// New wraps fs. Getwd returns cwd; an empty cwd falls back to os.Getwd.
func New(fs afero.Fs, cwd string) *AferoFS {
	return &AferoFS{fs: fs, cwd: cwd}
}

// Fs returns the underlying afero filesystem.
func (a *AferoFS) Fs() afero.Fs { return a.fs }

// ListRecursive implements FileSystem.
func (a *AferoFS) ListRecursive(root string) ([]string, error) {
	var files []string
	err := afero.Walk(a.fs, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Exists implements FileSystem.
func (a *AferoFS) Exists(path string) (bool, error) {
	info, err := a.fs.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// ReadFile implements FileSystem.
func (a *AferoFS) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(a.fs, path)
}

// MkdirAll implements FileSystem.
func (a *AferoFS) MkdirAll(path string) error {
	return a.fs.MkdirAll(path, 0o755)
}

// RemoveAll implements FileSystem.
func (a *AferoFS) RemoveAll(path string) error {
	return a.fs.RemoveAll(path)
}

// Getwd implements FileSystem.
func (a *AferoFS) Getwd() (string, error) {
	if a.cwd != "" {
		return a.cwd, nil
	}
	return os.Getwd()
}

// Join joins path elements with the host separator.
func Join(elem ...string) string {
	return filepath.Join(elem...)
}

var _ FileSystem = (*AferoFS)(nil)

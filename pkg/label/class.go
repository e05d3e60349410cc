package label

import (
	"path"
	"strings"

	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
)

// ClassReference builds the fully qualified class name of a source file
// declared in pkg's BUILD file.
//
// The result is prefix, then the package segments, then the directories of
// source (relative to the BUILD file), then the file name without its
// extension, all joined with dots. prefix is the external namespace returned
// by reconcile.ExternalPrefix and may be empty.
//
//	ClassReference("com.acme", MustNewPackage("a/b"), "Bar.java") // "com.acme.a.b.Bar"
func ClassReference(prefix string, pkg Package, source string) (string, error) {
	if err := errs.ValidatePath(source); err != nil {
		return "", errs.Wrap(errs.ErrCodeInvalidLabel, err, "invalid source file %q", source)
	}

	var parts []string
	for _, s := range strings.Split(prefix, ".") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	parts = append(parts, pkg.segments...)

	dir, file := path.Split(path.Clean(source))
	for _, s := range strings.Split(strings.Trim(dir, "/"), "/") {
		if s != "" && s != "." {
			parts = append(parts, s)
		}
	}
	stem := strings.TrimSuffix(file, path.Ext(file))
	if stem == "" {
		return "", errs.New(errs.ErrCodeInvalidLabel, "source file %q has no class name", source)
	}
	parts = append(parts, stem)
	return strings.Join(parts, "."), nil
}

package buildfile

import (
	"context"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bazelbuild/buildtools/build"

	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
	"github.com/matzehuels/httparchivedeps/pkg/fsutil"
)

// DefaultRuleKinds are the rules whose sources are compiled into classes.
var DefaultRuleKinds = []string{"java_library", "java_binary"}

// Target is one rule declared in a BUILD file.
type Target struct {
	Kind    string
	Name    string
	Sources []string // relative to the BUILD file's directory, in declared order

	// Unresolved holds the srcs subexpressions that cannot be evaluated
	// statically, such as select() or list comprehensions, in source form.
	Unresolved []string
}

// File is the structured content of a BUILD file.
type File struct {
	Path    string
	Targets []Target
}

// Parser turns a BUILD file into its targets.
type Parser interface {
	Parse(ctx context.Context, path string) (*File, error)
}

// BuildtoolsParser implements Parser with the buildtools syntax tree.
type BuildtoolsParser struct {
	fs     fsutil.FileSystem
	kinds  []string
	marker string
}

// NewBuildtoolsParser creates a parser that keeps rules of the given kinds
// (DefaultRuleKinds when empty). marker is the BUILD file name used to detect
// subpackage boundaries while expanding glob().
func NewBuildtoolsParser(fs fsutil.FileSystem, marker string, kinds []string) *BuildtoolsParser {
	if len(kinds) == 0 {
		kinds = DefaultRuleKinds
	}
	if marker == "" {
		marker = DefaultBuildFileName
	}
	return &BuildtoolsParser{fs: fs, kinds: kinds, marker: marker}
}

// Parse implements Parser. Names bound by top-level assignments may be used
// in srcs and name. A kept rule without a name is a parse error.
func (p *BuildtoolsParser) Parse(_ context.Context, path string) (*File, error) {
	data, err := p.fs.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeBuildFileParse, err, "read %s", path)
	}
	f, err := build.ParseBuild(path, data)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeBuildFileParse, err, "parse %s", path)
	}

	ev := newEvaluator(p.fs, filepath.Dir(path), p.marker, f)
	out := &File{Path: path}
	for _, rule := range f.Rules("") {
		if !slices.Contains(p.kinds, rule.Kind()) {
			continue
		}
		name, err := ev.name(rule)
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeBuildFileParse, err, "%s", path)
		}

		var unresolved []string
		srcs, err := ev.sources(rule.Attr("srcs"), &unresolved)
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeBuildFileParse, err, "%s: srcs of %s", path, name)
		}
		out.Targets = append(out.Targets, Target{
			Kind:       rule.Kind(),
			Name:       name,
			Sources:    srcs,
			Unresolved: unresolved,
		})
	}
	return out, nil
}

// evaluator folds srcs expressions for one package.
type evaluator struct {
	fs        fsutil.FileSystem
	dir       string
	marker    string
	files     []string // package files relative to dir, loaded on first glob()
	bindings  map[string]build.Expr
	resolving map[string]bool
}

func newEvaluator(fs fsutil.FileSystem, dir, marker string, f *build.File) *evaluator {
	ev := &evaluator{
		fs:        fs,
		dir:       dir,
		marker:    marker,
		bindings:  make(map[string]build.Expr),
		resolving: make(map[string]bool),
	}
	for _, stmt := range f.Stmt {
		assign, ok := stmt.(*build.AssignExpr)
		if !ok || assign.Op != "=" {
			continue
		}
		if id, ok := assign.LHS.(*build.Ident); ok {
			ev.bindings[id.Name] = assign.RHS
		}
	}
	return ev
}

// name returns the literal or folded name attribute of rule.
func (ev *evaluator) name(rule *build.Rule) (string, error) {
	start, _ := rule.Call.Span()
	expr := rule.Attr("name")
	if expr == nil {
		return "", errs.New(errs.ErrCodeBuildFileParse, "line %d: %s has no name", start.Line, rule.Kind())
	}
	var unresolved []string
	vals, err := ev.sources(expr, &unresolved)
	if err != nil {
		return "", err
	}
	if len(vals) != 1 || len(unresolved) > 0 || vals[0] == "" {
		return "", errs.New(errs.ErrCodeBuildFileParse, "line %d: %s name %s is not a string", start.Line, rule.Kind(), build.FormatString(expr))
	}
	return vals[0], nil
}

// sources evaluates expr to a list of strings. Subexpressions that cannot be
// evaluated are appended to unresolved in source form.
func (ev *evaluator) sources(expr build.Expr, unresolved *[]string) ([]string, error) {
	switch e := expr.(type) {
	case nil:
		return nil, nil
	case *build.StringExpr:
		return []string{e.Value}, nil
	case *build.Ident:
		rhs, ok := ev.bindings[e.Name]
		if !ok || ev.resolving[e.Name] {
			break
		}
		ev.resolving[e.Name] = true
		defer delete(ev.resolving, e.Name)
		return ev.sources(rhs, unresolved)
	case *build.ListExpr:
		var out []string
		for _, item := range e.List {
			srcs, err := ev.sources(item, unresolved)
			if err != nil {
				return nil, err
			}
			out = append(out, srcs...)
		}
		return out, nil
	case *build.ParenExpr:
		return ev.sources(e.X, unresolved)
	case *build.BinaryExpr:
		if e.Op != "+" {
			break
		}
		x, err := ev.sources(e.X, unresolved)
		if err != nil {
			return nil, err
		}
		y, err := ev.sources(e.Y, unresolved)
		if err != nil {
			return nil, err
		}
		return append(x, y...), nil
	case *build.CallExpr:
		if fn, ok := e.X.(*build.Ident); ok && fn.Name == "glob" {
			return ev.glob(e, unresolved)
		}
	}
	*unresolved = append(*unresolved, build.FormatString(expr))
	return nil, nil
}

func (ev *evaluator) glob(call *build.CallExpr, unresolved *[]string) ([]string, error) {
	var include, exclude []string
	for i, arg := range call.List {
		if kw, ok := arg.(*build.AssignExpr); ok {
			if key, ok := kw.LHS.(*build.Ident); ok {
				switch key.Name {
				case "include":
					include = ev.patterns(kw.RHS, unresolved)
				case "exclude":
					exclude = ev.patterns(kw.RHS, unresolved)
				}
			}
			continue
		}
		if i == 0 {
			include = ev.patterns(arg, unresolved)
		}
	}

	if ev.files == nil {
		files, err := ev.packageFiles()
		if err != nil {
			return nil, err
		}
		ev.files = files
	}

	var out []string
	for _, f := range ev.files {
		if matchAny(include, f) && !matchAny(exclude, f) {
			out = append(out, f)
		}
	}
	return out, nil
}

// patterns folds a glob pattern list. Nested glob() calls are not patterns.
func (ev *evaluator) patterns(expr build.Expr, unresolved *[]string) []string {
	if call, ok := expr.(*build.CallExpr); ok {
		*unresolved = append(*unresolved, build.FormatString(call))
		return nil
	}
	vals, _ := ev.sources(expr, unresolved)
	return vals
}

// packageFiles lists files of the package, stopping at subpackages.
func (ev *evaluator) packageFiles() ([]string, error) {
	all, err := ev.fs.ListRecursive(ev.dir)
	if err != nil {
		return nil, err
	}
	var subpackages []string
	rels := make([]string, 0, len(all))
	for _, f := range all {
		rel, err := filepath.Rel(ev.dir, f)
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(rel)
		if dir, name := path.Split(rel); name == ev.marker && dir != "" {
			subpackages = append(subpackages, dir)
		}
		rels = append(rels, rel)
	}

	files := rels[:0]
	for _, rel := range rels {
		if path.Base(rel) == ev.marker {
			continue
		}
		inSubpackage := false
		for _, sub := range subpackages {
			if strings.HasPrefix(rel, sub) {
				inSubpackage = true
				break
			}
		}
		if !inSubpackage {
			files = append(files, rel)
		}
	}
	slices.Sort(files)
	return files, nil
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if matchGlob(p, name) {
			return true
		}
	}
	return false
}

// matchGlob matches a slash separated name against a Bazel glob pattern.
// Segments are matched with path.Match; "**" matches any number of segments.
func matchGlob(pattern, name string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pat, name []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			for i := 0; i <= len(name); i++ {
				if matchSegments(rest, name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		if ok, err := path.Match(pat[0], name[0]); err != nil || !ok {
			return false
		}
		pat, name = pat[1:], name[1:]
	}
	return len(name) == 0
}

var _ Parser = (*BuildtoolsParser)(nil)

package workspace

import (
	"strings"

	"go.starlark.net/syntax"

	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
)

// Parse extracts every http_archive call from a WORKSPACE file, in source
// order. The file is parsed but not executed: attribute values are folded
// from string literals, lists, names bound by top-level assignments, "+"
// concatenations and "%s" formatting of those. Attributes that cannot be folded are left empty.
func Parse(filename string, data []byte) (*Descriptor, error) {
	opts := syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
	}
	f, err := opts.Parse(filename, data, 0)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidWorkspace, err, "parse %s", filename)
	}

	ev := evaluator{globals: map[string]any{}}
	for _, stmt := range f.Stmts {
		assign, ok := stmt.(*syntax.AssignStmt)
		if !ok || assign.Op != syntax.EQ {
			continue
		}
		if id, ok := assign.LHS.(*syntax.Ident); ok {
			if v, ok := ev.eval(assign.RHS); ok {
				ev.globals[id.Name] = v
			} else {
				delete(ev.globals, id.Name)
			}
		}
	}

	d := &Descriptor{}
	syntax.Walk(f, func(n syntax.Node) bool {
		call, ok := n.(*syntax.CallExpr)
		if !ok {
			return true
		}
		if fn, ok := call.Fn.(*syntax.Ident); ok && fn.Name == "http_archive" {
			d.Archives = append(d.Archives, ev.archive(call))
		}
		return true
	})
	return d, nil
}

type evaluator struct {
	globals map[string]any
}

func (ev *evaluator) archive(call *syntax.CallExpr) ArchiveEntry {
	var (
		entry ArchiveEntry
		url   string
	)
	for _, arg := range call.Args {
		kw, ok := arg.(*syntax.BinaryExpr)
		if !ok || kw.Op != syntax.EQ {
			continue
		}
		key, ok := kw.X.(*syntax.Ident)
		if !ok {
			continue
		}
		v, _ := ev.eval(kw.Y)
		switch key.Name {
		case "name":
			entry.Name, _ = v.(string)
		case "urls":
			entry.URLs, _ = v.([]string)
		case "url":
			url, _ = v.(string)
		case "strip_prefix":
			entry.StripPrefix, _ = v.(string)
		case "sha256":
			entry.SHA256, _ = v.(string)
		}
	}
	if len(entry.URLs) == 0 && url != "" {
		entry.URLs = []string{url}
	}
	return entry
}

// eval folds e into a string or []string.
func (ev *evaluator) eval(e syntax.Expr) (any, bool) {
	switch e := e.(type) {
	case *syntax.Literal:
		s, ok := e.Value.(string)
		return s, ok && e.Token == syntax.STRING
	case *syntax.Ident:
		v, ok := ev.globals[e.Name]
		return v, ok
	case *syntax.ParenExpr:
		return ev.eval(e.X)
	case *syntax.ListExpr:
		list := make([]string, 0, len(e.List))
		for _, item := range e.List {
			v, ok := ev.eval(item)
			s, isString := v.(string)
			if !ok || !isString {
				return nil, false
			}
			list = append(list, s)
		}
		return list, true
	case *syntax.TupleExpr:
		return ev.eval(&syntax.ListExpr{List: e.List})
	case *syntax.BinaryExpr:
		if e.Op != syntax.PLUS && e.Op != syntax.PERCENT {
			return nil, false
		}
		x, ok := ev.eval(e.X)
		if !ok {
			return nil, false
		}
		y, ok := ev.eval(e.Y)
		if !ok {
			return nil, false
		}
		if e.Op == syntax.PERCENT {
			return percent(x, y)
		}
		switch x := x.(type) {
		case string:
			if y, ok := y.(string); ok {
				return x + y, true
			}
		case []string:
			if y, ok := y.([]string); ok {
				return append(append([]string(nil), x...), y...), true
			}
		}
	}
	return nil, false
}

// percent applies Starlark's "%" string formatting for the %s and %%
// verbs, which is all WORKSPACE files use to splice commits into URLs.
func percent(format, operand any) (any, bool) {
	f, ok := format.(string)
	if !ok {
		return nil, false
	}
	var args []string
	switch v := operand.(type) {
	case string:
		args = []string{v}
	case []string:
		args = v
	default:
		return nil, false
	}

	var b strings.Builder
	for i := 0; i < len(f); i++ {
		if f[i] != '%' {
			b.WriteByte(f[i])
			continue
		}
		if i+1 == len(f) {
			return nil, false
		}
		i++
		switch f[i] {
		case '%':
			b.WriteByte('%')
		case 's':
			if len(args) == 0 {
				return nil, false
			}
			b.WriteString(args[0])
			args = args[1:]
		default:
			return nil, false
		}
	}
	if len(args) > 0 {
		return nil, false
	}
	return b.String(), true
}

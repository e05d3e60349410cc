// Package javasrc extracts the declared package of a Java compilation unit.
//
// Only the prologue of the file is scanned: whitespace, comments and
// annotations (as found in package-info.java) are skipped until the package
// declaration or the first other token.
package javasrc

import (
	"context"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
	"github.com/matzehuels/httparchivedeps/pkg/fsutil"
)

// SourceAnalyzer returns the namespace declared by a source file.
type SourceAnalyzer interface {
	Namespace(ctx context.Context, path string) (string, error)
}

// Analyzer implements SourceAnalyzer for Java sources.
type Analyzer struct {
	fs fsutil.FileSystem
}

// NewAnalyzer creates an analyzer reading files from fs.
func NewAnalyzer(fs fsutil.FileSystem) *Analyzer {
	return &Analyzer{fs: fs}
}

// Namespace implements SourceAnalyzer. A file without a package declaration
// belongs to the default package and yields "".
func (a *Analyzer) Namespace(_ context.Context, path string) (string, error) {
	data, err := a.fs.ReadFile(path)
	if err != nil {
		return "", errs.Wrap(errs.ErrCodeSourceAnalysis, err, "read %s", path)
	}
	ns, err := PackageName(string(data))
	if err != nil {
		return "", errs.Wrap(errs.ErrCodeSourceAnalysis, err, "analyze %s", path)
	}
	return ns, nil
}

// PackageName returns the dotted name of the package declaration in src.
func PackageName(src string) (string, error) {
	s := scanner{src: strings.TrimPrefix(src, "\uFEFF")}
	for {
		s.skipTrivia()
		if s.done() {
			return "", nil
		}
		if s.peek() == '@' {
			if err := s.skipAnnotation(); err != nil {
				return "", err
			}
			continue
		}
		if s.ident() != "package" {
			return "", nil
		}
		return s.qualifiedName()
	}
}

type scanner struct {
	src string
	pos int
}

type syntaxError struct {
	offset int
	msg    string
}

func (e *syntaxError) Error() string {
	return e.msg + " at offset " + strconv.Itoa(e.offset)
}

func (s *scanner) done() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() rune {
	r, _ := utf8.DecodeRuneInString(s.src[s.pos:])
	return r
}

func (s *scanner) errorf(msg string) error {
	return &syntaxError{offset: s.pos, msg: msg}
}

// skipTrivia skips whitespace and comments.
func (s *scanner) skipTrivia() {
	for !s.done() {
		rest := s.src[s.pos:]
		switch {
		case strings.HasPrefix(rest, "//"):
			if i := strings.IndexByte(rest, '\n'); i >= 0 {
				s.pos += i + 1
			} else {
				s.pos = len(s.src)
			}
		case strings.HasPrefix(rest, "/*"):
			if i := strings.Index(rest[2:], "*/"); i >= 0 {
				s.pos += i + 4
			} else {
				s.pos = len(s.src)
			}
		default:
			r, size := utf8.DecodeRuneInString(rest)
			if !unicode.IsSpace(r) {
				return
			}
			s.pos += size
		}
	}
}

func (s *scanner) ident() string {
	start := s.pos
	for !s.done() {
		r, size := utf8.DecodeRuneInString(s.src[s.pos:])
		if !(r == '_' || r == '$' || unicode.IsLetter(r) || (s.pos > start && unicode.IsDigit(r))) {
			break
		}
		s.pos += size
	}
	return s.src[start:s.pos]
}

// qualifiedName reads "a.b.c;" after the package keyword.
func (s *scanner) qualifiedName() (string, error) {
	var parts []string
	for {
		s.skipTrivia()
		part := s.ident()
		if part == "" {
			return "", s.errorf("expected identifier in package declaration")
		}
		parts = append(parts, part)
		s.skipTrivia()
		switch {
		case s.done():
			return "", s.errorf("unterminated package declaration")
		case s.peek() == '.':
			s.pos++
		case s.peek() == ';':
			return strings.Join(parts, "."), nil
		default:
			return "", s.errorf("unexpected character in package declaration")
		}
	}
}

// skipAnnotation skips "@Name", "@a.b.Name" and "@Name(...)", respecting
// nested parentheses and string literals inside the arguments.
func (s *scanner) skipAnnotation() error {
	s.pos++
	for {
		s.skipTrivia()
		if s.ident() == "" {
			return s.errorf("expected annotation name")
		}
		s.skipTrivia()
		if s.done() || s.peek() != '.' {
			break
		}
		s.pos++
	}
	if s.done() || s.peek() != '(' {
		return nil
	}
	depth := 0
	for !s.done() {
		switch c := s.src[s.pos]; c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				s.pos++
				return nil
			}
		case '"', '\'':
			s.pos++
			for !s.done() && s.src[s.pos] != c {
				if s.src[s.pos] == '\\' {
					s.pos++
				}
				s.pos++
			}
		}
		s.pos++
	}
	return s.errorf("unterminated annotation")
}

var _ SourceAnalyzer = (*Analyzer)(nil)

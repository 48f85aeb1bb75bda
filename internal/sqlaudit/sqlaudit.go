// Package sqlaudit checks that every SQL string constant starts with a
// `--sql <uuid>` marker and that no two statements share a marker.
package sqlaudit

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlPattern    = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with)\b`)
	markerPattern = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// Violation is one offending constant.
type Violation struct {
	File    string
	Line    int
	Name    string
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", v.File, v.Line, v.Message, v.Name)
}

// Lint walks the targets, which may be Go files or directories. Hidden and
// vendor directories and _test.go files are skipped.
func Lint(targets ...string) ([]Violation, error) {
	if len(targets) == 0 {
		targets = []string{"."}
	}
	l := &linter{seen: map[string]Violation{}}
	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if filepath.Ext(target) == ".go" {
				if err := l.file(target); err != nil {
					return nil, err
				}
			}
			continue
		}
		err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata") {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			return l.file(path)
		})
		if err != nil {
			return nil, err
		}
	}
	return l.violations, nil
}

type linter struct {
	violations []Violation
	seen       map[string]Violation
}

func (l *linter) file(path string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, 0)
	if err != nil {
		return err
	}
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for _, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !sqlPattern.MatchString(raw) {
				continue
			}
			here := Violation{File: path, Line: fset.Position(bl.Pos()).Line, Name: joinNames(vs.Names)}
			marker := firstLine(raw)
			if !markerPattern.MatchString(marker) {
				here.Message = "missing or invalid --sql <uuid> marker"
				l.violations = append(l.violations, here)
				continue
			}
			if prev, dup := l.seen[marker]; dup {
				here.Message = fmt.Sprintf("marker already used by %s at %s:%d", prev.Name, prev.File, prev.Line)
				l.violations = append(l.violations, here)
				continue
			}
			l.seen[marker] = here
		}
		return true
	})
	return nil
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}

func joinNames(idents []*ast.Ident) string {
	parts := make([]string, 0, len(idents))
	for _, ident := range idents {
		if ident != nil {
			parts = append(parts, ident.Name)
		}
	}
	return strings.Join(parts, ",")
}

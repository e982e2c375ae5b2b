package arch_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"slices"
	"strings"
	"testing"
)

// allowedGlobals names package-level vars that are set once and never
// reassigned but are not recognised by constantLike.
var allowedGlobals = map[string][]string{
	// Built with strings.Repeat.
	"report": {"Separator"},
}

// allowedGlobalPrefixes covers lipgloss palette entries in ui.
var allowedGlobalPrefixes = map[string]string{
	"ui": "color",
}

// constantLike reports whether the i'th name of vs is initialised in a way
// that cannot hold run state: an error sentinel, a literal, or a sync value.
func constantLike(vs *ast.ValueSpec, i int) bool {
	if vs.Names[i].Name == "_" {
		return true
	}
	if sel, ok := vs.Type.(*ast.SelectorExpr); ok {
		if pkg, ok := sel.X.(*ast.Ident); ok && (pkg.Name == "sync" || pkg.Name == "atomic") {
			return true
		}
	}
	if id, ok := vs.Type.(*ast.Ident); ok && id.Name == "error" {
		return true
	}
	if i >= len(vs.Values) {
		return false
	}
	switch v := vs.Values[i].(type) {
	case *ast.BasicLit, *ast.CompositeLit:
		return true
	case *ast.CallExpr:
		sel, ok := v.Fun.(*ast.SelectorExpr)
		if !ok {
			return false
		}
		pkg, ok := sel.X.(*ast.Ident)
		if !ok {
			return false
		}
		switch pkg.Name + "." + sel.Sel.Name {
		case "errors.New", "fmt.Errorf", "regexp.MustCompile":
			return true
		}
	}
	return false
}

// globals returns the package-level vars of files that are neither
// constant-like nor allowed for pkg.
func globals(p parsed, pkg string) map[string]token.Pos {
	out := make(map[string]token.Pos)
	for _, f := range p.files {
		for _, decl := range f.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.VAR {
				continue
			}
			for _, spec := range gd.Specs {
				vs := spec.(*ast.ValueSpec)
				for i, name := range vs.Names {
					if constantLike(vs, i) || slices.Contains(allowedGlobals[pkg], name.Name) {
						continue
					}
					if prefix, ok := allowedGlobalPrefixes[pkg]; ok && strings.HasPrefix(name.Name, prefix) {
						continue
					}
					out[name.Name] = name.Pos()
				}
			}
		}
	}
	return out
}

// Comparisons run concurrently in batch, so no package may keep state in
// package-level vars.
func TestNoMutableGlobalState(t *testing.T) {
	t.Parallel()

	for _, pkg := range packages(t) {
		p := parse(t, pkg)
		for name, pos := range globals(p, pkg) {
			t.Errorf("%s: package-level var %s holds mutable state; pass it explicitly", p.position(pos), name)
		}
	}
}

func TestAllowedGlobalsExist(t *testing.T) {
	t.Parallel()

	for pkg, names := range allowedGlobals {
		declared := make(map[string]bool)
		for _, f := range parse(t, pkg).files {
			for _, decl := range f.Decls {
				if gd, ok := decl.(*ast.GenDecl); ok && gd.Tok == token.VAR {
					for _, spec := range gd.Specs {
						for _, name := range spec.(*ast.ValueSpec).Names {
							declared[name.Name] = true
						}
					}
				}
			}
		}
		for _, name := range names {
			if !declared[name] {
				t.Errorf("allowedGlobals[%q] lists %s, which is not declared", pkg, name)
			}
		}
	}
}

func TestConstantLike(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want bool
	}{
		{`var ErrEmpty = errors.New("tree: empty")`, true},
		{`var ErrSyntax = fmt.Errorf("tree: %w", base)`, true},
		{`var Separator = "----"`, true},
		{`var colors = map[string]int{"red": 1}`, true},
		{`var once sync.Once`, true},
		{`var _ Observer = (*Recorder)(nil)`, true},
		{`var cache = make(map[string]*Result)`, false},
		{`var runs []string`, false},
		{`var defaultIndex = newIndex()`, false},
	}
	for _, tt := range tests {
		f, err := parser.ParseFile(token.NewFileSet(), "x.go", "package x\n"+tt.src, 0)
		if err != nil {
			t.Fatalf("%s: %v", tt.src, err)
		}
		vs := f.Decls[0].(*ast.GenDecl).Specs[0].(*ast.ValueSpec)
		if got := constantLike(vs, 0); got != tt.want {
			t.Errorf("constantLike(%s) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

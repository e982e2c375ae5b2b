package arch_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"testing"
)

const internalPrefix = "github.com/papapumpkin/rfplus/internal/"

// internalDir returns the absolute path of internal/, which is the parent of
// this package's directory.
func internalDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Dir(filepath.Dir(file))
}

// packages lists the internal packages other than arch_test.
func packages(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(internalDir(t))
	if err != nil {
		t.Fatal(err)
	}
	var pkgs []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != "arch_test" && len(sources(t, e.Name(), false)) > 0 {
			pkgs = append(pkgs, e.Name())
		}
	}
	return pkgs
}

// sources returns the .go files of pkg, sorted, optionally with tests.
func sources(t *testing.T, pkg string, tests bool) []string {
	t.Helper()
	dir := filepath.Join(internalDir(t), pkg)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") {
			continue
		}
		if !tests && strings.HasSuffix(name, "_test.go") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	return files
}

// parsed holds the non-test files of one package.
type parsed struct {
	fset  *token.FileSet
	files []*ast.File
}

func parse(t *testing.T, pkg string) parsed {
	t.Helper()
	p := parsed{fset: token.NewFileSet()}
	for _, path := range sources(t, pkg, false) {
		f, err := parser.ParseFile(p.fset, path, nil, parser.ParseComments)
		if err != nil {
			t.Fatalf("parsing %s: %v", path, err)
		}
		p.files = append(p.files, f)
	}
	return p
}

// imports returns the internal packages pkg imports, sorted and deduplicated.
func (p parsed) imports() []string {
	var out []string
	for _, f := range p.files {
		for _, imp := range f.Imports {
			path := strings.Trim(imp.Path.Value, `"`)
			rel, ok := strings.CutPrefix(path, internalPrefix)
			if !ok {
				continue
			}
			rel, _, _ = strings.Cut(rel, "/")
			out = append(out, rel)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// position renders pos relative to internal/.
func (p parsed) position(pos token.Pos) string {
	at := p.fset.Position(pos)
	_, rel, ok := strings.Cut(filepath.ToSlash(at.Filename), "/internal/")
	if !ok {
		rel = filepath.Base(at.Filename)
	}
	return rel + ":" + strconv.Itoa(at.Line)
}


package arch_test

import (
	"go/ast"
	"go/doc"
	"strings"
	"testing"
)

// documented reports whether text is a doc comment for name in the usual
// "Name does X" form.
func documented(text, name string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), name)
}

// checkValues accepts a parenthesized const or var group when the group has a
// doc comment or each exported name carries its own comment.
func checkValues(t *testing.T, p parsed, values []*doc.Value) {
	t.Helper()
	for _, v := range values {
		if !v.Decl.Lparen.IsValid() {
			if name := v.Names[0]; !documented(v.Doc, name) {
				t.Errorf("%s: %s has no doc comment", p.position(v.Decl.Pos()), name)
			}
			continue
		}
		if strings.TrimSpace(v.Doc) != "" {
			continue
		}
		for _, spec := range v.Decl.Specs {
			vs := spec.(*ast.ValueSpec)
			if vs.Doc != nil || vs.Comment != nil || !vs.Names[0].IsExported() {
				continue
			}
			t.Errorf("%s: %s has no doc comment", p.position(vs.Pos()), vs.Names[0].Name)
		}
	}
}

func checkFuncs(t *testing.T, p parsed, funcs []*doc.Func) {
	t.Helper()
	for _, fn := range funcs {
		if !documented(fn.Doc, fn.Name) {
			name := fn.Name
			if fn.Recv != "" {
				name = strings.TrimPrefix(fn.Recv, "*") + "." + name
			}
			t.Errorf("%s: %s has no doc comment", p.position(fn.Decl.Pos()), name)
		}
	}
}

// TestExportedSymbolsHaveGoDoc requires a doc comment on every exported
// symbol of every internal package.
func TestExportedSymbolsHaveGoDoc(t *testing.T) {
	t.Parallel()

	for _, pkg := range packages(t) {
		p := parse(t, pkg)
		d, err := doc.NewFromFiles(p.fset, p.files, internalPrefix+pkg, doc.PreserveAST)
		if err != nil {
			t.Fatalf("%s: %v", pkg, err)
		}
		checkValues(t, p, d.Consts)
		checkValues(t, p, d.Vars)
		checkFuncs(t, p, d.Funcs)
		for _, typ := range d.Types {
			if !documented(typ.Doc, typ.Name) {
				t.Errorf("%s: type %s has no doc comment", p.position(typ.Decl.Pos()), typ.Name)
			}
			checkValues(t, p, typ.Consts)
			checkValues(t, p, typ.Vars)
			checkFuncs(t, p, typ.Funcs)
			checkFuncs(t, p, typ.Methods)
		}
	}
}

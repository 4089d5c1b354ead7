// Package instrument - Import injection functionality.
//
// This file adds the software-trace runtime import to instrumented files and
// decides which files are left alone.
package instrument

import (
	"go/ast"
	"go/token"
	"path"
	"strconv"
	"strings"
)

// NoTraceDirective opts a function (in its doc comment) or a whole file (in
// the comment group above the package clause) out of tracing.
const NoTraceDirective = "//swt:notrace"

// Reasons a file is left untouched.
const (
	SkipGenerated     = "generated file"
	SkipDirective     = "file marked " + NoTraceDirective
	SkipRuntimeImport = "file imports the trace runtime"
	SkipRuntimeModule = "package belongs to the trace runtime"
)

// skipReason returns why file must not be instrumented, or "".
func skipReason(file *ast.File, opts *Options) string {
	if ast.IsGenerated(file) {
		return SkipGenerated
	}
	if hasDirective(file.Doc) {
		return SkipDirective
	}
	if isRuntimePackage(opts.PackagePath) {
		return SkipRuntimeModule
	}
	rt := opts.runtimeImport()
	for _, imp := range file.Imports {
		if p, err := strconv.Unquote(imp.Path.Value); err == nil && p == rt {
			return SkipRuntimeImport
		}
	}
	return ""
}

// isRuntimePackage reports whether pkgPath is part of the trace runtime.
// Probes inside it would recurse into RecordLoc.
func isRuntimePackage(pkgPath string) bool {
	return pkgPath == RuntimeImportPath ||
		strings.HasPrefix(pkgPath, RuntimeImportPath+"/") ||
		strings.HasPrefix(pkgPath, ModulePath+"/internal/")
}

// hasDirective reports whether a comment group carries NoTraceDirective.
func hasDirective(doc *ast.CommentGroup) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		if strings.TrimSpace(c.Text) == NoTraceDirective {
			return true
		}
	}
	return false
}

// injectImports adds the runtime import to the AST file:
//
//	import swt "github.com/kolkov/swtrace/swt"
//
// Edge cases:
//   - No imports section: Creates new import section
//   - Grouped imports: Adds to existing import group
//   - Single import: Converts to grouped import
//   - Another import already named swt: InstrumentationError
//
// Algorithm:
//  1. Check that no existing import takes the swt name
//  2. Find or create the import declaration block
//  3. Append the runtime import spec
//  4. Rebuild file.Imports
//
// Thread Safety: NOT thread-safe (modifies AST in place).
func injectImports(fset *token.FileSet, file *ast.File, importPath string) error {
	// Step 1: The alias must be free.
	for _, imp := range file.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		name := path.Base(p)
		if imp.Name != nil {
			name = imp.Name.Name
		}
		if name == RuntimeAlias {
			return errorAt(fset, imp.Pos(), nil, "import name %q is already used by %q", RuntimeAlias, p).
				hint("Rename the conflicting import or mark the file with " + NoTraceDirective)
		}
	}

	// Step 2: Find or create the import declaration block.
	var importDecl *ast.GenDecl
	for _, decl := range file.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if ok && genDecl.Tok == token.IMPORT {
			importDecl = genDecl
			break
		}
	}
	if importDecl == nil {
		importDecl = &ast.GenDecl{
			Tok:    token.IMPORT,
			Lparen: 1, // Non-zero Lparen means grouped import: import (...)
		}
		file.Decls = append([]ast.Decl{importDecl}, file.Decls...)
	}

	// Step 3: Add the runtime import.
	importDecl.Specs = append(importDecl.Specs, &ast.ImportSpec{
		Name: ast.NewIdent(RuntimeAlias),
		Path: &ast.BasicLit{
			Kind:  token.STRING,
			Value: strconv.Quote(importPath),
		},
	})
	if importDecl.Lparen == 0 && len(importDecl.Specs) > 1 {
		importDecl.Lparen = 1
	}

	// Step 4: Keep file.Imports consistent with the declarations.
	file.Imports = nil
	for _, decl := range file.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.IMPORT {
			continue
		}
		for _, spec := range genDecl.Specs {
			if impSpec, ok := spec.(*ast.ImportSpec); ok {
				file.Imports = append(file.Imports, impSpec)
			}
		}
	}

	return nil
}

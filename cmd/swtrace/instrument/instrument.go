// Package instrument implements AST-level insertion of software-trace
// recording calls.
//
// This package provides the core functionality for the swtrace tool. It
// parses Go source files, numbers every function and every block inside
// it, and inserts a swt.RecordLoc call as the first statement of each
// block, so that a traced goroutine records the blocks it enters.
//
// Algorithm:
//  1. Parse Go source file using go/parser
//  2. Decide whether the file is traced at all (generated, opted out, runtime)
//  3. Walk the AST, giving each definition an index and each block an index
//  4. Insert swt.RecordLoc(region, def, block) at the entry of every block
//  5. Inject the runtime import, and an init function for the main file
//  6. Generate instrumented code using go/printer
//
// Example Transformation:
//
//	// INPUT (original code):
//	func abs(x int) int {
//		if x < 0 {
//			return -x
//		}
//		return x
//	}
//
//	// OUTPUT (instrumented code):
//	import swt "github.com/kolkov/swtrace/swt"
//	func abs(x int) int {
//		swt.RecordLoc(0x5e1f..., 0, 0)
//		if x < 0 {
//			swt.RecordLoc(0x5e1f..., 0, 1)
//			return -x
//		}
//		return x
//	}
//
// Thread Safety: InstrumentFile keeps no shared state; distinct files may be
// instrumented concurrently.
package instrument

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	// RuntimeImportPath is the import path of the software-trace runtime.
	// This will be injected into instrumented files.
	RuntimeImportPath = "github.com/kolkov/swtrace/swt"

	// RuntimeAlias is the local package name used in instrumented code:
	// swt.RecordLoc(...)
	RuntimeAlias = "swt"

	// ModulePath is the module that provides the runtime. Its swt and
	// internal packages are never instrumented; examples and tools are.
	ModulePath = "github.com/kolkov/swtrace"
)

// Options controls how a file is instrumented.
type Options struct {
	// PackagePath is the import path of the package the file belongs to.
	// Its hash becomes the region hash of every recorded location.
	PackagePath string

	// DefBase is the index given to the first definition of the file.
	// Files of one package are numbered consecutively in sorted order.
	DefBase uint32

	// RuntimeImport overrides RuntimeImportPath.
	RuntimeImport string

	// InvalidateSignals, for the file holding func main, installs a signal
	// handler that invalidates all live traces.
	InvalidateSignals []string

	// Report, for the file holding func main, defers swt.Fini().
	Report bool
}

func (o *Options) runtimeImport() string {
	if o.RuntimeImport != "" {
		return o.RuntimeImport
	}
	return RuntimeImportPath
}

// InstrumentResult holds the result of instrumentation.
//
//nolint:revive // InstrumentResult is clear and descriptive despite stuttering
type InstrumentResult struct {
	Code    string          // Instrumented source code
	Stats   InstrumentStats // Instrumentation statistics
	Skipped string          // Why the whole file was left untouched ("" if instrumented)
}

// RegionHash returns the region hash of a package.
func RegionHash(packagePath string) uint64 {
	return xxhash.Sum64String(packagePath)
}

// InstrumentFile instruments a single Go source file with RecordLoc calls.
//
// Parameters:
//   - filename: Path to the Go source file (used for error messages)
//   - src: Source code to instrument. Can be:
//   - nil: Read from filename
//   - []byte: Use provided bytes
//   - string: Use provided string
//   - io.Reader: Read from reader
//   - opts: Package path, definition base and main-file options
//
// Returns:
//   - *InstrumentResult: Result containing code and statistics
//   - error: Parsing or instrumentation error, or nil on success
//
// Example:
//
//	result, err := InstrumentFile("main.go", nil, Options{PackagePath: "example.com/app"})
//	if err != nil {
//	    log.Fatalf("Instrumentation failed: %v", err)
//	}
//	fmt.Printf("Inserted %d probes in %d definitions\n",
//	    result.Stats.Blocks, result.Stats.Definitions)
//
// A file that is skipped (generated, opted out with //swt:notrace, part of
// the runtime, or importing it) is returned unchanged with Skipped set.
//
//nolint:revive // InstrumentFile is the standard API naming for this operation
func InstrumentFile(filename string, src interface{}, opts Options) (*InstrumentResult, error) {
	// Step 1: Parse source file into AST.
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filename, err)
	}

	// Step 2: Files that must not be traced are printed back unchanged.
	if reason := skipReason(file, &opts); reason != "" {
		code, err := render(fset, file)
		if err != nil {
			return nil, err
		}
		return &InstrumentResult{
			Code:    code,
			Stats:   InstrumentStats{Definitions: countDefinitions(file)},
			Skipped: reason,
		}, nil
	}

	// Step 3: Number definitions and blocks, insert the probes.
	v := newInstrumentVisitor(fset, RegionHash(opts.PackagePath), opts.DefBase)
	ast.Walk(v, file)
	if v.err != nil {
		return nil, v.err
	}

	// Step 4: Main-file hooks.
	mainFunc := findMain(file)
	if mainFunc != nil && opts.Report {
		deferFini(mainFunc)
	}

	// Step 5: Import the runtime only when something references it.
	needsRuntime := v.stats.Blocks > 0 || mainFunc != nil
	if needsRuntime {
		if err := injectImports(fset, file, opts.runtimeImport()); err != nil {
			return nil, err
		}
	}

	// Step 6: Generate Go source code from the modified AST.
	code, err := render(fset, file)
	if err != nil {
		return nil, err
	}
	if mainFunc != nil {
		code += initCode(opts.InvalidateSignals)
	}

	return &InstrumentResult{
		Code:  code,
		Stats: v.stats,
	}, nil
}

// CountDefinitions returns the number of definition indices a file uses.
//
// The swtrace tool calls it for every file of a package, in sorted order,
// to compute each file's DefBase before instrumenting files in parallel.
func CountDefinitions(filename string, src interface{}) (int, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		return 0, fmt.Errorf("failed to parse file %s: %w", filename, err)
	}
	return countDefinitions(file), nil
}

// countDefinitions counts function declarations with a body and function
// literals, in the same way the visitor numbers them.
func countDefinitions(file *ast.File) int {
	n := 0
	ast.Inspect(file, func(node ast.Node) bool {
		switch fn := node.(type) {
		case *ast.FuncDecl:
			if fn.Body != nil {
				n++
			}
		case *ast.FuncLit:
			n++
		}
		return true
	})
	return n
}

func render(fset *token.FileSet, file *ast.File) (string, error) {
	var buf bytes.Buffer
	cfg := &printer.Config{
		Mode:     printer.UseSpaces | printer.TabIndent,
		Tabwidth: 8,
	}
	if err := cfg.Fprint(&buf, fset, file); err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return buf.String(), nil
}

// findMain returns func main of package main, or nil.
func findMain(file *ast.File) *ast.FuncDecl {
	if file.Name.Name != "main" {
		return nil
	}
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if ok && fn.Recv == nil && fn.Name.Name == "main" && fn.Body != nil {
			return fn
		}
	}
	return nil
}

// deferFini makes "defer swt.Fini()" the first statement of main.
func deferFini(mainFunc *ast.FuncDecl) {
	stmt := &ast.DeferStmt{
		Call: &ast.CallExpr{
			Fun: &ast.SelectorExpr{
				X:   ast.NewIdent(RuntimeAlias),
				Sel: ast.NewIdent("Fini"),
			},
		},
	}
	mainFunc.Body.List = append([]ast.Stmt{stmt}, mainFunc.Body.List...)
}

// initCode returns the init function appended to the file holding main.
func initCode(signals []string) string {
	var b strings.Builder
	b.WriteString("\n// init initializes software tracing (added by swtrace tool)\n")
	b.WriteString("func init() {\n")
	b.WriteString("\t" + RuntimeAlias + ".Init()\n")
	if len(signals) > 0 {
		quoted := make([]string, len(signals))
		for i, s := range signals {
			quoted[i] = strconv.Quote(s)
		}
		fmt.Fprintf(&b, "\tif _, err := %s.InvalidateOnSignal(%s); err != nil {\n", RuntimeAlias, strings.Join(quoted, ", "))
		b.WriteString("\t\tpanic(err)\n")
		b.WriteString("\t}\n")
	}
	b.WriteString("}\n")
	return b.String()
}

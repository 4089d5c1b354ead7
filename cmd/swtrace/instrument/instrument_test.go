// Package instrument - Test suite for AST instrumentation.
//
// This test file validates the instrumentation engine's ability to:
//  1. Parse Go source files
//  2. Number definitions and blocks deterministically
//  3. Insert RecordLoc probes at the entry of every block
//  4. Inject the runtime import and the main-file init
//  5. Leave opted-out and generated code untouched
package instrument

import (
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"math"
	"strings"
	"testing"
)

const testPkg = "example.com/app"

func probe(def, bb uint32) string {
	return fmt.Sprintf("swt.RecordLoc(0x%x, %d, %d)", RegionHash(testPkg), def, bb)
}

// mustParse fails the test if code is not valid Go.
func mustParse(t *testing.T, code string) {
	t.Helper()
	if _, err := parser.ParseFile(token.NewFileSet(), "out.go", code, 0); err != nil {
		t.Fatalf("instrumented code does not parse: %v\n%s", err, code)
	}
}

// TestInstrumentFile_FunctionBlocks tests probes in a function body and an if body.
func TestInstrumentFile_FunctionBlocks(t *testing.T) {
	input := `package app

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
`

	result, err := InstrumentFile("abs.go", input, Options{PackagePath: testPkg})
	if err != nil {
		t.Fatalf("InstrumentFile failed: %v", err)
	}
	mustParse(t, result.Code)

	if !strings.Contains(result.Code, `swt "github.com/kolkov/swtrace/swt"`) {
		t.Errorf("Output missing runtime import")
	}
	for _, want := range []string{probe(0, 0), probe(0, 1)} {
		if !strings.Contains(result.Code, want) {
			t.Errorf("Output missing %s", want)
		}
	}
	if strings.Contains(result.Code, "func init()") {
		t.Errorf("init injected into a non-main package")
	}

	if result.Stats.Definitions != 1 || result.Stats.Blocks != 2 {
		t.Errorf("Stats = %+v, want 1 definition and 2 blocks", result.Stats)
	}

	t.Logf("Instrumented code:\n%s", result.Code)
}

// TestInstrumentFile_ProbeIsFirstStatement tests that every probe opens its block.
func TestInstrumentFile_ProbeIsFirstStatement(t *testing.T) {
	input := `package app

func f(n int) int {
	s := 0
	for i := 0; i < n; i++ {
		s += i
	}
	return s
}
`

	result, err := InstrumentFile("loop.go", input, Options{PackagePath: testPkg})
	if err != nil {
		t.Fatalf("InstrumentFile failed: %v", err)
	}
	mustParse(t, result.Code)

	body := result.Code[strings.Index(result.Code, "func f"):]
	if strings.Index(body, probe(0, 0)) > strings.Index(body, "s := 0") {
		t.Errorf("function probe does not come first:\n%s", body)
	}
	loop := body[strings.Index(body, "for i"):]
	if strings.Index(loop, probe(0, 1)) > strings.Index(loop, "s += i") {
		t.Errorf("loop probe does not come first:\n%s", loop)
	}
}

// TestInstrumentFile_Clauses tests switch, type switch and select clauses.
func TestInstrumentFile_Clauses(t *testing.T) {
	input := `package app

func g(v interface{}, ch chan int) {
	switch v.(type) {
	case int:
	case string:
		println("s")
	}
	select {
	case <-ch:
	default:
	}
	switch {
	}
}
`

	result, err := InstrumentFile("clauses.go", input, Options{PackagePath: testPkg})
	if err != nil {
		t.Fatalf("InstrumentFile failed: %v", err)
	}
	mustParse(t, result.Code)

	// Body, two type-switch cases, two select clauses. The empty switch
	// has no clause and gets no probe in its clause list.
	if result.Stats.Blocks != 5 {
		t.Errorf("Blocks = %d, want 5\n%s", result.Stats.Blocks, result.Code)
	}
	for bb := uint32(0); bb < 5; bb++ {
		if !strings.Contains(result.Code, probe(0, bb)) {
			t.Errorf("Output missing %s", probe(0, bb))
		}
	}
}

// TestInstrumentFile_FuncLit tests that literals are separate definitions.
func TestInstrumentFile_FuncLit(t *testing.T) {
	input := `package app

var handler = func() {}

func outer() {
	f := func() {
		if true {
		}
	}
	f()
	{
	}
}
`

	result, err := InstrumentFile("lit.go", input, Options{PackagePath: testPkg, DefBase: 10})
	if err != nil {
		t.Fatalf("InstrumentFile failed: %v", err)
	}
	mustParse(t, result.Code)

	tests := []struct {
		name string
		want string
	}{
		{"package-level literal", probe(10, 0)},
		{"outer body", probe(11, 0)},
		{"literal body", probe(12, 0)},
		{"literal if", probe(12, 1)},
		{"outer bare block resumes numbering", probe(11, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(result.Code, tt.want) {
				t.Errorf("Output missing %s\n%s", tt.want, result.Code)
			}
		})
	}

	if result.Stats.Definitions != 3 {
		t.Errorf("Definitions = %d, want 3", result.Stats.Definitions)
	}
	n, err := CountDefinitions("lit.go", input)
	if err != nil {
		t.Fatalf("CountDefinitions failed: %v", err)
	}
	if n != result.Stats.Definitions {
		t.Errorf("CountDefinitions = %d, visitor numbered %d", n, result.Stats.Definitions)
	}
}

// TestInstrumentFile_NoTraceFunction tests the per-function opt-out.
func TestInstrumentFile_NoTraceFunction(t *testing.T) {
	input := `package app

//swt:notrace
func hot() {
	go func() {}()
}

func cold() {}
`

	result, err := InstrumentFile("hot.go", input, Options{PackagePath: testPkg})
	if err != nil {
		t.Fatalf("InstrumentFile failed: %v", err)
	}
	mustParse(t, result.Code)

	// hot is 0 and its literal 1, both skipped; cold keeps index 2.
	if strings.Contains(result.Code, probe(0, 0)) || strings.Contains(result.Code, probe(1, 0)) {
		t.Errorf("opted-out definitions were instrumented:\n%s", result.Code)
	}
	if !strings.Contains(result.Code, probe(2, 0)) {
		t.Errorf("Output missing %s", probe(2, 0))
	}
	want := InstrumentStats{Definitions: 3, Blocks: 1, SkippedDefinitions: 2, SkippedBlocks: 2}
	if result.Stats != want {
		t.Errorf("Stats = %+v, want %+v", result.Stats, want)
	}
}

// TestInstrumentFile_SkippedFiles tests the file-level skip rules.
func TestInstrumentFile_SkippedFiles(t *testing.T) {
	tests := []struct {
		name  string
		input string
		pkg   string
		want  string
	}{
		{
			name:  "generated",
			input: "// Code generated by stringer. DO NOT EDIT.\n\npackage app\n\nfunc f() {}\n",
			pkg:   testPkg,
			want:  SkipGenerated,
		},
		{
			name:  "directive",
			input: "//swt:notrace\npackage app\n\nfunc f() {}\n",
			pkg:   testPkg,
			want:  SkipDirective,
		},
		{
			name:  "imports runtime",
			input: "package app\n\nimport \"github.com/kolkov/swtrace/swt\"\n\nfunc f() { swt.StartTracing() }\n",
			pkg:   testPkg,
			want:  SkipRuntimeImport,
		},
		{
			name:  "runtime module",
			input: "package api\n\nfunc f() {}\n",
			pkg:   "github.com/kolkov/swtrace/internal/swt/api",
			want:  SkipRuntimeModule,
		},
		{
			name:  "public runtime",
			input: "package swt\n\nfunc f() {}\n",
			pkg:   RuntimeImportPath,
			want:  SkipRuntimeModule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := InstrumentFile("f.go", tt.input, Options{PackagePath: tt.pkg})
			if err != nil {
				t.Fatalf("InstrumentFile failed: %v", err)
			}
			if result.Skipped != tt.want {
				t.Errorf("Skipped = %q, want %q", result.Skipped, tt.want)
			}
			if strings.Contains(result.Code, "RecordLoc") {
				t.Errorf("skipped file was instrumented:\n%s", result.Code)
			}
			if result.Stats.Definitions != 1 {
				t.Errorf("Definitions = %d, want 1", result.Stats.Definitions)
			}
		})
	}
}

// TestInstrumentFile_ModuleExamples tests that packages of the runtime
// module outside the runtime itself are instrumented.
func TestInstrumentFile_ModuleExamples(t *testing.T) {
	input := `package main

func fib(n int) int {
	if n < 2 {
		return n
	}
	return fib(n-1) + fib(n-2)
}
`
	for _, pkg := range []string{
		ModulePath + "/examples/dogfooding",
		ModulePath + "/cmd/swtrace",
		ModulePath + "/swtx",
	} {
		result, err := InstrumentFile("fib.go", input, Options{PackagePath: pkg})
		if err != nil {
			t.Fatalf("InstrumentFile(%s) failed: %v", pkg, err)
		}
		if result.Skipped != "" {
			t.Errorf("%s: Skipped = %q, want instrumented", pkg, result.Skipped)
		}
		if result.Stats.Blocks != 2 {
			t.Errorf("%s: Blocks = %d, want 2", pkg, result.Stats.Blocks)
		}
	}
}

// TestInstrumentFile_MainFile tests the init and Fini injection.
func TestInstrumentFile_MainFile(t *testing.T) {
	input := `package main

import "fmt"

func main() {
	fmt.Println("hi")
}
`

	result, err := InstrumentFile("main.go", input, Options{
		PackagePath:       "example.com/cmd/hi",
		InvalidateSignals: []string{"SIGUSR1"},
		Report:            true,
	})
	if err != nil {
		t.Fatalf("InstrumentFile failed: %v", err)
	}
	mustParse(t, result.Code)

	for _, want := range []string{
		"func init()",
		"swt.Init()",
		`swt.InvalidateOnSignal("SIGUSR1")`,
		"defer swt.Fini()",
		`"fmt"`,
	} {
		if !strings.Contains(result.Code, want) {
			t.Errorf("Output missing %s", want)
		}
	}

	t.Logf("Instrumented code:\n%s", result.Code)
}

// TestInstrumentFile_EmptyMain tests that a main without blocks to trace
// still gets the runtime import for its init.
func TestInstrumentFile_EmptyMain(t *testing.T) {
	input := `package main

//swt:notrace
func main() {}
`

	result, err := InstrumentFile("main.go", input, Options{PackagePath: "example.com/cmd/x"})
	if err != nil {
		t.Fatalf("InstrumentFile failed: %v", err)
	}
	mustParse(t, result.Code)

	if result.Stats.Blocks != 0 {
		t.Errorf("Blocks = %d, want 0", result.Stats.Blocks)
	}
	if !strings.Contains(result.Code, "swt.Init()") || !strings.Contains(result.Code, RuntimeImportPath) {
		t.Errorf("main file missing init or import:\n%s", result.Code)
	}
	if strings.Contains(result.Code, "swt.Fini()") {
		t.Errorf("Fini deferred without Report")
	}
}

// TestInstrumentFile_NoBlocksNoImport tests that files without probes are
// not given an unused import.
func TestInstrumentFile_NoBlocksNoImport(t *testing.T) {
	input := `package app

type T struct{ N int }

func (T) M()
`

	result, err := InstrumentFile("types.go", input, Options{PackagePath: testPkg})
	if err != nil {
		t.Fatalf("InstrumentFile failed: %v", err)
	}
	if strings.Contains(result.Code, RuntimeImportPath) {
		t.Errorf("unused runtime import injected:\n%s", result.Code)
	}
}

// TestInstrumentFile_AliasConflict tests the error for a clashing import name.
func TestInstrumentFile_AliasConflict(t *testing.T) {
	input := `package app

import swt "example.com/other"

func f() { swt.X() }
`

	_, err := InstrumentFile("conflict.go", input, Options{PackagePath: testPkg})
	if err == nil {
		t.Fatal("expected an error for the conflicting import")
	}
	var ierr *InstrumentationError
	if !errors.As(err, &ierr) {
		t.Fatalf("error %T is not an InstrumentationError", err)
	}
	if ierr.Pos.Line != 3 || ierr.Suggestion == "" {
		t.Errorf("error = %+v, want line 3 with a suggestion", ierr)
	}
}

// TestInstrumentFile_DefinitionOverflow tests index overflow reporting.
func TestInstrumentFile_DefinitionOverflow(t *testing.T) {
	input := `package app

func a() {}

func b() {}
`

	_, err := InstrumentFile("big.go", input, Options{PackagePath: testPkg, DefBase: math.MaxUint32})
	var ierr *InstrumentationError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected InstrumentationError, got %v", err)
	}
	if ierr.Pos.Line != 5 {
		t.Errorf("Line = %d, want 5", ierr.Pos.Line)
	}
	if ierr.Unwrap() == nil {
		t.Error("conversion error not wrapped")
	}
}

// TestInstrumentFile_Deterministic tests that two runs give identical output.
func TestInstrumentFile_Deterministic(t *testing.T) {
	input := `package app

func f(x int) {
	if x > 0 {
	} else if x < 0 {
	} else {
	}
}
`

	first, err := InstrumentFile("f.go", input, Options{PackagePath: testPkg})
	if err != nil {
		t.Fatalf("InstrumentFile failed: %v", err)
	}
	second, err := InstrumentFile("f.go", input, Options{PackagePath: testPkg})
	if err != nil {
		t.Fatalf("InstrumentFile failed: %v", err)
	}
	if first.Code != second.Code {
		t.Errorf("outputs differ")
	}
	if first.Stats.Blocks != 4 {
		t.Errorf("Blocks = %d, want 4", first.Stats.Blocks)
	}
}

// TestInstrumentFile_ParseError tests error handling for invalid Go.
func TestInstrumentFile_ParseError(t *testing.T) {
	_, err := InstrumentFile("bad.go", "package app\nfunc {", Options{})
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "failed to parse file bad.go") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRegionHash(t *testing.T) {
	if RegionHash("a") == RegionHash("b") {
		t.Error("distinct packages share a region hash")
	}
	if RegionHash(testPkg) != RegionHash(testPkg) {
		t.Error("region hash is not stable")
	}
}

// Package instrument - AST visitor for block numbering and probe insertion.
//
// This file implements the AST traversal that assigns definition and block
// indices and inserts swt.RecordLoc calls at the entry of every block.
package instrument

import (
	"fmt"
	"go/ast"
	"go/token"
	"strconv"

	"fortio.org/safecast"
)

// InstrumentStats tracks instrumentation statistics.
//
//nolint:revive // InstrumentStats is clear and descriptive despite stuttering
type InstrumentStats struct {
	Definitions        int // Function declarations and literals numbered
	Blocks             int // Probes inserted
	SkippedDefinitions int // Definitions opted out with //swt:notrace
	SkippedBlocks      int // Blocks inside skipped definitions
}

// String returns a human-readable summary.
func (s InstrumentStats) String() string {
	return fmt.Sprintf("%d definitions, %d blocks (%d definitions skipped)",
		s.Definitions, s.Blocks, s.SkippedDefinitions)
}

// defScope is the definition whose blocks are being numbered.
type defScope struct {
	def     uint32
	nextBB  uint64
	notrace bool
}

// instrumentVisitor walks one file. Each function declaration with a body
// and each function literal is a definition, numbered in preorder starting
// at DefBase. Blocks are numbered in preorder within their definition; a
// nested function literal is its own definition and does not consume
// indices of the enclosing one.
type instrumentVisitor struct {
	fset    *token.FileSet
	region  string // region hash literal
	defBase uint64
	nextDef uint64
	stats   InstrumentStats
	err     error

	// Bodies of switch, type switch and select statements. Their lists
	// hold clauses, not statements, so they get no probe.
	clauseLists map[*ast.BlockStmt]struct{}
}

func newInstrumentVisitor(fset *token.FileSet, region uint64, defBase uint32) *instrumentVisitor {
	return &instrumentVisitor{
		fset:        fset,
		region:      "0x" + strconv.FormatUint(region, 16),
		defBase:     uint64(defBase),
		clauseLists: make(map[*ast.BlockStmt]struct{}),
	}
}

// Visit implements ast.Visitor for file-level nodes. Everything inside a
// definition is handled by a scopedVisitor.
func (v *instrumentVisitor) Visit(node ast.Node) ast.Visitor {
	if v.err != nil {
		return nil
	}
	switch n := node.(type) {
	case *ast.FuncDecl:
		if n.Body == nil {
			return nil
		}
		return v.enter(n.Pos(), hasDirective(n.Doc))
	case *ast.FuncLit:
		// Function literals in package-level var initializers.
		return v.enter(n.Pos(), false)
	}
	return v
}

// enter opens a new definition scope.
func (v *instrumentVisitor) enter(pos token.Pos, notrace bool) ast.Visitor {
	idx, err := safecast.Conv[uint32](v.defBase + v.nextDef)
	if err != nil {
		v.err = errorAt(v.fset, pos, err, "definition index overflows uint32").
			hint("Split the package into smaller packages")
		return nil
	}
	v.nextDef++
	v.stats.Definitions++
	if notrace {
		v.stats.SkippedDefinitions++
	}
	return &scopedVisitor{v: v, scope: &defScope{def: idx, notrace: notrace}}
}

// scopedVisitor walks the inside of one definition.
type scopedVisitor struct {
	v     *instrumentVisitor
	scope *defScope
}

// Visit implements ast.Visitor.
//
// Probes are inserted before ast.Walk descends into a node's children, so
// the inserted statement is walked too; it contains no blocks.
func (s *scopedVisitor) Visit(node ast.Node) ast.Visitor {
	v := s.v
	if v.err != nil {
		return nil
	}
	switch n := node.(type) {
	case *ast.FuncLit:
		// Literals inherit the enclosing definition's opt-out.
		return v.enter(n.Pos(), s.scope.notrace)

	case *ast.SwitchStmt:
		v.clauseLists[n.Body] = struct{}{}
	case *ast.TypeSwitchStmt:
		v.clauseLists[n.Body] = struct{}{}
	case *ast.SelectStmt:
		v.clauseLists[n.Body] = struct{}{}

	case *ast.BlockStmt:
		if _, ok := v.clauseLists[n]; ok {
			delete(v.clauseLists, n)
			break
		}
		n.List = s.probe(n.Lbrace, n.List)
	case *ast.CaseClause:
		n.Body = s.probe(n.Colon, n.Body)
	case *ast.CommClause:
		n.Body = s.probe(n.Colon, n.Body)
	}
	return s
}

// probe numbers the next block of the scope and, unless the scope is opted
// out, returns list with a RecordLoc call prepended.
func (s *scopedVisitor) probe(pos token.Pos, list []ast.Stmt) []ast.Stmt {
	v := s.v
	bb, err := safecast.Conv[uint32](s.scope.nextBB)
	if err != nil {
		v.err = errorAt(v.fset, pos, err, "block index overflows uint32")
		return list
	}
	s.scope.nextBB++
	if s.scope.notrace {
		v.stats.SkippedBlocks++
		return list
	}
	v.stats.Blocks++
	call := createRecordCall(v.region, s.scope.def, bb)
	return append([]ast.Stmt{call}, list...)
}

// createRecordCall creates the AST for:
//
//	swt.RecordLoc(region, def, bb)
func createRecordCall(region string, def, bb uint32) ast.Stmt {
	return &ast.ExprStmt{
		X: &ast.CallExpr{
			Fun: &ast.SelectorExpr{
				X:   ast.NewIdent(RuntimeAlias),
				Sel: ast.NewIdent("RecordLoc"),
			},
			Args: []ast.Expr{
				&ast.BasicLit{Kind: token.INT, Value: region},
				&ast.BasicLit{Kind: token.INT, Value: strconv.FormatUint(uint64(def), 10)},
				&ast.BasicLit{Kind: token.INT, Value: strconv.FormatUint(uint64(bb), 10)},
			},
		},
	}
}

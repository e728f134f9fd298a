package scrape

import (
	"go/ast"
	"go/token"
	"go/types"
	"strings"

	"github.com/unbound-force/boundfit/internal/taxonomy"
)

// Site is a detected bound assertion in a parsed test file.
type Site struct {
	// Stmt is the statement that performs the assertion: the if
	// statement of a failure branch or the expression statement of
	// a testify call.
	Stmt ast.Stmt

	// Func is the enclosing top-level test function.
	Func *ast.FuncDecl

	// Operands are the two compared expressions in source order.
	Operands [2]ast.Expr

	// Literal is the literal expression inside the literal operand,
	// including a leading sign but excluding any conversion.
	Literal ast.Expr

	// Lit is the basic literal token inside Literal.
	Lit *ast.BasicLit

	Kind      taxonomy.AssertionKind
	Direction taxonomy.Direction
	Reverse   bool
}

// DetectSites walks every top-level Test function of f and returns
// the bound assertions in source order.
func DetectSites(f *ast.File) []Site {
	var sites []Site
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil || fn.Recv != nil || !isTestFunc(fn) {
			continue
		}
		sites = append(sites, detect(fn)...)
	}
	return sites
}

// LocateSite returns the first bound assertion of test starting on
// line.
func LocateSite(fset *token.FileSet, f *ast.File, test string, line int) (Site, bool) {
	for _, s := range DetectSites(f) {
		if s.Func.Name.Name == test && fset.Position(s.Stmt.Pos()).Line == line {
			return s, true
		}
	}
	return Site{}, false
}

// detect walks a test function body, including t.Run closures.
func detect(fn *ast.FuncDecl) []Site {
	var sites []Site
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.IfStmt:
			// if got > 10 { t.Errorf(...) }
			if site, ok := detectFailureBranch(node); ok {
				site.Func = fn
				sites = append(sites, site)
			}

		case *ast.ExprStmt:
			// assert.Less(t, got, 10)
			if call, ok := node.X.(*ast.CallExpr); ok {
				if site, ok := detectTestifyCall(node, call); ok {
					site.Func = fn
					sites = append(sites, site)
				}
			}
		}
		return true
	})
	return sites
}

// detectFailureBranch matches "if a OP b { t.Fail... }" where exactly
// one of a, b is a numeric literal.
func detectFailureBranch(ifStmt *ast.IfStmt) (Site, bool) {
	bin, ok := ifStmt.Cond.(*ast.BinaryExpr)
	if !ok || !bodyFailsDirectly(ifStmt.Body) {
		return Site{}, false
	}
	literal, lit, reverse, ok := literalOperand(bin.X, bin.Y)
	if !ok {
		return Site{}, false
	}
	dir, ok := taxonomy.FailureConditionDirection(bin.Op, reverse)
	if !ok {
		return Site{}, false
	}
	return Site{
		Stmt:      ifStmt,
		Operands:  [2]ast.Expr{bin.X, bin.Y},
		Literal:   literal,
		Lit:       lit,
		Kind:      taxonomy.KindStdlibComparison,
		Direction: dir,
		Reverse:   reverse,
	}, true
}

// detectTestifyCall matches assert/require ordering and equality
// calls whose compared arguments contain exactly one numeric literal.
func detectTestifyCall(stmt *ast.ExprStmt, call *ast.CallExpr) (Site, bool) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return Site{}, false
	}
	pkgIdent, ok := sel.X.(*ast.Ident)
	if !ok || (pkgIdent.Name != "assert" && pkgIdent.Name != "require") {
		return Site{}, false
	}
	if len(call.Args) < 3 {
		return Site{}, false
	}
	a, b := call.Args[1], call.Args[2]
	literal, lit, reverse, ok := literalOperand(a, b)
	if !ok {
		return Site{}, false
	}
	dir, ok := taxonomy.TestifyDirection(sel.Sel.Name, reverse)
	if !ok {
		return Site{}, false
	}
	kind := taxonomy.KindTestifyCompare
	if dir == taxonomy.DirectionEquality {
		kind = taxonomy.KindTestifyEqual
	}
	return Site{
		Stmt:      stmt,
		Operands:  [2]ast.Expr{a, b},
		Literal:   literal,
		Lit:       lit,
		Kind:      kind,
		Direction: dir,
		Reverse:   reverse,
	}, true
}

// literalOperand picks the literal side of a comparison. reverse is
// true when the literal is a. Exactly one side must be a literal.
func literalOperand(a, b ast.Expr) (literal ast.Expr, lit *ast.BasicLit, reverse bool, ok bool) {
	la, basicA, okA := numericLiteral(a)
	lb, basicB, okB := numericLiteral(b)
	switch {
	case okA && !okB:
		return la, basicA, true, true
	case okB && !okA:
		return lb, basicB, false, true
	}
	return nil, nil, false, false
}

// numericConversions are the conversion wrappers accepted around a
// literal, e.g. float64(3).
var numericConversions = map[string]bool{
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"float32": true, "float64": true,
}

// numericLiteral unwraps parentheses and a numeric conversion and
// reports whether e is an (optionally signed) INT or FLOAT literal.
func numericLiteral(e ast.Expr) (ast.Expr, *ast.BasicLit, bool) {
	switch v := e.(type) {
	case *ast.ParenExpr:
		return numericLiteral(v.X)
	case *ast.CallExpr:
		ident, ok := v.Fun.(*ast.Ident)
		if !ok || !numericConversions[ident.Name] || len(v.Args) != 1 {
			return nil, nil, false
		}
		return numericLiteral(v.Args[0])
	case *ast.UnaryExpr:
		if v.Op != token.SUB && v.Op != token.ADD {
			return nil, nil, false
		}
		if lit, ok := v.X.(*ast.BasicLit); ok && isNumber(lit) {
			return v, lit, true
		}
	case *ast.BasicLit:
		if isNumber(v) {
			return v, v, true
		}
	}
	return nil, nil, false
}

func isNumber(lit *ast.BasicLit) bool {
	return lit.Kind == token.INT || lit.Kind == token.FLOAT
}

// bodyFailsDirectly reports whether a block calls t.Errorf, t.Fatalf,
// t.Error, t.Fatal, t.FailNow or t.Fail as one of its own statements.
// Calls nested in inner blocks, loops or closures do not count, so a
// guard such as "if len(xs) > 0 { for ... { t.Error() } }" is not an
// assertion.
func bodyFailsDirectly(body *ast.BlockStmt) bool {
	if body == nil {
		return false
	}
	for _, stmt := range body.List {
		expr, ok := stmt.(*ast.ExprStmt)
		if !ok {
			continue
		}
		call, ok := expr.X.(*ast.CallExpr)
		if !ok {
			continue
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			continue
		}
		switch sel.Sel.Name {
		case "Errorf", "Fatalf", "Error", "Fatal", "FailNow", "Fail":
			return true
		}
	}
	return false
}

// isTestFunc reports whether fn is "func TestXxx(t *testing.T)".
func isTestFunc(fn *ast.FuncDecl) bool {
	if !strings.HasPrefix(fn.Name.Name, "Test") || fn.Name.Name == "TestMain" {
		return false
	}
	params := fn.Type.Params
	if params == nil || len(params.List) != 1 {
		return false
	}
	star, ok := params.List[0].Type.(*ast.StarExpr)
	if !ok {
		return false
	}
	sel, ok := star.X.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	ident, ok := sel.X.(*ast.Ident)
	return ok && ident.Name == "testing" && sel.Sel.Name == "T"
}

// exprString renders an expression as Go source.
func exprString(e ast.Expr) string {
	return types.ExprString(e)
}

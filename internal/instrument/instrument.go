// Package instrument rewrites a test file so the operands of one
// bound assertion are printed on a tagged line right before the
// assertion runs, and restores the file afterwards.
//
// It is the only package that writes to test sources.
package instrument

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/unbound-force/boundfit/internal/scrape"
	"github.com/unbound-force/boundfit/internal/taxonomy"
)

// DefaultEmitter prints the tag followed by both operands.
const DefaultEmitter = "fmt.Println(%q, %s, %s)"

// fmtAlias names the fmt import added when the file has no usable
// name for it.
const fmtAlias = "boundfitfmt"

var fmtSelector = regexp.MustCompile(`(^|[^\w.])fmt\.`)

var (
	// ErrAssertionNotFound is returned when the spec's assertion is
	// not present in the file.
	ErrAssertionNotFound = errors.New("assertion not found")

	// ErrNotInstrumented is returned by WriteFile before Instrument.
	ErrNotInstrumented = errors.New("instrument has not run")
)

// Options configures the injected statement.
type Options struct {
	// Tag prefixes the emitted line. Defaults to "log>>>".
	Tag string

	// Emitter is a format string for the emitting call expression,
	// receiving the quoted tag and both operand sources. Defaults to
	// DefaultEmitter.
	Emitter string

	// Imports lists the import paths the emitter needs. Defaults to
	// "fmt". Imports the rewritten file does not use are dropped.
	Imports []string
}

func (o Options) withDefaults() Options {
	if o.Tag == "" {
		o.Tag = "log>>>"
	}
	if o.Emitter == "" {
		o.Emitter = DefaultEmitter
	}
	if len(o.Imports) == 0 {
		o.Imports = []string{"fmt"}
	}
	return o
}

// Instrumentor manages the instrumentation of one spec's file.
type Instrumentor struct {
	spec taxonomy.AssertionSpec
	opts Options

	mu           sync.Mutex
	original     []byte
	mode         os.FileMode
	instrumented []byte
	written      bool
}

// New returns an Instrumentor for spec.
func New(spec taxonomy.AssertionSpec, opts Options) *Instrumentor {
	return &Instrumentor{spec: spec, opts: opts.withDefaults()}
}

// Instrument reads the test file and returns the rewritten source.
// The file on disk is not touched.
func (in *Instrumentor) Instrument() ([]byte, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	info, err := os.Stat(in.spec.File)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", in.spec.File, err)
	}
	src, err := os.ReadFile(in.spec.File)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", in.spec.File, err)
	}

	out, err := rewrite(in.spec, src, in.opts)
	if err != nil {
		return nil, err
	}
	in.original = src
	in.mode = info.Mode().Perm()
	in.instrumented = out
	return out, nil
}

// WriteFile saves a copy of the original under logdir and replaces
// the test file with the instrumented source.
func (in *Instrumentor) WriteFile(logdir string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.instrumented == nil {
		return ErrNotInstrumented
	}
	if err := os.MkdirAll(logdir, 0o755); err != nil {
		return fmt.Errorf("creating log directory %s: %w", logdir, err)
	}
	backup := filepath.Join(logdir, in.spec.Basename()+".orig")
	if err := os.WriteFile(backup, in.original, 0o644); err != nil {
		return fmt.Errorf("saving original to %s: %w", backup, err)
	}

	// Mark written first so a partial write is still restored.
	in.written = true
	if err := os.WriteFile(in.spec.File, in.instrumented, in.mode); err != nil {
		return fmt.Errorf("writing instrumented %s: %w", in.spec.File, err)
	}
	return nil
}

// Restore puts the original content back. It is idempotent and a
// no-op when nothing was written. A copy of the instrumented source
// is kept under logdir for inspection.
func (in *Instrumentor) Restore(logdir string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.written {
		return nil
	}

	original := in.original
	if original == nil {
		data, err := os.ReadFile(filepath.Join(logdir, in.spec.Basename()+".orig"))
		if err != nil {
			return fmt.Errorf("reading saved original: %w", err)
		}
		original = data
	}
	if err := os.WriteFile(in.spec.File, original, in.mode); err != nil {
		return fmt.Errorf("restoring %s: %w", in.spec.File, err)
	}
	in.written = false

	if logdir != "" && in.instrumented != nil {
		// Best effort: the copy is diagnostic only.
		_ = os.WriteFile(filepath.Join(logdir, in.spec.Basename()+".instrumented"), in.instrumented, 0o644)
	}
	return nil
}

// Session instruments spec, writes it, runs fn, and restores the
// file on every exit path, including a panic in fn.
func Session(spec taxonomy.AssertionSpec, logdir string, opts Options, fn func() error) (err error) {
	in := New(spec, opts)
	if _, err := in.Instrument(); err != nil {
		return err
	}
	defer func() {
		if rerr := in.Restore(logdir); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	if err := in.WriteFile(logdir); err != nil {
		return err
	}
	return fn()
}

// rewrite inserts the emitting statement before the assertion.
func rewrite(spec taxonomy.AssertionSpec, src []byte, opts Options) ([]byte, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, spec.File, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", spec.File, err)
	}

	site, ok := scrape.LocateSite(fset, f, spec.Test, spec.Line)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrAssertionNotFound, spec.Location(), spec.Test)
	}

	fmtName := fmtImportName(f)
	emit, err := emitStmt(fset, opts, site.Operands, fmtName)
	if err != nil {
		return nil, err
	}

	applied := false
	astutil.Apply(f, func(c *astutil.Cursor) bool {
		if applied || c.Node() != site.Stmt {
			return true
		}
		applied = true
		ifStmt, isIf := site.Stmt.(*ast.IfStmt)
		switch {
		case isIf && ifStmt.Init != nil:
			// Variables declared in the init clause must be in
			// scope for the emitter: hoist init into a block.
			initStmt := ifStmt.Init
			ifStmt.Init = nil
			c.Replace(&ast.BlockStmt{List: []ast.Stmt{initStmt, emit, ifStmt}})
		case c.Index() >= 0:
			c.InsertBefore(emit)
		default:
			// Not in a statement list (e.g. "else if"): wrap.
			c.Replace(&ast.BlockStmt{List: []ast.Stmt{emit, site.Stmt}})
		}
		return false
	}, nil)
	if !applied {
		return nil, fmt.Errorf("%w: %s", ErrAssertionNotFound, spec.Location())
	}

	for _, path := range opts.Imports {
		name := ""
		if path == "fmt" {
			if fmtName != fmtAlias {
				// Already imported under a usable name.
				if fmtName != "fmt" || hasImport(f, "", "fmt") {
					continue
				}
			} else {
				name = fmtAlias
			}
		}
		if !astutil.AddNamedImport(fset, f, name, path) {
			continue
		}
		if !usesImport(f, name, path) {
			astutil.DeleteNamedImport(fset, f, name, path)
		}
	}

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, f); err != nil {
		return nil, fmt.Errorf("formatting instrumented %s: %w", spec.File, err)
	}
	return buf.Bytes(), nil
}

// emitStmt builds the emitting statement from the emitter template.
// References to fmt in the template, not in the operands, are renamed
// to fmtName.
func emitStmt(fset *token.FileSet, opts Options, operands [2]ast.Expr, fmtName string) (ast.Stmt, error) {
	emitter := opts.Emitter
	if fmtName != "fmt" {
		emitter = fmtSelector.ReplaceAllString(emitter, "${1}"+fmtName+".")
	}
	src := fmt.Sprintf(emitter, opts.Tag,
		types.ExprString(operands[0]), types.ExprString(operands[1]))
	expr, err := parser.ParseExprFrom(fset, "", src, 0)
	if err != nil {
		return nil, fmt.Errorf("parsing emitter %q: %w", src, err)
	}
	return &ast.ExprStmt{X: expr}, nil
}

// fmtImportName returns the name the emitter must use for package
// fmt in f. That is the alias of a named import, "fmt" for a plain
// import or none at all (blank and dot imports do not count), and
// fmtAlias when a declaration in the file shadows the chosen name.
func fmtImportName(f *ast.File) string {
	name := "fmt"
	for _, imp := range f.Imports {
		if importPath(imp) != "fmt" || imp.Name == nil {
			continue
		}
		if n := imp.Name.Name; n != "_" && n != "." && !hasImport(f, "", "fmt") {
			name = n
		}
	}
	if declares(f, name) {
		return fmtAlias
	}
	return name
}

// declares reports whether an identifier called name resolves to a
// declaration in f rather than to an import.
func declares(f *ast.File, name string) bool {
	found := false
	ast.Inspect(f, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok && id.Name == name && id.Obj != nil {
			found = true
		}
		return !found
	})
	return found
}

func hasImport(f *ast.File, name, path string) bool {
	for _, imp := range f.Imports {
		if importPath(imp) != path {
			continue
		}
		if (imp.Name == nil && name == "") || (imp.Name != nil && imp.Name.Name == name) {
			return true
		}
	}
	return false
}

// usesImport reports whether a selector in f refers to the import of
// path under name. An empty name means the package's own name, taken
// as the last path element.
func usesImport(f *ast.File, name, path string) bool {
	if name == "" {
		name = path[strings.LastIndex(path, "/")+1:]
	}
	used := false
	ast.Inspect(f, func(n ast.Node) bool {
		if sel, ok := n.(*ast.SelectorExpr); ok {
			if id, ok := sel.X.(*ast.Ident); ok && id.Name == name && id.Obj == nil {
				used = true
			}
		}
		return !used
	})
	return used
}

func importPath(imp *ast.ImportSpec) string {
	p, err := strconv.Unquote(imp.Path.Value)
	if err != nil {
		return ""
	}
	return p
}

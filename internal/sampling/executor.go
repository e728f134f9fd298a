package sampling

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/unbound-force/boundfit/internal/taxonomy"
)

// Executor prepares an instrumented test for repeated execution.
type Executor interface {
	// Prepare is called once per spec, after the test file has been
	// instrumented and before the first batch.
	Prepare(ctx context.Context, spec taxonomy.AssertionSpec, logdir string) (Invoker, error)
}

// Invoker runs one invocation of a prepared test. Implementations
// must be safe for concurrent use. i is the zero-based invocation
// index within the spec.
type Invoker interface {
	Invoke(ctx context.Context, i int) ([]byte, error)
}

// GoTestExecutor compiles the test package once with "go test -c"
// and runs the resulting binary for every invocation.
type GoTestExecutor struct {
	// GoBin is the go command. Defaults to "go".
	GoBin string

	// Toolchain is exported as GOTOOLCHAIN when non-empty.
	Toolchain string

	// Tags are passed to the build with -tags.
	Tags []string
}

// Prepare builds the test binary into logdir.
func (x GoTestExecutor) Prepare(ctx context.Context, spec taxonomy.AssertionSpec, logdir string) (Invoker, error) {
	if err := os.MkdirAll(logdir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory %s: %w", logdir, err)
	}
	bin, err := filepath.Abs(filepath.Join(logdir, spec.Package+".test"))
	if err != nil {
		return nil, fmt.Errorf("resolving test binary path: %w", err)
	}

	goBin := x.GoBin
	if goBin == "" {
		goBin = "go"
	}
	args := []string{"test", "-c", "-o", bin}
	if len(x.Tags) > 0 {
		args = append(args, "-tags", strings.Join(x.Tags, ","))
	}
	args = append(args, ".")

	env := os.Environ()
	if x.Toolchain != "" {
		env = append(env, "GOTOOLCHAIN="+x.Toolchain)
	}

	cmd := exec.CommandContext(ctx, goBin, args...)
	cmd.Dir = spec.Dir
	cmd.Env = env
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("go test -c failed: %s\n%s", err, string(output))
	}

	return &binaryInvoker{
		bin:    bin,
		dir:    spec.Dir,
		run:    "^" + regexp.QuoteMeta(spec.Test) + "$",
		logdir: logdir,
		env:    env,
	}, nil
}

type binaryInvoker struct {
	bin    string
	dir    string
	run    string
	logdir string
	env    []string
}

// Invoke runs the test binary with a private temp directory so
// concurrent invocations share no scratch state.
func (b *binaryInvoker) Invoke(ctx context.Context, i int) ([]byte, error) {
	tmp := filepath.Join(b.logdir, fmt.Sprintf("run-%04d", i))
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return nil, fmt.Errorf("creating invocation dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	cmd := exec.CommandContext(ctx, b.bin, "-test.run", b.run, "-test.count=1", "-test.v")
	cmd.Dir = b.dir
	cmd.Env = append(append([]string(nil), b.env...), "TMPDIR="+tmp, "GOTMPDIR="+tmp)
	cmd.WaitDelay = time.Second
	return cmd.CombinedOutput()
}

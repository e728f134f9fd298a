package sampling

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/unbound-force/boundfit/internal/taxonomy"
)

func TestGoTestExecutor_BuildsAndRuns(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a test binary")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}

	dir := t.TempDir()
	files := map[string]string{
		"go.mod": "module example.com/timing\n\ngo 1.21\n",
		"timing_test.go": `package timing

import (
	"fmt"
	"os"
	"testing"
)

func TestTiming(t *testing.T) {
	fmt.Println("log>>>", 42, 50)
	if _, err := os.CreateTemp("", "scratch"); err != nil {
		t.Fatal(err)
	}
}

func TestOther(t *testing.T) {
	fmt.Println("log>>>", 1, 2)
}
`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	spec := taxonomy.AssertionSpec{Dir: dir, Package: "timing", Test: "TestTiming", Direction: taxonomy.DirectionMax}
	inv, err := GoTestExecutor{}.Prepare(context.Background(), spec, filepath.Join(t.TempDir(), "logs"))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	out, err := inv.Invoke(context.Background(), 0)
	if err != nil {
		t.Fatalf("Invoke: %v\n%s", err, out)
	}
	rec := ParseOutput(out, "log>>>", spec.Direction, false)
	if rec.ParseError || rec.Values[0] != 42 {
		t.Errorf("record = %+v, want only TestTiming's values\n%s", rec, out)
	}
}

func TestGoTestExecutor_BuildFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("invokes the go command")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/broken\n\ngo 1.21\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken_test.go"), []byte("package broken\n\nfunc TestX(t *testing.T) {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	spec := taxonomy.AssertionSpec{Dir: dir, Package: "broken", Test: "TestX"}
	if _, err := (GoTestExecutor{}).Prepare(context.Background(), spec, t.TempDir()); err == nil {
		t.Error("expected a build error")
	}
}

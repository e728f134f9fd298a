package loader_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/unbound-force/boundfit/internal/loader"
)

func TestTestFiles_OwnPackage(t *testing.T) {
	// The loader package itself has exactly this test file.
	files, err := loader.TestFiles(".", ".")
	if err != nil {
		t.Fatalf("TestFiles() failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 test file, got %d: %+v", len(files), files)
	}
	f := files[0]
	if filepath.Base(f.Path) != "loader_test.go" {
		t.Errorf("expected loader_test.go, got %q", f.Path)
	}
	if !filepath.IsAbs(f.Path) {
		t.Errorf("expected absolute path, got %q", f.Path)
	}
	if f.PkgPath != "github.com/unbound-force/boundfit/internal/loader" {
		t.Errorf("expected pkg path 'github.com/unbound-force/boundfit/internal/loader', got %q",
			f.PkgPath)
	}
}

func TestTestFiles_Testdata(t *testing.T) {
	files, err := loader.TestFiles("../scrape/testdata/src/bounds", ".")
	if err != nil {
		t.Fatalf("TestFiles() failed: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("expected test files in testdata package")
	}
	for _, f := range files {
		if !strings.HasSuffix(f.Path, "_test.go") {
			t.Errorf("non-test file returned: %s", f.Path)
		}
	}
}

func TestTestFiles_InvalidPattern(t *testing.T) {
	_, err := loader.TestFiles(".", "github.com/nonexistent/package/that/does/not/exist")
	if err == nil {
		t.Error("expected error for nonexistent package")
	}
}

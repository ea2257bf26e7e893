package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func realPath(t *testing.T, path string) string {
	t.Helper()
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatalf("realpath: %v", err)
	}
	return real
}

func TestFindFromNestedDir(t *testing.T) {
	root := realPath(t, t.TempDir())
	if err := os.WriteFile(filepath.Join(root, "_quarto.yml"), []byte("project:\n  type: website\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	nested := filepath.Join(root, "posts", "2024", "intro")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir nested: %v", err)
	}

	found, err := Find(nested, "_quarto.yml")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found != root {
		t.Errorf("Find = %q, want %q", found, root)
	}
}

func TestFindNotFound(t *testing.T) {
	dir := realPath(t, t.TempDir())

	found, err := Find(dir, "no-such-project-marker.yml")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found != "" {
		t.Errorf("Find = %q, want empty", found)
	}

	_, err = FindOrError(dir, "no-such-project-marker.yml")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("FindOrError err = %v, want ErrNotFound", err)
	}
}

func TestIsProject(t *testing.T) {
	root := t.TempDir()
	if ok, _ := IsProject(root, "_quarto.yml"); ok {
		t.Error("IsProject = true before project file exists")
	}
	if err := os.WriteFile(filepath.Join(root, "_quarto.yml"), nil, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ok, _ := IsProject(root, "_quarto.yml"); !ok {
		t.Error("IsProject = false with project file present")
	}
}

// link_test.go tests workspace go.mod generation.
package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestFindProjectRoot verifies checkout detection from inside the repo.
func TestFindProjectRoot(t *testing.T) {
	root, err := FindProjectRoot()
	if err != nil {
		t.Logf("FindProjectRoot() error: %v (expected if not in project tree)", err)
		return
	}
	if _, err := os.Stat(filepath.Join(root, runtimeMarker)); err != nil {
		t.Errorf("root %s has no %s", root, runtimeMarker)
	}
}

func TestPackagePath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "go.mod"), "module example.com/app\n\ngo 1.24\n")
	if err := os.MkdirAll(filepath.Join(dir, "cmd", "tool"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		dir  string
		want string
	}{
		{dir, "example.com/app"},
		{filepath.Join(dir, "cmd", "tool"), "example.com/app/cmd/tool"},
	}
	for _, tt := range tests {
		got, err := PackagePath(tt.dir)
		if err != nil {
			t.Fatalf("PackagePath(%s) error: %v", tt.dir, err)
		}
		if got != tt.want {
			t.Errorf("PackagePath(%s) = %q, want %q", tt.dir, got, tt.want)
		}
	}
}

func TestPackagePath_MissingModule(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "go.mod"), "go 1.24\n")

	if _, err := PackagePath(dir); err == nil {
		t.Error("expected an error for a go.mod without module directive")
	}
}

// TestModFileOverlay verifies the generated workspace go.mod.
func TestModFileOverlay(t *testing.T) {
	user := t.TempDir()
	writeFile(t, filepath.Join(user, "go.mod"), `module example.com/app

go 1.24

require example.com/lib v1.2.0

replace example.com/lib => ../lib

replace example.com/pinned v1.0.0 => example.com/fork v1.0.1
`)
	tempDir := t.TempDir()

	path, err := ModFileOverlay(tempDir, filepath.Join(user, "cmd"))
	if err != nil {
		t.Fatalf("ModFileOverlay() error: %v", err)
	}
	if path != filepath.Join(tempDir, "go.mod") {
		t.Errorf("path = %s, want go.mod in workspace", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	f, err := modfile.Parse(path, data, nil)
	if err != nil {
		t.Fatalf("generated go.mod does not parse: %v\n%s", err, data)
	}

	if f.Module.Mod.Path != WorkspaceModule {
		t.Errorf("module = %s, want %s", f.Module.Mod.Path, WorkspaceModule)
	}
	if f.Go == nil || f.Go.Version != GoVersion {
		t.Errorf("go directive missing or wrong:\n%s", data)
	}

	replaces := make(map[string]module.Version)
	for _, r := range f.Replace {
		replaces[r.Old.Path] = r.New
	}

	if got := replaces["example.com/app"].Path; got != user {
		t.Errorf("user module replaced with %q, want %q", got, user)
	}
	if got := replaces["example.com/lib"].Path; got != filepath.Join(filepath.Dir(user), "lib") {
		t.Errorf("relative replace not made absolute: %q", got)
	}
	if got := replaces["example.com/pinned"]; got.Path != "example.com/fork" || got.Version != "v1.0.1" {
		t.Errorf("versioned replace = %+v", got)
	}
	if _, err := FindProjectRoot(); err == nil {
		if _, ok := replaces[Module]; !ok {
			t.Errorf("runtime module not replaced with the checkout:\n%s", data)
		}
	}

	t.Logf("Generated go.mod:\n%s", data)
}

func TestExtractReplaceDirectives(t *testing.T) {
	data := []byte(`module example.com/app

replace example.com/a => ./a

replace example.com/b => /abs/b

replace example.com/c v1.0.0 => example.com/c-fork v1.2.0
`)
	f, err := modfile.Parse("go.mod", data, nil)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()

	got := make(map[string]module.Version)
	for _, r := range ExtractReplaceDirectives(f, dir) {
		got[r.Old.Path] = r.New
	}

	want := map[string]module.Version{
		"example.com/a": {Path: filepath.Join(dir, "a")},
		"example.com/b": {Path: "/abs/b"},
		"example.com/c": {Path: "example.com/c-fork", Version: "v1.2.0"},
	}
	for path, w := range want {
		if got[path] != w {
			t.Errorf("replace %s => %+v, want %+v", path, got[path], w)
		}
	}

	// The parsed file itself is not modified.
	if f.Replace[0].New.Path != "./a" {
		t.Errorf("input modified: %s", f.Replace[0].New.Path)
	}
}

// TestModFileOverlay_InvalidDir verifies error handling for a missing workspace.
func TestModFileOverlay_InvalidDir(t *testing.T) {
	_, err := ModFileOverlay(filepath.Join(t.TempDir(), "missing", "dir"), "")
	if err == nil {
		t.Error("expected an error writing into a missing directory")
	}
}

func TestIsLocalPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"./lib", true},
		{"../lib", true},
		{"/abs/lib", true},
		{`C:\lib`, true},
		{"sub/module", true},
		{"example.com/lib", false},
		{"lib", false},
	}
	for _, tt := range tests {
		if got := isLocalPath(tt.path); got != tt.want {
			t.Errorf("isLocalPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func BenchmarkFindProjectRoot(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = FindProjectRoot()
	}
}

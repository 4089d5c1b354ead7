// Package main - 'swtrace run' command tests.
package main

import (
	"bytes"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestParseRunArgs_FileWithArgs(t *testing.T) {
	config, programArgs, err := parseRunArgs([]string{"main.go", "arg1", "--flag=value", "x.go"})
	if err != nil {
		t.Fatalf("parseRunArgs() error: %v", err)
	}

	if !slices.Equal(config.sourceFiles, []string{"main.go"}) {
		t.Errorf("sourceFiles = %v", config.sourceFiles)
	}
	// Everything after the first non-.go argument belongs to the program.
	want := []string{"arg1", "--flag=value", "x.go"}
	if !slices.Equal(programArgs, want) {
		t.Errorf("programArgs = %q, want %q", programArgs, want)
	}
}

func TestParseRunArgs_MultipleFiles(t *testing.T) {
	config, programArgs, err := parseRunArgs([]string{"main.go", "helper.go"})
	if err != nil {
		t.Fatalf("parseRunArgs() error: %v", err)
	}
	if len(config.sourceFiles) != 2 {
		t.Errorf("Expected 2 source files, got %d", len(config.sourceFiles))
	}
	if len(programArgs) != 0 {
		t.Errorf("Expected no program args, got %v", programArgs)
	}
}

func TestParseRunArgs_Flags(t *testing.T) {
	config, programArgs, err := parseRunArgs([]string{
		"--quiet", "-tags", "dev", "--jobs=2", "main.go", "-v",
	})
	if err != nil {
		t.Fatalf("parseRunArgs() error: %v", err)
	}

	if !config.tool.quiet || config.tool.jobs != 2 {
		t.Errorf("tool flags = %+v", config.tool)
	}
	if config.tool.verbose {
		t.Error("-v after the sources must go to the program")
	}
	if !slices.Equal(config.buildFlags, []string{"-tags", "dev"}) {
		t.Errorf("buildFlags = %q", config.buildFlags)
	}
	if !slices.Equal(programArgs, []string{"-v"}) {
		t.Errorf("programArgs = %q", programArgs)
	}
}

// TestParseRunArgs_Directory tests a package directory as the source.
func TestParseRunArgs_Directory(t *testing.T) {
	dir := t.TempDir()
	config, programArgs, err := parseRunArgs([]string{"--quiet", dir, "arg1", "-v"})
	if err != nil {
		t.Fatalf("parseRunArgs() error: %v", err)
	}

	if !slices.Equal(config.sourceFiles, []string{dir}) {
		t.Errorf("sourceFiles = %v, want [%s]", config.sourceFiles, dir)
	}
	if !slices.Equal(programArgs, []string{"arg1", "-v"}) {
		t.Errorf("programArgs = %q", programArgs)
	}

	missing := filepath.Join(dir, "missing")
	if _, _, err := parseRunArgs([]string{missing}); err == nil {
		t.Errorf("parseRunArgs(%q) succeeded, want error", missing)
	}
}

func TestParseRunArgs_NoFiles(t *testing.T) {
	for _, args := range [][]string{nil, {"--quiet"}, {"notgo.txt"}} {
		if _, _, err := parseRunArgs(args); err == nil {
			t.Errorf("parseRunArgs(%q) succeeded, want error", args)
		}
	}
}

func TestExecuteBinary_ExitCodes(t *testing.T) {
	truePath, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true not available")
	}
	falsePath, err := exec.LookPath("false")
	if err != nil {
		t.Skip("false not available")
	}

	if code := executeBinary(truePath, nil, &bytes.Buffer{}); code != 0 {
		t.Errorf("true exited %d", code)
	}
	if code := executeBinary(falsePath, nil, &bytes.Buffer{}); code != 1 {
		t.Errorf("false exited %d", code)
	}
}

func TestExecuteBinary_StartFailure(t *testing.T) {
	var stderr bytes.Buffer
	code := executeBinary(filepath.Join(t.TempDir(), "missing"), nil, &stderr)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "Error executing binary") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestExitError(t *testing.T) {
	err := &exitError{code: 3}
	if err.Error() != "exit status 3" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func BenchmarkParseRunArgs(b *testing.B) {
	args := []string{"main.go", "helper.go", "arg1", "arg2"}
	for i := 0; i < b.N; i++ {
		_, _, _ = parseRunArgs(args)
	}
}

// Package runtime provides runtime library linking for instrumented code.
//
// Instrumented sources import the software-trace runtime. This package
// writes the go.mod of the temporary build workspace so that import
// resolves, either to a development checkout of swtrace or to the published
// module, while keeping the user's own module and replace directives usable.
package runtime

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

const (
	// Module is the module path of the software-trace runtime.
	Module = "github.com/kolkov/swtrace"

	// WorkspaceModule is the module path of the temporary build workspace.
	WorkspaceModule = "instrumented"

	// GoVersion is the go directive of the workspace go.mod.
	GoVersion = "1.24"
)

// runtimeMarker identifies a swtrace checkout. Any go.mod would also
// match the user's project.
var runtimeMarker = filepath.Join("internal", "swt", "api")

// ErrNoGoMod is returned when no go.mod encloses a directory.
var ErrNoGoMod = errors.New("no go.mod found")

// FindProjectRoot finds the root directory of a swtrace checkout.
//
// This walks up from the current working directory, then looks next to the
// running executable. An error means the published module must be used.
func FindProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if root, ok := walkUp(cwd, runtimeMarker); ok {
		return root, nil
	}

	// The executable might be in the project root or a bin directory.
	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		for _, candidate := range []string{exeDir, filepath.Dir(exeDir), filepath.Dir(filepath.Dir(exeDir))} {
			if _, err := os.Stat(filepath.Join(candidate, runtimeMarker)); err == nil {
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("could not find swtrace project root")
}

// walkUp returns the first directory at or above dir that contains name.
func walkUp(dir, name string) (string, bool) {
	for {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// FindGoMod returns the go.mod enclosing startDir.
func FindGoMod(startDir string) (string, error) {
	dir, ok := walkUp(startDir, "go.mod")
	if !ok {
		return "", fmt.Errorf("%s: %w", startDir, ErrNoGoMod)
	}
	return filepath.Join(dir, "go.mod"), nil
}

// PackagePath returns the import path of the package in dir, derived from
// the enclosing go.mod. Outside a module it returns
// "command-line-arguments", as the go command does for files named on the
// command line.
//
// The result is hashed into every recorded location, so it must not
// depend on where the workspace is.
func PackagePath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	goMod, err := FindGoMod(abs)
	if errors.Is(err, ErrNoGoMod) {
		return "command-line-arguments", nil
	}
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(goMod)
	if err != nil {
		return "", err
	}
	modPath := modfile.ModulePath(data)
	if modPath == "" {
		return "", fmt.Errorf("%s: missing module directive", goMod)
	}
	rel, err := filepath.Rel(filepath.Dir(goMod), abs)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return modPath, nil
	}
	return modPath + "/" + filepath.ToSlash(rel), nil
}

// ModFileOverlay writes the go.mod of a build workspace and returns its path.
//
// The file:
//   - declares module WorkspaceModule
//   - replaces Module with the development checkout, when one is found
//   - requires and replaces the user's module with its source directory,
//     so instrumented files can still import sibling packages
//   - keeps the user's replace directives, with relative paths made absolute
//
// Parameters:
//   - tempDir: Workspace root; go.mod is written there
//   - sourceDir: Directory of the sources being instrumented ("" for none)
//
// Dependencies of the user's code are resolved by "go mod tidy" afterwards.
func ModFileOverlay(tempDir, sourceDir string) (string, error) {
	f := new(modfile.File)
	if err := f.AddModuleStmt(WorkspaceModule); err != nil {
		return "", err
	}
	if err := f.AddGoStmt(GoVersion); err != nil {
		return "", err
	}

	if root, err := FindProjectRoot(); err == nil {
		if err := f.AddRequire(Module, "v0.0.0"); err != nil {
			return "", err
		}
		if err := f.AddReplace(Module, "", root, ""); err != nil {
			return "", err
		}
	}

	if sourceDir != "" {
		if err := addUserModule(f, sourceDir); err != nil {
			return "", err
		}
	}

	f.Cleanup()
	data, err := f.Format()
	if err != nil {
		return "", fmt.Errorf("failed to format go.mod: %w", err)
	}

	goModPath := filepath.Join(tempDir, "go.mod")
	if err := os.WriteFile(goModPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to create go.mod overlay: %w", err)
	}
	return goModPath, nil
}

// addUserModule copies the user's module and its replace directives into f.
func addUserModule(f *modfile.File, sourceDir string) error {
	goModPath, err := FindGoMod(sourceDir)
	if errors.Is(err, ErrNoGoMod) {
		return nil
	}
	if err != nil {
		return err
	}
	data, err := os.ReadFile(goModPath)
	if err != nil {
		return err
	}
	user, err := modfile.Parse(goModPath, data, nil)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", goModPath, err)
	}

	goModDir := filepath.Dir(goModPath)
	if user.Module != nil && user.Module.Mod.Path != Module {
		if err := f.AddRequire(user.Module.Mod.Path, "v0.0.0"); err != nil {
			return err
		}
		if err := f.AddReplace(user.Module.Mod.Path, "", goModDir, ""); err != nil {
			return err
		}
	}

	for _, rep := range ExtractReplaceDirectives(user, goModDir) {
		if rep.Old.Path == Module && hasReplace(f, Module) {
			continue
		}
		if err := f.AddReplace(rep.Old.Path, rep.Old.Version, rep.New.Path, rep.New.Version); err != nil {
			return err
		}
	}
	return nil
}

func hasReplace(f *modfile.File, path string) bool {
	for _, r := range f.Replace {
		if r.Old.Path == path {
			return true
		}
	}
	return false
}

// ExtractReplaceDirectives returns the replace directives of a parsed
// go.mod, converting relative local paths to absolute paths (the workspace
// has a different working directory).
func ExtractReplaceDirectives(f *modfile.File, goModDir string) []*modfile.Replace {
	out := make([]*modfile.Replace, 0, len(f.Replace))
	for _, rep := range f.Replace {
		r := *rep
		if r.New.Version == "" && isLocalPath(r.New.Path) && !filepath.IsAbs(r.New.Path) {
			if abs, err := filepath.Abs(filepath.Join(goModDir, r.New.Path)); err == nil {
				r.New.Path = abs
			}
		}
		out = append(out, &r)
	}
	return out
}

// isLocalPath checks if a path is a local filesystem path (not a module path).
//
// Local paths start with ./, ../, /, or a drive letter on Windows.
func isLocalPath(path string) bool {
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") {
		return true
	}
	if filepath.IsAbs(path) {
		return true
	}
	// Windows drive letter check (e.g., C:\)
	if len(path) >= 2 && path[1] == ':' {
		return true
	}
	// Relative paths like "subdir/module" have separators but no dots.
	return strings.ContainsAny(path, `/\`) && !strings.Contains(path, ".")
}

// sources.go instruments source files in parallel.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"fortio.org/safecast"
	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/kolkov/swtrace/cmd/swtrace/instrument"
	"github.com/kolkov/swtrace/cmd/swtrace/runtime"
)

// fileResult is the outcome for one source file.
type fileResult struct {
	src      string
	out      string
	stats    instrument.InstrumentStats
	skipped  string // reason the instrumenter left the file alone
	excluded bool   // matched an exclude pattern
}

// sourceFile is a file read and numbered before instrumentation.
type sourceFile struct {
	path    string
	src     []byte
	pkgPath string
	defBase uint32
}

// instrumentSources instruments goFiles and writes them into outDir under
// their base names.
//
// Definition indices must not depend on scheduling, so every file's
// definition base is computed up front: files are sorted, grouped by
// directory (one package each), and numbered consecutively. The files are
// then instrumented in parallel.
func instrumentSources(ctx context.Context, s *settings, goFiles []string, outDir string) ([]fileResult, error) {
	if len(goFiles) == 0 {
		return nil, fmt.Errorf("no Go source files found")
	}
	files, err := prepareSources(goFiles)
	if err != nil {
		return nil, err
	}

	opts := instrument.Options{
		RuntimeImport:     s.cfg.RuntimeImport,
		InvalidateSignals: s.cfg.InvalidateSignals,
		Report:            s.cfg.Report,
	}

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.jobs(len(files)))

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := fileResult{
				src: f.path,
				out: filepath.Join(outDir, filepath.Base(f.path)),
			}

			code := f.src
			if s.cfg.Excluded(f.path) {
				res.excluded = true
			} else {
				o := opts
				o.PackagePath = f.pkgPath
				o.DefBase = f.defBase
				r, err := instrument.InstrumentFile(f.path, f.src, o)
				if err != nil {
					return fmt.Errorf("failed to instrument %s: %w", f.path, err)
				}
				code = []byte(r.Code)
				res.stats = r.Stats
				res.skipped = r.Skipped
			}

			if err := os.WriteFile(res.out, code, 0o644); err != nil {
				return fmt.Errorf("failed to write instrumented file %s: %w", res.out, err)
			}
			s.logger.Debug("instrumented file",
				"src", f.path,
				"out", res.out,
				"package", f.pkgPath,
				"def_base", f.defBase,
				"blocks", res.stats.Blocks,
				"skipped", res.skipped,
				"excluded", res.excluded)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// prepareSources reads the files and assigns package paths and definition
// bases. Files are flattened into one directory, so base names must be
// unique.
func prepareSources(goFiles []string) ([]sourceFile, error) {
	paths := slices.Clone(goFiles)
	slices.Sort(paths)

	seen := make(map[string]string, len(paths))
	pkgPaths := make(map[string]string)
	nextDef := make(map[string]uint64)

	files := make([]sourceFile, 0, len(paths))
	for _, p := range paths {
		base := filepath.Base(p)
		if prev, ok := seen[base]; ok {
			return nil, fmt.Errorf("duplicate file name %s (%s and %s)", base, prev, p)
		}
		seen[base] = p

		src, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", p, err)
		}

		dir := filepath.Dir(p)
		pkgPath, ok := pkgPaths[dir]
		if !ok {
			pkgPath, err = runtime.PackagePath(dir)
			if err != nil {
				return nil, fmt.Errorf("cannot determine the package of %s: %w", p, err)
			}
			pkgPaths[dir] = pkgPath
		}

		n, err := instrument.CountDefinitions(p, src)
		if err != nil {
			return nil, err
		}
		base32, err := safecast.Conv[uint32](nextDef[dir])
		if err != nil {
			return nil, fmt.Errorf("%s: too many definitions in one package: %w", p, err)
		}
		nextDef[dir] += uint64(n)

		files = append(files, sourceFile{path: p, src: src, pkgPath: pkgPath, defBase: base32})
	}
	return files, nil
}

// collectGoFiles finds all .go files from the given sources.
//
// Sources can be:
//   - .go files directly
//   - directories (scans for .go files, excluding tests)
//   - "." for current directory
func collectGoFiles(sources []string, workDir string) ([]string, error) {
	var goFiles []string

	for _, src := range sources {
		srcPath := src
		if !filepath.IsAbs(srcPath) {
			srcPath = filepath.Join(workDir, src)
		}

		info, err := os.Stat(srcPath)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", src, err)
		}

		if !info.IsDir() {
			if strings.HasSuffix(srcPath, ".go") {
				goFiles = append(goFiles, srcPath)
			}
			continue
		}

		entries, err := os.ReadDir(srcPath)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s: %w", srcPath, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
				continue
			}
			goFiles = append(goFiles, filepath.Join(srcPath, name))
		}
	}

	return goFiles, nil
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	skipColor = color.New(color.FgYellow)
	dimColor  = color.New(color.Faint)
)

// printSummary writes what was instrumented. Per-file lines are printed
// only when verbose.
func printSummary(w io.Writer, results []fileResult, verbose bool) {
	var total instrument.InstrumentStats
	files, untouched := 0, 0
	for _, r := range results {
		switch {
		case r.excluded:
			untouched++
			if verbose {
				skipColor.Fprintf(w, "Excluded:     %s\n", r.src)
			}
		case r.skipped != "":
			untouched++
			if verbose {
				skipColor.Fprintf(w, "Skipped:      %s (%s)\n", r.src, r.skipped)
			}
		default:
			files++
			total.Definitions += r.stats.Definitions
			total.Blocks += r.stats.Blocks
			total.SkippedDefinitions += r.stats.SkippedDefinitions
			total.SkippedBlocks += r.stats.SkippedBlocks
			if verbose {
				okColor.Fprintf(w, "Instrumented: ")
				fmt.Fprintf(w, "%s -> %s\n", r.src, r.out)
				dimColor.Fprintf(w, "  - %s\n", r.stats)
			}
		}
	}

	okColor.Fprintf(w, "swtrace: ")
	fmt.Fprintf(w, "%d files, %d definitions, %d blocks instrumented", files, total.Definitions, total.Blocks)
	if untouched > 0 || total.SkippedDefinitions > 0 {
		skipColor.Fprintf(w, " (%d files untouched, %d definitions opted out)", untouched, total.SkippedDefinitions)
	}
	fmt.Fprintln(w)
}

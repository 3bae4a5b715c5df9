package steps

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/systemstart/step-runner/pkg/api"
)

const defaultInclude = "**/*"

// checkoutStep populates the workspace from a source tree by filtered
// copy. It stands in for source-control checkout: the engine only cares
// that files appear in the workspace.
type checkoutStep struct {
	name string
	src  string
	cfg  *api.CheckoutConfig
}

func newCheckoutStep(name string, cfg *api.CheckoutConfig, baseDir string) Step {
	src := cfg.Path
	if src == "" {
		src = "."
	}
	if !filepath.IsAbs(src) {
		src = filepath.Join(baseDir, src)
	}
	return &checkoutStep{name: name, src: src, cfg: cfg}
}

func (s *checkoutStep) Name() string { return s.name }

func (s *checkoutStep) Run(ctx context.Context, env *EnvContext) (*Result, error) {
	info, err := os.Stat(s.src)
	if err != nil {
		return nil, fmt.Errorf("checking source %s: %w", s.src, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", s.src)
	}

	files, err := filterFiles(os.DirFS(s.src), s.cfg.Include, s.cfg.Exclude)
	if err != nil {
		return nil, fmt.Errorf("filtering files: %w", err)
	}

	slog.Info("checkout copying files", "step", s.name, "source", s.src, "count", len(files))

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("checkout interrupted: %w", err)
		}
		if err := copyFile(s.src, env.Dir(), file); err != nil {
			return nil, fmt.Errorf("copying %s: %w", file, err)
		}
	}

	return &Result{Output: fmt.Appendf(nil, "checked out %d files from %s\n", len(files), s.src)}, nil
}

func copyFile(srcRoot, dstRoot, rel string) error {
	srcPath := filepath.Join(srcRoot, rel)

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("reading: %w", err)
	}

	info, err := os.Stat(srcPath)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	target := filepath.Join(dstRoot, rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(target, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing: %w", err)
	}
	return nil
}

func globFS(fsys fs.FS, patterns []string) ([]string, error) {
	var result []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		result = append(result, matches...)
	}
	slices.Sort(result)
	result = slices.Compact(result)
	return result, nil
}

func filterFiles(fsys fs.FS, include, exclude []string) ([]string, error) {
	if len(include) == 0 {
		include = []string{defaultInclude}
	}

	included, err := globFS(fsys, include)
	if err != nil {
		return nil, fmt.Errorf("include filter: %w", err)
	}

	excluded, err := globFS(fsys, exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude filter: %w", err)
	}

	var result []string
	for _, f := range included {
		info, err := fs.Stat(fsys, f)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", f, err)
		}
		if info.IsDir() {
			continue
		}
		if slices.Contains(excluded, f) {
			continue
		}
		result = append(result, f)
	}
	return result, nil
}

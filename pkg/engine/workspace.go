package engine

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// allocateWorkspace creates a fresh directory exclusively owned by one
// run. The returned cleanup removes it unless KeepWorkspace is set.
func (r *Runner) allocateWorkspace(name string) (string, func(), error) {
	root := r.WorkspaceRoot
	if root != "" {
		if err := os.MkdirAll(root, 0o750); err != nil {
			return "", nil, fmt.Errorf("creating workspace root: %w", err)
		}
	}

	dir, err := os.MkdirTemp(root, "steprun-"+sanitizeName(name)+"-")
	if err != nil {
		return "", nil, fmt.Errorf("creating workspace: %w", err)
	}

	cleanup := func() {
		if r.KeepWorkspace {
			slog.Info("keeping workspace", "workflow", name, "dir", dir)
			return
		}
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("failed to remove workspace", "dir", dir, "error", err)
		}
	}
	return dir, cleanup, nil
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, name)
}

package api

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DiscoverWorkflows loads every workflow definition (*.yml, *.yaml) found
// directly in dir, sorted by filename. Subdirectories are not searched.
func DiscoverWorkflows(dir string) ([]*Workflow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading workflow directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yml" || ext == ".yaml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)

	workflows := make([]*Workflow, 0, len(paths))
	for _, p := range paths {
		wf, err := LoadWorkflow(p)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", p, err)
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}

package api

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadWorkflow reads a workflow YAML file, sets Dir/FilePath, and
// validates it.
func LoadWorkflow(filename string) (*Workflow, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file: %w", err)
	}

	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parsing workflow file: %w", err)
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	wf.FilePath = absPath
	wf.Dir = filepath.Dir(absPath)

	if wf.Name == "" {
		base := filepath.Base(absPath)
		wf.Name = base[:len(base)-len(filepath.Ext(base))]
	}

	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("validating workflow %s: %w", filename, err)
	}

	return &wf, nil
}

// UnmarshalYAML lets "on" be either a single trigger or a list of them.
func (t *TriggerList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*t = TriggerList{single}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*t = TriggerList(list)
		return nil
	default:
		return fmt.Errorf("on: expected scalar or sequence, got %v", value.Kind)
	}
}

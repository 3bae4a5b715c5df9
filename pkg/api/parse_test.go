package api

import (
	"os"
	"path/filepath"
	"testing"
)

func writeWorkflow(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadWorkflow(t *testing.T) {
	path := writeWorkflow(t, "ci.yaml", `
name: tests
on: [push, pull_request, workflow_dispatch]
job:
  fail-fast: false
  env:
    SUITE: tests/core
  steps:
    - name: checkout
      checkout: {path: .}
    - name: install
      run: pip install -e .
    - name: test
      run: pytest {{ .SUITE }}
`)

	wf, err := LoadWorkflow(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if wf.Name != "tests" {
		t.Errorf("expected name 'tests', got %q", wf.Name)
	}
	if len(wf.On) != 3 {
		t.Errorf("expected 3 triggers, got %v", wf.On)
	}
	if wf.Job.FailFast {
		t.Error("expected fail-fast false")
	}
	if len(wf.Job.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(wf.Job.Steps))
	}
	if wf.Job.Steps[0].Kind() != StepKindCheckout {
		t.Errorf("expected checkout step, got %q", wf.Job.Steps[0].Kind())
	}
	if wf.Job.Env["SUITE"] != "tests/core" {
		t.Errorf("expected job env SUITE set, got %v", wf.Job.Env)
	}
	if wf.Dir != filepath.Dir(path) {
		t.Errorf("expected Dir %q, got %q", filepath.Dir(path), wf.Dir)
	}
}

func TestLoadWorkflow_ScalarTrigger(t *testing.T) {
	path := writeWorkflow(t, "push.yaml", `
on: push
job:
  steps:
    - name: build
      run: make
`)

	wf, err := LoadWorkflow(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(wf.On) != 1 || wf.On[0] != TriggerPush {
		t.Errorf("expected [push], got %v", wf.On)
	}
}

func TestLoadWorkflow_NameDefaultsToFilename(t *testing.T) {
	path := writeWorkflow(t, "nightly.yml", `
on: [workflow_dispatch]
job:
  steps:
    - name: build
      run: make
`)

	wf, err := LoadWorkflow(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wf.Name != "nightly" {
		t.Errorf("expected name 'nightly', got %q", wf.Name)
	}
}

func TestLoadWorkflow_NotFound(t *testing.T) {
	if _, err := LoadWorkflow("/nonexistent/workflow.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadWorkflow_InvalidYAML(t *testing.T) {
	path := writeWorkflow(t, "broken.yaml", "on: [push\n")
	if _, err := LoadWorkflow(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadWorkflow_MappingTrigger(t *testing.T) {
	path := writeWorkflow(t, "bad.yaml", `
on:
  push: {branches: [main]}
job:
  steps:
    - name: build
      run: make
`)
	if _, err := LoadWorkflow(path); err == nil {
		t.Fatal("expected error for mapping-form triggers")
	}
}

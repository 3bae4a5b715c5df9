package steps

import (
	"maps"
	"os"
	"slices"
)

// EnvContext is the mutable environment shared by the steps of one run:
// named variables plus the workspace directory. It belongs to exactly one
// run, and only the step currently executing mutates it; the engine's
// strict sequencing makes that safe without locking.
type EnvContext struct {
	vars    map[string]string
	workDir string
}

// NewEnvContext creates a context rooted at workDir, seeded with the
// given variables.
func NewEnvContext(workDir string, seed map[string]string) *EnvContext {
	vars := make(map[string]string, len(seed))
	maps.Copy(vars, seed)
	return &EnvContext{vars: vars, workDir: workDir}
}

// Get returns the variable's value, or "" when unset.
func (c *EnvContext) Get(name string) string {
	return c.vars[name]
}

// Lookup returns the variable's value and whether it is set.
func (c *EnvContext) Lookup(name string) (string, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// Set stores a variable, visible to this and all later steps.
func (c *EnvContext) Set(name, value string) {
	c.vars[name] = value
}

// Dir returns the workspace directory.
func (c *EnvContext) Dir() string {
	return c.workDir
}

// Snapshot returns a copy of the current variables, safe to hand to
// template execution.
func (c *EnvContext) Snapshot() map[string]string {
	out := make(map[string]string, len(c.vars))
	maps.Copy(out, c.vars)
	return out
}

// Environ returns the process environment extended with the context's
// variables, in the KEY=VALUE form exec.Cmd expects. Context variables
// come last so they win over inherited ones.
func (c *EnvContext) Environ() []string {
	environ := os.Environ()
	keys := make([]string, 0, len(c.vars))
	for k := range c.vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		environ = append(environ, k+"="+c.vars[k])
	}
	return environ
}

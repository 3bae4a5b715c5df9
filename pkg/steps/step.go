package steps

import "context"

// Result holds the captured output of a finished step.
type Result struct {
	Output []byte
}

// Step is the interface all step kinds implement. A non-nil error means
// the step failed; it never aborts the engine.
type Step interface {
	Name() string
	Run(ctx context.Context, env *EnvContext) (*Result, error)
}

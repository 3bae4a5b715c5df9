package steps

import (
	"fmt"

	"github.com/systemstart/step-runner/pkg/api"
)

// New creates a Step implementation from a StepConfig. Relative checkout
// paths resolve against baseDir (the workflow file's directory).
func New(cfg api.StepConfig, baseDir string) (Step, error) {
	switch cfg.Kind() {
	case api.StepKindCheckout:
		return newCheckoutStep(cfg.Name, cfg.Checkout, baseDir), nil
	case api.StepKindFetch:
		return newFetchStep(cfg.Name, cfg.Fetch), nil
	case api.StepKindRun:
		return newRunStep(cfg)
	default:
		return nil, fmt.Errorf("unknown step kind for %q", cfg.Name)
	}
}

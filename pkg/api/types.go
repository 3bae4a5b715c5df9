package api

const (
	// Trigger event kinds a workflow may declare under "on".
	TriggerPush        = "push"
	TriggerPullRequest = "pull_request"
	TriggerManual      = "workflow_dispatch"

	// Step kinds, resolved at parse time.
	StepKindRun      = "run"
	StepKindCheckout = "checkout"
	StepKindFetch    = "fetch"

	DefaultShell = "sh"
)

// Workflow is the top-level workflow file format.
type Workflow struct {
	Name string      `yaml:"name"`
	On   TriggerList `yaml:"on"`
	Job  JobConfig   `yaml:"job"`

	// Set by the loader, not from YAML.
	Dir      string `yaml:"-"`
	FilePath string `yaml:"-"`
}

// TriggerList accepts either a single scalar or a sequence in YAML.
type TriggerList []string

// JobConfig is the single job a workflow runs.
type JobConfig struct {
	FailFast bool              `yaml:"fail-fast"`
	Env      map[string]string `yaml:"env"`
	Steps    []StepConfig      `yaml:"steps"`
}

// StepConfig defines one step. Exactly one of Run, Checkout or Fetch
// must be set; Shell, Env and Timeout apply to run steps only.
type StepConfig struct {
	Name     string            `yaml:"name"`
	Run      string            `yaml:"run,omitempty"`
	Shell    string            `yaml:"shell,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
	Timeout  string            `yaml:"timeout,omitempty"`
	Checkout *CheckoutConfig   `yaml:"checkout,omitempty"`
	Fetch    *FetchConfig      `yaml:"fetch,omitempty"`
}

// CheckoutConfig configures the checkout built-in: a filtered copy of a
// source tree into the run workspace.
type CheckoutConfig struct {
	Path    string   `yaml:"path"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// FetchConfig configures the fetch built-in: files downloaded into the
// workspace. To, when set, names the target file for each URL.
type FetchConfig struct {
	URLs []string `yaml:"urls"`
	To   []string `yaml:"to,omitempty"`
}

// Kind reports which step kind the config describes. Validate guarantees
// only one applies; built-ins take precedence so a mixed (invalid) config
// still reports deterministically.
func (s StepConfig) Kind() string {
	switch {
	case s.Checkout != nil:
		return StepKindCheckout
	case s.Fetch != nil:
		return StepKindFetch
	default:
		return StepKindRun
	}
}

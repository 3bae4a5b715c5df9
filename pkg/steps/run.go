package steps

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/joho/godotenv"
	"github.com/systemstart/step-runner/pkg/api"
)

// ExportFileVar names the environment variable pointing a run step's
// command at its variable export file. KEY=VALUE lines written there are
// merged into the context after the step, visible to all later steps.
const ExportFileVar = "STEPRUN_ENV"

type runStep struct {
	name    string
	command string
	shell   string
	env     map[string]string
	timeout time.Duration
}

func newRunStep(cfg api.StepConfig) (Step, error) {
	s := &runStep{
		name:    cfg.Name,
		command: cfg.Run,
		shell:   cfg.Shell,
		env:     cfg.Env,
	}
	if s.shell == "" {
		s.shell = api.DefaultShell
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", cfg.Timeout, err)
		}
		s.timeout = d
	}
	return s, nil
}

func (s *runStep) Name() string { return s.name }

func (s *runStep) Run(ctx context.Context, env *EnvContext) (*Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	vars := env.Snapshot()

	command, err := render(s.name, s.command, vars)
	if err != nil {
		return nil, fmt.Errorf("rendering command: %w", err)
	}

	exportFile, err := os.CreateTemp(env.Dir(), ".steprun-env-*")
	if err != nil {
		return nil, fmt.Errorf("creating export file: %w", err)
	}
	exportPath := exportFile.Name()
	if err := exportFile.Close(); err != nil {
		return nil, fmt.Errorf("closing export file: %w", err)
	}
	defer func() {
		if err := os.Remove(exportPath); err != nil {
			slog.Warn("failed to remove export file", "step", s.name, "path", exportPath, "error", err)
		}
	}()

	environ := env.Environ()
	for k, v := range s.env {
		rendered, rErr := render(s.name+".env."+k, v, vars)
		if rErr != nil {
			return nil, fmt.Errorf("rendering env %s: %w", k, rErr)
		}
		environ = append(environ, k+"="+rendered)
	}
	environ = append(environ, ExportFileVar+"="+exportPath)

	slog.Info("running command", "step", s.name, "shell", s.shell)
	slog.Debug("rendered command", "step", s.name, "command", command)

	cmd := exec.CommandContext(ctx, s.shell, "-c", command)
	cmd.Dir = env.Dir()
	cmd.Env = environ

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	runErr := cmd.Run()

	// Exported variables are harvested even when the command failed, so a
	// partially successful provisioning step still publishes what it set.
	s.harvestExports(exportPath, env)

	result := &Result{Output: output.Bytes()}

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("command interrupted: %w", ctxErr)
		}
		return result, fmt.Errorf("command failed: %w", runErr)
	}
	return result, nil
}

func (s *runStep) harvestExports(path string, env *EnvContext) {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return
	}

	exported, err := godotenv.Unmarshal(string(data))
	if err != nil {
		slog.Warn("could not parse exported variables", "step", s.name, "error", err)
		return
	}

	for k, v := range exported {
		env.Set(k, v)
	}
	if len(exported) > 0 {
		slog.Debug("harvested exported variables", "step", s.name, "count", len(exported))
	}
}

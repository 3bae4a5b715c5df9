package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/systemstart/step-runner/pkg/api"
	"github.com/systemstart/step-runner/pkg/engine"
	"github.com/systemstart/step-runner/pkg/logging"
	"github.com/systemstart/step-runner/pkg/trigger"
)

var version = "dev"

const (
	_ = iota
	exitWorkflowNotSpecified
	exitDotenvError
	exitLoadWorkflowFailed
	exitUnknownEventKind
	exitEngineFault
	exitRunFailed
)

var (
	workflowFile  string
	eventKind     string
	eventBranch   string
	eventCommit   string
	workspaceRoot string
	keepWorkspace bool
	loggingType   string
	logLevel      string
	showVersion   bool
)

func init() {
	flag.StringVar(
		&workflowFile,
		"workflow",
		"",
		"workflow YAML file to run")
	flag.StringVar(
		&eventKind,
		"event",
		api.TriggerManual,
		"event kind: push, pull_request or workflow_dispatch")
	flag.StringVar(
		&eventBranch,
		"branch",
		"",
		"event branch metadata")
	flag.StringVar(
		&eventCommit,
		"commit",
		"",
		"event commit metadata")
	flag.StringVar(
		&workspaceRoot,
		"workspace-root",
		"",
		"directory for run workspaces (default: system temp)")
	flag.BoolVar(
		&keepWorkspace,
		"keep-workspace",
		false,
		"do not remove the run workspace afterwards")
	flag.StringVar(
		&loggingType,
		"logging-type",
		"tint",
		"logging type: json, text or tint")
	flag.StringVar(
		&logLevel,
		"log-level",
		"info",
		"logging level: debug, info, warn, error")
	flag.BoolVar(
		&showVersion,
		"version",
		false,
		"print version and exit")
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	_ = logging.Initialize(loggingType, logLevel)

	includeEnv()

	if workflowFile == "" {
		slog.Error("-workflow not set")
		os.Exit(exitWorkflowNotSpecified)
	}

	wf, err := api.LoadWorkflow(workflowFile)
	if err != nil {
		slog.Error("failed to load workflow", "filename", workflowFile, "error", err)
		os.Exit(exitLoadWorkflowFailed)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &engine.Runner{
		WorkspaceRoot: workspaceRoot,
		KeepWorkspace: keepWorkspace,
	}

	event := trigger.Event{Kind: eventKind, Branch: eventBranch, Commit: eventCommit}

	result, accepted, err := runner.HandleEvent(ctx, wf, event)
	if err != nil {
		slog.Error("run aborted", "workflow", wf.Name, "error", err)
		os.Exit(exitEngineFault)
	}
	if !accepted {
		slog.Info("event did not match workflow triggers, nothing to do",
			"workflow", wf.Name, "kind", eventKind)
		return
	}

	reportResult(result)
	if result.Failed() {
		os.Exit(exitRunFailed)
	}
}

func reportResult(result *engine.RunResult) {
	for _, sr := range result.Results {
		attrs := []any{"step", sr.Name, "status", sr.Status}
		if sr.Status != engine.StatusSkipped {
			attrs = append(attrs, "duration", sr.Duration)
		}
		if sr.Error != "" {
			attrs = append(attrs, "error", sr.Error)
		}
		slog.Info("step result", attrs...)
	}
	slog.Info("run result", "workflow", result.Workflow, "status", result.Status)
}

func includeEnv() {
	err := godotenv.Load()
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("failed to load .env", "error", err)
			os.Exit(exitDotenvError)
		}
		slog.Debug("no .env file found")
	} else {
		slog.Info("using .env file")
	}
}

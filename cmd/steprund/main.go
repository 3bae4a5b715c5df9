package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/systemstart/step-runner/pkg/api"
	"github.com/systemstart/step-runner/pkg/engine"
	"github.com/systemstart/step-runner/pkg/logging"
	"github.com/systemstart/step-runner/pkg/server"
)

var version = "dev"

const (
	_ = iota
	exitWorkflowDirNotSpecified
	exitDotenvError
	exitLoadWorkflowsFailed
	exitNoWorkflows
	exitServerError
)

const shutdownGrace = 30 * time.Second

var (
	workflowDir   string
	listenAddr    string
	workspaceRoot string
	maxConcurrent int64
	loggingType   string
	logLevel      string
	showVersion   bool
)

func init() {
	flag.StringVar(
		&workflowDir,
		"workflows",
		"",
		"directory of workflow YAML files")
	flag.StringVar(
		&listenAddr,
		"listen",
		":8484",
		"listen address")
	flag.StringVar(
		&workspaceRoot,
		"workspace-root",
		"",
		"directory for run workspaces (default: system temp)")
	flag.Int64Var(
		&maxConcurrent,
		"max-concurrent",
		4,
		"maximum number of runs executing at once")
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

	if workflowDir == "" {
		slog.Error("-workflows not set")
		os.Exit(exitWorkflowDirNotSpecified)
	}

	workflows, err := api.DiscoverWorkflows(workflowDir)
	if err != nil {
		slog.Error("failed to load workflows", "directory", workflowDir, "error", err)
		os.Exit(exitLoadWorkflowsFailed)
	}
	if len(workflows) == 0 {
		slog.Error("no workflow files found", "directory", workflowDir)
		os.Exit(exitNoWorkflows)
	}
	for _, wf := range workflows {
		slog.Info("loaded workflow", "name", wf.Name, "triggers", wf.On, "steps", len(wf.Job.Steps))
	}

	runner := &engine.Runner{WorkspaceRoot: workspaceRoot}
	srv := server.New(runner, workflows, maxConcurrent)

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", listenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(exitServerError)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown incomplete", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("runs did not finish before shutdown deadline", "error", err)
	}
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

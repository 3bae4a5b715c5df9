// Package server exposes the engine as an event-driven HTTP daemon:
// webhook events in, concurrent isolated runs out.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/systemstart/step-runner/pkg/api"
	"github.com/systemstart/step-runner/pkg/engine"
	"github.com/systemstart/step-runner/pkg/trigger"
	"golang.org/x/sync/semaphore"
)

// RunState is the lifecycle state of a tracked run.
type RunState string

const (
	RunPending  RunState = "pending"
	RunRunning  RunState = "running"
	RunFinished RunState = "finished"
	RunErrored  RunState = "errored"
)

// RunRecord tracks one run accepted by the daemon.
type RunRecord struct {
	ID       string            `json:"id"`
	Workflow string            `json:"workflow"`
	Event    trigger.Event     `json:"event"`
	State    RunState          `json:"state"`
	Created  time.Time         `json:"created"`
	Result   *engine.RunResult `json:"result,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Server dispatches incoming events to every loaded workflow whose
// trigger set accepts them. Runs execute concurrently, each in its own
// workspace; the semaphore bounds how many at once.
type Server struct {
	runner    *engine.Runner
	workflows []*api.Workflow
	sem       *semaphore.Weighted

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu   sync.Mutex
	runs map[string]*RunRecord
}

// New creates a server dispatching to the given workflows, running at
// most maxConcurrent runs at a time.
func New(runner *engine.Runner, workflows []*api.Workflow, maxConcurrent int64) *Server {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		runner:    runner,
		workflows: workflows,
		sem:       semaphore.NewWeighted(maxConcurrent),
		baseCtx:   ctx,
		cancel:    cancel,
		runs:      make(map[string]*RunRecord),
	}
}

// Router builds the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/events", s.handleEvent)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}", s.handleGetRun)
	return r
}

// Shutdown cancels in-flight runs and waits for them to record their
// results. Steps interrupted by the cancellation report as cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type eventResponse struct {
	Accepted []acceptedRun `json:"accepted"`
	Ignored  bool          `json:"ignored"`
}

type acceptedRun struct {
	ID       string `json:"id"`
	Workflow string `json:"workflow"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev trigger.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid event payload", http.StatusBadRequest)
		return
	}
	if ev.Kind == "" {
		http.Error(w, "event kind is required", http.StatusBadRequest)
		return
	}

	var resp eventResponse
	for _, wf := range s.workflows {
		if !trigger.NewEvaluator(wf.On).Evaluate(ev) {
			continue
		}
		rec := s.startRun(wf, ev)
		resp.Accepted = append(resp.Accepted, acceptedRun{ID: rec.ID, Workflow: wf.Name})
	}

	status := http.StatusAccepted
	if len(resp.Accepted) == 0 {
		resp.Ignored = true
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) startRun(wf *api.Workflow, ev trigger.Event) *RunRecord {
	rec := &RunRecord{
		ID:       ulid.Make().String(),
		Workflow: wf.Name,
		Event:    ev,
		State:    RunPending,
		Created:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.runs[rec.ID] = rec
	s.mu.Unlock()

	slog.Info("accepted event", "run", rec.ID, "workflow", wf.Name, "kind", ev.Kind)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeRun(rec, wf)
	}()
	return rec
}

func (s *Server) executeRun(rec *RunRecord, wf *api.Workflow) {
	if err := s.sem.Acquire(s.baseCtx, 1); err != nil {
		s.finishRun(rec.ID, nil, err)
		return
	}
	defer s.sem.Release(1)

	s.setState(rec.ID, RunRunning)

	result, err := s.runner.Run(s.baseCtx, wf)
	s.finishRun(rec.ID, result, err)
}

func (s *Server) setState(id string, state RunState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.runs[id]; ok {
		rec.State = state
	}
}

func (s *Server) finishRun(id string, result *engine.RunResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[id]
	if !ok {
		return
	}
	rec.Result = result
	if err != nil {
		rec.State = RunErrored
		rec.Error = err.Error()
		slog.Error("run errored", "run", id, "error", err)
		return
	}
	rec.State = RunFinished
	slog.Info("run finished", "run", id, "status", result.Status)
}

type runSummary struct {
	ID       string        `json:"id"`
	Workflow string        `json:"workflow"`
	State    RunState      `json:"state"`
	Status   engine.Status `json:"status,omitempty"`
	Created  time.Time     `json:"created"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	summaries := make([]runSummary, 0, len(s.runs))
	for _, rec := range s.runs {
		sum := runSummary{
			ID:       rec.ID,
			Workflow: rec.Workflow,
			State:    rec.State,
			Created:  rec.Created,
		}
		if rec.Result != nil {
			sum.Status = rec.Result.Status
		}
		summaries = append(summaries, sum)
	}
	s.mu.Unlock()

	// ULIDs sort lexically by creation time.
	slices.SortFunc(summaries, func(a, b runSummary) int {
		return strings.Compare(a.ID, b.ID)
	})
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	rec, ok := s.runs[id]
	var copied RunRecord
	if ok {
		copied = *rec
	}
	s.mu.Unlock()

	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, copied)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systemstart/step-runner/pkg/api"
	"github.com/systemstart/step-runner/pkg/engine"
)

func testWorkflow(name string, triggers ...string) *api.Workflow {
	return &api.Workflow{
		Name: name,
		On:   api.TriggerList(triggers),
		Job: api.JobConfig{
			Steps: []api.StepConfig{
				{Name: "greet", Run: "echo hello from " + name},
			},
		},
	}
}

func postEvent(t *testing.T, ts *httptest.Server, body string) (*http.Response, eventResponse) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/events", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var er eventResponse
	if resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&er))
	}
	return resp, er
}

func waitForRun(t *testing.T, ts *httptest.Server, id string) RunRecord {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.URL + "/runs/" + id)
		require.NoError(t, err)

		var rec RunRecord
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
		_ = resp.Body.Close()

		if rec.State == RunFinished || rec.State == RunErrored {
			return rec
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("run %s did not finish in time", id)
	return RunRecord{}
}

func TestServer_EventStartsRun(t *testing.T) {
	srv := New(&engine.Runner{}, []*api.Workflow{testWorkflow("ci", api.TriggerPush)}, 2)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, er := postEvent(t, ts, `{"kind": "push", "branch": "main"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, er.Accepted, 1)
	assert.Equal(t, "ci", er.Accepted[0].Workflow)

	rec := waitForRun(t, ts, er.Accepted[0].ID)
	assert.Equal(t, RunFinished, rec.State)
	require.NotNil(t, rec.Result)
	assert.Equal(t, engine.StatusSuccess, rec.Result.Status)
	require.Len(t, rec.Result.Results, 1)
	assert.Contains(t, rec.Result.Results[0].Output, "hello from ci")
}

func TestServer_EventFansOutToMatchingWorkflows(t *testing.T) {
	workflows := []*api.Workflow{
		testWorkflow("on-push", api.TriggerPush),
		testWorkflow("on-anything", api.TriggerPush, api.TriggerPullRequest, api.TriggerManual),
		testWorkflow("manual-only", api.TriggerManual),
	}
	srv := New(&engine.Runner{}, workflows, 2)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, er := postEvent(t, ts, `{"kind": "push"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, er.Accepted, 2)

	names := []string{er.Accepted[0].Workflow, er.Accepted[1].Workflow}
	assert.ElementsMatch(t, []string{"on-push", "on-anything"}, names)

	for _, acc := range er.Accepted {
		waitForRun(t, ts, acc.ID)
	}
}

func TestServer_UnmatchedEventIsIgnored(t *testing.T) {
	srv := New(&engine.Runner{}, []*api.Workflow{testWorkflow("ci", api.TriggerPush)}, 2)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, er := postEvent(t, ts, `{"kind": "pull_request"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, er.Ignored)
	assert.Empty(t, er.Accepted)
}

func TestServer_UnknownEventKindIsIgnored(t *testing.T) {
	srv := New(&engine.Runner{}, []*api.Workflow{testWorkflow("ci", api.TriggerPush)}, 2)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, er := postEvent(t, ts, `{"kind": "schedule"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, er.Ignored)
}

func TestServer_BadRequests(t *testing.T) {
	srv := New(&engine.Runner{}, []*api.Workflow{testWorkflow("ci", api.TriggerPush)}, 2)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, _ := postEvent(t, ts, `{invalid`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postEvent(t, ts, `{"branch": "main"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_RunNotFound(t *testing.T) {
	srv := New(&engine.Runner{}, nil, 2)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/runs/does-not-exist")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ListRuns(t *testing.T) {
	srv := New(&engine.Runner{}, []*api.Workflow{testWorkflow("ci", api.TriggerPush)}, 2)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	_, first := postEvent(t, ts, `{"kind": "push"}`)
	_, second := postEvent(t, ts, `{"kind": "push"}`)
	require.Len(t, first.Accepted, 1)
	require.Len(t, second.Accepted, 1)

	waitForRun(t, ts, first.Accepted[0].ID)
	waitForRun(t, ts, second.Accepted[0].ID)

	resp, err := http.Get(ts.URL + "/runs")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var summaries []runSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	require.Len(t, summaries, 2)
	// ULIDs order by creation time.
	assert.Equal(t, first.Accepted[0].ID, summaries[0].ID)
	assert.Equal(t, second.Accepted[0].ID, summaries[1].ID)
	for _, s := range summaries {
		assert.Equal(t, RunFinished, s.State)
		assert.Equal(t, engine.StatusSuccess, s.Status)
	}
}

func TestServer_Shutdown(t *testing.T) {
	srv := New(&engine.Runner{}, []*api.Workflow{testWorkflow("ci", api.TriggerPush)}, 2)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	_, er := postEvent(t, ts, `{"kind": "push"}`)
	require.Len(t, er.Accepted, 1)
	waitForRun(t, ts, er.Accepted[0].ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}

func TestServer_ShutdownCancelsInFlightRun(t *testing.T) {
	wf := &api.Workflow{
		Name: "slow",
		On:   api.TriggerList{api.TriggerPush},
		Job: api.JobConfig{
			Steps: []api.StepConfig{{Name: "sleep", Run: "sleep 30"}},
		},
	}
	srv := New(&engine.Runner{}, []*api.Workflow{wf}, 2)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	_, er := postEvent(t, ts, `{"kind": "push"}`)
	require.Len(t, er.Accepted, 1)

	// Give the run a moment to start its step.
	time.Sleep(200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	rec := waitForRun(t, ts, er.Accepted[0].ID)
	require.NotNil(t, rec.Result)
	assert.Equal(t, engine.StatusFailure, rec.Result.Status)
	require.Len(t, rec.Result.Results, 1)
	assert.Equal(t, engine.StatusCancelled, rec.Result.Results[0].Status)
}

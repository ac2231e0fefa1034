package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/bpm-client/internal/bpmstub"
)

// testEnv is a stub server plus the global flags pointing the CLI at it.
type testEnv struct {
	flags []string

	mu         sync.Mutex
	requestIDs []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	stub, err := bpmstub.New(bpmstub.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)

	env := &testEnv{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.mu.Lock()
		env.requestIDs = append(env.requestIDs, r.Header.Get(requestIDHeader))
		env.mu.Unlock()
		stub.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	env.flags = []string{
		"--log-level", "error",
		"--server--base-url", ts.URL,
		"--server--api-root", stub.APIRoot(),
		"--token--storage", "file",
		"--token--dir", t.TempDir(),
	}
	return env
}

// run executes bpmctl with the environment's global flags and returns stdout.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	argv := append([]string{"bpmctl"}, e.flags...)
	argv = append(argv, args...)
	err := newRootCommand(strings.NewReader(stdin), &out, io.Discard).Run(context.Background(), argv)
	return out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, "", args...)
	require.NoError(t, err, "bpmctl %s", strings.Join(args, " "))
	return out
}

func decodeOutput[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), "output: %s", out)
	return v
}

type pageOutput struct {
	Data  []map[string]any `json:"data"`
	Total int              `json:"total"`
}

func TestLogin(t *testing.T) {
	t.Run("password flag", func(t *testing.T) {
		env := newTestEnv(t)
		out := decodeOutput[map[string]any](t, env.mustRun(t, "login", "-u", "admin", "-p", "admin"))
		assert.Equal(t, "bpmctl_jmixBpmAccessToken", out["token_key"])
		assert.Equal(t, "bearer", out["token_type"])
		assert.NotEmpty(t, out["expiry"])
	})

	t.Run("password from input", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.run(t, "admin\n", "login", "-u", "admin")
		require.NoError(t, err)
		env.mustRun(t, "definitions", "list")
	})

	t.Run("wrong password", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.run(t, "", "login", "-u", "admin", "-p", "wrong")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "login failed")
	})

	t.Run("not logged in", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.run(t, "", "definitions", "list")
		require.Error(t, err)
	})
}

func TestDefinitionsCommands(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "login", "-u", "admin", "-p", "admin")

	all := decodeOutput[pageOutput](t, env.mustRun(t, "definitions", "list"))
	assert.Equal(t, 3, all.Total)

	latest := decodeOutput[pageOutput](t, env.mustRun(t, "defs", "list", "--key", "order", "--latest"))
	require.Len(t, latest.Data, 1)
	assert.Equal(t, "order:2", latest.Data[0]["id"])

	suspended := decodeOutput[map[string]any](t, env.mustRun(t, "definitions", "suspend", "leave:1"))
	assert.Equal(t, true, suspended["suspended"])

	_, err := env.run(t, "", "definitions", "suspend", "leave:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")

	env.mustRun(t, "definitions", "activate", "--date", "2030-05-01T10:00:00.000+0000", "leave:1")

	_, err = env.run(t, "", "definitions", "suspend", "--date", "tomorrow", "leave:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --date")

	links := decodeOutput[[]map[string]any](t, env.mustRun(t, "definitions", "identity-links", "order:2"))
	assert.NotEmpty(t, links)

	_, err = env.run(t, "", "definitions", "identity-links")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing argument")
}

func TestInstanceAndTaskCommands(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "login", "-u", "admin", "-p", "admin")

	inst := decodeOutput[map[string]any](t, env.mustRun(t,
		"instances", "start", "--key", "order", "--business-key", "po-1", "--var", "amount=42", "--var", "customer=acme"))
	instanceID, _ := inst["id"].(string)
	require.NotEmpty(t, instanceID)

	listed := decodeOutput[pageOutput](t, env.mustRun(t, "inst", "list", "--business-key", "po-1"))
	assert.Equal(t, 1, listed.Total)

	queried := decodeOutput[pageOutput](t, env.mustRun(t, "instances", "query", "--var", "amount=42"))
	assert.Equal(t, 1, queried.Total)
	none := decodeOutput[pageOutput](t, env.mustRun(t, "instances", "query", "--var", "amount=7"))
	assert.Equal(t, 0, none.Total)

	env.mustRun(t, "instances", "set-variable", instanceID, "approved=true")
	vars := decodeOutput[[]map[string]any](t, env.mustRun(t, "instances", "variables", instanceID))
	names := make([]string, 0, len(vars))
	for _, v := range vars {
		names = append(names, v["name"].(string))
	}
	assert.ElementsMatch(t, []string{"amount", "customer", "approved"}, names)

	tasks := decodeOutput[pageOutput](t, env.mustRun(t, "tasks", "list", "--instance", instanceID))
	require.Len(t, tasks.Data, 1)
	taskID, _ := tasks.Data[0]["id"].(string)
	require.NotEmpty(t, taskID)

	claimed := decodeOutput[map[string]any](t, env.mustRun(t, "tasks", "claim", "--assignee", "admin", taskID))
	assert.EqualValues(t, http.StatusOK, claimed["status"])

	mine := decodeOutput[pageOutput](t, env.mustRun(t, "tasks", "list", "--assignee", "admin"))
	assert.Equal(t, 1, mine.Total)

	env.mustRun(t, "tasks", "complete", "--var", "approved=false", taskID)

	after := decodeOutput[pageOutput](t, env.mustRun(t, "instances", "list", "--business-key", "po-1"))
	assert.Equal(t, 0, after.Total)

	_, err := env.run(t, "", "instances", "set-variable", instanceID)
	require.Error(t, err)
	_, err = env.run(t, "", "instances", "start", "--key", "order", "--var", "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected name=value")
}

func TestSummaryCommand(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "login", "-u", "admin", "-p", "admin")
	env.mustRun(t, "instances", "start", "--key", "order")
	env.mustRun(t, "instances", "start", "--key", "leave")
	env.mustRun(t, "definitions", "suspend", "order:1")

	sum := decodeOutput[workSummary](t, env.mustRun(t, "summary", "--assignee", "admin"))
	assert.Equal(t, 3, sum.Definitions)
	assert.Equal(t, 1, sum.SuspendedDefinitions)
	assert.Equal(t, 2, sum.RunningInstances)
	assert.Equal(t, 2, sum.OpenTasks)
	require.NotNil(t, sum.AssignedTasks)
	assert.Equal(t, 0, *sum.AssignedTasks)
}

func TestRequestIDsAreSet(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "login", "-u", "admin", "-p", "admin")
	env.mustRun(t, "definitions", "list")

	env.mu.Lock()
	defer env.mu.Unlock()
	require.Len(t, env.requestIDs, 2)
	for _, id := range env.requestIDs {
		assert.Len(t, id, 36)
	}
	assert.NotEqual(t, env.requestIDs[0], env.requestIDs[1])
}

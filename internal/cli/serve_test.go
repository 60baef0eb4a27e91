package cli_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/aretw0/strata/internal/cli"
	"github.com/aretw0/strata/internal/collab"
	"github.com/aretw0/strata/internal/config"
	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/internal/testutils"
	"github.com/aretw0/strata/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, cfg *config.Config) (base string, stop func() error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cli.Serve(ctx, ln, cfg, logging.NewNop()) }()

	base = "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	return base, func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("server did not stop")
			return nil
		}
	}
}

func postCommand(t *testing.T, url string, typ string, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	body, err := json.Marshal(collab.Envelope{Type: typ, Payload: data})
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestServe(t *testing.T) {
	sources := testutils.SetupWorkspace(t, map[string]string{"people.csv": "id,belongs_to\nalice,\nbob,alice\n"})

	cfg := config.Default()
	cfg.Sources.Dir = sources
	cfg.Artifacts.Dir = t.TempDir()
	cfg.Collab.DrainTimeout = 2 * time.Second
	cfg.HTTP.ShutdownTimeout = 2 * time.Second

	base, stop := startServer(t, cfg)

	// an open stream must not hold up shutdown
	events, err := http.Get(base + "/projects/acme/events?session_id=s1")
	require.NoError(t, err)
	defer events.Body.Close()
	line, err := bufio.NewReader(events.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ready\n", line)

	b := dsl.New()
	b.DataSet("people").Source("people")
	b.Graph("org").From("people")
	b.TreeArtifact("tree").From("org")

	resp := postCommand(t, base+"/projects/acme/commands", collab.CmdUpdatePlanDag, collab.UpdatePlanDag{PlanID: "org", Dag: b.MustBuild()})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postCommand(t, base+"/projects/acme/commands", collab.CmdRefreshPlan, collab.RefreshPlan{PlanID: "org"})
	var res collab.CommandResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	resp.Body.Close()
	require.NotNil(t, res.Run)
	assert.Equal(t, 3, res.Run.Succeeded)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	metrics, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "strata_runs_total")
	assert.Contains(t, string(metrics), "go_goroutines")

	require.NoError(t, stop())

	_, err = http.Get(base + "/health")
	assert.Error(t, err)
}

func TestServe_BadStore(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := config.Default()
	cfg.Store.Backend = "etcd"
	err = cli.Serve(context.Background(), ln, cfg, logging.NewNop())
	assert.ErrorContains(t, err, "unknown store backend")
}

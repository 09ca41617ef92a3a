package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockflow-core-poc-v1/server/internal/interview/stage"
)

func TestSimulateRunsToClosingTimeout(t *testing.T) {
	catalog, err := stage.New([]stage.Stage{
		{Name: "intro", TimeLimit: 10 * time.Second, MinInteractions: 1},
		{Name: "experience", TimeLimit: 10 * time.Second, MinInteractions: 1, FallbackAck: "Moving on, {candidate_name}."},
		{Name: "closing", TimeLimit: 10 * time.Second},
	}, 0, "Thanks for your time.")
	require.NoError(t, err)

	var out bytes.Buffer
	err = simulate(context.Background(), &out, catalog, simulation{step: 5 * time.Second, candidate: "Ada", ask: true})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "stage_change intro -> experience forced=true")
	assert.Contains(t, text, "[speak] Moving on, Ada.")
	assert.Contains(t, text, "[speak] Thanks for your time.")
	assert.Contains(t, text, `"ended_by": "closing_timeout"`)
	assert.Contains(t, text, `"final_stage": "closing"`)
}

func TestSimulateSkip(t *testing.T) {
	catalog, err := stage.New([]stage.Stage{
		{Name: "intro", TimeLimit: time.Minute},
		{Name: "experience", TimeLimit: time.Minute},
		{Name: "closing", TimeLimit: 10 * time.Second},
	}, 0, "")
	require.NoError(t, err)

	var out bytes.Buffer
	err = simulate(context.Background(), &out, catalog, simulation{step: 5 * time.Second, skip: "closing"})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "[skip] queued closing")
	assert.Contains(t, text, "[transition] intro -> closing (skipped)")
	assert.Contains(t, text, `"transition_count": 1`)
}

func TestSimulateRejectsBadStep(t *testing.T) {
	catalog, err := stage.Default()
	require.NoError(t, err)
	assert.Error(t, simulate(context.Background(), &bytes.Buffer{}, catalog, simulation{}))
}

func TestCatalogCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stages:
  - name: welcome
    label: Welcome
    time_limit: 30s
    min_interactions: 1
  - name: closing
    time_limit: 20s
`), 0o600))

	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"catalog", "--file", path})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "welcome")
	assert.Contains(t, out.String(), "closing timeout: 20s")
}

func TestVersionCommand(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, appName+" version "+Version+"\n", out.String())
}

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigCommands(t *testing.T) {
	chdir(t, t.TempDir())
	dir := filepath.Join(t.TempDir(), "cfg")
	t.Setenv("ASIMOV_MODEL", "")

	out, err := execute(t, "config", "set", "api_key", "sk-abcdefwxyz", "--config-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "config.json"))

	_, err = execute(t, "config", "set", "variant", "planner_actor", "--config-dir", dir)
	require.NoError(t, err)

	_, err = execute(t, "config", "set", "variant", "swarm", "--config-dir", dir)
	assert.ErrorContains(t, err, "invalid variant")

	out, err = execute(t, "config", "show", "--config-dir", dir, "--model", "gpt-4o", "--log-level", "error")
	require.NoError(t, err)
	var shown map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "planner_actor", shown["variant"])
	assert.Equal(t, "gpt-4o", shown["model"])
	assert.Equal(t, "sk-a*****wxyz", shown["api_key"])

	out, err = execute(t, "config", "path", "--config-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "config.json")
}

func TestRunRequiresTask(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}

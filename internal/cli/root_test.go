package cli

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	want := []string{"derive", "airdrop", "start", "resume", "show", "records", "logs", "history", "simulate", "test"}
	var got []string
	for _, c := range cmd.Commands() {
		got = append(got, c.Name())
	}
	for _, name := range want {
		assert.Contains(t, got, name)
	}
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	pf := cmd.PersistentFlags()

	for _, name := range []string{"verbose", "format", "config", "db", "max-depth", "log-file"} {
		assert.NotNil(t, pf.Lookup(name), "missing flag --%s", name)
	}
	assert.Equal(t, "v", pf.Lookup("verbose").Shorthand)
	assert.Equal(t, "text", pf.Lookup("format").DefValue)
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, _, err := cliRun(t, "derive", "alice", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootCommand_InvalidMaxDepth(t *testing.T) {
	for _, depth := range []string{"-1", "65"} {
		_, _, err := cliRun(t, "simulate", "3", "--max-depth", depth)
		require.Error(t, err, "--max-depth %s", depth)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	}

	var res SimulateResult
	out, _, err := cliRun(t, "simulate", "63", "--max-depth", "64", "--format", "json")
	require.NoError(t, err)
	decodeResponse(t, out, &res)
	assert.True(t, res.FitsCeiling)
}

func TestRootCommand_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "stepper.cue")
	require.NoError(t, os.WriteFile(cfgPath, []byte("max_invoke_depth: 8\n"), 0o644))

	var res SimulateResult
	out, _, err := cliRun(t, "simulate", "6", "--config", cfgPath, "--format", "json")
	require.NoError(t, err)
	decodeResponse(t, out, &res)
	assert.True(t, res.FitsCeiling)

	// --max-depth wins over the file.
	out, _, err = cliRun(t, "simulate", "6", "--config", cfgPath, "--max-depth", "5", "--format", "json")
	require.NoError(t, err)
	decodeResponse(t, out, &res)
	assert.False(t, res.FitsCeiling)
}

func TestRootCommand_BadConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "stepper.cue")
	require.NoError(t, os.WriteFile(cfgPath, []byte("max_invoke_depth: 0\n"), 0o644))

	_, _, err := cliRun(t, "simulate", "1", "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestRootCommand_LogFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "stepper.log")

	_, stderr, err := cliRun(t, "airdrop", "alice", "5000", "--db", filepath.Join(dir, "ledger.db"), "--log-file", logPath)
	require.NoError(t, err)
	assert.Contains(t, stderr, "msg=airdrop")

	f, err := os.Open(logPath)
	require.NoError(t, err)
	defer f.Close()

	found := false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry), "log line is not JSON: %s", sc.Text())
		if entry["msg"] == "airdrop" {
			found = true
			assert.Equal(t, "alice", entry["identity"])
			assert.Equal(t, float64(5000), entry["balance"])
		}
	}
	require.NoError(t, sc.Err())
	assert.True(t, found, "airdrop entry missing from log file")
}

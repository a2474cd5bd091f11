package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"go-bg-daemon/internal/api"
	"go-bg-daemon/internal/config"
	"go-bg-daemon/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the root command with args and returns its stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := execute(context.Background())
	return out.String(), err
}

func TestConfigInitAndShow(t *testing.T) {
	home := t.TempDir()

	stdout, err := runCommand(t, "--home", home, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, filepath.Join(home, config.DefaultConfigFileName))
	assert.FileExists(t, filepath.Join(home, config.DefaultConfigFileName))

	_, err = runCommand(t, "--home", home, "config", "init")
	assert.Error(t, err, "second init must not overwrite without --force")

	stdout, err = runCommand(t, "--home", home, "config", "show")
	require.NoError(t, err)

	var shown models.Config
	require.NoError(t, json.Unmarshal([]byte(stdout), &shown))
	assert.Equal(t, home, shown.Home)
	assert.Equal(t, filepath.Join(home, config.DefaultTargetFileName), shown.Daemon.Target)
	assert.Equal(t, models.ModeRecent, shown.Fetcher.Mode)
}

func TestPollInitializesThenNotDue(t *testing.T) {
	home := t.TempDir()

	stdout, err := runCommand(t, "--home", home)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Schedule initialized")
	assert.FileExists(t, filepath.Join(home, "timestamp"))

	stdout, err = runCommand(t, "--home", home, "poll")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Not due yet")
}

func TestStatusAndHistoryOnFreshHome(t *testing.T) {
	home := t.TempDir()

	stdout, err := runCommand(t, "--home", home, "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "not scheduled yet")
	assert.Contains(t, stdout, "Mode: recent")

	stdout, err = runCommand(t, "--home", home, "history", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No updates recorded yet.")
}

func TestDebugPrintApiUrl(t *testing.T) {
	stdout, err := runCommand(t, "--home", t.TempDir(), "--mode", "recent", "debug", "print-api-url")
	require.NoError(t, err)
	assert.Equal(t, api.ImgurApiBaseUrl+"/gallery/hot/time/day/0\n", stdout)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := runCommand(t, "--home", t.TempDir(), "--log-level", "loud", "status")
	assert.Error(t, err)
	logLevel = config.DefaultLogLevel
}

func TestRunLockIsExclusive(t *testing.T) {
	home := t.TempDir()

	first, err := acquireRunLock(home)
	require.NoError(t, err)

	_, err = acquireRunLock(home)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	releaseRunLock(first)
	again, err := acquireRunLock(home)
	require.NoError(t, err)
	releaseRunLock(again)
}

func TestResourcesClosedAfterFailedCommand(t *testing.T) {
	home := t.TempDir()
	t.Cleanup(func() {
		logApiFlag = false
		rootCmd.PersistentFlags().Lookup("log-api").Changed = false
	})

	_, err := runCommand(t, "--home", home, "config", "init")
	require.NoError(t, err)

	_, err = runCommand(t, "--home", home, "--log-api", "config", "init")
	require.Error(t, err)

	assert.FileExists(t, filepath.Join(home, config.DefaultAPILogFileName))
	assert.Equal(t, http.DefaultTransport, globalHttpTransport, "API log transport closed on the error path")
	assert.Nil(t, logFile)
}

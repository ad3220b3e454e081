package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/reviewkit/internal/daemon"
)

func TestPidFile_Path(t *testing.T) {
	dir := testEnv(t)

	pf := pidFile()
	expected := filepath.Join(dir, "rk-serve.pid")
	assert.Equal(t, expected, pf.Path)
}

func TestServeLogPath(t *testing.T) {
	dir := testEnv(t)

	logPath := serveLogPath()
	expected := filepath.Join(dir, "rk-serve.log")
	assert.Equal(t, expected, logPath)
}

func TestServeStatusRun_NotRunning(t *testing.T) {
	testEnv(t)
	var buf bytes.Buffer
	ui.Out = &buf

	// No PID file exists, so status should show "not running" without error.
	err := serveStatusRun()
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "not running")
}

func TestServeStatusRun_Running(t *testing.T) {
	dir := testEnv(t)
	var buf bytes.Buffer
	ui.Out = &buf

	pf := daemon.NewPIDFile(filepath.Join(dir, "rk-serve.pid"))
	require.NoError(t, pf.Write())

	require.NoError(t, serveStatusRun())
	assert.Contains(t, buf.String(), "running")
	assert.Contains(t, buf.String(), "port 8787")
}

func TestServeStopRun_NotRunning(t *testing.T) {
	testEnv(t)

	// No PID file exists, so stop should return an error.
	err := serveStopRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestServeStartRun_AlreadyRunning(t *testing.T) {
	dir := testEnv(t)

	// Write a PID file for the current process (which is alive).
	pf := daemon.NewPIDFile(filepath.Join(dir, "rk-serve.pid"))
	require.NoError(t, pf.Write())
	t.Cleanup(func() { _ = os.Remove(pf.Path) })

	err := serveStartRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestServeStartRun_DryRun(t *testing.T) {
	dir := testEnv(t)
	dryRun = true
	ui.DryRun = true
	defer func() { dryRun = false }()

	require.NoError(t, serveStartRun())
	_, err := os.Stat(filepath.Join(dir, "rk-serve.pid"))
	assert.True(t, os.IsNotExist(err))
}

func TestServePortDefault(t *testing.T) {
	testEnv(t)
	assert.Equal(t, 8787, viper.GetInt("serve.port"))
}

func TestServeAddr_LoopbackByDefault(t *testing.T) {
	testEnv(t)
	assert.Equal(t, "127.0.0.1:8787", serveAddr())

	viper.Set("serve.host", "::1")
	viper.Set("serve.port", 9000)
	assert.Equal(t, "[::1]:9000", serveAddr())
}

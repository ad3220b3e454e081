//go:build !windows

package cmd

import (
	"os"
	"os/exec"
	"syscall"
)

// setDaemonAttrs puts the background 'rk serve' child in its own session so
// it outlives the terminal that ran 'rk serve start'.
func setDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// shutdownSignals are the signals that drain the API server.
func shutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// sigTERM is sent first by 'rk serve stop'.
func sigTERM() syscall.Signal { return syscall.SIGTERM }

// sigKILL follows when the server outlives the stop grace period.
func sigKILL() syscall.Signal { return syscall.SIGKILL }

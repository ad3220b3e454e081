//go:build windows

package cmd

import (
	"os"
	"os/exec"
	"syscall"
)

// setDaemonAttrs leaves the background 'rk serve' child as is; Windows has
// no sessions to detach into.
func setDaemonAttrs(_ *exec.Cmd) {}

// shutdownSignals are the signals that drain the API server.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// sigTERM is sent first by 'rk serve stop'; Windows treats it as a kill.
func sigTERM() syscall.Signal { return syscall.SIGTERM }

// sigKILL follows when the server outlives the stop grace period.
func sigKILL() syscall.Signal { return syscall.SIGKILL }

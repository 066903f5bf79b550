// Package launcher re-execs the current binary as a detached daemon
// process and waits for its control socket to appear, so the
// foreground CLI invocation can return immediately while the session
// keeps running in the background.
package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/fcoury/termwright/internal/termerr"
)

// pollInterval and waitDeadline bound how long Fork waits for the daemon's
// socket file to show up before giving up.
const (
	pollInterval = 20 * time.Millisecond
	waitDeadline = 5 * time.Second
)

// Options describes the background daemon to launch.
type Options struct {
	Args       []string // arguments for the re-exec'd binary, not including argv[0]
	SocketPath string   // the path the daemon is expected to bind
	LogPath    string   // if non-empty, the daemon's stdout/stderr are redirected here
}

// Fork starts a detached copy of the current executable running the
// daemon subcommand and blocks until SocketPath exists (or waitDeadline
// passes).
func Fork(opts Options) (*os.Process, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, &termerr.SpawnFailed{Msg: "find executable: " + err.Error()}
	}

	cmd := exec.Command(exe, opts.Args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if opts.LogPath != "" {
		logFile, err := os.OpenFile(opts.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, &termerr.SpawnFailed{Msg: "open log file: " + err.Error()}
		}
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	} else {
		cmd.Stdout = nil
		cmd.Stderr = nil
	}
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return nil, &termerr.SpawnFailed{Msg: "start daemon: " + err.Error()}
	}
	// Detach: don't hold a reference that blocks the parent on Wait.
	go cmd.Wait()

	if err := waitForSocket(opts.SocketPath); err != nil {
		return cmd.Process, err
	}
	return cmd.Process, nil
}

func waitForSocket(path string) error {
	deadline := time.Now().Add(waitDeadline)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		time.Sleep(pollInterval)
	}
	return &termerr.SpawnFailed{Msg: fmt.Sprintf("daemon socket %q did not appear within %s", path, waitDeadline)}
}

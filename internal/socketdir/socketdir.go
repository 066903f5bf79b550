// Package socketdir resolves the default control-socket path for a
// termwright daemon: a file under the OS temp directory named after
// the daemon's own pid.
package socketdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPath returns the default socket path for the current process:
// $TMPDIR/termwright-<pid>.sock.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("termwright-%d.sock", os.Getpid()))
}

// RemoveStale unlinks any pre-existing file at path so a fresh listener
// can bind there. A missing file is not an error.
func RemoveStale(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Package lock keeps two sprout processes from running exports or imports
// against the same data directory at once.
//
// The backup engine already serializes operations inside one process. The
// guard covers the case of a second CLI invocation started while the first
// is still restoring.
package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// GuardFileName is the name of the PID file in the data directory.
const GuardFileName = "sprout.pid"

// Guard is a PID file in a data directory.
type Guard struct {
	dir string
}

// NewGuard creates a guard for dataDir.
func NewGuard(dataDir string) *Guard {
	return &Guard{dir: dataDir}
}

// Path returns the PID file path.
func (g *Guard) Path() string {
	return filepath.Join(g.dir, GuardFileName)
}

// Acquire claims the data directory for this process. A PID file left by a
// process that no longer runs, or one that holds no PID, is replaced.
// Returns *BusyError when another live process holds the directory.
func (g *Guard) Acquire() error {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		err := g.create()
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return err
		}

		pid, ok := g.holder()
		if ok && pid != os.Getpid() && processExists(pid) {
			return &BusyError{PID: pid, Dir: g.dir}
		}
		if ok && pid == os.Getpid() {
			return nil
		}
		// Stale or unreadable, clear it and try once more.
		if err := os.Remove(g.Path()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale pid file: %w", err)
		}
	}
	return &BusyError{Dir: g.dir}
}

// create writes the PID file only if it does not exist yet.
func (g *Guard) create() error {
	f, err := os.OpenFile(g.Path(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		_ = f.Close()
		_ = os.Remove(g.Path())
		return fmt.Errorf("write pid file: %w", err)
	}
	return f.Close()
}

// holder returns the PID recorded in the file.
func (g *Guard) holder() (int, bool) {
	data, err := os.ReadFile(g.Path())
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// Release removes the PID file if this process holds it.
// Safe to call even if the file doesn't exist.
func (g *Guard) Release() {
	if pid, ok := g.holder(); ok && pid == os.Getpid() {
		_ = os.Remove(g.Path())
	}
}

// BusyError indicates another process is using the data directory.
type BusyError struct {
	PID int
	Dir string
}

func (e *BusyError) Error() string {
	if e.PID == 0 {
		return fmt.Sprintf("data directory %s is in use", e.Dir)
	}
	return fmt.Sprintf("data directory %s is in use by another sprout process (pid %d)", e.Dir, e.PID)
}

// processExists checks if a process with the given PID exists.
func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds. We need to send signal 0 to check.
	err = process.Signal(syscall.Signal(0))
	return err == nil
}

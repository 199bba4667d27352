package utils

import (
	"fmt"
	"os"
	"strconv"
	"syscall"
	"time"
)

// LockFile is the single-instance guard: its presence locks the instance
// for the process lifetime.
type LockFile struct {
	path string
	file *os.File
}

// AcquireLock creates the lock file, failing if another live instance
// already holds it. A leftover lock from a dead process is taken over.
func AcquireLock(path string) (*LockFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if os.IsExist(err) {
		if pidAlive(path) {
			return nil, fmt.Errorf("lock file %s is held by a running instance", path)
		}
		// Stale lock: the owning process is gone.
		_ = os.Remove(path)
		f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	}
	if err != nil {
		return nil, fmt.Errorf("creating lock file: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Sync()
	return &LockFile{path: path, file: f}, nil
}

// Release removes the lock file. Safe to call more than once.
func (l *LockFile) Release() {
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
		_ = os.Remove(l.path)
	}
}

// pidAlive reports whether the PID recorded in the lock file still
// belongs to a live process.
func pidAlive(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(string(trimNewline(data)))
	if err != nil || pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes for existence without delivering anything.
	return proc.Signal(syscall.Signal(0)) == nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

// TouchHealthcheck writes the current Unix timestamp as text so external
// supervisors can detect liveness.
func TouchHealthcheck(path string) error {
	stamp := strconv.FormatInt(time.Now().Unix(), 10)
	if err := os.WriteFile(path, []byte(stamp), 0o644); err != nil {
		return fmt.Errorf("writing healthcheck file: %w", err)
	}
	return nil
}

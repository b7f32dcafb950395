package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// ErrRunning is returned by AcquirePID when a live daemon holds the lock.
var ErrRunning = errors.New("daemon already running")

// PIDLock marks the one daemon allowed to vote from an account.
type PIDLock struct {
	path string
	pid  int
}

// AcquirePID creates the pid file exclusively. A pid file left by a dead process is
// replaced.
func AcquirePID(path string) (*PIDLock, error) {
	pid := os.Getpid()
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(pid))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("write pid file: %w", errors.Join(werr, cerr))
			}
			return &PIDLock{path: path, pid: pid}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create pid file: %w", err)
		}

		other, rerr := ReadPID(path)
		if rerr == nil && processAlive(other) {
			return nil, fmt.Errorf("%w (pid %d)", ErrRunning, other)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove stale pid file: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: could not take %s", ErrRunning, path)
}

// Release removes the pid file if it still belongs to this process.
func (l *PIDLock) Release() error {
	if l == nil {
		return nil
	}
	pid, err := ReadPID(l.path)
	if err != nil || pid != l.pid {
		return nil
	}
	return os.Remove(l.path)
}

func ReadPID(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file: %w", err)
	}
	return pid, nil
}

// Running returns the pid of a live daemon holding path, or false.
func Running(path string) (int, bool) {
	pid, err := ReadPID(path)
	if err != nil || !processAlive(pid) {
		return 0, false
	}
	return pid, true
}

// SignalStop asks the daemon holding path to stop.
func SignalStop(path string) (int, error) {
	pid, ok := Running(path)
	if !ok {
		return 0, errors.New("daemon not running")
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return pid, err
	}
	return pid, p.Signal(syscall.SIGTERM)
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}

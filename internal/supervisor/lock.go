package supervisor

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// LockFile is the manager process's exclusive startup lock: one cifsd
// manager may run at a time, same discipline as original_source's
// create_lock_file/delete_lock_file over CIFSD_LOCK_FILE.
type LockFile struct {
	f    *os.File
	path string
}

// AcquireLock creates path with O_CREAT|O_EXCL|O_WRONLY and takes a
// non-blocking exclusive flock on it, writing the manager's PID.
// Returns an error if another manager already holds the file.
func AcquireLock(path string) (*LockFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			f, err = os.OpenFile(path, os.O_WRONLY, 0o644)
		}
		if err != nil {
			return nil, fmt.Errorf("supervisor: open lock file: %w", err)
		}
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("supervisor: another manager holds %s: %w", path, err)
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
	}

	return &LockFile{f: f, path: path}, nil
}

// Release unlocks, closes and removes the lock file (delete_lock_file).
func (l *LockFile) Release() {
	if l == nil || l.f == nil {
		return
	}
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	_ = l.f.Close()
	_ = os.Remove(l.path)
	l.f = nil
}

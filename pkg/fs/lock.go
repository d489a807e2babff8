package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// LockTimeout is how long [Real.Lock] waits for a held lock.
const LockTimeout = 2 * time.Second

const (
	lockPerms        = 0o644
	dirPerms         = 0o755
	lockPollInterval = 5 * time.Millisecond
)

// ErrLockTimeout is returned when a lock cannot be acquired before the timeout.
var ErrLockTimeout = errors.New("lock timeout")

// flocker acquires exclusive flock(2) locks on dedicated lock files.
//
// flock is advisory and applies to an open file description, so two
// goroutines in the same process that each open the lock file exclude each
// other just like two processes do.
type flocker struct {
	timeout time.Duration
	flock   func(fd int, how int) error
}

func newFlocker(timeout time.Duration) *flocker {
	return &flocker{timeout: timeout, flock: unix.Flock}
}

// fileLock is a held lock. Close is idempotent.
type fileLock struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	flock func(fd int, how int) error
}

// Close removes the lock file while still holding the lock, then unlocks and
// closes the descriptor.
func (l *fileLock) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	removeErr := os.Remove(l.path)
	if removeErr != nil && os.IsNotExist(removeErr) {
		removeErr = nil
	}

	unlockErr := l.flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	return errors.Join(removeErr, unlockErr, closeErr)
}

// lock opens path and takes LOCK_EX on it. After the flock succeeds it
// verifies the file at path is still the inode it locked; a concurrent
// release may have unlinked it, in which case it retries.
func (f *flocker) lock(path string) (Locker, error) {
	deadline := time.Now().Add(f.timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, path)
		}

		mkdirErr := os.MkdirAll(filepath.Dir(path), dirPerms)
		if mkdirErr != nil {
			return nil, fmt.Errorf("creating lock dir: %w", mkdirErr)
		}

		file, openErr := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockPerms)
		if openErr != nil {
			return nil, fmt.Errorf("open lock file: %w", openErr)
		}

		fd := int(file.Fd())

		var openStat unix.Stat_t

		statErr := unix.Fstat(fd, &openStat)
		if statErr != nil {
			_ = file.Close()

			return nil, fmt.Errorf("fstat lock file: %w", statErr)
		}

		lockErr := f.acquire(fd, deadline)
		if lockErr != nil {
			_ = file.Close()

			return nil, fmt.Errorf("%w: %s", lockErr, path)
		}

		var pathStat unix.Stat_t

		err := unix.Stat(path, &pathStat)
		if err != nil || pathStat.Ino != openStat.Ino {
			// Replaced between open and flock, retry with the new file.
			_ = f.flock(fd, unix.LOCK_UN)
			_ = file.Close()

			continue
		}

		return &fileLock{path: path, file: file, flock: f.flock}, nil
	}
}

// acquire polls a non-blocking LOCK_EX until it succeeds or deadline passes.
func (f *flocker) acquire(fd int, deadline time.Time) error {
	for {
		err := f.flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}

		if !errors.Is(err, unix.EWOULDBLOCK) {
			return fmt.Errorf("flock: %w", err)
		}

		if time.Now().After(deadline) {
			return ErrLockTimeout
		}

		time.Sleep(lockPollInterval)
	}
}

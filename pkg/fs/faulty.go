package fs

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Op names an [FS] or [File] operation that [Faulty] can fail.
type Op string

// Operations recognised by [Faulty.Fail].
const (
	OpOpen            Op = "open"
	OpOpenFile        Op = "openfile"
	OpReadFile        Op = "readfile"
	OpWriteFileAtomic Op = "writefileatomic"
	OpReadDir         Op = "readdir"
	OpMkdirAll        Op = "mkdirall"
	OpStat            Op = "stat"
	OpRemove          Op = "remove"
	OpUnlink          Op = "unlink"
	OpLock            Op = "lock"

	// File operations, matched against the path the file was opened with.
	OpWrite    Op = "write"
	OpTruncate Op = "truncate"
	OpClose    Op = "close"
)

// InjectedError marks an error as intentionally injected by [Faulty].
//
// It wraps the configured error so errors.Is/As continue to work, e.g. a
// rule registered with [os.ErrPermission] still satisfies os.IsPermission
// via errors.Is.
type InjectedError struct {
	Op   Op
	Path string
	Err  error
}

func (e *InjectedError) Error() string {
	return fmt.Sprintf("injected %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *InjectedError) Unwrap() error {
	return e.Err
}

// IsInjected reports whether err (or any wrapped error) was injected by [Faulty].
func IsInjected(err error) bool {
	var injected *InjectedError

	return errors.As(err, &injected)
}

// Faulty wraps an [FS] and fails selected operations on selected paths.
//
// Unlike a random chaos layer, rules are explicit: a test registers exactly
// which operation fails for which path, then asserts how the caller reacted.
// Faulty also counts open files so tests can check that every handle was
// closed on every exit path.
//
// Injected [File] failures happen after the real operation would have been
// attempted; Close always closes the underlying file, even when it reports an
// injected error.
type Faulty struct {
	inner FS

	mu    sync.Mutex
	rules []faultRule
	open  int
}

type faultRule struct {
	op        Op
	suffix    string
	err       error
	remaining int // <0 means unlimited
}

// NewFaulty returns a [Faulty] that passes everything through to inner until
// rules are registered.
func NewFaulty(inner FS) *Faulty {
	if inner == nil {
		panic("inner fs is nil")
	}

	return &Faulty{inner: inner}
}

// Fail makes every op on a path ending in pathSuffix return err.
// An empty suffix matches all paths.
func (f *Faulty) Fail(op Op, pathSuffix string, err error) {
	f.addRule(op, pathSuffix, err, -1)
}

// FailOnce is like [Faulty.Fail] but the rule fires a single time.
func (f *Faulty) FailOnce(op Op, pathSuffix string, err error) {
	f.addRule(op, pathSuffix, err, 1)
}

// Reset removes all rules.
func (f *Faulty) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rules = nil
}

// OpenFiles returns the number of files opened through f that are not closed yet.
func (f *Faulty) OpenFiles() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.open
}

func (f *Faulty) addRule(op Op, suffix string, err error, remaining int) {
	if err == nil {
		panic("injected error is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.rules = append(f.rules, faultRule{op: op, suffix: suffix, err: err, remaining: remaining})
}

func (f *Faulty) check(op Op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.rules {
		rule := &f.rules[i]
		if rule.op != op || rule.remaining == 0 || !strings.HasSuffix(path, rule.suffix) {
			continue
		}

		if rule.remaining > 0 {
			rule.remaining--
		}

		return &InjectedError{Op: op, Path: path, Err: rule.err}
	}

	return nil
}

func (f *Faulty) track(delta int) {
	f.mu.Lock()
	f.open += delta
	f.mu.Unlock()
}

func (f *Faulty) wrap(file File, path string) File {
	f.track(1)

	return &faultyFile{File: file, fs: f, path: path}
}

func (f *Faulty) Open(path string) (File, error) {
	if err := f.check(OpOpen, path); err != nil {
		return nil, err
	}

	file, err := f.inner.Open(path)
	if err != nil {
		return nil, err
	}

	return f.wrap(file, path), nil
}

func (f *Faulty) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if err := f.check(OpOpenFile, path); err != nil {
		return nil, err
	}

	file, err := f.inner.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return f.wrap(file, path), nil
}

func (f *Faulty) ReadFile(path string) ([]byte, error) {
	if err := f.check(OpReadFile, path); err != nil {
		return nil, err
	}

	return f.inner.ReadFile(path)
}

func (f *Faulty) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := f.check(OpWriteFileAtomic, path); err != nil {
		return err
	}

	return f.inner.WriteFileAtomic(path, data, perm)
}

func (f *Faulty) ReadDir(path string) ([]os.DirEntry, error) {
	if err := f.check(OpReadDir, path); err != nil {
		return nil, err
	}

	return f.inner.ReadDir(path)
}

func (f *Faulty) MkdirAll(path string, perm os.FileMode) error {
	if err := f.check(OpMkdirAll, path); err != nil {
		return err
	}

	return f.inner.MkdirAll(path, perm)
}

func (f *Faulty) Stat(path string) (os.FileInfo, error) {
	if err := f.check(OpStat, path); err != nil {
		return nil, err
	}

	return f.inner.Stat(path)
}

func (f *Faulty) Exists(path string) (bool, error) {
	if err := f.check(OpStat, path); err != nil {
		return false, err
	}

	return f.inner.Exists(path)
}

func (f *Faulty) Remove(path string) error {
	if err := f.check(OpRemove, path); err != nil {
		return err
	}

	return f.inner.Remove(path)
}

func (f *Faulty) Unlink(path string) error {
	if err := f.check(OpUnlink, path); err != nil {
		return err
	}

	return f.inner.Unlink(path)
}

func (f *Faulty) Lock(path string) (Locker, error) {
	if err := f.check(OpLock, path); err != nil {
		return nil, err
	}

	return f.inner.Lock(path)
}

type faultyFile struct {
	File

	fs     *Faulty
	path   string
	mu     sync.Mutex
	closed bool
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if err := ff.fs.check(OpWrite, ff.path); err != nil {
		return 0, err
	}

	return ff.File.Write(p)
}

func (ff *faultyFile) Truncate(size int64) error {
	if err := ff.fs.check(OpTruncate, ff.path); err != nil {
		return err
	}

	return ff.File.Truncate(size)
}

func (ff *faultyFile) Close() error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.closed {
		return ff.File.Close()
	}

	ff.closed = true
	ff.fs.track(-1)

	closeErr := ff.File.Close()

	if err := ff.fs.check(OpClose, ff.path); err != nil {
		return err
	}

	return closeErr
}

// Compile-time interface checks.
var (
	_ FS   = (*Faulty)(nil)
	_ File = (*faultyFile)(nil)
)

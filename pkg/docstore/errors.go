package docstore

import (
	"errors"
	iofs "io/fs"
	"strings"
)

// Kind classifies why an operation failed.
type Kind int

// Failure kinds.
const (
	KindUnknown Kind = iota
	// KindConflict: Create on a key that already has a document.
	KindConflict
	// KindNotFound: missing key or namespace.
	KindNotFound
	// KindIO: permissions, disk, handle exhaustion, lock timeouts.
	KindIO
	// KindSerialization: the document cannot be encoded to (or decoded from) JSON.
	KindSerialization
	// KindInvalidPath: a namespace, key or public path that would leave its root.
	KindInvalidPath
)

// Sentinels matching each [Kind] via errors.Is.
var (
	ErrConflict      = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
	ErrIO            = errors.New("i/o failure")
	ErrSerialization = errors.New("serialization failed")
	ErrInvalidPath   = errors.New("invalid path")
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindIO:
		return "io"
	case KindSerialization:
		return "serialization"
	case KindInvalidPath:
		return "invalid_path"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindConflict:
		return ErrConflict
	case KindNotFound:
		return ErrNotFound
	case KindIO:
		return ErrIO
	case KindSerialization:
		return ErrSerialization
	case KindInvalidPath:
		return ErrInvalidPath
	default:
		return nil
	}
}

// Error is the failure payload of every [Result].
//
// The underlying cause appears first, followed by the operation context:
//
//	open /srv/.data/users/1.json: file exists (op=create namespace=users key=1.json)
//
// errors.Is matches both the kind sentinel ([ErrConflict], ...) and the
// underlying cause ([iofs.ErrExist], [iofs.ErrPermission], ...).
type Error struct {
	Kind Kind

	// Op is the store operation: create, read, update, delete, list,
	// read_public, read_binary_public.
	Op string

	Namespace string
	Key       string

	// Path is the resolved file system path, empty if resolution failed.
	Path string

	// Err is the underlying cause.
	Err error
}

// Error formats as "<cause> (op=X namespace=Y key=Z)".
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	if e.Err == nil {
		return e.Summary()
	}

	return e.Err.Error() + " " + e.context()
}

// Summary formats as "<kind> (op=X namespace=Y key=Z)". It leaves out the
// cause, which may carry file system paths.
func (e *Error) Summary() string {
	if e == nil {
		return ""
	}

	return e.Kind.String() + " " + e.context()
}

func (e *Error) context() string {
	parts := []string{"op=" + e.Op}

	if e.Namespace != "" {
		parts = append(parts, "namespace="+e.Namespace)
	}

	if e.Key != "" {
		parts = append(parts, "key="+e.Key)
	}

	return "(" + strings.Join(parts, " ") + ")"
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}

	sentinel := e.Kind.sentinel()

	return sentinel != nil && target == sentinel
}

// classify maps a file system error from open/read/remove/readdir to a Kind.
func classify(err error) Kind {
	switch {
	case errors.Is(err, iofs.ErrExist):
		return KindConflict
	case errors.Is(err, iofs.ErrNotExist):
		return KindNotFound
	default:
		return KindIO
	}
}

// KindOf returns the [Kind] of err if it is (or wraps) an [*Error], else [KindUnknown].
func KindOf(err error) Kind {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Kind
	}

	return KindUnknown
}

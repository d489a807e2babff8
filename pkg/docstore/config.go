package docstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/calvinalkan/docstore/pkg/fs"
)

// UpdateMode selects how Update rewrites an existing document.
type UpdateMode string

const (
	// UpdateTruncate truncates the file in place and writes the new content.
	// A concurrent reader may observe an empty or partially written file.
	UpdateTruncate UpdateMode = "truncate"

	// UpdateAtomic writes the new content to a temp file in the namespace
	// directory and renames it over the document. Readers see the old or the
	// new document, never a mix. The temp file is briefly visible to List.
	UpdateAtomic UpdateMode = "atomic"
)

// LockDirName is the directory under the data root holding per-key lock
// files. It cannot be used as a namespace.
const LockDirName = ".locks"

const defaultPerm os.FileMode = 0o644

// Config wires a [Store]. The roots are fixed for the lifetime of the store.
type Config struct {
	// DataDir is the private data root. Namespaces are its sub-directories and
	// must exist before use; the store never creates them.
	DataDir string

	// PublicDir is the read-only asset root. Must differ from DataDir.
	PublicDir string

	// FS performs all I/O. Defaults to [fs.NewReal].
	FS fs.FS

	// Logger receives one debug event per operation and one warn event per
	// failure. Nil disables logging.
	Logger *zerolog.Logger

	// UpdateMode defaults to [UpdateTruncate].
	UpdateMode UpdateMode

	// LockWrites serializes Update and Delete of the same key through an
	// exclusive file lock (across goroutines and processes). Reads never
	// lock. Off by default: concurrent updates race and the last writer wins.
	LockWrites bool

	// Perm is the mode for newly created documents. Defaults to 0o644.
	Perm os.FileMode
}

var (
	errDataDirEmpty   = errors.New("data dir is empty")
	errPublicDirEmpty = errors.New("public dir is empty")
	errRootsOverlap   = errors.New("data dir and public dir must be disjoint")
	errBadUpdateMode  = errors.New("unknown update mode")
)

// Store is a file-backed document store. It holds no cache and no lock
// table; it is safe for concurrent use.
type Store struct {
	dataDir    string
	publicDir  string
	fs         fs.FS
	log        zerolog.Logger
	updateMode UpdateMode
	lockWrites bool
	perm       os.FileMode
}

// New validates cfg and returns a Store. Roots are cleaned and made absolute.
func New(cfg Config) (*Store, error) {
	if cfg.DataDir == "" {
		return nil, errDataDirEmpty
	}

	if cfg.PublicDir == "" {
		return nil, errPublicDirEmpty
	}

	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	publicDir, err := filepath.Abs(cfg.PublicDir)
	if err != nil {
		return nil, fmt.Errorf("public dir: %w", err)
	}

	if within(dataDir, publicDir) || within(publicDir, dataDir) {
		return nil, fmt.Errorf("%w: %s, %s", errRootsOverlap, dataDir, publicDir)
	}

	mode := cfg.UpdateMode
	switch mode {
	case "":
		mode = UpdateTruncate
	case UpdateTruncate, UpdateAtomic:
	default:
		return nil, fmt.Errorf("%w: %q", errBadUpdateMode, mode)
	}

	fsys := cfg.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "docstore").Logger()
	}

	perm := cfg.Perm
	if perm == 0 {
		perm = defaultPerm
	}

	return &Store{
		dataDir:    dataDir,
		publicDir:  publicDir,
		fs:         fsys,
		log:        logger,
		updateMode: mode,
		lockWrites: cfg.LockWrites,
		perm:       perm,
	}, nil
}

// DataDir returns the absolute data root.
func (s *Store) DataDir() string { return s.dataDir }

// PublicDir returns the absolute public root.
func (s *Store) PublicDir() string { return s.publicDir }

// within reports whether path equals root or lies below it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return rel == "." || filepath.IsLocal(rel)
}

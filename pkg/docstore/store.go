package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/calvinalkan/docstore/pkg/fs"
)

// Operation names as they appear in [Error.Op] and log events.
const (
	opCreate           = "create"
	opRead             = "read"
	opReadPublic       = "read_public"
	opReadBinaryPublic = "read_binary_public"
	opUpdate           = "update"
	opDelete           = "delete"
	opList             = "list"
)

// Create stores document under a new key. It fails with [KindConflict] if
// the key already has a document and with [KindNotFound] if the namespace
// directory does not exist.
//
// The document is encoded before the file is opened, and the file is opened
// with O_EXCL, so of two concurrent creates exactly one succeeds. If writing
// fails after the open, the half-written file is removed.
func (s *Store) Create(namespace, key string, document any) Result[string] {
	path, err := s.Resolve(namespace, key)
	if err != nil {
		return failed[string](s.fail(opCreate, namespace, key, "", KindInvalidPath, err))
	}

	data, err := encode(document)
	if err != nil {
		return failed[string](s.fail(opCreate, namespace, key, path, KindSerialization, err))
	}

	file, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.perm)
	if err != nil {
		return failed[string](s.fail(opCreate, namespace, key, path, classify(err), err))
	}

	err = writeAndClose(file, data)
	if err != nil {
		removeErr := s.fs.Remove(path)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			err = errors.Join(err, fmt.Errorf("remove partial document: %w", removeErr))
		}

		return failed[string](s.fail(opCreate, namespace, key, path, KindIO, err))
	}

	s.done(opCreate, namespace, key)

	return succeed(OK)
}

// Read returns the document's file content verbatim. Decoding is up to the
// caller; see [ReadJSON].
func (s *Store) Read(namespace, key string) Result[string] {
	path, err := s.Resolve(namespace, key)
	if err != nil {
		return failed[string](s.fail(opRead, namespace, key, "", KindInvalidPath, err))
	}

	data, err := s.fs.ReadFile(path)
	if err != nil {
		return failed[string](s.fail(opRead, namespace, key, path, classify(err), err))
	}

	s.done(opRead, namespace, key)

	return succeed(string(data))
}

// ReadPublic returns a file below the public root as text.
func (s *Store) ReadPublic(relativePath string) Result[string] {
	data, err := s.readPublic(opReadPublic, relativePath)
	if err != nil {
		return failed[string](err)
	}

	return succeed(string(data))
}

// ReadBinaryPublic returns a file below the public root as raw bytes.
func (s *Store) ReadBinaryPublic(relativePath string) Result[[]byte] {
	data, err := s.readPublic(opReadBinaryPublic, relativePath)
	if err != nil {
		return failed[[]byte](err)
	}

	return succeed(data)
}

func (s *Store) readPublic(op, relativePath string) ([]byte, *Error) {
	path, err := s.ResolvePublic(relativePath)
	if err != nil {
		return nil, s.fail(op, "", relativePath, "", KindInvalidPath, err)
	}

	data, err := s.fs.ReadFile(path)
	if err != nil {
		return nil, s.fail(op, "", relativePath, path, classify(err), err)
	}

	s.done(op, "", relativePath)

	return data, nil
}

// Update replaces the document of an existing key. It fails with
// [KindNotFound] if the key has no document; it never creates one.
//
// In [UpdateTruncate] mode the file is truncated and rewritten through the
// same handle. In [UpdateAtomic] mode the handle only proves existence and
// the content is replaced by rename.
func (s *Store) Update(namespace, key string, document any) Result[string] {
	path, err := s.Resolve(namespace, key)
	if err != nil {
		return failed[string](s.fail(opUpdate, namespace, key, "", KindInvalidPath, err))
	}

	data, err := encode(document)
	if err != nil {
		return failed[string](s.fail(opUpdate, namespace, key, path, KindSerialization, err))
	}

	unlock, err := s.lock(namespace, key)
	if err != nil {
		return failed[string](s.fail(opUpdate, namespace, key, path, classify(err), err))
	}
	defer unlock()

	file, err := s.fs.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return failed[string](s.fail(opUpdate, namespace, key, path, classify(err), err))
	}

	if s.updateMode == UpdateAtomic {
		err = s.fs.WriteFileAtomic(path, data, s.perm)
		err = closeAfter(file, err)
	} else {
		err = rewriteAndClose(file, data)
	}

	if err != nil {
		return failed[string](s.fail(opUpdate, namespace, key, path, KindIO, err))
	}

	s.done(opUpdate, namespace, key)

	return succeed(OK)
}

// Delete removes the document. Deleting a missing key fails with
// [KindNotFound]. A key naming a directory is not a document: it fails with
// [KindIO] and the directory is left alone.
func (s *Store) Delete(namespace, key string) Result[string] {
	path, err := s.Resolve(namespace, key)
	if err != nil {
		return failed[string](s.fail(opDelete, namespace, key, "", KindInvalidPath, err))
	}

	unlock, err := s.lock(namespace, key)
	if err != nil {
		return failed[string](s.fail(opDelete, namespace, key, path, classify(err), err))
	}
	defer unlock()

	err = s.fs.Unlink(path)
	if err != nil {
		return failed[string](s.fail(opDelete, namespace, key, path, classify(err), err))
	}

	s.done(opDelete, namespace, key)

	return succeed(OK)
}

// List returns the names of the entries directly inside the namespace
// directory. Order is whatever the file system reports.
func (s *Store) List(namespace string) Result[[]string] {
	dir, err := s.namespaceDir(namespace)
	if err != nil {
		return failed[[]string](s.fail(opList, namespace, "", "", KindInvalidPath, err))
	}

	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return failed[[]string](s.fail(opList, namespace, "", dir, classify(err), err))
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	s.done(opList, namespace, "")

	return succeed(names)
}

// Exists reports whether key has a document. Unlike the operations above it
// returns a plain error; invalid names are reported as an [*Error] of
// [KindInvalidPath].
func (s *Store) Exists(namespace, key string) (bool, error) {
	path, err := s.Resolve(namespace, key)
	if err != nil {
		return false, &Error{Kind: KindInvalidPath, Op: "exists", Namespace: namespace, Key: key, Err: err}
	}

	return s.fs.Exists(path)
}

// lock takes the per-key write lock when LockWrites is on. The returned
// release func is never nil.
//
// The namespace directory is checked first so a missing namespace never gets
// a directory under .locks; its stat error classifies as [KindNotFound].
func (s *Store) lock(namespace, key string) (func(), error) {
	if !s.lockWrites {
		return func() {}, nil
	}

	_, err := s.fs.Stat(filepath.Join(s.dataDir, namespace))
	if err != nil {
		return nil, err
	}

	lk, err := s.fs.Lock(s.lockPath(namespace, key))
	if err != nil {
		return nil, fmt.Errorf("acquire write lock: %w", err)
	}

	return func() {
		closeErr := lk.Close()
		if closeErr != nil {
			s.log.Warn().Err(closeErr).Str("namespace", namespace).Str("key", key).Msg("release write lock")
		}
	}, nil
}

func (s *Store) fail(op, namespace, key, path string, kind Kind, err error) *Error {
	s.log.Warn().
		Str("op", op).
		Str("namespace", namespace).
		Str("key", key).
		Stringer("kind", kind).
		Err(err).
		Msg("docstore operation failed")

	return &Error{Kind: kind, Op: op, Namespace: namespace, Key: key, Path: path, Err: err}
}

func (s *Store) done(op, namespace, key string) {
	s.log.Debug().Str("op", op).Str("namespace", namespace).Str("key", key).Msg("docstore operation")
}

// encode returns the compact JSON encoding of document without HTML
// escaping or a trailing newline.
func encode(document any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	err := enc.Encode(document)
	if err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// writeAndClose writes data and closes file on every path. A close error
// after a successful write is still an error: the data may not be on disk.
func writeAndClose(file fs.File, data []byte) error {
	_, err := file.Write(data)

	return closeAfter(file, err)
}

// rewriteAndClose truncates file, writes data from offset zero and closes.
func rewriteAndClose(file fs.File, data []byte) error {
	err := file.Truncate(0)
	if err == nil {
		_, err = file.Seek(0, io.SeekStart)
	}

	if err == nil {
		_, err = file.Write(data)
	}

	return closeAfter(file, err)
}

func closeAfter(file fs.File, err error) error {
	closeErr := file.Close()
	if closeErr == nil {
		return err
	}

	closeErr = fmt.Errorf("close: %w", closeErr)
	if err == nil {
		return closeErr
	}

	return errors.Join(err, closeErr)
}

package docstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	errEmptyName     = errors.New("name is empty")
	errDotName       = errors.New("name is a dot segment")
	errSeparator     = errors.New("name contains a path separator")
	errNUL           = errors.New("name contains a NUL byte")
	errReserved      = errors.New("namespace is reserved")
	errNotLocal      = errors.New("path escapes the public root")
	errEmptyRelative = errors.New("public path is empty")
)

// Resolve returns <data-dir>/<namespace>/<key>. Both parts must be single
// path elements; anything that could address a file outside the namespace
// directory is rejected.
func (s *Store) Resolve(namespace, key string) (string, error) {
	if err := validateNamespace(namespace); err != nil {
		return "", err
	}

	if err := validateName("key", key); err != nil {
		return "", err
	}

	return filepath.Join(s.dataDir, namespace, key), nil
}

// ResolvePublic returns <public-dir>/<relativePath>. relativePath may use
// forward slashes and contain sub-directories but must stay inside the root.
func (s *Store) ResolvePublic(relativePath string) (string, error) {
	if relativePath == "" {
		return "", errEmptyRelative
	}

	if strings.ContainsRune(relativePath, 0) {
		return "", fmt.Errorf("public path %q: %w", relativePath, errNUL)
	}

	rel := filepath.FromSlash(relativePath)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", errNotLocal, relativePath)
	}

	return filepath.Join(s.publicDir, rel), nil
}

func (s *Store) namespaceDir(namespace string) (string, error) {
	if err := validateNamespace(namespace); err != nil {
		return "", err
	}

	return filepath.Join(s.dataDir, namespace), nil
}

func (s *Store) lockPath(namespace, key string) string {
	return filepath.Join(s.dataDir, LockDirName, namespace, key+".lock")
}

func validateNamespace(namespace string) error {
	if err := validateName("namespace", namespace); err != nil {
		return err
	}

	if namespace == LockDirName {
		return fmt.Errorf("namespace %q: %w", namespace, errReserved)
	}

	return nil
}

func validateName(what, name string) error {
	var err error

	switch {
	case name == "":
		err = errEmptyName
	case name == "." || name == "..":
		err = errDotName
	case strings.ContainsAny(name, `/\`):
		err = errSeparator
	case strings.ContainsRune(name, 0):
		err = errNUL
	default:
		return nil
	}

	return fmt.Errorf("%s %q: %w", what, name, err)
}

package docstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestStore creates a store rooted in a fresh temp dir with both roots
// present. Options adjust the config before New.
func newTestStore(t *testing.T, opts ...func(*Config)) *Store {
	t.Helper()

	root := t.TempDir()
	cfg := Config{
		DataDir:   filepath.Join(root, ".data"),
		PublicDir: filepath.Join(root, "public"),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.PublicDir, 0o755))

	store, err := New(cfg)
	require.NoError(t, err)

	return store
}

func mkNamespace(t *testing.T, s *Store, namespace string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(s.DataDir(), namespace), 0o755))
}

func writePublic(t *testing.T, s *Store, rel string, data []byte) {
	t.Helper()

	path := filepath.Join(s.PublicDir(), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func readRaw(t *testing.T, s *Store, namespace, key string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(s.DataDir(), namespace, key))
	require.NoError(t, err)

	return string(data)
}

func requireKind[T any](t *testing.T, res Result[T], kind Kind) {
	t.Helper()

	require.True(t, res.Failed(), "expected failure of kind %v, got value %v", kind, res.Value)
	require.Equal(t, kind, res.Err.Kind, "err=%v", res.Err)
}

func requireOK[T any](t *testing.T, res Result[T]) T {
	t.Helper()

	require.False(t, res.Failed(), "unexpected failure: %v", res.Err)

	return res.Value
}

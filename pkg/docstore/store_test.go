package docstore

import (
	"encoding/json"
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	Name string `json:"name"`
	Age  int    `json:"age,omitempty"`
}

func TestStore_Lifecycle(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	mkNamespace(t, s, "users")

	assert.Equal(t, OK, requireOK(t, s.Create("users", "1.json", user{Name: "Ann"})))
	assert.Equal(t, `{"name":"Ann"}`, requireOK(t, s.Read("users", "1.json")))

	assert.Equal(t, OK, requireOK(t, s.Update("users", "1.json", user{Name: "Ann", Age: 30})))
	assert.Equal(t, `{"name":"Ann","age":30}`, requireOK(t, s.Read("users", "1.json")))

	assert.Equal(t, OK, requireOK(t, s.Delete("users", "1.json")))

	res := s.Read("users", "1.json")
	requireKind(t, res, KindNotFound)
	assert.True(t, errors.Is(res.Err, ErrNotFound))
	assert.True(t, errors.Is(res.Err, iofs.ErrNotExist))
}

func TestStore_CreateThenReadRoundTrips(t *testing.T) {
	t.Parallel()

	docs := map[string]any{
		"object.json": map[string]any{"a": 1.0, "nested": map[string]any{"b": []any{"x", true, nil}}},
		"array.json":  []any{1.0, "two", false},
		"string.json": "plain <b>html</b> & text",
		"number.json": 42.5,
		"null.json":   nil,
		"bool.json":   true,
		"empty.json":  map[string]any{},
	}

	s := newTestStore(t)
	mkNamespace(t, s, "docs")

	for key, doc := range docs {
		requireOK(t, s.Create("docs", key, doc))

		var got any

		require.NoError(t, json.Unmarshal([]byte(requireOK(t, s.Read("docs", key))), &got))

		if diff := cmp.Diff(doc, got); diff != "" {
			t.Errorf("%s round trip mismatch (-want +got):\n%s", key, diff)
		}
	}
}

func TestStore_CreateDoesNotEscapeHTML(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	mkNamespace(t, s, "docs")

	requireOK(t, s.Create("docs", "a.json", map[string]string{"html": "<a href=\"x\">&</a>"}))
	assert.Equal(t, `{"html":"<a href=\"x\">&</a>"}`, readRaw(t, s, "docs", "a.json"))
}

func TestStore_CreateStoresRawMessageCompacted(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	mkNamespace(t, s, "docs")

	requireOK(t, s.Create("docs", "a.json", json.RawMessage("{ \"a\" : [1, 2] }")))
	assert.Equal(t, `{"a":[1,2]}`, readRaw(t, s, "docs", "a.json"))
}

func TestStore_CreateOnExistingKeyConflictsAndKeepsDocument(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	mkNamespace(t, s, "users")

	requireOK(t, s.Create("users", "1.json", user{Name: "Ann"}))

	res := s.Create("users", "1.json", user{Name: "Bob"})
	requireKind(t, res, KindConflict)
	assert.True(t, errors.Is(res.Err, ErrConflict))
	assert.True(t, errors.Is(res.Err, iofs.ErrExist))
	assert.Equal(t, "create", res.Err.Op)

	got := requireOK(t, ReadJSON[user](s, "users", "1.json"))
	assert.Equal(t, user{Name: "Ann"}, got)
}

func TestStore_CreateInMissingNamespaceIsNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	requireKind(t, s.Create("nope", "1.json", user{Name: "Ann"}), KindNotFound)

	_, err := os.Stat(filepath.Join(s.DataDir(), "nope"))
	assert.True(t, os.IsNotExist(err), "namespace must not be created implicitly")
}

func TestStore_CreateUnserializableDocumentLeavesNoFile(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	mkNamespace(t, s, "docs")

	res := s.Create("docs", "bad.json", map[string]any{"ch": make(chan int)})
	requireKind(t, res, KindSerialization)
	assert.True(t, errors.Is(res.Err, ErrSerialization))

	_, err := os.Stat(filepath.Join(s.DataDir(), "docs", "bad.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_UpdateMissingKeyIsNotFoundAndCreatesNothing(t *testing.T) {
	t.Parallel()

	for _, mode := range []UpdateMode{UpdateTruncate, UpdateAtomic} {
		t.Run(string(mode), func(t *testing.T) {
			t.Parallel()

			s := newTestStore(t, func(c *Config) { c.UpdateMode = mode })
			mkNamespace(t, s, "users")

			requireKind(t, s.Update("users", "ghost.json", user{Name: "x"}), KindNotFound)

			names := requireOK(t, s.List("users"))
			assert.Empty(t, names)
		})
	}
}

func TestStore_UpdateReplacesLongerDocumentCompletely(t *testing.T) {
	t.Parallel()

	for _, mode := range []UpdateMode{UpdateTruncate, UpdateAtomic} {
		t.Run(string(mode), func(t *testing.T) {
			t.Parallel()

			s := newTestStore(t, func(c *Config) { c.UpdateMode = mode })
			mkNamespace(t, s, "users")

			requireOK(t, s.Create("users", "1.json", user{Name: "A very long name indeed", Age: 99}))
			requireOK(t, s.Update("users", "1.json", user{Name: "Al"}))
			assert.Equal(t, `{"name":"Al"}`, requireOK(t, s.Read("users", "1.json")))

			// Same update twice, same result.
			requireOK(t, s.Update("users", "1.json", user{Name: "Al"}))
			assert.Equal(t, `{"name":"Al"}`, requireOK(t, s.Read("users", "1.json")))
		})
	}
}

func TestStore_UpdateAtomicKeepsFileMode(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, func(c *Config) {
		c.UpdateMode = UpdateAtomic
		c.Perm = 0o600
	})
	mkNamespace(t, s, "users")

	requireOK(t, s.Create("users", "1.json", user{Name: "Ann"}))
	requireOK(t, s.Update("users", "1.json", user{Name: "Bob"}))

	info, err := os.Stat(filepath.Join(s.DataDir(), "users", "1.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Equal(t, []string{"1.json"}, requireOK(t, s.List("users")))
}

func TestStore_DeleteTwiceIsNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	mkNamespace(t, s, "users")

	requireOK(t, s.Create("users", "1.json", user{Name: "Ann"}))
	requireOK(t, s.Delete("users", "1.json"))
	requireKind(t, s.Delete("users", "1.json"), KindNotFound)
	requireKind(t, s.Read("users", "1.json"), KindNotFound)
}

func TestStore_ListReturnsExactlyTheKeys(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	mkNamespace(t, s, "docs")

	requireOK(t, s.Create("docs", "b.json", 1))
	requireOK(t, s.Create("docs", "a.json", 2))

	got := requireOK(t, s.List("docs"))
	want := []string{"a.json", "b.json"}

	if diff := cmp.Diff(want, got, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Fatalf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_ListEmptyNamespaceIsEmptyNotNil(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	mkNamespace(t, s, "docs")

	got := requireOK(t, s.List("docs"))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStore_ListMissingNamespaceIsNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	requireKind(t, s.List("missing"), KindNotFound)
}

func TestStore_LockWritesKeepsLocksOutOfNamespace(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, func(c *Config) { c.LockWrites = true })
	mkNamespace(t, s, "users")

	requireOK(t, s.Create("users", "1.json", user{Name: "Ann"}))
	requireOK(t, s.Update("users", "1.json", user{Name: "Bob"}))
	requireOK(t, s.Delete("users", "1.json"))

	assert.Empty(t, requireOK(t, s.List("users")))

	_, err := os.Stat(filepath.Join(s.DataDir(), LockDirName, "users", "1.json.lock"))
	assert.True(t, os.IsNotExist(err), "lock file must be removed on release")
}

func TestStore_ReadPublicTextAndBinary(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	png := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff, 0xfe}

	writePublic(t, s, "css/pages/home.css", []byte("body { margin: 0; }"))
	writePublic(t, s, "img/logo.png", png)

	assert.Equal(t, "body { margin: 0; }", requireOK(t, s.ReadPublic("css/pages/home.css")))
	assert.Equal(t, png, requireOK(t, s.ReadBinaryPublic("img/logo.png")))

	requireKind(t, s.ReadPublic("css/missing.css"), KindNotFound)
	requireKind(t, s.ReadBinaryPublic("img/missing.png"), KindNotFound)
}

func TestStore_ReadDirectoryAsDocumentIsIO(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	mkNamespace(t, s, "docs")
	require.NoError(t, os.Mkdir(filepath.Join(s.DataDir(), "docs", "dir.json"), 0o755))

	requireKind(t, s.Read("docs", "dir.json"), KindIO)
}

func TestStore_DeleteDirectoryKeyFails(t *testing.T) {
	t.Parallel()

	for _, lockWrites := range []bool{false, true} {
		s := newTestStore(t, func(c *Config) { c.LockWrites = lockWrites })
		mkNamespace(t, s, "users")

		dir := filepath.Join(s.DataDir(), "users", "sub")
		require.NoError(t, os.Mkdir(dir, 0o755))

		res := s.Delete("users", "sub")
		requireKind(t, res, KindIO)
		require.ErrorIs(t, res.Err, ErrIO)

		info, err := os.Stat(dir)
		require.NoError(t, err, "lockWrites=%v: directory must survive", lockWrites)
		assert.True(t, info.IsDir())
	}
}

func TestStore_LockWritesMissingNamespaceLeavesNoLockDir(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, func(c *Config) { c.LockWrites = true })

	requireKind(t, s.Update("ghost", "1.json", 1), KindNotFound)
	requireKind(t, s.Delete("ghost", "1.json"), KindNotFound)

	_, err := os.Stat(filepath.Join(s.DataDir(), LockDirName, "ghost"))
	assert.True(t, os.IsNotExist(err), "missing namespace must not get a lock dir, stat err=%v", err)

	_, err = os.Stat(filepath.Join(s.DataDir(), "ghost"))
	assert.True(t, os.IsNotExist(err), "namespace must not be created")
}

func TestStore_ReadJSONDecodeFailureIsSerialization(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	mkNamespace(t, s, "docs")
	require.NoError(t, os.WriteFile(filepath.Join(s.DataDir(), "docs", "bad.json"), []byte("{not json"), 0o644))

	requireKind(t, ReadJSON[map[string]any](s, "docs", "bad.json"), KindSerialization)
	requireKind(t, ReadJSON[map[string]any](s, "docs", "missing.json"), KindNotFound)
}

func TestStore_Exists(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	mkNamespace(t, s, "docs")
	requireOK(t, s.Create("docs", "a.json", 1))

	ok, err := s.Exists("docs", "a.json")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists("docs", "b.json")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Exists("docs", "../a.json")
	assert.True(t, errors.Is(err, ErrInvalidPath))
}

func TestResult_Unpack(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	mkNamespace(t, s, "docs")

	value, err := s.Create("docs", "a.json", 1).Unpack()
	require.NoError(t, err)
	assert.Equal(t, OK, value)

	value, err = s.Create("docs", "a.json", 1).Unpack()
	require.Error(t, err)
	assert.Empty(t, value)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestNew_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty data dir", Config{PublicDir: root}},
		{"empty public dir", Config{DataDir: root}},
		{"same roots", Config{DataDir: root, PublicDir: root}},
		{"public inside data", Config{DataDir: root, PublicDir: filepath.Join(root, "public")}},
		{"data inside public", Config{DataDir: filepath.Join(root, ".data"), PublicDir: root}},
		{"unknown update mode", Config{DataDir: filepath.Join(root, "a"), PublicDir: filepath.Join(root, "b"), UpdateMode: "append"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

package cli_test

import (
	"testing"

	"github.com/calvinalkan/docstore/internal/cli"
)

func TestDocumentCommands_Lifecycle(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.Namespace("users")

	if got, want := c.MustRun("create", "users", "1.json", `{"name": "Ann"}`), "OK"; got != want {
		t.Fatalf("create stdout=%q, want=%q", got, want)
	}

	if got, want := c.ReadDocument("users", "1.json"), `{"name":"Ann"}`; got != want {
		t.Fatalf("on disk=%q, want=%q", got, want)
	}

	if got, want := c.MustRun("read", "users", "1.json"), `{"name":"Ann"}`; got != want {
		t.Fatalf("read stdout=%q, want=%q", got, want)
	}

	c.MustRun("update", "users", "1.json", `{"name":"Bob"}`)

	if got, want := c.MustRun("read", "users", "1.json"), `{"name":"Bob"}`; got != want {
		t.Fatalf("read after update=%q, want=%q", got, want)
	}

	if got, want := c.MustRun("delete", "users", "1.json"), "OK"; got != want {
		t.Fatalf("delete stdout=%q, want=%q", got, want)
	}

	stderr := c.MustFail("read", "users", "1.json")
	cli.AssertContains(t, stderr, "error: not_found:")
}

func TestDocumentCommands_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		args       []string
		stdin      string
		wantStderr string
	}{
		{name: "create needs namespace", args: []string{"create"}, wantStderr: "namespace is required"},
		{name: "create needs key", args: []string{"create", "users"}, wantStderr: "key is required"},
		{name: "create empty stdin", args: []string{"create", "users", "1.json"}, wantStderr: "document is empty"},
		{name: "create invalid json", args: []string{"create", "users", "1.json", "{"}, wantStderr: "document is not valid JSON"},
		{name: "create too many args", args: []string{"create", "users", "1.json", "{}", "extra"}, wantStderr: "too many arguments"},
		{name: "create missing namespace", args: []string{"create", "nope", "1.json", "{}"}, wantStderr: "not_found"},
		{name: "create escaping key", args: []string{"create", "users", "..", "{}"}, wantStderr: "invalid_path"},
		{name: "update missing key", args: []string{"update", "users", "9.json", "{}"}, wantStderr: "not_found"},
		{name: "read needs key", args: []string{"read", "users"}, wantStderr: "key is required"},
		{name: "delete missing key", args: []string{"delete", "users", "9.json"}, wantStderr: "not_found"},
		{name: "ls needs namespace", args: []string{"ls"}, wantStderr: "namespace is required"},
		{name: "ls reserved namespace", args: []string{"ls", ".locks"}, wantStderr: "invalid_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			c.Namespace("users")

			stdout, stderr, code := c.RunWithInput(tt.stdin, tt.args...)
			if code != 1 {
				t.Fatalf("exitCode=%d, want=1\nstdout: %s", code, stdout)
			}

			if stdout != "" {
				t.Errorf("stdout=%q, want empty", stdout)
			}

			cli.AssertContains(t, stderr, tt.wantStderr)
		})
	}
}

func TestCreate_ConflictKeepsOriginal(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.Namespace("users")
	c.MustRun("create", "users", "1.json", `{"v":1}`)

	stderr := c.MustFail("create", "users", "1.json", `{"v":2}`)
	cli.AssertContains(t, stderr, "error: conflict:")

	if got, want := c.ReadDocument("users", "1.json"), `{"v":1}`; got != want {
		t.Fatalf("on disk=%q, want=%q", got, want)
	}
}

func TestCreate_ReadsDocumentFromStdin(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.Namespace("users")

	for _, args := range [][]string{
		{"create", "users", "1.json"},
		{"create", "users", "2.json", "-"},
	} {
		_, stderr, code := c.RunWithInput("{\n  \"name\": \"Ann\"\n}\n", args...)
		if code != 0 {
			t.Fatalf("%v: exitCode=%d\nstderr: %s", args, code, stderr)
		}
	}

	for _, key := range []string{"1.json", "2.json"} {
		if got, want := c.ReadDocument("users", key), `{"name":"Ann"}`; got != want {
			t.Errorf("%s on disk=%q, want=%q", key, got, want)
		}
	}
}

func TestLs_SortsKeys(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.Namespace("users")

	for _, key := range []string{"b.json", "c.json", "a.json"} {
		c.MustRun("create", "users", key, "{}")
	}

	if got, want := c.MustRun("ls", "users"), "a.json\nb.json\nc.json"; got != want {
		t.Fatalf("ls stdout=%q, want=%q", got, want)
	}
}

func TestLs_EmptyNamespacePrintsNothing(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.Namespace("users")

	if got := c.MustRun("ls", "users"); got != "" {
		t.Fatalf("ls stdout=%q, want empty", got)
	}
}

func TestUpdate_AtomicModeFromConfig(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.Namespace("users")
	c.WriteFile(".docstore.json", []byte(`{
		// replace via temp file and rename
		"update_mode": "atomic",
		"lock_writes": true,
	}`))

	c.MustRun("create", "users", "1.json", `{"name":"Ann","bio":"long text here"}`)
	c.MustRun("update", "users", "1.json", `{"name":"Bo"}`)

	if got, want := c.ReadDocument("users", "1.json"), `{"name":"Bo"}`; got != want {
		t.Fatalf("on disk=%q, want=%q", got, want)
	}

	if got, want := c.MustRun("ls", "users"), "1.json"; got != want {
		t.Fatalf("ls stdout=%q, want=%q", got, want)
	}
}

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/adrg/xdg"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
)

const shellPrompt = "docstore> "

// lineReader is the subset of liner.State the shell needs.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// ShellCmd returns the shell command.
func ShellCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell",
		Short: "Interactive prompt for store commands",
		Long: `Start an interactive prompt accepting create, read, update, delete, ls and
public. Documents for create and update are given inline:

  docstore> create users 1.json {"name": "Ann"}

Type "help" for commands, "exit" or Ctrl-D to leave.`,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			sh := &shell{app: a, out: o.Out(), errOut: o.errOut}

			return sh.run(ctx, o.In())
		},
	}
}

type shell struct {
	app    *app
	out    io.Writer
	errOut io.Writer
	reader lineReader
}

func (s *shell) run(ctx context.Context, in io.Reader) error {
	s.reader = s.newReader(in)
	defer s.reader.Close()

	_, _ = fmt.Fprintf(s.out, "docstore shell (data=%s public=%s)\n", s.app.cfg.DataDirAbs, s.app.cfg.PublicDirAbs)
	_, _ = fmt.Fprintln(s.out, `Type "help" for available commands.`)

	for ctx.Err() == nil {
		line, err := s.reader.Prompt(shellPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		s.reader.AppendHistory(line)

		if !s.exec(ctx, line) {
			break
		}
	}

	s.saveHistory()
	_, _ = fmt.Fprintln(s.out, "Bye!")

	return nil
}

// exec runs one shell line. It returns false when the shell should exit.
func (s *shell) exec(ctx context.Context, line string) bool {
	name, rest, _ := strings.Cut(line, " ")
	name = strings.ToLower(name)

	switch name {
	case "exit", "quit", "q":
		return false
	case "help", "?":
		s.printHelp()

		return true
	}

	cmd := s.command(name)
	if cmd == nil {
		_, _ = fmt.Fprintf(s.errOut, "unknown command: %s (type 'help' for commands)\n", name)

		return true
	}

	args := shellFields(rest, 2)
	if name != "create" && name != "update" {
		args = strings.Fields(rest)
	}

	cmd.Run(ctx, NewIO(nil, s.out, s.errOut), args)

	return true
}

func (s *shell) command(name string) *Command {
	for _, cmd := range shellCommands(s.app) {
		if cmd.Name() == name {
			return cmd
		}
	}

	return nil
}

func shellCommands(a *app) []*Command {
	return []*Command{
		CreateCmd(a),
		ReadCmd(a),
		UpdateCmd(a),
		DeleteCmd(a),
		LsCmd(a),
		PublicCmd(a),
	}
}

// shellFields splits the first n whitespace-separated fields off s and
// returns them followed by the untouched remainder, if any.
func shellFields(s string, n int) []string {
	var fields []string

	s = strings.TrimSpace(s)
	for len(fields) < n && s != "" {
		field, rest, _ := strings.Cut(s, " ")
		fields = append(fields, field)
		s = strings.TrimSpace(rest)
	}

	if s != "" {
		fields = append(fields, s)
	}

	return fields
}

func (s *shell) printHelp() {
	_, _ = fmt.Fprintln(s.out, "Commands:")

	for _, cmd := range shellCommands(s.app) {
		_, _ = fmt.Fprintln(s.out, cmd.HelpLine())
	}

	_, _ = fmt.Fprintf(s.out, "  %-28s %s\n", "help", "Show this help")
	_, _ = fmt.Fprintf(s.out, "  %-28s %s\n", "exit / quit / q", "Exit")
}

func (s *shell) completer(line string) []string {
	names := []string{"help", "exit", "quit"}
	for _, cmd := range shellCommands(s.app) {
		names = append(names, cmd.Name())
	}

	slices.Sort(names)

	var completions []string

	lower := strings.ToLower(line)
	for _, name := range names {
		if strings.HasPrefix(name, lower) {
			completions = append(completions, name)
		}
	}

	return completions
}

// newReader uses liner on an interactive stdin and a plain line scanner
// otherwise.
func (s *shell) newReader(in io.Reader) lineReader {
	if f, ok := in.(*os.File); ok && f == os.Stdin && liner.TerminalSupported() {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)
		state.SetCompleter(s.completer)

		if path := historyFile(); path != "" {
			if f, err := os.Open(path); err == nil {
				_, _ = state.ReadHistory(f)
				_ = f.Close()
			}
		}

		return state
	}

	if in == nil {
		in = strings.NewReader("")
	}

	return &scanReader{scanner: bufio.NewScanner(in), out: s.out}
}

func (s *shell) saveHistory() {
	state, ok := s.reader.(*liner.State)
	if !ok {
		return
	}

	path := historyFile()
	if path == "" {
		return
	}

	f, err := os.Create(path)
	if err != nil {
		return
	}

	_, _ = state.WriteHistory(f)
	_ = f.Close()
}

func historyFile() string {
	path, err := xdg.StateFile("docstore/history")
	if err != nil {
		return ""
	}

	return path
}

// scanReader reads lines from a non-interactive input.
type scanReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (r *scanReader) Prompt(prompt string) (string, error) {
	_, _ = io.WriteString(r.out, prompt)

	if !r.scanner.Scan() {
		err := r.scanner.Err()
		if err != nil {
			return "", err
		}

		return "", io.EOF
	}

	return r.scanner.Text(), nil
}

func (*scanReader) AppendHistory(string) {}

func (*scanReader) Close() error { return nil }

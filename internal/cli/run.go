// Package cli implements the docstore command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/docstore/internal/config"
	"github.com/calvinalkan/docstore/internal/logging"
	"github.com/calvinalkan/docstore/pkg/docstore"
)

// app carries what commands need once config is loaded.
type app struct {
	cfg    config.Config
	store  *docstore.Store
	logger zerolog.Logger
	env    map[string]string
}

// Run is the main entry point. Returns exit code.
// sigCh may be nil; when it delivers, the command's context is cancelled.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globals := newGlobalFlags()

	if len(args) > 0 {
		args = args[1:]
	}

	err := globals.set.Parse(args)
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, globals.set)

		return 1
	}

	rest := globals.set.Args()

	if globals.help || len(rest) == 0 {
		printUsage(out, globals.set)

		return 0
	}

	a := &app{env: env}

	byName := make(map[string]*Command)
	for _, cmd := range allCommands(a) {
		byName[cmd.Name()] = cmd
	}

	cmd, ok := byName[rest[0]]
	if !ok {
		fprintln(errOut, "error: unknown command:", rest[0])
		fprintln(errOut)
		printUsage(errOut, globals.set)

		return 1
	}

	a.cfg, err = config.Load(config.LoadInput{
		WorkDirOverride:   globals.workDir,
		ConfigPath:        globals.configPath,
		DataDirOverride:   globals.dataDir,
		PublicDirOverride: globals.publicDir,
		Env:               env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	a.logger, err = logging.New(errOut, logging.Verbosity(a.cfg.LogLevel, globals.verbose))
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	a.store, err = docstore.New(a.cfg.StoreConfig(&a.logger))
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	return cmd.Run(ctx, NewIO(in, out, errOut), rest[1:])
}

func allCommands(a *app) []*Command {
	return []*Command{
		CreateCmd(a),
		ReadCmd(a),
		UpdateCmd(a),
		DeleteCmd(a),
		LsCmd(a),
		PublicCmd(a),
		ServeCmd(a),
		ShellCmd(a),
		PrintConfigCmd(a),
	}
}

type globalFlags struct {
	set        *flag.FlagSet
	help       bool
	workDir    string
	configPath string
	dataDir    string
	publicDir  string
	verbose    int
}

func newGlobalFlags() *globalFlags {
	g := &globalFlags{set: flag.NewFlagSet("docstore", flag.ContinueOnError)}

	g.set.SetOutput(io.Discard)
	g.set.SetInterspersed(false)
	g.set.BoolVarP(&g.help, "help", "h", false, "Show help")
	g.set.StringVarP(&g.workDir, "cwd", "C", "", "Run as if started in `dir`")
	g.set.StringVarP(&g.configPath, "config", "c", "", "Use specified config `file`")
	g.set.StringVar(&g.dataDir, "data-dir", "", "Override the data root")
	g.set.StringVar(&g.publicDir, "public-dir", "", "Override the public root")
	g.set.CountVarP(&g.verbose, "verbose", "v", "Increase log verbosity (repeatable)")

	return g
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, globals *flag.FlagSet) {
	fprintln(w, `docstore - file-backed JSON document store

Usage: docstore [global flags] <command> [args]

Global flags:`)

	var buf strings.Builder
	globals.SetOutput(&buf)
	globals.PrintDefaults()
	globals.SetOutput(io.Discard)
	_, _ = io.WriteString(w, buf.String())

	fprintln(w)
	fprintln(w, "Commands:")

	for _, cmd := range allCommands(&app{}) {
		fprintln(w, cmd.HelpLine())
	}

	fprintln(w)
	fprintln(w, `Run "docstore <command> --help" for command flags.`)
}

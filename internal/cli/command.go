package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command defines a CLI command with unified help generation.
type Command struct {
	// Flags defines command-specific flags.
	// The FlagSet name is not used - command identity comes from Usage.
	Flags *flag.FlagSet

	// Usage is the freeform usage string shown after "docstore" in help.
	// Includes the command name and arguments/flags.
	// Examples: "read <ns> <key>", "public <path> [flags]"
	Usage string

	// Short is a one-line description for the global help listing.
	Short string

	// Long is the full description shown in command help.
	// If empty, Short is used instead.
	Long string

	// Args checks the positional arguments left after flag parsing. A
	// failure is a usage error: Exec is not called. Nil accepts anything.
	Args func(args []string) error

	// Exec runs the command after flags and Args are checked.
	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

// HelpLine returns the short help line for the main usage display.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-28s %s", c.Usage, c.Short)
}

// PrintHelp writes the full help for "docstore <cmd> --help" to w.
func (c *Command) PrintHelp(w io.Writer) {
	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	var b strings.Builder

	b.WriteString("Usage: docstore " + c.Usage + "\n\n")
	b.WriteString(desc + "\n")

	if c.Flags != nil && c.Flags.HasFlags() {
		b.WriteString("\nFlags:\n")
		b.WriteString(c.Flags.FlagUsages())
	}

	_, _ = io.WriteString(w, b.String())
}

// Run parses flags, checks arguments and executes the command. Returns the
// exit code; every error is printed here so output ordering is consistent.
//
// Usage errors (bad flags, wrong arguments) print the usage line and a help
// hint to stderr. Errors from Exec print only the error.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(io.Discard)

	err := c.Flags.Parse(args)
	if errors.Is(err, flag.ErrHelp) {
		c.PrintHelp(o.Out())

		return 0
	}

	if err == nil && c.Args != nil {
		err = c.Args(c.Flags.Args())
	}

	if err != nil {
		c.usageError(o, err)

		return 1
	}

	err = c.Exec(ctx, o, c.Flags.Args())
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	return o.Finish()
}

func (c *Command) usageError(o *IO, err error) {
	o.ErrPrintln("error:", err)
	o.ErrPrintln("Usage: docstore", c.Usage)
	o.ErrPrintln(fmt.Sprintf("Run 'docstore %s --help' for details.", c.Name()))
}

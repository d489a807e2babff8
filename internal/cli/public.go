package cli

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"
)

var errPathRequired = errors.New("path is required")

// PublicCmd returns the public command.
func PublicCmd(a *app) *Command {
	fs := flag.NewFlagSet("public", flag.ContinueOnError)
	fs.BoolP("binary", "b", false, "Write raw bytes instead of text")

	return &Command{
		Flags: fs,
		Usage: "public <path> [flags]",
		Short: "Print a file from the public root",
		Long: `Print a file from the public root. <path> is relative to the public root
and may not leave it. With --binary the bytes are written unchanged.`,
		Args: oneArg(errPathRequired),
		Exec: func(_ context.Context, o *IO, args []string) error {
			binary, _ := fs.GetBool("binary")
			if binary {
				data, err := a.store.ReadBinaryPublic(args[0]).Unpack()
				if err != nil {
					return storeError(err)
				}

				_, err = o.Out().Write(data)
				if err != nil {
					return fmt.Errorf("writing output: %w", err)
				}

				return nil
			}

			text, err := a.store.ReadPublic(args[0]).Unpack()
			if err != nil {
				return storeError(err)
			}

			o.Printf("%s", text)

			return nil
		},
	}
}

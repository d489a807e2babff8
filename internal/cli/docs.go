package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/docstore/pkg/docstore"
)

var (
	errNamespaceRequired = errors.New("namespace is required")
	errKeyRequired       = errors.New("key is required")
	errTooManyArgs       = errors.New("too many arguments")
	errInvalidDocument   = errors.New("document is not valid JSON")
	errEmptyDocument     = errors.New("document is empty")
)

// CreateCmd returns the create command.
func CreateCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("create", flag.ContinueOnError),
		Usage: "create <ns> <key> [json|-]",
		Short: "Create a document, fails if it exists",
		Long: `Create a new document under <ns>/<key>. The namespace directory must exist.

The document is taken from the third argument, or from stdin if it is
omitted or "-". Prints OK on success.`,
		Args: keyArgs(3),
		Exec: func(_ context.Context, o *IO, args []string) error {
			doc, err := documentArg(o, args)
			if err != nil {
				return err
			}

			value, err := a.store.Create(args[0], args[1], doc).Unpack()
			if err != nil {
				return storeError(err)
			}

			o.Println(value)

			return nil
		},
	}
}

// UpdateCmd returns the update command.
func UpdateCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("update", flag.ContinueOnError),
		Usage: "update <ns> <key> [json|-]",
		Short: "Replace an existing document",
		Long: `Replace the document under <ns>/<key>. The document must already exist.

The document is taken from the third argument, or from stdin if it is
omitted or "-". Prints OK on success.`,
		Args: keyArgs(3),
		Exec: func(_ context.Context, o *IO, args []string) error {
			doc, err := documentArg(o, args)
			if err != nil {
				return err
			}

			value, err := a.store.Update(args[0], args[1], doc).Unpack()
			if err != nil {
				return storeError(err)
			}

			o.Println(value)

			return nil
		},
	}
}

// ReadCmd returns the read command.
func ReadCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("read", flag.ContinueOnError),
		Usage: "read <ns> <key>",
		Short: "Print a document",
		Args:  keyArgs(2),
		Exec: func(_ context.Context, o *IO, args []string) error {
			ns, key := args[0], args[1]

			text, err := a.store.Read(ns, key).Unpack()
			if err != nil {
				return storeError(err)
			}

			o.Println(text)

			return nil
		},
	}
}

// DeleteCmd returns the delete command.
func DeleteCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("delete", flag.ContinueOnError),
		Usage: "delete <ns> <key>",
		Short: "Delete a document",
		Args:  keyArgs(2),
		Exec: func(_ context.Context, o *IO, args []string) error {
			ns, key := args[0], args[1]

			value, err := a.store.Delete(ns, key).Unpack()
			if err != nil {
				return storeError(err)
			}

			o.Println(value)

			return nil
		},
	}
}

// LsCmd returns the ls command.
func LsCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("ls", flag.ContinueOnError),
		Usage: "ls <ns>",
		Short: "List keys in a namespace",
		Long:  "List all keys in <ns>, one per line, sorted by name.",
		Args:  oneArg(errNamespaceRequired),
		Exec: func(_ context.Context, o *IO, args []string) error {
			keys, err := a.store.List(args[0]).Unpack()
			if err != nil {
				return storeError(err)
			}

			slices.Sort(keys)

			for _, key := range keys {
				o.Println(key)
			}

			return nil
		},
	}
}

// keyArgs accepts "<ns> <key>" followed by at most maxArgs-2 more args.
func keyArgs(maxArgs int) func([]string) error {
	return func(args []string) error {
		switch {
		case len(args) == 0:
			return errNamespaceRequired
		case len(args) == 1:
			return errKeyRequired
		case len(args) > maxArgs:
			return tooManyArgs(args[maxArgs:])
		}

		return nil
	}
}

// oneArg accepts exactly one arg, failing with missing when there is none.
func oneArg(missing error) func([]string) error {
	return func(args []string) error {
		switch {
		case len(args) == 0:
			return missing
		case len(args) > 1:
			return tooManyArgs(args[1:])
		}

		return nil
	}
}

func tooManyArgs(extra []string) error {
	return fmt.Errorf("%w: %s", errTooManyArgs, strings.Join(extra, " "))
}

// documentArg returns the document of "<ns> <key> [json|-]", reading stdin
// when the third arg is missing or "-".
func documentArg(o *IO, args []string) (json.RawMessage, error) {
	var (
		raw []byte
		err error
	)

	if len(args) == 3 && args[2] != "-" {
		raw = []byte(args[2])
	} else {
		if o.In() == nil {
			return nil, errEmptyDocument
		}

		raw, err = io.ReadAll(o.In())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
	}

	return parseDocument(raw)
}

// storeError prefixes a store failure with its kind.
func storeError(err error) error {
	return fmt.Errorf("%s: %w", docstore.KindOf(err), err)
}

func parseDocument(raw []byte) (json.RawMessage, error) {
	if strings.TrimSpace(string(raw)) == "" {
		return nil, errEmptyDocument
	}

	if !json.Valid(raw) {
		return nil, errInvalidDocument
	}

	return json.RawMessage(raw), nil
}

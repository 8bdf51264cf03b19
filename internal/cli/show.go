package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"
)

// ShowCmd returns the show command.
func ShowCmd(a *app) *Command {
	flags := flag.NewFlagSet("show", flag.ContinueOnError)
	flags.StringP("region", "r", "", "Show a region instead of the document (collection/identity[/...])")

	return &Command{
		Flags: flags,
		Usage: "show <kind> <identity> [path]",
		Short: "Print a document or a value inside it",
		Long: `Print a document, or the value at path inside it, as canonical JSON.

With --region the document is narrowed to a region first; path is then
relative to the region.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execShow(o, a, flags, args)
		},
	}
}

func execShow(o *IO, a *app, flags *flag.FlagSet, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: show <kind> <identity> [path]", ErrArgs)
	}

	sel, _ := flags.GetString("region")

	n, err := a.node(args[0], args[1], sel)
	if err != nil {
		return err
	}

	var v any

	if len(args) == 3 {
		v, err = n.ValueAt(args[2])
	} else {
		v, err = n.Value()
	}

	if err != nil {
		return err
	}

	return printJSON(o, v)
}

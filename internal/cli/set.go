package cli

import (
	"context"
	"fmt"

	"github.com/calvinalkan/packdb/pkg/packdb"

	flag "github.com/spf13/pflag"
)

// SetCmd returns the set command.
func SetCmd(a *app) *Command {
	flags := flag.NewFlagSet("set", flag.ContinueOnError)
	flags.StringP("region", "r", "", "Set inside a region (collection/identity[/...])")
	flags.BoolP("string", "s", false, "Store value as a string without parsing it as JSON")
	flags.Bool("default", false, "Only set the value when path is absent")

	return &Command{
		Flags: flags,
		Usage: "set <kind> <identity> <path> <value>",
		Short: "Set a value inside a document",
		Long: `Set the value at path inside a document and save the pack.

The value is parsed as JSON; anything that is not valid JSON is stored as
a string. Missing containers along path are created.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execSet(o, a, flags, args)
		},
	}
}

func execSet(o *IO, a *app, flags *flag.FlagSet, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("%w: set <kind> <identity> <path> <value>", ErrArgs)
	}

	sel, _ := flags.GetString("region")
	raw, _ := flags.GetBool("string")
	onlyDefault, _ := flags.GetBool("default")

	var value any = args[3]
	if !raw {
		value = parseValue(args[3])
	}

	return a.mutate(args[0], func(_ *packdb.Pack) error {
		n, err := a.node(args[0], args[1], sel)
		if err != nil {
			return err
		}

		if !onlyDefault {
			return n.SetValueAt(args[2], value)
		}

		set, err := n.SetDefaultAt(args[2], value)
		if err != nil {
			return err
		}

		if !set {
			o.Warn(args[2]+" already set", "use set without --default to overwrite it")
		}

		return nil
	})
}

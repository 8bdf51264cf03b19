package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"
)

// ChildrenCmd returns the children command.
func ChildrenCmd(a *app) *Command {
	flags := flag.NewFlagSet("children", flag.ContinueOnError)
	flags.StringP("region", "r", "", "List below a region (collection/identity[/...])")

	return &Command{
		Flags: flags,
		Usage: "children <kind> <identity> <collection>",
		Short: "List the regions of a collection",
		Long:  `List the regions of a collection as "identity<TAB>address".`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execChildren(o, a, flags, args)
		},
	}
}

func execChildren(o *IO, a *app, flags *flag.FlagSet, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: children <kind> <identity> <collection>", ErrArgs)
	}

	sel, _ := flags.GetString("region")

	n, err := a.node(args[0], args[1], sel)
	if err != nil {
		return err
	}

	regions, err := n.Children(args[2])
	if err != nil {
		return err
	}

	return printRegions(o, regions)
}

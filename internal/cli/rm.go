package cli

import (
	"context"
	"fmt"

	"github.com/calvinalkan/packdb/pkg/packdb"

	flag "github.com/spf13/pflag"
)

// RmCmd returns the rm command.
func RmCmd(a *app) *Command {
	flags := flag.NewFlagSet("rm", flag.ContinueOnError)
	flags.StringP("region", "r", "", "Remove a region, or a value inside it (collection/identity[/...])")

	return &Command{
		Flags: flags,
		Usage: "rm <kind> <identity> [path]",
		Short: "Remove a document, a region or a value",
		Long: `Remove the value at path, the region selected with --region, or the
whole document when neither is given, then save the pack.

Removing a document deletes its file from the output directory.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execRm(o, a, flags, args)
		},
	}
}

func execRm(o *IO, a *app, flags *flag.FlagSet, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: rm <kind> <identity> [path]", ErrArgs)
	}

	sel, _ := flags.GetString("region")

	return a.mutate(args[0], func(_ *packdb.Pack) error {
		n, err := a.node(args[0], args[1], sel)
		if err != nil {
			return err
		}

		if len(args) == 3 {
			return n.DeleteValueAt(args[2])
		}

		var removed string

		switch target := n.(type) {
		case *packdb.Region:
			removed = target.Address()
			err = target.Delete()
		case *packdb.FileDocument:
			removed = target.Path()
			err = target.MarkForDeletion()
		}

		if err != nil {
			return err
		}

		o.Println("removed", removed)

		return nil
	})
}

package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"
)

// KindsCmd returns the kinds command.
func KindsCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("kinds", flag.ContinueOnError),
		Usage: "kinds",
		Short: "List file kinds of the open packs",
		Long: `List the file kinds of every open pack with their folder and
collections, one kind per line.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execKinds(o, a, args)
		},
	}
}

func execKinds(o *IO, a *app, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: kinds takes no arguments", ErrArgs)
	}

	if err := a.open(); err != nil {
		return err
	}

	for _, side := range a.sides() {
		for _, k := range a.schema.FileKinds(side) {
			var colls []string
			for _, c := range k.Collections() {
				colls = append(colls, c.Name())
			}

			o.Printf("%s\t%s\t%s/\t%v\n", k.Name(), side, k.Rule().Folder, colls)
		}
	}

	return nil
}

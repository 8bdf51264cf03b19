package cli

import (
	"context"
	"fmt"

	"github.com/calvinalkan/packdb/pkg/packdb"

	flag "github.com/spf13/pflag"
)

// LsCmd returns the ls command.
func LsCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("ls", flag.ContinueOnError),
		Usage: "ls <kind>",
		Short: "List documents of a kind",
		Long: `List every document of a kind as "identity<TAB>path", sorted by path.

Files that fail to load are reported as warnings; the rest are still listed.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execLs(ctx, o, a, args)
		},
	}
}

func execLs(ctx context.Context, o *IO, a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: ls <kind>", ErrArgs)
	}

	_, p, err := a.fileKind(args[0])
	if err != nil {
		return err
	}

	docs, err := p.Documents(args[0])
	if err := reportBatch(o, err); err != nil {
		return err
	}

	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := printDocuments(o, []*packdb.FileDocument{d}); err != nil {
			return err
		}
	}

	return nil
}

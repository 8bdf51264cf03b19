package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/calvinalkan/packdb/pkg/packdb"

	flag "github.com/spf13/pflag"
)

// CreateCmd returns the create command.
func CreateCmd(a *app) *Command {
	flags := flag.NewFlagSet("create", flag.ContinueOnError)
	flags.StringP("region", "r", "", "Create a region inside this document instead (collection/identity)")

	return &Command{
		Flags: flags,
		Usage: "create <kind> <path|identity> [json]",
		Short: "Create a document or a region",
		Long: `Create a document of kind at the pack-relative path, holding json
(an empty object when omitted), and save it.

With --region=<collection>/<identity> the second argument names an
existing document and the region is created inside it.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execCreate(o, a, flags, args)
		},
	}
}

func execCreate(o *IO, a *app, flags *flag.FlagSet, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: create <kind> <path|identity> [json]", ErrArgs)
	}

	var content any
	if len(args) == 3 {
		content = parseValue(args[2])
	}

	sel, _ := flags.GetString("region")

	return a.mutate(args[0], func(p *packdb.Pack) error {
		if sel == "" {
			doc, err := p.Create(args[0], args[1], content)
			if err != nil {
				return err
			}

			o.Println("created", doc.Path())

			return nil
		}

		coll, id, err := splitSelector(sel)
		if err != nil {
			return err
		}

		doc, err := p.Get(args[0], args[1])
		if err != nil {
			return err
		}

		r, err := doc.Create(coll, id, content)
		if err != nil {
			return err
		}

		o.Println("created", r.Address())

		return nil
	})
}

func splitSelector(sel string) (string, string, error) {
	coll, id, ok := strings.Cut(sel, "/")
	if ok && coll != "" && id != "" {
		return coll, id, nil
	}

	return "", "", fmt.Errorf("%w: region selector %q needs collection/identity", packdb.ErrPath, sel)
}

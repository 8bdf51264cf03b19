package cli

import (
	"context"
	"fmt"

	"github.com/calvinalkan/packdb/pkg/packdb"

	flag "github.com/spf13/pflag"
)

// CallCmd returns the call command.
func CallCmd(a *app) *Command {
	flags := flag.NewFlagSet("call", flag.ContinueOnError)
	flags.StringP("region", "r", "", "Call on a region (collection/identity[/...])")

	return &Command{
		Flags: flags,
		Usage: "call <kind> <identity> <accessor> [args...]",
		Short: "Invoke a kind accessor",
		Long: `Invoke an accessor synthesized for the kind, such as "components",
"component <id>", "add_event <id> [json]", "is_spawnable" or
"set_is_spawnable <json>". Accessors that change the document save the
pack afterwards.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execCall(o, a, flags, args)
		},
	}
}

func execCall(o *IO, a *app, flags *flag.FlagSet, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: call <kind> <identity> <accessor> [args...]", ErrArgs)
	}

	sel, _ := flags.GetString("region")
	kind, id, name := args[0], args[1], args[2]

	run := func() (any, error) {
		n, err := a.node(kind, id, sel)
		if err != nil {
			return nil, err
		}

		acc, ok := n.Kind().Accessor(name)
		if !ok {
			return nil, fmt.Errorf("%w: accessor %q on %s", packdb.ErrNotFound, name, n.Kind().Name())
		}

		return acc.Invoke(n, accessorArgs(acc, args[3:])...)
	}

	// Reads run under the lock too; saving a clean pack writes nothing.
	var res any

	err := a.mutate(kind, func(_ *packdb.Pack) error {
		var err error

		res, err = run()

		return err
	})
	if err != nil {
		return err
	}

	return printResult(o, res)
}

// QueryCmd returns the query command.
func QueryCmd(a *app) *Command {
	flags := flag.NewFlagSet("query", flag.ContinueOnError)
	flags.StringP("pack", "p", "", "Pack side to query (default: first open pack with the accessor)")

	return &Command{
		Flags: flags,
		Usage: "query <accessor> [args...]",
		Short: "Invoke a pack accessor",
		Long: `Invoke an accessor synthesized for a pack, such as "entities",
"entity <identity>", "add_entity <path> [json]" or a flattened collection
like "animations".`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execQuery(o, a, flags, args)
		},
	}
}

func execQuery(o *IO, a *app, flags *flag.FlagSet, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: query <accessor> [args...]", ErrArgs)
	}

	if err := a.open(); err != nil {
		return err
	}

	side, _ := flags.GetString("pack")
	name := args[0]

	var (
		pack *packdb.Pack
		acc  *packdb.Accessor
	)

	for _, s := range a.sides() {
		if side != "" && s != side {
			continue
		}

		if found, ok := a.schema.PackAccessor(s, name); ok {
			pack, acc = a.packs[s], found

			break
		}
	}

	if acc == nil {
		return fmt.Errorf("%w: pack accessor %q", packdb.ErrNotFound, name)
	}

	if acc.Op != packdb.OpCreateDocument {
		res, err := acc.Invoke(pack, accessorArgs(acc, args[1:])...)
		if err := reportBatch(o, err); err != nil {
			return err
		}

		return printResult(o, res)
	}

	var res any

	err := a.mutate(acc.Kind.Name(), func(p *packdb.Pack) error {
		var err error

		res, err = acc.Invoke(p, accessorArgs(acc, args[1:])...)

		return err
	})
	if err != nil {
		return err
	}

	return printResult(o, res)
}

// accessorArgs converts command line arguments for acc: identities and
// paths stay strings, values are parsed as JSON.
func accessorArgs(acc *packdb.Accessor, raw []string) []any {
	out := make([]any, len(raw))

	for i, s := range raw {
		switch {
		case acc.Op == packdb.OpSet,
			(acc.Op == packdb.OpCreate || acc.Op == packdb.OpCreateDocument) && i > 0:
			out[i] = parseValue(s)
		default:
			out[i] = s
		}
	}

	return out
}

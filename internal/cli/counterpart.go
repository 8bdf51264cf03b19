package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"
)

// CounterpartCmd returns the counterpart command.
func CounterpartCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("counterpart", flag.ContinueOnError),
		Usage: "counterpart <kind> <identity>",
		Short: "Find the linked document in the other pack",
		Long: `Print the document of the other pack linked to this one, such as the
client entity of an entity. Needs both --bp and --rp.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execCounterpart(o, a, args)
		},
	}
}

func execCounterpart(o *IO, a *app, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: counterpart <kind> <identity>", ErrArgs)
	}

	doc, err := a.doc(args[0], args[1])
	if err != nil {
		return err
	}

	if a.project == nil {
		return ErrNoProject
	}

	other, err := a.project.Counterpart(doc)
	if err != nil {
		return err
	}

	o.Printf("%s\t", other.Kind().Name())

	return printResult(o, other)
}

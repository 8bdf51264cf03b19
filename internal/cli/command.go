package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one packdb subcommand. Its help text, both the line in the
// command list and "packdb <cmd> --help", is derived from these fields.
type Command struct {
	// Flags holds the command's own flags. Global flags are parsed before
	// the command is looked up and never reach this set.
	Flags *flag.FlagSet

	// Usage starts with the command name, followed by its arguments, e.g.
	// "set <kind> <identity> <path> <value>".
	Usage string

	// Short is the summary shown in the command list.
	Short string

	// Long, when set, replaces Short in the command's own help.
	Long string

	// Exec receives the positional arguments left after flag parsing.
	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name is the first word of Usage.
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

// HelpLine is the command's entry in the top-level usage.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-40s %s", c.Usage, c.Short)
}

func (c *Command) description() string {
	if c.Long != "" {
		return c.Long
	}

	return c.Short
}

// PrintHelp writes usage, description and flag defaults to stdout.
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: packdb", c.Usage)
	o.Println()
	o.Println(c.description())

	if c.Flags == nil || !c.Flags.HasFlags() {
		return
	}

	var buf strings.Builder

	c.Flags.SetOutput(&buf)
	c.Flags.PrintDefaults()

	o.Println()
	o.Println("Flags:")
	o.Printf("%s", buf.String())
}

// Run parses args against Flags, runs Exec and returns the exit code.
// Errors go to stderr; a flag error is followed by the command's help.
// Pending warnings are flushed on every path, so none leak into the next
// command of a shell session.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{})

	if err := c.Flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(o)

			return 0
		}

		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.PrintHelp(o)

		return 1
	}

	err := c.Exec(ctx, o, c.Flags.Args())

	code := o.Finish()
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	return code
}

// resetFlags puts every flag back to its default value and clears
// Changed, so the shell can run c again.
func (c *Command) resetFlags() {
	c.Flags.VisitAll(func(f *flag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

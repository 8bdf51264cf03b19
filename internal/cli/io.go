package cli

import (
	"fmt"
	"io"
)

// IO is the output of one command: results on stdout, errors and
// warnings on stderr.
//
// Warnings collect problems the command worked around, like a pack file
// that did not parse. They are written to stderr before the first line of
// stdout and again by [IO.Finish], so a reader piping stdout through head
// or tail still sees them. A command with warnings exits 1 even though its
// results were printed.
type IO struct {
	out    io.Writer
	errOut io.Writer

	warnings []string
	// announced is set once the warnings were shown ahead of stdout.
	announced bool
}

// NewIO returns an IO writing to out and errOut.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Warn records issue together with the action that resolves it.
func (o *IO) Warn(issue, action string) {
	o.warnings = append(o.warnings, issue+": "+action)
}

// Println writes a line to stdout.
func (o *IO) Println(a ...any) {
	o.announce()
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes to stdout.
func (o *IO) Printf(format string, a ...any) {
	o.announce()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes a line to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Finish repeats the warnings and returns 1 if there were any. The IO is
// reset for the next command.
func (o *IO) Finish() int {
	o.announce()
	o.printWarnings()

	code := 0
	if len(o.warnings) > 0 {
		code = 1
	}

	o.warnings = nil
	o.announced = false

	return code
}

func (o *IO) announce() {
	if o.announced || len(o.warnings) == 0 {
		return
	}

	o.printWarnings()
	o.announced = true
}

func (o *IO) printWarnings() {
	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}
}

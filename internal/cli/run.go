package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/calvinalkan/packdb/internal/fs"

	flag "github.com/spf13/pflag"
)

// commandNames lists the commands in help order.
var commandNames = []string{
	"kinds", "ls", "show", "children", "counterpart",
	"set", "rm", "create", "call", "query",
	"shell", "print-config",
}

// Run is the main entry point. Returns exit code.
//
// sigCh may be nil. The first signal cancels the running command; a
// running shell stops after its current line.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globals := flag.NewFlagSet("packdb", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(&strings.Builder{}) // discard pflag output

	flagHelp := globals.BoolP("help", "h", false, "Show help")
	flagCwd := globals.StringP("cwd", "C", "", "Run as if started in `dir`")
	flagConfig := globals.StringP("config", "c", "", "Use specified config `file`")
	flagVerbose := globals.BoolP("verbose", "v", false, "Log debug output to stderr")
	globals.String("bp", "", "Behavior pack `dir`")
	globals.String("rp", "", "Resource pack `dir`")
	globals.StringP("output", "o", "", "Write saves under `dir` instead of into the packs")
	globals.String("schema", "", "Use schema `file` instead of the built-in add-on schema")

	a := newApp(Config{}, fs.NewReal(), nil)
	cmds := commands(a, in, env)

	lookup := func(name string) *Command { return cmds[name] }

	if len(args) == 0 {
		args = []string{"packdb"}
	}

	err := globals.Parse(args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(out, globals, lookup)

			return 0
		}

		fprintln(errOut, "error:", err)
		printUsage(errOut, globals, lookup)

		return 1
	}

	rest := globals.Args()

	if *flagHelp || len(rest) == 0 {
		printUsage(out, globals, lookup)

		return 0
	}

	overrides := make(map[string]string)

	for _, key := range configKeys {
		if name := flagForKey(key); globals.Changed(name) {
			overrides[key], _ = globals.GetString(name)
		}
	}

	cfg, err := LoadConfig(LoadConfigInput{
		WorkDir:    *flagCwd,
		ConfigPath: *flagConfig,
		Overrides:  overrides,
		Env:        env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut, globals, lookup)

		return 1
	}

	level := slog.LevelWarn
	if *flagVerbose {
		level = slog.LevelDebug
	}

	a.cfg = cfg
	a.log = slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	cmd := lookup(rest[0])
	if cmd == nil {
		fprintln(errOut, "error:", fmt.Errorf("%w: %s", ErrUnknownCommand, rest[0]))
		printUsage(errOut, globals, lookup)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	return cmd.Run(ctx, NewIO(out, errOut), rest[1:])
}

func commands(a *app, in io.Reader, env map[string]string) map[string]*Command {
	cmds := make(map[string]*Command)

	list := []*Command{
		KindsCmd(a),
		LsCmd(a),
		ShowCmd(a),
		ChildrenCmd(a),
		CounterpartCmd(a),
		SetCmd(a),
		RmCmd(a),
		CreateCmd(a),
		CallCmd(a),
		QueryCmd(a),
		ShellCmd(a, in, env, func(name string) *Command { return cmds[name] }),
		PrintConfigCmd(a),
	}

	for _, c := range list {
		cmds[c.Name()] = c
	}

	return cmds
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, globals *flag.FlagSet, lookup func(string) *Command) {
	fprintln(w, `packdb - query and edit Bedrock add-on packs

Usage: packdb [flags] <command> [args]

Commands:`)

	for _, name := range commandNames {
		if cmd := lookup(name); cmd != nil {
			fprintln(w, cmd.HelpLine())
		}
	}

	fprintln(w)
	fprintln(w, "Global flags:")
	_, _ = io.WriteString(w, globals.FlagUsages())
	fprintln(w)
	fprintln(w, `Run "packdb <command> --help" for command flags.`)
}

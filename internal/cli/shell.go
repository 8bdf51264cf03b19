package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	flag "github.com/spf13/pflag"
)

const shellPrompt = "packdb> "

// prompter reads shell lines. *liner.State implements it for terminals.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// scanPrompter reads lines from a non-terminal input without echoing a
// prompt.
type scanPrompter struct {
	sc *bufio.Scanner
}

func (s *scanPrompter) Prompt(string) (string, error) {
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return "", err
		}

		return "", io.EOF
	}

	return s.sc.Text(), nil
}

func (*scanPrompter) AppendHistory(string) {}

// ShellCmd returns the shell command. lookup resolves the commands the
// shell can run.
func ShellCmd(a *app, in io.Reader, env map[string]string, lookup func(string) *Command) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell",
		Short: "Run commands interactively",
		Long: `Read commands line by line and run them against packs that stay open
between commands. Quote arguments with '...' or "...".

Type "help" for the command list and "exit" to leave. When input is not a
terminal, lines are read without a prompt and the shell fails if any
command failed.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("%w: shell takes no arguments", ErrArgs)
			}

			return execShell(ctx, o, a, in, env, lookup)
		},
	}
}

func execShell(ctx context.Context, o *IO, a *app, in io.Reader, env map[string]string, lookup func(string) *Command) error {
	if in == nil {
		in = strings.NewReader("")
	}

	var p prompter

	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		line := liner.NewLiner()
		defer line.Close()

		line.SetCtrlCAborts(true)
		line.SetCompleter(func(s string) []string { return complete(a, lookup, s) })

		history := historyFile(env)
		if history != "" {
			if hf, err := os.Open(history); err == nil {
				_, _ = line.ReadHistory(hf)
				_ = hf.Close()
			}

			defer func() {
				if hf, err := os.Create(history); err == nil {
					_, _ = line.WriteHistory(hf)
					_ = hf.Close()
				}
			}()
		}

		p = line
	} else {
		p = &scanPrompter{sc: bufio.NewScanner(in)}
	}

	failed := 0

	for ctx.Err() == nil {
		line, err := p.Prompt(shellPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				break
			}

			return err
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p.AppendHistory(line)

		fields, err := splitArgs(line)
		if err != nil {
			o.ErrPrintln("error:", err)

			failed++

			continue
		}

		switch fields[0] {
		case "exit", "quit", "q":
			return shellResult(failed)
		case "help", "?":
			printShellHelp(o, lookup)

			continue
		}

		cmd := lookup(fields[0])
		if cmd == nil || cmd.Name() == "shell" {
			o.ErrPrintln("error:", fmt.Errorf("%w: %s", ErrUnknownCommand, fields[0]))

			failed++

			continue
		}

		cmd.resetFlags()

		if code := cmd.Run(ctx, o, fields[1:]); code != 0 {
			failed++
		}
	}

	return shellResult(failed)
}

func shellResult(failed int) error {
	if failed == 0 {
		return nil
	}

	return fmt.Errorf("%d shell commands failed", failed)
}

func historyFile(env map[string]string) string {
	home := env["HOME"]
	if home == "" {
		return ""
	}

	return filepath.Join(home, ".packdb_history")
}

func printShellHelp(o *IO, lookup func(string) *Command) {
	o.Println("Commands:")

	for _, name := range commandNames {
		if cmd := lookup(name); cmd != nil && name != "shell" {
			o.Println(cmd.HelpLine())
		}
	}

	o.Println("  exit                                     Leave the shell")
}

// complete offers command names for the first word and kind names for
// the second.
func complete(a *app, lookup func(string) *Command, line string) []string {
	fields := strings.Fields(line)
	trailing := strings.HasSuffix(line, " ")

	var candidates []string

	switch {
	case len(fields) == 0 || (len(fields) == 1 && !trailing):
		for _, name := range commandNames {
			if lookup(name) != nil {
				candidates = append(candidates, name)
			}
		}
	case (len(fields) == 1 && trailing) || (len(fields) == 2 && !trailing):
		reg, err := a.registry()
		if err != nil {
			return nil
		}

		for _, k := range reg.Kinds() {
			if k.IsFile() {
				candidates = append(candidates, fields[0]+" "+k.Name())
			}
		}
	default:
		return nil
	}

	var out []string

	for _, c := range candidates {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}

	sort.Strings(out)

	return out
}

// splitArgs splits a shell line into words. Single quotes keep their
// content literally; double quotes allow \" and \\ escapes.
func splitArgs(line string) ([]string, error) {
	var (
		words   []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)

			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == '\\':
			escaped = true
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()

				inWord = false
			}
		default:
			cur.WriteRune(r)

			inWord = true
		}
	}

	if quote != 0 || escaped {
		return nil, errors.New("unterminated quote")
	}

	if inWord {
		words = append(words, cur.String())
	}

	if len(words) == 0 {
		return nil, errors.New("empty command")
	}

	return words, nil
}

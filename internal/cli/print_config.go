package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Print the resolved configuration and the config files it came from.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			execPrintConfig(o, a.cfg)

			return nil
		},
	}
}

func execPrintConfig(o *IO, cfg Config) {
	if formatted := FormatConfig(cfg); formatted != "" {
		o.Println(formatted)
	}

	o.Println("")
	o.Println("# Sources:")

	if cfg.Sources.Global != "" {
		o.Println("#   global:", cfg.Sources.Global)
	}

	if cfg.Sources.Project != "" {
		o.Println("#   project:", cfg.Sources.Project)
	}

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		o.Println("#   (using defaults only)")
	}
}

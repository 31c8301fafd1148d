package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/kalikit/version"
)

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// No config is needed to report the build.
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return checkOutput(a.output)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(*cobra.Command, []string) error {
			if ok, err := encode(a.stdout, a.output, version.Get()); ok {
				return err
			}
			_, err := fmt.Fprintf(a.stdout, "kalikit %s\n", version.Get())
			return err
		},
	}
}

func newConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			format := a.output
			if format == outputText {
				format = outputYAML
			}
			_, err := encode(a.stdout, format, a.cfg.Redacted())
			return err
		},
	}
}

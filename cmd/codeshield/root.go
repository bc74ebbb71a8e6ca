package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brad07/codeshield/pkg/config"
	"github.com/brad07/codeshield/pkg/output"
)

type buildInfo struct {
	version string
	commit  string
	date    string
}

func (b buildInfo) String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", b.version, b.commit, b.date)
}

// exitError carries a non-zero exit status without an error message, used
// when findings cross the --fail-on threshold.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

type rootOptions struct {
	configPath string
	color      string
	verbose    bool
}

func newRootCmd(info buildInfo) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "codeshield",
		Short:         "CodeShield static security scanner",
		Long:          `Scan source code for security vulnerabilities with signature matching and optional LLM review.`,
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch mode := output.ColorMode(opts.color); mode {
			case output.ColorModeAuto, output.ColorModeAlways, output.ColorModeNever:
				output.InitColors(mode, os.Stdout)
			default:
				return fmt.Errorf("invalid --color value %q: must be auto, always or never", opts.color)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration file (default ~/.codeshield/config.yaml)")
	root.PersistentFlags().StringVar(&opts.color, "color", "auto", "Colorize output: auto, always, never")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output and debug logging")

	root.AddCommand(
		newScanCmd(opts, info),
		newSignaturesCmd(opts),
		newInitCmd(),
		newVersionCmd(info),
	)
	return root
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newVersionCmd(info buildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "codeshield %s\n", info)
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, created, err := config.Initialize()
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", path)
			}
			return nil
		},
	}
}

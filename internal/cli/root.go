// Package cli implements the tally command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/tally/internal/config"
	"github.com/wesleyorama2/tally/internal/logging"
	"github.com/wesleyorama2/tally/internal/output"
)

var version = "0.1.0"

type envKey struct{}

// env is the state shared by every subcommand, built before it runs.
type env struct {
	cfg     *config.Config
	printer *output.Printer
	log     *slog.Logger
}

func envFrom(cmd *cobra.Command) *env {
	if e, ok := cmd.Context().Value(envKey{}).(*env); ok {
		return e
	}
	return nil
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "tally",
		Short:   "Approximate usage telemetry from event streams",
		Version: version,
		Long: `Tally aggregates feature usage events into multi-interval rate
rollups, count-min frequency estimates and latency percentiles, in fixed
memory and without locks on the recording path.

Replay an NDJSON event log:
  tally replay events.ndjson

Generate synthetic load:
  tally simulate --rate 2000 --workers 8 --duration 30s`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "configuration file (YAML or JSON)")
	flags.Bool("no-color", false, "disable colored output")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Bool("log-json", false, "write logs as JSON")
	flags.StringP("format", "o", "text", "output format: text, json, yaml")

	root.AddCommand(newReplayCmd())
	root.AddCommand(newSimulateCmd())
	root.AddCommand(newClampCmd())
	root.AddCommand(newValidateCmd())
	return root
}

// setup loads configuration, initializes logging and prepares the printer.
func setup(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	noColor, _ := cmd.Flags().GetBool("no-color")
	formatName, _ := cmd.Flags().GetString("format")

	format, err := output.ParseFormat(formatName)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if configPath != "" && cmd.Name() != "validate" {
		if cfg, err = config.LoadConfig(configPath); err != nil {
			return fmt.Errorf("load %s: %w", configPath, err)
		}
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Logging.JSON, _ = cmd.Flags().GetBool("log-json")
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logging.InitWriter(cmd.ErrOrStderr(), level, cfg.Logging.JSON)

	e := &env{
		cfg:     cfg,
		printer: output.NewPrinter(cmd.OutOrStdout(), format, noColor),
		log:     logging.Component("cli").With("command", cmd.Name()),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, envKey{}, e))
	return nil
}

// Execute runs the root command with the process arguments.
func Execute() error {
	return ExecuteContext(context.Background(), os.Args[1:])
}

// ExecuteContext runs the root command with args. Errors are printed to
// stderr before being returned.
func ExecuteContext(ctx context.Context, args []string) error {
	root := NewRootCmd()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err != nil {
		var verrs *config.ValidationErrors
		if errors.As(err, &verrs) {
			fmt.Fprintf(root.ErrOrStderr(), "%s %s\n", output.ErrorIcon(true), strings.TrimRight(verrs.Error(), "\n"))
		} else {
			fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		}
	}
	return err
}

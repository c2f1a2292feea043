package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/tally/internal/config"
	"github.com/wesleyorama2/tally/internal/output"
)

var errInvalidConfig = errors.New("configuration is invalid")

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config]",
		Short: "Check a configuration file",
		Long: `Check a configuration file against the configuration schema and the
semantic rules applied at load time, and list every problem found. The
file may be given as an argument or with --config.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runValidate,
	}

	cmd.Flags().Bool("print-schema", false, "print the configuration JSON Schema and exit")
	return cmd
}

type validationResult struct {
	File   string   `json:"file" yaml:"file"`
	Valid  bool     `json:"valid" yaml:"valid"`
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	e := envFrom(cmd)

	if printSchema, _ := cmd.Flags().GetBool("print-schema"); printSchema {
		_, err := cmd.OutOrStdout().Write(config.Schema())
		return err
	}

	path, _ := cmd.Flags().GetString("config")
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return errors.New("no configuration file given")
	}

	result := validationResult{File: path, Valid: true}
	_, err := config.LoadConfig(path)
	if err != nil {
		var verrs *config.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		result.Valid = false
		for _, ve := range verrs.Errors {
			result.Errors = append(result.Errors, ve.Error())
		}
	}

	if e.printer.Format() != output.FormatText {
		if err := e.printer.Structured(result); err != nil {
			return err
		}
	} else if result.Valid {
		e.printer.Success("%s is valid", path)
	} else {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s has %d problem(s):\n", output.ErrorIcon(true), path, len(result.Errors))
		for _, msg := range result.Errors {
			fmt.Fprintf(out, "  - %s\n", msg)
		}
	}

	if !result.Valid {
		return errInvalidConfig
	}
	return nil
}

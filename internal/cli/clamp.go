package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/tally/internal/output"
	"github.com/wesleyorama2/tally/internal/telemetry/clamp"
)

const (
	strategySegmented   = "segmented"
	strategySignificant = "significant"
)

func newClampCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clamp [values...]",
		Short: "Show how values are quantized",
		Long: `Print the value each input clamps to. The segmented strategy is the
microsecond clamp used for latency keys; the significant strategy rounds
to a number of significant decimal digits.

  tally clamp 110 1650 5000
  tally clamp --strategy significant --digits 3 123456
  tally clamp --list`,
		RunE: runClamp,
	}

	cmd.Flags().String("strategy", strategySegmented, "clamp strategy: segmented or significant")
	cmd.Flags().Int("digits", 2, "significant digits for the significant strategy")
	cmd.Flags().Bool("list", false, "list every value the segmented clamp can produce")
	return cmd
}

func runClamp(cmd *cobra.Command, args []string) error {
	e := envFrom(cmd)
	strategy, _ := cmd.Flags().GetString("strategy")
	digits, _ := cmd.Flags().GetInt("digits")
	list, _ := cmd.Flags().GetBool("list")

	var c clamp.Clamper
	switch strategy {
	case strategySegmented:
		c = clamp.Microseconds
	case strategySignificant:
		sd, err := clamp.NewSignificantDigits(digits)
		if err != nil {
			return err
		}
		c = sd
	default:
		return fmt.Errorf("unknown strategy %q (want %s or %s)", strategy, strategySegmented, strategySignificant)
	}

	if list {
		if strategy != strategySegmented {
			return errors.New("--list is only available for the segmented strategy")
		}
		return e.printer.Structured(struct {
			Max      int64   `json:"max" yaml:"max"`
			Segments []int   `json:"segments" yaml:"segments"`
			Values   []int64 `json:"values" yaml:"values,flow"`
		}{
			Max:      clamp.Microseconds.Max(),
			Segments: clamp.Microseconds.SegmentsPossibleValuesCount(),
			Values:   clamp.Microseconds.PossibleValues(),
		})
	}

	if len(args) == 0 {
		return errors.New("no values given")
	}

	rows := make([]output.ClampRow, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", a, err)
		}
		rows = append(rows, output.ClampRow{Input: v, Output: c.Clamp(v)})
	}

	name := strategy
	if strategy == strategySignificant {
		name = fmt.Sprintf("%s (%d digits)", strategy, digits)
	}
	return e.printer.ClampTable(name, rows)
}

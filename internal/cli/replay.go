package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/tally/internal/events"
	"github.com/wesleyorama2/tally/internal/logging"
	"github.com/wesleyorama2/tally/internal/usage"
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [file|-]",
		Short: "Aggregate an NDJSON event log",
		Long: `Read one JSON event per line and report interval rollups, feature
estimates and latency percentiles. Events use their own timestamps, so a
log can be replayed at any speed. With no file, or "-", events are read
from standard input.

Each event needs a timestamp in ticks (or an RFC 3339 string); feature,
count and duration (microseconds) are optional. Field paths are set in the
events.fields section of the configuration file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runReplay,
	}

	cmd.Flags().Bool("skip-malformed", false, "skip lines that cannot be decoded instead of failing")
	cmd.Flags().StringSlice("features", nil, "only report these features")
	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	e := envFrom(cmd)
	features, _ := cmd.Flags().GetStringSlice("features")
	skip := e.cfg.Events.SkipMalformed
	if cmd.Flags().Changed("skip-malformed") {
		skip, _ = cmd.Flags().GetBool("skip-malformed")
	}

	in := cmd.InOrStdin()
	source := "stdin"
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in, source = f, args[0]
	}

	clock := &usage.ManualClock{}
	tracker, err := usage.New(e.cfg.TrackerOptions(clock, logging.Component("usage")))
	if err != nil {
		return err
	}

	dec, err := events.NewDecoder(in, e.cfg.FieldMap(), e.cfg.TickDuration())
	if err != nil {
		return err
	}

	var n, skipped, late int
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var lerr *events.LineError
		if errors.As(err, &lerr) && skip {
			skipped++
			e.log.Warn("skipping malformed event", "line", lerr.Line, "error", lerr.Err)
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", source, err)
		}

		if ev.Timestamp > clock.Now() {
			clock.Set(ev.Timestamp)
		}
		if !tracker.RecordAt(ev.Timestamp, ev.Feature, ev.Count, ev.DurationUs) {
			late++
		}
		n++
	}

	e.log.Info("replay finished", "source", source, "events", n, "skipped", skipped, "late", late)

	if err := e.printer.Snapshot(fmt.Sprintf("Replay of %s", source), tracker.Snapshot(features...)); err != nil {
		return err
	}
	if skipped > 0 {
		e.printer.Warning("skipped %d malformed line(s)", skipped)
	}
	return nil
}

// Package output renders tally results as colored text, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/tally/internal/usage"
)

// Format represents the available output formats
type Format string

const (
	// FormatText is human-readable text
	FormatText Format = "text"
	// FormatJSON is indented JSON
	FormatJSON Format = "json"
	// FormatYAML is YAML
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
}

// Printer writes results in one format.
type Printer struct {
	w       io.Writer
	format  Format
	noColor bool
	colors  *ColorScheme
}

// NewPrinter returns a Printer writing to w. Colors are disabled when
// noColor is set or w is not a terminal.
func NewPrinter(w io.Writer, format Format, noColor bool) *Printer {
	noColor = noColor || !IsTerminal(w)
	colors := DefaultColorScheme()
	if noColor {
		colors = NoColorScheme()
	}
	return &Printer{w: w, format: format, noColor: noColor, colors: colors}
}

// Format returns the output format.
func (p *Printer) Format() Format {
	return p.format
}

// Structured writes v as JSON or YAML. In text format it falls back to
// YAML, which reads well enough for ad-hoc values.
func (p *Printer) Structured(v any) error {
	if p.format == FormatJSON {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// Success prints a line prefixed with a checkmark. Structured formats
// print nothing.
func (p *Printer) Success(format string, args ...any) {
	if p.format != FormatText {
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", SuccessIcon(p.noColor), fmt.Sprintf(format, args...))
}

// Warning prints a line prefixed with a warning sign. Structured formats
// print nothing.
func (p *Printer) Warning(format string, args ...any) {
	if p.format != FormatText {
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", WarningIcon(p.noColor), fmt.Sprintf(format, args...))
}

// Snapshot renders a tracker snapshot.
func (p *Printer) Snapshot(title string, s usage.Snapshot) error {
	if p.format != FormatText {
		return p.Structured(s)
	}

	c := p.colors
	fmt.Fprintln(p.w, c.Title.Sprint(title))

	dropped := c.Good.Sprint(s.Dropped)
	if s.Dropped > 0 {
		dropped = c.Warn.Sprint(s.Dropped)
	}
	fmt.Fprintf(p.w, "  %s %s   %s %s   %s %s\n",
		c.Label.Sprint("events:"), c.Value.Sprint(s.Events),
		c.Label.Sprint("total:"), c.Value.Sprint(s.RecordedTotal),
		c.Label.Sprint("dropped:"), dropped)
	if s.Rotations > 0 {
		fmt.Fprintf(p.w, "  %s %d\n", c.Label.Sprint("rotations:"), s.Rotations)
	}

	if len(s.Intervals) > 0 {
		fmt.Fprintln(p.w)
		fmt.Fprintln(p.w, c.Title.Sprint("Intervals"))
		tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  NAME\tBUCKETS\tMIN\tMAX\tAVG")
		for _, iv := range s.Intervals {
			fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%.2f\n", iv.Name, iv.Buckets, iv.Min, iv.Max, iv.Average)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if s.LatencyCount > 0 {
		fmt.Fprintln(p.w)
		fmt.Fprintf(p.w, "%s %s\n", c.Title.Sprint("Latency"),
			c.Dim.Sprintf("(%s, %d samples)", s.Backend, s.LatencyCount))
		for _, pv := range s.Percentiles {
			fmt.Fprintf(p.w, "  %s %s\n",
				c.Label.Sprintf("p%-5s", formatQuantile(pv.Quantile)),
				c.Value.Sprint(FormatMicros(pv.Microseconds)))
		}
	}

	if len(s.Features) > 0 {
		fmt.Fprintln(p.w)
		fmt.Fprintf(p.w, "%s %s\n", c.Title.Sprint("Features"),
			c.Dim.Sprintf("(estimates, +%d max overcount)", s.SketchErrorBound))
		tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		for _, f := range s.Features {
			fmt.Fprintf(tw, "  %s\t%d\n", c.Feature.Sprint(f.Name), f.Estimate)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// ClampRow is one line of a clamp table.
type ClampRow struct {
	Input  int64 `json:"input" yaml:"input"`
	Output int64 `json:"output" yaml:"output"`
}

// ClampTable renders input/output pairs of a clamp function.
func (p *Printer) ClampTable(strategy string, rows []ClampRow) error {
	if p.format != FormatText {
		return p.Structured(struct {
			Strategy string     `json:"strategy" yaml:"strategy"`
			Rows     []ClampRow `json:"rows" yaml:"rows"`
		}{strategy, rows})
	}

	fmt.Fprintln(p.w, p.colors.Title.Sprint(strategy))
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, r := range rows {
		fmt.Fprintf(tw, "  %d\t→\t%s\t\n", r.Input, p.colors.Value.Sprint(r.Output))
	}
	return tw.Flush()
}

// FormatMicros renders microseconds as a rounded duration.
func FormatMicros(us int64) string {
	d := time.Duration(us) * time.Microsecond
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond).String()
	}
	return d.String()
}

func formatQuantile(q float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", q*100), "0"), ".")
}

// Package events decodes newline-delimited JSON usage events.
//
// Each non-blank line is one JSON object. The fields that carry the
// timestamp, feature name, count and duration are located with paths from a
// FieldMap, so logs with different layouts can be replayed without
// preprocessing.
package events

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/tally/pkg/jsonpath"
)

// NoDuration is the Duration of an event that carries none.
const NoDuration int64 = -1

// maxLineSize bounds a single event line.
const maxLineSize = 1 << 20

var (
	// ErrMalformed is wrapped by every decoding error for a bad line.
	ErrMalformed = errors.New("malformed event")

	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("missing field")
)

// Event is one decoded usage event.
type Event struct {
	Timestamp  int64
	Feature    string
	Count      int64
	DurationUs int64
}

// FieldMap names the path of each event field. Paths are JSONPath ($.a.b)
// or gjson (a.b) expressions.
type FieldMap struct {
	Timestamp string `yaml:"timestamp" json:"timestamp"`
	Feature   string `yaml:"feature" json:"feature"`
	Count     string `yaml:"count" json:"count"`
	Duration  string `yaml:"duration" json:"duration"`
}

// DefaultFieldMap reads ts, feature, count and durationUs from the top
// level of each object.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		Timestamp: "ts",
		Feature:   "feature",
		Count:     "count",
		Duration:  "durationUs",
	}
}

// WithDefaults fills empty paths from DefaultFieldMap.
func (f FieldMap) WithDefaults() FieldMap {
	def := DefaultFieldMap()
	if f.Timestamp == "" {
		f.Timestamp = def.Timestamp
	}
	if f.Feature == "" {
		f.Feature = def.Feature
	}
	if f.Count == "" {
		f.Count = def.Count
	}
	if f.Duration == "" {
		f.Duration = def.Duration
	}
	return f
}

// LineError reports a decoding failure on one input line.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

type paths struct {
	ts, feature, count, duration jsonpath.Path
}

// Decoder reads events from a stream.
type Decoder struct {
	scanner *bufio.Scanner
	paths   paths
	tick    time.Duration
	line    int
}

// NewDecoder returns a Decoder reading from r. Numeric timestamps are taken
// as ticks; RFC 3339 string timestamps are converted to ticks of the given
// duration since the Unix epoch.
func NewDecoder(r io.Reader, fields FieldMap, tick time.Duration) (*Decoder, error) {
	fields = fields.WithDefaults()
	if tick <= 0 {
		tick = time.Millisecond
	}

	var p paths
	var err error
	for _, f := range []struct {
		dst  *jsonpath.Path
		expr string
		name string
	}{
		{&p.ts, fields.Timestamp, "timestamp"},
		{&p.feature, fields.Feature, "feature"},
		{&p.count, fields.Count, "count"},
		{&p.duration, fields.Duration, "duration"},
	} {
		if *f.dst, err = jsonpath.Compile(f.expr); err != nil {
			return nil, fmt.Errorf("%s path: %w", f.name, err)
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{scanner: sc, paths: p, tick: tick}, nil
}

// Line returns the number of the last line read.
func (d *Decoder) Line() int {
	return d.line
}

// Next returns the next event. It returns io.EOF when the input is
// exhausted and a *LineError wrapping ErrMalformed for a bad line; decoding
// can continue after a LineError.
func (d *Decoder) Next() (Event, error) {
	for d.scanner.Scan() {
		d.line++
		raw := d.scanner.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}

		ev, err := d.decode(raw)
		if err != nil {
			return Event{}, &LineError{Line: d.line, Err: err}
		}
		return ev, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Event{}, fmt.Errorf("read events: %w", err)
	}
	return Event{}, io.EOF
}

func (d *Decoder) decode(raw []byte) (Event, error) {
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return Event{}, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}

	ev := Event{Count: 1, DurationUs: NoDuration}

	ts := d.paths.ts.Get(raw)
	if !ts.Exists() {
		return Event{}, fmt.Errorf("%w: %w %q", ErrMalformed, ErrMissingField, d.paths.ts)
	}
	v, err := d.timestamp(ts)
	if err != nil {
		return Event{}, fmt.Errorf("%w: timestamp: %w", ErrMalformed, err)
	}
	ev.Timestamp = v

	if f := d.paths.feature.Get(raw); f.Exists() && f.Type != gjson.Null {
		ev.Feature = f.String()
	}

	if c := d.paths.count.Get(raw); c.Exists() {
		if c.Type != gjson.Number {
			return Event{}, fmt.Errorf("%w: count is %s, not a number", ErrMalformed, c.Type)
		}
		ev.Count = c.Int()
	}

	if du := d.paths.duration.Get(raw); du.Exists() && du.Type != gjson.Null {
		if du.Type != gjson.Number {
			return Event{}, fmt.Errorf("%w: duration is %s, not a number", ErrMalformed, du.Type)
		}
		ev.DurationUs = max(du.Int(), 0)
	}

	return ev, nil
}

func (d *Decoder) timestamp(r gjson.Result) (int64, error) {
	switch r.Type {
	case gjson.Number:
		f := r.Float()
		if math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64 {
			return 0, fmt.Errorf("%s out of range", r.Raw)
		}
		return r.Int(), nil
	case gjson.String:
		t, err := time.Parse(time.RFC3339Nano, r.Str)
		if err != nil {
			return 0, err
		}
		return t.UnixNano() / int64(d.tick), nil
	default:
		return 0, fmt.Errorf("unsupported type %s", r.Type)
	}
}

// ReadAll decodes every event in r. Malformed lines are passed to onError;
// if onError is nil or returns a non-nil error, decoding stops with that
// error.
func ReadAll(r io.Reader, fields FieldMap, tick time.Duration, onError func(*LineError) error) ([]Event, error) {
	dec, err := NewDecoder(r, fields, tick)
	if err != nil {
		return nil, err
	}

	var out []Event
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		var lerr *LineError
		if errors.As(err, &lerr) {
			if onError == nil {
				return out, lerr
			}
			if cbErr := onError(lerr); cbErr != nil {
				return out, cbErr
			}
			continue
		}
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
}

package percentile

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/wesleyorama2/tally/internal/telemetry/clamp"
)

// Backend names accepted by NewEstimator.
const (
	BackendClamped  = "clamped"
	BackendHDR      = "hdr"
	BackendDDSketch = "ddsketch"
)

// ErrUnknownBackend is returned by NewEstimator for an unrecognized name.
var ErrUnknownBackend = errors.New("percentile: unknown backend")

// Estimator is a percentile sink over microsecond measurements.
type Estimator interface {
	ReportMicroseconds(us int64)
	ReportDuration(d time.Duration)
	GetPercentile(p float64) int64
	Count() int64
	Reset()
}

var (
	_ Estimator = (*Sink)(nil)
	_ Estimator = (*HDRSink)(nil)
	_ Estimator = (*DDSink)(nil)
)

// Backends lists the names NewEstimator accepts.
func Backends() []string {
	return []string{BackendClamped, BackendHDR, BackendDDSketch}
}

// NewEstimator builds the named backend. An empty name selects the clamped
// Sink.
func NewEstimator(backend string) (Estimator, error) {
	switch backend {
	case "", BackendClamped:
		return NewSink(), nil
	case BackendHDR:
		return NewHDRSink(clamp.Microseconds.Max(), 3), nil
	case BackendDDSketch:
		return NewDDSink(0.01)
	default:
		return nil, fmt.Errorf("%q: %w", backend, ErrUnknownBackend)
	}
}

// HDRSink is an Estimator backed by an HdrHistogram. The histogram is not
// safe for concurrent writes, so every call takes a mutex.
type HDRSink struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram

	maxValue int64
}

// NewHDRSink tracks values from 0 to maxUs with sigFigs significant figures.
func NewHDRSink(maxUs int64, sigFigs int) *HDRSink {
	return &HDRSink{
		hist:     hdrhistogram.New(1, maxUs, sigFigs),
		maxValue: maxUs,
	}
}

// ReportMicroseconds records us, saturating at the configured range.
func (h *HDRSink) ReportMicroseconds(us int64) {
	us = min(max(us, 0), h.maxValue)

	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.hist.RecordValue(us)
}

// ReportDuration records d in microseconds.
func (h *HDRSink) ReportDuration(d time.Duration) {
	h.ReportMicroseconds(d.Microseconds())
}

// GetPercentile returns the p-th percentile, with p in [0, 1].
func (h *HDRSink) GetPercentile(p float64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hist.TotalCount() == 0 {
		return 0
	}
	return h.hist.ValueAtQuantile(min(max(p, 0), 1) * 100)
}

// Count returns the number of recorded values.
func (h *HDRSink) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.TotalCount()
}

// Reset discards every recorded value.
func (h *HDRSink) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hist.Reset()
}

// DDSink is an Estimator backed by a DDSketch with relative-accuracy
// guarantees. Like HDRSink it serializes access with a mutex.
type DDSink struct {
	mu     sync.Mutex
	sketch *ddsketch.DDSketch
}

// NewDDSink creates a DDSink with the given relative accuracy.
func NewDDSink(accuracy float64) (*DDSink, error) {
	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return nil, fmt.Errorf("create ddsketch: %w", err)
	}
	return &DDSink{sketch: sketch}, nil
}

// ReportMicroseconds records us. Negative values are recorded as zero.
func (d *DDSink) ReportMicroseconds(us int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.sketch.Add(float64(max(us, 0)))
}

// ReportDuration records dur in microseconds.
func (d *DDSink) ReportDuration(dur time.Duration) {
	d.ReportMicroseconds(dur.Microseconds())
}

// GetPercentile returns the p-th percentile rounded to the nearest
// microsecond, with p in [0, 1].
func (d *DDSink) GetPercentile(p float64) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, err := d.sketch.GetValueAtQuantile(min(max(p, 0), 1))
	if err != nil {
		return 0
	}
	return int64(v + 0.5)
}

// Count returns the number of recorded values.
func (d *DDSink) Count() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.sketch.GetCount())
}

// Reset empties the sketch, keeping its index mapping.
func (d *DDSink) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sketch.Clear()
}

// Package sketch provides a concurrent count-min sketch.
//
// The sketch answers "how often was key k seen?" in fixed memory. Estimates
// never undercount; hash collisions can inflate them by a bounded amount
// controlled by the width and depth of the counter matrix.
package sketch

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"

	"github.com/wesleyorama2/tally/internal/telemetry/atomicx"
	"github.com/wesleyorama2/tally/internal/telemetry/hashfamily"
)

// ErrInvalidDimensions is returned when depth or width is not positive.
var ErrInvalidDimensions = errors.New("sketch: depth and width must be positive")

// CountMin is a depth×width count-min sketch. Each row uses its own member
// of a pairwise-independent hash family. All methods are safe for
// concurrent use and never block.
type CountMin struct {
	depth  int
	width  int
	hashes []hashfamily.Hash

	// cells is replaced wholesale by Reset.
	cells atomic.Pointer[matrix]
}

type matrix struct {
	counters []atomic.Int64 // row-major, depth*width
	total    atomic.Int64
}

// New builds a sketch with the given dimensions, drawing row hash functions
// from rng.
func New(depth, width int, rng *rand.Rand) (*CountMin, error) {
	if depth <= 0 || width <= 0 {
		return nil, fmt.Errorf("depth=%d width=%d: %w", depth, width, ErrInvalidDimensions)
	}

	cm := &CountMin{
		depth:  depth,
		width:  width,
		hashes: hashfamily.NewSet(depth, rng),
	}
	cm.cells.Store(newMatrix(depth * width))
	return cm, nil
}

// NewWithErrorBounds sizes a sketch so that, with probability 1-delta, an
// estimate exceeds the true count by at most epsilon times the total count.
func NewWithErrorBounds(epsilon, delta float64, rng *rand.Rand) (*CountMin, error) {
	depth, width, err := Dimensions(epsilon, delta)
	if err != nil {
		return nil, err
	}
	return New(depth, width, rng)
}

// Dimensions returns the depth ceil(ln(1/delta)) and width ceil(e/epsilon)
// that give the error bounds of NewWithErrorBounds.
func Dimensions(epsilon, delta float64) (depth, width int, err error) {
	if epsilon <= 0 || epsilon >= 1 || delta <= 0 || delta >= 1 {
		return 0, 0, fmt.Errorf("epsilon=%g delta=%g: %w", epsilon, delta, ErrInvalidDimensions)
	}
	width = int(math.Ceil(math.E / epsilon))
	depth = int(math.Ceil(math.Log(1 / delta)))
	return depth, width, nil
}

func newMatrix(size int) *matrix {
	return &matrix{counters: make([]atomic.Int64, size)}
}

// InterlockedAdd adds count occurrences of key. Non-positive counts are
// ignored: cells only ever grow.
func (cm *CountMin) InterlockedAdd(key uint32, count int64) {
	if count <= 0 {
		return
	}
	m := cm.cells.Load()
	for row, h := range cm.hashes {
		cell := &m.counters[row*cm.width+int(h.ComputeHash(key)%uint32(cm.width))]
		atomicx.InterlockedAdd(cell, count)
	}
	atomicx.InterlockedAdd(&m.total, count)
}

// Estimate returns the minimum over all rows of key's cells.
func (cm *CountMin) Estimate(key uint32) int64 {
	m := cm.cells.Load()
	est := int64(math.MaxInt64)
	for row, h := range cm.hashes {
		v := m.counters[row*cm.width+int(h.ComputeHash(key)%uint32(cm.width))].Load()
		if v < est {
			est = v
		}
	}
	return est
}

// Total returns the sum of all counts added since the last Reset.
func (cm *CountMin) Total() int64 {
	return cm.cells.Load().total.Load()
}

// ErrorBound returns the additive overcount that estimates stay within with
// probability 1-e^-depth: e/width times the total count.
func (cm *CountMin) ErrorBound() int64 {
	return int64(math.Ceil(math.E / float64(cm.width) * float64(cm.Total())))
}

// Reset discards all counts by swapping in a fresh matrix. Adds racing with
// Reset land in either the old or the new matrix.
func (cm *CountMin) Reset() {
	cm.cells.Store(newMatrix(cm.depth * cm.width))
}

// Depth returns the number of rows.
func (cm *CountMin) Depth() int { return cm.depth }

// Width returns the number of counters per row.
func (cm *CountMin) Width() int { return cm.width }

// Package rate paces synthetic event generation.
package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Pacer spaces events evenly at a target rate using a leaky bucket.
//
// The bucket tracks a virtual drip time that advances by 1/rate per event.
// Next returns when the next event is due; a caller that has fallen behind
// gets the current time back and runs immediately, up to burst events.
//
// Pacer is safe for concurrent use. Workers sharing one Pacer together
// produce the target rate.
type Pacer struct {
	mu          sync.Mutex
	rate        float64 // events per second
	burst       float64
	accumulated float64
	lastDrip    time.Time
	now         func() time.Time

	scheduled atomic.Int64
	waited    atomic.Int64 // nanoseconds
}

// NewPacer returns a Pacer emitting rate events per second with no
// bursting.
func NewPacer(rate float64) *Pacer {
	return NewPacerWithBurst(rate, 1)
}

// NewPacerWithBurst allows up to burst overdue events to run back to back.
// A non-positive rate is treated as one event per second; burst is at
// least 1.
func NewPacerWithBurst(rate, burst float64) *Pacer {
	p := &Pacer{now: time.Now}
	p.rate = sanitizeRate(rate)
	p.burst = max(burst, 1)
	p.lastDrip = p.now()
	return p
}

func sanitizeRate(rate float64) float64 {
	if rate <= 0 {
		return 1
	}
	return rate
}

// Next reserves the next slot and returns when it starts. The time may be
// in the past.
func (p *Pacer) Next() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if elapsed := now.Sub(p.lastDrip).Seconds(); elapsed > 0 {
		p.accumulated = min(p.accumulated+elapsed*p.rate, p.burst)
	}

	p.scheduled.Add(1)

	if p.accumulated >= 1 {
		p.accumulated--
		p.lastDrip = now
		return now
	}

	wait := time.Duration((1 - p.accumulated) / p.rate * float64(time.Second))
	next := now.Add(wait)
	p.accumulated = 0

	// The drip moves to the reserved slot so that waking at next does not
	// count the sleep as accumulated credit.
	p.lastDrip = next
	p.waited.Add(int64(wait))
	return next
}

// Wait blocks until the next slot or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	d := time.Until(p.Next())
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SetRate changes the target rate. Accumulated credit is discarded so a
// rate change never causes a burst.
func (p *Pacer) SetRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rate = sanitizeRate(rate)
	p.accumulated = 0
	p.lastDrip = p.now()
}

// Rate returns the target rate in events per second.
func (p *Pacer) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// Stats describes a Pacer's activity.
type Stats struct {
	Rate      float64       `json:"rate" yaml:"rate"`
	Burst     float64       `json:"burst" yaml:"burst"`
	Scheduled int64         `json:"scheduled" yaml:"scheduled"`
	Waited    time.Duration `json:"waited" yaml:"waited"`
}

// Stats returns the current rate, burst and counters.
func (p *Pacer) Stats() Stats {
	p.mu.Lock()
	rate, burst := p.rate, p.burst
	p.mu.Unlock()

	return Stats{
		Rate:      rate,
		Burst:     burst,
		Scheduled: p.scheduled.Load(),
		Waited:    time.Duration(p.waited.Load()),
	}
}

// Reset clears credit and counters.
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.accumulated = 0
	p.lastDrip = p.now()
	p.scheduled.Store(0)
	p.waited.Store(0)
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/tally/internal/logging"
	"github.com/wesleyorama2/tally/internal/rate"
	"github.com/wesleyorama2/tally/internal/usage"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Record synthetic usage from concurrent workers",
		Long: `Drive a tracker with synthetic events from several goroutines sharing
one rate limiter, then print what was recorded. Each event picks a random
feature and a random latency up to the configured maximum.

  tally simulate --rate 5000 --workers 8 --duration 1m --rotate-every 15s`,
		Args: cobra.NoArgs,
		RunE: runSimulate,
	}

	flags := cmd.Flags()
	flags.Float64("rate", 0, "events per second across all workers")
	flags.Int("workers", 0, "number of recording goroutines")
	flags.Duration("duration", 0, "how long to run")
	flags.StringSlice("features", nil, "feature names to draw from")
	flags.Uint64("seed", 0, "random seed (0 picks one)")
	flags.Duration("rotate-every", 0, "print and reset a snapshot at this period (0 disables)")
	return cmd
}

// simulation is a resolved simulate run.
type simulation struct {
	rate        float64
	burst       float64
	workers     int
	duration    time.Duration
	features    []string
	maxLatency  time.Duration
	rotateEvery time.Duration
	seed        uint64
}

func simulationFrom(cmd *cobra.Command, e *env) simulation {
	sc := e.cfg.Simulate
	s := simulation{
		rate:        sc.Rate,
		burst:       sc.Burst,
		workers:     sc.Workers,
		duration:    time.Duration(sc.Duration),
		features:    sc.Features,
		maxLatency:  time.Duration(sc.MaxLatency),
		rotateEvery: time.Duration(sc.RotateEvery),
		seed:        sc.Seed,
	}

	flags := cmd.Flags()
	if flags.Changed("rate") {
		s.rate, _ = flags.GetFloat64("rate")
	}
	if flags.Changed("workers") {
		s.workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("duration") {
		s.duration, _ = flags.GetDuration("duration")
	}
	if flags.Changed("features") {
		s.features, _ = flags.GetStringSlice("features")
	}
	if flags.Changed("seed") {
		s.seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("rotate-every") {
		s.rotateEvery, _ = flags.GetDuration("rotate-every")
	}
	if s.seed == 0 {
		s.seed = rand.Uint64()
	}
	return s
}

func (s simulation) validate() error {
	switch {
	case s.rate <= 0:
		return fmt.Errorf("rate must be positive, got %g", s.rate)
	case s.workers <= 0:
		return fmt.Errorf("workers must be positive, got %d", s.workers)
	case s.duration <= 0:
		return fmt.Errorf("duration must be positive, got %s", s.duration)
	case len(s.features) == 0:
		return errors.New("at least one feature is required")
	case s.rotateEvery < 0:
		return fmt.Errorf("rotate-every must not be negative, got %s", s.rotateEvery)
	}
	return nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	e := envFrom(cmd)
	sim := simulationFrom(cmd, e)
	if err := sim.validate(); err != nil {
		return err
	}

	clock := usage.NewMonotonicClock(e.cfg.TickDuration())
	tracker, err := usage.New(e.cfg.TrackerOptions(clock, logging.Component("usage")))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, sim.duration)
	defer cancel()

	pacer := rate.NewPacerWithBurst(sim.rate, sim.burst)
	e.log.Info("simulation started",
		"rate", sim.rate,
		"workers", sim.workers,
		"duration", sim.duration,
		"features", len(sim.features),
		"seed", sim.seed)

	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < sim.workers; w++ {
		rng := rand.New(rand.NewPCG(sim.seed, uint64(w)))
		g.Go(func() error {
			return simulateWorker(gctx, tracker, pacer, rng, sim)
		})
	}

	if sim.rotateEvery > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(sim.rotateEvery)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					s := tracker.Rotate()
					title := fmt.Sprintf("Rotation %d", s.Rotations+1)
					if err := e.printer.Snapshot(title, s); err != nil {
						return err
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil && !isDone(err) {
		return err
	}

	ps := pacer.Stats()
	e.log.Info("simulation finished",
		"elapsed", time.Since(started).Round(time.Millisecond),
		"scheduled", ps.Scheduled,
		"waited", ps.Waited.Round(time.Millisecond))

	return e.printer.Snapshot("Simulation", tracker.Snapshot())
}

func simulateWorker(ctx context.Context, tracker *usage.Tracker, pacer *rate.Pacer, rng *rand.Rand, sim simulation) error {
	for {
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
		feature := sim.features[rng.IntN(len(sim.features))]
		var latency time.Duration
		if sim.maxLatency > 0 {
			latency = time.Duration(rng.Int64N(int64(sim.maxLatency)))
		}
		tracker.RecordDuration(feature, latency)
	}
}

// isDone reports whether err only says the run ended on schedule or on a
// signal.
func isDone(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

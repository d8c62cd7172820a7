package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	warperrors "github.com/mirkobrombin/go-warp-sync/v1/errors"
	"github.com/mirkobrombin/go-warp-sync/v1/lock"
)

type benchReport struct {
	Key          string        `json:"key"`
	Workers      int           `json:"workers"`
	Capacity     int           `json:"capacity"`
	Acquisitions int64         `json:"acquisitions"`
	Timeouts     int64         `json:"timeouts"`
	PeakHolders  int32         `json:"peak_holders"`
	Elapsed      time.Duration `json:"elapsed_ns"`
	MeanWait     time.Duration `json:"mean_wait_ns"`
}

func newBenchCmd(a *app) *cobra.Command {
	var (
		workers  int
		capacity int
		rounds   int
		hold     time.Duration
		timeout  time.Duration
		key      string
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Contend for a semaphore from many workers and report what happened",
		Long:  "Acquisitions that run out of --timeout are counted and skipped. Any other error stops the run after the partial report is printed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if key == "" {
				key = "bench:" + uuid.NewString()
			}
			sem, err := lock.NewSemaphore(a.store, key, capacity, a.primitiveOptions()...)
			if err != nil {
				return err
			}
			report, err := runBench(cmd.Context(), a, sem, workers, rounds, hold, timeout)
			return errors.Join(err, printJSON(a.out, report))
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "c", 8, "number of concurrent workers")
	cmd.Flags().IntVarP(&capacity, "capacity", "n", 2, "number of permits")
	cmd.Flags().IntVar(&rounds, "rounds", 10, "acquisitions per worker")
	cmd.Flags().DurationVar(&hold, "hold", 10*time.Millisecond, "how long each permit is held")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "wait budget of a single acquisition")
	cmd.Flags().StringVar(&key, "key", "", "semaphore key (random when empty)")
	return cmd
}

func runBench(ctx context.Context, a *app, sem *lock.Semaphore, workers, rounds int, hold, timeout time.Duration) (benchReport, error) {
	var (
		acquisitions, timeouts, waited atomic.Int64
		inFlight, peak                 atomic.Int32
	)
	a.logger.Info("warp: starting bench", "key", sem.Key(), "workers", workers, "capacity", sem.Capacity(), "rounds", rounds)

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		holder := uuid.NewString()
		g.Go(func() error {
			for r := 0; r < rounds; r++ {
				requested := time.Now()
				err := sem.Do(ctx, func(ctx context.Context) error {
					waited.Add(int64(time.Since(requested)))
					n := inFlight.Add(1)
					defer inFlight.Add(-1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					a.logger.Debug("warp: holding permit", "holder", holder, "round", r)
					select {
					case <-time.After(hold):
					case <-ctx.Done():
						return ctx.Err()
					}
					return nil
				}, lock.WithTimeout(timeout))
				if errors.Is(err, warperrors.ErrTimeout) {
					timeouts.Add(1)
					a.logger.Debug("warp: gave up on permit", "holder", holder, "round", r)
					continue
				}
				if err != nil {
					return fmt.Errorf("holder %s round %d: %w", holder, r, err)
				}
				acquisitions.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()

	report := benchReport{
		Key:          sem.Key(),
		Workers:      workers,
		Capacity:     sem.Capacity(),
		Acquisitions: acquisitions.Load(),
		Timeouts:     timeouts.Load(),
		PeakHolders:  peak.Load(),
		Elapsed:      time.Since(start),
	}
	if report.Acquisitions > 0 {
		report.MeanWait = time.Duration(waited.Load() / report.Acquisitions)
	}
	return report, err
}

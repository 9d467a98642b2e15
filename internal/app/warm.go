package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"equity-analyst/internal/jobs"
)

// Warm runs one watchlist pass in-process and waits for the started jobs.
func (a *App) Warm(ctx context.Context, opts WarmOptions) error {
	tickers := opts.Tickers
	if len(tickers) == 0 {
		tickers = a.Config.Watchlist.Tickers
	}
	if len(tickers) == 0 {
		return errors.New("no tickers given and watchlist.tickers is empty")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	rt := a.startRuntime(ctx, store)
	defer rt.pool.Stop()

	res := rt.svc.Warm(ctx, tickers)
	failed := waitForJobs(ctx, rt.registry, res.Started, time.Second)

	fmt.Fprintf(a.Out, "cached: %d  recomputed: %d  failed: %d  invalid: %d\n",
		res.Cached, len(res.Started)-failed, failed, res.Invalid)
	if failed > 0 {
		return fmt.Errorf("%d of %d analyses failed", failed, len(res.Started))
	}
	return ctx.Err()
}

// waitForJobs blocks until every id is terminal or ctx ends, returning the failure count.
// Jobs still pending when ctx ends count as failed.
func waitForJobs(ctx context.Context, registry jobs.Registry, ids []string, every time.Duration) int {
	remaining := append([]string(nil), ids...)
	failed := 0

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for len(remaining) > 0 {
		next := remaining[:0]
		for _, id := range remaining {
			job, ok := registry.Get(id)
			switch {
			case !ok || job.Status == jobs.StatusFailed:
				failed++
			case job.Status == jobs.StatusPending:
				next = append(next, id)
			}
		}
		remaining = next
		if len(remaining) == 0 {
			break
		}

		select {
		case <-ctx.Done():
			return failed + len(remaining)
		case <-ticker.C:
		}
	}
	return failed
}

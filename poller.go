package gtfsrtarrivals

import (
	"context"
	"time"
)

// Run executes cycles until ctx is cancelled, sleeping the poll interval
// after each one. A cycle that has started always runs to completion or to
// one of its own timeouts; cancellation is only observed while sleeping.
func (p *Pipeline) Run(ctx context.Context) error {
	cycleCtx := context.WithoutCancel(ctx)
	for {
		_, _ = p.Cycle(cycleCtx)

		t := time.NewTimer(p.cfg.PollInterval())
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// RunOnce executes a single cycle
func (p *Pipeline) RunOnce(ctx context.Context) error {
	_, err := p.Cycle(context.WithoutCancel(ctx))
	return err
}

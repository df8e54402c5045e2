package pipeline

import (
	"context"
	"time"
)

// Loop runs the pipeline immediately and then every interval until ctx is
// cancelled. Run-level errors are logged and the next tick retries from the
// same boundary.
func (p *Pipeline) Loop(ctx context.Context, interval, runTimeout time.Duration) {
	p.runOnce(ctx, runTimeout)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx, runTimeout)
		}
	}
}

// RunWithTimeout is Run bounded by timeout. A zero or negative timeout
// means no limit.
func (p *Pipeline) RunWithTimeout(ctx context.Context, timeout time.Duration) (*Report, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.Run(ctx)
}

func (p *Pipeline) runOnce(ctx context.Context, timeout time.Duration) {
	report, err := p.RunWithTimeout(ctx, timeout)
	if err != nil {
		p.log.Error("run", "error", err)
		return
	}
	p.log.Info("run finished",
		"published", report.Count(OutcomePublished),
		"edited", report.Count(OutcomeEdited),
		"moderation", report.Count(OutcomeModeration),
		"rejected", report.Count(OutcomeRejected)+report.Count(OutcomeExcluded),
		"failed", report.Count(OutcomeFailed),
		"boundary", report.Boundary.Hash.Short(),
	)
}

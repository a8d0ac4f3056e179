package syncengine

import (
	"context"
	"time"

	"github.com/mwantia/loadoutsync/internal/loadout"
	"github.com/mwantia/loadoutsync/internal/metrics"
)

// mutation is an optimistic write: apply changes the local collection,
// commit runs the remote write once, and observed tells when a reconciling
// read reflects the write.
type mutation struct {
	op     string
	apply  func()
	commit func(ctx context.Context) error

	// observed is nil for writes that need no reconciling read.
	observed func(loadouts []loadout.Loadout) bool

	// keepOnEmpty leaves the local collection untouched when the
	// reconciling read returns no rows.
	keepOnEmpty bool

	background bool
}

// mutate runs the three phases of m. A failed commit leaves the optimistic
// state in place and returns the error; a later Refresh resynchronizes.
func (e *Engine) mutate(ctx context.Context, m mutation) error {
	start := time.Now()

	m.apply()
	e.gauge()

	err := m.commit(ctx)
	metrics.ObserveOperation(m.op, start, err)
	if err != nil {
		e.log.Error("Failed to %s, local state left for reload: %v", m.op, err)
		return err
	}

	if m.observed == nil {
		return nil
	}

	if m.background {
		e.bg.Add(1)
		go func() {
			defer e.bg.Done()
			e.reconcile(context.WithoutCancel(ctx), m)
		}()
		return nil
	}

	e.reconcile(ctx, m)
	return nil
}

// reconcile polls the first page with backoff until m is observed or the
// attempts run out, then replaces the local collection with the last read.
// Polls do not start a fetch; a read is dropped when a filter change or a
// user fetch began after it was issued.
func (e *Engine) reconcile(ctx context.Context, m mutation) {
	delay := e.backoff.InitialDelay

	for attempt := 1; attempt <= e.backoff.MaxAttempts; attempt++ {
		if !sleep(ctx, delay) {
			return
		}
		delay = min(delay*2, e.backoff.MaxDelay)

		ticket, filter := e.peek()
		p, err := e.fetch(ctx, ticket, filter)
		if err != nil {
			e.log.Warn("Reconciling read after %s failed: %v", m.op, err)
			return
		}

		last := attempt == e.backoff.MaxAttempts
		seen := m.observed(p.loadouts)
		if !seen && !last {
			continue
		}

		metrics.PropagationAttempts.Observe(float64(attempt))
		if !seen {
			e.log.Debug("Write of %s not visible after %d reads", m.op, attempt)
		}

		if p.raw == 0 && m.keepOnEmpty {
			e.log.Debug("Reconciling read after %s returned no rows, keeping local state", m.op)
			return
		}

		if !e.pager.Adopt(ticket, p.cursor, p.raw, func() { e.local.Replace(p.loadouts) }) {
			metrics.StaleResultsDropped.WithLabelValues("reconcile").Inc()
			e.log.Debug("Dropped reconciling read after %s, a newer fetch owns the list", m.op)
			return
		}
		e.gauge()
		return
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func contains(loadouts []loadout.Loadout, id string) bool {
	for _, l := range loadouts {
		if l.ID == id {
			return true
		}
	}
	return false
}

// Package monitor polls for the processes of monitored entries and reports
// when they start and stop.
package monitor

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// Monitor polls a LivenessSource on a fixed interval.
type Monitor struct {
	source   LivenessSource
	clock    clockwork.Clock
	interval time.Duration
}

// New creates a Monitor.
func New(source LivenessSource, clock clockwork.Clock, interval time.Duration) *Monitor {
	return &Monitor{source: source, clock: clock, interval: interval}
}

// Poll returns which of `names` are running, using a single query.
func (m *Monitor) Poll(ctx context.Context, names []string) (Snapshot, error) {
	return m.source.Snapshot(ctx, dedupe(names))
}

// Run calls `tick` every interval until `ctx` is done. Ticks never overlap: a
// tick that runs longer than the interval delays the next one rather than
// queueing several.
func (m *Monitor) Run(ctx context.Context, tick func(context.Context)) {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	log.WithField("interval", m.interval).Debug("Started process monitor")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		tick(ctx)
	}
}

func dedupe(names []string) []string {
	seen := map[string]struct{}{}
	var deduped []string
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		deduped = append(deduped, name)
	}
	return deduped
}

package collector

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
)

// Poller runs a collection pass every interval. Passes never overlap: the
// next one starts only after the previous one returned.
type Poller struct {
	collect  func(context.Context) error
	interval time.Duration
	duration prometheus.Observer
	logger   log.Logger
}

// NewPoller returns a Poller that records the wall-clock time of every pass
// in duration.
func NewPoller(collect func(context.Context) error, interval time.Duration, duration prometheus.Observer, logger log.Logger) *Poller {
	return &Poller{
		collect:  collect,
		interval: interval,
		duration: duration,
		logger:   logger,
	}
}

// Run polls immediately and then on every tick until ctx is done.
// Failed passes are retried at the next tick, there is no backoff.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.poll(ctx)

		select {
		case <-ctx.Done():
			level.Info(p.logger).Log("msg", "Stopping collection loop")
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	timer := prometheus.NewTimer(p.duration)
	err := p.collect(ctx)
	elapsed := timer.ObserveDuration()
	level.Debug(p.logger).Log("msg", "Collection pass finished", "duration_seconds", elapsed.Seconds(), "failed", err != nil)
}

package app

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/example/charkeep/internal/ports/primary"
)

// FlushScheduler delivers periodic ticks to the host event sink.
type FlushScheduler struct {
	events   primary.HostEvents
	interval time.Duration
	logger   hclog.Logger
}

// NewFlushScheduler creates a scheduler ticking every interval.
func NewFlushScheduler(events primary.HostEvents, interval time.Duration, logger hclog.Logger) *FlushScheduler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &FlushScheduler{events: events, interval: interval, logger: logger}
}

// Run ticks until ctx is canceled. Tick failures are logged and do not
// stop the schedule.
func (s *FlushScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Debug("flush scheduler started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("flush scheduler stopped")
			return
		case <-ticker.C:
			if err := s.events.OnPeriodicTick(ctx); err != nil {
				s.logger.Warn("periodic flush had failures", "error", err)
			}
		}
	}
}

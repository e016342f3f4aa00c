package worker

import (
	"context"
	"time"

	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/ignite/sales-celebrations/internal/pkg/logger"
)

const (
	// DefaultMonitorInterval is how often pending claims are scanned.
	DefaultMonitorInterval = 10 * time.Minute

	// DefaultStaleAge is how long a claim may stay pending before it is
	// reported. A send takes seconds; a claim this old belongs to a crashed
	// attempt.
	DefaultStaleAge = 30 * time.Minute
)

// StaleClaimLister is the ledger view the monitor needs.
type StaleClaimLister interface {
	StalePending(ctx context.Context, olderThan time.Duration, limit int) ([]domain.DeliveryClaim, error)
}

// StaleClaimMonitor periodically reports pending claims left behind by
// crashed sends. It never retries them: a pending claim blocks its key until
// an operator resets it, which keeps delivery at-most-once.
type StaleClaimMonitor struct {
	claims   StaleClaimLister
	interval time.Duration
	staleAge time.Duration
}

// NewStaleClaimMonitor creates a monitor; zero durations take the defaults.
func NewStaleClaimMonitor(claims StaleClaimLister, interval, staleAge time.Duration) *StaleClaimMonitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	if staleAge <= 0 {
		staleAge = DefaultStaleAge
	}
	return &StaleClaimMonitor{claims: claims, interval: interval, staleAge: staleAge}
}

// Start scans on every interval. It blocks until ctx is cancelled.
func (m *StaleClaimMonitor) Start(ctx context.Context) {
	logger.Info("worker: stale claim monitor started", "interval", m.interval.String(), "stale_age", m.staleAge.String())

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Scan(ctx)
		}
	}
}

// Scan logs each stale claim and returns how many were found.
func (m *StaleClaimMonitor) Scan(ctx context.Context) int {
	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stale, err := m.claims.StalePending(queryCtx, m.staleAge, 100)
	if err != nil {
		logger.Error("worker: stale claim scan failed", "error", err)
		return 0
	}
	for _, c := range stale {
		logger.Warn("worker: claim stuck pending, reset it to allow redelivery",
			"event_id", c.EventID, "type", c.Type, "channel_id", c.ChannelID,
			"claimed_at", c.ClaimedAt.Format(time.RFC3339))
	}
	return len(stale)
}

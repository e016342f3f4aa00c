package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/ignite/sales-celebrations/internal/pkg/distlock"
	"github.com/ignite/sales-celebrations/internal/pkg/logger"
	"github.com/ignite/sales-celebrations/internal/service/poller"
	"github.com/robfig/cron/v3"
)

// PollRunner executes one poll invocation.
type PollRunner interface {
	Run(ctx context.Context, mode poller.Mode) (poller.Result, error)
}

// LockFactory returns the lock guarding a key.
type LockFactory func(key string) distlock.DistLock

// ScheduleConfig holds the cron expressions of the scheduled variants.
type ScheduleConfig struct {
	Regular         string
	Catchup         string
	Timezone        string
	CatchupLookback time.Duration
	LockPrefix      string
}

// PollScheduler fires the regular and catchup polls on their cron schedules.
// Each tick takes a distributed lock so that replicas do not overlap; a tick
// that finds the lock held is skipped.
type PollScheduler struct {
	runner PollRunner
	locks  LockFactory
	cfg    ScheduleConfig
	parser cron.Parser
	loc    *time.Location

	mu      sync.Mutex
	c       *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	skipped map[domain.PollVariant]int
}

// NewPollScheduler validates the schedule. locks may be nil for a single
// replica deployment.
func NewPollScheduler(cfg ScheduleConfig, runner PollRunner, locks LockFactory) (*PollScheduler, error) {
	tz := strings.TrimSpace(cfg.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{"regular": cfg.Regular, "catchup": cfg.Catchup} {
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			return nil, fmt.Errorf("parse %s schedule %q: %w", name, spec, err)
		}
	}

	return &PollScheduler{
		runner:  runner,
		locks:   locks,
		cfg:     cfg,
		parser:  parser,
		loc:     loc,
		skipped: map[domain.PollVariant]int{},
	}, nil
}

// Start registers the schedules and starts firing. An empty expression
// disables that variant.
func (s *PollScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return errors.New("poll scheduler already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if s.cfg.Regular != "" {
		if _, err := c.AddFunc(s.cfg.Regular, func() { s.Tick(s.ctx, poller.Regular()) }); err != nil {
			s.cancel()
			return err
		}
	}
	if s.cfg.Catchup != "" {
		if _, err := c.AddFunc(s.cfg.Catchup, func() { s.Tick(s.ctx, poller.Catchup(s.cfg.CatchupLookback)) }); err != nil {
			s.cancel()
			return err
		}
	}
	s.c = c
	c.Start()
	logger.Info("worker: poll scheduler started",
		"regular", s.cfg.Regular, "catchup", s.cfg.Catchup, "tz", s.loc.String())
	return nil
}

// Stop stops firing and waits for a running tick, or for ctx.
func (s *PollScheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		logger.Warn("worker: poll scheduler stop timed out, cancelling running tick")
	}
	s.cancel()
}

// Tick runs one scheduled poll under the variant's lock.
func (s *PollScheduler) Tick(ctx context.Context, mode poller.Mode) {
	run := func(ctx context.Context) error {
		res, err := s.runner.Run(ctx, mode)
		if err != nil {
			return err
		}
		if !res.Disabled {
			logger.Info("worker: scheduled poll finished",
				"variant", mode.Variant, "run_id", res.RunID,
				"found", res.EstimatesFound, "sent", res.CelebrationsSent, "success", res.Success)
		}
		return nil
	}

	if s.locks == nil {
		if err := run(ctx); err != nil {
			logger.Error("worker: scheduled poll failed", "variant", mode.Variant, "error", err)
		}
		return
	}

	lock := s.locks(distlock.PollKey(s.cfg.LockPrefix, string(mode.Variant)))
	ran, err := distlock.RunExclusive(ctx, lock, run)
	if err != nil {
		logger.Error("worker: scheduled poll failed", "variant", mode.Variant, "error", err)
	}
	if !ran && err == nil {
		s.mu.Lock()
		s.skipped[mode.Variant]++
		s.mu.Unlock()
		logger.Debug("worker: scheduled poll skipped, another replica holds the lock", "variant", mode.Variant)
	}
}

// Skipped reports how many ticks of a variant found the lock held.
func (s *PollScheduler) Skipped(v domain.PollVariant) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped[v]
}

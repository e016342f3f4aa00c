package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/ignite/sales-celebrations/internal/pkg/logger"
	"github.com/ignite/sales-celebrations/internal/service/classify"
	"github.com/ignite/sales-celebrations/internal/service/content"
	"github.com/ignite/sales-celebrations/internal/service/dispatch"
	"github.com/ignite/sales-celebrations/internal/service/ledger"
)

// Config holds the pacing and limits of a Poller.
type Config struct {
	// Settings are the file/env defaults the settings store overlays.
	Settings   domain.Settings
	BatchSize  int
	BatchPause time.Duration
	MaxErrors  int
	RunTimeout time.Duration
}

// DefaultConfig returns the production pacing.
func DefaultConfig() Config {
	return Config{
		BatchSize:  10,
		BatchPause: 2 * time.Second,
		MaxErrors:  20,
		RunTimeout: 5 * time.Minute,
	}
}

// Result is what a caller sees of one invocation.
type Result struct {
	RunID              string             `json:"runId,omitempty"`
	Variant            domain.PollVariant `json:"variant"`
	EstimatesFound     int                `json:"estimatesFound"`
	EstimatesProcessed int                `json:"estimatesProcessed"`
	EstimatesSkipped   int                `json:"estimatesSkipped"`
	CelebrationsSent   int                `json:"celebrationsSent"`
	DurationMs         int64              `json:"durationMs"`
	Success            bool               `json:"success"`
	Disabled           bool               `json:"disabled,omitempty"`
	Errors             []string           `json:"errors"`
}

// Stats are process-lifetime counters.
type Stats struct {
	Runs             int64 `json:"runs"`
	FailedRuns       int64 `json:"failed_runs"`
	EventsProcessed  int64 `json:"events_processed"`
	CelebrationsSent int64 `json:"celebrations_sent"`
}

// Poller executes poll invocations.
type Poller struct {
	deps Deps
	cfg  Config
	now  func() time.Time

	runs             int64
	failedRuns       int64
	eventsProcessed  int64
	celebrationsSent int64
}

// New creates a Poller.
func New(deps Deps, cfg Config) *Poller {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = def.MaxErrors
	}
	if cfg.BatchPause < 0 {
		cfg.BatchPause = 0
	}
	return &Poller{deps: deps, cfg: cfg, now: time.Now}
}

// WithClock overrides the time source.
func (p *Poller) WithClock(now func() time.Time) *Poller {
	p.now = now
	return p
}

// Stats returns a snapshot of the lifetime counters.
func (p *Poller) Stats() Stats {
	return Stats{
		Runs:             atomic.LoadInt64(&p.runs),
		FailedRuns:       atomic.LoadInt64(&p.failedRuns),
		EventsProcessed:  atomic.LoadInt64(&p.eventsProcessed),
		CelebrationsSent: atomic.LoadInt64(&p.celebrationsSent),
	}
}

// runState is the per-invocation working set.
type runState struct {
	mode     Mode
	settings domain.Settings
	rules    classify.Rules
	run      *domain.PollRun
	result   *Result
	began    time.Time // wall clock, for durations
	seen     []string
	maxErrs  int
}

func (s *runState) addError(format string, args ...any) {
	if len(s.result.Errors) >= s.maxErrs {
		return
	}
	s.result.Errors = append(s.result.Errors, fmt.Sprintf(format, args...))
}

// Run executes one invocation. The returned error is non-nil only for
// malformed configuration; every other failure is reported in the Result.
func (p *Poller) Run(ctx context.Context, mode Mode) (Result, error) {
	began := time.Now()
	start := p.now()
	res := Result{Variant: mode.Variant, Errors: []string{}}

	if p.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RunTimeout)
		defer cancel()
	}

	settings := p.cfg.Settings
	if p.deps.Settings != nil {
		loaded, err := p.deps.Settings.LoadSettings(ctx, settings)
		if err != nil {
			logger.Error("poller: load settings failed", "variant", mode.Variant, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%v: %v", ErrStoreUnavailable, err))
			res.DurationMs = time.Since(began).Milliseconds()
			atomic.AddInt64(&p.failedRuns, 1)
			return res, nil
		}
		settings = loaded
	}
	if err := settings.Validate(); err != nil {
		return res, err
	}

	if mode.Scheduled && !settings.PollingEnabled {
		logger.Info("poller: polling disabled, skipping run", "variant", mode.Variant)
		res.Disabled = true
		res.Success = true
		return res, nil
	}

	st := &runState{
		mode:     mode,
		settings: settings,
		rules:    classify.RulesFrom(settings),
		result:   &res,
		began:    began,
		maxErrs:  p.cfg.MaxErrors,
	}
	p.execute(ctx, st, start)
	return res, nil
}

func (p *Poller) execute(ctx context.Context, st *runState, start time.Time) {
	atomic.AddInt64(&p.runs, 1)
	res := st.result

	window, err := p.window(ctx, st.mode, st.settings, start)
	if err != nil {
		st.addError("%v", err)
		res.DurationMs = time.Since(st.began).Milliseconds()
		atomic.AddInt64(&p.failedRuns, 1)
		logger.Error("poller: resolve window failed", "variant", st.mode.Variant, "error", err)
		return
	}

	run := &domain.PollRun{
		ID:        uuid.New().String(),
		Variant:   st.mode.Variant,
		Window:    window,
		Status:    domain.PollRunRunning,
		StartedAt: start.UTC(),
	}
	st.run = run
	res.RunID = run.ID
	if err := p.deps.Runs.StartRun(ctx, run); err != nil {
		st.addError("%v: %v", ErrStoreUnavailable, err)
		res.DurationMs = time.Since(st.began).Milliseconds()
		atomic.AddInt64(&p.failedRuns, 1)
		logger.Error("poller: record run start failed", "variant", st.mode.Variant, "error", err)
		return
	}

	logger.Info("poller: run started",
		"run_id", run.ID, "variant", run.Variant,
		"window_from", window.From, "window_to", window.To,
	)

	completed := false
	defer func() { p.finish(ctx, st, completed) }()

	events, err := p.deps.Source.FetchSoldAfter(ctx, window.From)
	if err != nil {
		if !errors.Is(err, ErrUpstreamFetch) {
			err = fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
		}
		run.Error = err.Error()
		st.addError("%s", run.Error)
		logger.Error("poller: fetch failed", "run_id", run.ID, "error", err)
		return
	}
	res.EstimatesFound = len(events)

	if p.deps.Archiver != nil && len(events) > 0 {
		if err := p.deps.Archiver.Archive(ctx, *run, events); err != nil {
			logger.Warn("poller: archive batch failed", "run_id", run.ID, "error", err)
		}
	}

	for i, ev := range events {
		if i > 0 && i%p.cfg.BatchSize == 0 && !p.pause(ctx) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		processed, err := p.processEvent(ctx, st, ev)
		switch {
		case errors.Is(err, ErrStoreUnavailable):
			run.Error = err.Error()
			st.addError("event %s: %v", ev.ExternalID, err)
			logger.Error("poller: aborting run", "run_id", run.ID, "event_id", ev.ExternalID, "error", err)
			return
		case err != nil:
			st.addError("event %s: %v", ev.ExternalID, err)
			logger.Warn("poller: event failed", "run_id", run.ID, "event_id", ev.ExternalID, "error", err)
		case processed:
			res.EstimatesProcessed++
			st.seen = append(st.seen, ev.ExternalID)
		default:
			res.EstimatesSkipped++
			st.seen = append(st.seen, ev.ExternalID)
		}
	}

	if err := ctx.Err(); err != nil {
		run.Error = fmt.Sprintf("run interrupted: %v", err)
		st.addError("%s", run.Error)
		logger.Warn("poller: run interrupted", "run_id", run.ID, "error", err)
		return
	}

	if st.mode.Watermark == WatermarkAdvance {
		if err := p.deps.Watermarks.AdvanceWatermark(ctx, domain.PrimaryWatermark, window.To); err != nil {
			run.Error = fmt.Sprintf("advance watermark: %v", err)
			st.addError("%s", run.Error)
			logger.Error("poller: advance watermark failed", "run_id", run.ID, "error", err)
			return
		}
	}
	completed = true
}

// window resolves the sold-at interval for the mode.
func (p *Poller) window(ctx context.Context, mode Mode, s domain.Settings, now time.Time) (domain.Window, error) {
	to := now.UTC()
	if mode.Window == WindowFixedLookback {
		return domain.Window{From: to.Add(-mode.Lookback), To: to}, nil
	}

	buffer := time.Duration(s.LookbackBufferMinutes) * time.Minute
	wm, err := p.deps.Watermarks.Watermark(ctx, domain.PrimaryWatermark)
	if err != nil {
		return domain.Window{}, fmt.Errorf("%w: read watermark: %v", ErrStoreUnavailable, err)
	}
	if wm == nil {
		return domain.Window{From: to.Add(-buffer), To: to}, nil
	}
	return domain.Window{From: wm.LastPollAt.UTC().Add(-buffer), To: to}, nil
}

// pause sleeps between batches. It returns false if the context ended.
func (p *Poller) pause(ctx context.Context) bool {
	if p.cfg.BatchPause <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(p.cfg.BatchPause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (p *Poller) finish(ctx context.Context, st *runState, completed bool) {
	res, run := st.result, st.run
	res.Success = completed
	res.DurationMs = time.Since(st.began).Milliseconds()

	if p.deps.Recent != nil && len(st.seen) > 0 {
		if err := p.deps.Recent.Add(context.WithoutCancel(ctx), st.settings.RecentIDsCacheSize, st.seen...); err != nil {
			logger.Warn("poller: update recent ids failed", "run_id", run.ID, "error", err)
		}
	}

	finished := p.now().UTC()
	run.FinishedAt = &finished
	run.Status = domain.PollRunSuccess
	if !completed {
		run.Status = domain.PollRunError
		atomic.AddInt64(&p.failedRuns, 1)
	}
	run.EventsFound = res.EstimatesFound
	run.EventsProcessed = res.EstimatesProcessed
	run.EventsSkipped = res.EstimatesSkipped
	run.DurationMs = res.DurationMs
	run.Errors = res.Errors

	// Record the outcome even if the run's own context has expired.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.deps.Runs.FinishRun(recordCtx, run); err != nil {
		logger.Error("poller: record run finish failed", "run_id", run.ID, "error", err)
	}

	logger.Info("poller: run finished",
		"run_id", run.ID,
		"variant", run.Variant,
		"status", run.Status,
		"found", res.EstimatesFound,
		"processed", res.EstimatesProcessed,
		"skipped", res.EstimatesSkipped,
		"celebrations", res.CelebrationsSent,
		"errors", len(res.Errors),
		"duration_ms", res.DurationMs,
	)
}

// processEvent handles one event. It returns true when the event was new to
// this run, false when it was short-circuited as already handled.
func (p *Poller) processEvent(ctx context.Context, st *runState, ev domain.SaleEvent) (bool, error) {
	handled, err := p.alreadyHandled(ctx, ev.ExternalID)
	if err != nil || handled {
		return false, err
	}

	sellerName, gender := p.seller(ctx, ev.SellerID)
	customerName := p.customer(ctx, ev.CustomerID)

	cls := classify.Classify(ev, st.rules)

	raw, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("snapshot event: %w", err)
	}
	runID := st.run.ID
	est := &domain.Estimate{
		ExternalID:   ev.ExternalID,
		PollRunID:    &runID,
		SellerID:     ev.SellerID,
		SellerName:   sellerName,
		CustomerID:   ev.CustomerID,
		CustomerName: customerName,
		Amount:       ev.Amount,
		SoldAt:       ev.SoldAt,
		IsBigSale:    cls.IsBigSale,
		IsTGL:        cls.IsTGL,
		Raw:          raw,
	}
	inserted, err := p.deps.Estimates.InsertEstimate(ctx, est)
	if err != nil {
		return false, fmt.Errorf("persist estimate: %w", err)
	}
	if !inserted {
		// A concurrent run stored it first and owns the celebrations.
		logger.Debug("poller: estimate stored concurrently", "event_id", ev.ExternalID)
		return false, nil
	}
	atomic.AddInt64(&p.eventsProcessed, 1)

	for _, t := range cls.Types() {
		if err := p.celebrate(ctx, st, ev, t, sellerName, customerName, gender); err != nil {
			st.addError("event %s %s: %v", ev.ExternalID, t, err)
			logger.Warn("poller: celebration failed", "event_id", ev.ExternalID, "type", t, "error", err)
		}
	}
	return true, nil
}

// alreadyHandled runs the short-circuit checks in cost order. Each check is
// made fresh per event.
func (p *Poller) alreadyHandled(ctx context.Context, eventID string) (bool, error) {
	if p.deps.Recent != nil {
		seen, err := p.deps.Recent.Contains(ctx, eventID)
		if err != nil {
			logger.Warn("poller: recent ids lookup failed", "event_id", eventID, "error", err)
		} else if seen {
			return true, nil
		}
	}

	exists, err := p.deps.Estimates.EstimateExists(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("%w: estimate lookup: %v", ErrStoreUnavailable, err)
	}
	if exists {
		return true, nil
	}

	claimed, err := p.deps.Ledger.EventClaimed(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("%w: claim lookup: %v", ErrStoreUnavailable, err)
	}
	return claimed, nil
}

func (p *Poller) celebrate(ctx context.Context, st *runState, ev domain.SaleEvent, t domain.CelebrationType, sellerName, customerName string, gender *string) error {
	claimed, err := p.deps.Ledger.HasBeenClaimed(ctx, ev.ExternalID, t)
	if err != nil {
		return fmt.Errorf("claim lookup: %w", err)
	}
	if claimed {
		return nil
	}

	channels, err := p.deps.Channels.ActiveChannels(ctx, t)
	if err != nil {
		return fmt.Errorf("load channels: %w", err)
	}
	if len(channels) == 0 {
		logger.Warn("poller: no channel registered for celebration", "type", t, "event_id", ev.ExternalID)
		return nil
	}

	sel := p.deps.Content.SelectMessage(ctx, content.Request{
		Category:     t,
		SellerID:     ev.SellerID,
		SellerName:   sellerName,
		CustomerName: customerName,
		Amount:       ev.Amount,
		Gender:       gender,
	})
	msg := dispatch.Message{
		Type:     t,
		Text:     sel.Text,
		GIFURL:   sel.GIFURL,
		Seller:   sellerName,
		Customer: customerName,
		Amount:   content.FormatAmount(ev.Amount),
	}

	rep := p.deps.Ledger.Deliver(ctx, ev.ExternalID, t, channels, func(ctx context.Context, ch domain.Channel) error {
		return p.deps.Sender.Send(ctx, msg, ch)
	})
	st.result.CelebrationsSent += rep.Delivered
	atomic.AddInt64(&p.celebrationsSent, int64(rep.Delivered))

	for _, o := range rep.Channels {
		if o.Outcome == ledger.OutcomeFailed || o.Outcome == ledger.OutcomeError {
			st.addError("event %s %s channel %s: %s", ev.ExternalID, t, o.ChannelID, o.Error)
		}
	}
	return nil
}

// seller resolves the display name and gender. Lookups degrade to the raw id.
func (p *Poller) seller(ctx context.Context, sellerID string) (string, *string) {
	var gender *string
	if p.deps.Salespeople != nil {
		sp, err := p.deps.Salespeople.Salesperson(ctx, sellerID)
		if err != nil {
			logger.Warn("poller: salesperson lookup failed", "seller_id", sellerID, "error", err)
		}
		if sp != nil {
			gender = sp.Gender
			if sp.DisplayName != "" {
				return sp.DisplayName, gender
			}
		}
	}
	name, err := p.deps.Source.SellerName(ctx, sellerID)
	if err != nil || name == "" {
		logger.Debug("poller: seller name unresolved", "seller_id", sellerID, "error", err)
		return sellerID, gender
	}
	return name, gender
}

func (p *Poller) customer(ctx context.Context, customerID string) string {
	name, err := p.deps.Source.CustomerName(ctx, customerID)
	if err != nil || name == "" {
		logger.Debug("poller: customer name unresolved", "customer_id", customerID, "error", err)
		return customerID
	}
	return name
}

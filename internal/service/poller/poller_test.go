package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/ignite/sales-celebrations/internal/recentids"
	"github.com/ignite/sales-celebrations/internal/service/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testSettings() domain.Settings {
	return domain.Settings{
		BigSaleThreshold:      700,
		TGLMarkerText:         "Tech Generated Lead",
		TGLMatch:              domain.MatchSubstring,
		TGLFields:             []string{domain.FieldSummary, domain.FieldLineItems},
		PollingEnabled:        true,
		LookbackBufferMinutes: 30,
		RecentIDsCacheSize:    100,
	}
}

func sale(id string, soldAt time.Time, amount float64, lines ...domain.LineItem) domain.SaleEvent {
	return domain.SaleEvent{
		ExternalID: id, SoldAt: soldAt, SellerID: "S1", CustomerID: "cust-" + id,
		Amount: amount, LineItems: lines,
	}
}

var tglLine = domain.LineItem{Name: "Tech Generated Lead", Amount: 0}

type harness struct {
	feed       *fakeFeed
	estimates  *memEstimates
	claims     *ledger.MemoryRepository
	runs       *memRuns
	watermarks *memWatermarks
	sender     *recordingSender
	archiver   *recordingArchiver
	recent     *recentids.Memory
	settings   domain.Settings
	now        time.Time
	clockMu    sync.Mutex
}

func newHarness(events ...domain.SaleEvent) *harness {
	return &harness{
		feed:       &fakeFeed{events: events, hidden: map[string]bool{}},
		estimates:  newMemEstimates(),
		claims:     ledger.NewMemoryRepository(),
		runs:       newMemRuns(),
		watermarks: &memWatermarks{},
		sender:     newRecordingSender(),
		archiver:   &recordingArchiver{},
		recent:     recentids.NewMemory(),
		settings:   testSettings(),
		now:        baseTime,
	}
}

func (h *harness) setNow(t time.Time) {
	h.clockMu.Lock()
	defer h.clockMu.Unlock()
	h.now = t
}

func (h *harness) clock() time.Time {
	h.clockMu.Lock()
	defer h.clockMu.Unlock()
	return h.now
}

// poller builds an independent Poller; only the stores are shared, as
// between separate invocations in production.
func (h *harness) poller() *Poller {
	deps := Deps{
		Source:    h.feed,
		Estimates: h.estimates,
		Ledger:    ledger.NewService(h.claims),
		Channels: &memChannels{channels: []domain.Channel{
			{ID: "sales", CelebrationTypes: []domain.CelebrationType{domain.CelebrationBigSale, domain.CelebrationTGL}, Active: true},
			{ID: "tech", CelebrationTypes: []domain.CelebrationType{domain.CelebrationTGL}, Active: true},
			{ID: "retired", CelebrationTypes: []domain.CelebrationType{domain.CelebrationBigSale}, Active: false},
		}},
		Salespeople: memSalespeople{"S1": {SellerID: "S1", DisplayName: "Dana"}},
		Settings:    staticSettings{h.settings},
		Runs:        h.runs,
		Watermarks:  h.watermarks,
		Content:     fixedContent{},
		Sender:      h.sender,
		Recent:      h.recent,
		Archiver:    h.archiver,
	}
	return New(deps, Config{Settings: h.settings, BatchSize: 2}).WithClock(h.clock)
}

func TestRun_CelebratesQualifyingEvents(t *testing.T) {
	h := newHarness(
		sale("E1", baseTime.Add(-10*time.Minute), 750),
		sale("E2", baseTime.Add(-9*time.Minute), 0, tglLine),
		sale("E3", baseTime.Add(-8*time.Minute), 120),
		sale("E4", baseTime.Add(-7*time.Minute), 900, tglLine, domain.LineItem{Name: "Furnace", Amount: 900}),
	)

	res, err := h.poller().Run(context.Background(), Regular())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 4, res.EstimatesFound)
	assert.Equal(t, 4, res.EstimatesProcessed)
	assert.Equal(t, 0, res.EstimatesSkipped)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 4, h.estimates.count(), "non-qualifying events are stored too")

	// E1: big sale → sales. E2: tgl → sales, tech. E4: both → sales + sales, tech.
	assert.Equal(t, 6, res.CelebrationsSent)
	assert.Equal(t, 6, h.sender.total())
	assert.Len(t, h.claims.Claims(), 6)

	run := h.runs.get(res.RunID)
	assert.Equal(t, domain.PollRunSuccess, run.Status)
	assert.Equal(t, baseTime.Add(-30*time.Minute), run.Window.From)
	assert.Equal(t, 1, h.archiver.batches)

	wm, _ := h.watermarks.Watermark(context.Background(), domain.PrimaryWatermark)
	require.NotNil(t, wm)
	assert.Equal(t, baseTime, wm.LastPollAt)
}

func TestRun_IdempotentRepoll(t *testing.T) {
	h := newHarness(
		sale("E1", baseTime.Add(-10*time.Minute), 750),
		sale("E2", baseTime.Add(-5*time.Minute), 0, tglLine),
	)
	_, err := h.poller().Run(context.Background(), Regular())
	require.NoError(t, err)
	estimates, claims, sends := h.estimates.count(), len(h.claims.Claims()), h.sender.total()

	h.setNow(baseTime.Add(2 * time.Minute))
	res, err := h.poller().Run(context.Background(), Manual())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.EstimatesFound)
	assert.Equal(t, 2, res.EstimatesSkipped)
	assert.Zero(t, res.EstimatesProcessed)
	assert.Equal(t, estimates, h.estimates.count())
	assert.Equal(t, claims, len(h.claims.Claims()))
	assert.Equal(t, sends, h.sender.total())
}

func TestRun_IdempotentWithoutRecentCache(t *testing.T) {
	h := newHarness(sale("E1", baseTime.Add(-10*time.Minute), 750))
	_, err := h.poller().Run(context.Background(), Regular())
	require.NoError(t, err)

	// A fresh process has an empty cache; the store checks still hold.
	h.recent = recentids.NewMemory()
	res, err := h.poller().Run(context.Background(), Regular())
	require.NoError(t, err)
	assert.Equal(t, 1, res.EstimatesSkipped)
	assert.Equal(t, 1, h.sender.total())
}

func TestRun_ConcurrentInvocationsDeliverAtMostOnce(t *testing.T) {
	var events []domain.SaleEvent
	for i := 0; i < 12; i++ {
		id := string(rune('A' + i))
		events = append(events, sale(id, baseTime.Add(-time.Duration(20-i)*time.Minute), 800, tglLine))
	}
	h := newHarness(events...)

	const invocations = 8
	var wg sync.WaitGroup
	wg.Add(invocations)
	for i := 0; i < invocations; i++ {
		mode := Regular()
		switch i % 3 {
		case 1:
			mode = Manual()
		case 2:
			mode = Catchup(6 * time.Hour)
		}
		go func(m Mode) {
			defer wg.Done()
			_, err := h.poller().Run(context.Background(), m)
			assert.NoError(t, err)
		}(mode)
	}
	wg.Wait()

	assert.Equal(t, 1, h.sender.maxPerKey(), "no (event, type, channel) delivered twice")
	// Every event is a big sale (sales) and a TGL (sales, tech).
	assert.Equal(t, 12*3, h.sender.total())
	assert.Equal(t, 12, h.estimates.count())
}

func TestRun_CatchupReconcilesLateVisibility(t *testing.T) {
	late := sale("LATE", baseTime.Add(-10*time.Minute), 1200)
	h := newHarness(late)
	h.feed.hidden["LATE"] = true

	res, err := h.poller().Run(context.Background(), Regular())
	require.NoError(t, err)
	assert.Zero(t, res.EstimatesFound)

	// The sale shows up upstream after the regular poll has moved on.
	h.feed.reveal("LATE")
	h.setNow(baseTime.Add(50 * time.Minute))

	res, err = h.poller().Run(context.Background(), Catchup(6*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, res.EstimatesProcessed)
	assert.Equal(t, 1, h.sender.total())

	wm, _ := h.watermarks.Watermark(context.Background(), domain.PrimaryWatermark)
	assert.Equal(t, baseTime, wm.LastPollAt, "catchup leaves the watermark alone")

	// A regular poll whose buffer still covers the sale must not repeat it.
	h.setNow(baseTime.Add(5 * time.Minute))
	h.watermarks.wm.LastPollAt = baseTime
	res, err = h.poller().Run(context.Background(), Regular())
	require.NoError(t, err)
	assert.Equal(t, 1, res.EstimatesFound)
	assert.Equal(t, 1, res.EstimatesSkipped)
	assert.Equal(t, 1, h.sender.total())
}

func TestRun_FetchFailureLeavesWatermark(t *testing.T) {
	h := newHarness()
	h.watermarks.wm = &domain.Watermark{Name: domain.PrimaryWatermark, LastPollAt: baseTime.Add(-time.Hour)}
	h.feed.err = errors.New("503 service unavailable")

	res, err := h.poller().Run(context.Background(), Regular())
	require.NoError(t, err)

	assert.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], ErrUpstreamFetch.Error())
	assert.Equal(t, baseTime.Add(-time.Hour), h.watermarks.wm.LastPollAt)

	run := h.runs.get(res.RunID)
	assert.Equal(t, domain.PollRunError, run.Status)
	assert.Contains(t, run.Error, "503")
}

func TestRun_FetchFailureFromFeedIsPrefixedOnce(t *testing.T) {
	h := newHarness()
	h.feed.err = fmt.Errorf("%w: 503 service unavailable", domain.ErrUpstreamFetch)

	res, err := h.poller().Run(context.Background(), Regular())
	require.NoError(t, err)

	require.NotEmpty(t, res.Errors)
	assert.Equal(t, 1, strings.Count(res.Errors[0], ErrUpstreamFetch.Error()))
	run := h.runs.get(res.RunID)
	assert.Equal(t, "upstream fetch failed: 503 service unavailable", run.Error)
}

func TestRun_WindowStartsAtWatermarkMinusBuffer(t *testing.T) {
	h := newHarness(
		sale("OLD", baseTime.Add(-3*time.Hour), 900),
		sale("NEW", baseTime.Add(-50*time.Minute), 900),
	)
	h.watermarks.wm = &domain.Watermark{Name: domain.PrimaryWatermark, LastPollAt: baseTime.Add(-time.Hour)}

	res, err := h.poller().Run(context.Background(), Regular())
	require.NoError(t, err)

	assert.Equal(t, 1, res.EstimatesFound)
	run := h.runs.get(res.RunID)
	assert.Equal(t, baseTime.Add(-90*time.Minute), run.Window.From)
}

func TestRun_PollingDisabled(t *testing.T) {
	h := newHarness(sale("E1", baseTime.Add(-5*time.Minute), 900))
	h.settings.PollingEnabled = false

	for _, mode := range []Mode{Regular(), Catchup(6 * time.Hour)} {
		res, err := h.poller().Run(context.Background(), mode)
		require.NoError(t, err)
		assert.True(t, res.Disabled, mode.Variant)
	}
	assert.Zero(t, h.feed.fetches)

	res, err := h.poller().Run(context.Background(), Manual())
	require.NoError(t, err)
	assert.False(t, res.Disabled)
	assert.Equal(t, 1, res.EstimatesProcessed)
}

func TestRun_MalformedSettingsIsTheOnlyError(t *testing.T) {
	h := newHarness()
	h.settings.TGLMarkerText = ""

	_, err := h.poller().Run(context.Background(), Manual())
	assert.ErrorIs(t, err, domain.ErrInvalidSettings)
}

func TestRun_DispatchFailureIsPerChannel(t *testing.T) {
	h := newHarness(sale("E1", baseTime.Add(-5*time.Minute), 0, tglLine))
	h.sender.fail["tech"] = true

	res, err := h.poller().Run(context.Background(), Regular())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 1, res.CelebrationsSent)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "channel tech")

	statuses := map[string]domain.ClaimStatus{}
	for _, c := range h.claims.Claims() {
		statuses[c.ChannelID] = c.Status
	}
	assert.Equal(t, domain.ClaimSuccess, statuses["sales"])
	assert.Equal(t, domain.ClaimFailed, statuses["tech"])

	// The failed claim is not retried by the next poll.
	h.sender.fail["tech"] = false
	h.recent = recentids.NewMemory()
	_, err = h.poller().Run(context.Background(), Manual())
	require.NoError(t, err)
	assert.Equal(t, 1, h.sender.total())
}

func TestRun_StalePendingClaimBlocksDelivery(t *testing.T) {
	h := newHarness(sale("E1", baseTime.Add(-5*time.Minute), 900))
	// A crashed run claimed the key but never sent or finalized.
	_, err := h.claims.InsertClaim(context.Background(), &domain.DeliveryClaim{
		ID: "stuck", EventID: "E1", Type: domain.CelebrationBigSale, ChannelID: "sales",
		Status: domain.ClaimPending, ClaimedAt: baseTime.Add(-time.Hour),
	})
	require.NoError(t, err)

	res, err := h.poller().Run(context.Background(), Catchup(6*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 1, res.EstimatesSkipped)
	assert.Zero(t, h.sender.total())
}

func TestRun_StoreUnavailableAbortsRun(t *testing.T) {
	h := newHarness(sale("E1", baseTime.Add(-5*time.Minute), 900))
	h.estimates.existErr = errors.New("connection refused")

	res, err := h.poller().Run(context.Background(), Regular())
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Nil(t, h.watermarks.wm)
	assert.Zero(t, h.sender.total())
}

func TestRun_ErrorsAreCapped(t *testing.T) {
	var events []domain.SaleEvent
	for i := 0; i < 30; i++ {
		events = append(events, sale(string(rune('a'+i)), baseTime.Add(-time.Duration(30-i)*time.Second), 900))
	}
	h := newHarness(events...)
	h.sender.fail["sales"] = true

	p := h.poller()
	p.cfg.MaxErrors = 5
	res, err := p.Run(context.Background(), Regular())
	require.NoError(t, err)
	assert.Len(t, res.Errors, 5)
	assert.Equal(t, 30, res.EstimatesProcessed)
}

func TestRun_CancelledContextStopsBetweenEvents(t *testing.T) {
	h := newHarness(
		sale("E1", baseTime.Add(-5*time.Minute), 900),
		sale("E2", baseTime.Add(-4*time.Minute), 900),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.poller().Run(ctx, Regular())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Zero(t, h.sender.total())
	assert.Nil(t, h.watermarks.wm)

	run := h.runs.get(res.RunID)
	assert.Equal(t, domain.PollRunError, run.Status)
}

func TestModeFor(t *testing.T) {
	m, err := ModeFor(domain.PollCatchup, 6*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, WindowFixedLookback, m.Window)
	assert.Equal(t, WatermarkIgnore, m.Watermark)

	m, err = ModeFor(domain.PollManual, 0)
	require.NoError(t, err)
	assert.False(t, m.Scheduled)

	_, err = ModeFor("hourly", 0)
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

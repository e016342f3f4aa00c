package poller

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/ignite/sales-celebrations/internal/service/content"
	"github.com/ignite/sales-celebrations/internal/service/dispatch"
)

// fakeFeed serves events whose visibility can be toggled to model upstream lag.
type fakeFeed struct {
	mu      sync.Mutex
	events  []domain.SaleEvent
	hidden  map[string]bool
	fetches int
	err     error
}

func (f *fakeFeed) FetchSoldAfter(_ context.Context, since time.Time) ([]domain.SaleEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.SaleEvent
	for _, ev := range f.events {
		if f.hidden[ev.ExternalID] || ev.SoldAt.Before(since) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SoldAt.Before(out[j].SoldAt) })
	return out, nil
}

func (f *fakeFeed) reveal(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.hidden, id)
}

func (f *fakeFeed) SellerName(_ context.Context, id string) (string, error) {
	if id == "" {
		return "", errors.New("not found")
	}
	return "Seller " + id, nil
}

func (f *fakeFeed) CustomerName(_ context.Context, id string) (string, error) {
	return "Customer " + id, nil
}

type memEstimates struct {
	mu       sync.Mutex
	rows     map[string]domain.Estimate
	existErr error
}

func newMemEstimates() *memEstimates { return &memEstimates{rows: map[string]domain.Estimate{}} }

func (m *memEstimates) EstimateExists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existErr != nil {
		return false, m.existErr
	}
	_, ok := m.rows[id]
	return ok, nil
}

func (m *memEstimates) InsertEstimate(_ context.Context, e *domain.Estimate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[e.ExternalID]; ok {
		return false, nil
	}
	m.rows[e.ExternalID] = *e
	return true, nil
}

func (m *memEstimates) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memChannels struct{ channels []domain.Channel }

func (m *memChannels) ActiveChannels(_ context.Context, t domain.CelebrationType) ([]domain.Channel, error) {
	var out []domain.Channel
	for _, ch := range m.channels {
		if ch.Active && ch.Accepts(t) {
			out = append(out, ch)
		}
	}
	return out, nil
}

type memSalespeople map[string]domain.Salesperson

func (m memSalespeople) Salesperson(_ context.Context, id string) (*domain.Salesperson, error) {
	sp, ok := m[id]
	if !ok {
		return nil, nil
	}
	return &sp, nil
}

type memRuns struct {
	mu   sync.Mutex
	runs map[string]domain.PollRun
}

func newMemRuns() *memRuns { return &memRuns{runs: map[string]domain.PollRun{}} }

func (m *memRuns) StartRun(_ context.Context, run *domain.PollRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *memRuns) FinishRun(_ context.Context, run *domain.PollRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *memRuns) get(id string) domain.PollRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[id]
}

type memWatermarks struct {
	mu sync.Mutex
	wm *domain.Watermark
}

func (m *memWatermarks) Watermark(_ context.Context, _ string) (*domain.Watermark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wm == nil {
		return nil, nil
	}
	cp := *m.wm
	return &cp, nil
}

func (m *memWatermarks) AdvanceWatermark(_ context.Context, name string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wm == nil || at.After(m.wm.LastPollAt) {
		m.wm = &domain.Watermark{Name: name, LastPollAt: at}
	}
	return nil
}

type staticSettings struct{ s domain.Settings }

func (s staticSettings) LoadSettings(_ context.Context, _ domain.Settings) (domain.Settings, error) {
	return s.s, nil
}

type fixedContent struct{}

func (fixedContent) SelectMessage(_ context.Context, req content.Request) content.Selection {
	return content.Selection{Text: "Congrats " + req.SellerName + " on " + req.CustomerName, MessageID: "m1"}
}

type sendKey struct {
	event   string
	kind    domain.CelebrationType
	channel string
}

// recordingSender counts sends per key and can fail selected channels.
type recordingSender struct {
	mu    sync.Mutex
	sends map[sendKey]int
	fail  map[string]bool
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sends: map[sendKey]int{}, fail: map[string]bool{}}
}

func (r *recordingSender) Send(_ context.Context, msg dispatch.Message, ch domain.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[ch.ID] {
		return &dispatch.SendError{ChannelID: ch.ID, StatusCode: 500, Body: "boom"}
	}
	// The message carries no event id; test events have unique customers.
	r.sends[sendKey{msg.Text, msg.Type, ch.ID}]++
	return nil
}

func (r *recordingSender) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.sends {
		n += c
	}
	return n
}

func (r *recordingSender) maxPerKey() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, c := range r.sends {
		if c > max {
			max = c
		}
	}
	return max
}

type recordingArchiver struct {
	mu      sync.Mutex
	batches int
}

func (a *recordingArchiver) Archive(_ context.Context, _ domain.PollRun, _ []domain.SaleEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.batches++
	return nil
}

package poller

import (
	"context"
	"time"

	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/ignite/sales-celebrations/internal/recentids"
	"github.com/ignite/sales-celebrations/internal/service/content"
	"github.com/ignite/sales-celebrations/internal/service/dispatch"
	"github.com/ignite/sales-celebrations/internal/service/ledger"
)

// EventSource is the upstream sales feed.
type EventSource interface {
	FetchSoldAfter(ctx context.Context, since time.Time) ([]domain.SaleEvent, error)
	SellerName(ctx context.Context, sellerID string) (string, error)
	CustomerName(ctx context.Context, customerID string) (string, error)
}

// EstimateStore persists estimates insert-once.
type EstimateStore interface {
	EstimateExists(ctx context.Context, externalID string) (bool, error)
	// InsertEstimate returns false when the external id is already stored.
	InsertEstimate(ctx context.Context, e *domain.Estimate) (bool, error)
}

type ChannelStore interface {
	ActiveChannels(ctx context.Context, t domain.CelebrationType) ([]domain.Channel, error)
}

type SalespersonStore interface {
	// Salesperson returns nil, nil for an unknown seller.
	Salesperson(ctx context.Context, sellerID string) (*domain.Salesperson, error)
}

type SettingsStore interface {
	LoadSettings(ctx context.Context, base domain.Settings) (domain.Settings, error)
}

type RunStore interface {
	StartRun(ctx context.Context, run *domain.PollRun) error
	FinishRun(ctx context.Context, run *domain.PollRun) error
}

type WatermarkStore interface {
	// Watermark returns nil, nil when the watermark was never written.
	Watermark(ctx context.Context, name string) (*domain.Watermark, error)
	AdvanceWatermark(ctx context.Context, name string, at time.Time) error
}

type ContentPicker interface {
	SelectMessage(ctx context.Context, req content.Request) content.Selection
}

type Sender interface {
	Send(ctx context.Context, msg dispatch.Message, ch domain.Channel) error
}

// Archiver stores a copy of every fetched batch.
type Archiver interface {
	Archive(ctx context.Context, run domain.PollRun, events []domain.SaleEvent) error
}

// Deps are the collaborators of a Poller. Salespeople, Settings, Recent and
// Archiver are optional.
type Deps struct {
	Source      EventSource
	Estimates   EstimateStore
	Ledger      *ledger.Service
	Channels    ChannelStore
	Salespeople SalespersonStore
	Settings    SettingsStore
	Runs        RunStore
	Watermarks  WatermarkStore
	Content     ContentPicker
	Sender      Sender
	Recent      recentids.Cache
	Archiver    Archiver
}

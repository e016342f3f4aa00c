package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/ignite/sales-celebrations/internal/pkg/logger"
)

// ClaimResult tags the outcome of a claim attempt.
type ClaimResult int

const (
	// Inserted means this caller owns the delivery attempt.
	Inserted ClaimResult = iota + 1
	// AlreadyClaimed means another attempt owns (or owned) the key.
	AlreadyClaimed
)

func (r ClaimResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case AlreadyClaimed:
		return "already_claimed"
	}
	return "unknown"
}

// SendFunc delivers a celebration to one channel.
type SendFunc func(ctx context.Context, ch domain.Channel) error

// Outcome values reported per channel by Deliver.
const (
	OutcomeDelivered      = "delivered"
	OutcomeFailed         = "failed"
	OutcomeAlreadyClaimed = "already_claimed"
	OutcomeError          = "error"
)

// ChannelOutcome is the result of one channel within Deliver.
type ChannelOutcome struct {
	ChannelID string `json:"channel_id"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
}

// Report summarises a Deliver call.
type Report struct {
	Delivered      int              `json:"delivered"`
	Failed         int              `json:"failed"`
	AlreadyClaimed int              `json:"already_claimed"`
	Errors         int              `json:"errors"`
	Channels       []ChannelOutcome `json:"channels"`
}

// Service implements the claim-before-send protocol. It holds no per-key
// state; all coordination happens in the repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a ledger service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// HasBeenClaimed reports whether the event already has a claim for the type.
func (s *Service) HasBeenClaimed(ctx context.Context, eventID string, t domain.CelebrationType) (bool, error) {
	return s.repo.HasClaim(ctx, eventID, t)
}

// EventClaimed reports whether the event has a claim of any type.
func (s *Service) EventClaimed(ctx context.Context, eventID string) (bool, error) {
	return s.repo.HasAnyClaim(ctx, eventID)
}

// Claim tries to take ownership of the key. The returned claim is non-nil
// only for Inserted.
func (s *Service) Claim(ctx context.Context, key domain.ClaimKey) (ClaimResult, *domain.DeliveryClaim, error) {
	if key.EventID == "" || key.ChannelID == "" || !key.Type.Valid() {
		return 0, nil, ErrInvalidKey
	}

	exists, err := s.repo.ClaimExists(ctx, key)
	if err != nil {
		return 0, nil, fmt.Errorf("check claim: %w", err)
	}
	if exists {
		return AlreadyClaimed, nil, nil
	}

	now := s.now().UTC()
	c := &domain.DeliveryClaim{
		ID:        uuid.New().String(),
		EventID:   key.EventID,
		Type:      key.Type,
		ChannelID: key.ChannelID,
		Status:    domain.ClaimPending,
		ClaimedAt: now,
		UpdatedAt: now,
	}
	inserted, err := s.repo.InsertClaim(ctx, c)
	if err != nil {
		return 0, nil, fmt.Errorf("insert claim: %w", err)
	}
	if !inserted {
		return AlreadyClaimed, nil, nil
	}
	return Inserted, c, nil
}

// Finalize records the outcome of the send for an owned claim.
func (s *Service) Finalize(ctx context.Context, c *domain.DeliveryClaim, sendErr error) error {
	status, msg := domain.ClaimSuccess, ""
	if sendErr != nil {
		status, msg = domain.ClaimFailed, sendErr.Error()
	}
	if err := s.repo.UpdateClaim(ctx, c.ID, status, msg); err != nil {
		return fmt.Errorf("finalize claim %s: %w", c.ID, err)
	}
	c.Status, c.Error, c.UpdatedAt = status, msg, s.now().UTC()
	return nil
}

const finalizeTimeout = 10 * time.Second

// Deliver runs the per-channel part of the protocol (claim, send, finalize)
// for every channel tagged for the celebration type. A failure on one
// channel never stops the others.
func (s *Service) Deliver(ctx context.Context, eventID string, t domain.CelebrationType, channels []domain.Channel, send SendFunc) Report {
	var rep Report
	for _, ch := range channels {
		if !ch.Active || !ch.Accepts(t) {
			continue
		}
		if ctx.Err() != nil {
			rep.add(ChannelOutcome{ChannelID: ch.ID, Outcome: OutcomeError, Error: ctx.Err().Error()})
			continue
		}

		res, claim, err := s.Claim(ctx, domain.ClaimKey{EventID: eventID, Type: t, ChannelID: ch.ID})
		if err != nil {
			logger.Error("ledger: claim failed", "event_id", eventID, "type", t, "channel_id", ch.ID, "error", err)
			rep.add(ChannelOutcome{ChannelID: ch.ID, Outcome: OutcomeError, Error: err.Error()})
			continue
		}
		if res == AlreadyClaimed {
			logger.Debug("ledger: key already claimed", "event_id", eventID, "type", t, "channel_id", ch.ID)
			rep.add(ChannelOutcome{ChannelID: ch.ID, Outcome: OutcomeAlreadyClaimed})
			continue
		}

		sendErr := send(ctx, ch)
		// A card the webhook accepted must be recorded even if the run was
		// cancelled meanwhile.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		err = s.Finalize(fctx, claim, sendErr)
		cancel()
		if err != nil {
			// The claim stays pending and keeps blocking the key.
			logger.Error("ledger: finalize failed", "claim_id", claim.ID, "error", err)
		}
		if sendErr != nil {
			logger.Warn("ledger: delivery failed", "event_id", eventID, "type", t, "channel_id", ch.ID, "error", sendErr)
			rep.add(ChannelOutcome{ChannelID: ch.ID, Outcome: OutcomeFailed, Error: sendErr.Error()})
			continue
		}
		logger.Info("ledger: delivered", "event_id", eventID, "type", t, "channel_id", ch.ID)
		rep.add(ChannelOutcome{ChannelID: ch.ID, Outcome: OutcomeDelivered})
	}
	return rep
}

func (r *Report) add(o ChannelOutcome) {
	switch o.Outcome {
	case OutcomeDelivered:
		r.Delivered++
	case OutcomeFailed:
		r.Failed++
	case OutcomeAlreadyClaimed:
		r.AlreadyClaimed++
	case OutcomeError:
		r.Errors++
	}
	r.Channels = append(r.Channels, o)
}

// Reset deletes claims for an event so the next poll may celebrate it again.
// This is the only path that removes claims.
func (s *Service) Reset(ctx context.Context, eventID string, t domain.CelebrationType) (int64, error) {
	if eventID == "" {
		return 0, ErrInvalidKey
	}
	if t != "" && !t.Valid() {
		return 0, fmt.Errorf("%w: unknown celebration type %q", ErrInvalidKey, t)
	}
	n, err := s.repo.DeleteClaims(ctx, eventID, t)
	if err != nil {
		return 0, fmt.Errorf("reset claims: %w", err)
	}
	logger.Warn("ledger: claims reset", "event_id", eventID, "type", t, "deleted", n)
	return n, nil
}

// StalePending lists pending claims older than the given age. These are
// attempts that crashed between claim and finalize; they are reported, not
// retried.
func (s *Service) StalePending(ctx context.Context, olderThan time.Duration, limit int) ([]domain.DeliveryClaim, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListPending(ctx, s.now().Add(-olderThan), limit)
}

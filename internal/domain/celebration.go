package domain

import "time"

// CelebrationType enumerates the kinds of celebration a sale can trigger.
type CelebrationType string

const (
	CelebrationBigSale CelebrationType = "big_sale"
	CelebrationTGL     CelebrationType = "tgl"
)

// Valid reports whether t is a known celebration type.
func (t CelebrationType) Valid() bool {
	return t == CelebrationBigSale || t == CelebrationTGL
}

// ClaimStatus is the lifecycle state of a delivery claim.
type ClaimStatus string

const (
	ClaimPending ClaimStatus = "pending"
	ClaimSuccess ClaimStatus = "success"
	ClaimFailed  ClaimStatus = "failed"
)

// ClaimKey identifies one delivery attempt slot. The store enforces that a
// key is inserted at most once.
type ClaimKey struct {
	EventID   string          `json:"event_id"`
	Type      CelebrationType `json:"celebration_type"`
	ChannelID string          `json:"channel_id"`
}

// DeliveryClaim is a ledger row asserting ownership of one delivery attempt.
type DeliveryClaim struct {
	ID        string          `json:"id" db:"id"`
	EventID   string          `json:"event_id" db:"event_id"`
	Type      CelebrationType `json:"celebration_type" db:"celebration_type"`
	ChannelID string          `json:"channel_id" db:"channel_id"`
	Status    ClaimStatus     `json:"status" db:"status"`
	Error     string          `json:"error,omitempty" db:"error"`
	ClaimedAt time.Time       `json:"claimed_at" db:"claimed_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Key returns the uniqueness key of the claim.
func (c DeliveryClaim) Key() ClaimKey {
	return ClaimKey{EventID: c.EventID, Type: c.Type, ChannelID: c.ChannelID}
}

// Channel is a chat destination registered for one or more celebration types.
type Channel struct {
	ID               string            `json:"id" db:"id"`
	Name             string            `json:"name" db:"name"`
	WebhookURL       string            `json:"-" db:"webhook_url"`
	CelebrationTypes []CelebrationType `json:"celebration_types" db:"celebration_types"`
	Active           bool              `json:"active" db:"active"`
}

// Accepts reports whether the channel is tagged for the celebration type.
func (c Channel) Accepts(t CelebrationType) bool {
	for _, ct := range c.CelebrationTypes {
		if ct == t {
			return true
		}
	}
	return false
}

package domain

import (
	"errors"
	"time"
)

// ErrUpstreamFetch marks a failed read from the upstream sales feed.
var ErrUpstreamFetch = errors.New("upstream fetch failed")

// LineItem is a single product or service line on an upstream sale.
type LineItem struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// SaleEvent is a sale as reported by the upstream estimate feed.
// It is read-only; identity is ExternalID.
type SaleEvent struct {
	ExternalID string     `json:"id"`
	SoldAt     time.Time  `json:"sold_at"`
	SellerID   string     `json:"seller_id"`
	CustomerID string     `json:"customer_id"`
	Amount     float64    `json:"amount"`
	Summary    string     `json:"summary,omitempty"`
	LineItems  []LineItem `json:"line_items"`
}

// Estimate is the persisted projection of a SaleEvent. One row exists per
// external id; it is written once and never overwritten.
type Estimate struct {
	ID           string    `json:"id" db:"id"`
	ExternalID   string    `json:"external_id" db:"external_id"`
	PollRunID    *string   `json:"poll_run_id,omitempty" db:"poll_run_id"` // nil = backfilled
	SellerID     string    `json:"seller_id" db:"seller_id"`
	SellerName   string    `json:"seller_name" db:"seller_name"`
	CustomerID   string    `json:"customer_id" db:"customer_id"`
	CustomerName string    `json:"customer_name" db:"customer_name"`
	Amount       float64   `json:"amount" db:"amount"`
	SoldAt       time.Time `json:"sold_at" db:"sold_at"`
	IsBigSale    bool      `json:"is_big_sale" db:"is_big_sale"`
	IsTGL        bool      `json:"is_tgl" db:"is_tgl"`
	Raw          []byte    `json:"-" db:"raw"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Salesperson carries the display attributes used when rendering a
// celebration for a seller.
type Salesperson struct {
	SellerID    string  `json:"seller_id" db:"seller_id"`
	DisplayName string  `json:"display_name" db:"display_name"`
	Gender      *string `json:"gender,omitempty" db:"gender"`
}

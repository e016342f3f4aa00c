package domain

import "time"

// ContentKind distinguishes message text from GIF content.
type ContentKind string

const (
	ContentMessage ContentKind = "message"
	ContentGIF     ContentKind = "gif"
)

// ContentItem is a celebration message or GIF. AssignedTo is the seller id the
// item is dedicated to; nil means the item belongs to the generic pool.
// Usage counters are advisory and mutate on every selection.
type ContentItem struct {
	ID          string          `json:"id" db:"id"`
	Kind        ContentKind     `json:"kind" db:"kind"`
	Body        string          `json:"body" db:"body"`
	AssignedTo  *string         `json:"assigned_to,omitempty" db:"assigned_to"`
	Category    CelebrationType `json:"category" db:"category"`
	Active      bool            `json:"active" db:"active"`
	LastUsedAt  *time.Time      `json:"last_used_at,omitempty" db:"last_used_at"`
	LastUsedFor *string         `json:"last_used_for,omitempty" db:"last_used_for"`
	UseCount    int             `json:"use_count" db:"use_count"`
	PairedGIFID *string         `json:"paired_gif_id,omitempty" db:"paired_gif_id"`
}

// Generic reports whether the item belongs to the shared pool.
func (c ContentItem) Generic() bool {
	return c.AssignedTo == nil || *c.AssignedTo == ""
}

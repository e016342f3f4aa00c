package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/lib/pq"
)

// ChannelRepo reads chat channel registrations.
type ChannelRepo struct{ db *sql.DB }

// NewChannelRepo creates a Postgres-backed channel repository.
func NewChannelRepo(db *sql.DB) *ChannelRepo { return &ChannelRepo{db: db} }

// ActiveChannels returns active channels tagged for the celebration type.
func (r *ChannelRepo) ActiveChannels(ctx context.Context, t domain.CelebrationType) ([]domain.Channel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, webhook_url, celebration_types
		FROM chat_channels
		WHERE active = true AND celebration_types @> $1
		ORDER BY name
	`, pq.Array([]string{string(t)}))
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var out []domain.Channel
	for rows.Next() {
		var (
			ch    domain.Channel
			types []string
		)
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.WebhookURL, pq.Array(&types)); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		ch.Active = true
		for _, ct := range types {
			ch.CelebrationTypes = append(ch.CelebrationTypes, domain.CelebrationType(ct))
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

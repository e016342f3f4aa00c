// Package dispatch posts celebration cards to chat channel webhooks.
//
// Each Send is exactly one HTTP POST. A 2xx response is success; any other
// status or transport error is a *SendError. Nothing is retried here: the
// next poll's ledger check decides whether a failed delivery is attempted
// again.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/ignite/sales-celebrations/internal/pkg/logger"
)

// Message is the content delivered for one celebration.
type Message struct {
	Type     domain.CelebrationType
	Text     string
	GIFURL   string
	Seller   string
	Customer string
	Amount   string
}

// SendError describes a failed delivery to one channel.
type SendError struct {
	ChannelID  string
	StatusCode int // 0 for transport errors
	Body       string
	Err        error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("send to channel %s: %v", e.ChannelID, e.Err)
	}
	return fmt.Sprintf("send to channel %s: webhook returned %d: %s", e.ChannelID, e.StatusCode, e.Body)
}

func (e *SendError) Unwrap() error { return e.Err }

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Dispatcher sends cards to webhooks.
type Dispatcher struct {
	client HTTPDoer
}

// New returns a Dispatcher using a plain client with the given timeout.
func New(timeout time.Duration) *Dispatcher {
	return &Dispatcher{client: &http.Client{Timeout: timeout}}
}

// NewWithClient returns a Dispatcher using the given client.
func NewWithClient(client HTTPDoer) *Dispatcher {
	return &Dispatcher{client: client}
}

// Send posts msg to the channel's webhook.
func (d *Dispatcher) Send(ctx context.Context, msg Message, ch domain.Channel) error {
	payload, err := json.Marshal(BuildCard(msg))
	if err != nil {
		return &SendError{ChannelID: ch.ID, Err: fmt.Errorf("marshal card: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return &SendError{ChannelID: ch.ID, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return &SendError{ChannelID: ch.ID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &SendError{ChannelID: ch.ID, StatusCode: resp.StatusCode, Body: string(body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	logger.Debug("dispatch: card posted",
		"channel_id", ch.ID,
		"webhook", ch.WebhookURL,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

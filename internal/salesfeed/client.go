// Package salesfeed is the adapter for the upstream sales-estimate feed.
//
// Requests carry a bearer token obtained with the OAuth2 client-credentials
// flow and cached until shortly before it expires. Transient HTTP failures
// are retried by the transport; a fetch that still fails is reported as
// ErrUpstreamFetch and the caller aborts its run.
package salesfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/ignite/sales-celebrations/internal/pkg/httpretry"
	"github.com/ignite/sales-celebrations/internal/pkg/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

var (
	ErrUpstreamFetch = domain.ErrUpstreamFetch
	ErrNotFound      = errors.New("upstream record not found")
)

// Config holds the connection settings for the feed.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	Timeout     time.Duration
	MaxRetries  int
	TokenMargin time.Duration // refresh the token this long before expiry
	EnrichDelay time.Duration // minimum spacing between enrichment lookups
}

// Client talks to the upstream feed.
type Client struct {
	baseURL string
	http    httpretry.HTTPDoer
	tokens  oauth2.TokenSource
	limiter *rate.Limiter
}

// NewClient builds a client. When TokenURL is empty requests are sent
// without authentication.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := &http.Client{Timeout: timeout}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpretry.NewRetryClient(base, cfg.MaxRetries),
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	if cfg.EnrichDelay > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.EnrichDelay), 1)
	}

	if cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		c.tokens = oauth2.ReuseTokenSourceWithExpiry(nil, cc.TokenSource(tokenCtx), cfg.TokenMargin)
	}
	return c
}

// WithHTTPClient replaces the transport used for feed requests.
func (c *Client) WithHTTPClient(doer httpretry.HTTPDoer) *Client {
	c.http = doer
	return c
}

type eventsResponse struct {
	Events []domain.SaleEvent `json:"events"`
}

// FetchSoldAfter returns events sold at or after since, oldest first. The
// feed may return events already seen by earlier polls.
func (c *Client) FetchSoldAfter(ctx context.Context, since time.Time) ([]domain.SaleEvent, error) {
	q := url.Values{}
	q.Set("sold_after", since.UTC().Format(time.RFC3339))

	var resp eventsResponse
	if err := c.getJSON(ctx, "/estimates?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
	}

	events := resp.Events[:0]
	for _, ev := range resp.Events {
		if ev.ExternalID == "" {
			logger.Warn("salesfeed: dropping event without id", "sold_at", ev.SoldAt)
			continue
		}
		events = append(events, ev)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].SoldAt.Before(events[j].SoldAt) })

	logger.Debug("salesfeed: fetched events", "since", since, "count", len(events))
	return events, nil
}

type namedRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SellerName resolves a seller id to a display name.
func (c *Client) SellerName(ctx context.Context, sellerID string) (string, error) {
	return c.lookupName(ctx, "/sellers/", sellerID)
}

// CustomerName resolves a customer id to a display name.
func (c *Client) CustomerName(ctx context.Context, customerID string) (string, error) {
	return c.lookupName(ctx, "/customers/", customerID)
}

func (c *Client) lookupName(ctx context.Context, prefix, id string) (string, error) {
	if id == "" {
		return "", ErrNotFound
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	var rec namedRecord
	if err := c.getJSON(ctx, prefix+url.PathEscape(id), &rec); err != nil {
		return "", err
	}
	if rec.Name == "" {
		return "", ErrNotFound
	}
	return rec.Name, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("obtain token: %w", err)
		}
		tok.SetAuthHeader(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

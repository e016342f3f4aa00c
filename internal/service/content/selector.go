package content

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/ignite/sales-celebrations/internal/pkg/logger"
	"github.com/osteele/liquid"
)

// Request describes the celebration content is picked for.
type Request struct {
	Category     domain.CelebrationType
	SellerID     string
	SellerName   string
	CustomerName string
	Amount       float64
	Gender       *string
}

// Selection is the rendered content for one celebration.
type Selection struct {
	Text      string `json:"text"`
	GIFURL    string `json:"gif_url,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	GIFID     string `json:"gif_id,omitempty"`
	Fallback  bool   `json:"fallback"`
}

// Options configures a Selector.
type Options struct {
	// Fallbacks maps a category to a Liquid template rendered when no active
	// message exists. Bindings: seller, customer, amount.
	Fallbacks map[domain.CelebrationType]string
	Rand      RandSource
	Now       func() time.Time
}

// Selector picks celebration content.
type Selector struct {
	repo      Repository
	rnd       RandSource
	now       func() time.Time
	fallbacks map[domain.CelebrationType]*liquid.Template
}

// NewSelector parses the fallback templates and returns a Selector.
func NewSelector(repo Repository, opts Options) (*Selector, error) {
	engine := liquid.NewEngine()
	fallbacks := make(map[domain.CelebrationType]*liquid.Template, len(opts.Fallbacks))
	for cat, src := range opts.Fallbacks {
		tpl, err := engine.ParseString(src)
		if err != nil {
			return nil, fmt.Errorf("parse %s fallback template: %w", cat, err)
		}
		fallbacks[cat] = tpl
	}

	src := opts.Rand
	if src == nil {
		src = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Selector{
		repo:      repo,
		rnd:       &lockedSource{src: src},
		now:       now,
		fallbacks: fallbacks,
	}, nil
}

// SelectMessage picks a message and GIF for the request and records their
// use. Repository failures degrade to the fallback text.
func (s *Selector) SelectMessage(ctx context.Context, req Request) Selection {
	now := s.now()
	vars := Vars{Name: req.SellerName, Customer: req.CustomerName, Amount: req.Amount, Gender: req.Gender}

	var sel Selection
	msgs, err := s.repo.ActiveItems(ctx, domain.ContentMessage, req.Category, req.SellerID)
	if err != nil {
		logger.Warn("content: load messages failed", "category", req.Category, "error", err)
	}
	msg, ok := Pick(candidates(msgs, req.SellerID, now), now, s.rnd)
	if ok {
		sel.MessageID = msg.ID
		sel.Text = Substitute(msg.Body, vars)
	} else {
		sel.Fallback = true
		sel.Text = s.fallbackText(req)
	}

	if gif, ok := s.pickGIF(ctx, req, msg, now); ok {
		sel.GIFID = gif.ID
		sel.GIFURL = gif.Body
	}

	if sel.MessageID != "" {
		s.recordUse(ctx, domain.ContentMessage, sel.MessageID, req.SellerID, now)
	}
	if sel.GIFID != "" {
		s.recordUse(ctx, domain.ContentGIF, sel.GIFID, req.SellerID, now)
	}
	return sel
}

func (s *Selector) pickGIF(ctx context.Context, req Request, msg domain.ContentItem, now time.Time) (domain.ContentItem, bool) {
	if msg.PairedGIFID != nil && *msg.PairedGIFID != "" {
		paired, err := s.repo.Item(ctx, domain.ContentGIF, *msg.PairedGIFID)
		switch {
		case err == nil && paired.Active:
			return *paired, true
		case err != nil:
			logger.Debug("content: paired gif unavailable", "message_id", msg.ID, "gif_id", *msg.PairedGIFID, "error", err)
		}
	}

	gifs, err := s.repo.ActiveItems(ctx, domain.ContentGIF, req.Category, req.SellerID)
	if err != nil {
		logger.Warn("content: load gifs failed", "category", req.Category, "error", err)
		return domain.ContentItem{}, false
	}
	return Pick(candidates(gifs, req.SellerID, now), now, s.rnd)
}

func (s *Selector) recordUse(ctx context.Context, kind domain.ContentKind, id, sellerID string, at time.Time) {
	if err := s.repo.RecordUse(ctx, kind, id, sellerID, at); err != nil {
		logger.Warn("content: record use failed", "kind", kind, "id", id, "error", err)
	}
}

func (s *Selector) fallbackText(req Request) string {
	if tpl, ok := s.fallbacks[req.Category]; ok {
		out, err := tpl.RenderString(liquid.Bindings{
			"seller":   req.SellerName,
			"customer": req.CustomerName,
			"amount":   FormatAmount(req.Amount),
		})
		if err == nil {
			return out
		}
		logger.Warn("content: fallback render failed", "category", req.Category, "error", err)
	}
	if req.Category == domain.CelebrationTGL {
		return fmt.Sprintf("%s generated a tech lead for %s!", req.SellerName, req.CustomerName)
	}
	return fmt.Sprintf("%s just closed a %s sale with %s!", req.SellerName, FormatAmount(req.Amount), req.CustomerName)
}

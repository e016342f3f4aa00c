package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/ignite/sales-celebrations/internal/pkg/httputil"
	"github.com/ignite/sales-celebrations/internal/pkg/logger"
	"github.com/ignite/sales-celebrations/internal/service/ledger"
	"github.com/ignite/sales-celebrations/internal/service/poller"
)

// PollRunner executes poll invocations.
type PollRunner interface {
	Run(ctx context.Context, mode poller.Mode) (poller.Result, error)
	Stats() poller.Stats
}

// RunLister lists recorded poll runs.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]domain.PollRun, error)
}

// ClaimAdmin is the operator view of the delivery ledger.
type ClaimAdmin interface {
	StalePending(ctx context.Context, olderThan time.Duration, limit int) ([]domain.DeliveryClaim, error)
	Reset(ctx context.Context, eventID string, t domain.CelebrationType) (int64, error)
}

// Handlers holds the dependencies of the API handlers.
type Handlers struct {
	poller          PollRunner
	runs            RunLister
	claims          ClaimAdmin
	catchupLookback time.Duration
}

// NewHandlers creates the API handlers.
func NewHandlers(p PollRunner, runs RunLister, claims ClaimAdmin, catchupLookback time.Duration) *Handlers {
	return &Handlers{poller: p, runs: runs, claims: claims, catchupLookback: catchupLookback}
}

// TriggerPoll runs one poll invocation and returns its result.
//
//	POST /api/poll/{variant}
func (h *Handlers) TriggerPoll(w http.ResponseWriter, r *http.Request) {
	variant := domain.PollVariant(chi.URLParam(r, "variant"))
	mode, err := poller.ModeFor(variant, h.catchupLookback)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	// A client hanging up must not cut the run short; the poller's own
	// timeout bounds it.
	res, err := h.poller.Run(context.WithoutCancel(r.Context()), mode)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSettings) {
			logger.Error("api: poll rejected, malformed configuration", "variant", variant, "error", err)
			httputil.ErrorCode(w, http.StatusInternalServerError, "invalid_configuration", err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, res)
}

// ListRuns returns the most recent poll runs.
//
//	GET /api/poll/runs?limit=20
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := httputil.QueryInt(w, r, "limit", 20, 1, 200)
	if !ok {
		return
	}
	runs, err := h.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if runs == nil {
		runs = []domain.PollRun{}
	}
	httputil.OK(w, map[string]any{"runs": runs, "count": len(runs)})
}

// PollStats returns process-lifetime poller counters.
//
//	GET /api/poll/stats
func (h *Handlers) PollStats(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, h.poller.Stats())
}

// ListStaleClaims lists pending claims older than the given age. These block
// their key until reset.
//
//	GET /api/claims/stale?older_than_minutes=30&limit=100
func (h *Handlers) ListStaleClaims(w http.ResponseWriter, r *http.Request) {
	minutes, ok := httputil.QueryInt(w, r, "older_than_minutes", 30, 1, 60*24*365)
	if !ok {
		return
	}
	limit, ok := httputil.QueryInt(w, r, "limit", 100, 1, 1000)
	if !ok {
		return
	}
	claims, err := h.claims.StalePending(r.Context(), time.Duration(minutes)*time.Minute, limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if claims == nil {
		claims = []domain.DeliveryClaim{}
	}
	httputil.OK(w, map[string]any{"claims": claims, "count": len(claims)})
}

// ResetClaims deletes the claims of an event so the next poll celebrates it
// again. Without ?type= every celebration type is reset.
//
//	DELETE /api/claims/{eventID}?type=big_sale
func (h *Handlers) ResetClaims(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	t := domain.CelebrationType(r.URL.Query().Get("type"))

	n, err := h.claims.Reset(r.Context(), eventID, t)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidKey) {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"event_id": eventID, "deleted": n})
}

package poller

import (
	"errors"

	"github.com/ignite/sales-celebrations/internal/domain"
)

var (
	// ErrUpstreamFetch aborts a run; the watermark is left untouched.
	ErrUpstreamFetch = domain.ErrUpstreamFetch
	// ErrStoreUnavailable aborts a run when an existence check cannot be made.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrUnknownVariant   = errors.New("unknown poll variant")
)

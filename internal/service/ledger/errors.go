package ledger

import "errors"

// Sentinel errors for the ledger service layer.
var (
	ErrInvalidKey    = errors.New("claim key requires event id, celebration type and channel id")
	ErrClaimNotFound = errors.New("delivery claim not found")
)

package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so callers can decide how to degrade.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: nothing has been persisted yet
// - ErrCorrupt: persisted content exists but cannot be decoded
// - ErrUnavailable: service or resource temporarily unavailable
// - ErrClosed: component has been shut down and accepts no more work
//
// For validation errors (bad input, missing fields), use models.ErrInvalidRecord.
var (
	ErrNotFound    = errors.New("not found")
	ErrCorrupt     = errors.New("corrupt")
	ErrUnavailable = errors.New("unavailable")
	ErrClosed      = errors.New("closed")
)

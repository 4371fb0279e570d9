package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These represent factual states about stored records, not validation
// failures:
//   - ErrNotFound: record does not exist in the store
//   - ErrInvalidState: record is in a terminal state for the requested write
//     (already revoked, already invalidated)
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
)

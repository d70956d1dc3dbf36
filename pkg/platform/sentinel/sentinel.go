package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and services translate them into domain errors:
//   - ErrNotFound: row does not exist
//   - ErrAlreadyUsed: a unique key (national ID, event+participant pair,
//     caregiver link, account claim) is already taken
//   - ErrUnavailable: the store could not serve the request
//
// For validation failures use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)

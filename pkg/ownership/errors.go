package ownership

import "errors"

var (
	// ErrOwnershipConflict means another hub won the claim race. The
	// caller should re-read the owner, not retry the claim.
	ErrOwnershipConflict = errors.New("ledgerhub: ownership conflict")
	// ErrServiceUnavailable means the coordination store is
	// unreachable. Surfaced immediately, never silently degraded.
	ErrServiceUnavailable = errors.New("ledgerhub: coordination store unavailable")
	// ErrNoOwner means no ownership record exists and claiming was not
	// requested.
	ErrNoOwner = errors.New("ledgerhub: topic has no owner")
	// ErrRegionNotSubscribed means the region has no active
	// cross-region subscription for the topic. Expected in normal
	// operation.
	ErrRegionNotSubscribed = errors.New("ledgerhub: region not subscribed")

	// Store-level sentinels, mapped by the manager.
	ErrNoRecord        = errors.New("ledgerhub: no ownership record")
	ErrRecordExists    = errors.New("ledgerhub: ownership record exists")
	ErrVersionMismatch = errors.New("ledgerhub: ownership record version mismatch")
)

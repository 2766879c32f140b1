package placement

import "errors"

var (
	// ErrNotEnoughReplicas means the writable set minus exclusions
	// cannot satisfy the requested ensemble size. Hard stop: callers
	// must not retry without shrinking the request or growing the
	// cluster.
	ErrNotEnoughReplicas = errors.New("ledgerhub: not enough replicas")
	ErrInvalidQuorum     = errors.New("ledgerhub: invalid quorum sizes")
)

package allocator

import "github.com/iov-one/issuance/errors"

var (
	// ErrInvariant is returned when an operation would break the rule
	// that all allocator rates together must equal the issuance budget.
	ErrInvariant = errors.Register(1000, "allocation invariant violated")

	// ErrUnsupportedTarget is returned when registering a target that
	// does not declare the allocation capability.
	ErrUnsupportedTarget = errors.Register(1001, "unsupported target")

	// ErrReentrancy is returned when a change notification callback
	// attempts a nested registry mutation.
	ErrReentrancy = errors.Register(1002, "reentrant registry access")

	// ErrStaleRequest is returned when a bounded catch-up distribution
	// is asked to target a period outside the valid range.
	ErrStaleRequest = errors.Register(1003, "period outside the valid range")
)

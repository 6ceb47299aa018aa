package reservoir

import "github.com/iov-one/issuance/errors"

var (
	// ErrNegativeMint is returned when drift reconciliation would
	// require minting a negative amount. This happens when drip is
	// called too soon after an issuance rate decrease. The remedy is
	// to wait and retry later; the engine never retries itself.
	ErrNegativeMint = errors.Register(1100, "negative mint amount")

	// ErrNonceGap is returned when a cross-domain payload arrives out
	// of order. The relay layer is expected to deliver it again once
	// its predecessors were applied.
	ErrNonceGap = errors.Register(1101, "payload nonce out of order")
)

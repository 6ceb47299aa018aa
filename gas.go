package issuance

import "math/big"

// GasParams carries the execution fee parameters for a cross-domain
// message. The issuance engine treats them as opaque and hands them to
// the message relay untouched.
type GasParams struct {
	// MaxGas bounds the message execution on the destination domain.
	MaxGas uint64

	// GasPrice is the fee bid per gas unit on the destination domain.
	GasPrice *big.Int

	// SubmissionCost covers the submission of the message itself.
	SubmissionCost *big.Int
}

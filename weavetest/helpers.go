package weavetest

import (
	"sync/atomic"

	"github.com/iov-one/issuance"
)

var addressCounter uint64

// NewAddress returns a new unique address that can be used in tests to
// identify an account or an allocation target.
func NewAddress() issuance.Address {
	n := atomic.AddUint64(&addressCounter, 1)
	raw := []byte{
		byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24),
		byte(n >> 32), byte(n >> 40), byte(n >> 48), byte(n >> 56),
	}
	return issuance.NewAddress(raw)
}

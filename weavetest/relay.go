package weavetest

import (
	"math/big"

	"github.com/iov-one/issuance"
)

// Freezer is a pause flag double. Flip Val to freeze the observing
// component.
type Freezer struct {
	Val bool
}

func (f *Freezer) Frozen() bool {
	return f.Val
}

// RelaySend records a single message handed to the relay mock.
type RelaySend struct {
	Payload  []byte
	Escrowed *big.Int
	Domain   uint32
	Gas      issuance.GasParams
}

// Relay is a message relay double that records every send and returns
// increasing sequence numbers.
type Relay struct {
	// Err, if set, is returned by Send instead of accepting the message.
	Err error

	// Sends collects all accepted messages in order.
	Sends []RelaySend

	seq uint64
}

func (r *Relay) Send(payload []byte, escrowed *big.Int, domain uint32, gas issuance.GasParams) (uint64, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	cpy := make([]byte, len(payload))
	copy(cpy, payload)
	var amount *big.Int
	if escrowed != nil {
		amount = new(big.Int).Set(escrowed)
	}
	r.Sends = append(r.Sends, RelaySend{
		Payload:  cpy,
		Escrowed: amount,
		Domain:   domain,
		Gas:      gas,
	})
	r.seq++
	return r.seq, nil
}

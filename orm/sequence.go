package orm

import (
	"encoding/binary"

	"github.com/iov-one/issuance"
)

// Sequence is a persistent monotonic counter. Every call to NextInt
// returns a value exactly one greater than the previous one, starting
// at 1 on a fresh store.
type Sequence struct {
	id []byte
}

// NewSequence returns the counter persisted under the key
// _s.<bucket>:<name>. Counters with distinct keys are independent.
func NewSequence(bucket, name string) Sequence {
	return Sequence{
		id: []byte("_s." + bucket + ":" + name),
	}
}

// NextInt increments the sequence and returns the new value. The value
// is consumed: no later call ever returns it again.
func (s *Sequence) NextInt(db issuance.KVStore) (int64, error) {
	raw, err := db.Get(s.id)
	if err != nil {
		return 0, err
	}
	var val int64
	if raw != nil {
		val = int64(binary.BigEndian.Uint64(raw))
	}
	val++
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, uint64(val))
	return val, db.Set(s.id, bz)
}

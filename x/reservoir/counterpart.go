package reservoir

import (
	"math/big"

	"github.com/iov-one/issuance"
	"github.com/iov-one/issuance/errors"
	"github.com/iov-one/issuance/fixmath"
)

// Counterpart applies drip payloads on the second domain. Payloads must
// arrive in strict nonce order; the relay layer is expected to retry a
// rejected out-of-order payload once its predecessor was applied.
type Counterpart struct {
	mint MintController
	dest issuance.Address
}

// NewCounterpart wires the counterpart with the ledger it mints through
// and the account the routed rewards are credited to.
func NewCounterpart(mint MintController, dest issuance.Address) *Counterpart {
	return &Counterpart{
		mint: mint,
		dest: dest,
	}
}

// Initialize writes the initial counterpart state. It can be called only
// once.
func (c *Counterpart) Initialize(db issuance.KVStore, info issuance.BlockInfo) error {
	if raw, err := db.Get([]byte(counterpartStateKey)); err != nil {
		return err
	} else if raw != nil {
		return errors.Wrap(errors.ErrImmutable, "already initialized")
	}
	state := &CounterpartState{
		LastAppliedNonce:   0,
		IssuanceRate:       fixmath.One(),
		IssuanceBase:       new(big.Int),
		AccumulatedRewards: new(big.Int),
		LastUpdatePeriod:   info.Height(),
	}
	return saveCounterpartState(db, state)
}

// Receive applies a single payload. Only the direct successor of the last
// applied nonce is accepted, anything else is ErrNonceGap and must be
// retried later by the relay.
func (c *Counterpart) Receive(db issuance.CacheableKVStore, info issuance.BlockInfo, payload *DripPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}

	cache := db.CacheWrap()
	defer cache.Discard()

	state, err := loadCounterpartState(cache)
	if err != nil {
		return err
	}
	if payload.Nonce != state.LastAppliedNonce+1 {
		return errors.Wrapf(ErrNonceGap, "got nonce %d, want %d",
			payload.Nonce, state.LastAppliedNonce+1)
	}

	state.LastAppliedNonce = payload.Nonce
	state.IssuanceRate = payload.IssuanceRate
	state.IssuanceBase = new(big.Int).Set(payload.RemoteBase)
	state.AccumulatedRewards.Add(state.AccumulatedRewards, payload.Routed)
	state.LastUpdatePeriod = info.Height()

	if payload.Routed.Sign() > 0 {
		if err := c.mint.IssueCoins(cache, c.dest, payload.Routed); err != nil {
			return errors.Wrap(err, "mint routed rewards")
		}
	}
	if err := saveCounterpartState(cache, state); err != nil {
		return err
	}
	info.Logger().Info("drip payload applied",
		"nonce", payload.Nonce, "routed", payload.Routed)
	return cache.Write()
}

func loadCounterpartState(db issuance.ReadOnlyKVStore) (*CounterpartState, error) {
	raw, err := db.Get([]byte(counterpartStateKey))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.Wrap(errors.ErrNotFound, "counterpart state")
	}
	var state CounterpartState
	if err := state.Unmarshal(raw); err != nil {
		return nil, err
	}
	return &state, nil
}

func saveCounterpartState(db issuance.KVStore, state *CounterpartState) error {
	raw, err := state.Marshal()
	if err != nil {
		return err
	}
	return db.Set([]byte(counterpartStateKey), raw)
}

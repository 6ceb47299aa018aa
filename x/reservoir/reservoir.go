package reservoir

import (
	"math/big"

	"github.com/iov-one/issuance"
	"github.com/iov-one/issuance/errors"
	"github.com/iov-one/issuance/fixmath"
	"github.com/iov-one/issuance/gconf"
	"github.com/iov-one/issuance/orm"
)

// MintController is the token ledger primitive the reservoir mints
// through. Implemented by the x/cash extension.
type MintController interface {
	IssueCoins(db issuance.KVStore, dest issuance.Address, amount *big.Int) error
}

// Relay carries a serialized drip payload to the second domain. The call
// is fire-and-forget: the returned sequence number identifies the message
// within the relay, delivery ordering is enforced by the counterpart
// through the payload nonce. The gas parameters are passed through
// untouched.
type Relay interface {
	Send(payload []byte, escrowed *big.Int, domain uint32, gas issuance.GasParams) (uint64, error)
}

// Reservoir accrues compounding rewards and periodically mints them,
// splitting the minted amount between this domain and a second one.
type Reservoir struct {
	mint  MintController
	relay Relay
	seq   orm.Sequence
}

// NewReservoir wires the reservoir with the ledger it mints through and
// the outbound relay.
func NewReservoir(mint MintController, relay Relay) *Reservoir {
	return &Reservoir{
		mint:  mint,
		relay: relay,
		seq:   orm.NewSequence("reservoir", "drip"),
	}
}

// Initialize writes the configuration and the initial accrual state. It
// can be called only once.
func (r *Reservoir) Initialize(db issuance.CacheableKVStore, info issuance.BlockInfo, conf Configuration, base *big.Int, rate fixmath.Dec) error {
	if raw, err := db.Get([]byte(stateKey)); err != nil {
		return err
	} else if raw != nil {
		return errors.Wrap(errors.ErrImmutable, "already initialized")
	}
	if base == nil || base.Sign() < 0 {
		return errors.Wrap(errors.ErrAmount, "issuance base")
	}

	cache := db.CacheWrap()
	defer cache.Discard()

	if err := gconf.Save(cache, pkgName, &conf); err != nil {
		return errors.Wrap(err, "configuration")
	}
	state := &State{
		IssuanceRate:            rate,
		DomainSplitFraction:     fixmath.Zero(),
		LastSplitFraction:       fixmath.Zero(),
		IssuanceBase:            new(big.Int).Set(base),
		AccumulatedLocalRewards: new(big.Int),
		MintedAhead:             new(big.Int),
		MintedAheadRouted:       new(big.Int),
		LastUpdatePeriod:        info.Height(),
		MintedUntilPeriod:       info.Height(),
	}
	if err := saveState(cache, state); err != nil {
		return err
	}
	return cache.Write()
}

// NewGlobalRewards returns the rewards accrued between state's last
// snapshot and the given period. The result is zero when the rate sits at
// the no-growth floor or no period has elapsed.
func NewGlobalRewards(state *State, period int64) (*big.Int, error) {
	if state.IssuanceRate.Cmp(fixmath.One()) <= 0 {
		return new(big.Int), nil
	}
	if period <= state.LastUpdatePeriod {
		return new(big.Int), nil
	}
	elapsed := uint64(period - state.LastUpdatePeriod)
	factor, err := fixmath.Pow(state.IssuanceRate, elapsed)
	if err != nil {
		return nil, errors.Wrap(err, "growth factor")
	}
	grown, err := fixmath.MulBig(state.IssuanceBase, factor)
	if err != nil {
		return nil, errors.Wrap(err, "grown base")
	}
	return grown.Sub(grown, state.IssuanceBase), nil
}

// SetIssuanceRate snapshots the accrual under the old rate, then switches
// to the new one. The rate cannot go below the no-growth floor.
func (r *Reservoir) SetIssuanceRate(db issuance.CacheableKVStore, info issuance.BlockInfo, rate fixmath.Dec) error {
	if rate.Cmp(fixmath.One()) < 0 {
		return errors.Wrap(errors.ErrAmount, "rate below the no-growth floor")
	}

	cache := db.CacheWrap()
	defer cache.Discard()

	state, err := loadState(cache)
	if err != nil {
		return err
	}
	if err := snapshot(state, info.Height()); err != nil {
		return err
	}
	state.IssuanceRate = rate
	if err := saveState(cache, state); err != nil {
		return err
	}
	info.Logger().Info("issuance rate updated", "rate", rate)
	return cache.Write()
}

// SetDomainSplitFraction snapshots the accrual under the old fraction,
// then switches to the new one. The new fraction applies to accrual
// immediately and to routing from the next drip on.
func (r *Reservoir) SetDomainSplitFraction(db issuance.CacheableKVStore, info issuance.BlockInfo, frac fixmath.Dec) error {
	if frac.Cmp(fixmath.One()) > 0 {
		return errors.Wrap(errors.ErrAmount, "fraction above one")
	}

	cache := db.CacheWrap()
	defer cache.Discard()

	state, err := loadState(cache)
	if err != nil {
		return err
	}
	if err := snapshot(state, info.Height()); err != nil {
		return err
	}
	state.DomainSplitFraction = frac
	if err := saveState(cache, state); err != nil {
		return err
	}
	info.Logger().Info("domain split fraction updated", "fraction", frac)
	return cache.Write()
}

// Drip reconciles the accrual with what the previous drip minted ahead
// and mints the amount due for the upcoming interval, net of the drift.
// The local share goes to the reservoir account, the routed share is
// escrowed and announced to the second domain through the relay. The
// returned payload is nil when nothing is sent.
//
// A drip too soon after a rate decrease can leave the drift larger than
// the new accrual. That is ErrNegativeMint and the remedy is to wait for
// more periods to elapse, not to retry with different parameters.
func (r *Reservoir) Drip(db issuance.CacheableKVStore, info issuance.BlockInfo, gas issuance.GasParams) (*DripPayload, error) {
	cache := db.CacheWrap()
	defer cache.Discard()

	conf, err := loadConf(cache)
	if err != nil {
		return nil, err
	}
	state, err := loadState(cache)
	if err != nil {
		return nil, err
	}
	now := info.Height()

	// Folding the accrual first leaves MintedAhead at exactly the
	// drift: the amount the previous drip minted that has still not
	// accrued. Early drips leave it positive, late drips negative.
	// The figure was measured under the rates in effect when each
	// stretch accrued, so a mid-interval rate change reconciles
	// exactly instead of being re-derived under the current rate.
	if err := snapshot(state, now); err != nil {
		return nil, err
	}
	eps := new(big.Int).Set(state.MintedAhead)
	epsRouted := new(big.Int).Set(state.MintedAheadRouted)

	horizon := now + conf.DripInterval
	newRewards, err := NewGlobalRewards(state, horizon)
	if err != nil {
		return nil, err
	}

	tokensToMint := new(big.Int).Sub(newRewards, eps)
	if tokensToMint.Sign() < 0 {
		return nil, errors.Wrapf(ErrNegativeMint,
			"drift %s exceeds new rewards %s", eps, newRewards)
	}

	// The routed share uses the new fraction on the new rewards,
	// corrected by the old fraction's share of the drift. The drift
	// share is carried as its own truncated figure and subtracted
	// whole, which can differ from a single merged product by one
	// unit.
	newRouted, err := fixmath.MulBig(newRewards, state.DomainSplitFraction)
	if err != nil {
		return nil, err
	}
	routed := new(big.Int).Sub(newRouted, epsRouted)
	if routed.Sign() < 0 || routed.Cmp(tokensToMint) > 0 {
		return nil, errors.Wrapf(ErrNegativeMint,
			"routed %s out of the mintable range %s", routed, tokensToMint)
	}
	local := new(big.Int).Sub(tokensToMint, routed)

	if local.Sign() > 0 {
		if err := r.mint.IssueCoins(cache, conf.ReservoirAddress, local); err != nil {
			return nil, errors.Wrap(err, "mint local share")
		}
	}
	if routed.Sign() > 0 {
		if err := r.mint.IssueCoins(cache, conf.EscrowAddress, routed); err != nil {
			return nil, errors.Wrap(err, "mint routed share")
		}
	}

	state.MintedAhead = newRewards
	state.MintedAheadRouted = newRouted
	state.MintedUntilPeriod = horizon
	state.LastSplitFraction = state.DomainSplitFraction

	var payload *DripPayload
	if routed.Sign() > 0 || !state.DomainSplitFraction.IsZero() {
		nonce, err := r.seq.NextInt(cache)
		if err != nil {
			return nil, errors.Wrap(err, "drip nonce")
		}
		remoteBase, err := fixmath.MulBig(state.IssuanceBase, state.DomainSplitFraction)
		if err != nil {
			return nil, err
		}
		payload = &DripPayload{
			Nonce:        uint64(nonce),
			IssuanceRate: state.IssuanceRate,
			RemoteBase:   remoteBase,
			Routed:       routed,
			Domain:       conf.RemoteDomain,
		}
		raw, err := payload.Marshal()
		if err != nil {
			return nil, err
		}
		if _, err := r.relay.Send(raw, routed, conf.RemoteDomain, gas); err != nil {
			return nil, errors.Wrap(err, "relay")
		}
		info.Logger().Info("drip routed to second domain",
			"nonce", payload.Nonce, "routed", routed, "domain", conf.RemoteDomain)
	}

	if err := saveState(cache, state); err != nil {
		return nil, err
	}
	if err := cache.Write(); err != nil {
		return nil, err
	}
	return payload, nil
}

// snapshot folds the accrual up to the given period into the base and the
// local accumulator, under the currently active split fraction. The
// accrued amount is also deducted from the minted-ahead bookkeeping, with
// its routed share measured under the fraction the outstanding stretch
// was escrowed at.
func snapshot(state *State, period int64) error {
	actual, err := NewGlobalRewards(state, period)
	if err != nil {
		return err
	}
	if actual.Sign() > 0 {
		localFrac, err := fixmath.One().Sub(state.DomainSplitFraction)
		if err != nil {
			return err
		}
		localShare, err := fixmath.MulBig(actual, localFrac)
		if err != nil {
			return err
		}
		routedShare, err := fixmath.MulBig(actual, state.LastSplitFraction)
		if err != nil {
			return err
		}
		state.IssuanceBase.Add(state.IssuanceBase, actual)
		state.AccumulatedLocalRewards.Add(state.AccumulatedLocalRewards, localShare)
		state.MintedAhead.Sub(state.MintedAhead, actual)
		state.MintedAheadRouted.Sub(state.MintedAheadRouted, routedShare)
	}
	if period > state.LastUpdatePeriod {
		state.LastUpdatePeriod = period
	}
	if state.MintedUntilPeriod < state.LastUpdatePeriod {
		state.MintedUntilPeriod = state.LastUpdatePeriod
	}
	return nil
}

func loadState(db issuance.ReadOnlyKVStore) (*State, error) {
	raw, err := db.Get([]byte(stateKey))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.Wrap(errors.ErrNotFound, "reservoir state")
	}
	var state State
	if err := state.Unmarshal(raw); err != nil {
		return nil, err
	}
	return &state, nil
}

func saveState(db issuance.KVStore, state *State) error {
	raw, err := state.Marshal()
	if err != nil {
		return err
	}
	return db.Set([]byte(stateKey), raw)
}

func loadConf(db issuance.ReadOnlyKVStore) (Configuration, error) {
	var conf Configuration
	if err := gconf.Load(db, pkgName, &conf); err != nil {
		return conf, errors.Wrap(err, "configuration")
	}
	return conf, nil
}

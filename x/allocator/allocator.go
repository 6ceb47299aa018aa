package allocator

import (
	"math/big"

	"github.com/iov-one/issuance"
	"github.com/iov-one/issuance/errors"
)

// MintController is the token ledger primitive the allocator funds
// targets through. Implemented by the x/cash extension.
type MintController interface {
	IssueCoins(db issuance.KVStore, dest issuance.Address, amount *big.Int) error
}

// Allocator drives the period-based distribution of the issuance budget
// using the registry state.
type Allocator struct {
	reg     *Registry
	mint    MintController
	freezer issuance.Freezer
}

// NewAllocator wires the allocator with its registry, the ledger to mint
// through and the external pause flag.
func NewAllocator(reg *Registry, mint MintController, freezer issuance.Freezer) *Allocator {
	return &Allocator{
		reg:     reg,
		mint:    mint,
		freezer: freezer,
	}
}

// Distribute mints the amounts due for all periods elapsed since the
// last distribution. Calling it again within the same period is a no-op.
// While frozen no periods accrue, so distribution is suspended.
func (a *Allocator) Distribute(db issuance.CacheableKVStore, info issuance.BlockInfo) error {
	_, err := a.distributeTo(db, info, info.Height())
	return err
}

// DistributePending runs the distribution algorithm restricted to the
// range ending at toPeriod. Asking for a period ahead of the current one,
// or behind the last distribution, is ErrStaleRequest. Asking for exactly
// the last distribution period is a valid no-op: the unchanged period is
// returned and nothing is minted.
func (a *Allocator) DistributePending(db issuance.CacheableKVStore, info issuance.BlockInfo, toPeriod int64) (int64, error) {
	if toPeriod > info.Height() {
		return 0, errors.Wrapf(ErrStaleRequest, "period %d is in the future", toPeriod)
	}
	return a.distributeTo(db, info, toPeriod)
}

func (a *Allocator) distributeTo(db issuance.CacheableKVStore, info issuance.BlockInfo, toPeriod int64) (int64, error) {
	if a.frozen() {
		// the period counter is held, nothing can have accrued
		state, err := loadState(db)
		if err != nil {
			return 0, err
		}
		return state.LastDistributionPeriod, nil
	}

	cache := db.CacheWrap()
	defer cache.Discard()

	state, err := loadState(cache)
	if err != nil {
		return 0, err
	}
	if toPeriod < state.LastDistributionPeriod {
		return 0, errors.Wrapf(ErrStaleRequest, "period %d already distributed", toPeriod)
	}
	elapsed := toPeriod - state.LastDistributionPeriod
	if elapsed == 0 {
		return state.LastDistributionPeriod, nil
	}

	list, err := loadTargets(cache)
	if err != nil {
		return 0, err
	}

	bigElapsed := big.NewInt(elapsed)
	totalForPeriod := new(big.Int).Mul(state.IssuancePerPeriod, bigElapsed)
	available := new(big.Int).Sub(totalForPeriod, state.PendingSelfMintOffset)
	if available.Sign() < 0 {
		available = new(big.Int)
	}

	allocatedTotal := list.AllocatedTotal()
	allocatedElapsed := new(big.Int).Mul(allocatedTotal, bigElapsed)

	switch {
	case available.Sign() == 0:
		// nothing to fund, but the interval is still settled below
	case available.Cmp(allocatedElapsed) >= 0:
		// full distribution: everyone gets their rate, the default
		// absorbs the rest of the available funds
		distributed := new(big.Int)
		for _, t := range list.Targets[1:] {
			amount := new(big.Int).Mul(t.AllocatorRate, bigElapsed)
			if amount.Sign() == 0 {
				continue
			}
			if err := a.mint.IssueCoins(cache, t.ID, amount); err != nil {
				return 0, errors.Wrapf(err, "mint to %s", t.ID)
			}
			distributed.Add(distributed, amount)
		}
		rest := new(big.Int).Sub(available, distributed)
		if rest.Sign() > 0 {
			if err := a.mint.IssueCoins(cache, list.Default().ID, rest); err != nil {
				return 0, errors.Wrap(err, "mint to default")
			}
		}
		info.Logger().Debug("full distribution",
			"periods", elapsed, "available", available, "to_default", rest)
	default:
		// proportional distribution: available funds are split by
		// rate. Integer division truncates and the remainder is
		// lost, not redistributed. The default receives nothing,
		// there is no surplus to absorb.
		for _, t := range list.Targets[1:] {
			amount := new(big.Int).Mul(t.AllocatorRate, available)
			amount.Quo(amount, allocatedTotal)
			if amount.Sign() == 0 {
				continue
			}
			if err := a.mint.IssueCoins(cache, t.ID, amount); err != nil {
				return 0, errors.Wrapf(err, "mint to %s", t.ID)
			}
		}
		info.Logger().Debug("proportional distribution",
			"periods", elapsed, "available", available, "allocated", allocatedElapsed)
	}

	state.LastDistributionPeriod = toPeriod
	state.PendingSelfMintOffset = new(big.Int)
	if err := saveState(cache, state); err != nil {
		return 0, err
	}
	if err := cache.Write(); err != nil {
		return 0, err
	}
	return toPeriod, nil
}

// SetIssuancePerPeriod changes the rate budget. Only the default target
// is notified: the absolute rates of non-default targets do not change,
// only the default's derived share shifts. Returns false without an error
// when the minimum period cannot be satisfied because the allocator is
// frozen.
func (a *Allocator) SetIssuancePerPeriod(db issuance.CacheableKVStore, info issuance.BlockInfo, rate *big.Int, minPeriod int64) (ok bool, err error) {
	if err := a.reg.enter(); err != nil {
		return false, err
	}
	defer a.reg.exit()

	if rate == nil || rate.Sign() < 0 {
		return false, errors.Wrap(errors.ErrAmount, "rate")
	}

	cache := db.CacheWrap()
	defer cache.Discard()

	state, err := loadState(cache)
	if err != nil {
		return false, err
	}
	if !a.reg.periodReached(state, info, minPeriod) {
		return false, nil
	}

	list, err := loadTargets(cache)
	if err != nil {
		return false, err
	}

	allocated := list.AllocatedTotal()
	newDefault := new(big.Int).Sub(rate, allocated)
	if newDefault.Sign() < 0 {
		return false, errors.Wrapf(ErrInvariant, "budget %s below allocated %s", rate, allocated)
	}

	// notify before the change takes effect
	if _, err := a.reg.notify(cache, info, list, list.Default().ID); err != nil {
		return false, err
	}

	list.Default().AllocatorRate = newDefault
	state.IssuancePerPeriod = new(big.Int).Set(rate)

	if err := saveTargets(cache, list); err != nil {
		return false, err
	}
	if err := saveState(cache, state); err != nil {
		return false, err
	}
	if err := assertConserved(list, state); err != nil {
		return false, err
	}
	info.Logger().Info("issuance per period changed", "rate", rate)
	return true, cache.Write()
}

// NotifyTargets delivers a change notification to each given target, at
// most once per period. It returns the number of targets actually
// notified; zero is a valid no-op outcome, not an error.
func (a *Allocator) NotifyTargets(db issuance.CacheableKVStore, info issuance.BlockInfo, targets ...issuance.Address) (int, error) {
	if err := a.reg.enter(); err != nil {
		return 0, err
	}
	defer a.reg.exit()

	cache := db.CacheWrap()
	defer cache.Discard()

	list, err := loadTargets(cache)
	if err != nil {
		return 0, err
	}

	var count int
	for _, id := range targets {
		entry := list.Find(id)
		if entry == nil && !list.Default().ID.Equals(id) {
			return 0, errors.Wrapf(errors.ErrNotFound, "target %s", id)
		}
		done, err := a.reg.notify(cache, info, list, id)
		if err != nil {
			return 0, err
		}
		if done {
			count++
		}
	}
	if err := saveTargets(cache, list); err != nil {
		return 0, err
	}
	return count, cache.Write()
}

// ForceNoChangeNotificationPeriod marks the target as already notified
// for the given period, suppressing notification delivery until that
// period is past. Supplying a past period re-enables notification for the
// current period.
func (a *Allocator) ForceNoChangeNotificationPeriod(db issuance.CacheableKVStore, info issuance.BlockInfo, id issuance.Address, period int64) error {
	cache := db.CacheWrap()
	defer cache.Discard()

	list, err := loadTargets(cache)
	if err != nil {
		return err
	}
	var entry *Target
	if list.Default().ID.Equals(id) {
		entry = list.Default()
	} else if entry = list.Find(id); entry == nil {
		return errors.Wrapf(errors.ErrNotFound, "target %s", id)
	}
	entry.LastNotifiedPeriod = period
	if err := saveTargets(cache, list); err != nil {
		return err
	}
	info.Logger().Debug("notification override", "target", id, "period", period)
	return cache.Write()
}

// ReportSelfMint records an amount a self-funding target minted on its
// own. While frozen the amount is queued in the pending offset and
// reconciled into the next distribution; while active it is accounting
// information only.
func (a *Allocator) ReportSelfMint(db issuance.CacheableKVStore, info issuance.BlockInfo, id issuance.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.Wrap(errors.ErrAmount, "non-positive self mint")
	}

	cache := db.CacheWrap()
	defer cache.Discard()

	list, err := loadTargets(cache)
	if err != nil {
		return err
	}
	entry := list.Find(id)
	if entry == nil {
		return errors.Wrapf(errors.ErrNotFound, "target %s", id)
	}
	if entry.SelfRate.Sign() == 0 {
		return errors.Wrapf(errors.ErrState, "target %s is not self-funding", id)
	}

	if a.frozen() {
		state, err := loadState(cache)
		if err != nil {
			return err
		}
		state.PendingSelfMintOffset = new(big.Int).Add(state.PendingSelfMintOffset, amount)
		if err := saveState(cache, state); err != nil {
			return err
		}
	}
	info.Logger().Debug("self mint reported", "target", id, "amount", amount, "frozen", a.frozen())
	return cache.Write()
}

func (a *Allocator) frozen() bool {
	return a.freezer != nil && a.freezer.Frozen()
}

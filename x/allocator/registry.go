package allocator

import (
	"math/big"

	"github.com/iov-one/issuance"
	"github.com/iov-one/issuance/errors"
	"github.com/iov-one/issuance/gconf"
)

// AllocationTarget is the contract every registered target must fulfill.
// The registry queries the capability before registration and delivers
// change notifications through it. A notification callback runs
// synchronously inside the registry mutation: an error aborts the whole
// operation and a reentrant registry call fails fast.
type AllocationTarget interface {
	// Address identifies the target and the account it mints to.
	Address() issuance.Address

	// SupportsAllocation is the capability probe. Targets answering
	// false cannot be registered.
	SupportsAllocation() bool

	// OnAllocationChange is invoked when the rate of this target (or,
	// for the default target, its derived share) changed.
	OnAllocationChange(db issuance.KVStore) error
}

// Registry holds the set of allocation targets and enforces the budget
// conservation invariant: the allocator rates of all targets, default
// included, always sum up to the issuance budget.
//
// A registry is a single logical writer. Operations run to completion,
// the only hazard is a notification callback reentering a mutation and
// that is guarded by the busy flag.
type Registry struct {
	freezer issuance.Freezer
	handles map[string]AllocationTarget
	busy    bool
}

// NewRegistry returns a registry observing the given pause flag. All
// targets that should be reachable for notifications must be registered
// here or passed through registry operations later.
func NewRegistry(freezer issuance.Freezer, targets ...AllocationTarget) *Registry {
	r := &Registry{
		freezer: freezer,
		handles: make(map[string]AllocationTarget),
	}
	for _, t := range targets {
		r.Handle(t)
	}
	return r
}

// Handle makes a target reachable for notification delivery.
func (r *Registry) Handle(t AllocationTarget) {
	r.handles[t.Address().String()] = t
}

// enter flips the reentrancy flag for the duration of a mutating
// operation that may call back into target code.
func (r *Registry) enter() error {
	if r.busy {
		return errors.Wrap(ErrReentrancy, "registry mutation in progress")
	}
	r.busy = true
	return nil
}

func (r *Registry) exit() {
	r.busy = false
}

// Initialize writes the initial registry and distribution state: the
// given default target absorbs the whole issuance budget. This must be
// called exactly once before any other operation.
func (r *Registry) Initialize(db issuance.CacheableKVStore, info issuance.BlockInfo, conf Configuration, defaultTarget AllocationTarget, issuancePerPeriod *big.Int) error {
	if issuancePerPeriod == nil || issuancePerPeriod.Sign() < 0 {
		return errors.Wrap(errors.ErrAmount, "issuance per period")
	}
	if !defaultTarget.SupportsAllocation() {
		return errors.Wrap(ErrUnsupportedTarget, defaultTarget.Address().String())
	}

	cache := db.CacheWrap()
	defer cache.Discard()

	if ok, err := cache.Has([]byte(stateKey)); err != nil {
		return err
	} else if ok {
		return errors.Wrap(errors.ErrState, "already initialized")
	}

	if err := gconf.Save(cache, pkgName, &conf); err != nil {
		return errors.Wrap(err, "save configuration")
	}

	list := TargetList{
		Targets: []*Target{
			{
				ID:            defaultTarget.Address(),
				AllocatorRate: new(big.Int).Set(issuancePerPeriod),
				SelfRate:      new(big.Int),
			},
		},
	}
	state := DistributionState{
		LastDistributionPeriod: info.Height(),
		IssuancePerPeriod:      new(big.Int).Set(issuancePerPeriod),
		PendingSelfMintOffset:  new(big.Int),
	}
	if err := saveTargets(cache, &list); err != nil {
		return err
	}
	if err := saveState(cache, &state); err != nil {
		return err
	}
	r.Handle(defaultTarget)
	return cache.Write()
}

// SetAllocatorRate assigns an allocator-funded per-period rate to the
// target. Setting a non-zero rate clears any self rate the target held: a
// target is allocator-funded or self-funding, never silently both.
// Setting the rate to zero while no self rate remains removes the target.
func (r *Registry) SetAllocatorRate(db issuance.CacheableKVStore, info issuance.BlockInfo, target AllocationTarget, rate *big.Int, minPeriod int64) (bool, error) {
	return r.setAllocation(db, info, target, rate, nil, minPeriod)
}

// SetSelfRate assigns a self-minted per-period rate to the target,
// tracked for accounting only. Setting a non-zero rate clears any
// allocator rate the target held.
func (r *Registry) SetSelfRate(db issuance.CacheableKVStore, info issuance.BlockInfo, target AllocationTarget, rate *big.Int, minPeriod int64) (bool, error) {
	return r.setAllocation(db, info, target, nil, rate, minPeriod)
}

// SetAllocation is the transitional form that sets both rates explicitly
// at once. It exists for migrations; regular callers use SetAllocatorRate
// or SetSelfRate.
func (r *Registry) SetAllocation(db issuance.CacheableKVStore, info issuance.BlockInfo, target AllocationTarget, allocatorRate, selfRate *big.Int, minPeriod int64) (bool, error) {
	if allocatorRate == nil {
		allocatorRate = new(big.Int)
	}
	if selfRate == nil {
		selfRate = new(big.Int)
	}
	return r.setAllocation(db, info, target, allocatorRate, selfRate, minPeriod)
}

// setAllocation updates the rates of a single target. A nil rate means
// "derive from the other one": when the other rate is set non-zero it is
// cleared, otherwise it is left untouched.
func (r *Registry) setAllocation(db issuance.CacheableKVStore, info issuance.BlockInfo, target AllocationTarget, allocatorRate, selfRate *big.Int, minPeriod int64) (ok bool, err error) {
	if err := r.enter(); err != nil {
		return false, err
	}
	defer r.exit()

	if target == nil || len(target.Address()) == 0 {
		return false, errors.Wrap(errors.ErrEmpty, "target")
	}
	if err := target.Address().Validate(); err != nil {
		return false, errors.Wrap(err, "target")
	}

	cache := db.CacheWrap()
	defer cache.Discard()

	state, err := loadState(cache)
	if err != nil {
		return false, err
	}
	if !r.periodReached(state, info, minPeriod) {
		return false, nil
	}

	list, err := loadTargets(cache)
	if err != nil {
		return false, err
	}
	if list.Default().ID.Equals(target.Address()) {
		return false, errors.Wrap(errors.ErrInput, "default allocation is derived, not assigned")
	}

	entry := list.Find(target.Address())
	if entry == nil {
		if !target.SupportsAllocation() {
			return false, errors.Wrap(ErrUnsupportedTarget, target.Address().String())
		}
		conf, err := loadConf(cache)
		if err != nil {
			return false, err
		}
		if uint32(len(list.Targets)) > conf.MaxTargets {
			return false, errors.Wrapf(errors.ErrState, "more than %d targets", conf.MaxTargets)
		}
		entry = &Target{
			ID:            target.Address().Clone(),
			AllocatorRate: new(big.Int),
			SelfRate:      new(big.Int),
		}
		list.Targets = append(list.Targets, entry)
	}
	r.Handle(target)

	newAllocator, newSelf := resolveRates(entry, allocatorRate, selfRate)
	if newAllocator.Sign() < 0 || newSelf.Sign() < 0 {
		return false, errors.Wrap(errors.ErrAmount, "negative rate")
	}

	// The default absorbs the difference so that the budget stays
	// conserved. Going below zero means allocating beyond the budget.
	diff := new(big.Int).Sub(newAllocator, entry.AllocatorRate)
	def := list.Default()
	newDefault := new(big.Int).Sub(def.AllocatorRate, diff)
	if newDefault.Sign() < 0 {
		return false, errors.Wrapf(ErrInvariant, "rate %s exceeds the remaining budget", newAllocator)
	}
	def.AllocatorRate = newDefault
	entry.AllocatorRate = newAllocator
	entry.SelfRate = newSelf

	if entry.AllocatorRate.Sign() == 0 && entry.SelfRate.Sign() == 0 {
		list.Remove(entry.ID)
		entry = nil
	}

	if _, err := r.notify(cache, info, list, target.Address()); err != nil {
		return false, err
	}

	if err := saveTargets(cache, list); err != nil {
		return false, err
	}
	if err := assertConserved(list, state); err != nil {
		return false, err
	}
	info.Logger().Debug("allocation changed",
		"target", target.Address(), "allocator_rate", newAllocator, "self_rate", newSelf)
	return true, cache.Write()
}

// resolveRates applies the rate exclusion rule. A nil argument means the
// rate was not given by the caller.
func resolveRates(entry *Target, allocatorRate, selfRate *big.Int) (*big.Int, *big.Int) {
	switch {
	case allocatorRate != nil && selfRate != nil:
		// migration form, both explicit
		return new(big.Int).Set(allocatorRate), new(big.Int).Set(selfRate)
	case allocatorRate != nil:
		if allocatorRate.Sign() > 0 {
			return new(big.Int).Set(allocatorRate), new(big.Int)
		}
		return new(big.Int).Set(allocatorRate), new(big.Int).Set(entry.SelfRate)
	case selfRate != nil:
		if selfRate.Sign() > 0 {
			return new(big.Int), new(big.Int).Set(selfRate)
		}
		return new(big.Int).Set(entry.AllocatorRate), new(big.Int).Set(selfRate)
	default:
		return new(big.Int).Set(entry.AllocatorRate), new(big.Int).Set(entry.SelfRate)
	}
}

// SetDefaultTarget replaces the default target. The new default must not
// hold any explicit allocation. It inherits the residual rate of the old
// default, preserving the budget invariant, and the old default leaves
// the registry with its allocation zeroed.
func (r *Registry) SetDefaultTarget(db issuance.CacheableKVStore, info issuance.BlockInfo, target AllocationTarget, minPeriod int64) (ok bool, err error) {
	if err := r.enter(); err != nil {
		return false, err
	}
	defer r.exit()

	if target == nil || len(target.Address()) == 0 {
		return false, errors.Wrap(errors.ErrEmpty, "target")
	}
	if !target.SupportsAllocation() {
		return false, errors.Wrap(ErrUnsupportedTarget, target.Address().String())
	}

	cache := db.CacheWrap()
	defer cache.Discard()

	state, err := loadState(cache)
	if err != nil {
		return false, err
	}
	if !r.periodReached(state, info, minPeriod) {
		return false, nil
	}

	list, err := loadTargets(cache)
	if err != nil {
		return false, err
	}
	old := list.Default()
	if old.ID.Equals(target.Address()) {
		return false, errors.Wrap(errors.ErrState, "already the default target")
	}
	if entry := list.Find(target.Address()); entry != nil {
		return false, errors.Wrap(errors.ErrState, "target holds an explicit allocation")
	}

	oldID := old.ID
	list.Targets[0] = &Target{
		ID:            target.Address().Clone(),
		AllocatorRate: old.AllocatorRate,
		SelfRate:      new(big.Int),
	}
	r.Handle(target)

	// Both parties learn about the change: the old default lost its
	// derived share, the new one inherited it.
	if _, err := r.notifyHandle(cache, info, list, oldID); err != nil {
		return false, err
	}
	if _, err := r.notify(cache, info, list, target.Address()); err != nil {
		return false, err
	}

	if err := saveTargets(cache, list); err != nil {
		return false, err
	}
	if err := assertConserved(list, state); err != nil {
		return false, err
	}
	info.Logger().Info("default target changed", "old", oldID, "new", target.Address())
	return true, cache.Write()
}

// TotalAllocation reports the aggregate rates over all non-default
// targets. The default target is excluded: it represents capacity that
// was not yet explicitly allocated.
type TotalAllocation struct {
	AllocatorRate *big.Int
	SelfRate      *big.Int
	Total         *big.Int
}

// TotalAllocation aggregates the explicitly allocated rates.
func (r *Registry) TotalAllocation(db issuance.ReadOnlyKVStore) (*TotalAllocation, error) {
	list, err := loadTargets(db)
	if err != nil {
		return nil, err
	}
	res := &TotalAllocation{
		AllocatorRate: new(big.Int),
		SelfRate:      new(big.Int),
		Total:         new(big.Int),
	}
	for _, t := range list.Targets[1:] {
		res.AllocatorRate.Add(res.AllocatorRate, t.AllocatorRate)
		res.SelfRate.Add(res.SelfRate, t.SelfRate)
	}
	res.Total.Add(res.AllocatorRate, res.SelfRate)
	return res, nil
}

// notify delivers a change notification to the given address, at most
// once per period. It returns whether a notification was delivered.
func (r *Registry) notify(db issuance.KVStore, info issuance.BlockInfo, list *TargetList, id issuance.Address) (bool, error) {
	return r.deliver(db, info, list, id, false)
}

// notifyHandle works like notify but tolerates addresses that are no
// longer part of the list (their notification bookkeeping is gone).
func (r *Registry) notifyHandle(db issuance.KVStore, info issuance.BlockInfo, list *TargetList, id issuance.Address) (bool, error) {
	return r.deliver(db, info, list, id, true)
}

func (r *Registry) deliver(db issuance.KVStore, info issuance.BlockInfo, list *TargetList, id issuance.Address, gone bool) (bool, error) {
	handle, ok := r.handles[id.String()]
	if !ok {
		if gone {
			return false, nil
		}
		return false, errors.Wrapf(errors.ErrNotFound, "no handle for %s", id)
	}

	var entry *Target
	if list.Default().ID.Equals(id) {
		entry = list.Default()
	} else {
		entry = list.Find(id)
	}
	if entry != nil && entry.LastNotifiedPeriod >= info.Height() {
		// already notified within this period
		return false, nil
	}
	if err := handle.OnAllocationChange(db); err != nil {
		return false, errors.Wrapf(err, "notify %s", id)
	}
	if entry != nil {
		entry.LastNotifiedPeriod = info.Height()
	}
	return true, nil
}

// periodReached implements the min-period gate. While frozen the period
// counter is held at the last distribution period, which can make the
// requested minimum unreachable; that is a no-op condition, not an error.
func (r *Registry) periodReached(state *DistributionState, info issuance.BlockInfo, minPeriod int64) bool {
	if minPeriod <= 0 {
		return true
	}
	return r.effectivePeriod(state, info) >= minPeriod
}

// effectivePeriod is the period counter this engine observes: the block
// height, or the held counter while frozen.
func (r *Registry) effectivePeriod(state *DistributionState, info issuance.BlockInfo) int64 {
	if r.freezer != nil && r.freezer.Frozen() {
		return state.LastDistributionPeriod
	}
	return info.Height()
}

func loadTargets(db issuance.ReadOnlyKVStore) (*TargetList, error) {
	raw, err := db.Get([]byte(targetsKey))
	if err != nil {
		return nil, errors.Wrap(err, "load targets")
	}
	if raw == nil {
		return nil, errors.Wrap(errors.ErrNotFound, "registry not initialized")
	}
	var list TargetList
	if err := list.Unmarshal(raw); err != nil {
		return nil, err
	}
	return &list, nil
}

func saveTargets(db issuance.KVStore, list *TargetList) error {
	raw, err := list.Marshal()
	if err != nil {
		return err
	}
	return db.Set([]byte(targetsKey), raw)
}

func loadState(db issuance.ReadOnlyKVStore) (*DistributionState, error) {
	raw, err := db.Get([]byte(stateKey))
	if err != nil {
		return nil, errors.Wrap(err, "load state")
	}
	if raw == nil {
		return nil, errors.Wrap(errors.ErrNotFound, "allocator not initialized")
	}
	var state DistributionState
	if err := state.Unmarshal(raw); err != nil {
		return nil, err
	}
	return &state, nil
}

func saveState(db issuance.KVStore, state *DistributionState) error {
	raw, err := state.Marshal()
	if err != nil {
		return err
	}
	return db.Set([]byte(stateKey), raw)
}

func loadConf(db issuance.ReadOnlyKVStore) (*Configuration, error) {
	var conf Configuration
	if err := gconf.Load(db, pkgName, &conf); err != nil {
		return nil, errors.Wrap(err, "load configuration")
	}
	return &conf, nil
}

// assertConserved verifies the budget conservation invariant. Breaking it
// means a coding error, every mutation path must keep it intact.
func assertConserved(list *TargetList, state *DistributionState) error {
	total := list.AllocatedTotal()
	total.Add(total, list.Default().AllocatorRate)
	if total.Cmp(state.IssuancePerPeriod) != 0 {
		return errors.Wrapf(errors.ErrHuman, "allocated %s, budget %s", total, state.IssuancePerPeriod)
	}
	return nil
}

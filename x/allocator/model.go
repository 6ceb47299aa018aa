package allocator

import (
	"math/big"

	"github.com/tendermint/go-amino"

	"github.com/iov-one/issuance"
	"github.com/iov-one/issuance/errors"
)

var cdc = amino.NewCodec()

const (
	targetsKey = "allocator:targets"
	stateKey   = "allocator:state"

	// pkgName scopes the gconf configuration record.
	pkgName = "allocator"
)

// Target is a single allocation entry. Targets are owned exclusively by
// the registry and mutated only through registry operations.
type Target struct {
	// ID is the account the target mints to.
	ID issuance.Address

	// AllocatorRate is the per-period amount funded by the allocator.
	AllocatorRate *big.Int

	// SelfRate is the per-period amount the target mints independently.
	// It is tracked for accounting only and never funded here.
	SelfRate *big.Int

	// LastNotifiedPeriod is the most recent period a change
	// notification was delivered for.
	LastNotifiedPeriod int64
}

// Validate returns an error if the target is in an invalid state.
func (t *Target) Validate() error {
	if err := t.ID.Validate(); err != nil {
		return errors.Wrap(err, "id")
	}
	if t.AllocatorRate == nil || t.AllocatorRate.Sign() < 0 {
		return errors.Wrap(errors.ErrModel, "allocator rate")
	}
	if t.SelfRate == nil || t.SelfRate.Sign() < 0 {
		return errors.Wrap(errors.ErrModel, "self rate")
	}
	return nil
}

// TargetList is the persisted set of allocation targets. The default
// target is always stored at position zero. The list of non-default
// entries is kept contiguous: removing one shifts subsequent entries
// down by one position.
type TargetList struct {
	Targets []*Target
}

// Validate returns an error if the list or any entry is invalid.
func (l *TargetList) Validate() error {
	if len(l.Targets) == 0 {
		return errors.Wrap(errors.ErrModel, "no default target")
	}
	seen := make(map[string]struct{})
	for i, t := range l.Targets {
		if err := t.Validate(); err != nil {
			return errors.Wrapf(err, "target %d", i)
		}
		id := t.ID.String()
		if _, ok := seen[id]; ok {
			return errors.Wrapf(errors.ErrDuplicate, "target %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Default returns the default target entry.
func (l *TargetList) Default() *Target {
	return l.Targets[0]
}

// Find returns the entry with the given address, or nil. Index zero, the
// default target, is never returned here: the default is derived state
// and must not be addressed as a regular allocation.
func (l *TargetList) Find(id issuance.Address) *Target {
	for _, t := range l.Targets[1:] {
		if t.ID.Equals(id) {
			return t
		}
	}
	return nil
}

// Remove deletes the entry with the given address, compacting the list.
func (l *TargetList) Remove(id issuance.Address) {
	for i, t := range l.Targets[1:] {
		if t.ID.Equals(id) {
			copy(l.Targets[i+1:], l.Targets[i+2:])
			l.Targets = l.Targets[:len(l.Targets)-1]
			return
		}
	}
}

// AllocatedTotal sums the allocator rates of all non-default targets.
func (l *TargetList) AllocatedTotal() *big.Int {
	total := new(big.Int)
	for _, t := range l.Targets[1:] {
		total.Add(total, t.AllocatorRate)
	}
	return total
}

// DistributionState tracks the distribution progress of the allocator.
type DistributionState struct {
	// LastDistributionPeriod is monotonic and never exceeds the
	// current period.
	LastDistributionPeriod int64

	// IssuancePerPeriod is the current rate budget.
	IssuancePerPeriod *big.Int

	// PendingSelfMintOffset accumulates self-minted amounts reported
	// while distribution is suspended. It is subtracted from the
	// available funds of the next distribution and then reset.
	PendingSelfMintOffset *big.Int
}

// Validate returns an error if the state is invalid.
func (s *DistributionState) Validate() error {
	if s.LastDistributionPeriod < 0 {
		return errors.Wrap(errors.ErrModel, "last distribution period")
	}
	if s.IssuancePerPeriod == nil || s.IssuancePerPeriod.Sign() < 0 {
		return errors.Wrap(errors.ErrModel, "issuance per period")
	}
	if s.PendingSelfMintOffset == nil || s.PendingSelfMintOffset.Sign() < 0 {
		return errors.Wrap(errors.ErrModel, "pending self mint offset")
	}
	return nil
}

// Configuration is the allocator extension configuration, managed through
// the gconf package.
type Configuration struct {
	// Owner is informational. Authorization is enforced outside of
	// this engine.
	Owner issuance.Address

	// MaxTargets bounds the number of non-default targets. A sane
	// limit avoids unbounded list growth.
	MaxTargets uint32
}

// Validate returns an error if the configuration is invalid.
func (c *Configuration) Validate() error {
	if len(c.Owner) != 0 {
		if err := c.Owner.Validate(); err != nil {
			return errors.Wrap(err, "owner address")
		}
	}
	if c.MaxTargets == 0 {
		return errors.Wrap(errors.ErrState, "max targets missing")
	}
	return nil
}

// Marshal serializes the configuration.
func (c *Configuration) Marshal() ([]byte, error) {
	return cdc.MarshalBinaryBare(persistentConfiguration{
		Owner:      c.Owner,
		MaxTargets: c.MaxTargets,
	})
}

// Unmarshal loads the configuration from its serialized form.
func (c *Configuration) Unmarshal(raw []byte) error {
	var p persistentConfiguration
	if err := cdc.UnmarshalBinaryBare(raw, &p); err != nil {
		return errors.Wrap(err, "configuration")
	}
	c.Owner = issuance.Address(p.Owner)
	c.MaxTargets = p.MaxTargets
	return nil
}

// Serialized forms. Big integer amounts are stored as big-endian
// unsigned bytes.

type persistentTarget struct {
	ID                 []byte
	AllocatorRate      []byte
	SelfRate           []byte
	LastNotifiedPeriod int64
}

type persistentTargetList struct {
	Targets []persistentTarget
}

type persistentState struct {
	LastDistributionPeriod int64
	IssuancePerPeriod      []byte
	PendingSelfMintOffset  []byte
}

type persistentConfiguration struct {
	Owner      []byte
	MaxTargets uint32
}

// Marshal serializes the target list.
func (l *TargetList) Marshal() ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	p := persistentTargetList{
		Targets: make([]persistentTarget, len(l.Targets)),
	}
	for i, t := range l.Targets {
		p.Targets[i] = persistentTarget{
			ID:                 t.ID,
			AllocatorRate:      t.AllocatorRate.Bytes(),
			SelfRate:           t.SelfRate.Bytes(),
			LastNotifiedPeriod: t.LastNotifiedPeriod,
		}
	}
	return cdc.MarshalBinaryBare(p)
}

// Unmarshal loads the target list from its serialized form.
func (l *TargetList) Unmarshal(raw []byte) error {
	var p persistentTargetList
	if err := cdc.UnmarshalBinaryBare(raw, &p); err != nil {
		return errors.Wrap(err, "target list")
	}
	l.Targets = make([]*Target, len(p.Targets))
	for i, t := range p.Targets {
		l.Targets[i] = &Target{
			ID:                 issuance.Address(t.ID),
			AllocatorRate:      new(big.Int).SetBytes(t.AllocatorRate),
			SelfRate:           new(big.Int).SetBytes(t.SelfRate),
			LastNotifiedPeriod: t.LastNotifiedPeriod,
		}
	}
	return nil
}

// Marshal serializes the distribution state.
func (s *DistributionState) Marshal() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return cdc.MarshalBinaryBare(persistentState{
		LastDistributionPeriod: s.LastDistributionPeriod,
		IssuancePerPeriod:      s.IssuancePerPeriod.Bytes(),
		PendingSelfMintOffset:  s.PendingSelfMintOffset.Bytes(),
	})
}

// Unmarshal loads the distribution state from its serialized form.
func (s *DistributionState) Unmarshal(raw []byte) error {
	var p persistentState
	if err := cdc.UnmarshalBinaryBare(raw, &p); err != nil {
		return errors.Wrap(err, "distribution state")
	}
	s.LastDistributionPeriod = p.LastDistributionPeriod
	s.IssuancePerPeriod = new(big.Int).SetBytes(p.IssuancePerPeriod)
	s.PendingSelfMintOffset = new(big.Int).SetBytes(p.PendingSelfMintOffset)
	return nil
}

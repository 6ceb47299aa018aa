package reservoir

import (
	"math/big"

	"github.com/tendermint/go-amino"

	"github.com/iov-one/issuance"
	"github.com/iov-one/issuance/errors"
	"github.com/iov-one/issuance/fixmath"
)

var cdc = amino.NewCodec()

const (
	stateKey            = "reservoir:state"
	counterpartStateKey = "reservoir:counterpart"

	// pkgName scopes the gconf configuration record.
	pkgName = "reservoir"
)

// State is the accrual state of the reservoir. It is created once at
// initialization and mutated only by snapshots and drips.
type State struct {
	// IssuanceRate is the compounding growth factor per period. One is
	// the floor and means no growth.
	IssuanceRate fixmath.Dec

	// DomainSplitFraction is the share of global rewards routed to the
	// second domain, at most One. It takes effect on accrual
	// immediately and on routing from the next drip on.
	DomainSplitFraction fixmath.Dec

	// LastSplitFraction is the fraction that was in effect during the
	// interval covered by the previous drip. The drift correction of
	// the next drip is computed with it.
	LastSplitFraction fixmath.Dec

	// IssuanceBase is the snapshot of the total accrual basis.
	IssuanceBase *big.Int

	// AccumulatedLocalRewards tracks the rewards kept on this domain.
	AccumulatedLocalRewards *big.Int

	// MintedAhead is the amount the previous drip minted that has not
	// accrued yet. Snapshots reduce it as accrual catches up, so it
	// stays the literal pre-minted figure even when the issuance rate
	// changes mid-interval. An overdue drip leaves it negative.
	MintedAhead *big.Int

	// MintedAheadRouted is the part of MintedAhead that was escrowed
	// for the second domain, under LastSplitFraction.
	MintedAheadRouted *big.Int

	// LastUpdatePeriod is the period of the last snapshot.
	LastUpdatePeriod int64

	// MintedUntilPeriod is the horizon rewards were already minted
	// for by the previous drip.
	MintedUntilPeriod int64
}

// Validate returns an error if the state is invalid.
func (s *State) Validate() error {
	if s.IssuanceRate.Cmp(fixmath.One()) < 0 {
		return errors.Wrap(errors.ErrModel, "issuance rate below the no-growth floor")
	}
	if s.DomainSplitFraction.Cmp(fixmath.One()) > 0 {
		return errors.Wrap(errors.ErrModel, "domain split fraction above one")
	}
	if s.LastSplitFraction.Cmp(fixmath.One()) > 0 {
		return errors.Wrap(errors.ErrModel, "last split fraction above one")
	}
	if s.IssuanceBase == nil || s.IssuanceBase.Sign() < 0 {
		return errors.Wrap(errors.ErrModel, "issuance base")
	}
	if s.AccumulatedLocalRewards == nil || s.AccumulatedLocalRewards.Sign() < 0 {
		return errors.Wrap(errors.ErrModel, "accumulated local rewards")
	}
	if s.MintedAhead == nil || s.MintedAheadRouted == nil {
		return errors.Wrap(errors.ErrModel, "minted ahead")
	}
	if s.MintedUntilPeriod < s.LastUpdatePeriod {
		return errors.Wrap(errors.ErrModel, "minted-until behind last update")
	}
	return nil
}

// CounterpartState mirrors the accrual on the second domain.
type CounterpartState struct {
	// LastAppliedNonce is the nonce of the last payload applied. Only
	// the direct successor is ever accepted.
	LastAppliedNonce uint64

	IssuanceRate       fixmath.Dec
	IssuanceBase       *big.Int
	AccumulatedRewards *big.Int
	LastUpdatePeriod   int64
}

// Validate returns an error if the state is invalid.
func (s *CounterpartState) Validate() error {
	if s.IssuanceRate.Cmp(fixmath.One()) < 0 {
		return errors.Wrap(errors.ErrModel, "issuance rate below the no-growth floor")
	}
	if s.IssuanceBase == nil || s.IssuanceBase.Sign() < 0 {
		return errors.Wrap(errors.ErrModel, "issuance base")
	}
	if s.AccumulatedRewards == nil || s.AccumulatedRewards.Sign() < 0 {
		return errors.Wrap(errors.ErrModel, "accumulated rewards")
	}
	return nil
}

// DripPayload is the cross-domain reconciliation message. It is handed to
// the relay together with the escrowed amount and applied by the
// counterpart in strict nonce order.
type DripPayload struct {
	// Nonce increases by exactly one per message sent.
	Nonce uint64

	// IssuanceRate is the rate the counterpart must continue with.
	IssuanceRate fixmath.Dec

	// RemoteBase is the new accrual basis of the second domain.
	RemoteBase *big.Int

	// Routed is the reward amount escrowed for the second domain.
	Routed *big.Int

	// Domain identifies the destination settlement domain.
	Domain uint32
}

// Validate returns an error if the payload is invalid.
func (p *DripPayload) Validate() error {
	if p.Nonce == 0 {
		return errors.Wrap(errors.ErrModel, "nonce")
	}
	if p.RemoteBase == nil || p.RemoteBase.Sign() < 0 {
		return errors.Wrap(errors.ErrModel, "remote base")
	}
	if p.Routed == nil || p.Routed.Sign() < 0 {
		return errors.Wrap(errors.ErrModel, "routed amount")
	}
	return nil
}

// Configuration is the reservoir extension configuration, managed through
// the gconf package.
type Configuration struct {
	// ReservoirAddress is the account local rewards are minted to.
	ReservoirAddress issuance.Address

	// EscrowAddress is the account holding funds routed to the second
	// domain until the relay releases them there.
	EscrowAddress issuance.Address

	// DripInterval is the nominal number of periods a single drip
	// mints ahead for.
	DripInterval int64

	// RemoteDomain is the destination domain identifier for routed
	// rewards.
	RemoteDomain uint32
}

// Validate returns an error if the configuration is invalid.
func (c *Configuration) Validate() error {
	if err := c.ReservoirAddress.Validate(); err != nil {
		return errors.Wrap(err, "reservoir address")
	}
	if err := c.EscrowAddress.Validate(); err != nil {
		return errors.Wrap(err, "escrow address")
	}
	if c.DripInterval <= 0 {
		return errors.Wrap(errors.ErrState, "drip interval")
	}
	return nil
}

// Serialized forms. Fixed-point values and big integer amounts are stored
// as big-endian unsigned bytes of their raw representation.

type persistentState struct {
	IssuanceRate            []byte
	DomainSplitFraction     []byte
	LastSplitFraction       []byte
	IssuanceBase            []byte
	AccumulatedLocalRewards []byte
	MintedAhead             []byte
	MintedAheadNeg          bool
	MintedAheadRouted       []byte
	MintedAheadRoutedNeg    bool
	LastUpdatePeriod        int64
	MintedUntilPeriod       int64
}

type persistentCounterpartState struct {
	LastAppliedNonce   uint64
	IssuanceRate       []byte
	IssuanceBase       []byte
	AccumulatedRewards []byte
	LastUpdatePeriod   int64
}

type persistentPayload struct {
	Nonce        uint64
	IssuanceRate []byte
	RemoteBase   []byte
	Routed       []byte
	Domain       uint32
}

type persistentConfiguration struct {
	ReservoirAddress []byte
	EscrowAddress    []byte
	DripInterval     int64
	RemoteDomain     uint32
}

func decFromBytes(raw []byte) (fixmath.Dec, error) {
	return fixmath.NewDec(new(big.Int).SetBytes(raw))
}

func signedFromBytes(raw []byte, neg bool) *big.Int {
	x := new(big.Int).SetBytes(raw)
	if neg {
		x.Neg(x)
	}
	return x
}

// Marshal serializes the state.
func (s *State) Marshal() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return cdc.MarshalBinaryBare(persistentState{
		IssuanceRate:            s.IssuanceRate.Raw().Bytes(),
		DomainSplitFraction:     s.DomainSplitFraction.Raw().Bytes(),
		LastSplitFraction:       s.LastSplitFraction.Raw().Bytes(),
		IssuanceBase:            s.IssuanceBase.Bytes(),
		AccumulatedLocalRewards: s.AccumulatedLocalRewards.Bytes(),
		MintedAhead:             s.MintedAhead.Bytes(),
		MintedAheadNeg:          s.MintedAhead.Sign() < 0,
		MintedAheadRouted:       s.MintedAheadRouted.Bytes(),
		MintedAheadRoutedNeg:    s.MintedAheadRouted.Sign() < 0,
		LastUpdatePeriod:        s.LastUpdatePeriod,
		MintedUntilPeriod:       s.MintedUntilPeriod,
	})
}

// Unmarshal loads the state from its serialized form.
func (s *State) Unmarshal(raw []byte) error {
	var p persistentState
	if err := cdc.UnmarshalBinaryBare(raw, &p); err != nil {
		return errors.Wrap(err, "reservoir state")
	}
	var err error
	if s.IssuanceRate, err = decFromBytes(p.IssuanceRate); err != nil {
		return errors.Wrap(err, "issuance rate")
	}
	if s.DomainSplitFraction, err = decFromBytes(p.DomainSplitFraction); err != nil {
		return errors.Wrap(err, "domain split fraction")
	}
	if s.LastSplitFraction, err = decFromBytes(p.LastSplitFraction); err != nil {
		return errors.Wrap(err, "last split fraction")
	}
	s.IssuanceBase = new(big.Int).SetBytes(p.IssuanceBase)
	s.AccumulatedLocalRewards = new(big.Int).SetBytes(p.AccumulatedLocalRewards)
	s.MintedAhead = signedFromBytes(p.MintedAhead, p.MintedAheadNeg)
	s.MintedAheadRouted = signedFromBytes(p.MintedAheadRouted, p.MintedAheadRoutedNeg)
	s.LastUpdatePeriod = p.LastUpdatePeriod
	s.MintedUntilPeriod = p.MintedUntilPeriod
	return nil
}

// Marshal serializes the counterpart state.
func (s *CounterpartState) Marshal() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return cdc.MarshalBinaryBare(persistentCounterpartState{
		LastAppliedNonce:   s.LastAppliedNonce,
		IssuanceRate:       s.IssuanceRate.Raw().Bytes(),
		IssuanceBase:       s.IssuanceBase.Bytes(),
		AccumulatedRewards: s.AccumulatedRewards.Bytes(),
		LastUpdatePeriod:   s.LastUpdatePeriod,
	})
}

// Unmarshal loads the counterpart state from its serialized form.
func (s *CounterpartState) Unmarshal(raw []byte) error {
	var p persistentCounterpartState
	if err := cdc.UnmarshalBinaryBare(raw, &p); err != nil {
		return errors.Wrap(err, "counterpart state")
	}
	var err error
	if s.IssuanceRate, err = decFromBytes(p.IssuanceRate); err != nil {
		return errors.Wrap(err, "issuance rate")
	}
	s.LastAppliedNonce = p.LastAppliedNonce
	s.IssuanceBase = new(big.Int).SetBytes(p.IssuanceBase)
	s.AccumulatedRewards = new(big.Int).SetBytes(p.AccumulatedRewards)
	s.LastUpdatePeriod = p.LastUpdatePeriod
	return nil
}

// Marshal serializes the payload for the relay.
func (p *DripPayload) Marshal() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return cdc.MarshalBinaryBare(persistentPayload{
		Nonce:        p.Nonce,
		IssuanceRate: p.IssuanceRate.Raw().Bytes(),
		RemoteBase:   p.RemoteBase.Bytes(),
		Routed:       p.Routed.Bytes(),
		Domain:       p.Domain,
	})
}

// Unmarshal loads the payload from its wire form.
func (p *DripPayload) Unmarshal(raw []byte) error {
	var pp persistentPayload
	if err := cdc.UnmarshalBinaryBare(raw, &pp); err != nil {
		return errors.Wrap(err, "drip payload")
	}
	var err error
	if p.IssuanceRate, err = decFromBytes(pp.IssuanceRate); err != nil {
		return errors.Wrap(err, "issuance rate")
	}
	p.Nonce = pp.Nonce
	p.RemoteBase = new(big.Int).SetBytes(pp.RemoteBase)
	p.Routed = new(big.Int).SetBytes(pp.Routed)
	p.Domain = pp.Domain
	return nil
}

// Marshal serializes the configuration.
func (c *Configuration) Marshal() ([]byte, error) {
	return cdc.MarshalBinaryBare(persistentConfiguration{
		ReservoirAddress: c.ReservoirAddress,
		EscrowAddress:    c.EscrowAddress,
		DripInterval:     c.DripInterval,
		RemoteDomain:     c.RemoteDomain,
	})
}

// Unmarshal loads the configuration from its serialized form.
func (c *Configuration) Unmarshal(raw []byte) error {
	var p persistentConfiguration
	if err := cdc.UnmarshalBinaryBare(raw, &p); err != nil {
		return errors.Wrap(err, "configuration")
	}
	c.ReservoirAddress = issuance.Address(p.ReservoirAddress)
	c.EscrowAddress = issuance.Address(p.EscrowAddress)
	c.DripInterval = p.DripInterval
	c.RemoteDomain = p.RemoteDomain
	return nil
}

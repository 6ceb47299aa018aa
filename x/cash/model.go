package cash

import (
	"math/big"

	"github.com/tendermint/go-amino"

	"github.com/iov-one/issuance/errors"
)

var cdc = amino.NewCodec()

// Wallet is the balance record of a single address. A wallet missing from
// the store and a wallet with a zero balance are distinct states: the
// first was never funded.
type Wallet struct {
	Balance *big.Int
}

// walletSchema versions the serialized wallet form. It also keeps the
// encoding of a zero balance non-empty: a drained wallet must stay
// distinguishable from one that never existed, and an empty encoding
// would round-trip through the store as a missing record.
const walletSchema = 1

// persistentWallet is the serialized form. Balance is the big-endian
// unsigned representation; balances are never negative.
type persistentWallet struct {
	Schema  uint32
	Balance []byte
}

// Validate returns an error if the wallet is in an invalid state.
func (w *Wallet) Validate() error {
	if w.Balance == nil {
		return errors.Wrap(errors.ErrEmpty, "balance")
	}
	if w.Balance.Sign() < 0 {
		return errors.Wrap(errors.ErrState, "negative balance")
	}
	return nil
}

// Marshal serializes the wallet.
func (w *Wallet) Marshal() ([]byte, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return cdc.MarshalBinaryBare(persistentWallet{
		Schema:  walletSchema,
		Balance: w.Balance.Bytes(),
	})
}

// Unmarshal loads the wallet from its serialized form.
func (w *Wallet) Unmarshal(raw []byte) error {
	var p persistentWallet
	if err := cdc.UnmarshalBinaryBare(raw, &p); err != nil {
		return errors.Wrap(err, "wallet")
	}
	if p.Schema != walletSchema {
		return errors.Wrapf(errors.ErrModel, "wallet schema %d", p.Schema)
	}
	w.Balance = new(big.Int).SetBytes(p.Balance)
	return nil
}

package cash

import (
	"math/big"

	"github.com/iov-one/issuance"
	"github.com/iov-one/issuance/errors"
)

// walletPrefix scopes all wallet records in the store.
const walletPrefix = "cash:"

// Controller manages the wallet records without exposing the storage
// layout to callers.
type Controller struct{}

// NewController returns a ledger controller.
func NewController() Controller {
	return Controller{}
}

func walletKey(addr issuance.Address) []byte {
	return append([]byte(walletPrefix), addr...)
}

// Balance returns the current balance of the given address. Missing
// wallets are reported as ErrNotFound, it is up to the caller to decide
// if that means zero.
func (c Controller) Balance(db issuance.ReadOnlyKVStore, addr issuance.Address) (*big.Int, error) {
	if err := addr.Validate(); err != nil {
		return nil, errors.Wrap(err, "address")
	}
	w, err := c.wallet(db, addr)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "wallet %s", addr)
	}
	return new(big.Int).Set(w.Balance), nil
}

// MoveCoins moves the given amount from src to dest.
// If src doesn't exist, or doesn't have sufficient coins, it fails.
func (c Controller) MoveCoins(db issuance.KVStore, src, dest issuance.Address, amount *big.Int) error {
	if err := src.Validate(); err != nil {
		return errors.Wrap(err, "source")
	}
	if err := dest.Validate(); err != nil {
		return errors.Wrap(err, "destination")
	}
	if amount == nil || amount.Sign() <= 0 {
		return errors.Wrap(errors.ErrAmount, "non-positive transfer")
	}

	sender, err := c.wallet(db, src)
	if err != nil {
		return err
	}
	if sender == nil {
		return errors.Wrapf(errors.ErrEmpty, "account %s", src)
	}
	if sender.Balance.Cmp(amount) < 0 {
		return errors.Wrapf(errors.ErrAmount, "insufficient funds in %s", src)
	}

	recipient, err := c.wallet(db, dest)
	if err != nil {
		return err
	}
	if recipient == nil {
		recipient = &Wallet{Balance: new(big.Int)}
	}

	sender.Balance.Sub(sender.Balance, amount)
	recipient.Balance.Add(recipient.Balance, amount)

	if err := c.save(db, src, sender); err != nil {
		return err
	}
	return c.save(db, dest, recipient)
}

// IssueCoins attempts to add the given amount of coins to
// the destination address, creating the wallet if needed.
//
// Note the amount may also be negative:
// "the lord giveth and the lord taketh away"
func (c Controller) IssueCoins(db issuance.KVStore, dest issuance.Address, amount *big.Int) error {
	if err := dest.Validate(); err != nil {
		return errors.Wrap(err, "destination")
	}
	if amount == nil {
		return errors.Wrap(errors.ErrEmpty, "amount")
	}

	recipient, err := c.wallet(db, dest)
	if err != nil {
		return err
	}
	if recipient == nil {
		recipient = &Wallet{Balance: new(big.Int)}
	}
	recipient.Balance.Add(recipient.Balance, amount)
	if recipient.Balance.Sign() < 0 {
		return errors.Wrapf(errors.ErrAmount, "insufficient funds in %s", dest)
	}
	return c.save(db, dest, recipient)
}

func (c Controller) wallet(db issuance.ReadOnlyKVStore, addr issuance.Address) (*Wallet, error) {
	raw, err := db.Get(walletKey(addr))
	if err != nil {
		return nil, errors.Wrap(err, "load wallet")
	}
	if raw == nil {
		return nil, nil
	}
	var w Wallet
	if err := w.Unmarshal(raw); err != nil {
		return nil, err
	}
	return &w, nil
}

func (c Controller) save(db issuance.KVStore, addr issuance.Address, w *Wallet) error {
	raw, err := w.Marshal()
	if err != nil {
		return err
	}
	return db.Set(walletKey(addr), raw)
}

package fixmath

import (
	"math/big"
	"strings"

	"github.com/iov-one/issuance/errors"
)

// Decimals is the number of fractional digits every Dec value carries.
// All computations happen at this fixed scale, there is no floating point
// anywhere in this package.
const Decimals = 18

var (
	// scale is 10^Decimals, the representation of 1.0
	scale     = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)
	halfScale = new(big.Int).Rsh(scale, 1)

	// maxValue is the largest representable raw value. All arithmetic is
	// bounded to a 256 bit word, mirroring the ledger the amounts live on.
	maxValue = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// Dec is a non-negative fixed-point decimal at the package scale. The zero
// value is a valid representation of 0. Dec values are immutable, every
// operation returns a new instance.
type Dec struct {
	i *big.Int
}

// NewDec returns a Dec wrapping the given raw (already scaled) value.
func NewDec(raw *big.Int) (Dec, error) {
	if raw == nil {
		return Dec{}, errors.Wrap(errors.ErrEmpty, "raw value")
	}
	if raw.Sign() < 0 {
		return Dec{}, errors.Wrap(errors.ErrAmount, "negative")
	}
	if raw.Cmp(maxValue) > 0 {
		return Dec{}, errors.Wrap(errors.ErrOverflow, "raw value")
	}
	return Dec{i: new(big.Int).Set(raw)}, nil
}

// Zero returns the 0.0 value.
func Zero() Dec {
	return Dec{}
}

// One returns the 1.0 value. This is also the floor for growth rates: a
// rate at One means no growth at all.
func One() Dec {
	return Dec{i: new(big.Int).Set(scale)}
}

// ParseDec parses a decimal string representation, for example "1.05" or
// "0.4". At most Decimals fractional digits are allowed.
func ParseDec(raw string) (Dec, error) {
	chunks := strings.SplitN(raw, ".", 2)
	whole, ok := new(big.Int).SetString(chunks[0], 10)
	if !ok || whole.Sign() < 0 {
		return Dec{}, errors.Wrapf(errors.ErrInput, "whole part: %q", raw)
	}
	val := new(big.Int).Mul(whole, scale)
	if len(chunks) == 2 {
		frac := chunks[1]
		if len(frac) == 0 || len(frac) > Decimals {
			return Dec{}, errors.Wrapf(errors.ErrInput, "fractional part: %q", raw)
		}
		f, ok := new(big.Int).SetString(frac, 10)
		if !ok || f.Sign() < 0 {
			return Dec{}, errors.Wrapf(errors.ErrInput, "fractional part: %q", raw)
		}
		for i := len(frac); i < Decimals; i++ {
			f.Mul(f, big.NewInt(10))
		}
		val.Add(val, f)
	}
	return NewDec(val)
}

// MustParseDec works like ParseDec but panics on an invalid representation.
// Use only in tests and package setup.
func MustParseDec(raw string) Dec {
	d, err := ParseDec(raw)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Dec) raw() *big.Int {
	if d.i == nil {
		return new(big.Int)
	}
	return d.i
}

// Raw returns a copy of the scaled integer representation.
func (d Dec) Raw() *big.Int {
	return new(big.Int).Set(d.raw())
}

// IsZero returns true if this value represents 0.0.
func (d Dec) IsZero() bool {
	return d.raw().Sign() == 0
}

// Equals returns true if both values are identical.
func (d Dec) Equals(o Dec) bool {
	return d.raw().Cmp(o.raw()) == 0
}

// Cmp compares two values, returning -1, 0 or 1.
func (d Dec) Cmp(o Dec) int {
	return d.raw().Cmp(o.raw())
}

// String renders the value in decimal notation with trailing fractional
// zeros trimmed.
func (d Dec) String() string {
	var quo, rem big.Int
	quo.QuoRem(d.raw(), scale, &rem)
	if rem.Sign() == 0 {
		return quo.String()
	}
	frac := rem.String()
	for len(frac) < Decimals {
		frac = "0" + frac
	}
	frac = strings.TrimRight(frac, "0")
	return quo.String() + "." + frac
}

// Add returns d + o or ErrOverflow.
func (d Dec) Add(o Dec) (Dec, error) {
	sum, err := addChecked(d.raw(), o.raw())
	if err != nil {
		return Dec{}, err
	}
	return Dec{i: sum}, nil
}

// Sub returns d - o. A negative result is ErrAmount since Dec values
// cannot represent it.
func (d Dec) Sub(o Dec) (Dec, error) {
	if d.raw().Cmp(o.raw()) < 0 {
		return Dec{}, errors.Wrap(errors.ErrAmount, "negative result")
	}
	return Dec{i: new(big.Int).Sub(d.raw(), o.raw())}, nil
}

// Mul returns d * o at the package scale, rounded to nearest: half the
// scale is added to the raw product before dividing it back down.
func (d Dec) Mul(o Dec) (Dec, error) {
	product, err := mulChecked(d.raw(), o.raw())
	if err != nil {
		return Dec{}, err
	}
	rounded, err := addChecked(product, halfScale)
	if err != nil {
		return Dec{}, err
	}
	return Dec{i: rounded.Quo(rounded, scale)}, nil
}

// Pow returns base raised to exp using exponentiation by squaring. Every
// intermediate multiplication rounds to nearest, so the result is fully
// deterministic for any evaluation of the same (base, exp) pair.
// Pow(x, 0) is exactly One for any x.
func Pow(base Dec, exp uint64) (Dec, error) {
	result := One()
	sq := base
	for exp > 0 {
		if exp&1 == 1 {
			var err error
			if result, err = result.Mul(sq); err != nil {
				return Dec{}, errors.Wrap(err, "pow step")
			}
		}
		exp >>= 1
		if exp == 0 {
			// skip the final squaring so that it cannot overflow
			// after the result is already complete
			break
		}
		var err error
		if sq, err = sq.Mul(sq); err != nil {
			return Dec{}, errors.Wrap(err, "pow step")
		}
	}
	return result, nil
}

// MulBig scales an integer amount by the decimal, truncating the result.
// Truncation (not rounding) is the defined policy for amount scaling.
func MulBig(x *big.Int, d Dec) (*big.Int, error) {
	if x == nil {
		return nil, errors.Wrap(errors.ErrEmpty, "amount")
	}
	if x.Sign() < 0 {
		return nil, errors.Wrap(errors.ErrAmount, "negative amount")
	}
	product, err := mulChecked(x, d.raw())
	if err != nil {
		return nil, err
	}
	return product.Quo(product, scale), nil
}

// addChecked returns a + b, failing with ErrOverflow if the sum does not
// fit the 256 bit word.
func addChecked(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(a, b)
	if sum.Cmp(maxValue) > 0 {
		return nil, errors.Wrap(errors.ErrOverflow, "addition")
	}
	return sum, nil
}

// mulChecked returns a * b truncated to the 256 bit word. Overflow is
// detected by re-deriving the left operand from the truncated product: if
// the product wrapped, the division does not give back the operand.
func mulChecked(a, b *big.Int) (*big.Int, error) {
	if a.Sign() == 0 || b.Sign() == 0 {
		return new(big.Int), nil
	}
	product := new(big.Int).Mul(a, b)
	truncated := new(big.Int).And(product, maxValue)
	var rederived big.Int
	if rederived.Quo(truncated, b); rederived.Cmp(a) != 0 {
		return nil, errors.Wrap(errors.ErrOverflow, "multiplication")
	}
	return truncated, nil
}

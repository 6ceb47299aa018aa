package fixmath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iov-one/issuance/errors"
)

func TestParseDecString(t *testing.T) {
	cases := map[string]struct {
		raw     string
		wantErr *errors.Error
		// want is the expected String rendering, raw if empty
		want string
	}{
		"whole number":             {raw: "5"},
		"with fraction":            {raw: "1.05"},
		"fraction only":            {raw: "0.4"},
		"max fractional digits":    {raw: "1.000000000000000001"},
		"trailing zeros trimmed":   {raw: "1.500000", want: "1.5"},
		"too many digits":          {raw: "1.0000000000000000001", wantErr: errors.ErrInput},
		"negative":                 {raw: "-1", wantErr: errors.ErrInput},
		"empty fraction":           {raw: "1.", wantErr: errors.ErrInput},
		"garbage":                  {raw: "week", wantErr: errors.ErrInput},
		"negative fractional part": {raw: "1.-5", wantErr: errors.ErrInput},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			d, err := ParseDec(tc.raw)
			if tc.wantErr != nil {
				require.True(t, tc.wantErr.Is(err), "unexpected error: %+v", err)
				return
			}
			require.NoError(t, err)
			want := tc.want
			if want == "" {
				want = tc.raw
			}
			assert.Equal(t, want, d.String())
		})
	}
}

func TestMulRoundsToNearest(t *testing.T) {
	// the smallest representable value times one half rounds up, it
	// does not truncate to zero
	eps, err := NewDec(big.NewInt(1))
	require.NoError(t, err)
	half := MustParseDec("0.5")

	got, err := eps.Mul(half)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), got.Raw())

	// a third of the smallest value rounds down
	third := MustParseDec("0.3")
	got, err = eps.Mul(third)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0), got.Raw())
}

func TestMulExact(t *testing.T) {
	a := MustParseDec("1.05")
	got, err := a.Mul(a)
	require.NoError(t, err)
	assert.True(t, got.Equals(MustParseDec("1.1025")))
}

func TestPow(t *testing.T) {
	cases := map[string]struct {
		base    Dec
		exp     uint64
		want    Dec
		wantErr *errors.Error
	}{
		"zero exponent yields one": {
			base: MustParseDec("123.456"),
			exp:  0,
			want: One(),
		},
		"zero base zero exponent yields one": {
			base: Zero(),
			exp:  0,
			want: One(),
		},
		"first power is identity": {
			base: MustParseDec("1.000000011"),
			exp:  1,
			want: MustParseDec("1.000000011"),
		},
		"one stays one": {
			base: One(),
			exp:  1000000,
			want: One(),
		},
		"exact square": {
			base: MustParseDec("1.05"),
			exp:  2,
			want: MustParseDec("1.1025"),
		},
		"exact cube": {
			base: MustParseDec("2"),
			exp:  10,
			want: MustParseDec("1024"),
		},
		"overflow is detected": {
			base:    MustParseDec("2"),
			exp:     256,
			wantErr: errors.ErrOverflow,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			got, err := Pow(tc.base, tc.exp)
			if tc.wantErr != nil {
				require.True(t, tc.wantErr.Is(err), "unexpected error: %+v", err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.want.Equals(got), "want %s, got %s", tc.want, got)
		})
	}
}

func TestPowDeterministicSplit(t *testing.T) {
	// pow(x, a+b) computed in one go must equal pow(x, a) * pow(x, b)
	// only when the rounding path is identical, so instead assert the
	// stronger property we rely on: repeated evaluation of the same
	// arguments gives the same result bit for bit.
	base := MustParseDec("1.000000012252")
	first, err := Pow(base, 10000)
	require.NoError(t, err)
	second, err := Pow(base, 10000)
	require.NoError(t, err)
	assert.True(t, first.Equals(second))
}

func TestMulBig(t *testing.T) {
	cases := map[string]struct {
		x       *big.Int
		d       Dec
		want    *big.Int
		wantErr *errors.Error
	}{
		"scaling by one is identity": {
			x:    big.NewInt(12345),
			d:    One(),
			want: big.NewInt(12345),
		},
		"truncation policy": {
			x:    big.NewInt(5),
			d:    MustParseDec("0.5"),
			want: big.NewInt(2),
		},
		"zero fraction": {
			x:    big.NewInt(1000),
			d:    Zero(),
			want: big.NewInt(0),
		},
		"negative amount": {
			x:       big.NewInt(-1),
			d:       One(),
			wantErr: errors.ErrAmount,
		},
		"nil amount": {
			x:       nil,
			d:       One(),
			wantErr: errors.ErrEmpty,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			got, err := MulBig(tc.x, tc.d)
			if tc.wantErr != nil {
				require.True(t, tc.wantErr.Is(err), "unexpected error: %+v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSubNegativeResult(t *testing.T) {
	_, err := Zero().Sub(One())
	require.True(t, errors.ErrAmount.Is(err), "unexpected error: %+v", err)
}

func TestNewDecBounds(t *testing.T) {
	over := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err := NewDec(over)
	require.True(t, errors.ErrOverflow.Is(err), "unexpected error: %+v", err)

	max := new(big.Int).Sub(over, big.NewInt(1))
	_, err = NewDec(max)
	require.NoError(t, err)
}

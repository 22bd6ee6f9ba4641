package packing

import (
	"math"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDeriveReferenceExample(t *testing.T) {
	res, err := Derive(50, 15, decimal.RequireFromString("180.00"))
	require.NoError(t, err)
	require.Equal(t, "12.0000", res.PricePerUnit.StringFixed(PriceScale))
	require.EqualValues(t, 750, res.TotalUnits)
	require.True(t, res.TotalValue.Equal(decimal.RequireFromString("9000")))
}

func TestDeriveRoundsHalfUp(t *testing.T) {
	// 10 / 3 = 3.33333 -> 3.3333
	res, err := Derive(1, 3, decimal.NewFromInt(10))
	require.NoError(t, err)
	require.Equal(t, "3.3333", res.PricePerUnit.StringFixed(PriceScale))

	// 0.00025 / 1 stays, 0.00005 * 2 / 2 -> half-up on the fifth place
	res, err = Derive(1, 2, decimal.RequireFromString("0.00025"))
	require.NoError(t, err)
	require.Equal(t, "0.0001", res.PricePerUnit.StringFixed(PriceScale))

	res, err = Derive(2, 8, decimal.RequireFromString("1.0001"))
	require.NoError(t, err)
	require.Equal(t, "0.1250", res.PricePerUnit.StringFixed(PriceScale))
	require.True(t, res.TotalValue.Equal(decimal.RequireFromString("2.0002")))
}

func TestDeriveRejectsNonPositiveInputs(t *testing.T) {
	cases := []struct {
		name  string
		pq    int64
		upp   int64
		price decimal.Decimal
	}{
		{"zero units per pack", 50, 0, decimal.NewFromInt(180)},
		{"negative pack quantity", -1, 10, decimal.NewFromInt(10)},
		{"zero pack quantity", 0, 10, decimal.NewFromInt(10)},
		{"zero price", 5, 10, decimal.Zero},
		{"negative price", 5, 10, decimal.NewFromInt(-3)},
		{"overflow", math.MaxInt64 / 2, 3, decimal.NewFromInt(1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Derive(tc.pq, tc.upp, tc.price)
			require.ErrorIs(t, err, ErrInvalidPacking)
		})
	}
}

func TestDerivePropertyWithinOneCent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tolerance := decimal.RequireFromString("0.01")
	for i := 0; i < 2000; i++ {
		pq := rng.Int63n(500) + 1
		upp := rng.Int63n(200) + 1
		price := decimal.New(rng.Int63n(10_000_00)+1, -2)

		res, err := Derive(pq, upp, price)
		require.NoError(t, err)
		require.Equal(t, pq*upp, res.TotalUnits)
		require.True(t, res.TotalValue.Equal(price.Mul(decimal.NewFromInt(pq))))

		drift := res.PricePerUnit.Mul(decimal.NewFromInt(upp)).Sub(price).Abs()
		require.Truef(t, drift.LessThanOrEqual(tolerance), "pq=%d upp=%d price=%s drift=%s", pq, upp, price, drift)
	}
}

func TestDescription(t *testing.T) {
	require.Equal(t, "50 packs × 15 units = 750 total units", Description(50, 15))
}

func BenchmarkDerive(b *testing.B) {
	price := decimal.RequireFromString("180.00")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Derive(50, 15, price); err != nil {
			b.Fatal(err)
		}
	}
}

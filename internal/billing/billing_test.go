package billing_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftdish/order-service/internal/billing"
	"github.com/swiftdish/order-service/internal/entities"
)

var defaultRates = billing.Rates{
	DeliveryBase:  1000, // ₹10
	DeliveryPerKM: 1000, // ₹10/km
	TaxRateBP:     500,  // 5%
	CommissionBP:  1000, // 10%
}

func TestQuote(t *testing.T) {
	testCases := []struct {
		name       string
		items      []entities.LineItem
		distanceKM float64
		discount   int64
		want       billing.Totals
		wantErr    error
	}{
		{
			// ₹200 cart, 3 km: fee ₹40, tax ₹10, total ₹250.
			name: "standard cart",
			items: []entities.LineItem{
				{ItemID: "i1", Name: "Thali", UnitPrice: 10000, Quantity: 2},
			},
			distanceKM: 3,
			want: billing.Totals{
				Subtotal:    20000,
				DeliveryFee: 4000,
				Tax:         1000,
				Total:       25000,
			},
		},
		{
			name: "discount applied",
			items: []entities.LineItem{
				{ItemID: "i1", UnitPrice: 10000, Quantity: 2},
			},
			distanceKM: 3,
			discount:   5000,
			want: billing.Totals{
				Subtotal:    20000,
				DeliveryFee: 4000,
				Tax:         1000,
				Discount:    5000,
				Total:       20000,
			},
		},
		{
			name: "discount clamped to subtotal",
			items: []entities.LineItem{
				{ItemID: "i1", UnitPrice: 1000, Quantity: 1},
			},
			distanceKM: 0,
			discount:   99999,
			want: billing.Totals{
				Subtotal:    1000,
				DeliveryFee: 1000,
				Tax:         50,
				Discount:    1000,
				Total:       1050,
			},
		},
		{
			name: "fractional distance rounds half up",
			items: []entities.LineItem{
				{ItemID: "i1", UnitPrice: 10000, Quantity: 1},
			},
			// base 1000 + 1000*2.5005 = 3500.5 -> 3501
			distanceKM: 2.5005,
			want: billing.Totals{
				Subtotal:    10000,
				DeliveryFee: 3501,
				Tax:         500,
				Total:       14001,
			},
		},
		{
			name:       "empty cart",
			items:      nil,
			distanceKM: 1,
			wantErr:    entities.ErrValidation,
		},
		{
			name: "negative unit price",
			items: []entities.LineItem{
				{ItemID: "i1", UnitPrice: -5, Quantity: 1},
			},
			distanceKM: 1,
			wantErr:    entities.ErrInvalidAmount,
		},
		{
			name: "zero quantity",
			items: []entities.LineItem{
				{ItemID: "i1", UnitPrice: 100, Quantity: 0},
			},
			distanceKM: 1,
			wantErr:    entities.ErrInvalidAmount,
		},
		{
			name: "non-finite distance",
			items: []entities.LineItem{
				{ItemID: "i1", UnitPrice: 100, Quantity: 1},
			},
			distanceKM: math.NaN(),
			wantErr:    entities.ErrInvalidAmount,
		},
		{
			name: "negative distance",
			items: []entities.LineItem{
				{ItemID: "i1", UnitPrice: 100, Quantity: 1},
			},
			distanceKM: -2,
			wantErr:    entities.ErrInvalidAmount,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := billing.Quote(tc.items, tc.distanceKM, tc.discount, defaultRates)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			// the creation-time money invariant
			assert.Equal(t, got.Total, got.Subtotal+got.DeliveryFee+got.Tax-got.Discount)
		})
	}
}

func TestQuote_NegativeFeeClamped(t *testing.T) {
	rates := billing.Rates{DeliveryBase: -5000, DeliveryPerKM: 0, TaxRateBP: 0}
	got, err := billing.Quote([]entities.LineItem{{ItemID: "i1", UnitPrice: 100, Quantity: 1}}, 1, 0, rates)
	require.NoError(t, err)
	assert.Zero(t, got.DeliveryFee)
	assert.Equal(t, int64(100), got.Total)
}

func TestCommission(t *testing.T) {
	assert.Equal(t, int64(2500), billing.Commission(25000, defaultRates))
	assert.Equal(t, int64(1), billing.Commission(5, defaultRates)) // 0.5 rounds up
}

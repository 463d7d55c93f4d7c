// Package billing computes order totals. It is pure: no I/O, no clock, all
// inputs supplied by the caller. Money is int64 minor units (paise).
package billing

import (
	"fmt"
	"math"

	"github.com/swiftdish/order-service/internal/entities"
)

// Rates holds the platform billing knobs. Merchants may override the
// delivery fee parts; tax and commission are platform-wide.
type Rates struct {
	DeliveryBase  int64   // flat fee component, minor units
	DeliveryPerKM int64   // linear per-km component, minor units
	TaxRateBP     int64   // basis points, 500 = 5%
	CommissionBP  int64   // platform cut of the total, basis points
}

type Totals struct {
	Subtotal    int64
	DeliveryFee int64
	Tax         int64
	Discount    int64
	Total       int64
}

// Quote computes the full money breakdown for a cart. The discount comes
// from the promo collaborator and is clamped to [0, subtotal]; the delivery
// fee is clamped non-negative. Total is never recomputed after creation, so
// this is the single place the invariant
// total == subtotal + fee + tax - discount is established.
func Quote(items []entities.LineItem, distanceKM float64, discount int64, r Rates) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, fmt.Errorf("%w: empty cart", entities.ErrValidation)
	}
	if math.IsNaN(distanceKM) || math.IsInf(distanceKM, 0) || distanceKM < 0 {
		return Totals{}, fmt.Errorf("%w: distance %v", entities.ErrInvalidAmount, distanceKM)
	}

	var subtotal int64
	for _, it := range items {
		if it.UnitPrice < 0 {
			return Totals{}, fmt.Errorf("%w: unit price %d for %q", entities.ErrInvalidAmount, it.UnitPrice, it.ItemID)
		}
		if it.Quantity <= 0 {
			return Totals{}, fmt.Errorf("%w: quantity %d for %q", entities.ErrInvalidAmount, it.Quantity, it.ItemID)
		}
		subtotal += it.UnitPrice * int64(it.Quantity)
	}

	fee := roundHalfUp(float64(r.DeliveryBase) + float64(r.DeliveryPerKM)*distanceKM)
	if fee < 0 {
		fee = 0
	}

	tax := roundHalfUp(float64(subtotal) * float64(r.TaxRateBP) / 10000)

	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}

	t := Totals{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Tax:         tax,
		Discount:    discount,
	}
	t.Total = t.Subtotal + t.DeliveryFee + t.Tax - t.Discount
	if t.Total < 0 {
		return Totals{}, fmt.Errorf("%w: negative total %d", entities.ErrInvalidAmount, t.Total)
	}
	return t, nil
}

// Commission is the platform cut of a delivered order's total.
func Commission(total int64, r Rates) int64 {
	return roundHalfUp(float64(total) * float64(r.CommissionBP) / 10000)
}

func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}

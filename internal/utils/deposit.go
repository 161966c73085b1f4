package utils

import (
	"fmt"
	"time"

	"rentloop-backend/internal/domain"
)

// DepositBreakdown is the snapshot priced into a rental request at
// creation time. Units and the unit price are frozen; nothing downstream
// recomputes them.
type DepositBreakdown struct {
	TotalUnits     int32
	UnitPriceCents int64
	GrossCents     int64
	DiscountCents  int64
	DepositCents   int64
}

// CountUnits converts a rental period into billable units for the
// product's price unit. DAY pricing counts calendar days with both
// endpoints included, so a same-day rental is one day. HOUR pricing
// rounds any started hour up to a full hour.
func CountUnits(start, end time.Time, unit domain.PriceUnit) (int32, error) {
	if end.Before(start) {
		return 0, fmt.Errorf("rental end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	switch unit {
	case domain.PriceUnitHour:
		d := end.Sub(start)
		hours := int64(d / time.Hour)
		if d%time.Hour > 0 {
			hours++
		}
		if hours < 1 {
			hours = 1
		}
		return int32(hours), nil

	case domain.PriceUnitDay:
		fallthrough
	default:
		startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
		endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location())
		days := int64(endDay.Sub(startDay)/(24*time.Hour)) + 1 // both endpoints included
		return int32(days), nil
	}
}

// CalculateDeposit prices a rental period against a product and applies
// an optional discount. The discount reduces the deposit only; it never
// drives the total below zero.
func CalculateDeposit(start, end time.Time, product *domain.Product, discountCents int64) (DepositBreakdown, error) {
	if discountCents < 0 {
		return DepositBreakdown{}, fmt.Errorf("discount must not be negative, got %d", discountCents)
	}

	units, err := CountUnits(start, end, product.PriceUnit)
	if err != nil {
		return DepositBreakdown{}, err
	}

	gross := int64(units) * product.UnitPriceCents
	deposit := gross - discountCents
	if deposit < 0 {
		deposit = 0
	}

	return DepositBreakdown{
		TotalUnits:     units,
		UnitPriceCents: product.UnitPriceCents,
		GrossCents:     gross,
		DiscountCents:  discountCents,
		DepositCents:   deposit,
	}, nil
}

package domain

import "time"

type ProductStatus string

const (
	ProductStatusAvailable ProductStatus = "AVAILABLE"
	// ProductStatusRetired means the owner sold the product back to the
	// platform; retirement creates a credit grant for the owner.
	ProductStatusRetired ProductStatus = "RETIRED"
	// ProductStatusRemoved means the product is permanently unavailable.
	// Grants sourced from a removed product are frozen.
	ProductStatusRemoved ProductStatus = "REMOVED"
)

type PriceUnit string

const (
	PriceUnitDay  PriceUnit = "DAY"
	PriceUnitHour PriceUnit = "HOUR"
)

type Product struct {
	ID             int32         `json:"id"`
	OwnerID        int32         `json:"owner_id"`
	Name           string        `json:"name"`
	PriceUnit      PriceUnit     `json:"price_unit"`
	UnitPriceCents int64         `json:"unit_price_cents"`
	Status         ProductStatus `json:"status"`
	CreatedOn      time.Time     `json:"created_on"`
	UpdatedOn      time.Time     `json:"updated_on"`
}

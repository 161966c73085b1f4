package domain

import "time"

// CreditGrant is a non-fungible credit unit tied to a source: either a
// product its owner retired from the marketplace or an administrative
// gift. AmountCents is immutable after creation; InUseCents tracks the
// portion reserved by open rental requests, so AmountCents - InUseCents
// is the only quantity ever offered as free capacity.
type CreditGrant struct {
	ID           int32      `json:"id"`
	UserID       int32      `json:"user_id"`
	AmountCents  int64      `json:"amount_cents"`
	InUseCents   int64      `json:"in_use_cents"`
	SourceRef    string     `json:"source_ref"`
	IsGiftGrant  bool       `json:"is_gift_grant"`
	ValidityDate *time.Time `json:"validity_date,omitempty"`
	// Frozen grants keep their outstanding reservations but are invisible
	// to new reservation attempts. There is no unfreeze.
	Frozen    bool       `json:"frozen"`
	DeletedOn *time.Time `json:"deleted_on,omitempty"`
	CreatedOn time.Time  `json:"created_on"`
}

// FreeCents is the capacity a new reservation may take from the grant.
func (g *CreditGrant) FreeCents() int64 {
	return g.AmountCents - g.InUseCents
}

// UsableAt reports whether a gift grant is still valid at the given
// instant. Non-gift grants never expire.
func (g *CreditGrant) UsableAt(t time.Time) bool {
	if !g.IsGiftGrant || g.ValidityDate == nil {
		return true
	}
	return t.Before(*g.ValidityDate)
}

// GrantReservation is one entry of a rental request's grant breakdown,
// recording exactly how much was taken from which grant.
type GrantReservation struct {
	RentalRequestID int32      `json:"rental_request_id"`
	GrantID         int32      `json:"grant_id"`
	ReservedCents   int64      `json:"reserved_cents"`
	ReleasedOn      *time.Time `json:"released_on,omitempty"`
}

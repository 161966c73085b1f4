package domain

import "time"

type RentalStatus string

const (
	RentalStatusRequested          RentalStatus = "REQUESTED"
	RentalStatusAccepted           RentalStatus = "ACCEPTED"
	RentalStatusSubmitted          RentalStatus = "SUBMITTED"
	RentalStatusCollected          RentalStatus = "COLLECTED"
	RentalStatusReturnedByRenter   RentalStatus = "RETURNED_BY_RENTER"
	RentalStatusReturnedToOwner    RentalStatus = "RETURNED_TO_OWNER"
	RentalStatusRejectedByOwner    RentalStatus = "REJECTED_BY_OWNER"
	RentalStatusRejectedByPlatform RentalStatus = "REJECTED_BY_PLATFORM"
	RentalStatusCancelledByRenter  RentalStatus = "CANCELLED_BY_RENTER"
)

// transitions is the closed transition table: a target status is reachable
// only from the listed sources. REJECTED_BY_PLATFORM is special-cased in
// ValidTransition because it is legal from every non-terminal state.
var transitions = map[RentalStatus][]RentalStatus{
	RentalStatusAccepted:          {RentalStatusRequested},
	RentalStatusSubmitted:         {RentalStatusAccepted},
	RentalStatusCollected:         {RentalStatusSubmitted},
	RentalStatusReturnedByRenter:  {RentalStatusCollected},
	RentalStatusReturnedToOwner:   {RentalStatusReturnedByRenter},
	RentalStatusRejectedByOwner:   {RentalStatusRequested},
	RentalStatusCancelledByRenter: {RentalStatusRequested, RentalStatusAccepted},
}

// IsTerminal reports whether no further transition is defined from s.
func (s RentalStatus) IsTerminal() bool {
	switch s {
	case RentalStatusReturnedToOwner, RentalStatusRejectedByOwner,
		RentalStatusRejectedByPlatform, RentalStatusCancelledByRenter:
		return true
	}
	return false
}

// ValidTransition reports whether moving from one status to target is
// defined by the state machine.
func ValidTransition(from, target RentalStatus) bool {
	if target == RentalStatusRejectedByPlatform {
		return !from.IsTerminal()
	}
	for _, src := range transitions[target] {
		if src == from {
			return true
		}
	}
	return false
}

// AllRentalStatuses lists every defined status, for exhaustive checks.
func AllRentalStatuses() []RentalStatus {
	return []RentalStatus{
		RentalStatusRequested, RentalStatusAccepted, RentalStatusSubmitted,
		RentalStatusCollected, RentalStatusReturnedByRenter, RentalStatusReturnedToOwner,
		RentalStatusRejectedByOwner, RentalStatusRejectedByPlatform, RentalStatusCancelledByRenter,
	}
}

type ActorRole string

const (
	ActorRoleRenter   ActorRole = "RENTER"
	ActorRoleOwner    ActorRole = "OWNER"
	ActorRolePlatform ActorRole = "PLATFORM"
)

// Actor identifies who is driving a transition.
type Actor struct {
	UserID int32
	Role   ActorRole
}

type CollectionMethod string

const (
	CollectionMethodMeetup   CollectionMethod = "MEETUP"
	CollectionMethodDelivery CollectionMethod = "DELIVERY"
)

// RentalRequest is a single rental transaction attempt. The reservation
// breakdown (WalletReservedCents plus the grant_reservations rows) always
// sums to DepositCents; that sum is exactly what a terminal transition
// releases. Price fields are snapshots taken at creation time and never
// recomputed.
type RentalRequest struct {
	ID          int32        `json:"id"`
	RequesterID int32        `json:"requester_id"`
	OwnerID     int32        `json:"owner_id"`
	ProductID   int32        `json:"product_id"`
	Status      RentalStatus `json:"status"`

	PaidWithWallet      bool  `json:"paid_with_wallet"`
	WalletReservedCents int64 `json:"wallet_reserved_cents"`
	PaidWithGrants      bool  `json:"paid_with_grants"`

	RentalStart    time.Time `json:"rental_start"`
	RentalEnd      time.Time `json:"rental_end"`
	TotalUnits     int32     `json:"total_units"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	DepositCents   int64     `json:"deposit_cents"`

	CollectionMethod CollectionMethod `json:"collection_method"`
	DeliveryAddress  string           `json:"delivery_address,omitempty"`
	HandoffNote      string           `json:"handoff_note,omitempty"`
	DropoffDetail    string           `json:"dropoff_detail,omitempty"`
	// SubmissionDeadline is a display and alerting signal for operators.
	// Nothing transitions automatically when it passes.
	SubmissionDeadline *time.Time `json:"submission_deadline,omitempty"`
	Reason             string     `json:"reason,omitempty"`

	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

package domain

import "time"

// Wallet is the per-user fungible balance, split into funds free to
// reserve and funds locked against open rental requests. The cached
// balances are a materialized view; wallet_entries is the source of truth.
type Wallet struct {
	UserID                   int32     `json:"user_id"`
	AvailableCents           int64     `json:"available_cents"`
	LockedCents              int64     `json:"locked_cents"`
	WithdrawalRequestedCents int64     `json:"withdrawal_requested_cents"`
	CreatedOn                time.Time `json:"created_on"`
	UpdatedOn                time.Time `json:"updated_on"`
}

type EntryDirection string

const (
	EntryDirectionReserve        EntryDirection = "RESERVE"
	EntryDirectionRelease        EntryDirection = "RELEASE"
	EntryDirectionFinalizeDebit  EntryDirection = "FINALIZE_DEBIT"
	EntryDirectionFinalizeCredit EntryDirection = "FINALIZE_CREDIT"
	EntryDirectionPurchase       EntryDirection = "PURCHASE"
	EntryDirectionWithdrawal     EntryDirection = "WITHDRAWAL"
)

type EntryStatus string

const (
	// EntryStatusPending applies only to externally gated directions
	// (PURCHASE, WITHDRAWAL) awaiting gateway confirmation.
	EntryStatusPending  EntryStatus = "PENDING"
	EntryStatusAccepted EntryStatus = "ACCEPTED"
	EntryStatusRejected EntryStatus = "REJECTED"
)

// WalletEntry is one row of the append-only wallet ledger. AmountCents is
// signed from the wallet's point of view: positive adds value, negative
// removes it. Entries are never mutated after creation except the status
// of externally gated ones.
type WalletEntry struct {
	ID              int32          `json:"id"`
	UserID          int32          `json:"user_id"`
	AmountCents     int64          `json:"amount_cents"`
	Direction       EntryDirection `json:"direction"`
	Status          EntryStatus    `json:"status"`
	RentalRequestID *int32         `json:"rental_request_id,omitempty"`
	GatewayRef      string         `json:"gateway_ref,omitempty"`
	CreatedOn       time.Time      `json:"created_on"`
}

package repository

import (
	"context"
	"time"

	"rentloop-backend/internal/domain"
)

// Registry bundles the repositories that participate in a financial
// transaction. Inside TxManager.WithinTx every repository obtained from
// the Registry runs on the same database transaction.
type Registry interface {
	Wallets() WalletRepository
	Grants() GrantRepository
	Rentals() RentalRepository
	Products() ProductRepository
}

// TxManager runs a function inside a single atomic unit. Any error rolls
// the whole unit back; partial reservations are never observable outside
// the transaction boundary.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(r Registry) error) error
}

// Store is what the service layer holds: direct repositories for plain
// reads plus the transaction manager for multi-step financial units.
type Store interface {
	TxManager
	Registry
}

type WalletRepository interface {
	Get(ctx context.Context, userID int32) (*domain.Wallet, error)
	// GetForUpdate takes the wallet row lock, serializing concurrent
	// reserve/release calls on the same wallet.
	GetForUpdate(ctx context.Context, userID int32) (*domain.Wallet, error)
	// CreateIfAbsent lazily creates the wallet on first credit purchase.
	CreateIfAbsent(ctx context.Context, userID int32) error

	// Reserve moves amount from available to locked and appends a RESERVE
	// entry. Fails with domain.ErrInsufficientFunds.
	Reserve(ctx context.Context, userID int32, amountCents int64, rentalRequestID int32) error
	// Release moves amount from locked back to available. A reservation
	// settles at most once: if the request already has a RELEASE or
	// FINALIZE_DEBIT entry, Release returns (false, nil) and changes nothing.
	Release(ctx context.Context, userID int32, amountCents int64, rentalRequestID int32) (bool, error)
	// Finalize removes amount from locked permanently, under the same
	// settle-at-most-once rule as Release.
	Finalize(ctx context.Context, userID int32, amountCents int64, rentalRequestID int32) (bool, error)

	// CreditPending appends a PENDING purchase entry with no balance effect.
	CreditPending(ctx context.Context, entry *domain.WalletEntry) error
	// ConfirmPurchase promotes a pending purchase entry to accepted and
	// credits availableBalance.
	ConfirmPurchase(ctx context.Context, entryID int32) (*domain.WalletEntry, error)
	// RejectPurchase marks a pending purchase entry rejected, no balance effect.
	RejectPurchase(ctx context.Context, entryID int32) (*domain.WalletEntry, error)
	// HasPendingPurchase reports whether an unconfirmed purchase entry is
	// linked to the rental request.
	HasPendingPurchase(ctx context.Context, rentalRequestID int32) (bool, error)

	RequestWithdrawal(ctx context.Context, userID int32, amountCents int64, gatewayRef string) error
	ConfirmWithdrawal(ctx context.Context, userID int32, amountCents int64, gatewayRef string) error
	RejectWithdrawal(ctx context.Context, userID int32, amountCents int64, gatewayRef string) error

	ListEntries(ctx context.Context, userID int32, page, pageSize int32) ([]domain.WalletEntry, int32, error)
	// SumAcceptedEntries reconstructs available + locked from the ledger,
	// for reconciliation.
	SumAcceptedEntries(ctx context.Context, userID int32) (int64, error)
}

type GrantRepository interface {
	Create(ctx context.Context, grant *domain.CreditGrant) error
	GetByID(ctx context.Context, id int32) (*domain.CreditGrant, error)
	ListByUser(ctx context.Context, userID int32) ([]domain.CreditGrant, error)
	// ListForReserve locks the user's non-deleted, unfrozen grants with
	// free capacity, oldest first, optionally restricted to candidate IDs.
	// Expiry is not filtered here; the caller classifies expired gifts.
	ListForReserve(ctx context.Context, userID int32, candidateIDs []int32) ([]domain.CreditGrant, error)
	AddInUse(ctx context.Context, grantID int32, amountCents int64) error
	CreateReservations(ctx context.Context, reservations []domain.GrantReservation) error
	ListReservations(ctx context.Context, rentalRequestID int32) ([]domain.GrantReservation, error)
	// ReleaseForRequest decrements inUse for every unreleased reservation
	// of the request and stamps them released. Idempotent: replaying
	// returns no rows and changes nothing.
	ReleaseForRequest(ctx context.Context, rentalRequestID int32) ([]domain.GrantReservation, error)
	Freeze(ctx context.Context, grantID int32) error
	FreezeBySource(ctx context.Context, sourceRef string) error
	// SoftDeleteReleasedBySource soft-deletes grants of a removed product
	// that have no outstanding reservation.
	SoftDeleteReleasedBySource(ctx context.Context, sourceRef string) error
	ListGiftsExpiringBefore(ctx context.Context, cutoff time.Time) ([]domain.CreditGrant, error)
}

type RentalRepository interface {
	Create(ctx context.Context, req *domain.RentalRequest) error
	GetByID(ctx context.Context, id int32) (*domain.RentalRequest, error)
	// GetForUpdate re-reads the request row under lock so a transition can
	// guard its source status against concurrent transitions.
	GetForUpdate(ctx context.Context, id int32) (*domain.RentalRequest, error)
	Update(ctx context.Context, req *domain.RentalRequest) error
	HasActiveForProduct(ctx context.Context, productID int32) (bool, error)
	ListByRequester(ctx context.Context, requesterID int32, status string, page, pageSize int32) ([]domain.RentalRequest, int32, error)
	ListByOwner(ctx context.Context, ownerID int32, status string, page, pageSize int32) ([]domain.RentalRequest, int32, error)
	ListAcceptedPastDeadline(ctx context.Context, now time.Time) ([]domain.RentalRequest, error)
	// PurgeSettledBefore hard-deletes terminal requests older than the
	// cutoff whose reservations are all released.
	PurgeSettledBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id int32) (*domain.Product, error)
	GetForUpdate(ctx context.Context, id int32) (*domain.Product, error)
	UpdateStatus(ctx context.Context, id int32, status domain.ProductStatus) error
	ListByOwner(ctx context.Context, ownerID int32) ([]domain.Product, error)
}

// UserRepository is the minimal identity lookup the side effects need.
// Account management lives in a separate system.
type UserRepository interface {
	GetEmail(ctx context.Context, userID int32) (string, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, note *domain.Notification) error
	List(ctx context.Context, userID int32, limit, offset int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, id, userID int32) error
}

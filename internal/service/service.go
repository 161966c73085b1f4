package service

import (
	"context"
	"time"

	"rentloop-backend/internal/domain"
)

// DepositPlan says how the requester wants the deposit covered. Grants are
// consumed first when enabled; the wallet backs whatever remains. At least
// one of the two must be enabled.
type DepositPlan struct {
	UseWallet bool
	UseGrants bool
	// CandidateGrantIDs restricts grant selection to an explicit list.
	// Empty means any reservable grant, oldest first.
	CandidateGrantIDs []int32
	// DiscountCents is the already-validated effect of a coupon on the
	// deposit. Coupon mechanics live outside the core.
	DiscountCents int64
}

type CreateRentalInput struct {
	ProductID        int32
	RentalStart      time.Time
	RentalEnd        time.Time
	CollectionMethod domain.CollectionMethod
	DeliveryAddress  string
	Plan             DepositPlan
}

// TransitionMeta carries the per-transition fields an actor may record.
// Unused fields are ignored by transitions that do not record them.
type TransitionMeta struct {
	HandoffNote        string
	DropoffDetail      string
	SubmissionDeadline *time.Time
	Reason             string
}

type WalletService interface {
	GetWalletSnapshot(ctx context.Context, userID int32) (*domain.Wallet, error)
	ListEntries(ctx context.Context, userID int32, page, pageSize int32) ([]domain.WalletEntry, int32, error)
	// Reconcile recomputes available + locked from the accepted ledger
	// entries and reports whether the cached balances agree.
	Reconcile(ctx context.Context, userID int32) (ledgerSum, cachedSum int64, ok bool, err error)

	// FinalizeDeposit consumes a locked deposit permanently instead of
	// releasing it (e.g. a damage settlement agreed outside the system).
	// Reports false without effect when the reservation is already
	// settled, whether by an earlier finalize or by a refund.
	FinalizeDeposit(ctx context.Context, userID int32, amountCents int64, rentalRequestID int32) (bool, error)

	// PurchaseCredits records an externally gated top-up as a pending
	// entry. Confirm/Reject settle it after the gateway answers.
	PurchaseCredits(ctx context.Context, userID int32, amountCents int64, gatewayRef string, rentalRequestID *int32) (*domain.WalletEntry, error)
	ConfirmPurchase(ctx context.Context, entryID int32) (*domain.WalletEntry, error)
	RejectPurchase(ctx context.Context, entryID int32) (*domain.WalletEntry, error)

	RequestWithdrawal(ctx context.Context, userID int32, amountCents int64, gatewayRef string) error
	ConfirmWithdrawal(ctx context.Context, userID int32, amountCents int64, gatewayRef string) error
	RejectWithdrawal(ctx context.Context, userID int32, amountCents int64, gatewayRef string) error
}

type GrantService interface {
	GetGrantSnapshot(ctx context.Context, userID int32) ([]domain.CreditGrant, error)
	IssueGift(ctx context.Context, userID int32, amountCents int64, validityDays *int32, reason string) (*domain.CreditGrant, error)
	Freeze(ctx context.Context, grantID int32) error

	// RetireProduct converts a product the owner sold back to the platform
	// into a credit grant of the agreed value.
	RetireProduct(ctx context.Context, ownerID, productID int32, creditCents int64) (*domain.CreditGrant, error)
	// RemoveProduct permanently removes a product, freezes its grants and
	// soft-deletes those with no outstanding reservation.
	RemoveProduct(ctx context.Context, ownerID, productID int32) error
}

type RentalService interface {
	CreateRentalRequest(ctx context.Context, requesterID int32, input CreateRentalInput) (*domain.RentalRequest, error)
	// TransitionRequest moves a request to the target status on behalf of
	// the actor, enforcing the transition table, the actor's role, and the
	// refund sequence on every terminal target.
	TransitionRequest(ctx context.Context, requestID int32, actor domain.Actor, target domain.RentalStatus, meta TransitionMeta) (*domain.RentalRequest, error)

	GetRental(ctx context.Context, userID, requestID int32) (*domain.RentalRequest, error)
	ListRentals(ctx context.Context, requesterID int32, status string, page, pageSize int32) ([]domain.RentalRequest, int32, error)
	ListLendings(ctx context.Context, ownerID int32, status string, page, pageSize int32) ([]domain.RentalRequest, int32, error)
}

// ForceResult is the outcome of one request in a bulk admin override.
type ForceResult struct {
	RequestID int32
	Request   *domain.RentalRequest
	Err       error
}

type AdminService interface {
	PlatformReject(ctx context.Context, adminID, requestID int32, reason string) (*domain.RentalRequest, error)
	ForceStatus(ctx context.Context, adminID, requestID int32, target domain.RentalStatus) (*domain.RentalRequest, error)
	BulkForceStatus(ctx context.Context, adminID int32, requestIDs []int32, target domain.RentalStatus) []ForceResult
}

type NotificationService interface {
	GetNotifications(ctx context.Context, userID int32, page, pageSize int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, userID, notificationID int32) error
}

// UserDirectory resolves a user's contact address. Identity lives outside
// the core; this is the one lookup the side effects need.
type UserDirectory interface {
	GetEmail(ctx context.Context, userID int32) (string, error)
}

type EmailService interface {
	SendRentalRequestNotification(ctx context.Context, ownerEmail, productName string, depositCents int64) error
	SendRentalAcceptedNotification(ctx context.Context, requesterEmail, productName, handoffNote string) error
	SendRentalTerminatedNotification(ctx context.Context, requesterEmail, productName, status, reason string, refundedCents int64) error
	SendGiftGrantNotification(ctx context.Context, email string, amountCents int64, validityDate *time.Time, reason string) error
	SendGiftExpiryReminder(ctx context.Context, email string, amountCents, remainingCents int64, validityDate time.Time) error
	SendSubmissionDeadlineAlert(ctx context.Context, opsEmail string, requestID int32, deadline time.Time) error
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rentloop-backend/internal/domain"
	"rentloop-backend/internal/repository"
)

type walletRepository struct {
	db DBTX
}

func NewWalletRepository(db DBTX) repository.WalletRepository {
	return &walletRepository{db: db}
}

const walletColumns = `user_id, available_cents, locked_cents, withdrawal_requested_cents, created_on, updated_on`

func (r *walletRepository) scanWallet(row *sql.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.UserID, &w.AvailableCents, &w.LockedCents, &w.WithdrawalRequestedCents, &w.CreatedOn, &w.UpdatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Errorf(domain.ErrNotFound, "wallet not found")
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return w, nil
}

func (r *walletRepository) Get(ctx context.Context, userID int32) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	return r.scanWallet(r.db.QueryRowContext(ctx, query, userID))
}

func (r *walletRepository) GetForUpdate(ctx context.Context, userID int32) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 FOR UPDATE`
	return r.scanWallet(r.db.QueryRowContext(ctx, query, userID))
}

func (r *walletRepository) CreateIfAbsent(ctx context.Context, userID int32) error {
	query := `INSERT INTO wallets (user_id, available_cents, locked_cents, withdrawal_requested_cents, created_on, updated_on)
	          VALUES ($1, 0, 0, 0, NOW(), NOW()) ON CONFLICT (user_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

func (r *walletRepository) appendEntry(ctx context.Context, entry *domain.WalletEntry) error {
	query := `INSERT INTO wallet_entries (user_id, amount_cents, direction, status, rental_request_id, gateway_ref, created_on)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id, created_on`
	var gatewayRef any
	if entry.GatewayRef != "" {
		gatewayRef = entry.GatewayRef
	}
	err := r.db.QueryRowContext(ctx, query,
		entry.UserID, entry.AmountCents, entry.Direction, entry.Status, entry.RentalRequestID, gatewayRef,
	).Scan(&entry.ID, &entry.CreatedOn)
	if err != nil {
		return fmt.Errorf("append wallet entry: %w", err)
	}
	return nil
}

// settlementExists checks idempotency by ledger entry existence, not by
// trusting the caller. A reservation is settled once it has either a
// RELEASE or a FINALIZE_DEBIT entry; the two settlements exclude each
// other, so a release after a finalize (or the reverse) is a no-op, never
// a second credit. Callers hold the wallet row lock, so the check cannot
// race another settlement on the same wallet.
func (r *walletRepository) settlementExists(ctx context.Context, rentalRequestID int32) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM wallet_entries WHERE rental_request_id = $1 AND direction IN ($2, $3))`
	err := r.db.QueryRowContext(ctx, query, rentalRequestID,
		domain.EntryDirectionRelease, domain.EntryDirectionFinalizeDebit).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check wallet entry: %w", err)
	}
	return exists, nil
}

func (r *walletRepository) moveBalance(ctx context.Context, userID int32, availableDelta, lockedDelta int64) error {
	query := `UPDATE wallets
	          SET available_cents = available_cents + $1,
	              locked_cents = locked_cents + $2,
	              updated_on = NOW()
	          WHERE user_id = $3`
	if _, err := r.db.ExecContext(ctx, query, availableDelta, lockedDelta, userID); err != nil {
		return fmt.Errorf("update wallet balances: %w", err)
	}
	return nil
}

func (r *walletRepository) Reserve(ctx context.Context, userID int32, amountCents int64, rentalRequestID int32) error {
	w, err := r.GetForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Errorf(domain.ErrInsufficientFunds, "no wallet for user %d", userID)
		}
		return err
	}
	if w.AvailableCents < amountCents {
		return domain.Errorf(domain.ErrInsufficientFunds, "available %d, requested %d", w.AvailableCents, amountCents)
	}
	if err := r.moveBalance(ctx, userID, -amountCents, amountCents); err != nil {
		return err
	}
	return r.appendEntry(ctx, &domain.WalletEntry{
		UserID:          userID,
		AmountCents:     amountCents,
		Direction:       domain.EntryDirectionReserve,
		Status:          domain.EntryStatusAccepted,
		RentalRequestID: &rentalRequestID,
	})
}

func (r *walletRepository) Release(ctx context.Context, userID int32, amountCents int64, rentalRequestID int32) (bool, error) {
	w, err := r.GetForUpdate(ctx, userID)
	if err != nil {
		return false, err
	}
	done, err := r.settlementExists(ctx, rentalRequestID)
	if err != nil || done {
		return false, err
	}
	if w.LockedCents < amountCents {
		return false, fmt.Errorf("wallet %d locked balance %d below release amount %d", userID, w.LockedCents, amountCents)
	}
	if err := r.moveBalance(ctx, userID, amountCents, -amountCents); err != nil {
		return false, err
	}
	err = r.appendEntry(ctx, &domain.WalletEntry{
		UserID:          userID,
		AmountCents:     amountCents,
		Direction:       domain.EntryDirectionRelease,
		Status:          domain.EntryStatusAccepted,
		RentalRequestID: &rentalRequestID,
	})
	return err == nil, err
}

func (r *walletRepository) Finalize(ctx context.Context, userID int32, amountCents int64, rentalRequestID int32) (bool, error) {
	w, err := r.GetForUpdate(ctx, userID)
	if err != nil {
		return false, err
	}
	done, err := r.settlementExists(ctx, rentalRequestID)
	if err != nil || done {
		return false, err
	}
	if w.LockedCents < amountCents {
		return false, fmt.Errorf("wallet %d locked balance %d below finalize amount %d", userID, w.LockedCents, amountCents)
	}
	if err := r.moveBalance(ctx, userID, 0, -amountCents); err != nil {
		return false, err
	}
	err = r.appendEntry(ctx, &domain.WalletEntry{
		UserID:          userID,
		AmountCents:     -amountCents,
		Direction:       domain.EntryDirectionFinalizeDebit,
		Status:          domain.EntryStatusAccepted,
		RentalRequestID: &rentalRequestID,
	})
	return err == nil, err
}

func (r *walletRepository) CreditPending(ctx context.Context, entry *domain.WalletEntry) error {
	if err := r.CreateIfAbsent(ctx, entry.UserID); err != nil {
		return err
	}
	entry.Direction = domain.EntryDirectionPurchase
	entry.Status = domain.EntryStatusPending
	return r.appendEntry(ctx, entry)
}

func (r *walletRepository) getEntryForUpdate(ctx context.Context, entryID int32) (*domain.WalletEntry, error) {
	e := &domain.WalletEntry{}
	var gatewayRef sql.NullString
	query := `SELECT id, user_id, amount_cents, direction, status, rental_request_id, gateway_ref, created_on
	          FROM wallet_entries WHERE id = $1 FOR UPDATE`
	err := r.db.QueryRowContext(ctx, query, entryID).Scan(
		&e.ID, &e.UserID, &e.AmountCents, &e.Direction, &e.Status, &e.RentalRequestID, &gatewayRef, &e.CreatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Errorf(domain.ErrNotFound, "wallet entry %d not found", entryID)
		}
		return nil, fmt.Errorf("get wallet entry: %w", err)
	}
	e.GatewayRef = gatewayRef.String
	return e, nil
}

func (r *walletRepository) setEntryStatus(ctx context.Context, entryID int32, status domain.EntryStatus) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE wallet_entries SET status = $1 WHERE id = $2`, status, entryID); err != nil {
		return fmt.Errorf("update wallet entry status: %w", err)
	}
	return nil
}

func (r *walletRepository) ConfirmPurchase(ctx context.Context, entryID int32) (*domain.WalletEntry, error) {
	e, err := r.getEntryForUpdate(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if e.Direction != domain.EntryDirectionPurchase {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "entry %d is not a purchase", entryID)
	}
	if e.Status != domain.EntryStatusPending {
		// Already settled; confirming again is a no-op.
		return e, nil
	}
	if _, err := r.GetForUpdate(ctx, e.UserID); err != nil {
		return nil, err
	}
	if err := r.setEntryStatus(ctx, entryID, domain.EntryStatusAccepted); err != nil {
		return nil, err
	}
	if err := r.moveBalance(ctx, e.UserID, e.AmountCents, 0); err != nil {
		return nil, err
	}
	e.Status = domain.EntryStatusAccepted
	return e, nil
}

func (r *walletRepository) RejectPurchase(ctx context.Context, entryID int32) (*domain.WalletEntry, error) {
	e, err := r.getEntryForUpdate(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if e.Direction != domain.EntryDirectionPurchase {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "entry %d is not a purchase", entryID)
	}
	if e.Status != domain.EntryStatusPending {
		return e, nil
	}
	if err := r.setEntryStatus(ctx, entryID, domain.EntryStatusRejected); err != nil {
		return nil, err
	}
	e.Status = domain.EntryStatusRejected
	return e, nil
}

func (r *walletRepository) HasPendingPurchase(ctx context.Context, rentalRequestID int32) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM wallet_entries
	          WHERE rental_request_id = $1 AND direction = $2 AND status = $3)`
	err := r.db.QueryRowContext(ctx, query, rentalRequestID, domain.EntryDirectionPurchase, domain.EntryStatusPending).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending purchase: %w", err)
	}
	return exists, nil
}

func (r *walletRepository) RequestWithdrawal(ctx context.Context, userID int32, amountCents int64, gatewayRef string) error {
	w, err := r.GetForUpdate(ctx, userID)
	if err != nil {
		return err
	}
	if w.AvailableCents < amountCents {
		return domain.Errorf(domain.ErrInsufficientFunds, "available %d, withdrawal %d", w.AvailableCents, amountCents)
	}
	query := `UPDATE wallets
	          SET available_cents = available_cents - $1,
	              withdrawal_requested_cents = withdrawal_requested_cents + $1,
	              updated_on = NOW()
	          WHERE user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, amountCents, userID); err != nil {
		return fmt.Errorf("update wallet for withdrawal: %w", err)
	}
	return r.appendEntry(ctx, &domain.WalletEntry{
		UserID:      userID,
		AmountCents: -amountCents,
		Direction:   domain.EntryDirectionWithdrawal,
		Status:      domain.EntryStatusAccepted,
		GatewayRef:  gatewayRef,
	})
}

func (r *walletRepository) ConfirmWithdrawal(ctx context.Context, userID int32, amountCents int64, gatewayRef string) error {
	if _, err := r.GetForUpdate(ctx, userID); err != nil {
		return err
	}
	query := `UPDATE wallets
	          SET withdrawal_requested_cents = withdrawal_requested_cents - $1, updated_on = NOW()
	          WHERE user_id = $2 AND withdrawal_requested_cents >= $1`
	res, err := r.db.ExecContext(ctx, query, amountCents, userID)
	if err != nil {
		return fmt.Errorf("confirm withdrawal: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.Errorf(domain.ErrInvalidArgument, "no matching withdrawal of %d for user %d", amountCents, userID)
	}
	return nil
}

func (r *walletRepository) RejectWithdrawal(ctx context.Context, userID int32, amountCents int64, gatewayRef string) error {
	if _, err := r.GetForUpdate(ctx, userID); err != nil {
		return err
	}
	query := `UPDATE wallets
	          SET withdrawal_requested_cents = withdrawal_requested_cents - $1,
	              available_cents = available_cents + $1,
	              updated_on = NOW()
	          WHERE user_id = $2 AND withdrawal_requested_cents >= $1`
	res, err := r.db.ExecContext(ctx, query, amountCents, userID)
	if err != nil {
		return fmt.Errorf("reject withdrawal: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.Errorf(domain.ErrInvalidArgument, "no matching withdrawal of %d for user %d", amountCents, userID)
	}
	// Reversal row so the accepted-entry sum still reconstructs the
	// available + locked view.
	return r.appendEntry(ctx, &domain.WalletEntry{
		UserID:      userID,
		AmountCents: amountCents,
		Direction:   domain.EntryDirectionWithdrawal,
		Status:      domain.EntryStatusAccepted,
		GatewayRef:  gatewayRef,
	})
}

func (r *walletRepository) ListEntries(ctx context.Context, userID int32, page, pageSize int32) ([]domain.WalletEntry, int32, error) {
	offset := (page - 1) * pageSize

	var count int32
	countQuery := `SELECT count(*) FROM wallet_entries WHERE user_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&count); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, user_id, amount_cents, direction, status, rental_request_id, COALESCE(gateway_ref, ''), created_on
	          FROM wallet_entries WHERE user_id = $1 ORDER BY created_on DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, userID, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []domain.WalletEntry
	for rows.Next() {
		var e domain.WalletEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.AmountCents, &e.Direction, &e.Status, &e.RentalRequestID, &e.GatewayRef, &e.CreatedOn); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, count, rows.Err()
}

// SumAcceptedEntries sums the signed external movements (purchases,
// finalizes, withdrawals). Reserve/release pairs are internal moves
// between available and locked and cancel out of the reconciled total.
func (r *walletRepository) SumAcceptedEntries(ctx context.Context, userID int32) (int64, error) {
	var sum int64
	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM wallet_entries
	          WHERE user_id = $1 AND status = $2 AND direction NOT IN ($3, $4)`
	err := r.db.QueryRowContext(ctx, query, userID, domain.EntryStatusAccepted,
		domain.EntryDirectionReserve, domain.EntryDirectionRelease).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum wallet entries: %w", err)
	}
	return sum, nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentloop-backend/internal/domain"
	"rentloop-backend/internal/repository"
)

type rentalRepository struct {
	db DBTX
}

func NewRentalRepository(db DBTX) repository.RentalRepository {
	return &rentalRepository{db: db}
}

const rentalColumns = `id, requester_id, owner_id, product_id, status,
	paid_with_wallet, wallet_reserved_cents, paid_with_grants,
	rental_start, rental_end, total_units, unit_price_cents, deposit_cents,
	collection_method, COALESCE(delivery_address, ''), COALESCE(handoff_note, ''), COALESCE(dropoff_detail, ''),
	submission_deadline, COALESCE(reason, ''), created_on, updated_on`

func scanRental(scan func(dest ...any) error) (*domain.RentalRequest, error) {
	req := &domain.RentalRequest{}
	err := scan(
		&req.ID, &req.RequesterID, &req.OwnerID, &req.ProductID, &req.Status,
		&req.PaidWithWallet, &req.WalletReservedCents, &req.PaidWithGrants,
		&req.RentalStart, &req.RentalEnd, &req.TotalUnits, &req.UnitPriceCents, &req.DepositCents,
		&req.CollectionMethod, &req.DeliveryAddress, &req.HandoffNote, &req.DropoffDetail,
		&req.SubmissionDeadline, &req.Reason, &req.CreatedOn, &req.UpdatedOn)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *rentalRepository) Create(ctx context.Context, req *domain.RentalRequest) error {
	query := `INSERT INTO rental_requests (
	            requester_id, owner_id, product_id, status,
	            paid_with_wallet, wallet_reserved_cents, paid_with_grants,
	            rental_start, rental_end, total_units, unit_price_cents, deposit_cents,
	            collection_method, delivery_address, submission_deadline, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
	          RETURNING id, created_on, updated_on`
	err := r.db.QueryRowContext(ctx, query,
		req.RequesterID, req.OwnerID, req.ProductID, req.Status,
		req.PaidWithWallet, req.WalletReservedCents, req.PaidWithGrants,
		req.RentalStart, req.RentalEnd, req.TotalUnits, req.UnitPriceCents, req.DepositCents,
		req.CollectionMethod, req.DeliveryAddress, req.SubmissionDeadline,
	).Scan(&req.ID, &req.CreatedOn, &req.UpdatedOn)
	if err != nil {
		return fmt.Errorf("create rental request: %w", err)
	}
	return nil
}

func (r *rentalRepository) get(ctx context.Context, id int32, forUpdate bool) (*domain.RentalRequest, error) {
	query := `SELECT ` + rentalColumns + ` FROM rental_requests WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	req, err := scanRental(r.db.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Errorf(domain.ErrNotFound, "rental request %d not found", id)
		}
		return nil, fmt.Errorf("get rental request: %w", err)
	}
	return req, nil
}

func (r *rentalRepository) GetByID(ctx context.Context, id int32) (*domain.RentalRequest, error) {
	return r.get(ctx, id, false)
}

func (r *rentalRepository) GetForUpdate(ctx context.Context, id int32) (*domain.RentalRequest, error) {
	return r.get(ctx, id, true)
}

func (r *rentalRepository) Update(ctx context.Context, req *domain.RentalRequest) error {
	query := `UPDATE rental_requests
	          SET status = $1, handoff_note = $2, dropoff_detail = $3, submission_deadline = $4,
	              reason = $5, updated_on = NOW()
	          WHERE id = $6`
	res, err := r.db.ExecContext(ctx, query,
		req.Status, req.HandoffNote, req.DropoffDetail, req.SubmissionDeadline, req.Reason, req.ID)
	if err != nil {
		return fmt.Errorf("update rental request: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.Errorf(domain.ErrNotFound, "rental request %d not found", req.ID)
	}
	return nil
}

func (r *rentalRepository) HasActiveForProduct(ctx context.Context, productID int32) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM rental_requests
	          WHERE product_id = $1 AND status NOT IN ($2, $3, $4, $5))`
	err := r.db.QueryRowContext(ctx, query, productID,
		domain.RentalStatusReturnedToOwner, domain.RentalStatusRejectedByOwner,
		domain.RentalStatusRejectedByPlatform, domain.RentalStatusCancelledByRenter).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active request for product: %w", err)
	}
	return exists, nil
}

func (r *rentalRepository) list(ctx context.Context, column string, userID int32, status string, page, pageSize int32) ([]domain.RentalRequest, int32, error) {
	offset := (page - 1) * pageSize
	query := `SELECT ` + rentalColumns + ` FROM rental_requests WHERE ` + column + ` = $1`

	args := []any{userID}
	argIdx := 2
	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}

	var count int32
	countQuery := "SELECT count(*) FROM (" + query + ") as sub"
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(" ORDER BY created_on DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var requests []domain.RentalRequest
	for rows.Next() {
		req, err := scanRental(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, *req)
	}
	return requests, count, rows.Err()
}

func (r *rentalRepository) ListByRequester(ctx context.Context, requesterID int32, status string, page, pageSize int32) ([]domain.RentalRequest, int32, error) {
	return r.list(ctx, "requester_id", requesterID, status, page, pageSize)
}

func (r *rentalRepository) ListByOwner(ctx context.Context, ownerID int32, status string, page, pageSize int32) ([]domain.RentalRequest, int32, error) {
	return r.list(ctx, "owner_id", ownerID, status, page, pageSize)
}

func (r *rentalRepository) ListAcceptedPastDeadline(ctx context.Context, now time.Time) ([]domain.RentalRequest, error) {
	query := `SELECT ` + rentalColumns + ` FROM rental_requests
	          WHERE status = $1 AND submission_deadline IS NOT NULL AND submission_deadline < $2
	          ORDER BY submission_deadline, id`
	rows, err := r.db.QueryContext(ctx, query, domain.RentalStatusAccepted, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []domain.RentalRequest
	for rows.Next() {
		req, err := scanRental(rows.Scan)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// PurgeSettledBefore deletes terminal requests older than the cutoff. A
// request is only purgeable once every reservation it held is released:
// grant reservations must be stamped and any wallet reserve must have its
// matching release or finalize entry.
func (r *rentalRepository) PurgeSettledBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM rental_requests q
	          WHERE q.status IN ($1, $2, $3, $4)
	            AND q.updated_on < $5
	            AND NOT EXISTS (
	              SELECT 1 FROM grant_reservations gr
	              WHERE gr.rental_request_id = q.id AND gr.released_on IS NULL)
	            AND NOT EXISTS (
	              SELECT 1 FROM wallet_entries we
	              WHERE we.rental_request_id = q.id AND we.direction = 'RESERVE'
	                AND NOT EXISTS (
	                  SELECT 1 FROM wallet_entries done
	                  WHERE done.rental_request_id = q.id
	                    AND done.direction IN ('RELEASE', 'FINALIZE_DEBIT')))`
	res, err := r.db.ExecContext(ctx, query,
		domain.RentalStatusReturnedToOwner, domain.RentalStatusRejectedByOwner,
		domain.RentalStatusRejectedByPlatform, domain.RentalStatusCancelledByRenter, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge settled requests: %w", err)
	}
	return res.RowsAffected()
}

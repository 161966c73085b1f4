package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentloop-backend/internal/domain"
	"rentloop-backend/internal/repository"

	"github.com/lib/pq"
)

type grantRepository struct {
	db DBTX
}

func NewGrantRepository(db DBTX) repository.GrantRepository {
	return &grantRepository{db: db}
}

const grantColumns = `id, user_id, amount_cents, in_use_cents, source_ref, is_gift, validity_date, frozen, deleted_on, created_on`

func scanGrant(scan func(dest ...any) error) (*domain.CreditGrant, error) {
	g := &domain.CreditGrant{}
	err := scan(&g.ID, &g.UserID, &g.AmountCents, &g.InUseCents, &g.SourceRef,
		&g.IsGiftGrant, &g.ValidityDate, &g.Frozen, &g.DeletedOn, &g.CreatedOn)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r *grantRepository) Create(ctx context.Context, grant *domain.CreditGrant) error {
	query := `INSERT INTO credit_grants (user_id, amount_cents, in_use_cents, source_ref, is_gift, validity_date, frozen, created_on)
	          VALUES ($1, $2, 0, $3, $4, $5, false, NOW()) RETURNING id, created_on`
	err := r.db.QueryRowContext(ctx, query,
		grant.UserID, grant.AmountCents, grant.SourceRef, grant.IsGiftGrant, grant.ValidityDate,
	).Scan(&grant.ID, &grant.CreatedOn)
	if err != nil {
		return fmt.Errorf("create credit grant: %w", err)
	}
	return nil
}

func (r *grantRepository) GetByID(ctx context.Context, id int32) (*domain.CreditGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM credit_grants WHERE id = $1`
	g, err := scanGrant(r.db.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Errorf(domain.ErrNotFound, "credit grant %d not found", id)
		}
		return nil, fmt.Errorf("get credit grant: %w", err)
	}
	return g, nil
}

func (r *grantRepository) ListByUser(ctx context.Context, userID int32) ([]domain.CreditGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM credit_grants
	          WHERE user_id = $1 AND deleted_on IS NULL ORDER BY created_on, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []domain.CreditGrant
	for rows.Next() {
		g, err := scanGrant(rows.Scan)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}

// ListForReserve locks the candidate grants for the duration of the
// reservation transaction. Frozen and soft-deleted grants are invisible to
// new reservations; expiry is classified by the caller because the failure
// mode depends on the rental period.
func (r *grantRepository) ListForReserve(ctx context.Context, userID int32, candidateIDs []int32) ([]domain.CreditGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM credit_grants
	          WHERE user_id = $1 AND deleted_on IS NULL AND frozen = false AND amount_cents > in_use_cents`
	args := []any{userID}
	if len(candidateIDs) > 0 {
		query += ` AND id = ANY($2)`
		args = append(args, pq.Array(candidateIDs))
	}
	query += ` ORDER BY created_on, id FOR UPDATE`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []domain.CreditGrant
	for rows.Next() {
		g, err := scanGrant(rows.Scan)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}

func (r *grantRepository) AddInUse(ctx context.Context, grantID int32, amountCents int64) error {
	// The capacity guard backs up the in-transaction checks; inUse can
	// never exceed amount.
	query := `UPDATE credit_grants SET in_use_cents = in_use_cents + $1
	          WHERE id = $2 AND amount_cents - in_use_cents >= $1`
	res, err := r.db.ExecContext(ctx, query, amountCents, grantID)
	if err != nil {
		return fmt.Errorf("increment grant in_use: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.Errorf(domain.ErrInsufficientGrantBalance, "grant %d lacks free capacity for %d", grantID, amountCents)
	}
	return nil
}

func (r *grantRepository) CreateReservations(ctx context.Context, reservations []domain.GrantReservation) error {
	query := `INSERT INTO grant_reservations (rental_request_id, grant_id, reserved_cents)
	          VALUES ($1, $2, $3)`
	for i := range reservations {
		res := &reservations[i]
		if _, err := r.db.ExecContext(ctx, query, res.RentalRequestID, res.GrantID, res.ReservedCents); err != nil {
			return fmt.Errorf("create grant reservation: %w", err)
		}
	}
	return nil
}

func (r *grantRepository) ListReservations(ctx context.Context, rentalRequestID int32) ([]domain.GrantReservation, error) {
	query := `SELECT rental_request_id, grant_id, reserved_cents, released_on
	          FROM grant_reservations WHERE rental_request_id = $1 ORDER BY grant_id`
	rows, err := r.db.QueryContext(ctx, query, rentalRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GrantReservation
	for rows.Next() {
		var res domain.GrantReservation
		if err := rows.Scan(&res.RentalRequestID, &res.GrantID, &res.ReservedCents, &res.ReleasedOn); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// ReleaseForRequest stamps every unreleased reservation of the request and
// decrements the owning grants in one statement, so a replay finds nothing
// left to release.
func (r *grantRepository) ReleaseForRequest(ctx context.Context, rentalRequestID int32) ([]domain.GrantReservation, error) {
	query := `WITH released AS (
	            UPDATE grant_reservations SET released_on = NOW()
	            WHERE rental_request_id = $1 AND released_on IS NULL
	            RETURNING grant_id, reserved_cents
	          )
	          UPDATE credit_grants g
	          SET in_use_cents = g.in_use_cents - released.reserved_cents
	          FROM released
	          WHERE g.id = released.grant_id
	          RETURNING released.grant_id, released.reserved_cents`
	rows, err := r.db.QueryContext(ctx, query, rentalRequestID)
	if err != nil {
		return nil, fmt.Errorf("release grant reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.GrantReservation
	for rows.Next() {
		res := domain.GrantReservation{RentalRequestID: rentalRequestID}
		if err := rows.Scan(&res.GrantID, &res.ReservedCents); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *grantRepository) Freeze(ctx context.Context, grantID int32) error {
	res, err := r.db.ExecContext(ctx, `UPDATE credit_grants SET frozen = true WHERE id = $1 AND deleted_on IS NULL`, grantID)
	if err != nil {
		return fmt.Errorf("freeze grant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.Errorf(domain.ErrNotFound, "credit grant %d not found", grantID)
	}
	return nil
}

func (r *grantRepository) FreezeBySource(ctx context.Context, sourceRef string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE credit_grants SET frozen = true WHERE source_ref = $1 AND deleted_on IS NULL`, sourceRef)
	if err != nil {
		return fmt.Errorf("freeze grants by source: %w", err)
	}
	return nil
}

func (r *grantRepository) SoftDeleteReleasedBySource(ctx context.Context, sourceRef string) error {
	query := `UPDATE credit_grants SET deleted_on = NOW()
	          WHERE source_ref = $1 AND in_use_cents = 0 AND deleted_on IS NULL`
	if _, err := r.db.ExecContext(ctx, query, sourceRef); err != nil {
		return fmt.Errorf("soft delete grants by source: %w", err)
	}
	return nil
}

func (r *grantRepository) ListGiftsExpiringBefore(ctx context.Context, cutoff time.Time) ([]domain.CreditGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM credit_grants
	          WHERE is_gift = true AND deleted_on IS NULL AND frozen = false
	            AND validity_date IS NOT NULL AND validity_date > NOW() AND validity_date <= $1
	            AND amount_cents > in_use_cents
	          ORDER BY validity_date, id`
	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []domain.CreditGrant
	for rows.Next() {
		g, err := scanGrant(rows.Scan)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}

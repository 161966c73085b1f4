package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rentloop-backend/internal/domain"
	"rentloop-backend/internal/metrics"
	"rentloop-backend/internal/repository"

	"github.com/lib/pq"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so the same repository
// code serves standalone reads and transactional units.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
	registry
	repository.NotificationRepository
	repository.UserRepository
}

// registry is the set of transaction-scoped repositories.
type registry struct {
	wallets  repository.WalletRepository
	grants   repository.GrantRepository
	rentals  repository.RentalRepository
	products repository.ProductRepository
}

func (r registry) Wallets() repository.WalletRepository   { return r.wallets }
func (r registry) Grants() repository.GrantRepository     { return r.grants }
func (r registry) Rentals() repository.RentalRepository   { return r.rentals }
func (r registry) Products() repository.ProductRepository { return r.products }

func newRegistry(db DBTX) registry {
	return registry{
		wallets:  NewWalletRepository(db),
		grants:   NewGrantRepository(db),
		rentals:  NewRentalRepository(db),
		products: NewProductRepository(db),
	}
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                     db,
		registry:               newRegistry(db),
		NotificationRepository: NewNotificationRepository(db),
		UserRepository:         NewUserRepository(db),
	}
}

// WithinTx runs fn within a single database transaction. Serialization
// failures and deadlocks surface as domain.ErrConcurrencyConflict, which
// the caller may retry.
func (s *Store) WithinTx(ctx context.Context, fn func(r repository.Registry) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(newRegistry(tx)); err != nil {
		return mapConflict(err)
	}
	if err := tx.Commit(); err != nil {
		return mapConflict(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// mapConflict translates Postgres serialization failures (40001) and
// deadlocks (40P01) into the retryable domain error.
func mapConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == "40001" || pqErr.Code == "40P01" {
			metrics.ConflictsTotal.Inc()
			return domain.Errorf(domain.ErrConcurrencyConflict, "%v", err)
		}
	}
	return err
}

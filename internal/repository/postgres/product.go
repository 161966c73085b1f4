package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rentloop-backend/internal/domain"
	"rentloop-backend/internal/repository"
)

type productRepository struct {
	db DBTX
}

func NewProductRepository(db DBTX) repository.ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, owner_id, name, price_unit, unit_price_cents, status, created_on, updated_on`

func scanProduct(scan func(dest ...any) error) (*domain.Product, error) {
	p := &domain.Product{}
	err := scan(&p.ID, &p.OwnerID, &p.Name, &p.PriceUnit, &p.UnitPriceCents, &p.Status, &p.CreatedOn, &p.UpdatedOn)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *productRepository) Create(ctx context.Context, p *domain.Product) error {
	query := `INSERT INTO products (owner_id, name, price_unit, unit_price_cents, status, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id, created_on, updated_on`
	err := r.db.QueryRowContext(ctx, query, p.OwnerID, p.Name, p.PriceUnit, p.UnitPriceCents, p.Status).
		Scan(&p.ID, &p.CreatedOn, &p.UpdatedOn)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *productRepository) get(ctx context.Context, id int32, forUpdate bool) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Errorf(domain.ErrNotFound, "product %d not found", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *productRepository) GetByID(ctx context.Context, id int32) (*domain.Product, error) {
	return r.get(ctx, id, false)
}

func (r *productRepository) GetForUpdate(ctx context.Context, id int32) (*domain.Product, error) {
	return r.get(ctx, id, true)
}

func (r *productRepository) UpdateStatus(ctx context.Context, id int32, status domain.ProductStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE products SET status = $1, updated_on = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update product status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.Errorf(domain.ErrNotFound, "product %d not found", id)
	}
	return nil
}

func (r *productRepository) ListByOwner(ctx context.Context, ownerID int32) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE owner_id = $1 ORDER BY created_on DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

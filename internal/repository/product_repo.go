package repository

import (
	"context"
	"fmt"

	"github.com/andy/billable/internal/db"
	"github.com/andy/billable/internal/domain"
)

const productColumns = `id, sku, description, unit_price, recurrence, created_at, updated_at`

// ProductRepo is a SQLite implementation of ProductRepository
type ProductRepo struct {
	db db.DBTX
}

func NewProductRepo(q db.DBTX) *ProductRepo {
	return &ProductRepo{db: q}
}

func (r *ProductRepo) Create(ctx context.Context, product *domain.Product) error {
	if err := product.Validate(); err != nil {
		return fmt.Errorf("invalid product: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO products (sku, description, unit_price, recurrence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		product.SKU,
		product.Description,
		product.UnitPrice,
		string(product.Recurrence),
		product.CreatedAt.Format(timeLayout),
		product.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get product ID: %w", err)
	}
	product.ID = id
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	product, err := scanProduct(row)
	if err != nil {
		return nil, notFound(err, "product", id)
	}
	return product, nil
}

func (r *ProductRepo) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE sku = ?`, sku)
	product, err := scanProduct(row)
	if err != nil {
		return nil, notFound(err, "product", sku)
	}
	return product, nil
}

func (r *ProductRepo) List(ctx context.Context) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]*domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return products, nil
}

func (r *ProductRepo) Update(ctx context.Context, product *domain.Product) error {
	if err := product.Validate(); err != nil {
		return fmt.Errorf("invalid product: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE products SET sku = ?, description = ?, unit_price = ?, recurrence = ?, updated_at = ?
		WHERE id = ?
	`, product.SKU, product.Description, product.UnitPrice, string(product.Recurrence), formatTime(), product.ID)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.NotFound("product", product.ID)
	}
	return nil
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var recurrence, createdAt, updatedAt string
	if err := row.Scan(
		&product.ID,
		&product.SKU,
		&product.Description,
		&product.UnitPrice,
		&recurrence,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	product.Recurrence = domain.Recurrence(recurrence)

	var err error
	if product.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if product.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return product, nil
}

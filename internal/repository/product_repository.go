package repository

import (
	"context"
	"errors"
	"fmt"

	"products-api/internal/database"
	"products-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// price is read back as text so the fixed DECIMAL(10,2) scale survives ("9.99", not 9.99).
const productColumns = "id, name, price::text, description, created_at"

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	List(ctx context.Context) ([]*domain.Product, error)
	Create(ctx context.Context, input domain.ProductInput) (*domain.Product, error)
	Update(ctx context.Context, id int64, input domain.ProductInput) (*domain.Product, error)
	Delete(ctx context.Context, id int64) (*domain.Product, error)
}

type productRepository struct {
	db     database.Querier
	exec   *database.Executor
	logger *zap.Logger
}

// NewProductRepository creates a ProductRepository whose every query runs under exec's timeout.
func NewProductRepository(db database.Querier, exec *database.Executor, logger *zap.Logger) ProductRepository {
	return &productRepository{
		db:     db,
		exec:   exec,
		logger: logger.With(zap.String("repository", "product")),
	}
}

// List returns every product, most recent first
func (r *productRepository) List(ctx context.Context) ([]*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY created_at DESC
	`

	products, err := database.Execute(ctx, r.exec, func(ctx context.Context) ([]*domain.Product, error) {
		rows, err := r.db.Query(ctx, query)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		products := []*domain.Product{}
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
	})
	if err != nil {
		return nil, r.wrap("failed to list products", err)
	}

	return products, nil
}

// Create inserts a new product and returns the stored row
func (r *productRepository) Create(ctx context.Context, input domain.ProductInput) (*domain.Product, error) {
	query := `
		INSERT INTO products (name, price, description, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING ` + productColumns

	product, err := r.queryOne(ctx, query, input.Name, input.Price, input.Description)
	if err != nil {
		return nil, r.wrap("failed to create product", err)
	}

	return product, nil
}

// Update overwrites the mutable fields of a product and returns the updated row
func (r *productRepository) Update(ctx context.Context, id int64, input domain.ProductInput) (*domain.Product, error) {
	query := `
		UPDATE products
		SET name = $1, price = $2, description = $3
		WHERE id = $4
		RETURNING ` + productColumns

	product, err := r.queryOne(ctx, query, input.Name, input.Price, input.Description, id)
	if err != nil {
		return nil, r.wrap("failed to update product", err)
	}

	return product, nil
}

// Delete removes a product and returns its prior contents
func (r *productRepository) Delete(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		DELETE FROM products
		WHERE id = $1
		RETURNING ` + productColumns

	product, err := r.queryOne(ctx, query, id)
	if err != nil {
		return nil, r.wrap("failed to delete product", err)
	}

	return product, nil
}

func (r *productRepository) queryOne(ctx context.Context, query string, args ...any) (*domain.Product, error) {
	return database.Execute(ctx, r.exec, func(ctx context.Context) (*domain.Product, error) {
		product, err := scanProduct(r.db.QueryRow(ctx, query, args...))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return product, err
	})
}

// wrap keeps the sentinel errors matchable with errors.Is.
func (r *productRepository) wrap(msg string, err error) error {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return err
	case errors.Is(err, database.ErrTimeout):
		r.logger.Warn(msg, zap.Error(err))
	default:
		r.logger.Error(msg, zap.Error(err))
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

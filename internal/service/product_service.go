package service

import (
	"context"
	"math"

	"products-api/internal/domain"
	"products-api/internal/repository"

	"go.uber.org/zap"
)

// ProductService defines the interface for product business logic
type ProductService interface {
	List(ctx context.Context) ([]*domain.Product, error)
	Create(ctx context.Context, input domain.ProductInput) (*domain.Product, error)
	Update(ctx context.Context, id int64, input domain.ProductInput) (*domain.Product, error)
	Delete(ctx context.Context, id int64) (*domain.Product, error)
}

type productService struct {
	productRepo repository.ProductRepository
	logger      *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(productRepo repository.ProductRepository, logger *zap.Logger) ProductService {
	return &productService{
		productRepo: productRepo,
		logger:      logger.With(zap.String("service", "product")),
	}
}

func (s *productService) List(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Listed products", zap.Int("count", len(products)))
	return products, nil
}

func (s *productService) Create(ctx context.Context, input domain.ProductInput) (*domain.Product, error) {
	product, err := s.productRepo.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Product created", zap.Int64("product_id", product.ID))
	return product, nil
}

func (s *productService) Update(ctx context.Context, id int64, input domain.ProductInput) (*domain.Product, error) {
	if !storableID(id) {
		return nil, domain.ErrProductNotFound
	}

	product, err := s.productRepo.Update(ctx, id, input)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Product updated", zap.Int64("product_id", product.ID))
	return product, nil
}

func (s *productService) Delete(ctx context.Context, id int64) (*domain.Product, error) {
	if !storableID(id) {
		return nil, domain.ErrProductNotFound
	}

	product, err := s.productRepo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Product deleted", zap.Int64("product_id", product.ID))
	return product, nil
}

// storableID reports whether id fits the SERIAL column; anything else cannot exist.
func storableID(id int64) bool {
	return id > 0 && id <= math.MaxInt32
}

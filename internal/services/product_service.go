package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"invoicing-service/internal/models"
	"invoicing-service/internal/repository"
)

// ProductService owns the merchant catalog. SKUs are unique per
// merchant; the repository's unique index backs the check.
type ProductService interface {
	Create(ctx context.Context, product *models.Product) error
	Get(ctx context.Context, merchantID, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, merchantID uuid.UUID, category string, activeOnly bool, page, limit int) ([]models.Product, int64, error)
	Search(ctx context.Context, merchantID uuid.UUID, query string, limit int) ([]models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, merchantID, id uuid.UUID) error
}

type productService struct {
	repo repository.ProductRepository
	log  *logrus.Entry
}

func NewProductService(repo repository.ProductRepository) ProductService {
	return &productService{
		repo: repo,
		log:  logrus.WithField("component", "products"),
	}
}

func validateProduct(product *models.Product) error {
	product.SKU = strings.ToUpper(strings.TrimSpace(product.SKU))
	product.Name = strings.TrimSpace(product.Name)
	switch {
	case product.SKU == "":
		return models.NewValidationError("sku is required")
	case product.Name == "":
		return models.NewValidationError("name is required")
	case product.UnitPrice < 0:
		return models.NewValidationError("unitPrice cannot be negative")
	case product.TaxRate < 0 || product.TaxRate > 100:
		return models.NewValidationError("taxRate must be between 0 and 100")
	}
	return nil
}

func (s *productService) Create(ctx context.Context, product *models.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, product); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return models.NewConflictError("sku " + product.SKU + " already exists")
		}
		return err
	}
	s.log.WithFields(logrus.Fields{"merchant_id": product.MerchantID, "sku": product.SKU}).Info("product created")
	return nil
}

func (s *productService) Get(ctx context.Context, merchantID, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, models.NewNotFoundError("product")
	}
	return product, nil
}

func (s *productService) List(ctx context.Context, merchantID uuid.UUID, category string, activeOnly bool, page, limit int) ([]models.Product, int64, error) {
	return s.repo.List(ctx, merchantID, category, activeOnly, page, limit)
}

func (s *productService) Search(ctx context.Context, merchantID uuid.UUID, query string, limit int) ([]models.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Product{}, nil
	}
	return s.repo.Search(ctx, merchantID, query, limit)
}

func (s *productService) Update(ctx context.Context, product *models.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}
	existing, err := s.repo.GetByID(ctx, product.MerchantID, product.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return models.NewNotFoundError("product")
	}
	if err := s.repo.Update(ctx, product); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return models.NewConflictError("sku " + product.SKU + " already exists")
		}
		return err
	}
	return nil
}

func (s *productService) Delete(ctx context.Context, merchantID, id uuid.UUID) error {
	existing, err := s.repo.GetByID(ctx, merchantID, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return models.NewNotFoundError("product")
	}
	return s.repo.Delete(ctx, merchantID, id)
}

package service

import (
	"context"
	"errors"
	"fmt"

	"bakery-service/internal/models"
	"bakery-service/internal/store"
	"bakery-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidCategory = errors.New("unknown product category")
	ErrInvalidPrice    = errors.New("product price must be positive")
)

// CatalogService manages the product catalog
type CatalogService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *store.Store) *CatalogService {
	return &CatalogService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// ProductRequest carries admin-submitted product fields
type ProductRequest struct {
	Name        string           `json:"name" binding:"required"`
	Description string           `json:"description"`
	Price       decimal.Decimal  `json:"price" binding:"required"`
	OldPrice    *decimal.Decimal `json:"old_price,omitempty"`
	Category    string           `json:"category" binding:"required"`
	Image       string           `json:"image"`
	Active      bool             `json:"active"`
}

// Menu returns the active catalog customers can order from
func (c *CatalogService) Menu(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Menu")
	defer span.End()
	return c.store.GetProducts(ctx, true)
}

// ListAll returns every product, including deactivated ones (admin view)
func (c *CatalogService) ListAll(ctx context.Context) ([]models.Product, error) {
	return c.store.GetProducts(ctx, false)
}

// Create adds a product to the catalog
func (c *CatalogService) Create(ctx context.Context, req *ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Create")
	defer span.End()

	product, err := req.toProduct()
	if err != nil {
		return nil, err
	}
	product.ID = uuid.New().String()

	if err := c.store.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	c.logger.Info("Product created",
		zap.String("product_id", product.ID),
		zap.String("name", product.Name))
	return product, nil
}

// Update replaces a product's mutable fields
func (c *CatalogService) Update(ctx context.Context, id string, req *ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Update")
	defer span.End()

	product, err := req.toProduct()
	if err != nil {
		return nil, err
	}
	product.ID = id

	if err := c.store.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}

	c.logger.Info("Product updated", zap.String("product_id", id))
	return product, nil
}

// Deactivate hides a product from the menu without losing order history
func (c *CatalogService) Deactivate(ctx context.Context, id string) error {
	if err := c.store.SetProductActive(ctx, id, false); err != nil {
		return err
	}
	c.logger.Info("Product deactivated", zap.String("product_id", id))
	return nil
}

func (r *ProductRequest) toProduct() (*models.Product, error) {
	if !models.ValidCategory(r.Category) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCategory, r.Category)
	}
	if !r.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	product := &models.Product{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Category:    r.Category,
		Image:       r.Image,
		Active:      r.Active,
	}
	if r.OldPrice != nil {
		product.OldPrice.Valid = true
		product.OldPrice.Decimal = *r.OldPrice
	}
	return product, nil
}

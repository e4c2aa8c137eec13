package service

import (
	"context"
	"fmt"

	"bakery-service/internal/models"
	"bakery-service/internal/redisclient"
	"bakery-service/internal/store"
	"bakery-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CustomerService manages customer profiles. Balance mutations live in the
// ledger; this service only reads the balance and seeds the mirror.
type CustomerService struct {
	store  *store.Store
	cache  *redisclient.Client
	logger *zap.Logger
}

// NewCustomerService creates a new customer service
func NewCustomerService(store *store.Store, cache *redisclient.Client) *CustomerService {
	return &CustomerService{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// RegisterRequest carries the fields for a new customer record
type RegisterRequest struct {
	Name    string         `json:"name" binding:"required"`
	Email   string         `json:"email" binding:"required,email"`
	Phone   string         `json:"phone"`
	Address models.Address `json:"address"`
}

// Register creates a customer with a zero cashback balance
func (s *CustomerService) Register(ctx context.Context, req *RegisterRequest) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.Register")
	defer span.End()

	customer := &models.Customer{
		ID:              uuid.New().String(),
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Address:         req.Address,
		CashbackBalance: decimal.Zero,
	}

	if err := s.store.CreateCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	if err := s.cache.InitBalance(ctx, customer.ID, decimal.Zero); err != nil {
		s.logger.Warn("Failed to seed balance mirror",
			zap.String("customer_id", customer.ID), zap.Error(err))
	}

	s.logger.Info("Customer registered", zap.String("customer_id", customer.ID))
	return customer, nil
}

// Get retrieves a customer and refreshes the balance mirror
func (s *CustomerService) Get(ctx context.Context, id string) (*models.Customer, error) {
	customer, err := s.store.GetCustomerByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.InitBalance(ctx, customer.ID, customer.CashbackBalance); err != nil {
		s.logger.Warn("Failed to refresh balance mirror",
			zap.String("customer_id", customer.ID), zap.Error(err))
	}

	return customer, nil
}

// List retrieves all customers (admin view)
func (s *CustomerService) List(ctx context.Context) ([]models.Customer, error) {
	return s.store.GetCustomers(ctx)
}

// UpdateProfile updates name, contact and address fields
func (s *CustomerService) UpdateProfile(ctx context.Context, customer *models.Customer) error {
	ctx, span := util.StartSpan(ctx, "CustomerService.UpdateProfile")
	defer span.End()

	if err := s.store.UpdateCustomerProfile(ctx, customer); err != nil {
		return err
	}

	s.logger.Info("Customer profile updated", zap.String("customer_id", customer.ID))
	return nil
}

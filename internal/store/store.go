package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bakery-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

const customerColumns = `
	id, name, email, phone, cashback_balance, created_at,
	zip_code AS "address.zip_code",
	street AS "address.street",
	number AS "address.number",
	complement AS "address.complement",
	neighborhood AS "address.neighborhood",
	city AS "address.city",
	state AS "address.state"`

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts retrieves products, optionally only active ones
func (s *Store) GetProducts(ctx context.Context, activeOnly bool) ([]models.Product, error) {
	var products []models.Product
	query := "SELECT * FROM products ORDER BY category, name"
	if activeOnly {
		query = "SELECT * FROM products WHERE active ORDER BY category, name"
	}
	err := s.db.SelectContext(ctx, &products, query)
	return products, err
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// CreateProduct inserts a new product
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (id, name, description, price, old_price, category, image, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	return s.db.GetContext(ctx, &p.CreatedAt, query,
		p.ID, p.Name, p.Description, p.Price, p.OldPrice, p.Category, p.Image, p.Active)
}

// UpdateProduct updates a product's mutable fields
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, price = $3, old_price = $4,
		    category = $5, image = $6, active = $7
		WHERE id = $8`,
		p.Name, p.Description, p.Price, p.OldPrice, p.Category, p.Image, p.Active, p.ID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("product not found: %s", p.ID)
	}
	return nil
}

// SetProductActive toggles a product's availability
func (s *Store) SetProductActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET active = $1 WHERE id = $2", active, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("product not found: %s", id)
	}
	return nil
}

// GetCustomerByID retrieves a customer by ID
func (s *Store) GetCustomerByID(ctx context.Context, id string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer,
		"SELECT "+customerColumns+" FROM customers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("customer not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetCustomers retrieves all customers
func (s *Store) GetCustomers(ctx context.Context) ([]models.Customer, error) {
	var customers []models.Customer
	err := s.db.SelectContext(ctx, &customers,
		"SELECT "+customerColumns+" FROM customers ORDER BY name")
	return customers, err
}

// CreateCustomer inserts a new customer
func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (id, name, email, phone, cashback_balance,
			zip_code, street, number, complement, neighborhood, city, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at`

	return s.db.GetContext(ctx, &c.CreatedAt, query,
		c.ID, c.Name, c.Email, c.Phone, c.CashbackBalance,
		c.Address.ZipCode, c.Address.Street, c.Address.Number, c.Address.Complement,
		c.Address.Neighborhood, c.Address.City, c.Address.State)
}

// UpdateCustomerProfile updates profile and address fields (not the balance)
func (s *Store) UpdateCustomerProfile(ctx context.Context, c *models.Customer) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $1, email = $2, phone = $3,
		    zip_code = $4, street = $5, number = $6, complement = $7,
		    neighborhood = $8, city = $9, state = $10
		WHERE id = $11`,
		c.Name, c.Email, c.Phone,
		c.Address.ZipCode, c.Address.Street, c.Address.Number, c.Address.Complement,
		c.Address.Neighborhood, c.Address.City, c.Address.State, c.ID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("customer not found: %s", c.ID)
	}
	return nil
}

// DebitCashback atomically subtracts amount from a customer's balance,
// clamped at zero, and returns the resulting balance.
func (s *Store) DebitCashback(ctx context.Context, customerID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.GetContext(ctx, &balance, `
		UPDATE customers
		SET cashback_balance = GREATEST(0, cashback_balance - $1)
		WHERE id = $2
		RETURNING cashback_balance`,
		amount, customerID)
	if err == sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("customer not found: %s", customerID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to debit cashback: %w", err)
	}
	return balance, nil
}

// CreditCashback atomically adds amount to a customer's balance and returns
// the resulting balance.
func (s *Store) CreditCashback(ctx context.Context, customerID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.GetContext(ctx, &balance, `
		UPDATE customers
		SET cashback_balance = cashback_balance + $1
		WHERE id = $2
		RETURNING cashback_balance`,
		amount, customerID)
	if err == sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("customer not found: %s", customerID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to credit cashback: %w", err)
	}
	return balance, nil
}

// GetSettings retrieves the single settings row
func (s *Store) GetSettings(ctx context.Context) (*models.AppSettings, error) {
	var settings models.AppSettings
	err := s.db.GetContext(ctx, &settings,
		"SELECT delivery_fee, min_order_value, cashback_percentage, updated_at FROM app_settings LIMIT 1")
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("settings not initialized")
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// EnsureSettings inserts the default settings row if none exists
func (s *Store) EnsureSettings(ctx context.Context, defaults *models.AppSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_settings (singleton, delivery_fee, min_order_value, cashback_percentage)
		VALUES (TRUE, $1, $2, $3)
		ON CONFLICT (singleton) DO NOTHING`,
		defaults.DeliveryFee, defaults.MinOrderValue, defaults.CashbackPercentage)
	return err
}

// UpdateSettings overwrites the settings row
func (s *Store) UpdateSettings(ctx context.Context, settings *models.AppSettings) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE app_settings
		SET delivery_fee = $1, min_order_value = $2, cashback_percentage = $3, updated_at = NOW()`,
		settings.DeliveryFee, settings.MinOrderValue, settings.CashbackPercentage)
	return err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

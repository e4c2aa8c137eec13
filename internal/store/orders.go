package store

import (
	"context"
	"database/sql"
	"fmt"

	"bakery-service/internal/models"

	"github.com/shopspring/decimal"
)

const orderColumns = `
	id, COALESCE(customer_id, '') AS customer_id, customer_name, customer_phone,
	subtotal, delivery_fee, cashback_discount, total, cashback_earned,
	payment_method, payment_detail, fulfillment, status, delivery_code,
	rating, rating_comment, rating_skipped, manual, created_at, updated_at,
	zip_code AS "address.zip_code",
	street AS "address.street",
	number AS "address.number",
	complement AS "address.complement",
	neighborhood AS "address.neighborhood",
	city AS "address.city",
	state AS "address.state"`

// CreateOrder inserts an order and its line items in one transaction
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (id, customer_id, customer_name, customer_phone,
			zip_code, street, number, complement, neighborhood, city, state,
			subtotal, delivery_fee, cashback_discount, total, cashback_earned,
			payment_method, payment_detail, fulfillment, status, delivery_code, manual)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING created_at, updated_at`

	var customerID interface{}
	if order.CustomerID != "" {
		customerID = order.CustomerID
	}

	row := tx.QueryRowxContext(ctx, query,
		order.ID, customerID, order.CustomerName, order.CustomerPhone,
		order.Address.ZipCode, order.Address.Street, order.Address.Number, order.Address.Complement,
		order.Address.Neighborhood, order.Address.City, order.Address.State,
		order.Subtotal, order.DeliveryFee, order.CashbackDiscount, order.Total, order.CashbackEarned,
		order.PaymentMethod, order.PaymentDetail, order.Fulfillment, order.Status,
		order.DeliveryCode, order.Manual)
	if err := row.Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		err := tx.GetContext(ctx, &items[i].ID, `
			INSERT INTO order_items (order_id, product_id, name, unit_price, quantity, observation)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			items[i].OrderID, items[i].ProductID, items[i].Name,
			items[i].UnitPrice, items[i].Quantity, items[i].Observation)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByCustomerID retrieves a customer's order history, newest first
func (s *Store) GetOrdersByCustomerID(ctx context.Context, customerID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE customer_id = $1 ORDER BY created_at DESC",
		customerID)
	return orders, err
}

// GetOrdersByStatus retrieves orders in a given status, newest first
func (s *Store) GetOrdersByStatus(ctx context.Context, status string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE status = $1 ORDER BY created_at DESC",
		status)
	return orders, err
}

// GetOpenOrders retrieves all orders still in the pipeline, oldest first
func (s *Store) GetOpenOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+` FROM orders
		 WHERE status NOT IN ($1, $2) ORDER BY created_at`,
		models.OrderStatusCompleted, models.OrderStatusCancelled)
	return orders, err
}

// TransitionOrderStatus moves an order from one status to another only if it
// is still in the expected prior status. Returns false when the guard fails,
// meaning the order moved concurrently or was never in that status.
func (s *Store) TransitionOrderStatus(ctx context.Context, orderID, from, to string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		to, orderID, from)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// CompleteOrderWithCredit flips delivery -> completed and credits the earned
// cashback in one transaction. Either both writes commit or neither does, so
// a failed credit cannot strand a completed order with its cashback lost.
// Returns false when the status guard fails.
func (s *Store) CompleteOrderWithCredit(ctx context.Context, orderID, customerID string, credit decimal.Decimal) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		models.OrderStatusCompleted, orderID, models.OrderStatusDelivery)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	if customerID != "" && credit.IsPositive() {
		res, err := tx.ExecContext(ctx,
			"UPDATE customers SET cashback_balance = cashback_balance + $1 WHERE id = $2",
			credit, customerID)
		if err != nil {
			return false, fmt.Errorf("failed to credit cashback: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if rows == 0 {
			return false, fmt.Errorf("customer not found: %s", customerID)
		}
	}

	return true, tx.Commit()
}

// CancelOrderWithRestore flips a non-terminal order to cancelled and restores
// the redeemed cashback in one transaction. Returns false when the status
// guard fails, meaning the order moved concurrently.
func (s *Store) CancelOrderWithRestore(ctx context.Context, orderID, from, customerID string, restore decimal.Decimal) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		models.OrderStatusCancelled, orderID, from)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	if customerID != "" && restore.IsPositive() {
		res, err := tx.ExecContext(ctx,
			"UPDATE customers SET cashback_balance = cashback_balance + $1 WHERE id = $2",
			restore, customerID)
		if err != nil {
			return false, fmt.Errorf("failed to restore cashback: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if rows == 0 {
			return false, fmt.Errorf("customer not found: %s", customerID)
		}
	}

	return true, tx.Commit()
}

// SetOrderRating records a rating exactly once, and only on completed orders
func (s *Store) SetOrderRating(ctx context.Context, orderID string, rating int, comment string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET rating = $1, rating_comment = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4 AND rating IS NULL AND NOT rating_skipped`,
		rating, comment, orderID, models.OrderStatusCompleted)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// SkipOrderRating marks the rating prompt as dismissed, exactly once
func (s *Store) SkipOrderRating(ctx context.Context, orderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET rating_skipped = TRUE, updated_at = NOW()
		WHERE id = $1 AND status = $2 AND rating IS NULL AND NOT rating_skipped`,
		orderID, models.OrderStatusCompleted)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// CreateMessage appends a message to a customer's support thread
func (s *Store) CreateMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, customer_id, sender_name, text, is_admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	return s.db.GetContext(ctx, &msg.CreatedAt, query,
		msg.ID, msg.CustomerID, msg.SenderName, msg.Text, msg.IsAdmin)
}

// GetMessagesByCustomerID retrieves a customer's thread in order
func (s *Store) GetMessagesByCustomerID(ctx context.Context, customerID string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.SelectContext(ctx, &messages,
		"SELECT * FROM messages WHERE customer_id = $1 ORDER BY created_at", customerID)
	return messages, err
}

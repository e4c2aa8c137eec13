package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents an item on the bakery menu
type Product struct {
	ID          string              `db:"id" json:"id"`
	Name        string              `db:"name" json:"name"`
	Description string              `db:"description" json:"description"`
	Price       decimal.Decimal     `db:"price" json:"price"`
	OldPrice    decimal.NullDecimal `db:"old_price" json:"old_price,omitempty"`
	Category    string              `db:"category" json:"category"`
	Image       string              `db:"image" json:"image"`
	Active      bool                `db:"active" json:"active"`
	CreatedAt   time.Time           `db:"created_at" json:"created_at"`
}

// Product categories
const (
	CategoryBakery        = "bakery"
	CategoryConfectionery = "confectionery"
	CategorySnacks        = "snacks"
	CategoryPromotions    = "promotions"
	CategoryDrinks        = "drinks"
	CategoryGrocery       = "grocery"
)

// ValidCategory reports whether c is a known product category
func ValidCategory(c string) bool {
	switch c {
	case CategoryBakery, CategoryConfectionery, CategorySnacks,
		CategoryPromotions, CategoryDrinks, CategoryGrocery:
		return true
	}
	return false
}

// Address is a delivery address, snapshotted onto orders at checkout
type Address struct {
	ZipCode      string `db:"zip_code" json:"zip_code"`
	Street       string `db:"street" json:"street"`
	Number       string `db:"number" json:"number"`
	Complement   string `db:"complement" json:"complement,omitempty"`
	Neighborhood string `db:"neighborhood" json:"neighborhood"`
	City         string `db:"city" json:"city"`
	State        string `db:"state" json:"state"`
}

// Complete reports whether the address carries the fields delivery requires
func (a Address) Complete() bool {
	return a.Street != "" && a.Number != "" && a.City != "" && a.ZipCode != ""
}

// Customer represents a registered customer and their cashback balance
type Customer struct {
	ID              string          `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	Email           string          `db:"email" json:"email"`
	Phone           string          `db:"phone" json:"phone"`
	Address         Address         `db:"address" json:"address"`
	CashbackBalance decimal.Decimal `db:"cashback_balance" json:"cashback_balance"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// Order represents a customer order and its cashback accounting
type Order struct {
	ID               string          `db:"id" json:"id"`
	CustomerID       string          `db:"customer_id" json:"customer_id,omitempty"`
	CustomerName     string          `db:"customer_name" json:"customer_name"`
	CustomerPhone    string          `db:"customer_phone" json:"customer_phone"`
	Address          Address         `db:"address" json:"address"`
	Subtotal         decimal.Decimal `db:"subtotal" json:"subtotal"`
	DeliveryFee      decimal.Decimal `db:"delivery_fee" json:"delivery_fee"`
	CashbackDiscount decimal.Decimal `db:"cashback_discount" json:"cashback_discount"`
	Total            decimal.Decimal `db:"total" json:"total"`
	CashbackEarned   decimal.Decimal `db:"cashback_earned" json:"cashback_earned"`
	PaymentMethod    string          `db:"payment_method" json:"payment_method"`
	PaymentDetail    string          `db:"payment_detail" json:"payment_detail,omitempty"`
	Fulfillment      string          `db:"fulfillment" json:"fulfillment"`
	Status           string          `db:"status" json:"status"`
	DeliveryCode     string          `db:"delivery_code" json:"-"`
	Rating           *int            `db:"rating" json:"rating,omitempty"`
	RatingComment    string          `db:"rating_comment" json:"rating_comment,omitempty"`
	RatingSkipped    bool            `db:"rating_skipped" json:"rating_skipped"`
	Manual           bool            `db:"manual" json:"manual"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem is a line item snapshot, independent of later product edits
type OrderItem struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     string          `db:"order_id" json:"order_id"`
	ProductID   string          `db:"product_id" json:"product_id"`
	Name        string          `db:"name" json:"name"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Observation string          `db:"observation" json:"observation,omitempty"`
}

// Message is one entry in a customer's support thread
type Message struct {
	ID         string    `db:"id" json:"id"`
	CustomerID string    `db:"customer_id" json:"customer_id"`
	SenderName string    `db:"sender_name" json:"sender_name"`
	Text       string    `db:"text" json:"text"`
	IsAdmin    bool      `db:"is_admin" json:"is_admin"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AppSettings holds the admin-mutable pricing configuration (single row)
type AppSettings struct {
	DeliveryFee        decimal.Decimal `db:"delivery_fee" json:"delivery_fee"`
	MinOrderValue      decimal.Decimal `db:"min_order_value" json:"min_order_value"`
	CashbackPercentage decimal.Decimal `db:"cashback_percentage" json:"cashback_percentage"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// Order statuses
const (
	OrderStatusReceived  = "received"
	OrderStatusPreparing = "preparing"
	OrderStatusDelivery  = "delivery"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// NextStatus returns the pipeline successor of a status, or "" for terminal
// states. Cancellation is not part of the pipeline and is handled separately.
func NextStatus(status string) string {
	switch status {
	case OrderStatusReceived:
		return OrderStatusPreparing
	case OrderStatusPreparing:
		return OrderStatusDelivery
	case OrderStatusDelivery:
		return OrderStatusCompleted
	}
	return ""
}

// TerminalStatus reports whether a status admits no further transitions
func TerminalStatus(status string) bool {
	return status == OrderStatusCompleted || status == OrderStatusCancelled
}

// Payment methods
const (
	PaymentMethodPix   = "pix"
	PaymentMethodMoney = "money"
	PaymentMethodCard  = "card"
)

// Card types accepted on delivery
const (
	CardTypeDebit  = "debito"
	CardTypeCredit = "credito"
	CardTypeFood   = "alimentacao"
	CardTypeMeal   = "refeicao"
)

// ValidCardType reports whether t is an accepted card type
func ValidCardType(t string) bool {
	switch t {
	case CardTypeDebit, CardTypeCredit, CardTypeFood, CardTypeMeal:
		return true
	}
	return false
}

// Fulfillment modes
const (
	FulfillmentDelivery = "delivery"
	FulfillmentPickup   = "pickup"
)

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"bakery-service/internal/models"
	"bakery-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger errors that HTTP handlers branch on.
var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrUnknownProduct       = errors.New("unknown or inactive product")
	ErrInvalidQuantity      = errors.New("item quantity must be at least 1")
	ErrIncompleteAddress    = errors.New("delivery address is incomplete")
	ErrBelowMinimum         = errors.New("order subtotal is below the minimum order value")
	ErrMissingCardType      = errors.New("card payment requires a card type")
	ErrInsufficientCash     = errors.New("cash given is less than the order total")
	ErrVerificationMismatch = errors.New("delivery verification code does not match")
	ErrVerificationRequired = errors.New("completion requires the delivery verification code")
	ErrInvalidTransition    = errors.New("order status does not allow this transition")
	ErrOrderConflict        = errors.New("order was modified concurrently, retry")
	ErrCustomerBusy         = errors.New("another operation for this customer is in progress, retry")
	ErrRatingAlreadySet     = errors.New("order has already been rated or the prompt was dismissed")
	ErrInvalidRating        = errors.New("rating must be between 1 and 5")
	ErrInvalidSettings      = errors.New("settings values are out of range")
)

// LedgerStore is the persistence contract the ledger needs. *store.Store
// satisfies it; tests inject an in-memory fake.
type LedgerStore interface {
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	GetCustomerByID(ctx context.Context, id string) (*models.Customer, error)
	DebitCashback(ctx context.Context, customerID string, amount decimal.Decimal) (decimal.Decimal, error)
	CreditCashback(ctx context.Context, customerID string, amount decimal.Decimal) (decimal.Decimal, error)
	GetSettings(ctx context.Context) (*models.AppSettings, error)
	UpdateSettings(ctx context.Context, settings *models.AppSettings) error
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error)
	GetOrdersByCustomerID(ctx context.Context, customerID string) ([]models.Order, error)
	GetOrdersByStatus(ctx context.Context, status string) ([]models.Order, error)
	GetOpenOrders(ctx context.Context) ([]models.Order, error)
	TransitionOrderStatus(ctx context.Context, orderID, from, to string) (bool, error)
	CompleteOrderWithCredit(ctx context.Context, orderID, customerID string, credit decimal.Decimal) (bool, error)
	CancelOrderWithRestore(ctx context.Context, orderID, from, customerID string, restore decimal.Decimal) (bool, error)
	SetOrderRating(ctx context.Context, orderID string, rating int, comment string) (bool, error)
	SkipOrderRating(ctx context.Context, orderID string) (bool, error)
}

// BalanceCache serializes balance mutations per customer and keeps the
// advisory balance mirror. *redisclient.Client satisfies it.
type BalanceCache interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
	DebitBalanceMirror(ctx context.Context, customerID string, amount decimal.Decimal) error
	CreditBalanceMirror(ctx context.Context, customerID string, amount decimal.Decimal) error
}

// LedgerPublisher publishes order lifecycle events.
// *broker.EventPublisher satisfies it.
type LedgerPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

const customerLockTTL = 10 * time.Second

// LedgerService owns the order lifecycle and the cashback balance invariant
type LedgerService struct {
	store     LedgerStore
	cache     BalanceCache
	publisher LedgerPublisher
	logger    *zap.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(store LedgerStore, cache BalanceCache, publisher LedgerPublisher) *LedgerService {
	return &LedgerService{
		store:     store,
		cache:     cache,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CartItemRequest is one cart line submitted at checkout
type CartItemRequest struct {
	ProductID   string `json:"product_id" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
	Observation string `json:"observation,omitempty"`
}

// PlaceOrderRequest is a customer checkout submission
type PlaceOrderRequest struct {
	CustomerID    string            `json:"customer_id" binding:"required"`
	Items         []CartItemRequest `json:"items" binding:"required,min=1"`
	PaymentMethod string            `json:"payment_method" binding:"required,oneof=pix money card"`
	CardType      string            `json:"card_type,omitempty"`
	CashGiven     decimal.Decimal   `json:"cash_given,omitempty"`
	Fulfillment   string            `json:"fulfillment" binding:"required,oneof=delivery pickup"`
	UseCashback   bool              `json:"use_cashback"`
}

// ManualOrderRequest is an admin-created walk-in order. Cashback is neither
// earned nor spent on this path.
type ManualOrderRequest struct {
	CustomerName  string            `json:"customer_name" binding:"required"`
	CustomerPhone string            `json:"customer_phone"`
	Address       models.Address    `json:"address"`
	Items         []CartItemRequest `json:"items" binding:"required,min=1"`
	PaymentMethod string            `json:"payment_method" binding:"required,oneof=pix money card"`
	PaymentDetail string            `json:"payment_detail,omitempty"`
	Fulfillment   string            `json:"fulfillment" binding:"required,oneof=delivery pickup"`
}

// Quote is the checkout price breakdown, computed once at order creation
type Quote struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	DeliveryFee      decimal.Decimal `json:"delivery_fee"`
	CashbackDiscount decimal.Decimal `json:"cashback_discount"`
	Total            decimal.Decimal `json:"total"`
	CashbackEarned   decimal.Decimal `json:"cashback_earned"`
}

// ComputeQuote applies the canonical checkout computation. Earning and
// redemption are mutually exclusive: an order that spends cashback earns none.
func ComputeQuote(items []models.OrderItem, settings *models.AppSettings, balance decimal.Decimal, fulfillment string, useCashback bool) Quote {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	deliveryFee := decimal.Zero
	if fulfillment == models.FulfillmentDelivery {
		deliveryFee = settings.DeliveryFee
	}

	gross := subtotal.Add(deliveryFee)

	discount := decimal.Zero
	if useCashback {
		discount = decimal.Min(balance, gross)
		if discount.IsNegative() {
			discount = decimal.Zero
		}
	}

	earned := decimal.Zero
	if !useCashback {
		earned = subtotal.Mul(settings.CashbackPercentage).Round(2)
	}

	return Quote{
		Subtotal:         subtotal,
		DeliveryFee:      deliveryFee,
		CashbackDiscount: discount,
		Total:            decimal.Max(decimal.Zero, gross.Sub(discount)),
		CashbackEarned:   earned,
	}
}

// newDeliveryCode returns a 4-digit verification code (1000-9999)
func newDeliveryCode() string {
	return fmt.Sprintf("%d", 1000+rand.Intn(9000))
}

// snapshotItems resolves cart lines against the live catalog and freezes
// name and price onto order items.
func (s *LedgerService) snapshotItems(ctx context.Context, items []CartItemRequest) ([]models.OrderItem, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]string, len(items))
	for i, item := range items {
		if item.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		ids[i] = item.ProductID
	}

	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	byID := make(map[string]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	snapshot := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok || !product.Active {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, item.ProductID)
		}
		snapshot = append(snapshot, models.OrderItem{
			ProductID:   product.ID,
			Name:        product.Name,
			UnitPrice:   product.Price,
			Quantity:    item.Quantity,
			Observation: item.Observation,
		})
	}

	return snapshot, nil
}

// validatePayment rejects orders whose payment detail cannot settle the
// total. A total fully covered by cashback needs no payment detail.
func validatePayment(method, cardType string, cashGiven, total decimal.Decimal) (string, error) {
	if !total.IsPositive() {
		return "", nil
	}
	switch method {
	case models.PaymentMethodCard:
		if !models.ValidCardType(cardType) {
			return "", ErrMissingCardType
		}
		return cardType, nil
	case models.PaymentMethodMoney:
		if cashGiven.LessThan(total) {
			return "", ErrInsufficientCash
		}
		return fmt.Sprintf("troco para %s", cashGiven.StringFixed(2)), nil
	}
	return "", nil
}

// QuoteCheckout prices a cart without creating an order
func (s *LedgerService) QuoteCheckout(ctx context.Context, req *PlaceOrderRequest) (*Quote, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.QuoteCheckout")
	defer span.End()

	items, err := s.snapshotItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	customer, err := s.store.GetCustomerByID(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	quote := ComputeQuote(items, settings, customer.CashbackBalance, req.Fulfillment, req.UseCashback)
	return &quote, nil
}

// PlaceOrder runs checkout: validates the cart, debits redeemed cashback
// exactly once, and creates the order in `received`. Earned cashback is
// stored on the order but only credited when delivery is verified.
func (s *LedgerService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.PlaceOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	items, err := s.snapshotItems(ctx, req.Items)
	if err != nil {
		util.OrdersRejectedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	// The balance read and the debit below must not interleave with another
	// operation on the same customer, so the lock comes first: a balance read
	// from before the lock could price a discount out of funds a concurrent
	// checkout already spent.
	locked, err := s.cache.AcquireLock(ctx, "customer:"+req.CustomerID, customerLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire customer lock: %w", err)
	}
	if !locked {
		return nil, ErrCustomerBusy
	}
	defer func() {
		if err := s.cache.ReleaseLock(context.Background(), "customer:"+req.CustomerID); err != nil {
			s.logger.Warn("Failed to release customer lock",
				zap.String("customer_id", req.CustomerID), zap.Error(err))
		}
	}()

	customer, err := s.store.GetCustomerByID(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	if req.Fulfillment == models.FulfillmentDelivery && !customer.Address.Complete() {
		util.OrdersRejectedTotal.WithLabelValues("incomplete_address").Inc()
		return nil, ErrIncompleteAddress
	}

	quote := ComputeQuote(items, settings, customer.CashbackBalance, req.Fulfillment, req.UseCashback)

	if quote.Subtotal.LessThan(settings.MinOrderValue) {
		util.OrdersRejectedTotal.WithLabelValues("below_minimum").Inc()
		return nil, fmt.Errorf("%w: minimum is %s", ErrBelowMinimum, settings.MinOrderValue.StringFixed(2))
	}

	paymentDetail, err := validatePayment(req.PaymentMethod, req.CardType, req.CashGiven, quote.Total)
	if err != nil {
		util.OrdersRejectedTotal.WithLabelValues("payment_detail").Inc()
		return nil, err
	}

	if quote.CashbackDiscount.IsPositive() {
		if _, err := s.store.DebitCashback(ctx, customer.ID, quote.CashbackDiscount); err != nil {
			return nil, err
		}
		util.CashbackDebitedTotal.Inc()
		if err := s.cache.DebitBalanceMirror(ctx, customer.ID, quote.CashbackDiscount); err != nil {
			s.logger.Warn("Failed to update balance mirror",
				zap.String("customer_id", customer.ID), zap.Error(err))
		}
	}

	order := &models.Order{
		ID:               uuid.New().String(),
		CustomerID:       customer.ID,
		CustomerName:     customer.Name,
		CustomerPhone:    customer.Phone,
		Address:          customer.Address,
		Subtotal:         quote.Subtotal,
		DeliveryFee:      quote.DeliveryFee,
		CashbackDiscount: quote.CashbackDiscount,
		Total:            quote.Total,
		CashbackEarned:   quote.CashbackEarned,
		PaymentMethod:    req.PaymentMethod,
		PaymentDetail:    paymentDetail,
		Fulfillment:      req.Fulfillment,
		Status:           models.OrderStatusReceived,
		DeliveryCode:     newDeliveryCode(),
	}

	if err := s.store.CreateOrder(ctx, order, items); err != nil {
		// The debit committed but the order did not: restore the balance
		// instead of leaving the customer short.
		if quote.CashbackDiscount.IsPositive() {
			if _, cerr := s.store.CreditCashback(ctx, customer.ID, quote.CashbackDiscount); cerr != nil {
				s.logger.Error("Failed to restore cashback after failed checkout",
					zap.String("customer_id", customer.ID), zap.Error(cerr))
			} else if merr := s.cache.CreditBalanceMirror(ctx, customer.ID, quote.CashbackDiscount); merr != nil {
				s.logger.Warn("Failed to update balance mirror", zap.Error(merr))
			}
		}
		util.OrdersRejectedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersPlacedTotal.WithLabelValues(order.Fulfillment).Inc()
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("customer_id", customer.ID),
		zap.String("total", order.Total.StringFixed(2)))

	event := &models.OrderPlacedEvent{
		BaseEvent:        newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:          order.ID,
		CustomerID:       order.CustomerID,
		Total:            order.Total,
		CashbackDiscount: order.CashbackDiscount,
		CashbackEarned:   order.CashbackEarned,
		Fulfillment:      order.Fulfillment,
	}
	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}

	return order, nil
}

// CreateManualOrder creates a walk-in order from the admin counter. There is
// no customer session, so the balance is untouched and nothing is earned.
func (s *LedgerService) CreateManualOrder(ctx context.Context, req *ManualOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.CreateManualOrder")
	defer span.End()

	items, err := s.snapshotItems(ctx, req.Items)
	if err != nil {
		util.OrdersRejectedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if req.Fulfillment == models.FulfillmentDelivery && !req.Address.Complete() {
		util.OrdersRejectedTotal.WithLabelValues("incomplete_address").Inc()
		return nil, ErrIncompleteAddress
	}

	quote := ComputeQuote(items, settings, decimal.Zero, req.Fulfillment, false)
	quote.CashbackEarned = decimal.Zero

	order := &models.Order{
		ID:               uuid.New().String(),
		CustomerName:     req.CustomerName,
		CustomerPhone:    req.CustomerPhone,
		Address:          req.Address,
		Subtotal:         quote.Subtotal,
		DeliveryFee:      quote.DeliveryFee,
		CashbackDiscount: decimal.Zero,
		Total:            quote.Total,
		CashbackEarned:   decimal.Zero,
		PaymentMethod:    req.PaymentMethod,
		PaymentDetail:    req.PaymentDetail,
		Fulfillment:      req.Fulfillment,
		Status:           models.OrderStatusReceived,
		DeliveryCode:     newDeliveryCode(),
		Manual:           true,
	}

	if err := s.store.CreateOrder(ctx, order, items); err != nil {
		util.OrdersRejectedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersPlacedTotal.WithLabelValues(order.Fulfillment).Inc()
	s.logger.Info("Manual order created", zap.String("order_id", order.ID))

	event := &models.OrderPlacedEvent{
		BaseEvent:        newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:          order.ID,
		Total:            order.Total,
		CashbackDiscount: decimal.Zero,
		CashbackEarned:   decimal.Zero,
		Fulfillment:      order.Fulfillment,
		Manual:           true,
	}
	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}

	return order, nil
}

// AdvanceOrder moves an order one step along the pipeline
// (received -> preparing -> delivery). The final step requires the delivery
// verification code and must go through CompleteDelivery.
func (s *LedgerService) AdvanceOrder(ctx context.Context, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.AdvanceOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	next := models.NextStatus(order.Status)
	if next == "" {
		return nil, ErrInvalidTransition
	}
	if next == models.OrderStatusCompleted {
		return nil, ErrVerificationRequired
	}

	ok, err := s.store.TransitionOrderStatus(ctx, order.ID, order.Status, next)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	if !ok {
		return nil, ErrOrderConflict
	}

	s.logger.Info("Order advanced",
		zap.String("order_id", order.ID),
		zap.String("from", order.Status),
		zap.String("to", next))

	event := &models.OrderStatusChangedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		From:       order.Status,
		To:         next,
	}
	if err := s.publisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}

	order.Status = next
	return order, nil
}

// CompleteDelivery verifies the hand-off code and finishes the order,
// crediting the cashback earned at checkout. A wrong code changes nothing
// and the operator may retry.
func (s *LedgerService) CompleteDelivery(ctx context.Context, orderID, code string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.CompleteDelivery")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status != models.OrderStatusDelivery {
		return nil, ErrInvalidTransition
	}

	if code != order.DeliveryCode {
		util.VerificationFailuresTotal.Inc()
		s.logger.Warn("Delivery code mismatch", zap.String("order_id", order.ID))
		return nil, ErrVerificationMismatch
	}

	if order.CustomerID != "" {
		locked, err := s.cache.AcquireLock(ctx, "customer:"+order.CustomerID, customerLockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire customer lock: %w", err)
		}
		if !locked {
			return nil, ErrCustomerBusy
		}
		defer func() {
			if err := s.cache.ReleaseLock(context.Background(), "customer:"+order.CustomerID); err != nil {
				s.logger.Warn("Failed to release customer lock", zap.Error(err))
			}
		}()
	}

	// The status flip and the credit run in one transaction: the guard makes
	// a duplicate completion lose the race, and a failed credit rolls the
	// completion back so it can be retried.
	ok, err := s.store.CompleteOrderWithCredit(ctx, order.ID, order.CustomerID, order.CashbackEarned)
	if err != nil {
		return nil, fmt.Errorf("failed to complete order: %w", err)
	}
	if !ok {
		return nil, ErrOrderConflict
	}

	if order.CustomerID != "" && order.CashbackEarned.IsPositive() {
		util.CashbackCreditedTotal.Inc()
		if err := s.cache.CreditBalanceMirror(ctx, order.CustomerID, order.CashbackEarned); err != nil {
			s.logger.Warn("Failed to update balance mirror", zap.Error(err))
		}
	}

	util.OrdersCompletedTotal.Inc()
	s.logger.Info("Order completed",
		zap.String("order_id", order.ID),
		zap.String("cashback_credited", order.CashbackEarned.StringFixed(2)))

	event := &models.OrderCompletedEvent{
		BaseEvent:        newBaseEvent(models.EventTypeOrderCompleted),
		OrderID:          order.ID,
		CustomerID:       order.CustomerID,
		CashbackCredited: order.CashbackEarned,
	}
	if err := s.publisher.PublishOrderCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCompleted event", zap.Error(err))
	}

	order.Status = models.OrderStatusCompleted
	return order, nil
}

// CancelOrder cancels a non-terminal order and restores any cashback the
// customer redeemed on it. Earned cashback needs no reversal here: it is
// only ever credited on completion, and completed orders cannot be
// cancelled.
func (s *LedgerService) CancelOrder(ctx context.Context, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.CancelOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if models.TerminalStatus(order.Status) {
		return nil, ErrInvalidTransition
	}

	if order.CustomerID != "" {
		locked, err := s.cache.AcquireLock(ctx, "customer:"+order.CustomerID, customerLockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire customer lock: %w", err)
		}
		if !locked {
			return nil, ErrCustomerBusy
		}
		defer func() {
			if err := s.cache.ReleaseLock(context.Background(), "customer:"+order.CustomerID); err != nil {
				s.logger.Warn("Failed to release customer lock", zap.Error(err))
			}
		}()
	}

	// Status flip and restoration commit together, so a lost race cannot
	// double-restore and a failed restore rolls the cancellation back.
	ok, err := s.store.CancelOrderWithRestore(ctx, order.ID, order.Status, order.CustomerID, order.CashbackDiscount)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}
	if !ok {
		return nil, ErrOrderConflict
	}

	restored := decimal.Zero
	if order.CustomerID != "" && order.CashbackDiscount.IsPositive() {
		restored = order.CashbackDiscount
		util.CashbackRestoredTotal.Inc()
		if err := s.cache.CreditBalanceMirror(ctx, order.CustomerID, restored); err != nil {
			s.logger.Warn("Failed to update balance mirror", zap.Error(err))
		}
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("Order cancelled",
		zap.String("order_id", order.ID),
		zap.String("from", order.Status),
		zap.String("cashback_restored", restored.StringFixed(2)))

	event := &models.OrderCancelledEvent{
		BaseEvent:        newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:          order.ID,
		CustomerID:       order.CustomerID,
		From:             order.Status,
		CashbackRestored: restored,
	}
	if err := s.publisher.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}

	order.Status = models.OrderStatusCancelled
	return order, nil
}

// RateOrder records a 1-5 rating on a completed order, once
func (s *LedgerService) RateOrder(ctx context.Context, orderID string, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	ok, err := s.store.SetOrderRating(ctx, orderID, rating, comment)
	if err != nil {
		return fmt.Errorf("failed to set rating: %w", err)
	}
	if !ok {
		return s.ratingRejection(ctx, orderID)
	}
	return nil
}

// SkipRating dismisses the rating prompt on a completed order, once
func (s *LedgerService) SkipRating(ctx context.Context, orderID string) error {
	ok, err := s.store.SkipOrderRating(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to skip rating: %w", err)
	}
	if !ok {
		return s.ratingRejection(ctx, orderID)
	}
	return nil
}

func (s *LedgerService) ratingRejection(ctx context.Context, orderID string) error {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusCompleted {
		return ErrInvalidTransition
	}
	return ErrRatingAlreadySet
}

// GetOrder retrieves an order with its line items
func (s *LedgerService) GetOrder(ctx context.Context, orderID string) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// ListCustomerOrders retrieves a customer's order history
func (s *LedgerService) ListCustomerOrders(ctx context.Context, customerID string) ([]models.Order, error) {
	return s.store.GetOrdersByCustomerID(ctx, customerID)
}

// ListOrders retrieves orders for the admin pipeline view. An empty status
// returns all open (non-terminal) orders.
func (s *LedgerService) ListOrders(ctx context.Context, status string) ([]models.Order, error) {
	if status == "" {
		return s.store.GetOpenOrders(ctx)
	}
	switch status {
	case models.OrderStatusReceived, models.OrderStatusPreparing, models.OrderStatusDelivery,
		models.OrderStatusCompleted, models.OrderStatusCancelled:
		return s.store.GetOrdersByStatus(ctx, status)
	}
	return nil, fmt.Errorf("unknown status: %s", status)
}

// GetSettings returns the current pricing settings
func (s *LedgerService) GetSettings(ctx context.Context) (*models.AppSettings, error) {
	return s.store.GetSettings(ctx)
}

// UpdateSettings overwrites the pricing settings after range checks. The
// cashback percentage is a fraction; 0.05 means 5%.
func (s *LedgerService) UpdateSettings(ctx context.Context, settings *models.AppSettings) error {
	if settings.DeliveryFee.IsNegative() || settings.MinOrderValue.IsNegative() {
		return ErrInvalidSettings
	}
	if settings.CashbackPercentage.IsNegative() || settings.CashbackPercentage.GreaterThan(decimal.NewFromInt(1)) {
		return ErrInvalidSettings
	}

	if err := s.store.UpdateSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}

	s.logger.Info("Settings updated",
		zap.String("delivery_fee", settings.DeliveryFee.StringFixed(2)),
		zap.String("min_order_value", settings.MinOrderValue.StringFixed(2)),
		zap.String("cashback_percentage", settings.CashbackPercentage.String()))
	return nil
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

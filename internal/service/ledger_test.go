package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"bakery-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fakeStore is an in-memory LedgerStore
type fakeStore struct {
	products  map[string]models.Product
	customers map[string]*models.Customer
	orders    map[string]*models.Order
	items     map[string][]models.OrderItem
	settings  models.AppSettings

	failCreateOrder    bool
	failCompleteCredit bool
	failCancelRestore  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:  make(map[string]models.Product),
		customers: make(map[string]*models.Customer),
		orders:    make(map[string]*models.Order),
		items:     make(map[string][]models.OrderItem),
		settings: models.AppSettings{
			DeliveryFee:        dec("8.50"),
			MinOrderValue:      dec("20.00"),
			CashbackPercentage: dec("0.05"),
		},
	}
}

func (f *fakeStore) GetProductsByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetCustomerByID(_ context.Context, id string) (*models.Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return nil, errors.New("customer not found")
	}
	copied := *c
	return &copied, nil
}

func (f *fakeStore) DebitCashback(_ context.Context, customerID string, amount decimal.Decimal) (decimal.Decimal, error) {
	c := f.customers[customerID]
	c.CashbackBalance = decimal.Max(decimal.Zero, c.CashbackBalance.Sub(amount))
	return c.CashbackBalance, nil
}

func (f *fakeStore) CreditCashback(_ context.Context, customerID string, amount decimal.Decimal) (decimal.Decimal, error) {
	c := f.customers[customerID]
	c.CashbackBalance = c.CashbackBalance.Add(amount)
	return c.CashbackBalance, nil
}

func (f *fakeStore) GetSettings(_ context.Context) (*models.AppSettings, error) {
	s := f.settings
	return &s, nil
}

func (f *fakeStore) UpdateSettings(_ context.Context, settings *models.AppSettings) error {
	f.settings = *settings
	return nil
}

func (f *fakeStore) CreateOrder(_ context.Context, order *models.Order, items []models.OrderItem) error {
	if f.failCreateOrder {
		return errors.New("insert failed")
	}
	copied := *order
	f.orders[order.ID] = &copied
	f.items[order.ID] = items
	return nil
}

func (f *fakeStore) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, errors.New("order not found")
	}
	copied := *o
	return &copied, nil
}

func (f *fakeStore) GetOrderItemsByOrderID(_ context.Context, orderID string) ([]models.OrderItem, error) {
	return f.items[orderID], nil
}

func (f *fakeStore) GetOrdersByCustomerID(_ context.Context, customerID string) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) GetOrdersByStatus(_ context.Context, status string) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) GetOpenOrders(_ context.Context) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if !models.TerminalStatus(o.Status) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) TransitionOrderStatus(_ context.Context, orderID, from, to string) (bool, error) {
	o, ok := f.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (f *fakeStore) CompleteOrderWithCredit(_ context.Context, orderID, customerID string, credit decimal.Decimal) (bool, error) {
	o, ok := f.orders[orderID]
	if !ok || o.Status != models.OrderStatusDelivery {
		return false, nil
	}
	if customerID != "" && credit.IsPositive() {
		if f.failCompleteCredit {
			return false, errors.New("credit failed")
		}
		c := f.customers[customerID]
		c.CashbackBalance = c.CashbackBalance.Add(credit)
	}
	o.Status = models.OrderStatusCompleted
	return true, nil
}

func (f *fakeStore) CancelOrderWithRestore(_ context.Context, orderID, from, customerID string, restore decimal.Decimal) (bool, error) {
	o, ok := f.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	if customerID != "" && restore.IsPositive() {
		if f.failCancelRestore {
			return false, errors.New("restore failed")
		}
		c := f.customers[customerID]
		c.CashbackBalance = c.CashbackBalance.Add(restore)
	}
	o.Status = models.OrderStatusCancelled
	return true, nil
}

func (f *fakeStore) SetOrderRating(_ context.Context, orderID string, rating int, comment string) (bool, error) {
	o, ok := f.orders[orderID]
	if !ok || o.Status != models.OrderStatusCompleted || o.Rating != nil || o.RatingSkipped {
		return false, nil
	}
	o.Rating = &rating
	o.RatingComment = comment
	return true, nil
}

func (f *fakeStore) SkipOrderRating(_ context.Context, orderID string) (bool, error) {
	o, ok := f.orders[orderID]
	if !ok || o.Status != models.OrderStatusCompleted || o.Rating != nil || o.RatingSkipped {
		return false, nil
	}
	o.RatingSkipped = true
	return true, nil
}

// fakeCache is an in-memory BalanceCache
type fakeCache struct {
	locked    map[string]bool
	denyLock  bool
	onAcquire func()
}

func newFakeCache() *fakeCache {
	return &fakeCache{locked: make(map[string]bool)}
}

func (f *fakeCache) AcquireLock(_ context.Context, lockKey string, _ time.Duration) (bool, error) {
	if f.denyLock || f.locked[lockKey] {
		return false, nil
	}
	f.locked[lockKey] = true
	if f.onAcquire != nil {
		f.onAcquire()
	}
	return true, nil
}

func (f *fakeCache) ReleaseLock(_ context.Context, lockKey string) error {
	delete(f.locked, lockKey)
	return nil
}

func (f *fakeCache) DebitBalanceMirror(context.Context, string, decimal.Decimal) error {
	return nil
}

func (f *fakeCache) CreditBalanceMirror(context.Context, string, decimal.Decimal) error {
	return nil
}

// fakePublisher records published events
type fakePublisher struct {
	placed    []*models.OrderPlacedEvent
	changed   []*models.OrderStatusChangedEvent
	completed []*models.OrderCompletedEvent
	cancelled []*models.OrderCancelledEvent
}

func (f *fakePublisher) PublishOrderPlaced(_ context.Context, e *models.OrderPlacedEvent) error {
	f.placed = append(f.placed, e)
	return nil
}

func (f *fakePublisher) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	f.changed = append(f.changed, e)
	return nil
}

func (f *fakePublisher) PublishOrderCompleted(_ context.Context, e *models.OrderCompletedEvent) error {
	f.completed = append(f.completed, e)
	return nil
}

func (f *fakePublisher) PublishOrderCancelled(_ context.Context, e *models.OrderCancelledEvent) error {
	f.cancelled = append(f.cancelled, e)
	return nil
}

func testAddress() models.Address {
	return models.Address{
		ZipCode: "01310-100",
		Street:  "Av Paulista",
		Number:  "1000",
		City:    "Sao Paulo",
		State:   "SP",
	}
}

func newFixture() (*LedgerService, *fakeStore, *fakeCache, *fakePublisher) {
	store := newFakeStore()
	store.products["bread"] = models.Product{ID: "bread", Name: "Pao frances", Price: dec("1.00"), Category: models.CategoryBakery, Active: true}
	store.products["cake"] = models.Product{ID: "cake", Name: "Bolo de cenoura", Price: dec("25.00"), Category: models.CategoryConfectionery, Active: true}
	store.products["old-cake"] = models.Product{ID: "old-cake", Name: "Bolo antigo", Price: dec("25.00"), Category: models.CategoryConfectionery, Active: false}
	store.customers["c1"] = &models.Customer{ID: "c1", Name: "Ana", Phone: "11999990000", Address: testAddress()}

	cache := newFakeCache()
	publisher := &fakePublisher{}
	return NewLedgerService(store, cache, publisher), store, cache, publisher
}

func TestComputeQuote(t *testing.T) {
	settings := &models.AppSettings{
		DeliveryFee:        dec("8.50"),
		MinOrderValue:      dec("20.00"),
		CashbackPercentage: dec("0.05"),
	}
	items := []models.OrderItem{
		{UnitPrice: dec("25.00"), Quantity: 2}, // 50.00
	}

	tests := []struct {
		name        string
		balance     decimal.Decimal
		fulfillment string
		useCashback bool
		subtotal    string
		fee         string
		discount    string
		total       string
		earned      string
	}{
		{
			name:        "delivery earns cashback",
			balance:     dec("0"),
			fulfillment: models.FulfillmentDelivery,
			subtotal:    "50.00", fee: "8.50", discount: "0", total: "58.50", earned: "2.50",
		},
		{
			name:        "pickup has no delivery fee",
			balance:     dec("0"),
			fulfillment: models.FulfillmentPickup,
			subtotal:    "50.00", fee: "0", discount: "0", total: "50.00", earned: "2.50",
		},
		{
			name:        "partial redemption earns nothing",
			balance:     dec("10.00"),
			fulfillment: models.FulfillmentDelivery,
			useCashback: true,
			subtotal:    "50.00", fee: "8.50", discount: "10.00", total: "48.50", earned: "0",
		},
		{
			name:        "redemption capped at order gross",
			balance:     dec("100.00"),
			fulfillment: models.FulfillmentDelivery,
			useCashback: true,
			subtotal:    "50.00", fee: "8.50", discount: "58.50", total: "0", earned: "0",
		},
		{
			name:        "not opting in leaves balance untouched",
			balance:     dec("10.00"),
			fulfillment: models.FulfillmentDelivery,
			subtotal:    "50.00", fee: "8.50", discount: "0", total: "58.50", earned: "2.50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := ComputeQuote(items, settings, tt.balance, tt.fulfillment, tt.useCashback)
			assert.True(t, q.Subtotal.Equal(dec(tt.subtotal)), "subtotal: got %s", q.Subtotal)
			assert.True(t, q.DeliveryFee.Equal(dec(tt.fee)), "fee: got %s", q.DeliveryFee)
			assert.True(t, q.CashbackDiscount.Equal(dec(tt.discount)), "discount: got %s", q.CashbackDiscount)
			assert.True(t, q.Total.Equal(dec(tt.total)), "total: got %s", q.Total)
			assert.True(t, q.CashbackEarned.Equal(dec(tt.earned)), "earned: got %s", q.CashbackEarned)
		})
	}
}

func TestComputeQuoteBalanceCoversExactlyTotal(t *testing.T) {
	settings := &models.AppSettings{
		DeliveryFee:        dec("8.50"),
		CashbackPercentage: dec("0.05"),
	}
	items := []models.OrderItem{{UnitPrice: dec("2.00"), Quantity: 1}}

	q := ComputeQuote(items, settings, dec("3.00"), models.FulfillmentPickup, true)
	assert.True(t, q.CashbackDiscount.Equal(dec("2.00")))
	assert.True(t, q.Total.Equal(decimal.Zero))
	assert.True(t, q.CashbackEarned.Equal(decimal.Zero))
}

func TestPlaceOrderDebitsRedeemedCashback(t *testing.T) {
	svc, store, _, publisher := newFixture()
	store.customers["c1"].CashbackBalance = dec("10.00")

	order, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID:    "c1",
		Items:         []CartItemRequest{{ProductID: "cake", Quantity: 2}},
		PaymentMethod: models.PaymentMethodPix,
		Fulfillment:   models.FulfillmentDelivery,
		UseCashback:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusReceived, order.Status)
	assert.True(t, order.CashbackDiscount.Equal(dec("10.00")))
	assert.True(t, order.Total.Equal(dec("48.50")))
	assert.True(t, order.CashbackEarned.Equal(decimal.Zero))
	assert.True(t, store.customers["c1"].CashbackBalance.Equal(decimal.Zero))
	assert.Len(t, order.DeliveryCode, 4)
	require.Len(t, publisher.placed, 1)
	assert.True(t, publisher.placed[0].CashbackDiscount.Equal(dec("10.00")))
}

func TestPlaceOrderWithoutRedemptionKeepsBalance(t *testing.T) {
	svc, store, _, _ := newFixture()
	store.customers["c1"].CashbackBalance = dec("10.00")

	order, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID:    "c1",
		Items:         []CartItemRequest{{ProductID: "cake", Quantity: 2}},
		PaymentMethod: models.PaymentMethodPix,
		Fulfillment:   models.FulfillmentPickup,
	})
	require.NoError(t, err)

	assert.True(t, order.CashbackEarned.Equal(dec("2.50")))
	// Earned cashback is only credited on verified completion.
	assert.True(t, store.customers["c1"].CashbackBalance.Equal(dec("10.00")))
}

func TestPlaceOrderRejectsBelowMinimum(t *testing.T) {
	svc, _, _, _ := newFixture()

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID:    "c1",
		Items:         []CartItemRequest{{ProductID: "bread", Quantity: 5}},
		PaymentMethod: models.PaymentMethodPix,
		Fulfillment:   models.FulfillmentPickup,
	})
	assert.ErrorIs(t, err, ErrBelowMinimum)
}

func TestPlaceOrderRejectsInactiveProduct(t *testing.T) {
	svc, _, _, _ := newFixture()

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID:    "c1",
		Items:         []CartItemRequest{{ProductID: "old-cake", Quantity: 1}},
		PaymentMethod: models.PaymentMethodPix,
		Fulfillment:   models.FulfillmentPickup,
	})
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestPlaceOrderRejectsIncompleteAddress(t *testing.T) {
	svc, store, _, _ := newFixture()
	store.customers["c1"].Address = models.Address{Street: "Av Paulista"}

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID:    "c1",
		Items:         []CartItemRequest{{ProductID: "cake", Quantity: 1}},
		PaymentMethod: models.PaymentMethodPix,
		Fulfillment:   models.FulfillmentDelivery,
	})
	assert.ErrorIs(t, err, ErrIncompleteAddress)
}

func TestPlaceOrderRejectsInsufficientCash(t *testing.T) {
	svc, _, _, _ := newFixture()

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID:    "c1",
		Items:         []CartItemRequest{{ProductID: "cake", Quantity: 2}},
		PaymentMethod: models.PaymentMethodMoney,
		CashGiven:     dec("40.00"),
		Fulfillment:   models.FulfillmentPickup,
	})
	assert.ErrorIs(t, err, ErrInsufficientCash)
}

func TestPlaceOrderRejectsCardWithoutType(t *testing.T) {
	svc, _, _, _ := newFixture()

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID:    "c1",
		Items:         []CartItemRequest{{ProductID: "cake", Quantity: 1}},
		PaymentMethod: models.PaymentMethodCard,
		Fulfillment:   models.FulfillmentPickup,
	})
	assert.ErrorIs(t, err, ErrMissingCardType)
}

func TestPlaceOrderWhenCustomerLocked(t *testing.T) {
	svc, _, cache, _ := newFixture()
	cache.denyLock = true

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID:    "c1",
		Items:         []CartItemRequest{{ProductID: "cake", Quantity: 1}},
		PaymentMethod: models.PaymentMethodPix,
		Fulfillment:   models.FulfillmentPickup,
	})
	assert.ErrorIs(t, err, ErrCustomerBusy)
}

func TestPlaceOrderReadsBalanceUnderLock(t *testing.T) {
	svc, store, cache, _ := newFixture()
	store.customers["c1"].CashbackBalance = dec("10.00")

	// A concurrent checkout wins the lock first and drains the balance; the
	// discount must be priced from the balance read after our lock, not from
	// anything read earlier.
	cache.onAcquire = func() {
		store.customers["c1"].CashbackBalance = decimal.Zero
	}

	order, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID:    "c1",
		Items:         []CartItemRequest{{ProductID: "cake", Quantity: 2}},
		PaymentMethod: models.PaymentMethodPix,
		Fulfillment:   models.FulfillmentDelivery,
		UseCashback:   true,
	})
	require.NoError(t, err)

	assert.True(t, order.CashbackDiscount.Equal(decimal.Zero))
	assert.True(t, order.Total.Equal(dec("58.50")))
	assert.True(t, store.customers["c1"].CashbackBalance.Equal(decimal.Zero))
}

func TestPlaceOrderRestoresDebitWhenInsertFails(t *testing.T) {
	svc, store, _, _ := newFixture()
	store.customers["c1"].CashbackBalance = dec("10.00")
	store.failCreateOrder = true

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID:    "c1",
		Items:         []CartItemRequest{{ProductID: "cake", Quantity: 2}},
		PaymentMethod: models.PaymentMethodPix,
		Fulfillment:   models.FulfillmentPickup,
		UseCashback:   true,
	})
	require.Error(t, err)
	assert.True(t, store.customers["c1"].CashbackBalance.Equal(dec("10.00")))
}

func placeTestOrder(t *testing.T, svc *LedgerService) *models.Order {
	t.Helper()
	order, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID:    "c1",
		Items:         []CartItemRequest{{ProductID: "cake", Quantity: 2}},
		PaymentMethod: models.PaymentMethodPix,
		Fulfillment:   models.FulfillmentDelivery,
	})
	require.NoError(t, err)
	return order
}

func advanceTo(t *testing.T, svc *LedgerService, orderID, target string) {
	t.Helper()
	for {
		order, err := svc.AdvanceOrder(context.Background(), orderID)
		require.NoError(t, err)
		if order.Status == target {
			return
		}
	}
}

func TestAdvanceOrderWalksPipeline(t *testing.T) {
	svc, store, _, publisher := newFixture()
	order := placeTestOrder(t, svc)

	advanced, err := svc.AdvanceOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPreparing, advanced.Status)

	advanced, err = svc.AdvanceOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivery, advanced.Status)

	assert.Equal(t, models.OrderStatusDelivery, store.orders[order.ID].Status)
	assert.Len(t, publisher.changed, 2)
}

func TestAdvanceOrderRefusesFinalStepWithoutCode(t *testing.T) {
	svc, _, _, _ := newFixture()
	order := placeTestOrder(t, svc)
	advanceTo(t, svc, order.ID, models.OrderStatusDelivery)

	_, err := svc.AdvanceOrder(context.Background(), order.ID)
	assert.ErrorIs(t, err, ErrVerificationRequired)
}

func TestCompleteDeliveryCreditsEarnedCashback(t *testing.T) {
	svc, store, _, publisher := newFixture()
	order := placeTestOrder(t, svc)
	advanceTo(t, svc, order.ID, models.OrderStatusDelivery)

	completed, err := svc.CompleteDelivery(context.Background(), order.ID, order.DeliveryCode)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCompleted, completed.Status)
	assert.True(t, store.customers["c1"].CashbackBalance.Equal(dec("2.50")))
	require.Len(t, publisher.completed, 1)
	assert.True(t, publisher.completed[0].CashbackCredited.Equal(dec("2.50")))
}

func TestCompleteDeliveryRejectsWrongCode(t *testing.T) {
	svc, store, _, _ := newFixture()
	order := placeTestOrder(t, svc)
	advanceTo(t, svc, order.ID, models.OrderStatusDelivery)

	wrong := "0000"
	if order.DeliveryCode == wrong {
		wrong = "0001"
	}

	_, err := svc.CompleteDelivery(context.Background(), order.ID, wrong)
	assert.ErrorIs(t, err, ErrVerificationMismatch)
	assert.Equal(t, models.OrderStatusDelivery, store.orders[order.ID].Status)
	assert.True(t, store.customers["c1"].CashbackBalance.Equal(decimal.Zero))

	// A correct retry after a mismatch still works.
	_, err = svc.CompleteDelivery(context.Background(), order.ID, order.DeliveryCode)
	assert.NoError(t, err)
}

func TestCompleteDeliveryRollsBackWhenCreditFails(t *testing.T) {
	svc, store, _, _ := newFixture()
	order := placeTestOrder(t, svc)
	advanceTo(t, svc, order.ID, models.OrderStatusDelivery)

	store.failCompleteCredit = true
	_, err := svc.CompleteDelivery(context.Background(), order.ID, order.DeliveryCode)
	require.Error(t, err)

	// The failed credit rolled the completion back, so nothing was lost and
	// the operator can retry.
	assert.Equal(t, models.OrderStatusDelivery, store.orders[order.ID].Status)
	assert.True(t, store.customers["c1"].CashbackBalance.Equal(decimal.Zero))

	store.failCompleteCredit = false
	completed, err := svc.CompleteDelivery(context.Background(), order.ID, order.DeliveryCode)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, completed.Status)
	assert.True(t, store.customers["c1"].CashbackBalance.Equal(dec("2.50")))
}

func TestCompleteDeliveryRequiresDeliveryStatus(t *testing.T) {
	svc, _, _, _ := newFixture()
	order := placeTestOrder(t, svc)

	_, err := svc.CompleteDelivery(context.Background(), order.ID, order.DeliveryCode)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelOrderRestoresRedeemedCashback(t *testing.T) {
	svc, store, _, publisher := newFixture()
	store.customers["c1"].CashbackBalance = dec("10.00")

	order, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID:    "c1",
		Items:         []CartItemRequest{{ProductID: "cake", Quantity: 2}},
		PaymentMethod: models.PaymentMethodPix,
		Fulfillment:   models.FulfillmentDelivery,
		UseCashback:   true,
	})
	require.NoError(t, err)
	require.True(t, store.customers["c1"].CashbackBalance.Equal(decimal.Zero))

	cancelled, err := svc.CancelOrder(context.Background(), order.ID)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.True(t, store.customers["c1"].CashbackBalance.Equal(dec("10.00")))
	require.Len(t, publisher.cancelled, 1)
	assert.True(t, publisher.cancelled[0].CashbackRestored.Equal(dec("10.00")))
}

func TestCancelOrderRollsBackWhenRestoreFails(t *testing.T) {
	svc, store, _, _ := newFixture()
	store.customers["c1"].CashbackBalance = dec("10.00")

	order, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID:    "c1",
		Items:         []CartItemRequest{{ProductID: "cake", Quantity: 2}},
		PaymentMethod: models.PaymentMethodPix,
		Fulfillment:   models.FulfillmentDelivery,
		UseCashback:   true,
	})
	require.NoError(t, err)

	store.failCancelRestore = true
	_, err = svc.CancelOrder(context.Background(), order.ID)
	require.Error(t, err)
	assert.Equal(t, models.OrderStatusReceived, store.orders[order.ID].Status)
	assert.True(t, store.customers["c1"].CashbackBalance.Equal(decimal.Zero))

	store.failCancelRestore = false
	_, err = svc.CancelOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, store.orders[order.ID].Status)
	assert.True(t, store.customers["c1"].CashbackBalance.Equal(dec("10.00")))
}

func TestCancelOrderRejectsTerminalOrder(t *testing.T) {
	svc, _, _, _ := newFixture()
	order := placeTestOrder(t, svc)
	advanceTo(t, svc, order.ID, models.OrderStatusDelivery)
	_, err := svc.CompleteDelivery(context.Background(), order.ID, order.DeliveryCode)
	require.NoError(t, err)

	_, err = svc.CancelOrder(context.Background(), order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRateOrderOnce(t *testing.T) {
	svc, store, _, _ := newFixture()
	order := placeTestOrder(t, svc)
	advanceTo(t, svc, order.ID, models.OrderStatusDelivery)
	_, err := svc.CompleteDelivery(context.Background(), order.ID, order.DeliveryCode)
	require.NoError(t, err)

	require.NoError(t, svc.RateOrder(context.Background(), order.ID, 5, "otimo"))
	require.NotNil(t, store.orders[order.ID].Rating)
	assert.Equal(t, 5, *store.orders[order.ID].Rating)

	err = svc.RateOrder(context.Background(), order.ID, 3, "")
	assert.ErrorIs(t, err, ErrRatingAlreadySet)

	err = svc.SkipRating(context.Background(), order.ID)
	assert.ErrorIs(t, err, ErrRatingAlreadySet)
}

func TestRateOrderRejectsOpenOrder(t *testing.T) {
	svc, _, _, _ := newFixture()
	order := placeTestOrder(t, svc)

	err := svc.RateOrder(context.Background(), order.ID, 4, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRateOrderRejectsOutOfRangeRating(t *testing.T) {
	svc, _, _, _ := newFixture()

	assert.ErrorIs(t, svc.RateOrder(context.Background(), "any", 0, ""), ErrInvalidRating)
	assert.ErrorIs(t, svc.RateOrder(context.Background(), "any", 6, ""), ErrInvalidRating)
}

func TestCreateManualOrderTouchesNoBalance(t *testing.T) {
	svc, store, _, _ := newFixture()
	store.customers["c1"].CashbackBalance = dec("10.00")

	order, err := svc.CreateManualOrder(context.Background(), &ManualOrderRequest{
		CustomerName:  "Balcao",
		Items:         []CartItemRequest{{ProductID: "cake", Quantity: 1}},
		PaymentMethod: models.PaymentMethodMoney,
		PaymentDetail: "troco para 50.00",
		Fulfillment:   models.FulfillmentPickup,
	})
	require.NoError(t, err)

	assert.True(t, order.Manual)
	assert.Empty(t, order.CustomerID)
	assert.True(t, order.CashbackEarned.Equal(decimal.Zero))
	assert.True(t, order.CashbackDiscount.Equal(decimal.Zero))
	assert.True(t, store.customers["c1"].CashbackBalance.Equal(dec("10.00")))
}

func TestCompleteManualOrderCreditsNothing(t *testing.T) {
	svc, store, _, _ := newFixture()

	order, err := svc.CreateManualOrder(context.Background(), &ManualOrderRequest{
		CustomerName:  "Balcao",
		Items:         []CartItemRequest{{ProductID: "cake", Quantity: 1}},
		PaymentMethod: models.PaymentMethodMoney,
		Fulfillment:   models.FulfillmentPickup,
	})
	require.NoError(t, err)
	advanceTo(t, svc, order.ID, models.OrderStatusDelivery)

	_, err = svc.CompleteDelivery(context.Background(), order.ID, order.DeliveryCode)
	require.NoError(t, err)
	assert.True(t, store.customers["c1"].CashbackBalance.Equal(decimal.Zero))
}

func TestListOrdersFiltersByStatus(t *testing.T) {
	svc, _, _, _ := newFixture()
	first := placeTestOrder(t, svc)
	second := placeTestOrder(t, svc)
	_, err := svc.CancelOrder(context.Background(), second.ID)
	require.NoError(t, err)

	open, err := svc.ListOrders(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, first.ID, open[0].ID)

	cancelled, err := svc.ListOrders(context.Background(), models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Len(t, cancelled, 1)

	_, err = svc.ListOrders(context.Background(), "nonsense")
	assert.Error(t, err)
}

func TestUpdateSettingsValidation(t *testing.T) {
	svc, store, _, _ := newFixture()

	err := svc.UpdateSettings(context.Background(), &models.AppSettings{
		DeliveryFee:        dec("-1"),
		MinOrderValue:      dec("20.00"),
		CashbackPercentage: dec("0.05"),
	})
	assert.ErrorIs(t, err, ErrInvalidSettings)

	err = svc.UpdateSettings(context.Background(), &models.AppSettings{
		DeliveryFee:        dec("5.00"),
		MinOrderValue:      dec("20.00"),
		CashbackPercentage: dec("1.5"),
	})
	assert.ErrorIs(t, err, ErrInvalidSettings)

	err = svc.UpdateSettings(context.Background(), &models.AppSettings{
		DeliveryFee:        dec("10.00"),
		MinOrderValue:      dec("30.00"),
		CashbackPercentage: dec("0.10"),
	})
	require.NoError(t, err)
	assert.True(t, store.settings.DeliveryFee.Equal(dec("10.00")))
}

func TestNewDeliveryCodeRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := newDeliveryCode()
		require.Len(t, code, 4)
		assert.GreaterOrEqual(t, code, "1000")
		assert.LessOrEqual(t, code, "9999")
	}
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"bakery-service/internal/broker"
	"bakery-service/internal/models"
	"bakery-service/internal/redisclient"
	"bakery-service/internal/store"
	"bakery-service/internal/util"

	"go.uber.org/zap"
)

// Pub/sub channels the UIs subscribe to. Admin views watch the shared orders
// channel; customer views watch their own channel.
const (
	ChannelOrders          = "notify:orders"
	channelCustomerPattern = "notify:customer:%s"
)

// CustomerChannel returns the pub/sub channel for one customer's updates
func CustomerChannel(customerID string) string {
	return fmt.Sprintf(channelCustomerPattern, customerID)
}

// Notification is the payload fanned out to subscribers
type Notification struct {
	EventType  string `json:"event_type"`
	OrderID    string `json:"order_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	Status     string `json:"status,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
}

// NotificationWorker consumes order lifecycle events from Kafka and fans
// them out to Redis pub/sub so admin and customer views update without
// polling. Events are deduplicated through the processed_events table, so a
// redelivered Kafka message does not notify twice.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	cache        *redisclient.Client
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, store *store.Store, cache *redisclient.Client) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		store:    store,
		cache:    cache,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPlaced(w.handleOrderPlaced)
	eventHandler.OnOrderStatusChanged(w.handleOrderStatusChanged)
	eventHandler.OnOrderCompleted(w.handleOrderCompleted)
	eventHandler.OnOrderCancelled(w.handleOrderCancelled)
	eventHandler.OnMessagePosted(w.handleMessagePosted)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return w.fanOut(ctx, event.BaseEvent, Notification{
		EventType:  event.EventType,
		OrderID:    event.OrderID,
		CustomerID: event.CustomerID,
		Status:     models.OrderStatusReceived,
	})
}

func (w *NotificationWorker) handleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return w.fanOut(ctx, event.BaseEvent, Notification{
		EventType:  event.EventType,
		OrderID:    event.OrderID,
		CustomerID: event.CustomerID,
		Status:     event.To,
	})
}

func (w *NotificationWorker) handleOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	return w.fanOut(ctx, event.BaseEvent, Notification{
		EventType:  event.EventType,
		OrderID:    event.OrderID,
		CustomerID: event.CustomerID,
		Status:     models.OrderStatusCompleted,
	})
}

func (w *NotificationWorker) handleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	return w.fanOut(ctx, event.BaseEvent, Notification{
		EventType:  event.EventType,
		OrderID:    event.OrderID,
		CustomerID: event.CustomerID,
		Status:     models.OrderStatusCancelled,
	})
}

func (w *NotificationWorker) handleMessagePosted(ctx context.Context, event *models.MessagePostedEvent) error {
	return w.fanOut(ctx, event.BaseEvent, Notification{
		EventType:  event.EventType,
		CustomerID: event.CustomerID,
		MessageID:  event.MessageID,
	})
}

func (w *NotificationWorker) fanOut(ctx context.Context, base models.BaseEvent, note Notification) error {
	processed, err := w.store.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", base.EventID))
		return nil
	}

	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := w.cache.Publish(ctx, ChannelOrders, payload); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	if note.CustomerID != "" {
		if err := w.cache.Publish(ctx, CustomerChannel(note.CustomerID), payload); err != nil {
			return fmt.Errorf("failed to publish customer notification: %w", err)
		}
	}

	util.NotificationsPublishedTotal.WithLabelValues(base.EventType).Inc()

	if err := w.store.MarkEventProcessed(ctx, base.EventID, base.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	return nil
}

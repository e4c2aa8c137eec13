package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bakery-service/internal/models"
	"bakery-service/internal/store"
	"bakery-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrEmptyMessage = errors.New("message text is empty")

// ChatPublisher publishes chat events
type ChatPublisher interface {
	PublishMessagePosted(ctx context.Context, event *models.MessagePostedEvent) error
}

// ChatService owns the per-customer support thread. Messages are append-only.
type ChatService struct {
	store     *store.Store
	publisher ChatPublisher
	logger    *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(store *store.Store, publisher ChatPublisher) *ChatService {
	return &ChatService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// PostMessage appends a message to a customer's thread
func (c *ChatService) PostMessage(ctx context.Context, customerID, senderName, text string, isAdmin bool) (*models.Message, error) {
	ctx, span := util.StartSpan(ctx, "ChatService.PostMessage")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	if _, err := c.store.GetCustomerByID(ctx, customerID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		SenderName: senderName,
		Text:       text,
		IsAdmin:    isAdmin,
	}

	if err := c.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	sender := "customer"
	if isAdmin {
		sender = "admin"
	}
	util.MessagesPostedTotal.WithLabelValues(sender).Inc()

	event := &models.MessagePostedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeMessagePosted),
		MessageID:  msg.ID,
		CustomerID: customerID,
		IsAdmin:    isAdmin,
	}
	if err := c.publisher.PublishMessagePosted(ctx, event); err != nil {
		c.logger.Error("Failed to publish MessagePosted event", zap.Error(err))
	}

	return msg, nil
}

// Thread returns a customer's full message history in order
func (c *ChatService) Thread(ctx context.Context, customerID string) ([]models.Message, error) {
	return c.store.GetMessagesByCustomerID(ctx, customerID)
}

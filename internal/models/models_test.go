package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus(t *testing.T) {
	assert.Equal(t, OrderStatusPreparing, NextStatus(OrderStatusReceived))
	assert.Equal(t, OrderStatusDelivery, NextStatus(OrderStatusPreparing))
	assert.Equal(t, OrderStatusCompleted, NextStatus(OrderStatusDelivery))
	assert.Empty(t, NextStatus(OrderStatusCompleted))
	assert.Empty(t, NextStatus(OrderStatusCancelled))
	assert.Empty(t, NextStatus("bogus"))
}

func TestTerminalStatus(t *testing.T) {
	assert.True(t, TerminalStatus(OrderStatusCompleted))
	assert.True(t, TerminalStatus(OrderStatusCancelled))
	assert.False(t, TerminalStatus(OrderStatusReceived))
	assert.False(t, TerminalStatus(OrderStatusPreparing))
	assert.False(t, TerminalStatus(OrderStatusDelivery))
}

func TestValidCardType(t *testing.T) {
	assert.True(t, ValidCardType(CardTypeDebit))
	assert.True(t, ValidCardType(CardTypeCredit))
	assert.True(t, ValidCardType(CardTypeFood))
	assert.True(t, ValidCardType(CardTypeMeal))
	assert.False(t, ValidCardType(""))
	assert.False(t, ValidCardType("visa"))
}

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory(CategoryBakery))
	assert.True(t, ValidCategory(CategoryPromotions))
	assert.False(t, ValidCategory("electronics"))
}

func TestAddressComplete(t *testing.T) {
	full := Address{
		ZipCode: "01310-100",
		Street:  "Av Paulista",
		Number:  "1000",
		City:    "Sao Paulo",
	}
	assert.True(t, full.Complete())

	missing := full
	missing.Number = ""
	assert.False(t, missing.Complete())

	assert.False(t, Address{}.Complete())
}

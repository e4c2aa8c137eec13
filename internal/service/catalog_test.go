package service

import (
	"testing"

	"bakery-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRequestToProduct(t *testing.T) {
	old := dec("12.00")
	req := &ProductRequest{
		Name:     "Bolo de fuba",
		Price:    dec("9.90"),
		OldPrice: &old,
		Category: models.CategoryConfectionery,
		Active:   true,
	}

	product, err := req.toProduct()
	require.NoError(t, err)
	assert.Equal(t, "Bolo de fuba", product.Name)
	assert.True(t, product.Price.Equal(dec("9.90")))
	require.True(t, product.OldPrice.Valid)
	assert.True(t, product.OldPrice.Decimal.Equal(dec("12.00")))
}

func TestProductRequestRejectsUnknownCategory(t *testing.T) {
	req := &ProductRequest{Name: "x", Price: dec("1.00"), Category: "electronics"}
	_, err := req.toProduct()
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestProductRequestRejectsNonPositivePrice(t *testing.T) {
	req := &ProductRequest{Name: "x", Price: dec("0"), Category: models.CategoryBakery}
	_, err := req.toProduct()
	assert.ErrorIs(t, err, ErrInvalidPrice)

	req.Price = dec("-1.00")
	_, err = req.toProduct()
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

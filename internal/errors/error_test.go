package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithMessage(t *testing.T) {
	err := WithMessage(ErrProductNotFound, "Product not found: sku-1")

	assert.Equal(t, "Product not found: sku-1", err.Error())
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.NotErrorIs(t, err, ErrInsufficientStock)

	wrapped := fmt.Errorf("purchase failed: %w", err)
	assert.True(t, errors.Is(wrapped, ErrProductNotFound), "kind survives further wrapping")
}

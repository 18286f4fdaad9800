package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-workflow/internal/domain/apperr"
)

type sample struct {
	Description string          `json:"description" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency    string          `json:"currency" validate:"required,currency"`
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		input   sample
		wantErr string
	}{
		{"valid", sample{"Taxi", decimal.RequireFromString("12.50"), "USD"}, ""},
		{"missing description", sample{"", decimal.NewFromInt(1), "EUR"}, "description is required"},
		{"zero amount", sample{"Taxi", decimal.Zero, "EUR"}, "amount must be greater than 0"},
		{"negative amount", sample{"Taxi", decimal.NewFromInt(-3), "EUR"}, "amount must be greater than 0"},
		{"lowercase currency", sample{"Taxi", decimal.NewFromInt(1), "usd"}, "currency must be a 3-letter currency code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.IsClientError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Lunch with client", SanitizeString("  Lunch\x00 with client\x7f\n"))
}

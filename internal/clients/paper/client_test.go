package paper

import (
	"context"
	"testing"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(side, qty, price string) domain.BrokerOrderRequest {
	return domain.BrokerOrderRequest{
		ClientOrderID: "order-1",
		AccountID:     "taxable-1",
		Symbol:        "VTI",
		Side:          side,
		Quantity:      decimal.RequireFromString(qty),
		LimitPrice:    decimal.RequireFromString(price),
	}
}

func TestPreviewOrder(t *testing.T) {
	client := NewClient(decimal.NewFromInt(50000), zerolog.Nop())

	testCases := []struct {
		name     string
		req      domain.BrokerOrderRequest
		expected string
	}{
		{"small order", request("SELL", "100", "220"), domain.PreviewStatusOK},
		{"exactly at threshold", request("BUY", "250", "200"), domain.PreviewStatusOK},
		{"above threshold", request("BUY", "251", "200"), domain.PreviewStatusWarn},
		{"zero quantity", request("SELL", "0", "220"), domain.PreviewStatusError},
		{"fractional quantity", request("SELL", "1.5", "220"), domain.PreviewStatusError},
		{"zero price", request("BUY", "10", "0"), domain.PreviewStatusError},
		{"bad side", request("HOLD", "10", "10"), domain.PreviewStatusError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := client.PreviewOrder(context.Background(), tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result.Status)
			if tc.expected != domain.PreviewStatusOK {
				assert.NotEmpty(t, result.Messages)
			}
		})
	}
}

func TestPreviewOrder_NoWarnThreshold(t *testing.T) {
	client := NewClient(decimal.Zero, zerolog.Nop())
	result, err := client.PreviewOrder(context.Background(), request("BUY", "100000", "500"))
	require.NoError(t, err)
	assert.Equal(t, domain.PreviewStatusOK, result.Status)
}

func TestPlaceOrder(t *testing.T) {
	client := NewClient(decimal.NewFromInt(50000), zerolog.Nop())

	result, err := client.PlaceOrder(context.Background(), request("SELL", "100", "220"))
	require.NoError(t, err)
	assert.Equal(t, BrokerStatusWorking, result.Status)
	assert.Contains(t, result.BrokerOrderID, "paper-")

	placed, ok := client.Placed(result.BrokerOrderID)
	require.True(t, ok)
	assert.Equal(t, "order-1", placed.ClientOrderID)
	assert.Equal(t, 1, client.PlacedCount())

	_, err = client.PlaceOrder(context.Background(), request("SELL", "0", "220"))
	assert.Error(t, err)
	assert.Equal(t, 1, client.PlacedCount())
}

func TestPlaceOrder_CanceledContext(t *testing.T) {
	client := NewClient(decimal.Zero, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.PlaceOrder(ctx, request("SELL", "1", "1"))
	assert.ErrorIs(t, err, context.Canceled)
}

package domain

import (
	"context"
	"time"
)

// BrokerClient defines the broker operations the order lifecycle needs.
// Authentication, retries and timeouts belong to the implementation.
type BrokerClient interface {
	// PreviewOrder validates a draft order without placing it
	PreviewOrder(ctx context.Context, req BrokerOrderRequest) (*BrokerPreviewResult, error)

	// PlaceOrder submits an order for execution
	PlaceOrder(ctx context.Context, req BrokerOrderRequest) (*BrokerOrderResult, error)
}

// Clock returns the current time; injected so computations stay deterministic in tests
type Clock func() time.Time

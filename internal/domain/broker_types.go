package domain

import "github.com/shopspring/decimal"

// Broker-agnostic types for order preview and placement.
// Concrete brokers map their own payloads onto these.

// BrokerOrderRequest describes an order sent to a broker
type BrokerOrderRequest struct {
	ClientOrderID string          // Our order id, echoed back by the broker
	AccountID     string          // Account the order is placed in
	Symbol        string          // Security ticker
	Side          string          // "BUY" or "SELL"
	Quantity      decimal.Decimal // Whole shares
	LimitPrice    decimal.Decimal // Limit price per share
}

// Notional returns quantity * limit price rounded to cents
func (r BrokerOrderRequest) Notional() decimal.Decimal {
	return RoundCents(r.Quantity.Mul(r.LimitPrice))
}

// BrokerPreviewResult is the broker's verdict on a draft order
type BrokerPreviewResult struct {
	Status   string   // "OK", "WARN" or "ERROR"
	Messages []string // Human-readable warnings or errors
}

// BrokerOrderResult represents the result of placing an order
type BrokerOrderResult struct {
	BrokerOrderID string // Broker-side order id
	Status        string // Broker lifecycle status, e.g. "WORKING"
	Message       string // Optional broker message
}

// Preview verdicts returned in BrokerPreviewResult.Status
const (
	PreviewStatusOK    = "OK"
	PreviewStatusWarn  = "WARN"
	PreviewStatusError = "ERROR"
)

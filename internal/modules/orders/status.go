// Package orders manages the lifecycle of orders promoted from trade proposals,
// from local draft through broker preview and submission to fills.
package orders

import (
	"errors"
	"fmt"
	"strings"
)

// Status is an order lifecycle state
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPreviewOK       Status = "PREVIEW_OK"
	StatusPreviewWarn     Status = "PREVIEW_WARN"
	StatusPreviewError    Status = "PREVIEW_ERROR"
	StatusAccepted        Status = "ACCEPTED"
	StatusWorking         Status = "WORKING"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusReplaced        Status = "REPLACED"
	StatusFilled          Status = "FILLED"
	StatusCanceled        Status = "CANCELED"
	StatusRejected        Status = "REJECTED"
	StatusExpired         Status = "EXPIRED"
)

var (
	// ErrInvalidTransition is returned for any move the state machine does not allow
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrUnknownStatus is returned when parsing an unrecognized status
	ErrUnknownStatus = errors.New("unknown order status")
)

var allStatuses = []Status{
	StatusDraft, StatusPreviewOK, StatusPreviewWarn, StatusPreviewError,
	StatusAccepted, StatusWorking, StatusPartiallyFilled, StatusReplaced,
	StatusFilled, StatusCanceled, StatusRejected, StatusExpired,
}

// ParseStatus converts a string to a Status
func ParseStatus(s string) (Status, error) {
	candidate := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, status := range allStatuses {
		if status == candidate {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// IsPreview reports whether s is one of the preview results
func (s Status) IsPreview() bool {
	return s == StatusPreviewOK || s == StatusPreviewWarn || s == StatusPreviewError
}

// CanSubmit reports whether an order in s may be sent to the broker
func (s Status) CanSubmit() bool {
	return s == StatusPreviewOK || s == StatusPreviewWarn
}

// IsLive reports whether the order is working at the broker
func (s Status) IsLive() bool {
	return s == StatusAccepted || s == StatusWorking || s == StatusPartiallyFilled
}

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired, StatusReplaced:
		return true
	}
	return false
}

// IsBrokerState reports whether s can be reported by a broker after submission
func (s Status) IsBrokerState() bool {
	return s.IsLive() || s.IsTerminal()
}

// CanTransition reports whether the state machine allows from -> to.
//
//	DRAFT          -> any preview state, CANCELED
//	preview state  -> any preview state (re-preview), CANCELED
//	PREVIEW_OK/WARN-> any broker state (submit)
//	live state     -> any broker state
//	terminal       -> nothing
func CanTransition(from, to Status) bool {
	switch {
	case from.IsTerminal():
		return false
	case from == StatusDraft:
		return to.IsPreview() || to == StatusCanceled
	case from.IsPreview():
		if to.IsPreview() || to == StatusCanceled {
			return true
		}
		return from.CanSubmit() && to.IsBrokerState()
	case from.IsLive():
		return to.IsBrokerState()
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition when from -> to is not allowed
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

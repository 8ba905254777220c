package ledger

import (
	"errors"
)

// Error kinds. Every failed operation returns an *Error whose Kind is one of
// these, so callers can test with errors.Is.
var (
	ErrUnknownAsset        = errors.New("unknown asset")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidRecipient    = errors.New("invalid recipient")
	ErrOutOfRange          = errors.New("out of range")
	ErrInvalidConfig       = errors.New("invalid config")
	ErrConfigMissing       = errors.New("profit config missing")
	ErrPayoutFailed        = errors.New("payout failed")
	ErrAlreadyListed       = errors.New("already listed")
	ErrNotListed           = errors.New("not listed")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrSettlementFailed    = errors.New("settlement failed")
)

var kindCodes = []struct {
	kind error
	code string
}{
	{ErrUnknownAsset, "unknown_asset"},
	{ErrUnauthorized, "unauthorized"},
	{ErrInvalidRecipient, "invalid_recipient"},
	{ErrOutOfRange, "out_of_range"},
	{ErrInvalidConfig, "invalid_config"},
	{ErrConfigMissing, "config_missing"},
	{ErrPayoutFailed, "payout_failed"},
	{ErrAlreadyListed, "already_listed"},
	{ErrNotListed, "not_listed"},
	{ErrInvalidPrice, "invalid_price"},
	{ErrInsufficientPayment, "insufficient_payment"},
	{ErrSettlementFailed, "settlement_failed"},
}

// Error reports a rejected ledger operation.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Kind.Error()
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Code returns the snake_case name of the error kind carried by err, or
// "internal" when err is not a ledger error.
func Code(err error) string {
	for _, kc := range kindCodes {
		if errors.Is(err, kc.kind) {
			return kc.code
		}
	}
	return "internal"
}

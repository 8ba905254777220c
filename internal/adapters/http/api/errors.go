package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/modelmarket/internal/adapters/repository"
	"github.com/okian/modelmarket/internal/domain/funds"
	"github.com/okian/modelmarket/internal/domain/ledger"
	"github.com/okian/modelmarket/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrDuplicate  = errors.New("duplicate request")
)

// Wrap annotates err with the operation name.
func Wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// WrapKind annotates err with the operation name and an error kind.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// NewKind returns an error of kind for op.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

var ledgerStatus = map[string]int{
	"unknown_asset":        http.StatusNotFound,
	"not_listed":           http.StatusNotFound,
	"unauthorized":         http.StatusForbidden,
	"invalid_recipient":    http.StatusBadRequest,
	"out_of_range":         http.StatusBadRequest,
	"invalid_config":       http.StatusBadRequest,
	"invalid_price":        http.StatusBadRequest,
	"config_missing":       http.StatusConflict,
	"already_listed":       http.StatusConflict,
	"insufficient_payment": http.StatusPaymentRequired,
	"payout_failed":        http.StatusUnprocessableEntity,
	"settlement_failed":    http.StatusUnprocessableEntity,
}

// classify maps an error to an HTTP status and a response code.
func classify(err error) (int, string) {
	if code := ledger.Code(err); code != "internal" {
		return ledgerStatus[code], code
	}
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrInvalidAddress),
		errors.Is(err, model.ErrInvalidAmount),
		errors.Is(err, funds.ErrInvalidAccount),
		errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, funds.ErrOverflow):
		return http.StatusUnprocessableEntity, "overflow"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	}
	return http.StatusInternalServerError, "internal_error"
}

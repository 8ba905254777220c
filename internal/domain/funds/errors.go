package funds

import "errors"

// Sentinel kinds for funds errors.
var (
	ErrRejected          = errors.New("recipient rejected funds")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOverflow          = errors.New("balance overflow")
	ErrInvalidAccount    = errors.New("invalid account")
	ErrRollback          = errors.New("rollback failed")
)

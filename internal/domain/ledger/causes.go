package ledger

import "errors"

// Causes attached to error kinds to explain a rejection.
var (
	errEmptyConfig        = errors.New("no beneficiaries")
	errLengthMismatch     = errors.New("beneficiaries and shares differ in length")
	errZeroShare          = errors.New("share must be positive")
	errZeroBeneficiary    = errors.New("beneficiary must not be the zero address")
	errShareOverflow      = errors.New("share sum overflows")
	errShareSum           = errors.New("shares must sum to 100")
	errNotApproved        = errors.New("marketplace is not approved for this asset")
	errNotOwner           = errors.New("caller is not the owner")
	errNotOwnerOrApproved = errors.New("caller is neither owner nor approved")
	errInCustody          = errors.New("asset is held in marketplace custody")
	errCustodian          = errors.New("custodian identities cannot act directly")
	errNotSeller          = errors.New("caller is not the seller")
	errSelfApproval       = errors.New("approval to current owner")
	errZeroPrice          = errors.New("price must be positive")
	errInvalidFee         = errors.New("fee basis points must be within 0..10000")
	errDuplicateCustodian = errors.New("address already serves as a marketplace")
)

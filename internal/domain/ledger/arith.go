package ledger

import (
	"math/bits"

	"github.com/okian/modelmarket/internal/domain/model"
)

// MaxFeeBps is 100% expressed in basis points.
const MaxFeeBps = 10_000

// mulDiv returns floor(a*b/d) using a 128-bit intermediate product.
// ok is false when the quotient does not fit in 64 bits or d is zero.
func mulDiv(a, b, d uint64) (uint64, bool) {
	if d == 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, false
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, true
}

// SplitProfits divides amount by percentage shares. Each payout is
// floor(amount*share/100); whatever integer division leaves over goes to the
// last share so the payouts always add up to amount. shares must be a valid
// profit split (non-empty, positive, summing to 100).
func SplitProfits(amount model.Amount, shares []uint64) []model.Amount {
	out := make([]model.Amount, len(shares))
	if len(shares) == 0 {
		return out
	}
	var paid uint64
	for i, share := range shares {
		// share <= 100 keeps the quotient <= amount.
		q, _ := mulDiv(uint64(amount), share, model.TotalShares)
		out[i] = model.Amount(q)
		paid += q
	}
	out[len(out)-1] += amount - model.Amount(paid)
	return out
}

// Fee returns floor(price*feeBps/10000).
func Fee(price model.Amount, feeBps uint64) model.Amount {
	q, _ := mulDiv(uint64(price), feeBps, MaxFeeBps)
	return model.Amount(q)
}

// validateProfitConfig checks the ProfitConfig invariants and returns the
// reason for rejection, or nil.
func validateProfitConfig(beneficiaries []model.Address, shares []uint64) error {
	switch {
	case len(beneficiaries) == 0:
		return errEmptyConfig
	case len(beneficiaries) != len(shares):
		return errLengthMismatch
	}
	var sum uint64
	for i, share := range shares {
		if share == 0 {
			return errZeroShare
		}
		if beneficiaries[i].IsZero() {
			return errZeroBeneficiary
		}
		s, carry := bits.Add64(sum, share, 0)
		if carry != 0 {
			return errShareOverflow
		}
		sum = s
	}
	if sum != model.TotalShares {
		return errShareSum
	}
	return nil
}

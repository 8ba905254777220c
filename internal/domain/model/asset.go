package model

// AssetID uniquely identifies a minted asset. Ids start at 1.
type AssetID uint64

// MaxCompletionRate bounds Metrics.CompletionRate.
const MaxCompletionRate = 100

// TotalShares is the sum every ProfitConfig must reach.
const TotalShares = 100

// Asset is the identity record of a minted asset.
type Asset struct {
	ID       AssetID `json:"id"`
	Owner    Address `json:"owner"`
	URI      string  `json:"uri"`
	Approved Address `json:"approved,omitempty"`
}

// Metrics is the performance snapshot of an asset. RewardRate and
// ContributionScore are 18-decimal fixed-point values.
type Metrics struct {
	RewardRate        uint64 `json:"reward_rate"`
	CompletionRate    uint64 `json:"completion_rate"`
	ContributionScore uint64 `json:"contribution_score"`
}

// ProfitConfig splits an asset's income among beneficiaries by percentage.
type ProfitConfig struct {
	Beneficiaries []Address `json:"beneficiaries"`
	Shares        []uint64  `json:"shares"`
}

// Clone returns a deep copy so callers cannot alias ledger state.
func (p ProfitConfig) Clone() ProfitConfig {
	out := ProfitConfig{
		Beneficiaries: make([]Address, len(p.Beneficiaries)),
		Shares:        make([]uint64, len(p.Shares)),
	}
	copy(out.Beneficiaries, p.Beneficiaries)
	copy(out.Shares, p.Shares)
	return out
}

// Listing is the marketplace state of one asset.
type Listing struct {
	Seller   Address `json:"seller"`
	Price    Amount  `json:"price"`
	IsActive bool    `json:"is_active"`
}

// Payout is one value movement to a recipient.
type Payout struct {
	To     Address `json:"to"`
	Amount Amount  `json:"amount"`
}

// Settlement describes the value movements of a completed purchase.
type Settlement struct {
	Buyer          Address `json:"buyer"`
	Seller         Address `json:"seller"`
	Price          Amount  `json:"price"`
	Fee            Amount  `json:"fee"`
	SellerProceeds Amount  `json:"seller_proceeds"`
	Refund         Amount  `json:"refund"`
}

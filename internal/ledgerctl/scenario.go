package ledgerctl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/modelmarket/internal/domain/ledger"
	"github.com/okian/modelmarket/internal/domain/model"
	"github.com/okian/modelmarket/pkg/logger"
)

// ErrVerification is returned when the server state after a scenario does
// not match what the scenario predicted.
var ErrVerification = errors.New("scenario verification failed")

// Scenario describes the deploy-and-smoke flow: a seller mints an asset,
// publishes metrics, splits profits between two beneficiaries, then sells the
// asset to a buyer through the marketplace.
type Scenario struct {
	Seller        model.Address
	Buyer         model.Address
	Beneficiaries []model.Address
	Shares        []uint64
	URI           string
	Metrics       model.Metrics
	Distribution  model.Amount
	Price         model.Amount
	// Marketplace and FeeRecipient are read from /stats when empty.
	Marketplace  model.Address
	FeeRecipient model.Address
	FeeBps       *uint64
}

// DefaultScenario returns the reference flow: metrics 0.8/90/0.6, a 60/40
// split of 1.0 and a sale at 1.0.
func DefaultScenario() Scenario {
	return Scenario{
		Seller: model.MustParseAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8"),
		Buyer:  model.MustParseAddress("0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc"),
		Beneficiaries: []model.Address{
			model.MustParseAddress("0x90f79bf6eb2c4f870365e785982e1f101e93b906"),
			model.MustParseAddress("0x15d34aaf54267db7d7c367839aaf71a00a2c6a65"),
		},
		Shares: []uint64{60, 40},
		URI:    "ipfs://QmTest123",
		Metrics: model.Metrics{
			RewardRate:        uint64(model.MustParseEther("0.8")),
			CompletionRate:    90,
			ContributionScore: uint64(model.MustParseEther("0.6")),
		},
		Distribution: model.MustParseEther("1"),
		Price:        model.MustParseEther("1"),
	}
}

// Step is one executed scenario step.
type Step struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
	Detail   string        `json:"detail,omitempty"`
}

// Report summarizes a scenario run.
type Report struct {
	AssetID    model.AssetID    `json:"asset_id"`
	Steps      []Step           `json:"steps"`
	Payouts    []model.Payout   `json:"payouts"`
	Settlement model.Settlement `json:"settlement"`
	Duration   time.Duration    `json:"duration_ns"`
}

type balances map[model.Address]model.Amount

// Run executes the scenario and verifies owner and balance changes. Balances
// are compared as deltas, so the server may already hold other state.
func Run(ctx context.Context, c *Client, sc Scenario, log logger.Logger) (*Report, error) {
	if log == nil {
		log = logger.Nop()
	}
	if len(sc.Beneficiaries) != len(sc.Shares) {
		return nil, fmt.Errorf("%w: %d beneficiaries for %d shares", ErrVerification, len(sc.Beneficiaries), len(sc.Shares))
	}
	report := &Report{}
	start := time.Now()
	step := func(name string, fn func() (string, error)) error {
		t := time.Now()
		detail, err := fn()
		if err != nil {
			log.Error(ctx, "scenario step failed", logger.String("step", name), logger.Error(err))
			return fmt.Errorf("%s: %w", name, err)
		}
		report.Steps = append(report.Steps, Step{Name: name, Duration: time.Since(t), Detail: detail})
		log.Info(ctx, "scenario step", logger.String("step", name), logger.String("detail", detail))
		return nil
	}

	if err := step("discover", func() (string, error) {
		stats, err := c.Stats(ctx)
		if err != nil {
			return "", err
		}
		if sc.Marketplace == "" {
			sc.Marketplace = stats.Marketplace
		}
		if sc.FeeRecipient == "" {
			sc.FeeRecipient = stats.FeeRecipient
		}
		if sc.FeeBps == nil {
			bps := stats.FeeBps
			sc.FeeBps = &bps
		}
		if sc.Marketplace == "" || sc.FeeRecipient == "" {
			return "", fmt.Errorf("%w: server did not report marketplace identities", ErrVerification)
		}
		return fmt.Sprintf("marketplace=%s fee_bps=%d", sc.Marketplace, *sc.FeeBps), nil
	}); err != nil {
		return nil, err
	}

	watched := append([]model.Address{sc.Seller, sc.Buyer, sc.FeeRecipient}, sc.Beneficiaries...)
	before, err := snapshot(ctx, c, watched)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	steps := []struct {
		name string
		fn   func() (string, error)
	}{
		{"deposit", func() (string, error) {
			if _, err := c.Deposit(ctx, sc.Seller, sc.Distribution); err != nil {
				return "", err
			}
			_, err := c.Deposit(ctx, sc.Buyer, sc.Price)
			return "", err
		}},
		{"mint", func() (string, error) {
			id, err := c.Mint(ctx, sc.Seller, sc.Seller, sc.URI)
			report.AssetID = id
			return fmt.Sprintf("asset=%d", id), err
		}},
		{"update_metrics", func() (string, error) {
			return "", c.UpdateMetrics(ctx, sc.Seller, report.AssetID, sc.Metrics)
		}},
		{"set_profit_config", func() (string, error) {
			return "", c.SetProfitConfig(ctx, sc.Seller, report.AssetID,
				model.ProfitConfig{Beneficiaries: sc.Beneficiaries, Shares: sc.Shares})
		}},
		{"distribute_profits", func() (string, error) {
			payouts, err := c.Distribute(ctx, sc.Seller, report.AssetID, sc.Distribution)
			report.Payouts = payouts
			return fmt.Sprintf("payouts=%d", len(payouts)), err
		}},
		{"approve", func() (string, error) {
			return "", c.Approve(ctx, sc.Seller, report.AssetID, sc.Marketplace)
		}},
		{"list", func() (string, error) {
			return "", c.List(ctx, sc.Seller, report.AssetID, sc.Price)
		}},
		{"buy", func() (string, error) {
			s, err := c.Buy(ctx, sc.Buyer, report.AssetID, sc.Price)
			report.Settlement = s
			return fmt.Sprintf("fee=%s proceeds=%s", s.Fee, s.SellerProceeds), err
		}},
		{"verify", func() (string, error) {
			return "", verify(ctx, c, sc, report, before)
		}},
	}
	for _, s := range steps {
		if err := step(s.name, s.fn); err != nil {
			return report, err
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

func snapshot(ctx context.Context, c *Client, addrs []model.Address) (balances, error) {
	out := make(balances, len(addrs))
	for _, a := range addrs {
		bal, err := c.Balance(ctx, a)
		if err != nil {
			return nil, err
		}
		out[a] = bal
	}
	return out, nil
}

// verify checks the asset changed hands and every watched balance moved by
// exactly the amount the payout and fee arithmetic predicts.
func verify(ctx context.Context, c *Client, sc Scenario, report *Report, before balances) error {
	asset, err := c.Asset(ctx, report.AssetID)
	if err != nil {
		return err
	}
	if asset.Owner != sc.Buyer {
		return fmt.Errorf("%w: owner is %s, want %s", ErrVerification, asset.Owner, sc.Buyer)
	}
	listing, err := c.Listing(ctx, report.AssetID)
	if err != nil {
		return err
	}
	if listing.IsActive {
		return fmt.Errorf("%w: listing still active", ErrVerification)
	}
	metrics, err := c.Metrics(ctx, report.AssetID)
	if err != nil {
		return err
	}
	if metrics != sc.Metrics {
		return fmt.Errorf("%w: metrics are %+v, want %+v", ErrVerification, metrics, sc.Metrics)
	}

	fee := ledger.Fee(sc.Price, *sc.FeeBps)
	// Deposits are spent in full, so every watched balance only grows.
	want := balances{}
	want[sc.Seller] += sc.Price - fee
	want[sc.FeeRecipient] += fee
	for i, amt := range ledger.SplitProfits(sc.Distribution, sc.Shares) {
		want[sc.Beneficiaries[i]] += amt
	}

	after, err := snapshot(ctx, c, mapKeys(before))
	if err != nil {
		return err
	}
	for a, prev := range before {
		if got := after[a] - prev; got != want[a] {
			return fmt.Errorf("%w: balance of %s moved by %d, want %d", ErrVerification, a, got, want[a])
		}
	}
	return nil
}

func mapKeys(b balances) []model.Address {
	out := make([]model.Address, 0, len(b))
	for a := range b {
		out = append(out, a)
	}
	return out
}

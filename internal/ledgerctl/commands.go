package ledgerctl

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/modelmarket/internal/domain/model"
	"github.com/okian/modelmarket/pkg/logger"
)

const (
	defaultBaseURL = "http://localhost:9080"
	defaultTimeout = 30 * time.Second
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	BaseURL string
	Timeout time.Duration
	Caller  string
	Verbose bool

	client *Client
	log    logger.Logger
}

// NewRootCommand creates the ledgerctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate a running model marketplace ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr())); err != nil {
				return err
			}
			if opts.Verbose {
				_ = logger.SetLevelString("debug")
			}
			opts.log = logger.Named("ledgerctl")
			opts.client = NewClient(opts.BaseURL, opts.Timeout, WithClientLogger(opts.log))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.BaseURL, "url", defaultBaseURL, "base URL of the ledger server")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	cmd.PersistentFlags().StringVar(&opts.Caller, "caller", "", "address sent as X-Caller")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log every request")

	cmd.AddCommand(
		newScenarioCommand(opts),
		newHealthCommand(opts),
		newDepositCommand(opts),
		newBalanceCommand(opts),
		newMintCommand(opts),
		newAssetCommand(opts),
		newTransferCommand(opts),
		newApproveCommand(opts),
		newMetricsCommand(opts),
		newProfitConfigCommand(opts),
		newDistributeCommand(opts),
		newListCommand(opts),
		newCancelCommand(opts),
		newBuyCommand(opts),
		newLeaderboardCommand(opts),
	)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *RootOptions) caller() (model.Address, error) {
	if o.Caller == "" {
		return "", fmt.Errorf("--caller is required")
	}
	return model.ParseAddress(o.Caller)
}

func parseAssetID(s string) (model.AssetID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid asset id %q", s)
	}
	return model.AssetID(id), nil
}

func newScenarioCommand(opts *RootOptions) *cobra.Command {
	sc := DefaultScenario()
	var price, distribution string

	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Run the deploy-and-smoke flow and verify the resulting balances",
		Long: `Deposits funds, mints an asset to the seller, publishes metrics, sets a
60/40 profit split, distributes, lists the asset and buys it from a second
account. Every balance change is checked against the expected payout and fee.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if sc.Price, err = model.ParseEther(price); err != nil {
				return fmt.Errorf("--price: %w", err)
			}
			if sc.Distribution, err = model.ParseEther(distribution); err != nil {
				return fmt.Errorf("--distribute: %w", err)
			}
			report, err := Run(cmd.Context(), opts.client, sc, opts.log)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&price, "price", "1", "listing price in whole tokens")
	cmd.Flags().StringVar(&distribution, "distribute", "1", "profit distribution in whole tokens")
	return cmd
}

func newHealthCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the server is up and print its stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.client.Health(cmd.Context()); err != nil {
				return err
			}
			stats, err := opts.client.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newDepositCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <address> <amount>",
		Short: "Credit whole tokens to an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := model.ParseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := model.ParseEther(args[1])
			if err != nil {
				return err
			}
			acct, err := opts.client.Deposit(cmd.Context(), addr, amount)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), acct)
		},
	}
}

func newBalanceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Print an account balance in base units and whole tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := model.ParseAddress(args[0])
			if err != nil {
				return err
			}
			bal, err := opts.client.Balance(cmd.Context(), addr)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", bal, model.FormatUnits(uint64(bal), model.EtherDecimals))
			return err
		},
	}
}

func newMintCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mint <to> <uri>",
		Short: "Mint an asset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := opts.caller()
			if err != nil {
				return err
			}
			to, err := model.ParseAddress(args[0])
			if err != nil {
				return err
			}
			id, err := opts.client.Mint(cmd.Context(), caller, to, args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}
}

func newAssetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "asset <id>",
		Short: "Show an asset with its listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			asset, err := opts.client.Asset(cmd.Context(), id)
			if err != nil {
				return err
			}
			listing, err := opts.client.Listing(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Asset   model.Asset   `json:"asset"`
				Listing model.Listing `json:"listing"`
			}{asset, listing.Listing})
		},
	}
}

func newTransferCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <id> <to>",
		Short: "Transfer an asset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, id, err := callerAndAsset(opts, args[0])
			if err != nil {
				return err
			}
			to, err := model.ParseAddress(args[1])
			if err != nil {
				return err
			}
			return opts.client.Transfer(cmd.Context(), caller, id, to)
		},
	}
}

func newApproveCommand(opts *RootOptions) *cobra.Command {
	var all, revoke bool
	cmd := &cobra.Command{
		Use:   "approve <id|-> <operator>",
		Short: "Approve an operator for one asset, or for all assets with --all",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := opts.caller()
			if err != nil {
				return err
			}
			operator, err := model.ParseAddress(args[1])
			if err != nil {
				return err
			}
			if all {
				return opts.client.SetApprovalForAll(cmd.Context(), caller, operator, !revoke)
			}
			id, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			return opts.client.Approve(cmd.Context(), caller, id, operator)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "grant operator rights over every asset of the caller")
	cmd.Flags().BoolVar(&revoke, "revoke", false, "with --all, revoke instead of grant")
	return cmd
}

func newMetricsCommand(opts *RootOptions) *cobra.Command {
	var reward, contribution string
	var completion uint64
	cmd := &cobra.Command{
		Use:   "metrics <id>",
		Short: "Publish performance metrics for an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, id, err := callerAndAsset(opts, args[0])
			if err != nil {
				return err
			}
			r, err := model.ParseEther(reward)
			if err != nil {
				return fmt.Errorf("--reward: %w", err)
			}
			c, err := model.ParseEther(contribution)
			if err != nil {
				return fmt.Errorf("--contribution: %w", err)
			}
			return opts.client.UpdateMetrics(cmd.Context(), caller, id, model.Metrics{
				RewardRate:        uint64(r),
				CompletionRate:    completion,
				ContributionScore: uint64(c),
			})
		},
	}
	cmd.Flags().StringVar(&reward, "reward", "0", "reward rate as a fraction, e.g. 0.8")
	cmd.Flags().Uint64Var(&completion, "completion", 0, "completion rate percentage 0..100")
	cmd.Flags().StringVar(&contribution, "contribution", "0", "contribution score as a fraction, e.g. 0.6")
	return cmd
}

func newProfitConfigCommand(opts *RootOptions) *cobra.Command {
	var beneficiaries []string
	var shares []uint
	cmd := &cobra.Command{
		Use:   "profit-config <id>",
		Short: "Set the profit split of an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, id, err := callerAndAsset(opts, args[0])
			if err != nil {
				return err
			}
			cfg := model.ProfitConfig{Shares: make([]uint64, len(shares))}
			for i, s := range shares {
				cfg.Shares[i] = uint64(s)
			}
			for _, raw := range beneficiaries {
				addr, err := model.ParseAddress(raw)
				if err != nil {
					return err
				}
				cfg.Beneficiaries = append(cfg.Beneficiaries, addr)
			}
			return opts.client.SetProfitConfig(cmd.Context(), caller, id, cfg)
		},
	}
	cmd.Flags().StringSliceVar(&beneficiaries, "beneficiary", nil, "beneficiary address (repeatable)")
	cmd.Flags().UintSliceVar(&shares, "share", nil, "share percentage, one per beneficiary (repeatable)")
	return cmd
}

func newDistributeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "distribute <id> <amount>",
		Short: "Pay whole tokens from the caller to an asset's beneficiaries",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, id, err := callerAndAsset(opts, args[0])
			if err != nil {
				return err
			}
			amount, err := model.ParseEther(args[1])
			if err != nil {
				return err
			}
			payouts, err := opts.client.Distribute(cmd.Context(), caller, id, amount)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), payouts)
		},
	}
}

func newListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <id> <price>",
		Short: "List an asset for sale at a price in whole tokens",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, id, err := callerAndAsset(opts, args[0])
			if err != nil {
				return err
			}
			price, err := model.ParseEther(args[1])
			if err != nil {
				return err
			}
			return opts.client.List(cmd.Context(), caller, id, price)
		},
	}
}

func newCancelCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, id, err := callerAndAsset(opts, args[0])
			if err != nil {
				return err
			}
			return opts.client.Cancel(cmd.Context(), caller, id)
		},
	}
}

func newBuyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "buy <id> <payment>",
		Short: "Buy a listed asset, paying whole tokens",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, id, err := callerAndAsset(opts, args[0])
			if err != nil {
				return err
			}
			payment, err := model.ParseEther(args[1])
			if err != nil {
				return err
			}
			s, err := opts.client.Buy(cmd.Context(), caller, id, payment)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	}
}

func newLeaderboardCommand(opts *RootOptions) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the top ranked assets by performance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := opts.client.Leaderboard(cmd.Context(), top)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of entries")
	return cmd
}

func callerAndAsset(opts *RootOptions, rawID string) (model.Address, model.AssetID, error) {
	caller, err := opts.caller()
	if err != nil {
		return "", 0, err
	}
	id, err := parseAssetID(rawID)
	if err != nil {
		return "", 0, err
	}
	return caller, id, nil
}

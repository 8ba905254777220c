// Package ledgerctl drives a running ledger server over its HTTP API.
package ledgerctl

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/okian/modelmarket/internal/domain/model"
	"github.com/okian/modelmarket/internal/domain/types"
	"github.com/okian/modelmarket/pkg/logger"
)

const (
	headerCaller      = "X-Caller"
	headerIdempotency = "Idempotency-Key"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// ServerStats is the subset of GET /stats the CLI reads.
type ServerStats struct {
	Started      bool          `json:"started"`
	FeeBps       uint64        `json:"feeBps"`
	Marketplace  model.Address `json:"marketplace"`
	FeeRecipient model.Address `json:"feeRecipient"`
}

// Account is an address and its spendable balance.
type Account struct {
	Address model.Address `json:"address"`
	Balance model.Amount  `json:"balance"`
}

// ListingView is a listing as served by GET /listings/{id}.
type ListingView struct {
	ID model.AssetID `json:"id"`
	model.Listing
}

// Client is a typed wrapper over the ledger HTTP API.
type Client struct {
	rest    *resty.Client
	baseURL string
	logger  logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger logs each request and failed response at Debug.
func WithClientLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		rest:    resty.New().SetTimeout(timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rest.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		c.logger.Debug(req.Context(), "request", logger.String("method", req.Method), logger.String("url", req.URL))
		return nil
	})
	c.rest.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		if resp != nil && resp.IsError() {
			c.logger.Debug(resp.Request.Context(), "error response",
				logger.Int("status", resp.StatusCode()), logger.String("body", resp.String()))
		}
		return nil
	})
	return c
}

// request starts a call. Mutating calls carry a fresh idempotency key so a
// transport-level retry cannot apply them twice.
func (c *Client) request(ctx context.Context, caller model.Address, mutating bool) *resty.Request {
	req := c.rest.R().SetContext(ctx).SetError(&APIError{})
	if caller != "" {
		req.SetHeader(headerCaller, caller.String())
	}
	if mutating {
		req.SetHeader(headerIdempotency, uuid.NewString())
	}
	return req
}

func (c *Client) do(req *resty.Request, method, path string) error {
	resp, err := req.Execute(method, c.baseURL+path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr, _ := resp.Error().(*APIError)
		if apiErr == nil || apiErr.Code == "" {
			apiErr = &APIError{Code: "unexpected_response", Message: resp.String()}
		}
		apiErr.Status = resp.StatusCode()
		return fmt.Errorf("%s %s: %w", method, path, apiErr)
	}
	return nil
}

func assetPath(id model.AssetID, suffix string) string {
	return "/assets/" + strconv.FormatUint(uint64(id), 10) + suffix
}

func listingPath(id model.AssetID, suffix string) string {
	return "/listings/" + strconv.FormatUint(uint64(id), 10) + suffix
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(c.request(ctx, "", false), resty.MethodGet, "/healthz")
}

// Stats reads GET /stats.
func (c *Client) Stats(ctx context.Context) (ServerStats, error) {
	var out ServerStats
	err := c.do(c.request(ctx, "", false).SetResult(&out), resty.MethodGet, "/stats")
	return out, err
}

// Deposit credits amount to addr.
func (c *Client) Deposit(ctx context.Context, addr model.Address, amount model.Amount) (Account, error) {
	var out Account
	req := c.request(ctx, "", true).SetBody(map[string]model.Amount{"amount": amount}).SetResult(&out)
	err := c.do(req, resty.MethodPost, "/accounts/"+addr.String()+"/deposit")
	return out, err
}

// Balance returns the spendable balance of addr.
func (c *Client) Balance(ctx context.Context, addr model.Address) (model.Amount, error) {
	var out Account
	err := c.do(c.request(ctx, "", false).SetResult(&out), resty.MethodGet, "/accounts/"+addr.String())
	return out.Balance, err
}

// Mint creates an asset owned by to.
func (c *Client) Mint(ctx context.Context, caller, to model.Address, uri string) (model.AssetID, error) {
	var out struct {
		ID model.AssetID `json:"id"`
	}
	req := c.request(ctx, caller, true).
		SetBody(map[string]string{"to": to.String(), "uri": uri}).
		SetResult(&out)
	err := c.do(req, resty.MethodPost, "/assets")
	return out.ID, err
}

// Asset reads an asset.
func (c *Client) Asset(ctx context.Context, id model.AssetID) (model.Asset, error) {
	var out model.Asset
	err := c.do(c.request(ctx, "", false).SetResult(&out), resty.MethodGet, assetPath(id, ""))
	return out, err
}

// Transfer moves an asset to another owner.
func (c *Client) Transfer(ctx context.Context, caller model.Address, id model.AssetID, to model.Address) error {
	req := c.request(ctx, caller, true).SetBody(map[string]string{"to": to.String()})
	return c.do(req, resty.MethodPost, assetPath(id, "/transfer"))
}

// Approve sets the per-asset approval. An empty operator clears it.
func (c *Client) Approve(ctx context.Context, caller model.Address, id model.AssetID, operator model.Address) error {
	req := c.request(ctx, caller, true).SetBody(map[string]string{"operator": operator.String()})
	return c.do(req, resty.MethodPost, assetPath(id, "/approve"))
}

// SetApprovalForAll grants or revokes an operator over all of caller's assets.
func (c *Client) SetApprovalForAll(ctx context.Context, caller, operator model.Address, approved bool) error {
	body := struct {
		Operator string `json:"operator"`
		Approved bool   `json:"approved"`
	}{operator.String(), approved}
	return c.do(c.request(ctx, caller, true).SetBody(body), resty.MethodPost, "/operators")
}

// UpdateMetrics replaces an asset's performance metrics.
func (c *Client) UpdateMetrics(ctx context.Context, caller model.Address, id model.AssetID, m model.Metrics) error {
	body := struct {
		RewardRate        model.Amount `json:"reward_rate"`
		CompletionRate    uint64       `json:"completion_rate"`
		ContributionScore model.Amount `json:"contribution_score"`
	}{model.Amount(m.RewardRate), m.CompletionRate, model.Amount(m.ContributionScore)}
	return c.do(c.request(ctx, caller, true).SetBody(body), resty.MethodPut, assetPath(id, "/metrics"))
}

// Metrics reads an asset's performance metrics.
func (c *Client) Metrics(ctx context.Context, id model.AssetID) (model.Metrics, error) {
	var out model.Metrics
	err := c.do(c.request(ctx, "", false).SetResult(&out), resty.MethodGet, assetPath(id, "/metrics"))
	return out, err
}

// SetProfitConfig replaces an asset's profit split.
func (c *Client) SetProfitConfig(ctx context.Context, caller model.Address, id model.AssetID, cfg model.ProfitConfig) error {
	return c.do(c.request(ctx, caller, true).SetBody(cfg), resty.MethodPut, assetPath(id, "/profit-config"))
}

// Distribute pays amount from caller to the asset's beneficiaries.
func (c *Client) Distribute(ctx context.Context, caller model.Address, id model.AssetID, amount model.Amount) ([]model.Payout, error) {
	var out struct {
		Payouts []model.Payout `json:"payouts"`
	}
	req := c.request(ctx, caller, true).SetBody(map[string]model.Amount{"amount": amount}).SetResult(&out)
	err := c.do(req, resty.MethodPost, assetPath(id, "/distributions"))
	return out.Payouts, err
}

// List puts an asset up for sale.
func (c *Client) List(ctx context.Context, caller model.Address, id model.AssetID, price model.Amount) error {
	body := struct {
		ID    model.AssetID `json:"id"`
		Price model.Amount  `json:"price"`
	}{id, price}
	return c.do(c.request(ctx, caller, true).SetBody(body), resty.MethodPost, "/listings")
}

// Listing reads a listing.
func (c *Client) Listing(ctx context.Context, id model.AssetID) (ListingView, error) {
	var out ListingView
	err := c.do(c.request(ctx, "", false).SetResult(&out), resty.MethodGet, listingPath(id, ""))
	return out, err
}

// Cancel withdraws a listing.
func (c *Client) Cancel(ctx context.Context, caller model.Address, id model.AssetID) error {
	return c.do(c.request(ctx, caller, true), resty.MethodDelete, listingPath(id, ""))
}

// Buy purchases a listed asset.
func (c *Client) Buy(ctx context.Context, caller model.Address, id model.AssetID, payment model.Amount) (model.Settlement, error) {
	var out model.Settlement
	req := c.request(ctx, caller, true).SetBody(map[string]model.Amount{"payment": payment}).SetResult(&out)
	err := c.do(req, resty.MethodPost, listingPath(id, "/purchase"))
	return out, err
}

// Leaderboard reads the top n ranked assets.
func (c *Client) Leaderboard(ctx context.Context, n int) ([]types.Entry, error) {
	var out []types.Entry
	req := c.request(ctx, "", false).SetQueryParam("limit", strconv.Itoa(n)).SetResult(&out)
	err := c.do(req, resty.MethodGet, "/leaderboard")
	return out, err
}

package binance

import (
	"context"
	"net/http"

	"github.com/cockroachdb/apd/v3"

	"nakula/pkg/core"
)

// GetAccount fetches account permissions, commission rates, and balances.
func (c *Client) GetAccount(ctx context.Context, opts ...CallOption) (*AccountInfo, error) {
	recvWindow, params := c.resolveOptions(opts)
	req := core.NewRequest(http.MethodGet, "/api/v3/account").
		SetWeight(10).
		SetQueryParams(params)

	resp, err := c.doSigned(ctx, req, recvWindow)
	if err != nil {
		return nil, err
	}
	out, err := parse[accountResponse](resp)
	if err != nil {
		return nil, err
	}
	return out.toAccountInfo(), nil
}

// GetMyTrades lists the account's executed trades for a symbol. Use
// WithTimeRange, WithFromID, and WithLimit to page through the history.
func (c *Client) GetMyTrades(ctx context.Context, symbol string, opts ...CallOption) ([]core.Trade, error) {
	if symbol == "" {
		return nil, core.NewArgumentError("symbol is required")
	}

	recvWindow, params := c.resolveOptions(opts)
	req := core.NewRequest(http.MethodGet, "/api/v3/myTrades").
		SetWeight(10).
		SetQuery("symbol", symbol).
		SetQueryParams(params)

	resp, err := c.doSigned(ctx, req, recvWindow)
	if err != nil {
		return nil, err
	}
	out, err := parse[[]myTradeResponse](resp)
	if err != nil {
		return nil, err
	}

	trades := make([]core.Trade, 0, len(*out))
	for _, t := range *out {
		trades = append(trades, t.toTrade())
	}
	return trades, nil
}

// Withdraw submits a withdrawal of the given asset amount to an external
// address. The response is enveloped: a 200 status can still carry a
// failure, which comes back as a server error.
func (c *Client) Withdraw(ctx context.Context, asset, address string, amount apd.Decimal, opts ...CallOption) (*WithdrawResult, error) {
	if asset == "" {
		return nil, core.NewArgumentError("asset is required")
	}
	if address == "" {
		return nil, core.NewArgumentError("address is required")
	}
	if amount.Sign() <= 0 {
		return nil, core.NewArgumentError("amount must be positive")
	}

	recvWindow, params := c.resolveOptions(opts)
	req := core.NewRequest(http.MethodPost, "/wapi/v3/withdraw.html").
		SetQuery("asset", asset).
		SetQuery("address", address).
		SetQuery("amount", amount.Text('f')).
		SetQueryParams(params)

	resp, err := c.doSigned(ctx, req, recvWindow)
	if err != nil {
		return nil, err
	}
	return parseWrapped[WithdrawResult](resp)
}

// GetWithdrawHistory lists past withdrawals, optionally filtered to one
// asset.
func (c *Client) GetWithdrawHistory(ctx context.Context, asset string, opts ...CallOption) ([]WithdrawEntry, error) {
	recvWindow, params := c.resolveOptions(opts)
	req := core.NewRequest(http.MethodGet, "/wapi/v3/withdrawHistory.html").
		SetQueryParams(params)
	if asset != "" {
		req.SetQuery("asset", asset)
	}

	resp, err := c.doSigned(ctx, req, recvWindow)
	if err != nil {
		return nil, err
	}
	out, err := parseWrapped[[]WithdrawEntry](resp)
	if err != nil {
		return nil, err
	}
	return *out, nil
}

// GetDepositHistory lists past deposits, optionally filtered to one asset.
func (c *Client) GetDepositHistory(ctx context.Context, asset string, opts ...CallOption) ([]DepositEntry, error) {
	recvWindow, params := c.resolveOptions(opts)
	req := core.NewRequest(http.MethodGet, "/wapi/v3/depositHistory.html").
		SetQueryParams(params)
	if asset != "" {
		req.SetQuery("asset", asset)
	}

	resp, err := c.doSigned(ctx, req, recvWindow)
	if err != nil {
		return nil, err
	}
	out, err := parseWrapped[[]DepositEntry](resp)
	if err != nil {
		return nil, err
	}
	return *out, nil
}

// GetTradeFee fetches the commission schedule, for one symbol or for all
// symbols when symbol is empty.
func (c *Client) GetTradeFee(ctx context.Context, symbol string, opts ...CallOption) ([]TradeFee, error) {
	recvWindow, params := c.resolveOptions(opts)
	req := core.NewRequest(http.MethodGet, "/wapi/v3/tradeFee.html").
		SetQueryParams(params)
	if symbol != "" {
		req.SetQuery("symbol", symbol)
	}

	resp, err := c.doSigned(ctx, req, recvWindow)
	if err != nil {
		return nil, err
	}
	out, err := parseWrapped[[]TradeFee](resp)
	if err != nil {
		return nil, err
	}
	return *out, nil
}

// GetAssetDetail fetches per-asset deposit and withdrawal properties,
// keyed by asset symbol.
func (c *Client) GetAssetDetail(ctx context.Context, opts ...CallOption) (map[string]AssetDetail, error) {
	recvWindow, params := c.resolveOptions(opts)
	req := core.NewRequest(http.MethodGet, "/wapi/v3/assetDetail.html").
		SetQueryParams(params)

	resp, err := c.doSigned(ctx, req, recvWindow)
	if err != nil {
		return nil, err
	}
	out, err := parseWrapped[map[string]AssetDetail](resp)
	if err != nil {
		return nil, err
	}
	return *out, nil
}

// GetDustLog lists past conversions of small balances ("dust") into BNB.
func (c *Client) GetDustLog(ctx context.Context, opts ...CallOption) ([]DustLog, error) {
	recvWindow, params := c.resolveOptions(opts)
	req := core.NewRequest(http.MethodGet, "/wapi/v3/userAssetDribbletLog.html").
		SetQueryParams(params)

	resp, err := c.doSigned(ctx, req, recvWindow)
	if err != nil {
		return nil, err
	}
	out, err := parseWrapped[[]DustLog](resp)
	if err != nil {
		return nil, err
	}
	return *out, nil
}

package binance

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"nakula/pkg/core"
)

// Ping checks REST connectivity. A nil error means the exchange answered.
func (c *Client) Ping(ctx context.Context) error {
	req := core.NewRequest(http.MethodGet, "/api/v3/ping")
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	return translateError(resp)
}

// ServerTime fetches the exchange's current time. It is also the probe the
// clock sync uses, so it never consults the tracked offset itself.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	req := core.NewRequest(http.MethodGet, "/api/v3/time")
	resp, err := c.do(ctx, req)
	if err != nil {
		return time.Time{}, err
	}
	out, err := parse[serverTimeResponse](resp)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(out.ServerTime), nil
}

// GetExchangeInfo fetches the full set of trading rules for every symbol.
// The result is a fresh snapshot; it does not touch the validator's cache.
func (c *Client) GetExchangeInfo(ctx context.Context) (*InfoSnapshot, error) {
	req := core.NewRequest(http.MethodGet, "/api/v3/exchangeInfo").SetWeight(10)
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	info, err := parse[exchangeInfoResponse](resp)
	if err != nil {
		return nil, err
	}
	return info.toSnapshot(), nil
}

// fetchRulesSnapshot feeds the trade-rule validator's cache.
func (c *Client) fetchRulesSnapshot(ctx context.Context) (*InfoSnapshot, error) {
	return c.GetExchangeInfo(ctx)
}

// GetTicker fetches 24-hour rolling statistics for a symbol.
func (c *Client) GetTicker(ctx context.Context, symbol string) (*core.Ticker, error) {
	if symbol == "" {
		return nil, core.NewArgumentError("symbol is required")
	}

	req := core.NewRequest(http.MethodGet, "/api/v3/ticker/24hr").
		SetQuery("symbol", symbol)
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	out, err := parse[tickerResponse](resp)
	if err != nil {
		return nil, err
	}
	return out.toTicker(), nil
}

// GetOrderBook fetches the order book for a symbol. Limit follows the
// exchange's accepted depth values; zero uses the exchange default.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, limit int) (*core.OrderBook, error) {
	if symbol == "" {
		return nil, core.NewArgumentError("symbol is required")
	}

	req := core.NewRequest(http.MethodGet, "/api/v3/depth").
		SetQuery("symbol", symbol)
	if limit > 0 {
		req.SetQuery("limit", limit)
		req.SetWeight(depthWeight(limit))
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	out, err := parse[depthResponse](resp)
	if err != nil {
		return nil, err
	}
	return out.toOrderBook(symbol)
}

// depthWeight maps an order book depth to its request weight.
func depthWeight(limit int) int {
	switch {
	case limit <= 100:
		return 1
	case limit <= 500:
		return 5
	case limit <= 1000:
		return 10
	default:
		return 50
	}
}

// GetRecentTrades fetches the most recent public trades for a symbol.
func (c *Client) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]core.Trade, error) {
	if symbol == "" {
		return nil, core.NewArgumentError("symbol is required")
	}

	req := core.NewRequest(http.MethodGet, "/api/v3/trades").
		SetQuery("symbol", symbol)
	if limit > 0 {
		req.SetQuery("limit", limit)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	out, err := parse[[]tradeResponse](resp)
	if err != nil {
		return nil, err
	}

	trades := make([]core.Trade, 0, len(*out))
	for _, t := range *out {
		trades = append(trades, t.toTrade(symbol))
	}
	return trades, nil
}

// GetKlines fetches candlestick data for a symbol at the given interval
// (e.g. "1m", "1h", "1d").
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, opts ...CallOption) ([]core.Kline, error) {
	if symbol == "" {
		return nil, core.NewArgumentError("symbol is required")
	}
	if interval == "" {
		return nil, core.NewArgumentError("interval is required")
	}

	_, params := c.resolveOptions(opts)
	req := core.NewRequest(http.MethodGet, "/api/v3/klines").
		SetQuery("symbol", symbol).
		SetQuery("interval", interval).
		SetQueryParams(params)

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	out, err := parse[[]klineResponse](resp)
	if err != nil {
		return nil, err
	}

	klines := make([]core.Kline, 0, len(*out))
	for i, raw := range *out {
		k, err := raw.toKline(symbol)
		if err != nil {
			return nil, fmt.Errorf("kline %d: %w", i, err)
		}
		klines = append(klines, k)
	}
	return klines, nil
}

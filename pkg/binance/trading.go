package binance

import (
	"context"
	"net/http"

	"github.com/cockroachdb/apd/v3"
	"resty.dev/v3"

	"nakula/pkg/core"
)

// OrderRequest describes an order to place. Price is required for limit
// order types and must be nil for market orders.
type OrderRequest struct {
	Symbol      string
	Side        core.OrderSide
	Type        core.OrderType
	Quantity    apd.Decimal
	Price       *apd.Decimal
	StopPrice   *apd.Decimal
	TimeInForce core.TimeInForce
}

func (r *OrderRequest) validateArgs() error {
	if r.Symbol == "" {
		return core.NewArgumentError("symbol is required")
	}
	if r.Quantity.Sign() <= 0 {
		return core.NewArgumentError("quantity must be positive")
	}
	switch r.Type {
	case core.TypeMarket:
		if r.Price != nil {
			return core.NewArgumentError("market orders must not carry a price")
		}
	default:
		if r.Price == nil || r.Price.Sign() <= 0 {
			return core.NewArgumentError("%s orders require a positive price", r.Type)
		}
	}
	return nil
}

// priceRequired reports whether the wire format carries a price field for
// this order type.
func (r *OrderRequest) priceRequired() bool {
	return r.Type != core.TypeMarket
}

// PlaceOrder submits an order. The order passes through the trade-rule
// check first; in clamp mode the submitted quantity and price are the
// normalized values, not the caller's.
func (c *Client) PlaceOrder(ctx context.Context, order *OrderRequest, opts ...CallOption) (*core.Order, error) {
	return c.placeOrder(ctx, order, "/api/v3/order", opts)
}

// PlaceTestOrder runs an order through the full placement path, including
// the trade-rule check and signing, but the exchange validates it without
// executing. The returned order echoes the submitted values.
func (c *Client) PlaceTestOrder(ctx context.Context, order *OrderRequest, opts ...CallOption) (*core.Order, error) {
	return c.placeOrder(ctx, order, "/api/v3/order/test", opts)
}

func (c *Client) placeOrder(ctx context.Context, order *OrderRequest, path string, opts []CallOption) (*core.Order, error) {
	if order == nil {
		return nil, core.NewArgumentError("order is required")
	}
	if err := order.validateArgs(); err != nil {
		return nil, err
	}

	outcome, err := c.rules.Validate(ctx, order.Symbol, order.Type, order.Quantity, order.Price)
	if err != nil {
		return nil, err
	}

	recvWindow, params := c.resolveOptions(opts)
	req := core.NewRequest(http.MethodPost, path).
		SetIsOrder(true).
		SetQuery("symbol", order.Symbol).
		SetQuery("side", order.Side.String()).
		SetQuery("type", order.Type.String()).
		SetQuery("quantity", outcome.Quantity.Text('f')).
		SetQueryParams(params)

	if order.priceRequired() && outcome.Price != nil {
		req.SetQuery("price", outcome.Price.Text('f'))
	}
	if order.Type == core.TypeLimit || order.Type == core.TypeStopLossLimit || order.Type == core.TypeTakeProfitLimit {
		req.SetQuery("timeInForce", order.TimeInForce.String())
	}
	if order.StopPrice != nil {
		req.SetQuery("stopPrice", order.StopPrice.Text('f'))
	}

	resp, err := c.doSigned(ctx, req, recvWindow)
	if err != nil {
		return nil, err
	}
	out, err := parse[orderResponse](resp)
	if err != nil {
		return nil, err
	}

	placed := out.toOrder()
	// The test endpoint returns an empty body; echo the submitted values so
	// the caller sees what would have gone out.
	if placed.ID == 0 && placed.Symbol == "" {
		placed.Symbol = order.Symbol
		placed.Side = order.Side
		placed.Type = order.Type
		placed.Quantity = outcome.Quantity
		if outcome.Price != nil {
			placed.Price = *outcome.Price
		}
	}
	return placed, nil
}

// orderLookupParams builds the identifier parameters shared by order query
// and cancel. Exactly one of orderID or origClientOrderID must be set.
func orderLookupParams(symbol string, orderID int64, origClientOrderID string) (core.Params, error) {
	if symbol == "" {
		return nil, core.NewArgumentError("symbol is required")
	}
	if orderID == 0 && origClientOrderID == "" {
		return nil, core.NewArgumentError("either orderID or origClientOrderID is required")
	}

	params := core.Params{"symbol": symbol}
	if orderID != 0 {
		params["orderId"] = orderID
	} else {
		params["origClientOrderId"] = origClientOrderID
	}
	return params, nil
}

// GetOrder fetches a single order by exchange ID or by the client-assigned
// order ID. Pass zero / empty for the identifier not used.
func (c *Client) GetOrder(ctx context.Context, symbol string, orderID int64, origClientOrderID string, opts ...CallOption) (*core.Order, error) {
	lookup, err := orderLookupParams(symbol, orderID, origClientOrderID)
	if err != nil {
		return nil, err
	}

	recvWindow, params := c.resolveOptions(opts)
	req := core.NewRequest(http.MethodGet, "/api/v3/order").
		SetQueryParams(lookup).
		SetQueryParams(params)

	resp, err := c.doSigned(ctx, req, recvWindow)
	if err != nil {
		return nil, err
	}
	out, err := parse[orderResponse](resp)
	if err != nil {
		return nil, err
	}
	return out.toOrder(), nil
}

// CancelOrder cancels an open order by exchange ID or by the client-assigned
// order ID. Pass zero / empty for the identifier not used.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64, origClientOrderID string, opts ...CallOption) (*core.Order, error) {
	lookup, err := orderLookupParams(symbol, orderID, origClientOrderID)
	if err != nil {
		return nil, err
	}

	recvWindow, params := c.resolveOptions(opts)
	req := core.NewRequest(http.MethodDelete, "/api/v3/order").
		SetIsOrder(true).
		SetQueryParams(lookup).
		SetQueryParams(params)

	resp, err := c.doSigned(ctx, req, recvWindow)
	if err != nil {
		return nil, err
	}
	out, err := parse[orderResponse](resp)
	if err != nil {
		return nil, err
	}
	return out.toOrder(), nil
}

// GetOpenOrders lists the account's open orders. An empty symbol queries
// all symbols, which the exchange charges at a much higher weight.
func (c *Client) GetOpenOrders(ctx context.Context, symbol string, opts ...CallOption) ([]core.Order, error) {
	recvWindow, params := c.resolveOptions(opts)
	req := core.NewRequest(http.MethodGet, "/api/v3/openOrders").
		SetQueryParams(params)
	if symbol != "" {
		req.SetQuery("symbol", symbol)
	} else {
		req.SetWeight(40)
	}

	resp, err := c.doSigned(ctx, req, recvWindow)
	if err != nil {
		return nil, err
	}
	return parseOrderList(resp)
}

// GetOrderHistory lists the account's orders for a symbol, open and closed.
// Use WithTimeRange, WithFromID, and WithLimit to page through the history.
func (c *Client) GetOrderHistory(ctx context.Context, symbol string, opts ...CallOption) ([]core.Order, error) {
	if symbol == "" {
		return nil, core.NewArgumentError("symbol is required")
	}

	recvWindow, params := c.resolveOptions(opts)
	req := core.NewRequest(http.MethodGet, "/api/v3/allOrders").
		SetWeight(10).
		SetQuery("symbol", symbol).
		SetQueryParams(params)

	resp, err := c.doSigned(ctx, req, recvWindow)
	if err != nil {
		return nil, err
	}
	return parseOrderList(resp)
}

func parseOrderList(resp *resty.Response) ([]core.Order, error) {
	out, err := parse[[]orderResponse](resp)
	if err != nil {
		return nil, err
	}
	orders := make([]core.Order, 0, len(*out))
	for _, o := range *out {
		orders = append(orders, *o.toOrder())
	}
	return orders, nil
}

package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nakula/pkg/core"
)

const orderResponseBody = `{
	"symbol": "BTCUSDT",
	"orderId": 28,
	"clientOrderId": "6gCrw2kRUAF9CvJDGP16IP",
	"transactTime": 1700000000000,
	"price": "42000.00",
	"origQty": "0.001",
	"executedQty": "0.000",
	"status": "NEW",
	"timeInForce": "GTC",
	"type": "LIMIT",
	"side": "BUY"
}`

// tradingTestClient wires a client whose exchangeInfo endpoint serves the
// standard test filters, so order placement exercises the real rule check.
func tradingTestClient(t *testing.T, behaviour core.TradeRulesBehaviour, handler http.HandlerFunc) (*Client, *atomic.Pointer[url.Values]) {
	t.Helper()

	var captured atomic.Pointer[url.Values]

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/time", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"serverTime":` + timestampNow() + `}`))
	})
	mux.HandleFunc("/api/v3/exchangeInfo", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"symbols": [{
				"symbol": "BTCUSDT",
				"orderTypes": ["LIMIT", "MARKET"],
				"filters": [
					{"filterType": "PRICE_FILTER", "minPrice": "0.01", "maxPrice": "1000000", "tickSize": "0.01"},
					{"filterType": "LOT_SIZE", "minQty": "0.001", "maxQty": "9000", "stepSize": "0.001"},
					{"filterType": "MIN_NOTIONAL", "minNotional": "10"}
				]
			}]
		}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		captured.Store(&q)
		handler(w, r)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	config := core.DefaultConfig().
		WithCredentials(&core.Credentials{APIKey: testAPIKey, SecretKey: testSecretKey}).
		WithTradeRules(behaviour, time.Hour)

	client, err := New(config, WithBaseURL(server.URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, &captured
}

func TestPlaceOrderClampsBeforeSubmission(t *testing.T) {
	client, captured := tradingTestClient(t, core.TradeRulesClampValues,
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v3/order", r.URL.Path)
			_, _ = w.Write([]byte(orderResponseBody))
		})

	order, err := client.PlaceOrder(context.Background(), &OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     core.SideBuy,
		Type:     core.TypeLimit,
		Quantity: *dec(t, "0.0015"),
		Price:    dec(t, "42000.129"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(28), order.ID)
	assert.Equal(t, core.StatusNew, order.Status)

	q := captured.Load()
	require.NotNil(t, q)
	assert.Equal(t, "0.001", q.Get("quantity"), "submitted quantity must be the clamped value")
	assert.Equal(t, "42000.12", q.Get("price"), "submitted price must be floored to the tick")
	assert.Equal(t, "BUY", q.Get("side"))
	assert.Equal(t, "LIMIT", q.Get("type"))
	assert.Equal(t, "GTC", q.Get("timeInForce"))
	assert.NotEmpty(t, q.Get("signature"))
}

func TestPlaceOrderThrowModeRejectsWithoutSubmitting(t *testing.T) {
	client, _ := tradingTestClient(t, core.TradeRulesThrowError,
		func(http.ResponseWriter, *http.Request) {
			t.Error("order must not reach the exchange when validation rejects it")
		})

	_, err := client.PlaceOrder(context.Background(), &OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     core.SideBuy,
		Type:     core.TypeLimit,
		Quantity: *dec(t, "0.0015"),
		Price:    dec(t, "42000"),
	})
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))
}

func TestPlaceOrderArgumentChecks(t *testing.T) {
	client, _ := tradingTestClient(t, core.TradeRulesNone,
		func(http.ResponseWriter, *http.Request) {
			t.Error("no request expected")
		})

	tests := []struct {
		name  string
		order *OrderRequest
	}{
		{"nil order", nil},
		{"missing symbol", &OrderRequest{Side: core.SideBuy, Type: core.TypeMarket, Quantity: *dec(t, "1")}},
		{"zero quantity", &OrderRequest{Symbol: "BTCUSDT", Type: core.TypeMarket}},
		{"limit without price", &OrderRequest{Symbol: "BTCUSDT", Type: core.TypeLimit, Quantity: *dec(t, "1")}},
		{"market with price", &OrderRequest{Symbol: "BTCUSDT", Type: core.TypeMarket, Quantity: *dec(t, "1"), Price: dec(t, "42000")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.PlaceOrder(context.Background(), tt.order)
			require.Error(t, err)
			assert.True(t, core.IsArgumentError(err))
		})
	}
}

func TestPlaceTestOrderEchoesSubmittedValues(t *testing.T) {
	client, _ := tradingTestClient(t, core.TradeRulesNone,
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v3/order/test", r.URL.Path)
			_, _ = w.Write([]byte(`{}`))
		})

	order, err := client.PlaceTestOrder(context.Background(), &OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     core.SideSell,
		Type:     core.TypeLimit,
		Quantity: *dec(t, "0.5"),
		Price:    dec(t, "42000"),
	})
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", order.Symbol)
	assert.Equal(t, core.SideSell, order.Side)
	assert.Zero(t, order.Quantity.Cmp(dec(t, "0.5")))
}

func TestGetOrderRequiresAnIdentifier(t *testing.T) {
	client, _ := tradingTestClient(t, core.TradeRulesNone,
		func(http.ResponseWriter, *http.Request) {
			t.Error("no request expected")
		})

	_, err := client.GetOrder(context.Background(), "BTCUSDT", 0, "")
	require.Error(t, err)
	assert.True(t, core.IsArgumentError(err))
}

func TestGetOrderByExchangeID(t *testing.T) {
	client, captured := tradingTestClient(t, core.TradeRulesNone,
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/v3/order", r.URL.Path)
			_, _ = w.Write([]byte(orderResponseBody))
		})

	order, err := client.GetOrder(context.Background(), "BTCUSDT", 28, "")
	require.NoError(t, err)
	assert.Equal(t, int64(28), order.ID)

	q := captured.Load()
	require.NotNil(t, q)
	assert.Equal(t, "28", q.Get("orderId"))
	assert.Empty(t, q.Get("origClientOrderId"))
}

func TestCancelOrderByClientID(t *testing.T) {
	client, captured := tradingTestClient(t, core.TradeRulesNone,
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			_, _ = w.Write([]byte(`{
				"symbol": "BTCUSDT",
				"orderId": 28,
				"origClientOrderId": "6gCrw2kRUAF9CvJDGP16IP",
				"status": "CANCELED",
				"type": "LIMIT",
				"side": "BUY"
			}`))
		})

	order, err := client.CancelOrder(context.Background(), "BTCUSDT", 0, "6gCrw2kRUAF9CvJDGP16IP")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCanceled, order.Status)
	assert.Equal(t, "6gCrw2kRUAF9CvJDGP16IP", order.ClientOrderID)

	q := captured.Load()
	require.NotNil(t, q)
	assert.Equal(t, "6gCrw2kRUAF9CvJDGP16IP", q.Get("origClientOrderId"))
}

func TestGetOpenOrders(t *testing.T) {
	client, captured := tradingTestClient(t, core.TradeRulesNone,
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v3/openOrders", r.URL.Path)
			_, _ = w.Write([]byte(`[` + orderResponseBody + `]`))
		})

	orders, err := client.GetOpenOrders(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(28), orders[0].ID)

	q := captured.Load()
	require.NotNil(t, q)
	assert.Equal(t, "BTCUSDT", q.Get("symbol"))
}

func TestGetOrderHistoryPagination(t *testing.T) {
	client, captured := tradingTestClient(t, core.TradeRulesNone,
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v3/allOrders", r.URL.Path)
			_, _ = w.Write([]byte(`[]`))
		})

	start := time.UnixMilli(1700000000000)
	end := time.UnixMilli(1700003600000)
	_, err := client.GetOrderHistory(context.Background(), "BTCUSDT",
		WithTimeRange(start, end), WithLimit(500), WithFromID(100))
	require.NoError(t, err)

	q := captured.Load()
	require.NotNil(t, q)
	assert.Equal(t, "1700000000000", q.Get("startTime"))
	assert.Equal(t, "1700003600000", q.Get("endTime"))
	assert.Equal(t, "500", q.Get("limit"))
	assert.Equal(t, "100", q.Get("fromId"))
}

package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nakula/pkg/core"
)

const (
	testAPIKey    = "test-api-key"
	testSecretKey = "test-secret-key"
)

func testConfig() *core.Config {
	return core.DefaultConfig().
		WithCredentials(&core.Credentials{APIKey: testAPIKey, SecretKey: testSecretKey}).
		WithTradeRules(core.TradeRulesNone, time.Hour)
}

// newTestClient builds a client against an httptest server whose handler
// also serves the server-time probe.
func newTestClient(t *testing.T, config *core.Config, handler http.HandlerFunc) *Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/time", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"serverTime":` + timestampNow() + `}`))
	})
	mux.HandleFunc("/", handler)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := New(config, WithBaseURL(server.URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func timestampNow() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

func TestSignedRequestCarriesAuthFields(t *testing.T) {
	var captured atomic.Pointer[url.Values]

	client := newTestClient(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		captured.Store(&q)
		_, _ = w.Write([]byte(`{"balances":[]}`))
	})

	_, err := client.GetAccount(context.Background())
	require.NoError(t, err)

	q := captured.Load()
	require.NotNil(t, q)
	assert.NotEmpty(t, q.Get("timestamp"))
	assert.Equal(t, "5000", q.Get("recvWindow"))
	require.NotEmpty(t, q.Get("signature"))

	// The signature must cover the sorted query string minus itself.
	signed := url.Values{}
	for k, vs := range *q {
		if k != "signature" {
			signed[k] = vs
		}
	}
	mac := hmac.New(sha256.New, []byte(testSecretKey))
	mac.Write([]byte(signed.Encode()))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), q.Get("signature"))
}

func TestSignedRequestSetsAPIKeyHeader(t *testing.T) {
	var gotKey atomic.Pointer[string]

	client := newTestClient(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-MBX-APIKEY")
		gotKey.Store(&key)
		_, _ = w.Write([]byte(`{"balances":[]}`))
	})

	_, err := client.GetAccount(context.Background())
	require.NoError(t, err)
	require.NotNil(t, gotKey.Load())
	assert.Equal(t, testAPIKey, *gotKey.Load())
}

func TestSignedRequestWithoutCredentials(t *testing.T) {
	config := core.DefaultConfig().WithTradeRules(core.TradeRulesNone, time.Hour)
	client := newTestClient(t, config, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("endpoint must not be reached without credentials")
	})

	_, err := client.GetAccount(context.Background())
	require.ErrorIs(t, err, core.ErrNoCredentials)
}

func TestClockSyncFailureBlocksSignedCall(t *testing.T) {
	var endpointCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/time", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/api/v3/account", func(w http.ResponseWriter, _ *http.Request) {
		endpointCalls.Add(1)
		_, _ = w.Write([]byte(`{"balances":[]}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := New(testConfig(), WithBaseURL(server.URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.GetAccount(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(0), endpointCalls.Load(),
		"a failed clock sync must not reach the target endpoint")
}

func TestErrorBodyWithCodeAndMessage(t *testing.T) {
	client := newTestClient(t, testConfig(), func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-2010,"msg":"Account has insufficient balance for requested action."}`))
	})

	_, err := client.GetAccount(context.Background())
	require.Error(t, err)

	var clientErr *core.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, core.ErrorTypeInsufficientFunds, clientErr.Type)
	assert.Equal(t, -2010, clientErr.Code)
	assert.Equal(t, http.StatusBadRequest, clientErr.StatusCode)
	assert.Contains(t, clientErr.Message, "insufficient balance")
}

func TestErrorBodyInsideOKStatus(t *testing.T) {
	client := newTestClient(t, testConfig(), func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":-1021,"msg":"Timestamp for this request is outside of the recvWindow."}`))
	})

	_, err := client.GetAccount(context.Background())
	require.Error(t, err)

	var clientErr *core.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, core.ErrorTypeTimeout, clientErr.Type)
	assert.Equal(t, -1021, clientErr.Code)
}

func TestErrorStatusWithoutBody(t *testing.T) {
	client := newTestClient(t, testConfig(), func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetAccount(context.Background())
	require.Error(t, err)

	var clientErr *core.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, core.ErrorTypeServerError, clientErr.Type)
	assert.Equal(t, http.StatusBadGateway, clientErr.StatusCode)
}

func TestEnvelopedSuccess(t *testing.T) {
	client := newTestClient(t, testConfig(), func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":[{"symbol":"BTCUSDT","maker":"0.001","taker":"0.001"}]}`))
	})

	fees, err := client.GetTradeFee(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, fees, 1)
	assert.Equal(t, "BTCUSDT", fees[0].Symbol)
}

func TestEnvelopedSuccessWithMessage(t *testing.T) {
	// Some enveloped endpoints put a human-readable msg on success too; it
	// must not be mistaken for an error body.
	client := newTestClient(t, testConfig(), func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"msg":"success","data":{"id":"7213fea8e94b4a5593d507237e5a555b"}}`))
	})

	result, err := client.Withdraw(context.Background(), "ETH", "0xfa97c22a03d8522988c709c24283c0918a59c795", *dec(t, "1"))
	require.NoError(t, err)
	assert.Equal(t, "7213fea8e94b4a5593d507237e5a555b", result.ID)
}

func TestEnvelopedFailure(t *testing.T) {
	client := newTestClient(t, testConfig(), func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"msg":"asset detail not available"}`))
	})

	_, err := client.GetTradeFee(context.Background(), "BTCUSDT")
	require.Error(t, err)

	var clientErr *core.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, core.ErrorTypeServerError, clientErr.Type)
	assert.Contains(t, clientErr.Message, "asset detail not available")
}

func TestEnvelopedFailureWithEmbeddedError(t *testing.T) {
	client := newTestClient(t, testConfig(), func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"msg":"{\"code\":-1022,\"msg\":\"Signature for this request is not valid.\"}"}`))
	})

	_, err := client.GetTradeFee(context.Background(), "BTCUSDT")
	require.Error(t, err)

	var clientErr *core.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, core.ErrorTypeAuthentication, clientErr.Type)
	assert.Equal(t, -1022, clientErr.Code)
}

func TestMapErrorCode(t *testing.T) {
	tests := []struct {
		code int
		want core.ErrorType
	}{
		{-1003, core.ErrorTypeRateLimit},
		{-1015, core.ErrorTypeRateLimit},
		{-1021, core.ErrorTypeTimeout},
		{-1022, core.ErrorTypeAuthentication},
		{-2014, core.ErrorTypeAuthentication},
		{-2015, core.ErrorTypeAuthentication},
		{-2010, core.ErrorTypeInsufficientFunds},
		{-1100, core.ErrorTypeBadRequest},
		{-1120, core.ErrorTypeBadRequest},
		{-2021, core.ErrorTypeInvalidOrder},
		{-3000, core.ErrorTypeServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, mapErrorCode(tt.code), "code %d", tt.code)
	}
}

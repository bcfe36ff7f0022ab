package binance

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nakula/pkg/core"
)

func TestNewWithNilConfigUsesDefaults(t *testing.T) {
	client, err := New(nil)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, baseURLProduction, client.baseURL)
	assert.Equal(t, wsURLProduction, client.wsURL)
	assert.True(t, client.Config().AutoTimestamp)
	assert.Equal(t, core.TradeRulesClampValues, client.Config().TradeRulesBehaviour)
}

func TestNewSandboxSelectsTestnet(t *testing.T) {
	client, err := New(core.DefaultConfig().WithSandbox(true))
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, baseURLSandbox, client.baseURL)
	assert.Equal(t, wsURLSandbox, client.wsURL)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	config := core.DefaultConfig()
	config.Timeout = 0

	_, err := New(config)
	require.Error(t, err)
}

func TestNewRejectsInconsistentConfig(t *testing.T) {
	config := core.DefaultConfig()
	config.AutoTimestamp = true
	config.AutoTimestampInterval = 0

	_, err := New(config)
	require.Error(t, err)
}

func TestBaseURLOverrideBeatsSandboxFlag(t *testing.T) {
	client, err := New(core.DefaultConfig().WithSandbox(true),
		WithBaseURL("http://localhost:9999"))
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "http://localhost:9999", client.baseURL)
}

func TestCloseIsIdempotent(t *testing.T) {
	client, err := New(nil)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
}

func TestRequestAfterClose(t *testing.T) {
	endpointCalls := 0
	client := newTestClient(t, testConfig(), func(w http.ResponseWriter, _ *http.Request) {
		endpointCalls++
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, client.Close())

	_, err := client.GetTicker(context.Background(), "BTCUSDT")
	require.ErrorIs(t, err, core.ErrClientClosed)
	assert.Equal(t, 0, endpointCalls)
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "env-key")
	t.Setenv("BINANCE_SECRET_KEY", "env-secret")

	client, err := NewFromEnv(core.DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	require.NotNil(t, client.Config().Credentials)
	assert.Equal(t, "env-key", client.Config().Credentials.APIKey)
}

func TestTimeOffsetBeforeSync(t *testing.T) {
	client, err := New(nil)
	require.NoError(t, err)
	defer client.Close()

	offset, synced := client.TimeOffset()
	assert.False(t, synced)
	assert.Equal(t, time.Duration(0), offset)
}

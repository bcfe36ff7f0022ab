package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewClientValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{"missing_base_url", &Config{Timeout: time.Second}},
		{"bad_base_url", &Config{BaseURL: "not-a-url", Timeout: time.Second}},
		{"zero_timeout", &Config{BaseURL: "https://example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.config, zerolog.Nop())
			assert.Error(t, err)
		})
	}
}

func TestRequestCarriesParamsAndHeaders(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/ping", r.URL.Path)
		assert.Equal(t, "v", r.URL.Query().Get("k"))
		assert.Equal(t, "h", r.Header.Get("X-Test"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	req, err := client.Request()
	require.NoError(t, err)

	resp, err := req.SetContext(context.Background()).
		SetQueryParam("k", "v").
		SetHeader("X-Test", "h").
		Get("/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, string(resp.Bytes()), "ok")
}

func TestClosedClientRejectsRequests(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, client.Close())

	_, err := client.Request()
	assert.ErrorIs(t, err, ErrClosed)
}

// Package binance implements the exchange client: public market data,
// signed trading and account endpoints, and the user data stream.
package binance

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nakula/internal/circuitbreaker"
	internalhttp "nakula/internal/http"
	"nakula/internal/keyring"
	"nakula/internal/ratelimit"
	"nakula/internal/ws"
	"nakula/pkg/core"
)

// API endpoints for production and sandbox environments.
const (
	baseURLProduction = "https://api.binance.com"
	baseURLSandbox    = "https://testnet.binance.vision"

	wsURLProduction = "wss://stream.binance.com:9443/ws"
	wsURLSandbox    = "wss://stream.testnet.binance.vision/ws"
)

// Client is the exchange client. All methods are safe for concurrent use.
type Client struct {
	config  *core.Config
	http    *internalhttp.Client
	keyRing *keyring.KeyRing
	limiter *ratelimit.Limiter
	breaker *circuitbreaker.Breaker
	logger  zerolog.Logger

	clock *serverClock
	rules *ruleValidator

	baseURL string
	wsURL   string

	mu     sync.Mutex
	stream *ws.Client
	closed bool
}

// Option customizes client construction.
type Option func(*Client)

// WithLogger sets the logger. The default client is silent.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithKeyRing installs a rotating key ring used instead of the single
// credentials pair from the config.
func WithKeyRing(ring *keyring.KeyRing) Option {
	return func(c *Client) {
		c.keyRing = ring
	}
}

// WithBaseURL overrides the REST endpoint, taking precedence over the
// sandbox flag.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithStreamURL overrides the websocket endpoint for the user data stream.
func WithStreamURL(url string) Option {
	return func(c *Client) {
		c.wsURL = url
	}
}

// New creates an exchange client from the given configuration. A nil config
// gets the defaults from core.DefaultConfig.
func New(config *core.Config, opts ...Option) (*Client, error) {
	if config == nil {
		config = core.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Client{
		config: config,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if level, err := zerolog.ParseLevel(config.LogLevel); err == nil && config.LogLevel != "" {
		c.logger = c.logger.Level(level)
	}

	if c.baseURL == "" {
		if config.Sandbox {
			c.baseURL = baseURLSandbox
		} else {
			c.baseURL = baseURLProduction
		}
	}
	if c.wsURL == "" {
		if config.Sandbox {
			c.wsURL = wsURLSandbox
		} else {
			c.wsURL = wsURLProduction
		}
	}

	httpClient, err := internalhttp.NewClient(&internalhttp.Config{
		BaseURL:      c.baseURL,
		Timeout:      config.Timeout,
		MaxRetries:   config.MaxRetries,
		RetryWaitMin: config.RetryWaitMin,
		RetryWaitMax: config.RetryWaitMax,
	}, c.logger)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}
	c.http = httpClient

	c.limiter = ratelimit.New(config.RateLimitRequests, config.RateLimitPeriod, config.RateLimitOrders)

	if config.CircuitBreakerEnabled {
		c.breaker = circuitbreaker.New(circuitbreaker.Config{
			FailThreshold:    config.CircuitBreakerFailThreshold,
			SuccessThreshold: config.CircuitBreakerSuccessThreshold,
			Timeout:          config.CircuitBreakerTimeout,
		})
	}

	if c.keyRing != nil {
		c.keyRing.SetLogger(c.logger)
	}

	c.clock = newServerClock(c.ServerTime, config.AutoTimestamp, config.AutoTimestampInterval)
	c.rules = newRuleValidator(config.TradeRulesBehaviour, config.TradeRulesInterval, c.fetchRulesSnapshot, c.logger)

	return c, nil
}

// NewFromEnv creates a client with credentials read from the
// BINANCE_API_KEY and BINANCE_SECRET_KEY environment variables.
func NewFromEnv(config *core.Config, opts ...Option) (*Client, error) {
	if config == nil {
		config = core.DefaultConfig()
	}
	apiKey := os.Getenv("BINANCE_API_KEY")
	secretKey := os.Getenv("BINANCE_SECRET_KEY")
	if apiKey != "" && secretKey != "" {
		config.Credentials = &core.Credentials{APIKey: apiKey, SecretKey: secretKey}
	}
	return New(config, opts...)
}

// Close shuts down the client: the user data stream is disconnected and the
// HTTP transport released. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if c.stream != nil {
		if err := c.stream.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("close user data stream")
		}
		c.stream = nil
	}
	return c.http.Close()
}

// Config returns the configuration the client was built with.
func (c *Client) Config() *core.Config {
	return c.config
}

// TimeOffset returns the tracked local-vs-server clock offset and whether a
// successful sync has happened yet.
func (c *Client) TimeOffset() (time.Duration, bool) {
	return c.clock.Offset()
}

package core

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

// Credentials holds API authentication credentials for the exchange.
type Credentials struct {
	// APIKey is the public API key identifier.
	APIKey string `json:"api_key"`
	// SecretKey is the private key used for signing requests.
	SecretKey string `json:"secret_key"`
}

// Config contains all configuration options for a client instance.
// It is treated as immutable once passed to the client constructor.
type Config struct {
	Sandbox     bool         `json:"sandbox"`
	Credentials *Credentials `json:"credentials,omitempty"`

	// AutoTimestamp enables tracking of the local-vs-server time offset so
	// that signed request timestamps stay inside the exchange acceptance
	// window. When disabled the local clock is used as-is.
	AutoTimestamp bool `json:"auto_timestamp"`
	// AutoTimestampInterval is how long a calculated time offset is trusted
	// before a fresh server-time probe is performed.
	AutoTimestampInterval time.Duration `json:"auto_timestamp_interval" validate:"min=0"`

	// TradeRulesBehaviour controls pre-submission order validation against
	// the exchange trading filters.
	TradeRulesBehaviour TradeRulesBehaviour `json:"trade_rules_behaviour"`
	// TradeRulesInterval is how long cached exchange trading rules are
	// considered fresh before being refetched.
	TradeRulesInterval time.Duration `json:"trade_rules_interval" validate:"min=0"`

	// ReceiveWindow is the default number of milliseconds after the request
	// timestamp during which the exchange will still accept a signed request.
	ReceiveWindow time.Duration `json:"receive_window" validate:"min=1ms"`

	// Timeout is the maximum duration for HTTP requests.
	Timeout      time.Duration `json:"timeout" validate:"min=1ms"`
	MaxRetries   int           `json:"max_retries" validate:"min=0"`
	RetryWaitMin time.Duration `json:"retry_wait_min" validate:"min=0"`
	RetryWaitMax time.Duration `json:"retry_wait_max" validate:"min=0"`

	RateLimitRequests int           `json:"rate_limit_requests" validate:"min=1"`
	RateLimitPeriod   time.Duration `json:"rate_limit_period" validate:"min=1ms"`
	RateLimitOrders   int           `json:"rate_limit_orders" validate:"min=0"`

	CircuitBreakerEnabled          bool          `json:"circuit_breaker_enabled"`
	CircuitBreakerFailThreshold    int           `json:"circuit_breaker_fail_threshold"`
	CircuitBreakerSuccessThreshold int           `json:"circuit_breaker_success_threshold"`
	CircuitBreakerTimeout          time.Duration `json:"circuit_breaker_timeout"`

	LogLevel string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config initialized with sensible defaults:
// auto timestamp enabled with a 1h recalculation interval, trade rules
// validation in clamp mode refreshed every 30m, 5s receive window, 10s
// request timeout, no transport retries, 1200 requests and 50 orders per
// minute, circuit breaker with 5 failures/2 successes/30s timeout.
func DefaultConfig() *Config {
	return &Config{
		Sandbox: false,

		AutoTimestamp:         true,
		AutoTimestampInterval: time.Hour,

		TradeRulesBehaviour: TradeRulesClampValues,
		TradeRulesInterval:  30 * time.Minute,

		ReceiveWindow: 5 * time.Second,

		Timeout:      10 * time.Second,
		MaxRetries:   0,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: 1 * time.Second,

		RateLimitRequests: 1200,
		RateLimitPeriod:   time.Minute,
		RateLimitOrders:   50,

		CircuitBreakerEnabled:          true,
		CircuitBreakerFailThreshold:    5,
		CircuitBreakerSuccessThreshold: 2,
		CircuitBreakerTimeout:          30 * time.Second,

		LogLevel: "info",
	}
}

var validate = validator.New()

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.AutoTimestamp && c.AutoTimestampInterval <= 0 {
		return errors.New("AutoTimestampInterval must be positive when AutoTimestamp is enabled")
	}
	if c.TradeRulesBehaviour != TradeRulesNone && c.TradeRulesInterval <= 0 {
		return errors.New("TradeRulesInterval must be positive when trade rules are checked")
	}
	if c.CircuitBreakerEnabled {
		if c.CircuitBreakerFailThreshold <= 0 {
			return errors.New("CircuitBreakerFailThreshold must be positive when enabled")
		}
		if c.CircuitBreakerSuccessThreshold <= 0 {
			return errors.New("CircuitBreakerSuccessThreshold must be positive when enabled")
		}
		if c.CircuitBreakerTimeout <= 0 {
			return errors.New("CircuitBreakerTimeout must be positive when enabled")
		}
	}
	return nil
}

// WithCredentials sets the API credentials and returns the config for chaining.
func (c *Config) WithCredentials(creds *Credentials) *Config {
	c.Credentials = creds
	return c
}

// WithSandbox enables or disables sandbox mode and returns the config for chaining.
func (c *Config) WithSandbox(sandbox bool) *Config {
	c.Sandbox = sandbox
	return c
}

// WithAutoTimestamp configures clock synchronization and returns the config for chaining.
func (c *Config) WithAutoTimestamp(enabled bool, recalcInterval time.Duration) *Config {
	c.AutoTimestamp = enabled
	c.AutoTimestampInterval = recalcInterval
	return c
}

// WithTradeRules configures trade rule validation and returns the config for chaining.
func (c *Config) WithTradeRules(behaviour TradeRulesBehaviour, updateInterval time.Duration) *Config {
	c.TradeRulesBehaviour = behaviour
	c.TradeRulesInterval = updateInterval
	return c
}

// WithReceiveWindow sets the default receive window and returns the config for chaining.
func (c *Config) WithReceiveWindow(window time.Duration) *Config {
	c.ReceiveWindow = window
	return c
}

// WithTimeout sets the request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRateLimit sets the rate limiting parameters and returns the config for chaining.
func (c *Config) WithRateLimit(requests int, period time.Duration) *Config {
	c.RateLimitRequests = requests
	c.RateLimitPeriod = period
	return c
}

package binance

import (
	"context"
	"net/http"
	"time"

	"nakula/internal/ws"
	"nakula/pkg/core"
)

// keepAliveInterval is how often an active user data stream's listen key is
// refreshed. The exchange expires an idle key after an hour.
const keepAliveInterval = 30 * time.Minute

// apiKey resolves the API key for endpoints that authenticate with the key
// header alone, no signature.
func (c *Client) apiKey() (string, error) {
	if c.keyRing != nil {
		key := c.keyRing.Current()
		if key == nil {
			return "", core.ErrNoAPIKey
		}
		return key.Key, nil
	}
	if c.config.Credentials == nil {
		return "", core.ErrNoCredentials
	}
	return c.config.Credentials.APIKey, nil
}

// StartUserStream opens a user data stream and returns its listen key.
func (c *Client) StartUserStream(ctx context.Context) (string, error) {
	key, err := c.apiKey()
	if err != nil {
		return "", err
	}

	req := core.NewRequest(http.MethodPost, "/api/v3/userDataStream").
		SetHeader("X-MBX-APIKEY", key)
	resp, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	out, err := parse[listenKeyResponse](resp)
	if err != nil {
		return "", err
	}
	return out.ListenKey, nil
}

// KeepAliveUserStream extends the validity of an open user data stream.
func (c *Client) KeepAliveUserStream(ctx context.Context, listenKey string) error {
	if listenKey == "" {
		return core.NewArgumentError("listenKey is required")
	}
	key, err := c.apiKey()
	if err != nil {
		return err
	}

	req := core.NewRequest(http.MethodPut, "/api/v3/userDataStream").
		SetHeader("X-MBX-APIKEY", key).
		SetQuery("listenKey", listenKey)
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	return translateError(resp)
}

// CloseUserStream closes an open user data stream.
func (c *Client) CloseUserStream(ctx context.Context, listenKey string) error {
	if listenKey == "" {
		return core.NewArgumentError("listenKey is required")
	}
	key, err := c.apiKey()
	if err != nil {
		return err
	}

	req := core.NewRequest(http.MethodDelete, "/api/v3/userDataStream").
		SetHeader("X-MBX-APIKEY", key).
		SetQuery("listenKey", listenKey)
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	return translateError(resp)
}

// SubscribeUserStream opens the user data stream, connects a websocket to
// it, and delivers every raw event to handler. The listen key is kept alive
// in the background until the context is canceled or the client is closed.
// Only one subscription may be active per client.
func (c *Client) SubscribeUserStream(ctx context.Context, handler func(event []byte)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return core.ErrClientClosed
	}
	if c.stream != nil {
		c.mu.Unlock()
		return core.NewArgumentError("user data stream already subscribed")
	}
	c.mu.Unlock()

	listenKey, err := c.StartUserStream(ctx)
	if err != nil {
		return err
	}

	stream := ws.NewClient(ws.Config{
		URL:              c.wsURL + "/" + listenKey,
		ReconnectEnabled: true,
	}, handler)
	stream.SetLogger(c.logger)

	if err := stream.Connect(ctx); err != nil {
		_ = c.CloseUserStream(context.WithoutCancel(ctx), listenKey)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = stream.Close()
		_ = c.CloseUserStream(context.WithoutCancel(ctx), listenKey)
		return core.ErrClientClosed
	}
	c.stream = stream
	c.mu.Unlock()

	go c.keepStreamAlive(ctx, listenKey)
	return nil
}

// keepStreamAlive refreshes the listen key on a fixed cadence until the
// subscription ends.
func (c *Client) keepStreamAlive(ctx context.Context, listenKey string) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			stream := c.stream
			c.stream = nil
			c.mu.Unlock()
			if stream != nil {
				_ = stream.Close()
			}
			_ = c.CloseUserStream(context.WithoutCancel(ctx), listenKey)
			return
		case <-ticker.C:
			if err := c.KeepAliveUserStream(ctx, listenKey); err != nil {
				c.logger.Warn().Err(err).Msg("user data stream keepalive failed")
			}
		}
	}
}

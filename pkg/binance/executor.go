package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bytedance/sonic"
	"resty.dev/v3"

	"nakula/internal/keyring"
	"nakula/pkg/core"
)

// apiErrorPayload is the top-level error shape the exchange embeds in
// response bodies. Either field may be absent: some failures carry only a
// code, some only a message.
type apiErrorPayload struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (p *apiErrorPayload) present() bool {
	return p.Code != 0 || p.Msg != ""
}

// toError translates the payload into a ClientError, classifying by the
// exchange numeric code when one is present.
func (p *apiErrorPayload) toError(statusCode int) *core.ClientError {
	errorType := core.ErrorTypeServerError
	if p.Code != 0 {
		errorType = mapErrorCode(p.Code)
	}
	return core.NewServerError(errorType, statusCode, p.Code, p.Msg)
}

// mapErrorCode classifies an exchange numeric error code.
func mapErrorCode(code int) core.ErrorType {
	switch code {
	case -1003, -1015:
		return core.ErrorTypeRateLimit
	case -1021:
		// Timestamp outside the receive window.
		return core.ErrorTypeTimeout
	case -1022, -2014, -2015:
		return core.ErrorTypeAuthentication
	case -2010, -2011, -2013:
		return core.ErrorTypeInsufficientFunds
	case -1100, -1101, -1102, -1103, -1104, -1105, -1106:
		return core.ErrorTypeBadRequest
	default:
		switch {
		case code <= -1000 && code > -2000:
			return core.ErrorTypeBadRequest
		case code <= -2000 && code > -3000:
			return core.ErrorTypeInvalidOrder
		default:
			return core.ErrorTypeServerError
		}
	}
}

// translateError inspects a response and returns the ClientError it encodes,
// or nil when the response is a success. The exchange reports failures both
// through HTTP status and through {code,msg} fields inside 200-status
// bodies, so both paths are checked.
func translateError(resp *resty.Response) error {
	if resp == nil {
		return core.NewTransportError(errors.New("nil response"))
	}

	// Enveloped endpoints carry a top-level msg even on success, so a bare
	// message is not evidence of failure; a nonzero exchange code is.
	body := resp.Bytes()
	var payload apiErrorPayload
	if len(body) > 0 && sonic.Unmarshal(body, &payload) == nil && payload.Code != 0 {
		return payload.toError(resp.StatusCode())
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		msg := payload.Msg
		if msg == "" {
			msg = fmt.Sprintf("HTTP error: %s", resp.Status())
		}
		return core.NewServerError(core.ErrorTypeServerError, resp.StatusCode(), 0, msg)
	}

	return nil
}

// parse translates errors and deserializes a successful response body into T.
func parse[T any](resp *resty.Response) (*T, error) {
	if err := translateError(resp); err != nil {
		return nil, err
	}
	var out T
	if err := sonic.Unmarshal(resp.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &out, nil
}

// envelope is the {success, msg, data} wrapper used by the withdrawal, trade
// fee, asset detail, and dust log endpoints. These endpoints signal failure
// inside a 200-status body, so a second unwrap stage is needed after the
// ordinary error translation.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"msg"`
	Data    T      `json:"data"`
}

// parseWrapped handles enveloped responses: ordinary error translation
// first, then the success flag. A false flag re-parses the inner message
// through the same error-translation path, since the exchange often embeds
// a {code,msg} document there.
func parseWrapped[T any](resp *resty.Response) (*T, error) {
	if err := translateError(resp); err != nil {
		return nil, err
	}

	var env envelope[T]
	if err := sonic.Unmarshal(resp.Bytes(), &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	if !env.Success {
		var inner apiErrorPayload
		if env.Message != "" && sonic.Unmarshal([]byte(env.Message), &inner) == nil && inner.present() {
			return nil, inner.toError(resp.StatusCode())
		}
		return nil, core.NewServerError(core.ErrorTypeServerError, resp.StatusCode(), 0, env.Message)
	}

	return &env.Data, nil
}

// do executes an unsigned request through the rate limiter and circuit
// breaker. Transport failures come back as ClientError values.
func (c *Client) do(ctx context.Context, req *core.Request) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx, req.Weight); err != nil {
		return nil, core.NewTransportError(fmt.Errorf("rate limit: %w", err))
	}

	if c.breaker != nil && !c.breaker.Allow() {
		return nil, core.ErrCircuitBreakerOpen
	}

	restyReq, err := c.http.Request()
	if err != nil {
		return nil, core.ErrClientClosed
	}
	restyReq.SetContext(ctx)
	for k, v := range req.Headers {
		restyReq.SetHeader(k, v)
	}
	for k, v := range req.Query {
		restyReq.SetQueryParam(k, fmt.Sprint(v))
	}

	resp, err := c.send(req, restyReq)

	if c.breaker != nil {
		c.breaker.Record(err == nil)
	}
	if err != nil {
		return nil, core.NewTransportError(err)
	}
	return resp, nil
}

// doSigned executes a signed request: clock sync first, then timestamp,
// receive window, and signature are attached before the call goes out. A
// clock sync failure returns immediately without contacting the endpoint.
func (c *Client) doSigned(ctx context.Context, req *core.Request, recvWindow int64) (*resty.Response, error) {
	req.SetRequireAuth(true)

	signer, signingKey, err := c.currentSigner()
	if err != nil {
		return nil, err
	}

	if _, err := c.clock.EnsureSynced(ctx); err != nil {
		return nil, err
	}

	restyReq, err := c.http.Request()
	if err != nil {
		return nil, core.ErrClientClosed
	}
	restyReq.SetContext(ctx)
	for k, v := range req.Headers {
		restyReq.SetHeader(k, v)
	}

	query := url.Values{}
	for k, v := range req.Query {
		query.Set(k, fmt.Sprint(v))
	}
	query.Set("timestamp", strconv.FormatInt(c.clock.Timestamp(), 10))
	query.Set("recvWindow", strconv.FormatInt(recvWindow, 10))
	query.Set("signature", signer.Sign(query.Encode()))

	restyReq.SetQueryParamsFromValues(query)
	restyReq.SetHeader("X-MBX-APIKEY", signer.APIKey())

	if req.IsOrder {
		err = c.limiter.WaitOrder(ctx, req.Weight)
	} else {
		err = c.limiter.Wait(ctx, req.Weight)
	}
	if err != nil {
		return nil, core.NewTransportError(fmt.Errorf("rate limit: %w", err))
	}

	if c.breaker != nil && !c.breaker.Allow() {
		return nil, core.ErrCircuitBreakerOpen
	}

	resp, err := c.send(req, restyReq)

	if c.breaker != nil {
		c.breaker.Record(err == nil)
	}
	if signingKey != nil {
		if err != nil {
			c.keyRing.OnError(signingKey)
		} else {
			c.keyRing.OnSuccess(signingKey)
		}
	}
	if err != nil {
		return nil, core.NewTransportError(err)
	}
	return resp, nil
}

// send issues the request with the method the Request names.
func (c *Client) send(req *core.Request, restyReq *resty.Request) (*resty.Response, error) {
	switch req.Method {
	case http.MethodGet:
		return restyReq.Get(req.Path)
	case http.MethodPost:
		return restyReq.Post(req.Path)
	case http.MethodPut:
		return restyReq.Put(req.Path)
	case http.MethodDelete:
		return restyReq.Delete(req.Path)
	default:
		return nil, fmt.Errorf("unsupported method: %s", req.Method)
	}
}

// currentSigner resolves the credentials for a signed call, preferring the
// key ring when one is configured. The returned key identifies the ring
// entry that signed the call so the outcome can be charged back to it; it is
// nil when the credentials came from the config.
func (c *Client) currentSigner() (Signer, *keyring.APIKey, error) {
	if c.keyRing != nil {
		key := c.keyRing.Current()
		if key == nil {
			return nil, nil, core.ErrNoAPIKey
		}
		c.keyRing.MarkUsed(key)
		return NewHMACSigner(core.Credentials{APIKey: key.Key, SecretKey: key.Secret}), key, nil
	}
	if c.config.Credentials == nil {
		return nil, nil, core.ErrNoCredentials
	}
	return NewHMACSigner(*c.config.Credentials), nil, nil
}

package binance

import (
	"time"

	"nakula/pkg/core"
)

// callOptions collects per-call overrides. Zero values mean "use the
// client defaults".
type callOptions struct {
	recvWindow time.Duration
	params     core.Params
}

// CallOption customizes a single API call.
type CallOption func(*callOptions)

// WithRecvWindow overrides the receive window for one signed call.
func WithRecvWindow(window time.Duration) CallOption {
	return func(o *callOptions) {
		o.recvWindow = window
	}
}

// WithLimit caps the number of rows returned by a list endpoint.
func WithLimit(limit int) CallOption {
	return func(o *callOptions) {
		o.setParam("limit", limit)
	}
}

// WithTimeRange restricts a history query to [start, end]. A zero bound is
// omitted.
func WithTimeRange(start, end time.Time) CallOption {
	return func(o *callOptions) {
		if !start.IsZero() {
			o.setParam("startTime", start.UnixMilli())
		}
		if !end.IsZero() {
			o.setParam("endTime", end.UnixMilli())
		}
	}
}

// WithFromID starts a paginated listing from the given record identifier.
func WithFromID(id int64) CallOption {
	return func(o *callOptions) {
		o.setParam("fromId", id)
	}
}

// WithNewClientOrderID attaches a caller-chosen order identifier to an order
// placement.
func WithNewClientOrderID(id string) CallOption {
	return func(o *callOptions) {
		o.setParam("newClientOrderId", id)
	}
}

// WithParam attaches an arbitrary query parameter to the call.
func WithParam(key string, value any) CallOption {
	return func(o *callOptions) {
		o.setParam(key, value)
	}
}

func (o *callOptions) setParam(key string, value any) {
	if o.params == nil {
		o.params = core.Params{}
	}
	o.params[key] = value
}

// resolveOptions applies the per-call options over the client defaults and
// returns the effective receive window in milliseconds plus any extra
// query parameters.
func (c *Client) resolveOptions(opts []CallOption) (recvWindowMillis int64, params core.Params) {
	o := callOptions{recvWindow: c.config.ReceiveWindow}
	for _, opt := range opts {
		opt(&o)
	}
	return o.recvWindow.Milliseconds(), o.params
}

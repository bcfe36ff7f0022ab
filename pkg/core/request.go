package core

import "maps"

// Params is a generic parameter map used when building requests.
type Params map[string]any

// Request describes an HTTP call to the exchange before transport concerns
// (base URL, signing, rate limiting) are applied.
type Request struct {
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Query       Params            `json:"query,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Weight      int               `json:"weight"`
	RequireAuth bool              `json:"require_auth"`
	// IsOrder marks order placement and cancellation requests, which are
	// throttled by the separate order rate limit bucket.
	IsOrder bool `json:"is_order"`
}

// NewRequest creates a Request with the given method and path and a default
// weight of one.
func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Query:   make(Params),
		Headers: make(map[string]string),
		Weight:  1,
	}
}

// SetQuery sets a single query parameter and returns the request for chaining.
func (r *Request) SetQuery(key string, value any) *Request {
	if r.Query == nil {
		r.Query = make(Params)
	}
	r.Query[key] = value
	return r
}

// SetQueryParams merges the given parameters into the query and returns the
// request for chaining.
func (r *Request) SetQueryParams(params Params) *Request {
	if r.Query == nil {
		r.Query = make(Params)
	}
	maps.Copy(r.Query, params)
	return r
}

// SetHeader sets a request header and returns the request for chaining.
func (r *Request) SetHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

// SetWeight sets the request weight used for rate limit accounting.
func (r *Request) SetWeight(weight int) *Request {
	r.Weight = weight
	return r
}

// SetRequireAuth marks the request as requiring a signature and API key.
func (r *Request) SetRequireAuth(require bool) *Request {
	r.RequireAuth = require
	return r
}

// SetIsOrder marks the request as an order placement or cancellation.
func (r *Request) SetIsOrder(isOrder bool) *Request {
	r.IsOrder = isOrder
	return r
}

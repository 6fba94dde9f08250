// Package rpcclient wraps single JSON-RPC calls to XRPL nodes over HTTP or
// WebSocket and normalizes responses and errors into a uniform shape.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultCallTimeout bounds a single RPC call when the caller supplies no
// deadline of its own. Kept below the aggregation deadline so one slow facet
// cannot stall the whole call.
const DefaultCallTimeout = 5 * time.Second

// Caller issues one ledger RPC call. Implementations must honor ctx
// cancellation promptly; a hung call is a resource leak.
type Caller interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// request is the rippled HTTP JSON-RPC envelope: params is a one-element
// array wrapping the parameter object.
type request struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

// HTTPClient is a Caller over HTTP POST. The zero http.Client pools
// connections per host, so one HTTPClient may be shared freely.
type HTTPClient struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	log      *zap.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPTimeout sets the default per-call timeout.
func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) { c.timeout = d }
}

// WithHTTPTransport substitutes the underlying http.Client.
func WithHTTPTransport(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.client = hc }
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(log *zap.Logger) HTTPOption {
	return func(c *HTTPClient) { c.log = log }
}

// NewHTTPClient creates a client for one HTTP(S) endpoint.
func NewHTTPClient(endpoint string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{},
		timeout:  DefaultCallTimeout,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call posts {method, params:[params]} and returns the raw result object.
// Transport failures, protocol error envelopes and deadline expiry map to
// *RPCError with the corresponding kind.
func (c *HTTPClient) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(request{Method: method, Params: []any{params}})
	if err != nil {
		return nil, transportError("encoding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, transportError("building request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, wrapCtxErr(ctxErr)
		}
		return nil, transportError(fmt.Sprintf("%s request failed", method), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, transportError(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status), nil)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, wrapCtxErr(ctxErr)
		}
		return nil, transportError("reading response body", err)
	}

	result, rpcErr := decodeEnvelope(raw)
	if rpcErr != nil {
		c.log.Debug("rpc protocol error",
			zap.String("method", method),
			zap.String("code", rpcErr.Code))
		return nil, rpcErr
	}
	return result, nil
}

// decodeEnvelope extracts the result object from a response body, converting
// an error envelope into a protocol error with the code preserved verbatim.
func decodeEnvelope(raw []byte) (json.RawMessage, *RPCError) {
	var outer struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &outer); err != nil {
		return nil, transportError("malformed JSON response", err)
	}
	if len(outer.Result) == 0 {
		return nil, transportError("response missing result", nil)
	}

	var env struct {
		Error        string `json:"error"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(outer.Result, &env); err != nil {
		return nil, transportError("malformed result object", err)
	}
	if env.Error != "" {
		msg := env.ErrorMessage
		if msg == "" {
			msg = env.Error
		}
		return nil, &RPCError{Kind: KindProtocol, Code: env.Error, Message: msg}
	}
	return outer.Result, nil
}

var _ Caller = (*HTTPClient)(nil)

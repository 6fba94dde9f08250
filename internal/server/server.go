// Package server exposes the aggregator over HTTP JSON-RPC in the XRPL
// envelope format: requests carry {"method", "params": [{...}]} and
// responses wrap the payload in a result object with a status field.
// Errors travel inside the result, not as HTTP status codes.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/LeJamon/goXRPLdig/internal/cache"
	"github.com/LeJamon/goXRPLdig/internal/dig"
	"github.com/LeJamon/goXRPLdig/internal/network"
	"github.com/LeJamon/goXRPLdig/internal/rpcclient"
)

// DefaultRequestTimeout bounds a single method execution.
const DefaultRequestTimeout = 15 * time.Second

// Snapshots is the cache surface the server needs. *cache.Cache
// satisfies it.
type Snapshots interface {
	GetOrFetch(ctx context.Context, address, networkID string, facets ...dig.Facet) (*dig.Snapshot, error)
	Refresh(ctx context.Context, address, networkID string, facets ...dig.Facet) (*dig.Snapshot, error)
	Invalidate(address, networkID string)
}

type handlerFunc func(ctx context.Context, params json.RawMessage) (any, *Error)

// Server handles XRPL-style JSON-RPC requests.
type Server struct {
	snapshots Snapshots
	registry  *network.Registry
	callerFor func(network.Descriptor) rpcclient.Caller
	timeout   time.Duration
	log       *zap.Logger

	feeMemo   *cache.Memo[*dig.FeeData]
	priceMemo *cache.Memo[float64]
	infoMemo  *cache.Memo[json.RawMessage]

	methods map[string]handlerFunc
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRequestTimeout bounds each method execution.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.timeout = d }
}

// WithServerLogger sets the logger.
func WithServerLogger(log *zap.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// WithCallerFactory substitutes how ledger-info methods reach a network,
// for tests.
func WithCallerFactory(f func(network.Descriptor) rpcclient.Caller) ServerOption {
	return func(s *Server) { s.callerFor = f }
}

// New creates a server over the snapshot cache and network registry.
func New(snapshots Snapshots, registry *network.Registry, opts ...ServerOption) (*Server, error) {
	s := &Server{
		snapshots: snapshots,
		registry:  registry,
		timeout:   DefaultRequestTimeout,
		log:       zap.NewNop(),
		callerFor: func(desc network.Descriptor) rpcclient.Caller {
			return rpcclient.NewHTTPClient(desc.HTTPURL)
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.feeMemo, err = cache.NewMemo[*dig.FeeData](cache.DefaultFeeTTL, 32); err != nil {
		return nil, err
	}
	if s.priceMemo, err = cache.NewMemo[float64](cache.DefaultPriceTTL, 32); err != nil {
		return nil, err
	}
	if s.infoMemo, err = cache.NewMemo[json.RawMessage](cache.DefaultServerInfoTTL, 32); err != nil {
		return nil, err
	}

	s.methods = map[string]handlerFunc{
		"ping":             s.handlePing,
		"networks":         s.handleNetworks,
		"account_snapshot": s.handleAccountSnapshot,
		"refresh":          s.handleRefresh,
		"invalidate":       s.handleInvalidate,
		"fee":              s.handleFee,
		"xrp_price":        s.handleXRPPrice,
		"server_info":      s.handleServerInfo,
	}
	return s, nil
}

// request is the XRPL JSON-RPC request shape: params is an array holding
// at most one object.
type request struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params,omitempty"`
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &Error{Code: "jsonInvalid", Message: "Invalid JSON: " + err.Error()})
		return
	}
	if req.Method == "" {
		s.writeError(w, &Error{Code: "missingCommand", Message: "Missing method field"})
		return
	}

	var params json.RawMessage
	if len(req.Params) > 0 {
		params = req.Params[0]
	}

	handler, ok := s.methods[req.Method]
	if !ok {
		s.writeError(w, errUnknownCommand(req.Method))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	result, rpcErr := handler(ctx, params)
	if rpcErr != nil {
		s.log.Warn("method failed",
			zap.String("method", req.Method),
			zap.String("code", rpcErr.Code),
			zap.Duration("elapsed", time.Since(start)))
		s.writeError(w, rpcErr)
		return
	}

	s.log.Debug("method served",
		zap.String("method", req.Method),
		zap.Duration("elapsed", time.Since(start)))
	s.writeResult(w, result)
}

// writeResult wraps the payload in the XRPL success envelope.
func (s *Server) writeResult(w http.ResponseWriter, result any) {
	resultMap, err := toResultMap(result)
	if err != nil {
		s.writeError(w, errInternal("Failed to encode result"))
		return
	}
	resultMap["status"] = "success"
	s.encode(w, map[string]any{"result": resultMap})
}

// writeError puts the error inside the result object, rippled-style.
func (s *Server) writeError(w http.ResponseWriter, rpcErr *Error) {
	s.encode(w, map[string]any{
		"result": map[string]any{
			"status":        "error",
			"error":         rpcErr.Code,
			"error_message": rpcErr.Message,
		},
	})
}

func (s *Server) encode(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response write failed", zap.Error(err))
	}
}

// toResultMap flattens any payload into a map so status can be merged in.
func toResultMap(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

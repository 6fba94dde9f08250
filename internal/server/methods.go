package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LeJamon/goXRPLdig/internal/addresscodec"
	"github.com/LeJamon/goXRPLdig/internal/dig"
	"github.com/LeJamon/goXRPLdig/internal/network"
	"github.com/LeJamon/goXRPLdig/internal/rpcclient"
)

type accountParams struct {
	Account string   `json:"account"`
	Network string   `json:"network,omitempty"`
	Facets  []string `json:"facets,omitempty"`
	NoCache bool     `json:"no_cache,omitempty"`
}

type networkParams struct {
	Network string `json:"network,omitempty"`
}

func decodeParams(params json.RawMessage, v any) *Error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return errInvalidParams("Malformed params: " + err.Error())
	}
	return nil
}

func (s *Server) parseAccountParams(params json.RawMessage) (accountParams, []dig.Facet, *Error) {
	var p accountParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return p, nil, rpcErr
	}
	if p.Account == "" {
		return p, nil, errInvalidParams("Missing account field")
	}
	if !addresscodec.IsValidClassicAddress(p.Account) {
		return p, nil, errActMalformed(p.Account)
	}
	facets, err := dig.ParseFacets(p.Facets)
	if err != nil {
		return p, nil, errInvalidParams(err.Error())
	}
	return p, facets, nil
}

func (s *Server) handlePing(ctx context.Context, params json.RawMessage) (any, *Error) {
	return map[string]any{}, nil
}

func (s *Server) handleNetworks(ctx context.Context, params json.RawMessage) (any, *Error) {
	return map[string]any{"networks": s.registry.List()}, nil
}

func (s *Server) handleAccountSnapshot(ctx context.Context, params json.RawMessage) (any, *Error) {
	p, facets, rpcErr := s.parseAccountParams(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var (
		snap *dig.Snapshot
		err  error
	)
	if p.NoCache {
		snap, err = s.snapshots.Refresh(ctx, p.Account, p.Network, facets...)
	} else {
		snap, err = s.snapshots.GetOrFetch(ctx, p.Account, p.Network, facets...)
	}
	if err != nil {
		return nil, snapshotError(p.Account, err)
	}
	return snap, nil
}

func (s *Server) handleRefresh(ctx context.Context, params json.RawMessage) (any, *Error) {
	p, facets, rpcErr := s.parseAccountParams(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	snap, err := s.snapshots.Refresh(ctx, p.Account, p.Network, facets...)
	if err != nil {
		return nil, snapshotError(p.Account, err)
	}
	return snap, nil
}

func (s *Server) handleInvalidate(ctx context.Context, params json.RawMessage) (any, *Error) {
	var p accountParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Account == "" {
		return nil, errInvalidParams("Missing account field")
	}
	networkID := p.Network
	if networkID == "" {
		networkID = network.DefaultNetworkID
	}
	s.snapshots.Invalidate(p.Account, networkID)
	return map[string]any{"invalidated": true, "account": p.Account, "network": networkID}, nil
}

// resolveCaller maps a network parameter to a JSON-RPC caller for the
// ledger-info methods.
func (s *Server) resolveCaller(params json.RawMessage) (network.Descriptor, rpcclient.Caller, *Error) {
	var p networkParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return network.Descriptor{}, nil, rpcErr
	}
	desc, _ := s.registry.ResolveOrDefault(p.Network)
	return desc, s.callerFor(desc), nil
}

func (s *Server) handleFee(ctx context.Context, params json.RawMessage) (any, *Error) {
	desc, caller, rpcErr := s.resolveCaller(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	fee, err := s.feeMemo.Get(ctx, desc.ID, func(ctx context.Context) (*dig.FeeData, error) {
		return dig.FetchFee(ctx, caller)
	})
	if err != nil {
		return nil, errInternal(fmt.Sprintf("fee lookup failed: %v", err))
	}
	return map[string]any{"network": desc.ID, "fee": fee}, nil
}

func (s *Server) handleXRPPrice(ctx context.Context, params json.RawMessage) (any, *Error) {
	desc, caller, rpcErr := s.resolveCaller(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	price, err := s.priceMemo.Get(ctx, desc.ID, func(ctx context.Context) (float64, error) {
		return dig.FetchXRPPrice(ctx, caller)
	})
	if err != nil {
		return nil, errInternal(fmt.Sprintf("price lookup failed: %v", err))
	}
	return map[string]any{"network": desc.ID, "xrp_usd": price}, nil
}

func (s *Server) handleServerInfo(ctx context.Context, params json.RawMessage) (any, *Error) {
	desc, caller, rpcErr := s.resolveCaller(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	info, err := s.infoMemo.Get(ctx, desc.ID, func(ctx context.Context) (json.RawMessage, error) {
		return dig.FetchServerInfo(ctx, caller)
	})
	if err != nil {
		return nil, errInternal(fmt.Sprintf("server_info lookup failed: %v", err))
	}
	return map[string]any{"network": desc.ID, "info": info}, nil
}

func snapshotError(account string, err error) *Error {
	if errors.Is(err, dig.ErrInvalidAddress) {
		return errActMalformed(account)
	}
	return errInternal(err.Error())
}

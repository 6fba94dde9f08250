// Package network holds the static table of known XRPL and Xahau networks
// and resolves user-supplied identifiers to connection details.
package network

import (
	"errors"
	"fmt"
	"sort"
)

// Kind classifies a network.
type Kind string

const (
	KindMainnet       Kind = "mainnet"
	KindTestnet       Kind = "testnet"
	KindDevnet        Kind = "devnet"
	KindSidechain     Kind = "sidechain"
	KindSidechainTest Kind = "sidechain-test"
)

// Descriptor describes one network. Descriptors are defined at process start
// and never mutated.
type Descriptor struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	WebSocketURL string `json:"websocket_url"`
	HTTPURL      string `json:"http_url"`
	Kind         Kind   `json:"kind"`
}

// ErrUnknownNetwork is returned when an identifier matches no known network.
var ErrUnknownNetwork = errors.New("unknown network")

// DefaultNetworkID is the network used when resolution falls back.
const DefaultNetworkID = "mainnet"

// builtin networks. URLs match the public cluster endpoints.
var builtin = []Descriptor{
	{
		ID:           "mainnet",
		DisplayName:  "Mainnet",
		WebSocketURL: "wss://xrplcluster.com",
		HTTPURL:      "https://xrplcluster.com",
		Kind:         KindMainnet,
	},
	{
		ID:           "testnet",
		DisplayName:  "Testnet",
		WebSocketURL: "wss://testnet.xrpl-labs.com",
		HTTPURL:      "https://testnet.xrpl-labs.com",
		Kind:         KindTestnet,
	},
	{
		ID:           "devnet",
		DisplayName:  "Devnet",
		WebSocketURL: "wss://s.devnet.rippletest.net:51233",
		HTTPURL:      "https://s.devnet.rippletest.net:51234",
		Kind:         KindDevnet,
	},
	{
		ID:           "xahau",
		DisplayName:  "Xahau Network",
		WebSocketURL: "wss://xahau.network",
		HTTPURL:      "https://xahau.network",
		Kind:         KindSidechain,
	},
	{
		ID:           "xahau-testnet",
		DisplayName:  "Xahau Testnet",
		WebSocketURL: "wss://xahau-test.net",
		HTTPURL:      "https://xahau-test.net",
		Kind:         KindSidechainTest,
	},
}

// Registry resolves network identifiers to descriptors. Pure lookup, no I/O.
type Registry struct {
	byID   map[string]Descriptor
	byWS   map[string]Descriptor
	byHTTP map[string]Descriptor
	order  []string
}

// NewRegistry builds a registry from the built-in table plus any extra
// networks (e.g. from configuration). An extra descriptor with an ID already
// present overrides the built-in entry.
func NewRegistry(extra ...Descriptor) *Registry {
	r := &Registry{
		byID:   make(map[string]Descriptor),
		byWS:   make(map[string]Descriptor),
		byHTTP: make(map[string]Descriptor),
	}
	for _, d := range builtin {
		r.add(d)
	}
	for _, d := range extra {
		r.add(d)
	}
	return r
}

func (r *Registry) add(d Descriptor) {
	if _, exists := r.byID[d.ID]; !exists {
		r.order = append(r.order, d.ID)
	}
	r.byID[d.ID] = d
	r.byWS[d.WebSocketURL] = d
	r.byHTTP[d.HTTPURL] = d
}

// Resolve maps an identifier to a descriptor. Identifiers are matched in
// order: network ID, kind, WebSocket URL, HTTP URL. A miss returns
// ErrUnknownNetwork; it is recoverable, callers normally fall back via
// ResolveOrDefault.
func (r *Registry) Resolve(identifier string) (Descriptor, error) {
	if d, ok := r.byID[identifier]; ok {
		return d, nil
	}
	for _, id := range r.order {
		if string(r.byID[id].Kind) == identifier {
			return r.byID[id], nil
		}
	}
	if d, ok := r.byWS[identifier]; ok {
		return d, nil
	}
	if d, ok := r.byHTTP[identifier]; ok {
		return d, nil
	}
	return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, identifier)
}

// ResolveOrDefault resolves identifier, falling back to the default network
// on a miss. The second return reports whether the fallback was taken so
// callers can surface it.
func (r *Registry) ResolveOrDefault(identifier string) (Descriptor, bool) {
	if identifier == "" {
		return r.byID[DefaultNetworkID], false
	}
	d, err := r.Resolve(identifier)
	if err != nil {
		return r.byID[DefaultNetworkID], true
	}
	return d, false
}

// List returns all descriptors, built-ins first in table order, extras sorted
// after them by ID.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	var extras []string
	seen := make(map[string]bool)
	for _, d := range builtin {
		if cur, ok := r.byID[d.ID]; ok {
			out = append(out, cur)
			seen[d.ID] = true
		}
	}
	for _, id := range r.order {
		if !seen[id] {
			extras = append(extras, id)
		}
	}
	sort.Strings(extras)
	for _, id := range extras {
		out = append(out, r.byID[id])
	}
	return out
}

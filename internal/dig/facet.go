// Package dig aggregates account data from an XRPL or Xahau node. It fans
// out one RPC call per requested facet, tolerates partial failure per facet,
// and merges the results into a single consolidated snapshot.
package dig

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Facet is one category of account data obtainable via a single RPC method.
type Facet string

const (
	FacetAccountInfo  Facet = "accountInfo"
	FacetTransactions Facet = "transactions"
	FacetObjects      Facet = "objects"
	FacetNFTs         Facet = "nfts"
	FacetCurrencies   Facet = "currencies"
	FacetTrustLines   Facet = "trustLines"
	FacetChannels     Facet = "channels"
)

// AllFacets lists every facet in canonical order.
var AllFacets = []Facet{
	FacetAccountInfo,
	FacetTransactions,
	FacetObjects,
	FacetNFTs,
	FacetCurrencies,
	FacetTrustLines,
	FacetChannels,
}

// rpcMethod maps a facet to the ledger RPC method that serves it.
var rpcMethod = map[Facet]string{
	FacetAccountInfo:  "account_info",
	FacetTransactions: "account_tx",
	FacetObjects:      "account_objects",
	FacetNFTs:         "account_nfts",
	FacetCurrencies:   "account_currencies",
	FacetTrustLines:   "account_lines",
	FacetChannels:     "account_channels",
}

// ParseFacet converts a user-supplied name into a Facet. Both the canonical
// names and the short aliases used by the CLI are accepted.
func ParseFacet(s string) (Facet, error) {
	switch strings.TrimSpace(s) {
	case "accountInfo", "info":
		return FacetAccountInfo, nil
	case "transactions", "tx":
		return FacetTransactions, nil
	case "objects", "obj":
		return FacetObjects, nil
	case "nfts", "nft":
		return FacetNFTs, nil
	case "currencies", "currency":
		return FacetCurrencies, nil
	case "trustLines", "lines", "line":
		return FacetTrustLines, nil
	case "channels", "channel":
		return FacetChannels, nil
	}
	return "", fmt.Errorf("unknown facet %q", s)
}

// ParseFacets converts a list of names, rejecting unknown ones.
func ParseFacets(names []string) ([]Facet, error) {
	facets := make([]Facet, 0, len(names))
	for _, name := range names {
		f, err := ParseFacet(name)
		if err != nil {
			return nil, err
		}
		facets = append(facets, f)
	}
	return facets, nil
}

// ErrUnknownFacet is returned for Facet values outside the known set, so a
// typo in a caller-constructed facet cannot silently shrink the request.
var ErrUnknownFacet = errors.New("unknown facet")

// effectiveFacets resolves the requested set: an empty request means all
// facets, duplicates collapse, and unknown values are rejected.
func effectiveFacets(requested []Facet) ([]Facet, error) {
	if len(requested) == 0 {
		out := make([]Facet, len(AllFacets))
		copy(out, AllFacets)
		return out, nil
	}
	seen := make(map[Facet]bool, len(requested))
	for _, r := range requested {
		if _, ok := rpcMethod[r]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFacet, r)
		}
		seen[r] = true
	}
	var out []Facet
	for _, f := range AllFacets {
		if seen[f] {
			out = append(out, f)
		}
	}
	return out, nil
}

// CanonicalKey renders a facet set as a stable string, used for cache keys.
// Unknown facets are keyed verbatim; the fetch behind such a key fails
// before anything is cached under it.
func CanonicalKey(facets []Facet) string {
	eff, err := effectiveFacets(facets)
	if err != nil {
		eff = facets
	}
	names := make([]string, len(eff))
	for i, f := range eff {
		names[i] = string(f)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

package dig

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/LeJamon/goXRPLdig/internal/rpcclient"
)

// ErrAccountNotFound is the semantic negative for an unfunded address. Only
// the accountInfo fetcher produces it; every other facet treats all RPC
// failures uniformly.
var ErrAccountNotFound = errors.New("account not found")

// txHistoryLimit bounds the account_tx page fetched per aggregation.
const txHistoryLimit = 10

func fetchAccountInfo(ctx context.Context, c rpcclient.Caller, account string) (*AccountData, error) {
	raw, err := c.Call(ctx, rpcMethod[FacetAccountInfo], map[string]any{
		"account": account,
	})
	if err != nil {
		if rpcclient.IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	var result struct {
		AccountData AccountData `json:"account_data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &rpcclient.RPCError{
			Kind:    rpcclient.KindTransport,
			Message: "malformed account_info result",
			Err:     err,
		}
	}
	return &result.AccountData, nil
}

func fetchTransactions(ctx context.Context, c rpcclient.Caller, account string) ([]Transaction, error) {
	raw, err := c.Call(ctx, rpcMethod[FacetTransactions], map[string]any{
		"account":          account,
		"ledger_index_max": -1,
		"limit":            txHistoryLimit,
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &rpcclient.RPCError{
			Kind:    rpcclient.KindTransport,
			Message: "malformed account_tx result",
			Err:     err,
		}
	}
	return result.Transactions, nil
}

func fetchObjects(ctx context.Context, c rpcclient.Caller, account string) ([]json.RawMessage, error) {
	raw, err := c.Call(ctx, rpcMethod[FacetObjects], map[string]any{
		"account": account,
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		AccountObjects []json.RawMessage `json:"account_objects"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &rpcclient.RPCError{
			Kind:    rpcclient.KindTransport,
			Message: "malformed account_objects result",
			Err:     err,
		}
	}
	return result.AccountObjects, nil
}

func fetchNFTs(ctx context.Context, c rpcclient.Caller, account string) ([]NFToken, error) {
	raw, err := c.Call(ctx, rpcMethod[FacetNFTs], map[string]any{
		"account": account,
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		AccountNFTs []NFToken `json:"account_nfts"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &rpcclient.RPCError{
			Kind:    rpcclient.KindTransport,
			Message: "malformed account_nfts result",
			Err:     err,
		}
	}
	return result.AccountNFTs, nil
}

func fetchCurrencies(ctx context.Context, c rpcclient.Caller, account string) ([]string, error) {
	raw, err := c.Call(ctx, rpcMethod[FacetCurrencies], map[string]any{
		"account": account,
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		ReceiveCurrencies []string `json:"receive_currencies"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &rpcclient.RPCError{
			Kind:    rpcclient.KindTransport,
			Message: "malformed account_currencies result",
			Err:     err,
		}
	}
	return result.ReceiveCurrencies, nil
}

func fetchTrustLines(ctx context.Context, c rpcclient.Caller, account string) ([]TrustLine, error) {
	raw, err := c.Call(ctx, rpcMethod[FacetTrustLines], map[string]any{
		"account": account,
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		Lines []TrustLine `json:"lines"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &rpcclient.RPCError{
			Kind:    rpcclient.KindTransport,
			Message: "malformed account_lines result",
			Err:     err,
		}
	}
	return result.Lines, nil
}

func fetchChannels(ctx context.Context, c rpcclient.Caller, account string) ([]Channel, error) {
	raw, err := c.Call(ctx, rpcMethod[FacetChannels], map[string]any{
		"account": account,
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		Channels []Channel `json:"channels"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &rpcclient.RPCError{
			Kind:    rpcclient.KindTransport,
			Message: "malformed account_channels result",
			Err:     err,
		}
	}
	return result.Channels, nil
}

package dig

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/LeJamon/goXRPLdig/internal/rpcclient"
)

// The DEX pair used to derive an indicative XRP/USD price from book_offers.
const (
	priceTaker      = "r3kmLJN5D28dHuH8vZNUZpMC43pEHpaocV"
	priceUSDIssuer  = "rvYAfWj5gh67oV6fW32ZzP3Aw4Eubs59B"
	dropsPerXRP     = 1_000_000
	qualityToXRPUSD = 1_000_000
)

// FeeData is the subset of the fee method this package exposes.
type FeeData struct {
	BaseFee       string `json:"base_fee"`
	OpenLedgerFee string `json:"open_ledger_fee"`
	LedgerIndex   uint32 `json:"ledger_index"`
}

// FetchFee reads the current fee levels.
func FetchFee(ctx context.Context, c rpcclient.Caller) (*FeeData, error) {
	raw, err := c.Call(ctx, "fee", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Drops struct {
			BaseFee       string `json:"base_fee"`
			OpenLedgerFee string `json:"open_ledger_fee"`
		} `json:"drops"`
		LedgerCurrentIndex uint32 `json:"ledger_current_index"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("malformed fee result: %w", err)
	}

	fee := &FeeData{
		BaseFee:       result.Drops.BaseFee,
		OpenLedgerFee: result.Drops.OpenLedgerFee,
		LedgerIndex:   result.LedgerCurrentIndex,
	}
	if fee.BaseFee == "" {
		fee.BaseFee = "10"
	}
	if fee.OpenLedgerFee == "" {
		fee.OpenLedgerFee = "10"
	}
	return fee, nil
}

// FetchXRPPrice derives an indicative XRP/USD price from the top of the DEX
// order book. The first offer's quality is USD-per-drop, so one XRP costs
// quality times one million.
func FetchXRPPrice(ctx context.Context, c rpcclient.Caller) (float64, error) {
	raw, err := c.Call(ctx, "book_offers", map[string]any{
		"taker":      priceTaker,
		"taker_gets": map[string]any{"currency": "XRP"},
		"taker_pays": map[string]any{
			"currency": "USD",
			"issuer":   priceUSDIssuer,
		},
		"limit": 1,
	})
	if err != nil {
		return 0, err
	}

	var result struct {
		Offers []struct {
			Quality string `json:"quality"`
		} `json:"offers"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("malformed book_offers result: %w", err)
	}
	if len(result.Offers) == 0 {
		return 0, fmt.Errorf("order book is empty")
	}

	quality, err := strconv.ParseFloat(result.Offers[0].Quality, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing offer quality %q: %w", result.Offers[0].Quality, err)
	}
	return quality * qualityToXRPUSD, nil
}

// FetchServerInfo reads server_info and returns the raw info object.
func FetchServerInfo(ctx context.Context, c rpcclient.Caller) (json.RawMessage, error) {
	raw, err := c.Call(ctx, "server_info", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Info json.RawMessage `json:"info"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("malformed server_info result: %w", err)
	}
	return result.Info, nil
}

// FetchBalance reads the account's XRP balance in XRP (not drops). It maps
// actNotFound to ErrAccountNotFound like the accountInfo facet.
func FetchBalance(ctx context.Context, c rpcclient.Caller, account string) (float64, error) {
	info, err := fetchAccountInfo(ctx, c, account)
	if err != nil {
		return 0, err
	}
	drops, err := strconv.ParseFloat(info.Balance, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing balance %q: %w", info.Balance, err)
	}
	return drops / dropsPerXRP, nil
}

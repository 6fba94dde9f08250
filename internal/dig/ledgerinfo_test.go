package dig

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goXRPLdig/internal/rpcclient"
)

func TestFetchFee(t *testing.T) {
	fake := &fakeCaller{handler: func(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
		require.Equal(t, "fee", method)
		return json.RawMessage(`{"drops":{"base_fee":"10","open_ledger_fee":"12"},"ledger_current_index":95000000}`), nil
	}}

	fee, err := FetchFee(context.Background(), fake)
	require.NoError(t, err)
	assert.Equal(t, "10", fee.BaseFee)
	assert.Equal(t, "12", fee.OpenLedgerFee)
	assert.Equal(t, uint32(95000000), fee.LedgerIndex)
}

func TestFetchFeeDefaults(t *testing.T) {
	fake := &fakeCaller{handler: func(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	}}

	fee, err := FetchFee(context.Background(), fake)
	require.NoError(t, err)
	assert.Equal(t, "10", fee.BaseFee)
	assert.Equal(t, "10", fee.OpenLedgerFee)
}

func TestFetchXRPPrice(t *testing.T) {
	fake := &fakeCaller{handler: func(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
		require.Equal(t, "book_offers", method)
		gets, ok := params["taker_gets"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "XRP", gets["currency"])
		return json.RawMessage(`{"offers":[{"quality":"0.00000052"}]}`), nil
	}}

	price, err := FetchXRPPrice(context.Background(), fake)
	require.NoError(t, err)
	assert.InDelta(t, 0.52, price, 1e-9)
}

func TestFetchXRPPriceEmptyBook(t *testing.T) {
	fake := &fakeCaller{handler: func(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
		return json.RawMessage(`{"offers":[]}`), nil
	}}

	_, err := FetchXRPPrice(context.Background(), fake)
	require.Error(t, err)
}

func TestFetchServerInfo(t *testing.T) {
	fake := &fakeCaller{handler: func(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
		require.Equal(t, "server_info", method)
		return json.RawMessage(`{"info":{"build_version":"2.0.0","complete_ledgers":"32570-95000000"}}`), nil
	}}

	info, err := FetchServerInfo(context.Background(), fake)
	require.NoError(t, err)

	var decoded struct {
		BuildVersion string `json:"build_version"`
	}
	require.NoError(t, json.Unmarshal(info, &decoded))
	assert.Equal(t, "2.0.0", decoded.BuildVersion)
}

func TestFetchBalance(t *testing.T) {
	fake := &fakeCaller{handler: func(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
		return json.RawMessage(`{"account_data":{"Account":"` + genesisAddr + `","Balance":"25500000"}}`), nil
	}}

	balance, err := FetchBalance(context.Background(), fake, genesisAddr)
	require.NoError(t, err)
	assert.InDelta(t, 25.5, balance, 1e-9)
}

func TestFetchBalanceNotFound(t *testing.T) {
	fake := &fakeCaller{handler: func(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
		return nil, &rpcclient.RPCError{Kind: rpcclient.KindProtocol, Code: "actNotFound", Message: "Account not found."}
	}}

	_, err := FetchBalance(context.Background(), fake, oneAddr)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

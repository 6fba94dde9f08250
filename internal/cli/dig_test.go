package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goXRPLdig/internal/dig"
	"github.com/LeJamon/goXRPLdig/internal/network"
)

func TestWriteSnapshotSummary(t *testing.T) {
	snap := &dig.Snapshot{
		Address:    "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
		Network:    network.Descriptor{ID: "mainnet", Kind: network.KindMainnet},
		Activation: dig.Activated,
		AccountInfo: &dig.AccountData{
			Account:  "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
			Balance:  "1000000",
			Sequence: 42,
		},
		Transactions: []dig.Transaction{{Hash: "ABC"}, {Hash: "DEF"}},
		NFTs:         []dig.NFToken{},
		Errors: map[dig.Facet]*dig.FacetError{
			dig.FacetNFTs: {Facet: dig.FacetNFTs, Message: "request timed out"},
		},
		Requested: []dig.Facet{dig.FacetAccountInfo, dig.FacetTransactions, dig.FacetNFTs},
	}

	var buf bytes.Buffer
	require.NoError(t, writeSnapshotSummary(&buf, snap))
	out := buf.String()

	assert.Contains(t, out, "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh")
	assert.Contains(t, out, "mainnet")
	assert.Contains(t, out, "activated")
	assert.Contains(t, out, "1000000 drops")
	assert.Contains(t, out, "FACET")
	assert.Contains(t, out, "error: request timed out")

	// One row per requested facet, none for unrequested ones.
	assert.Contains(t, out, "transactions")
	assert.NotContains(t, out, "trustLines")
}

func TestWriteSnapshotSummaryNotActivated(t *testing.T) {
	snap := &dig.Snapshot{
		Address:    "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
		Network:    network.Descriptor{ID: "testnet", Kind: network.KindTestnet},
		Activation: dig.NotActivated,
		Requested:  []dig.Facet{dig.FacetAccountInfo},
	}

	var buf bytes.Buffer
	require.NoError(t, writeSnapshotSummary(&buf, snap))
	out := buf.String()

	assert.Contains(t, out, "not-activated")
	// No account_info payload, no balance line.
	assert.NotContains(t, out, "drops")
}

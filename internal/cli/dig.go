package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/LeJamon/goXRPLdig/internal/dig"
)

var (
	digNetwork string
	digFacets  []string
	digTimeout time.Duration
	digNoCache bool
)

var digCmd = &cobra.Command{
	Use:   "dig ACCOUNT",
	Short: "Fetch an aggregated snapshot of one account",
	Long: `Fetch the requested facets of an account concurrently and print the
merged snapshot as JSON, or as a short summary table with --quiet. Facets
that fail are reported in the snapshot's errors map without discarding the
rest.

Facets: accountInfo, transactions, objects, nfts, currencies, trustLines,
channels (no --facets flag requests all of them).`,
	Args: cobra.ExactArgs(1),
	RunE: runDig,
}

func init() {
	rootCmd.AddCommand(digCmd)

	digCmd.Flags().StringVarP(&digNetwork, "network", "n", "", "network id, kind or endpoint URL (default: configured network)")
	digCmd.Flags().StringSliceVarP(&digFacets, "facets", "f", nil, "facets to fetch (comma separated, default all)")
	digCmd.Flags().DurationVar(&digTimeout, "timeout", 0, "overall timeout (default: configured aggregate timeout)")
	digCmd.Flags().BoolVar(&digNoCache, "no-cache", false, "bypass the snapshot cache")
}

func runDig(cmd *cobra.Command, args []string) error {
	account := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if digTimeout > 0 {
		cfg.Timeouts.Aggregate = digTimeout
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := buildStack(cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	facets, err := dig.ParseFacets(digFacets)
	if err != nil {
		return err
	}

	networkID := digNetwork
	if networkID == "" {
		networkID = cfg.Network
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeouts.Aggregate)
	defer cancel()

	var snap *dig.Snapshot
	if digNoCache {
		snap, err = st.aggregator.Aggregate(ctx, account, networkID, facets...)
	} else {
		snap, err = st.snapshots.GetOrFetch(ctx, account, networkID, facets...)
	}
	if err != nil {
		return err
	}

	if quiet {
		if err := writeSnapshotSummary(os.Stdout, snap); err != nil {
			return err
		}
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("encoding snapshot: %w", err)
		}
	}

	// Non-zero exit when every requested facet failed, so scripts notice.
	if len(snap.Errors) > 0 && len(snap.Errors) == len(snap.Requested) {
		return fmt.Errorf("all %d facets failed", len(snap.Errors))
	}
	return nil
}

// writeSnapshotSummary renders the terse table the --quiet flag selects
// instead of the full JSON snapshot.
func writeSnapshotSummary(w io.Writer, snap *dig.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "account:\t%s\n", snap.Address)
	fmt.Fprintf(tw, "network:\t%s (%s)\n", snap.Network.ID, snap.Network.Kind)
	fmt.Fprintf(tw, "activation:\t%s\n", snap.Activation)
	if snap.AccountInfo != nil {
		fmt.Fprintf(tw, "balance:\t%s drops\n", snap.AccountInfo.Balance)
		fmt.Fprintf(tw, "sequence:\t%d\n", snap.AccountInfo.Sequence)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "FACET\tSTATUS\tITEMS")
	for _, f := range snap.Requested {
		if fe, ok := snap.Errors[f]; ok {
			fmt.Fprintf(tw, "%s\terror: %s\t-\n", f, fe.Message)
			continue
		}
		fmt.Fprintf(tw, "%s\tok\t%d\n", f, facetItems(snap, f))
	}
	return tw.Flush()
}

func facetItems(snap *dig.Snapshot, f dig.Facet) int {
	switch f {
	case dig.FacetAccountInfo:
		if snap.AccountInfo != nil {
			return 1
		}
		return 0
	case dig.FacetTransactions:
		return len(snap.Transactions)
	case dig.FacetObjects:
		return len(snap.Objects)
	case dig.FacetNFTs:
		return len(snap.NFTs)
	case dig.FacetCurrencies:
		return len(snap.Currencies)
	case dig.FacetTrustLines:
		return len(snap.TrustLines)
	case dig.FacetChannels:
		return len(snap.Channels)
	}
	return 0
}

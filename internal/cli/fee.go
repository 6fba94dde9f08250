package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/LeJamon/goXRPLdig/internal/dig"
	"github.com/LeJamon/goXRPLdig/internal/rpcclient"
)

var feeNetwork string

var feeCmd = &cobra.Command{
	Use:   "fee",
	Short: "Show the current fee levels and XRP/USD price of a network",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg.Log)
		if err != nil {
			return err
		}
		defer log.Sync()

		registry, networkID := buildRegistry(cfg), feeNetwork
		if networkID == "" {
			networkID = cfg.Network
		}
		desc, _ := registry.ResolveOrDefault(networkID)
		caller := rpcclient.NewHTTPClient(desc.HTTPURL,
			rpcclient.WithHTTPTimeout(cfg.Timeouts.Call),
			rpcclient.WithHTTPLogger(log))

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeouts.Aggregate)
		defer cancel()

		fee, err := dig.FetchFee(ctx, caller)
		if err != nil {
			return err
		}
		out := map[string]any{
			"network": desc.ID,
			"fee":     fee,
		}
		// The DEX price pair only exists on mainnet-class ledgers; elsewhere
		// an empty book is expected, not an error worth failing on.
		if price, err := dig.FetchXRPPrice(ctx, caller); err == nil {
			out["xrp_usd"] = price
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(feeCmd)
	feeCmd.Flags().StringVarP(&feeNetwork, "network", "n", "", "network id, kind or endpoint URL")
}

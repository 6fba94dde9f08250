package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List the known networks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		registry := buildRegistry(cfg)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tNAME\tHTTP\tWEBSOCKET")
		for _, d := range registry.List() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				d.ID, d.Kind, d.DisplayName, d.HTTPURL, d.WebSocketURL)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(networksCmd)
}

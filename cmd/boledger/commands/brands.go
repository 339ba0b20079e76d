package commands

import (
	"os"

	"boledger/internal/ledger"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(brandsCmd)
}

var brandsCmd = &cobra.Command{
	Use:   "brands",
	Short: "Prints the configured brands and their endpoints.",
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoints, err := cfg.Endpoints()
		if err != nil {
			return err
		}
		ledger.RenderBrands(os.Stdout, cfg, endpoints)
		return nil
	},
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"axewatch/internal/app"
)

var (
	bestLimit  int
	bestRecord bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Fetch the device once and print its status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Status(cmd.Context())
	},
}

var bestCmd = &cobra.Command{
	Use:   "best",
	Short: "Display the best difficulty history, highest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if bestLimit < 0 {
			return fmt.Errorf("--limit cannot be negative")
		}

		opts := app.BestOptions{
			Record: bestRecord,
			Limit:  bestLimit,
		}

		return getApp().Best(cmd.Context(), opts)
	},
}

func init() {
	bestCmd.Flags().IntVar(&bestLimit, "limit", 0, "Number of records to display (0 shows all)")
	bestCmd.Flags().BoolVar(&bestRecord, "record", false, "Fetch the device and record its current best before listing")
}

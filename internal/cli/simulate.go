package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"axewatch/internal/alerting"
	"axewatch/internal/app"
	"axewatch/internal/difficulty"
)

var (
	simulateKind  string
	simulateValue string
	simulatePool  string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic alert through the configured channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := alerting.ParseKind(simulateKind)
		if err != nil {
			return err
		}

		opts := app.SimulateOptions{Kind: kind, Pool: simulatePool}
		if simulateValue != "" {
			value, ok := difficulty.Parse(simulateValue)
			if !ok {
				return fmt.Errorf("invalid --value %q", simulateValue)
			}
			opts.Value = value
		}

		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	names := make([]string, 0, len(alerting.Kinds))
	for _, k := range alerting.Kinds {
		names = append(names, string(k))
	}

	simulateCmd.Flags().StringVar(&simulateKind, "kind", string(alerting.KindLowHashrate), "Alert kind: "+strings.Join(names, ", "))
	simulateCmd.Flags().StringVar(&simulateValue, "value", "", "Hashrate in MH/s or difficulty such as 568M")
	simulateCmd.Flags().StringVar(&simulatePool, "pool", "", "Pool URL for fallback_activated")
}

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lumafi/flasharb/utils"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "flasharb",
	Short: "A flash loan arbitrage bot for cross-DEX price discrepancies",
	Long: `A bot that scans multiple DEX protocols for price discrepancies on
configured token pairs and executes atomic flash loan arbitrage when the
round trip clears fees, slippage and the loan premium.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initLogging)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./flasharb.json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initLogging() {
	utils.InitLogger(debug)
}

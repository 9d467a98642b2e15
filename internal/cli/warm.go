package cli

import (
	"time"

	"github.com/spf13/cobra"

	"equity-analyst/internal/app"
)

var (
	warmTickers []string
	warmTimeout time.Duration
)

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Refresh stale reports for the watchlist once, in-process",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Warm(cmd.Context(), app.WarmOptions{
			Tickers: warmTickers,
			Timeout: warmTimeout,
		})
	},
}

func init() {
	warmCmd.Flags().StringSliceVar(&warmTickers, "tickers", nil, "Tickers to refresh (defaults to watchlist.tickers)")
	warmCmd.Flags().DurationVar(&warmTimeout, "timeout", 10*time.Minute, "Give up on pending jobs after this long")
}

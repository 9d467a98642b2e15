package cli

import (
	"github.com/spf13/cobra"

	"equity-analyst/internal/app"
)

var (
	analyzeJSON   bool
	analyzeServer string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze TICKER",
	Short: "Request a report from a running server and wait for it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Analyze(cmd.Context(), app.AnalyzeOptions{
			Ticker:  args[0],
			JSON:    analyzeJSON,
			BaseURL: analyzeServer,
		})
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the report as JSON")
	analyzeCmd.Flags().StringVar(&analyzeServer, "server", "", "Server base URL (defaults to client.base_url)")
}

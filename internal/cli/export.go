package cli

import (
	"github.com/spf13/cobra"

	"equity-analyst/internal/app"
)

var (
	exportCSVPath string
	exportLimit   int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored reports as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			CSVPath: exportCSVPath,
			Limit:   exportLimit,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data (- for stdout)")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "Maximum reports to export (0 for all)")
}

package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lobsim/lobsim/sim/export"
)

var reportCmd = &cobra.Command{
	Use:   "report [output-dir]",
	Short: "Print summary statistics from a previous run's CSV files",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := "output"
		if len(args) == 1 {
			dir = args[0]
		}
		tables, err := export.ReadCSV(dir)
		if err != nil {
			logrus.Fatalf("Loading results from %s: %v", dir, err)
		}
		logrus.Infof("Loaded %d trades, %d snapshots, %d P&L rows from %s",
			tables.Trades.Len(), tables.Snapshots.Len(), tables.PnL.Len(), dir)
		if err := export.WriteSummary(os.Stdout, tables); err != nil {
			logrus.Fatalf("Writing summary: %v", err)
		}
	},
}

func registerReport(root *cobra.Command) {
	root.AddCommand(reportCmd)
}

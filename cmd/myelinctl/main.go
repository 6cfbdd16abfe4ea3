package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bl0ckchained/myelinmap-sub000/pkg/logger"
)

const version = "0.1.0"

// cli carries the global flags shared by every subcommand.
type cli struct {
	verbose bool
	data    string
	now     func() time.Time
	log     *zap.Logger
}

func main() {
	if err := newRootCommand(time.Now).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(now func() time.Time) *cobra.Command {
	c := &cli{now: now, log: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "myelinctl",
		Short: "myelinctl - offline habit predictions and insights",
		Long: `myelinctl trains and queries the habit predictor against a history file.
All output is JSON on stdout.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.log = logger.NewCLILogger(c.verbose)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().StringVarP(&c.data, "data", "d", "history.json", "History file with habits and activities")

	rootCmd.AddCommand(newTrainCommand(c))
	rootCmd.AddCommand(newPredictCommand(c))
	rootCmd.AddCommand(newInsightsCommand(c))
	rootCmd.AddCommand(newCorrelateCommand(c))
	rootCmd.AddCommand(newOutboxCommand(c))

	return rootCmd
}

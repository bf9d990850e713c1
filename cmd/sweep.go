package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sw33tLie/evscope/internal/utils"
	"github.com/sw33tLie/evscope/pkg/ingest"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Deactivate stale, past and far-future events without scraping",
	RunE: func(cmd *cobra.Command, args []string) error {
		staleAfter, err := durationSetting("sweep.stale_after")
		if err != nil {
			return err
		}
		if raw, _ := cmd.Flags().GetString("stale-after"); raw != "" {
			if staleAfter, err = utils.ParseDuration(raw); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		cat, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer cat.Close()

		sweeper := ingest.NewSweeper(cat, utils.Log)
		sum, err := sweeper.Sweep(ctx, staleAfter)
		fmt.Printf("Deactivated %d (not scraped: %d, past: %d, far future: %d)\n",
			sum.Total, sum.NotScraped, sum.PastDates, sum.FarFuture)
		return err
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().String("stale-after", "", fmt.Sprintf("Deactivate events not seen for this long (default from sweep.stale_after, %v)", ingest.DefaultStaleAfter))
}

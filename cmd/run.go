package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sw33tLie/evscope/internal/utils"
	"github.com/sw33tLie/evscope/pkg/ingest"
)

// runCmd implements: evscope run
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion cycle: fetch all sources, reconcile, sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		dev, _ := cmd.Flags().GetBool("dev")
		if format != "text" && format != "json" && format != "yaml" {
			return fmt.Errorf("unknown format %q (supported: text, json, yaml)", format)
		}

		ctx := cmd.Context()
		cat, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer cat.Close()

		adapters, err := buildAdapters(dev)
		if err != nil {
			return err
		}
		if len(adapters) == 0 {
			utils.Log.Info("No sources enabled. The run will only sweep the catalog.")
		}

		runner, err := newRunner(cat, adapters, nil)
		if err != nil {
			return err
		}

		summary, runErr := runner.RunOnce(ctx)
		if errors.Is(runErr, ingest.ErrRunInProgress) {
			utils.Log.Warn("Another run is in progress, nothing to do.")
			return nil
		}

		utils.Log.WithFields(logrus.Fields{
			"inserted":    summary.InsertedTotal,
			"updated":     summary.UpdatedTotal,
			"deactivated": summary.Deactivated.Total,
			"duration":    summary.Duration,
		}).Info("Run finished")

		if err := printSummary(os.Stdout, format, summary); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("format", "f", "text", "Summary format: text, json or yaml")
	runCmd.Flags().Bool("dev", false, "Use the built-in sample source instead of the real sites")
}

func printSummary(out io.Writer, format string, summary ingest.RunSummary) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(summary)
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "SOURCE\tFETCHED\tNEW\tUPDATED\tUNCHANGED\tSKIPPED\t")
	for _, s := range summary.Sources {
		if s.Error != "" {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\t-\t\n", s.Name)
			continue
		}
		r := s.Result
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t\n", s.Name, s.Fetched, r.Inserted, r.Updated, r.Unchanged, r.Skipped)
	}
	fmt.Fprintln(w, " \t \t \t \t \t \t")
	fmt.Fprintf(w, "TOTAL\t \t%d\t%d\t \t \t\n", summary.InsertedTotal, summary.UpdatedTotal)
	w.Flush()

	d := summary.Deactivated
	fmt.Fprintf(out, "\nDeactivated %d (not scraped: %d, past: %d, far future: %d)\n", d.Total, d.NotScraped, d.PastDates, d.FarFuture)
	for _, s := range summary.Sources {
		if s.Error != "" {
			fmt.Fprintf(out, "[!] %s: %s\n", s.Name, s.Error)
		}
	}
	if summary.SweepError != "" {
		fmt.Fprintf(out, "[!] sweep: %s\n", summary.SweepError)
	}
	return nil
}

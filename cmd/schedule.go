package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/sw33tLie/evscope/internal/server"
	"github.com/sw33tLie/evscope/internal/utils"
	"github.com/sw33tLie/evscope/pkg/ingest"
)

// scheduleCmd implements: evscope schedule
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run ingestion now and then on a fixed interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _ := cmd.Flags().GetBool("dev")
		listen, _ := cmd.Flags().GetString("listen")

		interval, err := durationSetting("schedule.interval")
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cat, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer cat.Close()

		adapters, err := buildAdapters(dev)
		if err != nil {
			return err
		}

		reg := newRegistry()
		runner, err := newRunner(cat, adapters, reg)
		if err != nil {
			return err
		}

		// Picks up sweep.stale_after edits without a restart.
		viper.OnConfigChange(func(e fsnotify.Event) {
			staleAfter, err := durationSetting("sweep.stale_after")
			if err != nil {
				utils.Log.Warnf("Ignoring config change in %s: %v", e.Name, err)
				return
			}
			runner.SetStaleAfter(staleAfter)
			utils.Log.Infof("Config changed, stale-after is now %v", runner.StaleAfter())
		})
		viper.WatchConfig()

		scheduler := ingest.NewScheduler(runner, interval, utils.Log)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return scheduler.Start(gctx) })
		if listen != "" {
			srv := server.New(cat, runner, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
				viper.GetString("server.username"), viper.GetString("server.password"))
			g.Go(func() error { return srv.Start(gctx, listen) })
		}
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().Bool("dev", false, "Use the built-in sample source instead of the real sites")
	scheduleCmd.Flags().String("listen", "", "Also serve the HTTP API on this address (e.g. :8080)")
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}


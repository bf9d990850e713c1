package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sw33tLie/evscope/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the events API",
	Long:  `Start an HTTP server exposing the catalog, manual imports, manual runs and metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _ := cmd.Flags().GetBool("dev")
		listen, _ := cmd.Flags().GetString("listen")
		if listen == "" {
			listen = viper.GetString("server.listen")
		}
		user, _ := cmd.Flags().GetString("username")
		if user == "" {
			user = viper.GetString("server.username")
		}
		pass, _ := cmd.Flags().GetString("password")
		if pass == "" {
			pass = viper.GetString("server.password")
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

		srv := server.New(cat, runner, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), user, pass)
		return srv.Start(ctx, listen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "HTTP listen address (default from server.listen)")
	serveCmd.Flags().StringP("username", "u", "", "Username for basic auth (optional)")
	serveCmd.Flags().StringP("password", "p", "", "Password for basic auth (optional)")
	serveCmd.Flags().Bool("dev", false, "Use the built-in sample source for POST /api/runs")
}

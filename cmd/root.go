package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/evscope/internal/utils"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	                                        
	  _____   _____  ___ ___  _ __   ___ 
	 / _ \ \ / / __|/ __/ _ \| '_ \ / _ \
	|  __/\ V /\__ \ (_| (_) | |_) |  __/
	 \___| \_/ |___/\___\___/| .__/ \___|
	                         |_|         

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "evscope",
	Short: "Event listing ingestion and reconciliation.",
	Long: LOGO + `evscope scrapes event listings from City of Sydney and Eventbrite, keeps a
deduplicated catalog of them, and retires listings that disappear or expire.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.evscope.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (overrides db.path)")

	viper.BindPFlag("http.proxy", rootCmd.PersistentFlags().Lookup("proxy"))
	viper.BindPFlag("db.path", rootCmd.PersistentFlags().Lookup("dbpath"))
}

func setDefaults() {
	viper.SetDefault("db.driver", "sqlite")
	viper.SetDefault("db.path", "evscope.sqlite")
	viper.SetDefault("db.dsn", "")
	viper.SetDefault("db.connect_retries", 5)

	viper.SetDefault("schedule.interval", "6h")
	viper.SetDefault("sweep.stale_after", "24h")

	viper.SetDefault("run.fetch_timeout", "2m")
	viper.SetDefault("run.record_timeout", "10s")
	viper.SetDefault("run.lock_file", "")

	viper.SetDefault("http.proxy", "")
	viper.SetDefault("http.timeout", "30s")
	viper.SetDefault("http.retries", 3)

	viper.SetDefault("sources.cityofsydney.enabled", true)
	viper.SetDefault("sources.cityofsydney.base_url", "https://whatson.cityofsydney.nsw.gov.au")
	viper.SetDefault("sources.cityofsydney.max_records", 10)
	viper.SetDefault("sources.cityofsydney.rate", 1.0)
	viper.SetDefault("sources.eventbrite.enabled", true)
	viper.SetDefault("sources.eventbrite.list_url", "https://www.eventbrite.com.au/d/australia--sydney/events/")
	viper.SetDefault("sources.eventbrite.max_records", 10)
	viper.SetDefault("sources.eventbrite.rate", 1.0)

	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".evscope")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("evscope")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := filepath.Join(home, ".evscope.yaml")
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s\n", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sw33tLie/evscope/internal/utils"
	"github.com/sw33tLie/evscope/pkg/event"
	"github.com/sw33tLie/evscope/pkg/storage"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the evscope database",
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if driver := viper.GetString("db.driver"); driver != "sqlite" && driver != "" {
			return fmt.Errorf("db shell only supports the sqlite driver, use psql for %s", driver)
		}
		dbPath := viper.GetString("db.path")

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the db shell")
		}

		// Print schema first
		fmt.Println("--> Database schema:")
		schemaCmd := exec.Command(sqlitePath, dbPath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(sqlitePath, dbPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the events in the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer cat.Close()

		stats, err := cat.GetStats(cmd.Context())
		if err != nil {
			return err
		}

		if stats.Total == 0 {
			fmt.Println("No data in the database to generate stats.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "SOURCE\tNEW\tUPDATED\tIMPORTED\tINACTIVE\tTOTAL\t")

		for _, s := range stats.Sources {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t\n", s.Source, s.New, s.Updated, s.Imported, s.Inactive, s.Total)
		}

		fmt.Fprintln(w, " \t \t \t \t \t \t")
		fmt.Fprintf(w, "TOTAL\t%d\t%d\t%d\t%d\t%d\t\n",
			stats.ByStatus[event.StatusNew], stats.ByStatus[event.StatusUpdated],
			stats.ByStatus[event.StatusImported], stats.ByStatus[event.StatusInactive], stats.Total)

		w.Flush()

		return nil
	},
}

// listCmd prints catalog events, active ones by default.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List events in the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFlag, _ := cmd.Flags().GetString("status")
		opts := storage.ListOptions{}
		opts.Source, _ = cmd.Flags().GetString("source")
		opts.City, _ = cmd.Flags().GetString("city")
		opts.Keyword, _ = cmd.Flags().GetString("search")
		opts.Limit, _ = cmd.Flags().GetInt("limit")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")

		var err error
		if opts.StartFrom, opts.StartTo, err = event.ParseBounds(from, to); err != nil {
			return err
		}

		if statusFlag != "" {
			for _, part := range strings.Split(statusFlag, ",") {
				st := event.Status(strings.TrimSpace(part))
				if !st.Valid() {
					return fmt.Errorf("invalid status %q", part)
				}
				opts.Statuses = append(opts.Statuses, st)
			}
		}

		cat, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer cat.Close()

		events, err := cat.List(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No matching events.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tSTART\tTITLE\tVENUE\tCATEGORIES")
		for _, e := range events {
			start := "-"
			if e.Start != nil {
				start = e.Start.Local().Format("2006-01-02 15:04")
			}
			cats := append([]string(nil), e.Categories...)
			sort.Strings(cats)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.Status, start, e.Title, utils.OrDash(e.Venue), strings.Join(cats, ","))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(shellCmd)
	dbCmd.AddCommand(statsCmd)
	dbCmd.AddCommand(listCmd)

	listCmd.Flags().String("status", "", "Comma-separated statuses (default: new,updated)")
	listCmd.Flags().String("source", "", "Only events from this source")
	listCmd.Flags().String("city", "", "Only events in this city")
	listCmd.Flags().StringP("search", "s", "", "Keyword search over title, venue and description")
	listCmd.Flags().String("from", "", "Only events starting on or after this date")
	listCmd.Flags().String("to", "", "Only events starting on or before this date")
	listCmd.Flags().Int("limit", storage.DefaultListLimit, "Maximum number of events")
}

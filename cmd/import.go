package cmd

import (
	"errors"
	"fmt"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"github.com/sw33tLie/evscope/pkg/storage"
)

var importCmd = &cobra.Command{
	Use:   "import <event-id>",
	Short: "Mark an event as imported into the curated catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		by, _ := cmd.Flags().GetString("by")
		notes, _ := cmd.Flags().GetString("notes")
		if by == "" {
			if u, err := user.Current(); err == nil {
				by = u.Username
			}
		}
		if by == "" {
			return fmt.Errorf("--by is required")
		}

		ctx := cmd.Context()
		cat, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer cat.Close()

		var notesPtr *string
		if notes != "" {
			notesPtr = &notes
		}

		err = cat.Import(ctx, args[0], by, notesPtr, time.Now())
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("no event with id %s", args[0])
		case errors.Is(err, storage.ErrAlreadyImported):
			return fmt.Errorf("event %s is already imported", args[0])
		case err != nil:
			return err
		}

		rec, err := cat.Get(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Imported %q (%s) by %s\n", rec.Title, rec.SourceURL, by)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("by", "", "Who is importing the event (default: current user)")
	importCmd.Flags().String("notes", "", "Optional import notes")
}

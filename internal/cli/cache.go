package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/geoinfer/internal/store/sqlite"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or purge the event venue cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached event venue lookups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openEventStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		rows, err := store.List(context.Background())
		if err != nil {
			return fmt.Errorf("list cache: %w", err)
		}
		if len(rows) == 0 {
			fmt.Fprintf(os.Stderr, "Cache is empty: %s\n", store.Path())
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "EVENT\tYEAR\tSTATUS\tCITY\tCONFIDENCE\tEXPIRES")
		for _, r := range rows {
			year := "-"
			if r.EventYear != nil {
				year = fmt.Sprintf("%d", *r.EventYear)
			}
			city := r.City
			if city == "" {
				city = "-"
			} else if r.Country != "" {
				city += ", " + r.Country
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
				r.EventKey, year, r.Status, city, r.Confidence, r.ExpiresAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired event venue lookups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openEventStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		n, err := store.Purge(context.Background())
		if err != nil {
			return fmt.Errorf("purge cache: %w", err)
		}
		fmt.Printf("✓ Purged %d expired entries from %s\n", n, store.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
}

func openEventStore() (*sqlite.EventVenueStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := sqlite.Open(cfg.Event.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open event cache: %w", err)
	}
	return store, nil
}

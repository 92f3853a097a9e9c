package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tarun-kavipurapu/tsync/pkg/history"
)

var (
	historyDB    string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the transfer ledger recorded by `server --history` or `cp --history`",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(historyDB); err != nil {
			return fmt.Errorf("history database: %w", err)
		}
		store, err := history.Open(historyDB)
		if err != nil {
			return err
		}
		defer store.Close()

		rows, err := store.List(historyLimit)
		if err != nil {
			return err
		}
		printHistory(os.Stdout, rows)
		return nil
	},
}

func printHistory(w io.Writer, rows []history.Transfer) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No transfers recorded.")
		return
	}
	for _, r := range rows {
		status := "ok"
		if r.Failed() {
			status = "failed: " + r.Error
		}
		fmt.Fprintf(w, "%-14s %-8s %-24s %10s %6d pieces %8s  %s  %s\n",
			humanize.Time(r.CreatedAt),
			r.Direction,
			r.Name,
			humanize.IBytes(r.Bytes),
			r.Pieces,
			(time.Duration(r.DurationMs) * time.Millisecond).String(),
			r.Remote,
			status,
		)
	}
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyDB, "db", "tsync.db", "History database file")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of transfers to show (0 for all)")
}

package main

import (
	"fmt"
	"net"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"tarun-kavipurapu/tsync/pkg/history"
	"tarun-kavipurapu/tsync/pkg/progress"
	"tarun-kavipurapu/tsync/pkg/protocol"
	"tarun-kavipurapu/tsync/sender"
)

var (
	pieceSize    string
	wireFormat   string
	noChecksum   bool
	showProgress bool
	sendHistory  string
)

var cpCmd = &cobra.Command{
	Use:   "cp <source>... <host:port>",
	Short: "Send one or more files to a receiver",
	Example: `  tsync cp archive.zip 192.168.1.20:8080
  tsync cp --piece-size 4MiB a.iso b.iso nas.local:8080`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, dest := args[:len(args)-1], args[len(args)-1]
		cfg, err := senderConfig()
		if err != nil {
			return err
		}
		if _, _, err := net.SplitHostPort(dest); err != nil {
			return fmt.Errorf("destination %q: %w", dest, err)
		}
		if sendHistory != "" {
			store, err := history.Open(sendHistory)
			if err != nil {
				return err
			}
			defer store.Close()
			cfg.History = store
		}
		return sender.NewClient(cfg).SendFiles(dest, sources...)
	},
}

func senderConfig() (sender.Config, error) {
	cfg := sender.DefaultConfig()

	n, err := humanize.ParseBytes(pieceSize)
	if err != nil {
		return cfg, fmt.Errorf("--piece-size: %w", err)
	}
	cfg.Transfer.PieceLength = n

	cfg.Transfer.Format, err = protocol.ParseFormat(wireFormat)
	if err != nil {
		return cfg, err
	}
	cfg.Transfer.Checksums = !noChecksum

	if showProgress {
		cfg.Transfer.Observer = progress.NewBar(os.Stderr, isatty.IsTerminal(os.Stderr.Fd()))
	}
	return cfg, cfg.Transfer.Validate()
}

func init() {
	rootCmd.AddCommand(cpCmd)
	cpCmd.Flags().StringVar(&pieceSize, "piece-size", "1MiB", "Size of each piece")
	cpCmd.Flags().StringVar(&wireFormat, "format", "binary", "Wire format: binary or text")
	cpCmd.Flags().BoolVar(&noChecksum, "no-checksum", false, "Do not attach a checksum to each piece")
	cpCmd.Flags().StringVar(&sendHistory, "history", "", "Record sent files in this sqlite file")
	cpCmd.Flags().BoolVarP(&showProgress, "progress", "p", false, "Show a progress bar")
}

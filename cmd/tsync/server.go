package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tarun-kavipurapu/tsync/pkg/logger"
	"tarun-kavipurapu/tsync/receiver"
)

var (
	serverAddress   string
	serverPort      int
	serverDir       string
	strictWrites    bool
	advertise       bool
	historyPath     string
	interactive     bool
	metricsInterval time.Duration
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Receive files into a directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := receiver.DefaultConfig()
		cfg.Address = serverAddress
		cfg.Port = serverPort
		cfg.Dir = serverDir
		cfg.Advertise = advertise
		cfg.HistoryPath = historyPath
		cfg.MetricsInterval = metricsInterval
		cfg.Transfer.StrictWrites = strictWrites

		server, err := receiver.NewServer(cfg)
		if err != nil {
			return err
		}
		logger.Sugar.Infof("Starting receiver on %s:%d", serverAddress, serverPort)

		if !interactive {
			return server.Start()
		}

		// Run server in background
		if err := server.Listen(); err != nil {
			return err
		}
		go func() {
			if err := server.Start(); err != nil {
				logger.Sugar.Error("Error starting receiver ", err)
				os.Exit(1)
			}
		}()

		fmt.Println("tsync receiver interactive shell")
		fmt.Println("Type 'help' for commands.")

		prompt.New(
			func(in string) { serverExecutor(in, server) },
			serverCompleter,
			prompt.OptionPrefix("tsync> "),
			prompt.OptionTitle("tsync receiver"),
		).Run()
		return nil
	},
}

func serverExecutor(in string, server *receiver.Server) {
	blocks := strings.Fields(strings.TrimSpace(in))
	if len(blocks) == 0 {
		return
	}

	switch blocks[0] {
	case "exit", "quit":
		fmt.Println("Stopping receiver...")
		server.Stop()
		closeLog()
		os.Exit(0)
	case "status":
		fmt.Println(server.GetStatus())
	case "recent":
		recent := server.Recent()
		if len(recent) == 0 {
			fmt.Println("No files received yet.")
			return
		}
		for _, r := range recent {
			fmt.Printf("- %s (%s, %d pieces)\n", r.Path, humanize.IBytes(r.Bytes), r.Pieces)
		}
	case "history":
		store := server.History()
		if store == nil {
			fmt.Println("History is disabled; start with --history <file>.")
			return
		}
		limit := 10
		if len(blocks) > 1 {
			n, err := strconv.Atoi(blocks[1])
			if err != nil {
				fmt.Println("Usage: history [count]")
				return
			}
			limit = n
		}
		rows, err := store.List(limit)
		if err != nil {
			fmt.Printf("Error reading history: %v\n", err)
			return
		}
		printHistory(os.Stdout, rows)
	case "help":
		fmt.Println("Available commands:")
		fmt.Println("  status           - Show receiver status")
		fmt.Println("  recent           - List recently received files")
		fmt.Println("  history [count]  - Show the transfer ledger")
		fmt.Println("  exit             - Stop receiver and exit")
	default:
		fmt.Println("Unknown command: " + blocks[0])
	}
}

func serverCompleter(d prompt.Document) []prompt.Suggest {
	s := []prompt.Suggest{
		{Text: "status", Description: "Show receiver status and stats"},
		{Text: "recent", Description: "List recently received files"},
		{Text: "history", Description: "Show the transfer ledger"},
		{Text: "exit", Description: "Exit the receiver"},
		{Text: "help", Description: "Show help"},
	}
	return prompt.FilterHasPrefix(s, d.GetWordBeforeCursor(), true)
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVarP(&serverAddress, "address", "a", "0.0.0.0", "Address to listen on")
	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Port to listen on")
	serverCmd.Flags().StringVarP(&serverDir, "dir", "d", ".", "Directory to write received files into")
	serverCmd.Flags().BoolVar(&strictWrites, "strict", false, "Abort a transfer when a piece is not fully written")
	serverCmd.Flags().BoolVar(&advertise, "advertise", false, "Announce this receiver over mDNS")
	serverCmd.Flags().StringVar(&historyPath, "history", "", "Record transfers in this sqlite file")
	serverCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Start in interactive mode")
	serverCmd.Flags().DurationVar(&metricsInterval, "metrics-interval", 0, "Log metrics at this interval (0 disables)")
}

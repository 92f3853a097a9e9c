package main

import (
	"os"

	"github.com/spf13/cobra"

	"tarun-kavipurapu/tsync/pkg/logger"
)

var (
	logLevel string
	logFile  string
	closeLog = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "tsync",
	Short: "Stream files between two machines over TCP",
	Long: `tsync sends files from a sender to a receiver over a single TCP connection,
split into fixed-size pieces framed by small control records.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		closeFn, err := logger.Setup(logger.Options{Level: logLevel, File: logFile})
		if err != nil {
			return err
		}
		closeLog = closeFn
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLog()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to $TSYNC_LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also append logs to this file")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Sugar.Error(err)
		closeLog()
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tarun-kavipurapu/tsync/pkg/discovery"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find receivers on the local network",
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, err := discovery.NewResolver()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), discoverTimeout)
		defer cancel()

		found, err := resolver.Collect(ctx)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			fmt.Println("No receivers found.")
			return nil
		}
		for _, info := range found {
			fmt.Printf("%-30s %s\n", info.InstanceName, info.Addr())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().DurationVarP(&discoverTimeout, "timeout", "t", 3*time.Second, "How long to listen for announcements")
}

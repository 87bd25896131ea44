package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/enrollkit/enrollkit/internal/review"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Open the interactive reviewer console",
	Long: `Walks through the pending review queue. For each suspended session the
request details are shown and a decision (approve, reject, modify) is read
from the terminal and applied.

Requires the Redis store so the console sees the server's sessions; with the
in-memory store the queue is always empty.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}

		engine, cleanup, err := buildEngine(cfg, logger, nil)
		if err != nil {
			fmt.Printf("Error initializing engine: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		console := review.NewConsole(engine)
		if err := console.Run(cmd.Context()); err != nil {
			fmt.Printf("Review console error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}

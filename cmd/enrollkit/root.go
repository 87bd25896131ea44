package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "enrollkit",
	Short: "enrollkit is a durable check-in workflow engine with human review",
	Long: `enrollkit drives student check-in sessions through a fixed workflow
(information collection, identity verification, payment, dorm assignment),
suspending for human review where a staff decision is required.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the YAML config file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}
